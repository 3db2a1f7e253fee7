package ports

// TokenSource supplies the bearer token attached to every request.
// Implementations may reload the token from their backing source between
// calls; token acquisition itself is out of scope.
type TokenSource interface {
	Token() (string, error)
}
