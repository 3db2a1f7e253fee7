package cliconfig

import (
	"fmt"
	"path/filepath"
)

// DefaultTokenFileName is the conventional token file under the state directory.
const DefaultTokenFileName = "token"

// LoadTokenInfo resolves where the access token comes from when the config
// does not already say. If neither an explicit token nor a token file is
// configured it falls back to the conventional token file under the state
// directory. Call this after Validate so StateDir is set.
func LoadTokenInfo(cfg *Config) error {
	if cfg.AccessToken != "" || cfg.TokenFile != "" {
		return nil
	}
	path := filepath.Join(cfg.StateDir, DefaultTokenFileName)
	if !FileExists(path) {
		return fmt.Errorf("access-token is required (or token-file)")
	}
	cfg.TokenFile = path
	return nil
}
