package domain

// Well-known system label ids shared by Gmail-compatible mailbox services.
const (
	LabelInbox   LabelID = "INBOX"
	LabelUnread  LabelID = "UNREAD"
	LabelStarred LabelID = "STARRED"
	LabelSpam    LabelID = "SPAM"
	LabelTrash   LabelID = "TRASH"
)

// Label is a mailbox label. System labels ship with every mailbox; user
// labels are created per account and referenced by id in modify calls.
type Label struct {
	ID   LabelID `json:"id"`
	Name string  `json:"name"`
	Type string  `json:"type"`
}

// System reports whether the label is a built-in system label.
func (l Label) System() bool {
	return l.Type == "system"
}
