package domain

import (
	"encoding/json"
	"time"
)

// MessageID uniquely identifies a message within a mailbox.
type MessageID string

// LabelID uniquely identifies a label within a mailbox.
type LabelID string

// MessageRef is a single listing entry: the message id and its thread.
// Listings carry only refs; full documents come from a batch fetch.
type MessageRef struct {
	ID       MessageID `json:"id"`
	ThreadID string    `json:"threadId"`
}

// MessageIDPage is one page of a mailbox listing.
// NextPageToken is the opaque continuation cursor; empty means the listing
// is complete.
type MessageIDPage struct {
	Refs          []MessageRef
	NextPageToken string
	SizeEstimate  int
}

// IDs returns the message ids of the page in listing order.
func (p MessageIDPage) IDs() []MessageID {
	ids := make([]MessageID, len(p.Refs))
	for i, r := range p.Refs {
		ids[i] = r.ID
	}
	return ids
}

// Empty returns true if the page carries no refs.
func (p MessageIDPage) Empty() bool {
	return len(p.Refs) == 0
}

// Message is a fetched mail message.
// Raw holds the complete JSON document as returned by the service; the
// envelope fields are decoded copies used for storage and filtering. The
// document shape itself is never reinterpreted beyond the envelope.
type Message struct {
	ID           MessageID
	ThreadID     string
	LabelIDs     []LabelID
	Snippet      string
	SizeEstimate int64
	InternalDate time.Time
	Raw          json.RawMessage
}

// HasLabel reports whether the message carries the given label id.
func (m Message) HasLabel(id LabelID) bool {
	for _, l := range m.LabelIDs {
		if l == id {
			return true
		}
	}
	return false
}
