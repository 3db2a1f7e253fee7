package gmail

import (
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/harbormail/mailferry/internal/domain"
)

// ListQuery narrows a mailbox listing.
type ListQuery struct {
	// Query is a service search expression, e.g. "-label:ferry/synced".
	Query string

	// LabelIDs restricts the listing to messages carrying all given labels.
	LabelIDs []domain.LabelID

	// MaxResults bounds the page size. Zero lets the service choose.
	MaxResults int

	// PageToken continues a previous listing.
	PageToken string
}

// values renders the query as URL parameters.
func (q ListQuery) values() url.Values {
	vals := url.Values{}
	if q.Query != "" {
		vals.Set("q", q.Query)
	}
	for _, id := range q.LabelIDs {
		vals.Add("labelIds", string(id))
	}
	if q.MaxResults > 0 {
		vals.Set("maxResults", strconv.Itoa(q.MaxResults))
	}
	if q.PageToken != "" {
		vals.Set("pageToken", q.PageToken)
	}
	return vals
}

// listResponse mirrors the listing payload.
type listResponse struct {
	Messages           []domain.MessageRef `json:"messages"`
	NextPageToken      string              `json:"nextPageToken"`
	ResultSizeEstimate int                 `json:"resultSizeEstimate"`
}

// labelsResponse mirrors the labels listing payload.
type labelsResponse struct {
	Labels []domain.Label `json:"labels"`
}

// messageDoc mirrors the envelope fields of a message document.
// InternalDate arrives as a string-encoded epoch-milliseconds value.
type messageDoc struct {
	ID           domain.MessageID `json:"id"`
	ThreadID     string           `json:"threadId"`
	LabelIDs     []domain.LabelID `json:"labelIds"`
	Snippet      string           `json:"snippet"`
	SizeEstimate int64            `json:"sizeEstimate"`
	InternalDate int64            `json:"internalDate,string"`
}

// toMessage converts the wire document to a domain Message, retaining the
// raw JSON alongside the decoded envelope.
func (d messageDoc) toMessage(raw json.RawMessage) domain.Message {
	m := domain.Message{
		ID:           d.ID,
		ThreadID:     d.ThreadID,
		LabelIDs:     d.LabelIDs,
		Snippet:      d.Snippet,
		SizeEstimate: d.SizeEstimate,
		Raw:          raw,
	}
	if d.InternalDate > 0 {
		m.InternalDate = time.UnixMilli(d.InternalDate).UTC()
	}
	return m
}

// modifyRequest mirrors the batchModify payload.
type modifyRequest struct {
	IDs         []domain.MessageID `json:"ids"`
	AddLabelIDs []domain.LabelID   `json:"addLabelIds"`
}

// errorResponse mirrors the service error envelope.
type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
		Status string `json:"status"`
	} `json:"error"`
}

// parseErrorBody extracts the named reason and message from a service error
// envelope. Unparseable bodies yield empty values.
func parseErrorBody(body []byte) (reason, message string) {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return "", ""
	}
	if len(er.Error.Errors) > 0 {
		reason = er.Error.Errors[0].Reason
	}
	return reason, er.Error.Message
}
