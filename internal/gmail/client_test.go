package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/harbormail/mailferry/internal/adapters/log"
	"github.com/harbormail/mailferry/internal/batch"
	"github.com/harbormail/mailferry/internal/domain"
	"github.com/harbormail/mailferry/internal/ports"
)

type scriptedResult struct {
	resp ports.Response
	err  error
}

// fakeTransport replays a scripted sequence of results and records every
// request it sees.
type fakeTransport struct {
	calls  []ports.Request
	script []scriptedResult
}

func (f *fakeTransport) Send(ctx context.Context, req ports.Request) (ports.Response, error) {
	f.calls = append(f.calls, req)
	if len(f.script) == 0 {
		return ports.Response{Status: http.StatusOK, Body: []byte("{}")}, nil
	}
	r := f.script[0]
	f.script = f.script[1:]
	return r.resp, r.err
}

func okResult(body string) scriptedResult {
	return scriptedResult{resp: ports.Response{Status: http.StatusOK, Body: []byte(body)}}
}

func statusResult(code int, body string) scriptedResult {
	return scriptedResult{resp: ports.Response{Status: code, Body: []byte(body)}}
}

type fakeCursorStore struct {
	cursor string
	sets   []string
}

func (f *fakeCursorStore) Cursor(ctx context.Context) (string, error) { return f.cursor, nil }

func (f *fakeCursorStore) SetCursor(ctx context.Context, cursor string) error {
	f.cursor = cursor
	f.sets = append(f.sets, cursor)
	return nil
}

func newTestClient(tr *fakeTransport, cs *fakeCursorStore) *Client {
	c := New(Config{
		APIBase:     "https://mail.test/mail",
		BatchURL:    "https://mail.test/batch/mail/v1",
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		WaitCap:     5 * time.Millisecond,
	}, tr, cs, log.NewNoopLogger())
	c.Boundary = func() string { return "batch_x" }
	c.Sleep = func(time.Duration) {}
	return c
}

// batchBody renders a service-style multipart response carrying one message
// document per id. The boundary is deliberately unrelated to the request
// boundary: decoding derives the separator from the response itself.
func batchBody(ids []domain.MessageID) string {
	var b strings.Builder
	for _, id := range ids {
		b.WriteString("\r\n--rsp\r\nContent-Type: application/http\r\n\r\nHTTP/1.1 200 OK\r\nContent-Type: application/json\r\n\r\n")
		fmt.Fprintf(&b, `{"id":%q,"threadId":"t-%s"}`, id, id)
	}
	b.WriteString("\r\n--rsp--")
	return b.String()
}

func TestListMessagesPersistsCursor(t *testing.T) {
	tr := &fakeTransport{script: []scriptedResult{
		okResult(`{"messages":[{"id":"a1","threadId":"t1"},{"id":"a2","threadId":"t2"}],"nextPageToken":"page-2","resultSizeEstimate":12}`),
	}}
	cs := &fakeCursorStore{}
	c := newTestClient(tr, cs)

	page, err := c.ListMessages(context.Background(), ListQuery{Query: "-label:ferried", MaxResults: 25})
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(page.Refs) != 2 || page.Refs[0].ID != "a1" || page.Refs[1].ID != "a2" {
		t.Fatalf("unexpected refs: %+v", page.Refs)
	}
	if page.NextPageToken != "page-2" {
		t.Fatalf("next page token = %q, want page-2", page.NextPageToken)
	}
	if page.SizeEstimate != 12 {
		t.Fatalf("size estimate = %d, want 12", page.SizeEstimate)
	}

	wantURL := "https://mail.test/mail/v1/users/me/messages?maxResults=25&q=-label%3Aferried"
	if got := tr.calls[0].URL; got != wantURL {
		t.Fatalf("request URL = %q, want %q", got, wantURL)
	}

	// The continuation token is stored before the page comes back.
	if len(cs.sets) != 1 || cs.sets[0] != "page-2" {
		t.Fatalf("cursor sets = %v, want [page-2]", cs.sets)
	}
}

func TestListMessagesLastPageLeavesCursor(t *testing.T) {
	tr := &fakeTransport{script: []scriptedResult{
		okResult(`{"messages":[{"id":"a9","threadId":"t9"}]}`),
	}}
	cs := &fakeCursorStore{}
	c := newTestClient(tr, cs)

	page, err := c.ListMessages(context.Background(), ListQuery{})
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if page.NextPageToken != "" {
		t.Fatalf("next page token = %q, want empty", page.NextPageToken)
	}
	if len(cs.sets) != 0 {
		t.Fatalf("cursor sets = %v, want none", cs.sets)
	}
}

func TestBatchFetchChunksAndPreservesOrder(t *testing.T) {
	ids := make([]domain.MessageID, 250)
	for i := range ids {
		ids[i] = domain.MessageID(fmt.Sprintf("m%03d", i))
	}

	tr := &fakeTransport{script: []scriptedResult{
		okResult(batchBody(ids[:100])),
		okResult(batchBody(ids[100:200])),
		okResult(batchBody(ids[200:])),
	}}
	c := newTestClient(tr, &fakeCursorStore{})

	var boundaries int
	c.Boundary = func() string {
		boundaries++
		return fmt.Sprintf("batch_%d", boundaries)
	}

	msgs, err := c.BatchFetch(context.Background(), ids)
	if err != nil {
		t.Fatalf("BatchFetch: %v", err)
	}
	if len(msgs) != 250 {
		t.Fatalf("messages = %d, want 250", len(msgs))
	}
	for i, m := range msgs {
		if m.ID != ids[i] {
			t.Fatalf("message %d = %q, want %q", i, m.ID, ids[i])
		}
	}

	if len(tr.calls) != 3 {
		t.Fatalf("transport calls = %d, want 3", len(tr.calls))
	}
	if boundaries != 3 {
		t.Fatalf("boundaries generated = %d, want one per chunk", boundaries)
	}

	for i, wantSize := range []int{100, 100, 50} {
		call := tr.calls[i]
		if call.Method != http.MethodPost || call.URL != "https://mail.test/batch/mail/v1" {
			t.Fatalf("call %d: %s %s, want POST batch endpoint", i, call.Method, call.URL)
		}
		wantCT := fmt.Sprintf("multipart/mixed; boundary=batch_%d", i+1)
		if got := call.Header.Get("Content-Type"); got != wantCT {
			t.Fatalf("call %d content type = %q, want %q", i, got, wantCT)
		}
		body := string(call.Body)
		if got := strings.Count(body, "GET /mail/v1/users/me/messages/"); got != wantSize {
			t.Fatalf("call %d carries %d sub-requests, want %d", i, got, wantSize)
		}
		if !strings.HasSuffix(body, fmt.Sprintf("--batch_%d--\r\n", i+1)) {
			t.Fatalf("call %d body missing closing marker", i)
		}
	}

	if !strings.Contains(string(tr.calls[0].Body), "messages/m099\r\n") {
		t.Fatal("first chunk should end at m099")
	}
	if strings.Contains(string(tr.calls[0].Body), "messages/m100\r\n") {
		t.Fatal("first chunk must not spill into the second")
	}
}

func TestBatchFetchAbortsOnChunkError(t *testing.T) {
	ids := make([]domain.MessageID, 150)
	for i := range ids {
		ids[i] = domain.MessageID(fmt.Sprintf("m%03d", i))
	}

	tr := &fakeTransport{script: []scriptedResult{
		okResult(batchBody(ids[:100])),
		statusResult(404, `{"error":{"code":404,"message":"Not Found","errors":[{"reason":"notFound"}]}}`),
	}}
	c := newTestClient(tr, &fakeCursorStore{})

	msgs, err := c.BatchFetch(context.Background(), ids)
	if err == nil {
		t.Fatal("expected error")
	}
	if msgs != nil {
		t.Fatalf("partial results leaked: %d messages", len(msgs))
	}
	if len(tr.calls) != 2 {
		t.Fatalf("transport calls = %d, want 2", len(tr.calls))
	}

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %T, want *domain.APIError", err)
	}
	if apiErr.Kind != domain.KindFatal || apiErr.Status != 404 || apiErr.Attempts != 1 {
		t.Fatalf("unexpected error detail: %+v", apiErr)
	}
}

func TestBatchFetchDecodeErrorIsFatal(t *testing.T) {
	tr := &fakeTransport{script: []scriptedResult{okResult("complete garbage")}}
	c := newTestClient(tr, &fakeCursorStore{})

	_, err := c.BatchFetch(context.Background(), []domain.MessageID{"a1"})
	if !errors.Is(err, batch.ErrNoDelimiter) {
		t.Fatalf("error = %v, want wrapped ErrNoDelimiter", err)
	}
	if domain.KindOf(err) != domain.KindFatal {
		t.Fatalf("kind = %v, want fatal", domain.KindOf(err))
	}
}

func TestBatchFetchDecodesEnvelope(t *testing.T) {
	body := "\r\n--rsp\r\nContent-Type: application/http\r\n\r\nHTTP/1.1 200 OK\r\n\r\n" +
		`{"id":"a1","threadId":"t1","labelIds":["INBOX","UNREAD"],"snippet":"hello","sizeEstimate":512,"internalDate":"1700000000000"}` +
		"\r\n--rsp--"
	tr := &fakeTransport{script: []scriptedResult{okResult(body)}}
	c := newTestClient(tr, &fakeCursorStore{})

	msgs, err := c.BatchFetch(context.Background(), []domain.MessageID{"a1"})
	if err != nil {
		t.Fatalf("BatchFetch: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}

	m := msgs[0]
	if m.ID != "a1" || m.ThreadID != "t1" || m.Snippet != "hello" || m.SizeEstimate != 512 {
		t.Fatalf("unexpected envelope: %+v", m)
	}
	if !m.HasLabel(domain.LabelInbox) || m.HasLabel(domain.LabelSpam) {
		t.Fatalf("unexpected labels: %v", m.LabelIDs)
	}
	if want := time.UnixMilli(1700000000000).UTC(); !m.InternalDate.Equal(want) {
		t.Fatalf("internal date = %v, want %v", m.InternalDate, want)
	}
	if !strings.Contains(string(m.Raw), `"snippet":"hello"`) {
		t.Fatalf("raw document not retained: %s", m.Raw)
	}
}

func TestBatchFetchEmptyInput(t *testing.T) {
	tr := &fakeTransport{}
	c := newTestClient(tr, &fakeCursorStore{})

	msgs, err := c.BatchFetch(context.Background(), nil)
	if err != nil || msgs != nil {
		t.Fatalf("BatchFetch(nil) = %v, %v, want nil, nil", msgs, err)
	}
	if len(tr.calls) != 0 {
		t.Fatalf("transport calls = %d, want none", len(tr.calls))
	}
}

func TestSendWithRetryRecoversAfterTransientFailures(t *testing.T) {
	unavailable := statusResult(503, `{"error":{"code":503,"message":"Backend Error"}}`)
	tr := &fakeTransport{script: []scriptedResult{unavailable, unavailable, okResult(`{"messages":[]}`)}}
	c := newTestClient(tr, &fakeCursorStore{})

	var sleeps []time.Duration
	c.Sleep = func(d time.Duration) { sleeps = append(sleeps, d) }

	resp, err := c.SendWithRetry(context.Background(), func() ports.Request {
		return ports.Request{Method: http.MethodGet, URL: "https://mail.test/mail/v1/users/me/messages"}
	})
	if err != nil {
		t.Fatalf("SendWithRetry: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Status)
	}
	if len(tr.calls) != 3 {
		t.Fatalf("transport calls = %d, want 3", len(tr.calls))
	}

	// Two recorded failures: the first earns an immediate repeat, the
	// second a single scheduled wait before the attempt that succeeds.
	if len(sleeps) != 1 {
		t.Fatalf("sleeps = %v, want exactly one", sleeps)
	}
	if max := 4 * time.Millisecond; sleeps[0] < 0 || sleeps[0] > max {
		t.Fatalf("backoff wait %v outside [0, %v]", sleeps[0], max)
	}
}

func TestSendWithRetryFatalFailsFast(t *testing.T) {
	tr := &fakeTransport{script: []scriptedResult{
		statusResult(404, `{"error":{"code":404,"message":"Not Found","errors":[{"reason":"notFound"}]}}`),
	}}
	c := newTestClient(tr, &fakeCursorStore{})

	_, err := c.SendWithRetry(context.Background(), func() ports.Request {
		return ports.Request{Method: http.MethodGet, URL: "https://mail.test/mail/v1/users/me/labels"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(tr.calls) != 1 {
		t.Fatalf("transport calls = %d, want 1", len(tr.calls))
	}

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %T, want *domain.APIError", err)
	}
	if apiErr.Kind != domain.KindFatal || apiErr.Status != 404 || apiErr.Code != "notFound" || apiErr.Attempts != 1 {
		t.Fatalf("unexpected error detail: %+v", apiErr)
	}
}

func TestSendWithRetryExhaustsBudget(t *testing.T) {
	unavailable := statusResult(503, `{"error":{"code":503,"message":"Backend Error"}}`)
	tr := &fakeTransport{script: []scriptedResult{unavailable, unavailable}}
	c := New(Config{
		APIBase:     "https://mail.test/mail",
		BatchURL:    "https://mail.test/batch/mail/v1",
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		WaitCap:     5 * time.Millisecond,
	}, tr, &fakeCursorStore{}, log.NewNoopLogger())

	var sleeps []time.Duration
	c.Sleep = func(d time.Duration) { sleeps = append(sleeps, d) }

	_, err := c.SendWithRetry(context.Background(), func() ports.Request {
		return ports.Request{Method: http.MethodGet, URL: "https://mail.test/mail/v1/users/me/messages"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(tr.calls) != 2 {
		t.Fatalf("transport calls = %d, want 2", len(tr.calls))
	}
	// Budget dies during the immediate repeat, so no scheduled wait runs.
	if len(sleeps) != 0 {
		t.Fatalf("sleeps = %v, want none", sleeps)
	}

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %T, want *domain.APIError", err)
	}
	if apiErr.Kind != domain.KindTransient || apiErr.Attempts != 2 {
		t.Fatalf("unexpected error detail: %+v", apiErr)
	}
}

func TestSendWithRetryZeroBudgetSendsOnce(t *testing.T) {
	tr := &fakeTransport{script: []scriptedResult{
		statusResult(503, `{"error":{"code":503,"message":"Backend Error"}}`),
	}}
	c := New(Config{
		APIBase:   "https://mail.test/mail",
		BatchURL:  "https://mail.test/batch/mail/v1",
		BaseDelay: time.Millisecond,
		WaitCap:   5 * time.Millisecond,
	}, tr, &fakeCursorStore{}, log.NewNoopLogger())

	var sleeps []time.Duration
	c.Sleep = func(d time.Duration) { sleeps = append(sleeps, d) }

	_, err := c.SendWithRetry(context.Background(), func() ports.Request {
		return ports.Request{Method: http.MethodGet, URL: "https://mail.test/mail/v1/users/me/messages"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(tr.calls) != 1 {
		t.Fatalf("transport calls = %d, want 1", len(tr.calls))
	}
	if len(sleeps) != 0 {
		t.Fatalf("sleeps = %v, want none", sleeps)
	}

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %T, want *domain.APIError", err)
	}
	if apiErr.Kind != domain.KindTransient || apiErr.Attempts != 1 {
		t.Fatalf("unexpected error detail: %+v", apiErr)
	}
}

func TestSendWithRetryRateLimitedReason(t *testing.T) {
	tr := &fakeTransport{script: []scriptedResult{
		statusResult(403, `{"error":{"code":403,"message":"User Rate Limit Exceeded","errors":[{"reason":"userRateLimitExceeded"}]}}`),
	}}
	c := New(Config{
		APIBase:     "https://mail.test/mail",
		BatchURL:    "https://mail.test/batch/mail/v1",
		MaxAttempts: 1,
		BaseDelay:   time.Millisecond,
		WaitCap:     5 * time.Millisecond,
	}, tr, &fakeCursorStore{}, log.NewNoopLogger())
	c.Sleep = func(time.Duration) {}

	_, err := c.SendWithRetry(context.Background(), func() ports.Request {
		return ports.Request{Method: http.MethodGet, URL: "https://mail.test/mail/v1/users/me/messages"}
	})

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %T, want *domain.APIError", err)
	}
	// The named reason flips an otherwise fatal 403 to transient.
	if apiErr.Kind != domain.KindTransient || apiErr.Code != "userRateLimitExceeded" {
		t.Fatalf("unexpected error detail: %+v", apiErr)
	}
}

func TestSendWithRetryTransportFailure(t *testing.T) {
	timeout := scriptedResult{err: &domain.TransportError{
		Code: domain.TransportTimeout,
		Op:   "round trip",
		Err:  context.DeadlineExceeded,
	}}
	tr := &fakeTransport{script: []scriptedResult{timeout, okResult(`{}`)}}
	c := newTestClient(tr, &fakeCursorStore{})

	resp, err := c.SendWithRetry(context.Background(), func() ports.Request {
		return ports.Request{Method: http.MethodGet, URL: "https://mail.test/mail/v1/users/me/messages"}
	})
	if err != nil {
		t.Fatalf("SendWithRetry: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Status)
	}
	// Timeout classifies transient, so the immediate repeat recovers.
	if len(tr.calls) != 2 {
		t.Fatalf("transport calls = %d, want 2", len(tr.calls))
	}
}

func TestBatchModifySendsSingleCall(t *testing.T) {
	tr := &fakeTransport{script: []scriptedResult{okResult(`{}`)}}
	c := newTestClient(tr, &fakeCursorStore{})

	err := c.BatchModify(context.Background(), []domain.MessageID{"a1", "a2"}, []domain.LabelID{"L7"})
	if err != nil {
		t.Fatalf("BatchModify: %v", err)
	}
	if len(tr.calls) != 1 {
		t.Fatalf("transport calls = %d, want 1", len(tr.calls))
	}

	call := tr.calls[0]
	if call.Method != http.MethodPost {
		t.Fatalf("method = %s, want POST", call.Method)
	}
	if want := "https://mail.test/mail/v1/users/me/messages/batchModify"; call.URL != want {
		t.Fatalf("URL = %q, want %q", call.URL, want)
	}
	if got := call.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("content type = %q, want application/json", got)
	}
	if want := `{"ids":["a1","a2"],"addLabelIds":["L7"]}`; string(call.Body) != want {
		t.Fatalf("body = %s, want %s", call.Body, want)
	}
}

func TestBatchModifyValidation(t *testing.T) {
	tr := &fakeTransport{}
	c := newTestClient(tr, &fakeCursorStore{})

	err := c.BatchModify(context.Background(), nil, []domain.LabelID{"L7"})
	if !errors.Is(err, domain.ErrEmptyIDSet) {
		t.Fatalf("empty ids error = %v, want ErrEmptyIDSet", err)
	}
	if domain.KindOf(err) != domain.KindConfiguration {
		t.Fatalf("empty ids kind = %v, want configuration", domain.KindOf(err))
	}

	err = c.BatchModify(context.Background(), []domain.MessageID{"a1"}, nil)
	if !errors.Is(err, domain.ErrLabelNotResolved) {
		t.Fatalf("empty labels error = %v, want ErrLabelNotResolved", err)
	}
	if domain.KindOf(err) != domain.KindConfiguration {
		t.Fatalf("empty labels kind = %v, want configuration", domain.KindOf(err))
	}

	if len(tr.calls) != 0 {
		t.Fatalf("transport calls = %d, want none", len(tr.calls))
	}
}

func TestListLabels(t *testing.T) {
	tr := &fakeTransport{script: []scriptedResult{
		okResult(`{"labels":[{"id":"INBOX","name":"INBOX","type":"system"},{"id":"Label_7","name":"Ferry/Synced","type":"user"}]}`),
	}}
	c := newTestClient(tr, &fakeCursorStore{})

	labels, err := c.ListLabels(context.Background())
	if err != nil {
		t.Fatalf("ListLabels: %v", err)
	}
	if len(labels) != 2 {
		t.Fatalf("labels = %d, want 2", len(labels))
	}
	if want := "https://mail.test/mail/v1/users/me/labels"; tr.calls[0].URL != want {
		t.Fatalf("URL = %q, want %q", tr.calls[0].URL, want)
	}
	if !labels[0].System() || labels[1].System() {
		t.Fatalf("unexpected label types: %+v", labels)
	}
	if labels[1].ID != "Label_7" || labels[1].Name != "Ferry/Synced" {
		t.Fatalf("unexpected user label: %+v", labels[1])
	}
}
