package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Reply is one scripted HTTP response.
type Reply struct {
	Status int
	Header map[string]string
	Body   string
}

// OK returns a 200 reply carrying body.
func OK(body string) Reply {
	return Reply{Status: http.StatusOK, Header: map[string]string{"Content-Type": "application/json"}, Body: body}
}

// Status returns an empty reply with the given status code.
func Status(code int) Reply {
	return Reply{Status: code}
}

// FakeAPI is an httptest server answering record and media requests from
// scripts. Record requests go to /records/{id}/audits. Ids without a script
// return 404. When a script runs out, its last reply repeats.
type FakeAPI struct {
	Server *httptest.Server

	mu      sync.Mutex
	records map[int64][]Reply
	media   map[string][]Reply
	calls   map[int64]int
	fetched map[string]int
	auth    [2]string
}

// NewFakeAPI starts a FakeAPI and registers cleanup.
func NewFakeAPI(t testing.TB) *FakeAPI {
	t.Helper()

	api := &FakeAPI{
		records: make(map[int64][]Reply),
		media:   make(map[string][]Reply),
		calls:   make(map[int64]int),
		fetched: make(map[string]int),
	}
	api.Server = httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(api.Server.Close)
	return api
}

// URL returns the server base URL.
func (a *FakeAPI) URL() string {
	return a.Server.URL
}

// Record scripts the replies for one record id, in call order.
func (a *FakeAPI) Record(id int64, replies ...Reply) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[id] = append(a.records[id], replies...)
}

// Media scripts the replies for a media path such as "/files/9".
func (a *FakeAPI) Media(path string, replies ...Reply) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.media[path] = append(a.media[path], replies...)
}

// Calls reports how many record requests id received.
func (a *FakeAPI) Calls(id int64) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[id]
}

// TotalCalls reports record requests across all ids.
func (a *FakeAPI) TotalCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := 0
	for _, n := range a.calls {
		total += n
	}
	return total
}

// MediaCalls reports how many requests path received.
func (a *FakeAPI) MediaCalls(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fetched[path]
}

// LastAuth returns the basic-auth credentials of the most recent request.
func (a *FakeAPI) LastAuth() (string, string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.auth[0], a.auth[1]
}

func (a *FakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	user, pass, _ := r.BasicAuth()

	a.mu.Lock()
	a.auth = [2]string{user, pass}
	var reply Reply
	if id, ok := recordID(r.URL.Path); ok {
		a.calls[id]++
		reply = next(a.records[id], a.calls[id])
	} else {
		a.fetched[r.URL.Path]++
		reply = next(a.media[r.URL.Path], a.fetched[r.URL.Path])
	}
	a.mu.Unlock()

	for k, v := range reply.Header {
		w.Header().Set(k, v)
	}
	w.WriteHeader(reply.Status)
	_, _ = w.Write([]byte(reply.Body))
}

func next(script []Reply, call int) Reply {
	if len(script) == 0 {
		return Status(http.StatusNotFound)
	}
	if call > len(script) {
		return script[len(script)-1]
	}
	return script[call-1]
}

func recordID(path string) (int64, bool) {
	rest, ok := strings.CutPrefix(path, "/records/")
	if !ok {
		return 0, false
	}
	idPart, _, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idPart, 10, 64)
	return id, err == nil
}

// Payload builds an audits payload for id under the "records" key. Each
// event is included as given.
func Payload(id int64, events ...map[string]any) string {
	doc := map[string]any{
		"records": []any{map[string]any{"id": id, "subject": fmt.Sprintf("Record %d", id)}},
		"audits":  []any{map[string]any{"id": id * 10, "events": toAny(events)}},
		"users": []any{map[string]any{
			"id": 1, "url": "https://example.invalid/users/1", "name": "Agent",
			"email": "agent@example.com", "phone": nil, "role": "admin",
		}},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// AttachmentEvent builds a comment event with one attachment at url.
func AttachmentEvent(attachmentID int64, url string) map[string]any {
	return map[string]any{
		"type":        "Comment",
		"attachments": []any{map[string]any{"id": attachmentID, "content_url": url}},
	}
}

// RecordingEvent builds a voice event with a recording at url.
func RecordingEvent(callID int64, url string) map[string]any {
	return map[string]any{
		"type": "VoiceComment",
		"data": map[string]any{"call_id": callID, "recording_url": url},
	}
}

func toAny(events []map[string]any) []any {
	out := make([]any, len(events))
	for i, e := range events {
		out[i] = e
	}
	return out
}
