package notify

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// captureServer starts an httptest.Server that records incoming requests.
// It returns the server and a function to collect all captured requests.
func captureServer(t *testing.T) (*httptest.Server, func() []capturedReq) {
	t.Helper()
	var mu sync.Mutex
	var reqs []capturedReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, capturedReq{
			method:      r.Method,
			body:        string(body),
			contentType: r.Header.Get("Content-Type"),
			title:       r.Header.Get("X-Title"),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedReq {
		mu.Lock()
		defer mu.Unlock()
		out := make([]capturedReq, len(reqs))
		copy(out, reqs)
		return out
	}
}

type capturedReq struct {
	method      string
	body        string
	contentType string
	title       string
}

// waitForRequests polls until count requests are captured or the deadline is reached.
func waitForRequests(t *testing.T, collect func() []capturedReq, count int) []capturedReq {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := collect(); len(got) >= count {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d request(s)", count)
	return nil
}

func TestComplete(t *testing.T) {
	srv, collect := captureServer(t)

	n := New(srv.URL, "myapp", true, false)
	n.Complete("workflow finished: 3 steps, $0.12")

	reqs := waitForRequests(t, collect, 1)
	r := reqs[0]
	if r.method != http.MethodPost {
		t.Errorf("method = %q, want POST", r.method)
	}
	if r.body != "workflow finished: 3 steps, $0.12" {
		t.Errorf("body = %q", r.body)
	}
	if r.contentType != "text/plain" {
		t.Errorf("content type = %q, want text/plain", r.contentType)
	}
	if r.title != "myapp" {
		t.Errorf("X-Title = %q, want myapp", r.title)
	}
}

func TestError(t *testing.T) {
	srv, collect := captureServer(t)

	n := New(srv.URL, "", false, true)
	n.Error("implement phase failed after 3 retries")

	reqs := waitForRequests(t, collect, 1)
	if reqs[0].body != "implement phase failed after 3 retries" {
		t.Errorf("body = %q", reqs[0].body)
	}
	if reqs[0].title != "agentos" {
		t.Errorf("X-Title = %q, want default agentos", reqs[0].title)
	}
}

func TestDisabledFlagsSendNothing(t *testing.T) {
	srv, collect := captureServer(t)

	n := New(srv.URL, "myapp", false, false)
	n.Complete("should not send")
	n.Error("should not send either")

	time.Sleep(100 * time.Millisecond)
	if got := collect(); len(got) != 0 {
		t.Errorf("expected no requests, got %d", len(got))
	}
}

func TestEmptyURLSendsNothing(t *testing.T) {
	// Must not panic or block.
	n := New("", "myapp", true, true)
	n.Complete("nowhere to go")
	n.Error("nowhere to go")
}
