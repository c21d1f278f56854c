package usecase

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"negotiation-backend/pkg/oracle"
)

// fakeOracle is an HTTP oracle endpoint answering from a per-call script.
type fakeOracle struct {
	mu       sync.Mutex
	requests []oracle.Request
	respond  func(n int, req oracle.Request, w http.ResponseWriter)
	srv      *httptest.Server
}

func newFakeOracle(t *testing.T, respond func(n int, req oracle.Request, w http.ResponseWriter)) *fakeOracle {
	t.Helper()
	f := &fakeOracle{respond: respond}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/negotiate" {
			http.NotFound(w, r)
			return
		}
		var req oracle.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		n := len(f.requests)
		f.requests = append(f.requests, req)
		f.mu.Unlock()
		f.respond(n, req, w)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeOracle) URL() string { return f.srv.URL }

func (f *fakeOracle) Requests() []oracle.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]oracle.Request(nil), f.requests...)
}

// writeTurn streams text frames followed by a final frame.
func writeTurn(w http.ResponseWriter, decision string, price any, chunks ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	full := ""
	for _, c := range chunks {
		full += c
		writeFrame(w, oracle.Frame{Type: oracle.FrameText, Content: c})
	}
	final := oracle.Frame{Type: oracle.FrameFinal, Content: full, IsFinal: true}
	if decision != "" {
		final.Decision, _ = json.Marshal(decision)
	}
	if price != nil {
		final.DeclaredAmounts, _ = json.Marshal(map[string]any{"price": price})
	}
	writeFrame(w, final)
}

func writeFrame(w http.ResponseWriter, f oracle.Frame) {
	b, _ := json.Marshal(f)
	fmt.Fprintf(w, "data: %s\n\n", b)
	if fl, ok := w.(http.Flusher); ok {
		fl.Flush()
	}
}
