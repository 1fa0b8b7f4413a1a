// Package backlogtest provides a routed fake Backlog API for tests.
package backlogtest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

const apiPrefix = "/api/v2"

// Request is a request observed by the fake server. Path excludes /api/v2.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Form        url.Values
	ContentType string
	Body        string
}

// Server is an httptest server routing /api/v2 paths through chi.
type Server struct {
	*httptest.Server

	router chi.Router

	mu       sync.Mutex
	requests []Request
}

// NewServer starts a fake API that is closed when t finishes.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{router: chi.NewRouter()}
	s.router.Use(s.record)
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusNotFound, map[string]any{
			"errors": []map[string]any{{"message": "No route for " + r.Method + " " + r.URL.Path, "code": 6, "moreInfo": ""}},
		})
	})
	s.Server = httptest.NewServer(s.router)
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root to hand to backlog.Config.BaseURL.
func (s *Server) BaseURL() string {
	return s.URL + apiPrefix
}

// Handle registers h for method and a chi pattern relative to /api/v2.
func (s *Server) Handle(method, pattern string, h http.HandlerFunc) {
	s.router.MethodFunc(method, apiPrefix+pattern, h)
}

// Requests returns every request seen so far, in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsTo returns the requests whose path equals path.
func (s *Server) RequestsTo(method, path string) []Request {
	var out []Request
	for _, req := range s.Requests() {
		if req.Method == method && req.Path == path {
			out = append(out, req)
		}
	}
	return out
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(raw))

		form, _ := url.ParseQuery(string(raw))
		req := Request{
			Method:      r.Method,
			Path:        strings.TrimPrefix(r.URL.Path, apiPrefix),
			Query:       r.URL.Query(),
			Form:        form,
			ContentType: r.Header.Get("Content-Type"),
			Body:        string(raw),
		}

		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

// WriteJSON writes v as a JSON response with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSON returns a handler that always answers with v.
func JSON(status int, v any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, status, v)
	}
}

// Sequence serves handlers in order, repeating the last one once exhausted.
func Sequence(handlers ...http.HandlerFunc) http.HandlerFunc {
	var (
		mu   sync.Mutex
		next int
	)
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		h := handlers[next]
		if next < len(handlers)-1 {
			next++
		}
		mu.Unlock()
		h(w, r)
	}
}

// APIErrors returns a handler answering status with a structured error body.
func APIErrors(status int, entries ...map[string]any) http.HandlerFunc {
	return JSON(status, map[string]any{"errors": entries})
}
