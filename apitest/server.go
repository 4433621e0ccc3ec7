// Package apitest runs an in-process fake of the Aperture HTTP API for tests.
package apitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Request is one call recorded by the fake server.
type Request struct {
	Method string
	Path   string
	Query  map[string]string
	Body   map[string]interface{}
	Raw    []byte
	Header http.Header
}

// Response is what the fake server answers for a route. Body is encoded as
// JSON unless RawBody is set.
type Response struct {
	Status  int
	Body    interface{}
	RawBody string
}

// Server records requests and replays scripted responses per route. Routes
// with several queued responses pop them in order and repeat the last one.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	requests  []Request
	responses map[string][]Response
}

// New starts a fake server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{responses: make(map[string][]Response)}

	r := chi.NewRouter()
	r.Route("/agent", func(r chi.Router) {
		r.Post("/chat", s.handle)
		r.Post("/undo", s.handle)
	})
	r.Route("/api", func(r chi.Router) {
		r.Post("/create_folder", s.handle)
		r.Post("/delete_folder", s.handle)
		r.Post("/delete_image", s.handle)
		r.Get("/image_exif", s.handle)
	})
	r.Get("/images/{folder}/{file}", s.handle)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// On queues responses for "METHOD /path".
func (s *Server) On(route string, responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[route] = append(s.responses[route], responses...)
}

// JSON queues a 200 response with body for route.
func (s *Server) JSON(route string, body interface{}) {
	s.On(route, Response{Status: http.StatusOK, Body: body})
}

// Requests returns a copy of everything received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count returns how many requests hit route ("METHOD /path").
func (s *Server) Count(route string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method+" "+r.Path == route {
			n++
		}
	}
	return n
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	rec := Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  map[string]string{},
		Raw:    raw,
		Header: r.Header.Clone(),
	}
	for k := range r.URL.Query() {
		rec.Query[k] = r.URL.Query().Get(k)
	}
	if len(raw) > 0 {
		json.Unmarshal(raw, &rec.Body)
	}

	route := r.Method + " " + r.URL.Path

	s.mu.Lock()
	s.requests = append(s.requests, rec)
	queue := s.responses[route]
	var resp Response
	switch len(queue) {
	case 0:
		resp = Response{Status: http.StatusNotFound, Body: map[string]string{"detail": "no response scripted"}}
	case 1:
		resp = queue[0]
	default:
		resp = queue[0]
		s.responses[route] = queue[1:]
	}
	s.mu.Unlock()

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if resp.RawBody != "" {
		io.WriteString(w, resp.RawBody)
		return
	}
	json.NewEncoder(w).Encode(resp.Body)
}
