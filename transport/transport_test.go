package transport

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer answers every request with a small JSON body and records the
// headers it saw.
func echoServer(t *testing.T) (*httptest.Server, chan http.Header) {
	t.Helper()
	seen := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Clone()
		io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"reply":"pong"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestHeaders(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		reqSet  map[string]string
		check   func(t *testing.T, h http.Header)
	}{
		{
			name: "Generated Request ID",
			check: func(t *testing.T, h http.Header) {
				_, err := uuid.Parse(h.Get(RequestIDHeader))
				assert.NoError(t, err)
			},
		},
		{
			name:    "Configured Request ID Wins",
			headers: map[string]string{RequestIDHeader: "fixed-id"},
			check: func(t *testing.T, h http.Header) {
				assert.Equal(t, "fixed-id", h.Get(RequestIDHeader))
			},
		},
		{
			name:    "Configured Header Overrides Request",
			headers: map[string]string{"Content-Type": "application/vnd.aperture+json"},
			reqSet:  map[string]string{"Content-Type": "application/json"},
			check: func(t *testing.T, h http.Header) {
				assert.Equal(t, []string{"application/vnd.aperture+json"}, h.Values("Content-Type"))
			},
		},
		{
			name:    "Extra Header Added",
			headers: map[string]string{"Authorization": "Bearer s3cret"},
			reqSet:  map[string]string{"Content-Type": "application/json"},
			check: func(t *testing.T, h http.Header) {
				assert.Equal(t, "Bearer s3cret", h.Get("Authorization"))
				assert.Equal(t, "application/json", h.Get("Content-Type"))
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv, seen := echoServer(t)
			client := New(Options{Headers: c.headers})

			req, err := http.NewRequest(http.MethodPost, srv.URL+"/agent/chat", strings.NewReader(`{}`))
			require.NoError(t, err)
			for k, v := range c.reqSet {
				req.Header.Set(k, v)
			}

			resp, err := client.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			c.check(t, <-seen)

			// The caller's request is not mutated.
			assert.Empty(t, req.Header.Get(RequestIDHeader))
		})
	}
}

func TestVerboseDump(t *testing.T) {
	srv, _ := echoServer(t)

	var buf bytes.Buffer
	client := New(Options{
		Verbose: true,
		Logger:  log.New(&buf, "", 0),
		Headers: map[string]string{RequestIDHeader: "dump-id"},
	})

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/agent/chat", strings.NewReader(`{"message":"ping"}`))
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// The response body is still readable after being logged.
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"reply":"pong"}`, string(body))

	dump := buf.String()
	assert.Contains(t, dump, ">>> POST "+srv.URL+"/agent/chat")
	assert.Contains(t, dump, ">>> X-Request-Id: [dump-id]")
	assert.Contains(t, dump, `"message": "ping"`)
	assert.Contains(t, dump, "<<< HTTP/1.1 200 OK")
	assert.Contains(t, dump, `"reply": "pong"`)
}

func TestVerboseDumpTransportError(t *testing.T) {
	srv, _ := echoServer(t)
	url := srv.URL
	srv.Close()

	var buf bytes.Buffer
	client := New(Options{Verbose: true, Logger: log.New(&buf, "", 0)})
	_, err := client.Get(url)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "<<< error:")
}

func TestJoinURL(t *testing.T) {
	cases := []struct {
		base, rel, want string
	}{
		{"http://localhost:8000", "/agent/chat", "http://localhost:8000/agent/chat"},
		{"http://localhost:8000/", "agent/chat", "http://localhost:8000/agent/chat"},
		{"http://host/prefix", "/api/image_exif?folder=a", "http://host/prefix/api/image_exif?folder=a"},
		{"http://host", "https://other/x", "https://other/x"},
	}
	for _, c := range cases {
		t.Run(c.rel, func(t *testing.T) {
			got, err := JoinURL(c.base, c.rel)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}
