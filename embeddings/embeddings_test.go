package embeddings

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func embedServer(t *testing.T, vector []float64) (*httptest.Server, *string) {
	t.Helper()
	var lastInput string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
		case "/api/embed":
			var req embedRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("bad embed request: %v", err)
			}
			lastInput = req.Input
			json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{vector}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &lastInput
}

func TestEmbed(t *testing.T) {
	srv, _ := embedServer(t, []float64{0.1, 0.2, 0.3})
	c := NewClient(srv.URL, "test-model")

	if !c.Available() {
		t.Error("Available = false for a healthy endpoint")
	}

	vector, err := c.Embed("some query")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vector) != 3 || vector[2] != 0.3 {
		t.Errorf("vector = %v", vector)
	}
}

func TestEmbedEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-model")
	if _, err := c.Embed("query"); err == nil {
		t.Error("expected error for empty embeddings response")
	}
}

func TestEmbedDocument(t *testing.T) {
	srv, lastInput := embedServer(t, []float64{1})
	c := NewClient(srv.URL, "test-model")

	page := []byte(`<html><head><script>var x = "tracker";</script></head>` +
		`<body><p>Visible text.</p></body></html>`)
	if _, err := c.EmbedDocument(page); err != nil {
		t.Fatalf("EmbedDocument failed: %v", err)
	}

	if strings.Contains(*lastInput, "tracker") {
		t.Errorf("script content sent to the embedder: %q", *lastInput)
	}
	if !strings.Contains(*lastInput, "Visible text.") {
		t.Errorf("visible text missing from embed input: %q", *lastInput)
	}
}

func TestAvailableDown(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "test-model")
	if c.Available() {
		t.Error("Available = true for an unreachable endpoint")
	}
}
