package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClientInvalidURL(t *testing.T) {
	if _, err := NewClient("not a url"); err == nil {
		t.Error("Expected error for URL without scheme and host")
	}
}

func TestAnalyzeImage(t *testing.T) {
	answer := `{"faces":[{"label":"face","confidence":0.9,"box":{"x":0.1,"y":0.1,"w":0.2,"h":0.3}}],"description":"portrait"}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Invalid request body: %v", err)
		}
		if req["format"] != "json" {
			t.Errorf("Expected json format, got %v", req["format"])
		}
		resp := map[string]any{
			"model":   "test",
			"message": map[string]any{"role": "assistant", "content": answer},
			"done":    true,
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL + "/api/chat")
	if err != nil {
		t.Fatal(err)
	}

	result, err := c.AnalyzeImage(context.Background(), "minicpm-v4", "find faces", "aGVsbG8=")
	if err != nil {
		t.Fatalf("AnalyzeImage failed: %v", err)
	}
	if len(result.Faces) != 1 {
		t.Fatalf("Expected 1 face, got %d", len(result.Faces))
	}
	if result.Description != "portrait" {
		t.Errorf("Expected description portrait, got %q", result.Description)
	}
}

func TestAnalyzeImageBadBase64(t *testing.T) {
	c, _ := NewClient("http://localhost:1")
	if _, err := c.AnalyzeImage(context.Background(), "m", "p", "%%%"); err == nil {
		t.Error("Expected error for invalid base64")
	}
}
