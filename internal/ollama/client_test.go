package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func tagsJSON(names ...string) []byte {
	type entry struct {
		Name string `json:"name"`
	}
	r := struct {
		Models []entry `json:"models"`
	}{}
	for _, n := range names {
		r.Models = append(r.Models, entry{Name: n})
	}
	b, _ := json.Marshal(r)
	return b
}

func TestIsRunning_Up(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(tagsJSON("qwen2.5:latest"))
	}))
	defer srv.Close()

	if !New(srv.URL).IsRunning(context.Background()) {
		t.Error("IsRunning() = false, want true")
	}
}

func TestIsRunning_Down(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	if New(srv.URL).IsRunning(context.Background()) {
		t.Error("IsRunning() = true, want false")
	}
}

func TestHasModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(tagsJSON("qwen2.5:latest", "llama3.1:8b"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	cases := map[string]bool{"qwen2.5": true, "llama3.1:8b": true, "llama3.1": true, "mistral": false}
	for name, want := range cases {
		if got := c.HasModel(context.Background(), name); got != want {
			t.Errorf("HasModel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestChat_SendsFormat(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(chatResponse{Message: Message{Role: "assistant", Content: `{"ok":true}`}, Done: true})
	}))
	defer srv.Close()

	out, err := New(srv.URL).Chat(context.Background(), ChatRequest{
		Model:    "qwen2.5",
		Messages: []Message{{Role: "user", Content: "hi"}},
		Format:   map[string]any{"type": "object"},
		Stream:   true,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out != `{"ok":true}` {
		t.Errorf("content = %q", out)
	}
	if got.Stream {
		t.Error("stream = true, want false")
	}
	if f, ok := got.Format.(map[string]any); !ok || f["type"] != "object" {
		t.Errorf("format = %#v", got.Format)
	}
}

func TestChat_ModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'nope' not found"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Chat(context.Background(), ChatRequest{Model: "nope"})
	if !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("err = %v, want ErrModelNotFound", err)
	}
}

func TestChat_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Chat(context.Background(), ChatRequest{Model: "m"})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusInternalServerError || se.Message != "boom" {
		t.Fatalf("err = %v, want StatusError 500 boom", err)
	}
}

func TestPullModel_Progress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"pulling manifest"}` + "\n" + `{"status":"downloading","total":10,"completed":5}` + "\n" + `{"status":"success"}` + "\n"))
	}))
	defer srv.Close()

	var seen []string
	err := New(srv.URL).PullModel(context.Background(), "qwen2.5", func(p PullProgress) {
		seen = append(seen, p.Status)
	})
	if err != nil {
		t.Fatalf("PullModel: %v", err)
	}
	if len(seen) != 3 || seen[2] != "success" {
		t.Errorf("progress = %v", seen)
	}
}

func TestPullModel_StreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"pull model manifest: file does not exist"}` + "\n"))
	}))
	defer srv.Close()

	if err := New(srv.URL).PullModel(context.Background(), "nope", nil); err == nil {
		t.Fatal("expected error")
	}
}
