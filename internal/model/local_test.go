package model

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLocalInvokerSendsGenerateRequest(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(generateResponse{Response: "the reply"})
	}))
	defer srv.Close()

	inv := NewLocalInvoker(srv.URL, "llama3", 256, 5*time.Second)
	reply, err := inv.Invoke(context.Background(), "the prompt")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if reply != "the reply" {
		t.Errorf("reply = %q", reply)
	}

	if got.Model != "llama3" || got.Prompt != "the prompt" {
		t.Errorf("request body: %+v", got)
	}
	if got.Stream {
		t.Error("streaming must be disabled")
	}
	if got.Options.NumPredict != 256 {
		t.Errorf("num_predict = %d", got.Options.NumPredict)
	}
}

func TestLocalInvokerPropagatesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model melted", http.StatusInternalServerError)
	}))
	defer srv.Close()

	inv := NewLocalInvoker(srv.URL, "llama3", 0, 5*time.Second)
	if _, err := inv.Invoke(context.Background(), "p"); err == nil {
		t.Error("expected error on 500 response")
	}
}

func TestLocalInvokerRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The body must be consumed before blocking, or the server never
		// notices the client's disconnect and Close hangs on this handler.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	inv := NewLocalInvoker(srv.URL, "llama3", 0, time.Minute)
	if _, err := inv.Invoke(ctx, "p"); err == nil {
		t.Error("expected context deadline error")
	}
}

func TestNewInvokerRejectsUnknownProvider(t *testing.T) {
	if _, err := NewInvoker(Config{Provider: "astral"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
