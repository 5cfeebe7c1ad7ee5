package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhook_EmptyURL_SendsNothing(t *testing.T) {
	w := NewWebhook("")
	if err := w.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("empty-url send should succeed silently: %v", err)
	}
}

func TestWebhook_Send_PostsJSONBody(t *testing.T) {
	var received webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w := NewWebhook(server.URL)
	if err := w.Send(context.Background(), "order filled"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if received.Text != "order filled" {
		t.Fatalf("got text %q, want %q", received.Text, "order filled")
	}
}

func TestWebhook_Send_ErrorsOnServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	w := NewWebhook(server.URL)
	if err := w.Send(context.Background(), "test"); err == nil {
		t.Fatal("expected error on server failure")
	}
}
