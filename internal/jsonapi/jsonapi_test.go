package jsonapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/rcaerr"
)

type echo struct {
	Text string `json:"text"`
}

func TestPostDecodesReply(t *testing.T) {
	var gotHeader, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("x-api-key")
		gotType = r.Header.Get("Content-Type")
		var in echo
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(echo{Text: strings.ToUpper(in.Text)})
	}))
	defer srv.Close()

	var out echo
	h := http.Header{}
	h.Set("x-api-key", "secret")
	if err := Post(context.Background(), srv.Client(), "test", srv.URL, h, echo{Text: "hi"}, &out); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if out.Text != "HI" {
		t.Errorf("out = %q", out.Text)
	}
	if gotHeader != "secret" || gotType != "application/json" {
		t.Errorf("headers = %q %q", gotHeader, gotType)
	}
}

func TestPostStatusIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	err := Post(context.Background(), srv.Client(), "embed", srv.URL, nil, echo{}, &echo{})
	if !errors.Is(err, rcaerr.ErrProvider) {
		t.Fatalf("err = %v, want provider error", err)
	}
	if !strings.Contains(err.Error(), "status 429") || !strings.Contains(err.Error(), "RESOURCE_EXHAUSTED: Quota exceeded") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestPostTransportIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := Post(context.Background(), http.DefaultClient, "chat", url, nil, echo{}, nil)
	if !errors.Is(err, rcaerr.ErrNetwork) {
		t.Errorf("err = %v, want network error", err)
	}
}

func TestPostBadJSONIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	err := Post(context.Background(), srv.Client(), "chat", srv.URL, nil, echo{}, &echo{})
	if !errors.Is(err, rcaerr.ErrProvider) {
		t.Errorf("err = %v, want provider error", err)
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"error":{"message":"API key invalid","status":"PERMISSION_DENIED"}}`, "PERMISSION_DENIED: API key invalid"},
		{`{"error":{"message":"bad model"}}`, "bad model"},
		{`{"error":"model \"llama9\" not found"}`, `model "llama9" not found`},
		{"  upstream timeout \n", "upstream timeout"},
		{"", "empty response"},
		{strings.Repeat("x", 400), strings.Repeat("x", 300) + "..."},
	}
	for _, tt := range tests {
		if got := Message([]byte(tt.body)); got != tt.want {
			t.Errorf("Message(%.20q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}
