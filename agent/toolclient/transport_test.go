package toolclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPTransportCallPostsToToolPath(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotAuth string
	var gotArgs map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotArgs); err != nil {
			t.Errorf("decode args: %v", err)
		}
		fmt.Fprint(w, `{"current_year_days": 12}`)
	}))
	t.Cleanup(server.Close)

	transport, err := NewHTTPTransport(Config{BaseURL: server.URL, AuthToken: "secret"})
	if err != nil {
		t.Fatalf("NewHTTPTransport() error = %v", err)
	}

	payload, err := transport.Call(context.Background(), ToolWarrantyDays, map[string]any{"vin": "XTA21099012345678"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	if gotPath != "/tools/warranty_days" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotArgs["vin"] != "XTA21099012345678" {
		t.Fatalf("unexpected args %v", gotArgs)
	}
	if payload["current_year_days"] != float64(12) {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestHTTPTransportStatusClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		status        int
		wantTransient bool
	}{
		{name: "not found is permanent", status: http.StatusNotFound, wantTransient: false},
		{name: "bad request is permanent", status: http.StatusBadRequest, wantTransient: false},
		{name: "unprocessable is permanent", status: http.StatusUnprocessableEntity, wantTransient: false},
		{name: "conflict is permanent", status: http.StatusConflict, wantTransient: false},
		{name: "throttling is transient", status: http.StatusTooManyRequests, wantTransient: true},
		{name: "server error is transient", status: http.StatusInternalServerError, wantTransient: true},
		{name: "bad gateway is transient", status: http.StatusBadGateway, wantTransient: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			t.Cleanup(server.Close)

			transport, err := NewHTTPTransport(Config{BaseURL: server.URL})
			if err != nil {
				t.Fatalf("NewHTTPTransport() error = %v", err)
			}

			_, err = transport.Call(context.Background(), ToolWarrantyDays, nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if IsTransient(err) != tc.wantTransient {
				t.Fatalf("status %d: transient = %v, want %v (err: %v)", tc.status, IsTransient(err), tc.wantTransient, err)
			}
		})
	}
}

func TestHTTPTransportMalformedJSONIsPermanent(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json at all")
	}))
	t.Cleanup(server.Close)

	transport, err := NewHTTPTransport(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewHTTPTransport() error = %v", err)
	}

	_, err = transport.Call(context.Background(), ToolComplianceRAG, map[string]any{"query": "rights"})
	if !IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestHTTPTransportUnreachableIsTransient(t *testing.T) {
	t.Parallel()

	transport, err := NewHTTPTransport(Config{BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("NewHTTPTransport() error = %v", err)
	}

	_, err = transport.Call(context.Background(), ToolWarrantyDays, nil)
	if !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestHTTPTransportRejectsBadBaseURL(t *testing.T) {
	t.Parallel()

	if _, err := NewHTTPTransport(Config{BaseURL: "   "}); err == nil {
		t.Fatal("expected error for empty base url")
	}
	if _, err := NewHTTPTransport(Config{BaseURL: "::bad::"}); err == nil {
		t.Fatal("expected error for malformed base url")
	}
}

func TestHTTPTransportPing(t *testing.T) {
	t.Parallel()

	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	t.Cleanup(server.Close)

	transport, err := NewHTTPTransport(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewHTTPTransport() error = %v", err)
	}

	if err := transport.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if gotPath != "/health" {
		t.Fatalf("unexpected path %q", gotPath)
	}
}
