package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"transponster/internal/api"
	"transponster/internal/mapping"
	"transponster/internal/workflow"
)

func TestNewClientEmptyBind(t *testing.T) {
	client, err := api.NewClient("", "secret")
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if client != nil {
		t.Fatal("expected nil client for empty bind")
	}
	if _, err := client.Status(context.Background()); !errors.Is(err, api.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClientSendsTokenAndDecodesStatus(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/api/status" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(api.DaemonStatus{Running: true, PID: 42, MappingCount: 3})
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, "secret")
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status error: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("authorization header = %q", gotAuth)
	}
	if !status.Running || status.PID != 42 || status.MappingCount != 3 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestClientPutMappingAndNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			var req api.PutMappingRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode: %v", err)
			}
			_ = json.NewEncoder(w).Encode(api.MappingResponse{Mapping: api.Mapping{SourceFileID: "F 1", DocumentID: req.DocumentID}})
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "mapping not found"})
		}
	}))
	defer srv.Close()

	client, _ := api.NewClient(srv.URL, "")
	got, err := client.PutMapping(context.Background(), "F 1", "doc-1")
	if err != nil {
		t.Fatalf("PutMapping error: %v", err)
	}
	if got.DocumentID != "doc-1" {
		t.Fatalf("document id = %q", got.DocumentID)
	}

	_, err = client.Mapping(context.Background(), "missing")
	if !api.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) || statusErr.Message != "mapping not found" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestIsUnavailableOnRefusedConnection(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.Listener.Addr().String()
	srv.Close()

	client, _ := api.NewClient(addr, "")
	_, err := client.Status(context.Background())
	if !api.IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestFromStatusSummary(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("EET", 2*3600))
	got := api.FromStatusSummary(workflow.StatusSummary{Running: true, Batches: 2, FilesFailed: 1, LastBatchAt: at})
	if !got.Running || got.Batches != 2 || got.FilesFailed != 1 {
		t.Fatalf("unexpected conversion %+v", got)
	}
	if got.LastBatchAt != "2026-03-01T10:00:00.000Z" {
		t.Fatalf("lastBatchAt = %q", got.LastBatchAt)
	}
	if empty := api.FromStatusSummary(workflow.StatusSummary{}); empty.LastBatchAt != "" {
		t.Fatalf("zero time should be omitted, got %q", empty.LastBatchAt)
	}
}

func TestFromMappingsNeverNil(t *testing.T) {
	if got := api.FromMappings(nil); got == nil {
		t.Fatal("expected empty slice")
	}
	got := api.FromMappings([]mapping.Mapping{{SourceFileID: "F1", DocumentID: "D1"}})
	if len(got) != 1 || got[0].SourceFileID != "F1" || got[0].CreatedAt != "" {
		t.Fatalf("unexpected mappings %+v", got)
	}
}
