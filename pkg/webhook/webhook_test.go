package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/secwatch/accesswatch/pkg/engine"
	"github.com/secwatch/accesswatch/pkg/output"
)

func newTestReport() *output.Report {
	return &output.Report{
		Summary: output.Summary{
			EntriesAnalyzed: 120,
			ExcludedRows:    3,
			TotalFindings:   1,
			High:            1,
		},
		Findings: []engine.Finding{
			{
				ID:       "test-finding",
				Rule:     engine.RuleVolumeSpike,
				Severity: engine.SeverityHigh,
				ActorID:  "E100",
				Window:   engine.Window{Day: "2026-07-15"},
				Message:  "450 record(s) transferred in one day (limit 100)",
			},
		},
		Counts: map[engine.RuleID]int{engine.RuleVolumeSpike: 40},
		Metadata: output.Metadata{
			ConfigFile: "config.yaml",
			Sources:    []string{"export.csv"},
			Period:     "202607",
			AnalyzedAt: time.Now(),
			Duration:   time.Second,
		},
	}
}

func TestClient_Send_Success(t *testing.T) {
	var receivedBody []byte
	var receivedContentType string
	var receivedAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedContentType = r.Header.Get("Content-Type")
		receivedAuth = r.Header.Get("Authorization")
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := NewClient()
	resp := client.Send(context.Background(), newTestReport(), SendOptions{
		URL:   server.URL,
		Token: "secret-token",
	})

	if !resp.Success() {
		t.Errorf("expected success, got error: %v", resp.Error)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if resp.Body != `{"status":"ok"}` {
		t.Errorf("unexpected body: %s", resp.Body)
	}
	if receivedContentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", receivedContentType)
	}
	if receivedAuth != "Bearer secret-token" {
		t.Errorf("expected bearer auth, got %q", receivedAuth)
	}

	var decoded output.Report
	if err := json.Unmarshal(receivedBody, &decoded); err != nil {
		t.Fatalf("payload is not a JSON report: %v", err)
	}
	if decoded.Summary.TotalFindings != 1 {
		t.Errorf("payload TotalFindings = %d, want 1", decoded.Summary.TotalFindings)
	}
	if decoded.Findings[0].ActorID != "E100" {
		t.Errorf("payload finding actor = %q, want E100", decoded.Findings[0].ActorID)
	}
}

func TestClient_Send_NoTokenNoAuthHeader(t *testing.T) {
	var receivedAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp := NewClient().Send(context.Background(), newTestReport(), SendOptions{URL: server.URL})

	if !resp.Success() {
		t.Errorf("expected success, got error: %v", resp.Error)
	}
	if receivedAuth != "" {
		t.Errorf("expected no auth header, got %q", receivedAuth)
	}
}

func TestClient_Send_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	resp := NewClient().Send(context.Background(), newTestReport(), SendOptions{URL: server.URL})

	if resp.Success() {
		t.Error("expected failure for 500 response")
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", resp.StatusCode)
	}
	if resp.Error == nil {
		t.Error("expected error to be set")
	}
}

func TestClient_Send_ConnectionRefused(t *testing.T) {
	resp := NewClient().Send(context.Background(), newTestReport(), SendOptions{
		URL: "http://127.0.0.1:1/never",
	})

	if resp.Success() {
		t.Error("expected failure for unreachable endpoint")
	}
	if resp.Error == nil {
		t.Error("expected error to be set")
	}
}

func TestClient_Send_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp := NewClient().Send(context.Background(), newTestReport(), SendOptions{
		URL:     server.URL,
		Timeout: 20 * time.Millisecond,
	})

	if resp.Success() {
		t.Error("expected failure for timed-out request")
	}
}

func TestResponse_Success(t *testing.T) {
	tests := []struct {
		status int
		err    error
		want   bool
	}{
		{200, nil, true},
		{204, nil, true},
		{299, nil, true},
		{300, nil, false},
		{404, nil, false},
		{200, context.Canceled, false},
	}
	for _, tt := range tests {
		r := &Response{StatusCode: tt.status, Error: tt.err}
		if got := r.Success(); got != tt.want {
			t.Errorf("Success() with status %d err %v = %v, want %v", tt.status, tt.err, got, tt.want)
		}
	}
}
