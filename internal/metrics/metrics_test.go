package metrics

import (
	"io"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"

	"github.com/iseevalue/chat/internal/model"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestCountersExposed(t *testing.T) {
	m := New()
	m.Submitted()
	m.Submitted()
	m.Rejected("empty")
	m.Transitioned(model.MessageStatusSent)
	m.Transitioned(model.MessageStatusRead)
	m.Transitioned(model.MessageStatusRead)
	m.Replied()
	m.Pending(3)
	m.ClientsConnected(2)

	out := scrape(t, m)
	for _, want := range []string{
		"chat_messages_submitted_total 2",
		`chat_messages_rejected_total{reason="empty"} 1`,
		`chat_status_transitions_total{status="read"} 2`,
		`chat_status_transitions_total{status="sent"} 1`,
		"chat_assistant_replies_total 1",
		"chat_pipelines_pending 3",
		"chat_ws_clients 2",
		"go_goroutines",
		"go_gc_duration_seconds",
		"go_memstats_alloc_bytes",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRuntimeCollectorsRegistered(t *testing.T) {
	m := New()
	families, err := m.registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	if !names["go_goroutines"] || !names["go_info"] {
		t.Fatalf("go collector families missing: %v", names)
	}
	if runtime.GOOS == "linux" && !names["process_open_fds"] {
		t.Fatalf("process collector families missing: %v", names)
	}
}
