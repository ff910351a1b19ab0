package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestFlows(t *testing.T, reply string, status int) (*Flows, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{"parts": []map[string]string{{"text": reply}}}},
			},
		})
	}))
	client := NewClient(srv.URL, "test-key", "test-model", 5*time.Second)
	return NewFlows(client), srv
}

func TestSummarizeSession(t *testing.T) {
	flows, srv := newTestFlows(t, `{"summary": "Advice on career timing."}`, http.StatusOK)
	defer srv.Close()

	out, err := flows.SummarizeSession(context.Background(), SessionSummaryInput{Transcript: "full transcript"})
	if err != nil {
		t.Fatalf("summarize error: %v", err)
	}
	if out.Summary != "Advice on career timing." {
		t.Fatalf("unexpected summary: %q", out.Summary)
	}
}

func TestSummarizeSessionRejectsEmptyTranscript(t *testing.T) {
	flows, srv := newTestFlows(t, `{"summary": "x"}`, http.StatusOK)
	defer srv.Close()

	if _, err := flows.SummarizeSession(context.Background(), SessionSummaryInput{}); err == nil {
		t.Fatalf("expected input validation error")
	}
}

func TestSummarizeSessionRejectsMalformedOutput(t *testing.T) {
	flows, srv := newTestFlows(t, `not json at all`, http.StatusOK)
	defer srv.Close()

	if _, err := flows.SummarizeSession(context.Background(), SessionSummaryInput{Transcript: "t"}); err == nil {
		t.Fatalf("expected generation error for malformed output")
	}
}

func TestGeneratePostCallReflections(t *testing.T) {
	reply := "```json\n{\"reflectionPrompts\": [\"a?\", \"b?\", \"c?\", \"d?\"]}\n```"
	flows, srv := newTestFlows(t, reply, http.StatusOK)
	defer srv.Close()

	out, err := flows.GeneratePostCallReflections(context.Background(), PostCallReflectionsInput{
		SessionThemes:  []string{"career", "saturn return"},
		SessionSummary: "summary",
	})
	if err != nil {
		t.Fatalf("reflections error: %v", err)
	}
	if len(out.ReflectionPrompts) != 4 {
		t.Fatalf("expected 4 prompts, got %d", len(out.ReflectionPrompts))
	}
}

func TestGeneratePostCallReflectionsRejectsTooFewPrompts(t *testing.T) {
	flows, srv := newTestFlows(t, `{"reflectionPrompts": ["only one?"]}`, http.StatusOK)
	defer srv.Close()

	_, err := flows.GeneratePostCallReflections(context.Background(), PostCallReflectionsInput{
		SessionThemes:  []string{"career"},
		SessionSummary: "summary",
	})
	if err == nil {
		t.Fatalf("expected output schema error")
	}
}

func TestGenerateRemoteFailurePropagates(t *testing.T) {
	flows, srv := newTestFlows(t, ``, http.StatusBadGateway)
	defer srv.Close()

	if _, err := flows.SummarizeSession(context.Background(), SessionSummaryInput{Transcript: "t"}); err == nil {
		t.Fatalf("expected remote failure to propagate")
	}
}
