// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-chi/chi/v5"
	"github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"

	"github.com/go-a2a/agentd/approval"
	"github.com/go-a2a/agentd/engine"
)

func fastBackOff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 3)
}

type recorder struct {
	mu      sync.Mutex
	prompts []PromptPayload
	updates []UpdatePayload
}

func (r *recorder) handle(t *testing.T, reply string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		data, _ := io.ReadAll(req.Body)
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &probe); err != nil {
			t.Errorf("webhook received malformed JSON: %v", err)
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		switch probe.Type {
		case TypePrompt:
			var p PromptPayload
			json.Unmarshal(data, &p)
			r.prompts = append(r.prompts, p)
			io.WriteString(w, reply)
		case TypeUpdate:
			var u UpdatePayload
			json.Unmarshal(data, &u)
			r.updates = append(r.updates, u)
		}
	}
}

func TestChannelSendPrompt(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handle(t, `{"messageId":"m-77"}`))
	defer srv.Close()

	ch := New(srv.URL, WithCallbackURL("https://agent.example.com/approvals/"), WithBackOff(fastBackOff))
	ref, err := ch.SendPrompt(context.Background(), "ops-room", approval.Prompt{
		ApprovalID: "01ABC",
		SessionID:  "s1",
		ToolName:   "shell",
		ToolInput:  map[string]any{"command": "ls"},
		Choices:    approval.Decisions,
	})
	if err != nil {
		t.Fatalf("SendPrompt() error: %v", err)
	}
	if diff := cmp.Diff(approval.MessageRef{Destination: "ops-room", MessageID: "m-77"}, ref); diff != "" {
		t.Errorf("MessageRef mismatch (-want +got):\n%s", diff)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.prompts) != 1 {
		t.Fatalf("prompts received = %d, want 1", len(rec.prompts))
	}
	got := rec.prompts[0]
	wantButtons := []Button{
		{Label: "Approve once", Decision: "approve", URL: "https://agent.example.com/approvals/01ABC?decision=approve"},
		{Label: "Always approve this session", Decision: "always", URL: "https://agent.example.com/approvals/01ABC?decision=always"},
		{Label: "Deny", Decision: "deny", URL: "https://agent.example.com/approvals/01ABC?decision=deny"},
	}
	if diff := cmp.Diff(wantButtons, got.Buttons); diff != "" {
		t.Errorf("buttons mismatch (-want +got):\n%s", diff)
	}
	if got.Destination != "ops-room" || got.Tool != "shell" || got.ApprovalID != "01ABC" {
		t.Errorf("prompt payload = %+v", got)
	}
}

func TestChannelMessageIDFallback(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handle(t, ``))
	defer srv.Close()

	ref, err := New(srv.URL).SendPrompt(context.Background(), "d", approval.Prompt{ApprovalID: "01XYZ"})
	if err != nil {
		t.Fatalf("SendPrompt() error: %v", err)
	}
	if ref.MessageID != "01XYZ" {
		t.Errorf("MessageID = %q, want approval id fallback", ref.MessageID)
	}
}

func TestChannelRetries(t *testing.T) {
	tests := map[string]struct {
		status    int
		wantCalls int32
	}{
		"5xx retried": {
			status:    http.StatusBadGateway,
			wantCalls: 4,
		},
		"4xx not retried": {
			status:    http.StatusForbidden,
			wantCalls: 1,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			ch := New(srv.URL, WithBackOff(fastBackOff))
			err := ch.UpdateMessage(context.Background(), approval.MessageRef{MessageID: "m"}, approval.OutcomeDenied)
			if err == nil {
				t.Fatalf("UpdateMessage() error = nil, want failure")
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("webhook calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

type fakeResolver struct {
	pending map[string]bool
	got     []approval.Decision
}

func (f *fakeResolver) ResolveDecision(id string, d approval.Decision) bool {
	if !f.pending[id] {
		return false
	}
	delete(f.pending, id)
	f.got = append(f.got, d)
	return true
}

func TestHandler(t *testing.T) {
	tests := map[string]struct {
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		"json body": {
			path:       "/approvals/a1",
			body:       `{"decision":"always"}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"approvalId":"a1","decision":"always","resolved":true}`,
		},
		"query decision": {
			path:       "/approvals/a1?decision=y",
			wantStatus: http.StatusOK,
			wantBody:   `{"approvalId":"a1","decision":"approve","resolved":true}`,
		},
		"unknown id": {
			path:       "/approvals/nope",
			body:       `{"decision":"deny"}`,
			wantStatus: http.StatusNotFound,
			wantBody:   `{"approvalId":"nope","resolved":false,"error":"approval not found or already resolved"}`,
		},
		"bad decision": {
			path:       "/approvals/a1",
			body:       `{"decision":"perhaps"}`,
			wantStatus: http.StatusBadRequest,
		},
		"malformed body": {
			path:       "/approvals/a1",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			res := &fakeResolver{pending: map[string]bool{"a1": true}}
			r := chi.NewRouter()
			r.Post("/approvals/{id}", Handler(res, nil).ServeHTTP)

			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.wantStatus, rr.Body)
			}
			if tt.wantBody != "" {
				if diff := cmp.Diff(tt.wantBody, strings.TrimSpace(rr.Body.String())); diff != "" {
					t.Errorf("body mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestHandlerDuplicateIsNoop(t *testing.T) {
	res := &fakeResolver{pending: map[string]bool{"a1": true}}
	r := chi.NewRouter()
	r.Post("/approvals/{id}", Handler(res, nil).ServeHTTP)

	for i, want := range []int{http.StatusOK, http.StatusNotFound} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/approvals/a1", strings.NewReader(`{"decision":"approve"}`)))
		if rr.Code != want {
			t.Errorf("call %d status = %d, want %d", i, rr.Code, want)
		}
	}
	if diff := cmp.Diff([]approval.Decision{approval.DecisionApprove}, res.got); diff != "" {
		t.Errorf("resolutions mismatch (-want +got):\n%s", diff)
	}
}

// TestGateOverWebhook drives a full round trip: the gate posts a prompt, the
// webhook receiver clicks the "always" button, and the gate returns approved.
func TestGateOverWebhook(t *testing.T) {
	var gate *approval.Gate

	router := chi.NewRouter()
	router.Post("/approvals/{id}", func(w http.ResponseWriter, r *http.Request) {
		Handler(gate, nil).ServeHTTP(w, r)
	})
	agent := httptest.NewServer(router)
	defer agent.Close()

	rec := &recorder{}
	clicked := make(chan string, 1)
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.handle(t, "").ServeHTTP(w, r)
		rec.mu.Lock()
		defer rec.mu.Unlock()
		if n := len(rec.prompts); n > 0 && len(rec.updates) == 0 {
			select {
			case clicked <- rec.prompts[n-1].Buttons[1].URL:
			default:
			}
		}
	}))
	defer receiver.Close()

	ch := New(receiver.URL, WithCallbackURL(agent.URL+"/approvals"), WithBackOff(fastBackOff))
	gate = approval.NewGate(ch, approval.WithDefaultDestination("owner"))

	go func() {
		u := <-clicked
		resp, err := http.Post(u, "application/json", nil)
		if err != nil {
			t.Errorf("click failed: %v", err)
			return
		}
		resp.Body.Close()
	}()

	ok, err := gate.RequestApproval(context.Background(), engine.ApprovalRequest{SessionID: "s1", ToolName: "shell"})
	if err != nil || !ok {
		t.Fatalf("RequestApproval() = %v, %v; want approved", ok, err)
	}
	if !gate.Remembered("s1") {
		t.Errorf("always decision not memoized")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.updates) != 1 || rec.updates[0].Outcome != string(approval.OutcomeApprovedAlways) {
		t.Errorf("updates = %+v, want one approved_always update", rec.updates)
	}
}
