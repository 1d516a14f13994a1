// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// toolThenAnswer calls tool once per user message and then answers with the tool output.
func toolThenAnswer(tool string) ProviderFunc {
	return func(ctx context.Context, req *CompletionRequest) (*Completion, error) {
		last := req.Messages[len(req.Messages)-1]
		if last.Role == ChatRoleTool {
			return &Completion{Content: "answer: " + last.Content, Usage: Usage{InputTokens: 3, OutputTokens: 2}}, nil
		}
		return &Completion{
			ToolCalls: []ToolCall{{ID: "call-1", Name: tool, Input: map[string]any{"path": "README.md"}}},
			Usage:     Usage{InputTokens: 5, OutputTokens: 1},
		}, nil
	}
}

type countingTool struct {
	spec  ToolSpec
	calls atomic.Int32
}

func (t *countingTool) Spec() ToolSpec { return t.spec }

func (t *countingTool) Call(ctx context.Context, input map[string]any) (string, error) {
	t.calls.Add(1)
	return fmt.Sprintf("%s ran on %v", t.spec.Name, input["path"]), nil
}

func TestLoopToolRound(t *testing.T) {
	read := &countingTool{spec: ToolSpec{Name: "read_file", ReadOnly: true}}
	var rounds []int
	loop := NewLoop(toolThenAnswer("read_file"), NewMapRegistry(read), WithModel("test-model"), WithCallbacks(Callbacks{
		Progress: ProgressFunc(func(ctx context.Context, ev ProgressEvent) {
			rounds = append(rounds, ev.Round)
		}),
	}))

	res, err := loop.Run(context.Background(), Request{SessionID: "s1", Text: "Summarize this repo"})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := &Result{
		Content:    "answer: read_file ran on README.md",
		Usage:      Usage{InputTokens: 8, OutputTokens: 3},
		StopReason: StopEndTurn,
		Model:      "test-model",
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("Run() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2}, rounds); diff != "" {
		t.Errorf("progress rounds mismatch (-want +got):\n%s", diff)
	}
	if got := read.calls.Load(); got != 1 {
		t.Errorf("tool calls = %d, want 1", got)
	}

	roles := []ChatRole{}
	for _, m := range loop.History("s1") {
		roles = append(roles, m.Role)
	}
	wantRoles := []ChatRole{ChatRoleUser, ChatRoleAssistant, ChatRoleTool, ChatRoleAssistant}
	if diff := cmp.Diff(wantRoles, roles); diff != "" {
		t.Errorf("history roles mismatch (-want +got):\n%s", diff)
	}
}

func TestLoopSensitiveTool(t *testing.T) {
	tests := map[string]struct {
		approval  ApprovalCallback
		wantCalls int32
		wantText  string
	}{
		"approved": {
			approval:  ApprovalFunc(func(context.Context, ApprovalRequest) (bool, error) { return true, nil }),
			wantCalls: 1,
			wantText:  "shell ran on README.md",
		},
		"denied": {
			approval:  ApprovalFunc(func(context.Context, ApprovalRequest) (bool, error) { return false, nil }),
			wantCalls: 0,
			wantText:  `error: user denied "shell"`,
		},
		"approver error": {
			approval:  ApprovalFunc(func(context.Context, ApprovalRequest) (bool, error) { return false, errors.New("no destination") }),
			wantCalls: 0,
			wantText:  `error: user denied "shell": no destination`,
		},
		"no approver": {
			wantCalls: 0,
			wantText:  `error: tool "shell" requires approval and no approver is configured`,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			shell := &countingTool{spec: ToolSpec{Name: "shell", Sensitive: true}}
			var seen []ApprovalRequest
			cb := Callbacks{}
			if tt.approval != nil {
				cb.Approval = ApprovalFunc(func(ctx context.Context, req ApprovalRequest) (bool, error) {
					seen = append(seen, req)
					return tt.approval.RequestApproval(ctx, req)
				})
			}
			loop := NewLoop(toolThenAnswer("shell"), NewMapRegistry(shell), WithCallbacks(cb))

			res, err := loop.Run(context.Background(), Request{SessionID: "s1", Text: "run it"})
			if err != nil {
				t.Fatalf("Run() error: %v", err)
			}
			if got := shell.calls.Load(); got != tt.wantCalls {
				t.Errorf("tool calls = %d, want %d", got, tt.wantCalls)
			}
			if diff := cmp.Diff("answer: "+tt.wantText, res.Content); diff != "" {
				t.Errorf("Content mismatch (-want +got):\n%s", diff)
			}
			if tt.approval != nil {
				want := []ApprovalRequest{{SessionID: "s1", ToolName: "shell", ToolInput: map[string]any{"path": "README.md"}}}
				if diff := cmp.Diff(want, seen); diff != "" {
					t.Errorf("approval requests mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestLoopReadOnly(t *testing.T) {
	write := &countingTool{spec: ToolSpec{Name: "write_file"}}
	read := &countingTool{spec: ToolSpec{Name: "read_file", ReadOnly: true}}

	var offered []string
	provider := ProviderFunc(func(ctx context.Context, req *CompletionRequest) (*Completion, error) {
		offered = offered[:0]
		for _, s := range req.Tools {
			offered = append(offered, s.Name)
		}
		return toolThenAnswer("write_file")(ctx, req)
	})
	loop := NewLoop(provider, NewMapRegistry(write, read))

	res, err := loop.Run(context.Background(), Request{SessionID: "s1", Text: "research", ReadOnly: true})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if got := write.calls.Load(); got != 0 {
		t.Errorf("write tool ran %d times in read-only mode", got)
	}
	if diff := cmp.Diff([]string{"read_file"}, offered); diff != "" {
		t.Errorf("offered tools mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(res.Content, "read-only") {
		t.Errorf("Content = %q, want read-only refusal", res.Content)
	}
}

func TestLoopPrivilegedTool(t *testing.T) {
	tests := map[string]struct {
		privileged PrivilegedOp
		wantCalls  int32
	}{
		"no callback refuses": {
			wantCalls: 0,
		},
		"authorized": {
			privileged: PrivilegedOpFunc(func(context.Context, PrivilegedRequest) (bool, error) { return true, nil }),
			wantCalls:  1,
		},
		"rejected": {
			privileged: PrivilegedOpFunc(func(context.Context, PrivilegedRequest) (bool, error) { return false, nil }),
			wantCalls:  0,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rebuild := &countingTool{spec: ToolSpec{Name: "rebuild", Privileged: true}}
			loop := NewLoop(toolThenAnswer("rebuild"), NewMapRegistry(rebuild))
			_, err := loop.Run(context.Background(), Request{
				SessionID: "s1",
				Text:      "rebuild yourself",
				Callbacks: Callbacks{Privileged: tt.privileged},
			})
			if err != nil {
				t.Fatalf("Run() error: %v", err)
			}
			if got := rebuild.calls.Load(); got != tt.wantCalls {
				t.Errorf("tool calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestLoopMaxIterations(t *testing.T) {
	var calls atomic.Int32
	provider := ProviderFunc(func(ctx context.Context, req *CompletionRequest) (*Completion, error) {
		n := calls.Add(1)
		return &Completion{
			Content:   fmt.Sprintf("round %d", n),
			ToolCalls: []ToolCall{{ID: "c", Name: "read_file"}},
		}, nil
	})
	loop := NewLoop(provider, NewMapRegistry(&countingTool{spec: ToolSpec{Name: "read_file"}}), WithMaxIterations(3))

	res, err := loop.Run(context.Background(), Request{SessionID: "s1", Text: "loop forever"})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("provider calls = %d, want 3", got)
	}
	if res.StopReason != StopMaxIterations {
		t.Errorf("StopReason = %q, want %q", res.StopReason, StopMaxIterations)
	}
	if res.Content != "round 3" {
		t.Errorf("Content = %q, want last round content", res.Content)
	}
}

func TestLoopCancellation(t *testing.T) {
	t.Run("before first round", func(t *testing.T) {
		var calls atomic.Int32
		provider := ProviderFunc(func(ctx context.Context, req *CompletionRequest) (*Completion, error) {
			calls.Add(1)
			return &Completion{Content: "done"}, nil
		})
		h := NewCancellationHandle()
		h.Cancel()

		_, err := NewLoop(provider, nil).Run(context.Background(), Request{SessionID: "s1", Text: "x", Cancel: h})
		if !errors.Is(err, ErrCanceled) {
			t.Fatalf("Run() error = %v, want ErrCanceled", err)
		}
		if calls.Load() != 0 {
			t.Errorf("provider was called after cancellation")
		}
	})

	t.Run("observed at round boundary", func(t *testing.T) {
		h := NewCancellationHandle()
		tool := NewTool(ToolSpec{Name: "slow"}, func(ctx context.Context, input map[string]any) (string, error) {
			h.Cancel()
			return "finished anyway", nil
		})
		var calls atomic.Int32
		provider := ProviderFunc(func(ctx context.Context, req *CompletionRequest) (*Completion, error) {
			calls.Add(1)
			return toolThenAnswer("slow")(ctx, req)
		})
		loop := NewLoop(provider, NewMapRegistry(tool))

		_, err := loop.Run(context.Background(), Request{SessionID: "s1", Text: "x", Cancel: h})
		if !errors.Is(err, ErrCanceled) {
			t.Fatalf("Run() error = %v, want ErrCanceled", err)
		}
		if got := calls.Load(); got != 1 {
			t.Errorf("provider calls = %d, want 1", got)
		}
		hist := loop.History("s1")
		if last := hist[len(hist)-1]; last.Content != "finished anyway" {
			t.Errorf("in-flight tool result missing from history: %+v", last)
		}
	})
}

func TestLoopProviderError(t *testing.T) {
	boom := errors.New("rate limited")
	provider := ProviderFunc(func(context.Context, *CompletionRequest) (*Completion, error) { return nil, boom })

	_, err := NewLoop(provider, nil).Run(context.Background(), Request{SessionID: "s1", Text: "x"})
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
}

func TestLoopMessageQueue(t *testing.T) {
	queued := []string{"also check the tests"}
	loop := NewLoop(toolThenAnswer("read_file"), NewMapRegistry(&countingTool{spec: ToolSpec{Name: "read_file"}}))

	_, err := loop.Run(context.Background(), Request{
		SessionID: "s1",
		Text:      "x",
		Callbacks: Callbacks{Queue: MessageQueueFunc(func(ctx context.Context, sessionID string) []string {
			out := queued
			queued = nil
			return out
		})},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	var users []string
	for _, m := range loop.History("s1") {
		if m.Role == ChatRoleUser {
			users = append(users, m.Content)
		}
	}
	if diff := cmp.Diff([]string{"x", "also check the tests"}, users); diff != "" {
		t.Errorf("user messages mismatch (-want +got):\n%s", diff)
	}
}

func TestLoopCallbackOverride(t *testing.T) {
	shell := &countingTool{spec: ToolSpec{Name: "shell", Sensitive: true}}
	deny := ApprovalFunc(func(context.Context, ApprovalRequest) (bool, error) { return false, nil })
	allow := ApprovalFunc(func(context.Context, ApprovalRequest) (bool, error) { return true, nil })
	loop := NewLoop(toolThenAnswer("shell"), NewMapRegistry(shell), WithCallbacks(Callbacks{Approval: deny}))

	if _, err := loop.Run(context.Background(), Request{SessionID: "s1", Text: "x", Callbacks: Callbacks{Approval: allow}}); err != nil {
		t.Fatal(err)
	}
	if got := shell.calls.Load(); got != 1 {
		t.Errorf("per-call approval override ignored: tool calls = %d", got)
	}
}

func TestLoopSessionIsolation(t *testing.T) {
	provider := ProviderFunc(func(ctx context.Context, req *CompletionRequest) (*Completion, error) {
		last := req.Messages[len(req.Messages)-1]
		return &Completion{Content: "re: " + last.Content, Usage: Usage{InputTokens: len(req.Messages), OutputTokens: 1}, Cost: 0.5}, nil
	})
	loop := NewLoop(provider, nil)

	var wg sync.WaitGroup
	for _, id := range []string{"alpha", "beta"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				if _, err := loop.Run(context.Background(), Request{SessionID: id, Text: fmt.Sprintf("%s-%d", id, i)}); err != nil {
					t.Errorf("Run(%s) error: %v", id, err)
				}
			}
		}(id)
	}
	wg.Wait()

	for _, id := range []string{"alpha", "beta"} {
		hist := loop.History(id)
		if len(hist) != 10 {
			t.Errorf("%s history length = %d, want 10", id, len(hist))
		}
		for _, m := range hist {
			if !strings.Contains(m.Content, id) {
				t.Errorf("%s history contains foreign message %q", id, m.Content)
			}
		}
		usage, cost := loop.SessionUsage(id)
		// Inputs grow 1,3,5,7,9 with the session's own history only.
		want := Usage{InputTokens: 25, OutputTokens: 5}
		if diff := cmp.Diff(want, usage); diff != "" {
			t.Errorf("%s usage mismatch (-want +got):\n%s", id, diff)
		}
		if cost != 2.5 {
			t.Errorf("%s cost = %v, want 2.5", id, cost)
		}
	}
}

func TestLoopCloseSession(t *testing.T) {
	loop := NewLoop(EchoProvider{}, nil)
	ctx := context.Background()

	for _, id := range []string{"kept", "closed"} {
		if _, err := loop.Run(ctx, Request{SessionID: id, Text: "hello " + id}); err != nil {
			t.Fatalf("Run(%s) error: %v", id, err)
		}
	}
	if got := loop.Sessions(); got != 2 {
		t.Fatalf("Sessions() = %d, want 2", got)
	}

	loop.CloseSession("closed")
	loop.CloseSession("never-opened")

	if got := loop.Sessions(); got != 1 {
		t.Errorf("Sessions() after close = %d, want 1", got)
	}
	if hist := loop.History("closed"); hist != nil {
		t.Errorf("History() of a closed session = %+v, want nil", hist)
	}
	if usage, _ := loop.SessionUsage("closed"); usage != (Usage{}) {
		t.Errorf("SessionUsage() of a closed session = %+v, want zero", usage)
	}
	if got := loop.Sessions(); got != 1 {
		t.Errorf("reading a closed session recreated it: Sessions() = %d", got)
	}
	if len(loop.History("kept")) == 0 {
		t.Errorf("open session lost its history")
	}
}

func TestEchoProvider(t *testing.T) {
	loop := NewLoop(EchoProvider{}, nil)
	res, err := loop.Run(context.Background(), Request{SessionID: "s", Text: "Summarize this repo"})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	want := &Result{
		Content:    "Summarize this repo",
		Usage:      Usage{InputTokens: 3, OutputTokens: 3},
		StopReason: StopEndTurn,
		Model:      "echo",
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("Run() mismatch (-want +got):\n%s", diff)
	}
}

func TestCancellationHandleNil(t *testing.T) {
	var h *CancellationHandle
	if h.Canceled() {
		t.Errorf("nil handle reports canceled")
	}
}
