package context_test

import (
	"context"
	"strings"
	"testing"
	"time"

	rcontext "github.com/poltergeist/reactor/pkg/context"
)

func TestValuesAreIndependent(t *testing.T) {
	ctx := rcontext.WithSessionID(context.Background(), "ses_1")
	ctx = rcontext.WithModule(ctx, "core")
	ctx = rcontext.WithPhase(ctx, "compile")
	ctx = rcontext.WithInvocationID(ctx, "inv_1")

	if got := rcontext.GetSessionID(ctx); got != "ses_1" {
		t.Errorf("GetSessionID() = %q, want ses_1", got)
	}
	if got := rcontext.GetModule(ctx); got != "core" {
		t.Errorf("GetModule() = %q, want core", got)
	}
	if got := rcontext.GetPhase(ctx); got != "compile" {
		t.Errorf("GetPhase() = %q, want compile", got)
	}
	if got := rcontext.GetInvocationID(ctx); got != "inv_1" {
		t.Errorf("GetInvocationID() = %q, want inv_1", got)
	}
	if _, ok := rcontext.GetStartTime(ctx); ok {
		t.Error("start time should be unset")
	}
}

func TestGeneratedIDs(t *testing.T) {
	ctx := rcontext.WithSessionID(context.Background(), "")
	if id := rcontext.GetSessionID(ctx); !strings.HasPrefix(id, "ses_") {
		t.Errorf("generated session id %q lacks prefix", id)
	}
	ctx = rcontext.WithInvocationID(ctx, "")
	if id := rcontext.GetInvocationID(ctx); !strings.HasPrefix(id, "inv_") {
		t.Errorf("generated invocation id %q lacks prefix", id)
	}
	if rcontext.GenerateSessionID() == rcontext.GenerateSessionID() {
		t.Error("session ids should be unique")
	}
}

func TestGetDuration(t *testing.T) {
	if d := rcontext.GetDuration(context.Background()); d != 0 {
		t.Errorf("GetDuration() without start = %v, want 0", d)
	}

	start := time.Now().Add(-time.Second)
	ctx := rcontext.WithStartTime(context.Background(), start)
	if got, ok := rcontext.GetStartTime(ctx); !ok || !got.Equal(start) {
		t.Errorf("GetStartTime() = %v, %v", got, ok)
	}
	if d := rcontext.GetDuration(ctx); d < time.Second {
		t.Errorf("GetDuration() = %v, want at least 1s", d)
	}
}

func TestTracingFields(t *testing.T) {
	ctx := rcontext.WithSessionID(context.Background(), "ses_1")
	ctx = rcontext.WithModule(ctx, "service")
	ctx = rcontext.WithPhase(ctx, "test")

	fields := rcontext.TracingFields(ctx)
	want := map[string]string{"session": "ses_1", "module": "service", "phase": "test"}
	if len(fields) != len(want) {
		t.Fatalf("TracingFields() = %v, want %v", fields, want)
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("fields[%q] = %v, want %q", k, fields[k], v)
		}
	}
}
