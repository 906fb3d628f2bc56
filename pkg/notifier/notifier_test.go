package notifier_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/poltergeist/reactor/pkg/logger"
	"github.com/poltergeist/reactor/pkg/notifier"
	"github.com/poltergeist/reactor/pkg/report"
	"github.com/poltergeist/reactor/pkg/types"
)

type captured struct {
	titles   []string
	messages []string
}

func (c *captured) send(title, message string) error {
	c.titles = append(c.titles, title)
	c.messages = append(c.messages, message)
	return nil
}

func modules() []*types.Module {
	return []*types.Module{
		{Group: "com.example", Artifact: "core", Version: "1.0"},
		{Group: "com.example", Artifact: "service", Version: "1.0", Name: "Service"},
	}
}

func TestNotifier_SessionSuccess(t *testing.T) {
	c := &captured{}
	n := notifier.New(notifier.Config{Enabled: true}, logger.NewNopLogger(), notifier.WithSender(c.send))

	ms := modules()
	r := report.New(ms)
	for _, m := range ms {
		r.Record(m, "compile", types.PhaseOutcome{Status: types.StatusSucceeded})
	}
	n.NotifySession(r)

	if len(c.titles) != 1 || !strings.Contains(c.titles[0], "Succeeded") {
		t.Fatalf("unexpected notifications %v", c.titles)
	}
	if !strings.HasPrefix(c.messages[0], "2 module(s) built") {
		t.Errorf("unexpected message %q", c.messages[0])
	}
}

func TestNotifier_SessionFailure(t *testing.T) {
	c := &captured{}
	n := notifier.New(notifier.Config{Enabled: true}, logger.NewNopLogger(), notifier.WithSender(c.send))

	ms := modules()
	r := report.New(ms)
	r.Record(ms[0], "compile", types.PhaseOutcome{Status: types.StatusFailed, Err: errors.New("boom")})
	r.Skip(ms[1], "halted")
	n.NotifySession(r)

	if len(c.messages) != 1 {
		t.Fatalf("expected one notification, got %d", len(c.messages))
	}
	if c.messages[0] != "core failed, 1 skipped" {
		t.Errorf("unexpected message %q", c.messages[0])
	}
}

func TestNotifier_ConfigurationError(t *testing.T) {
	c := &captured{}
	n := notifier.New(notifier.Config{Enabled: true}, logger.NewNopLogger(), notifier.WithSender(c.send))

	r := report.New(nil)
	r.ConfigError(errors.New("cyclic module aggregation\nmore detail"))
	n.NotifySession(r)

	if len(c.messages) != 1 || c.messages[0] != "cyclic module aggregation" {
		t.Errorf("unexpected notifications %v", c.messages)
	}
}

func TestNotifier_ModuleFailure(t *testing.T) {
	c := &captured{}
	n := notifier.New(notifier.Config{Enabled: true}, logger.NewNopLogger(), notifier.WithSender(c.send))

	n.NotifyModuleFailure(modules()[1], errors.New("syntax error at line 42"))
	if len(c.titles) != 1 || !strings.Contains(c.titles[0], "Service") {
		t.Errorf("unexpected notifications %v", c.titles)
	}
}

func TestNotifier_Disabled(t *testing.T) {
	c := &captured{}
	n := notifier.New(notifier.Config{Enabled: false}, logger.NewNopLogger(), notifier.WithSender(c.send))

	n.NotifySession(report.New(modules()))
	n.NotifyModuleFailure(modules()[0], errors.New("x"))

	if len(c.titles) != 0 {
		t.Errorf("expected no notifications, got %v", c.titles)
	}
}

func TestNotifier_SenderErrorFallsBackToLog(t *testing.T) {
	n := notifier.New(notifier.Config{Enabled: true}, logger.NewNopLogger(), notifier.WithSender(func(string, string) error {
		return errors.New("no notification daemon")
	}))

	// must not panic or propagate
	n.NotifyModuleFailure(modules()[0], errors.New("boom"))
}
