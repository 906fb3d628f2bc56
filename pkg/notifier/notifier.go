// Package notifier sends desktop notifications for build results
package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/poltergeist/reactor/pkg/logger"
	"github.com/poltergeist/reactor/pkg/report"
	"github.com/poltergeist/reactor/pkg/types"
)

// Sender delivers one notification
type Sender func(title, message string) error

// BuildNotifier handles build notifications
type BuildNotifier struct {
	enabled bool
	sound   bool
	send    Sender
	logger  logger.Logger
}

// Config represents notification configuration
type Config struct {
	Enabled bool
	// Sound beeps on failure
	Sound bool
}

// Option configures a BuildNotifier
type Option func(*BuildNotifier)

// WithSender replaces the desktop notification backend
func WithSender(s Sender) Option {
	return func(n *BuildNotifier) { n.send = s }
}

// New creates a new build notifier
func New(config Config, log logger.Logger, opts ...Option) *BuildNotifier {
	n := &BuildNotifier{
		enabled: config.Enabled,
		sound:   config.Sound,
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		logger: logger.OrNop(log),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NotifySession reports the overall result of a session
func (n *BuildNotifier) NotifySession(r *report.Reporter) {
	if !n.enabled {
		return
	}

	counts := r.Counts()
	if r.Success() {
		n.sendNotification("✅ Build Succeeded",
			fmt.Sprintf("%d module(s) built in %s", counts[types.StatusSucceeded], formatDuration(r.Elapsed())))
		return
	}

	if errs := r.ConfigErrors(); len(errs) > 0 {
		n.sendNotification("❌ Build Misconfigured", firstLine(errs[0].Error()))
		n.beep()
		return
	}

	var failed []string
	for _, res := range r.Summary() {
		if res.Status == types.StatusFailed {
			failed = append(failed, res.Module.DisplayName())
		}
	}
	n.sendNotification("❌ Build Failed", fmt.Sprintf("%s failed, %d skipped",
		strings.Join(failed, ", "), counts[types.StatusSkipped]))
	n.beep()
}

// NotifyModuleFailure notifies that a single module failed
func (n *BuildNotifier) NotifyModuleFailure(m *types.Module, err error) {
	if !n.enabled {
		return
	}
	n.sendNotification("❌ "+m.DisplayName(), firstLine(err.Error()))
}

func (n *BuildNotifier) sendNotification(title, message string) {
	if err := n.send(title, message); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
		n.logger.Info(fmt.Sprintf("%s: %s", title, message))
	}
}

func (n *BuildNotifier) beep() {
	if !n.sound {
		return
	}
	if err := beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil {
		n.logger.Debug("Failed to play sound", logger.WithField("error", err))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
