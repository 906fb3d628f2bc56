// Package syncx holds the concurrency helpers shared by the build session
// and the local repository.
package syncx

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/poltergeist/reactor/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// SafeGroup wraps errgroup.Group with panic recovery so a panicking goal
// executor surfaces as an error instead of crashing the session.
type SafeGroup struct {
	group  *errgroup.Group
	logger logger.Logger
}

// NewSafeGroup creates a new SafeGroup with panic recovery
func NewSafeGroup(ctx context.Context, log logger.Logger) (*SafeGroup, context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	return &SafeGroup{
		group:  g,
		logger: logger.OrNop(log),
	}, ctx
}

// Go runs fn in a new goroutine. A panic is converted to an error and
// logged with its stack trace.
func (sg *SafeGroup) Go(fn func() error) {
	sg.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				sg.logger.Error("Goroutine panic recovered",
					logger.WithField("panic", r),
					logger.WithField("stack_trace", string(debug.Stack())))
				err = fmt.Errorf("goroutine panic: %v", r)
			}
		}()

		return fn()
	})
}

// SetLimit sets the maximum number of concurrent goroutines
func (sg *SafeGroup) SetLimit(n int) {
	sg.group.SetLimit(n)
}

// Wait blocks until all goroutines have completed and returns the first error
func (sg *SafeGroup) Wait() error {
	return sg.group.Wait()
}
