// Package runner defines the boundary to the external AI browser-automation
// executor. The core never interprets the trace it returns.
package runner

import "context"

type Runner interface {
	// Run executes the task and returns the raw execution trace.
	Run(ctx context.Context, description string) (string, error)
}

// Func adapts a plain function to the Runner interface.
type Func func(ctx context.Context, description string) (string, error)

func (f Func) Run(ctx context.Context, description string) (string, error) {
	return f(ctx, description)
}
