package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
	metricsx "github.com/tanpawarit/Chative-Handset-Sales-Agent/pkg/metrics"
)

// Registry dispatches capability tools by name under a per-call timeout.
type Registry struct {
	tools   map[string]contractx.Tool
	timeout time.Duration
}

func NewRegistry(timeout time.Duration, tools ...contractx.Tool) (*Registry, error) {
	r := &Registry{
		tools:   make(map[string]contractx.Tool, len(tools)),
		timeout: timeout,
	}
	for _, t := range tools {
		if t == nil {
			return nil, fmt.Errorf("%w: nil tool", contractx.ErrValidation)
		}
		if _, dup := r.tools[t.Name()]; dup {
			return nil, fmt.Errorf("%w: duplicate tool %s", contractx.ErrValidation, t.Name())
		}
		r.tools[t.Name()] = t
	}
	return r, nil
}

// Run invokes the named tool. Every failure, including timeout expiry, is
// returned wrapped in ErrToolInvocationFailed alongside the underlying cause.
func (r *Registry) Run(ctx context.Context, name string, req contractx.ToolRequest) (contractx.ToolResult, error) {
	t, ok := r.tools[name]
	if !ok {
		return contractx.ToolResult{}, fmt.Errorf("%w: unknown tool %s", contractx.ErrToolInvocationFailed, name)
	}

	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := t.Run(callCtx, req)
	if err == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		err = callCtx.Err()
	}
	metricsx.ObserveTool(name, err, time.Since(start))

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return contractx.ToolResult{}, fmt.Errorf("%w: %s timed out after %s: %w", contractx.ErrToolInvocationFailed, name, r.timeout, err)
		}
		return contractx.ToolResult{}, fmt.Errorf("%w: %s: %w", contractx.ErrToolInvocationFailed, name, err)
	}
	if out.Tool == "" {
		out.Tool = name
	}
	return out, nil
}
