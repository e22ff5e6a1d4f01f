package stage

import (
	"context"
	"time"
)

// Func adapts a function into a Provider.
type Func[In, Out any] struct {
	ProviderName string
	Limit        time.Duration
	Fn           func(context.Context, In) (Out, error)
}

func (f Func[In, Out]) Name() string { return f.ProviderName }

func (f Func[In, Out]) Timeout() time.Duration { return f.Limit }

func (f Func[In, Out]) Attempt(ctx context.Context, in In) (Out, error) {
	return f.Fn(ctx, in)
}

// Provenance summarizes a result for logs: the winning provider followed by
// the providers that failed before it.
func Provenance[Out any](r Result[Out]) (string, []string) {
	failed := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		failed = append(failed, f.Provider+":"+string(f.Kind))
	}
	return r.Provider, failed
}
