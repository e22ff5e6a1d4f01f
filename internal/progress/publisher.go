package progress

import (
	"context"
	"sync"
	"time"
)

// Publisher writes one run's statuses. Percentages never go backwards and
// nothing is written after a terminal state.
type Publisher struct {
	store     Store
	key       string
	requestID string
	now       func() time.Time

	mu       sync.Mutex
	last     Status
	started  bool
	finished bool
}

// NewPublisher binds a publisher to key.
func NewPublisher(store Store, key, requestID string) *Publisher {
	return &Publisher{store: store, key: key, requestID: requestID, now: time.Now}
}

// Update publishes an in-flight status. It returns false when the update was
// dropped for lowering the percentage or arriving after a terminal state.
func (p *Publisher) Update(ctx context.Context, percent, step int, message, substep string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished || (p.started && percent < p.last.Progress) {
		return false, nil
	}
	return true, p.put(ctx, Status{
		Progress: percent,
		Step:     step,
		Message:  message,
		Substep:  substep,
		State:    StateProcessing,
	})
}

// Complete publishes the 100% record with the video URL.
func (p *Publisher) Complete(ctx context.Context, step int, message, videoURL string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return nil
	}
	p.finished = true
	return p.put(ctx, Status{
		Progress: 100,
		Step:     step,
		Message:  message,
		State:    StateCompleted,
		VideoURL: videoURL,
	})
}

// Fail publishes an error record that keeps the last progress and step.
func (p *Publisher) Fail(ctx context.Context, message, kind string) error {
	return p.finish(ctx, StateError, "Error: "+message, kind)
}

// Cancel publishes a cancelled record that keeps the last progress and step.
func (p *Publisher) Cancel(ctx context.Context) error {
	return p.finish(ctx, StateCancelled, CancelledMessage, CancelledKind)
}

func (p *Publisher) finish(ctx context.Context, state State, message, kind string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return nil
	}
	p.finished = true
	return p.put(ctx, Status{
		Progress:  p.last.Progress,
		Step:      p.last.Step,
		Message:   message,
		Substep:   p.last.Substep,
		State:     state,
		ErrorKind: kind,
	})
}

// Last returns the most recent status this publisher wrote.
func (p *Publisher) Last() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Publisher) put(ctx context.Context, status Status) error {
	status.RequestID = p.requestID
	status.UpdatedAt = p.now().UTC()
	p.last = status
	p.started = true
	// Terminal records must land even when the run's context is already
	// cancelled.
	return p.store.Put(context.WithoutCancel(ctx), p.key, status)
}
