package progress

import (
	"context"
	"errors"
	"time"
)

// State is the lifecycle of a run as pollers see it.
type State string

const (
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateError      State = "error"
	StateCancelled  State = "cancelled"
)

// Message and error kind of a cancelled record.
const (
	CancelledMessage = "Cancelled"
	CancelledKind    = "cancelled"
)

// Terminal reports whether no further updates are expected.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateError || s == StateCancelled
}

// Status is one progress record.
type Status struct {
	Progress  int       `json:"progress"`
	Step      int       `json:"step"`
	Message   string    `json:"message"`
	Substep   string    `json:"substep"`
	State     State     `json:"status"`
	VideoURL  string    `json:"video_url,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// DefaultStatus is reported for keys that have never published.
func DefaultStatus() Status {
	return Status{Message: "Initializing...", State: StateProcessing}
}

// Entry pairs a lesson folder with its status.
type Entry struct {
	Key    string `json:"folder"`
	Status Status `json:"status"`
}

// Store holds the latest status per lesson folder. Put replaces the whole
// record; readers never see a partially written status.
type Store interface {
	Put(ctx context.Context, key string, status Status) error
	Get(ctx context.Context, key string) (Status, bool, error)
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

// ErrSchemaMismatch indicates the database was written by an incompatible
// version.
var ErrSchemaMismatch = errors.New("progress schema version mismatch")

// Lookup returns the stored status for key or DefaultStatus.
func Lookup(ctx context.Context, store Store, key string) (Status, error) {
	status, ok, err := store.Get(ctx, key)
	if err != nil {
		return Status{}, err
	}
	if !ok {
		return DefaultStatus(), nil
	}
	return status, nil
}
