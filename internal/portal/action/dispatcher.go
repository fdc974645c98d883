// Package action runs user-triggered operations against the backend: check
// the input locally, ask the user, call one endpoint, report, refresh.
package action

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/hospital/staffportal/internal/platform/apiclient"
	"github.com/hospital/staffportal/internal/platform/dialog"
)

// Name identifies an action a user can take on an entity.
type Name string

const (
	Edit        Name = "edit"
	Delete      Name = "delete"
	Start       Name = "start"
	Complete    Name = "complete"
	Cancel      Name = "cancel"
	Variance    Name = "view-variance-analysis"
	Adjust      Name = "apply-adjustments"
	Lock        Name = "lock"
	Unlock      Name = "unlock"
	Activate    Name = "activate"
	Deactivate  Name = "deactivate"
	Restock     Name = "restock"
	Verify      Name = "verify"
	Reject      Name = "reject"
	Prepare     Name = "prepare"
	Dispense    Name = "dispense"
	Administer  Name = "administer"
	Return      Name = "return"
	Discontinue Name = "discontinue"
	Pay         Name = "pay"
	Refund      Name = "refund"
)

// Contains reports whether name is in names.
func Contains(names []Name, name Name) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// Join renders names for display.
func Join(names []Name) string {
	if len(names) == 0 {
		return "-"
	}
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}

var (
	// ErrBusy is returned when an action is submitted while another one
	// from the same dispatcher is still in flight.
	ErrBusy = errors.New("another action is in progress")
	// ErrCancelled is returned when the user declines the confirmation or
	// cancels the prompt.
	ErrCancelled = errors.New("cancelled by user")
)

// ValidationError is a client-side rejection raised before any request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Invalid builds a ValidationError.
func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Input is what the dialog collected from the user.
type Input struct {
	Confirmed bool
	Note      string
}

// Spec describes one action invocation.
type Spec struct {
	Name Name
	// Validate runs before any dialog or request.
	Validate func() error
	// Confirm, when set, is asked as a yes/no question.
	Confirm string
	// Prompt, when set, asks for a free-text note passed to Call.
	Prompt       string
	NoteRequired bool
	// Call performs exactly one request.
	Call    func(ctx context.Context, in Input) error
	Success string
	Failure string
}

// Outcome is the result of Run.
type Outcome int

const (
	Succeeded Outcome = iota + 1
	Cancelled
	Rejected
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Cancelled:
		return "cancelled"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Refresher re-fetches the calling view after a successful action.
type Refresher func(ctx context.Context) error

// Dispatcher runs actions for one view.
type Dispatcher struct {
	dialog  dialog.Dialog
	refresh Refresher
	logger  zerolog.Logger
	busy    atomic.Bool
}

func NewDispatcher(d dialog.Dialog, refresh Refresher, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{dialog: d, refresh: refresh, logger: logger}
}

// Busy reports whether an action is in flight.
func (d *Dispatcher) Busy() bool {
	return d.busy.Load()
}

// Run executes spec. The returned error is nil only on success; the
// outcome tells callers which stage stopped the action.
func (d *Dispatcher) Run(ctx context.Context, spec Spec) (Outcome, error) {
	if !d.busy.CompareAndSwap(false, true) {
		return Rejected, ErrBusy
	}
	defer d.busy.Store(false)

	log := d.logger.With().Str("action", string(spec.Name)).Logger()

	if spec.Validate != nil {
		if err := spec.Validate(); err != nil {
			d.dialog.Notify(ctx, dialog.LevelError, err.Error())
			log.Debug().Err(err).Msg("action rejected by validation")
			return Rejected, err
		}
	}

	in := Input{}
	if spec.Confirm != "" {
		ok, err := d.dialog.Confirm(ctx, spec.Confirm)
		if err != nil {
			return Cancelled, err
		}
		if !ok {
			return Cancelled, ErrCancelled
		}
		in.Confirmed = true
	}
	if spec.Prompt != "" {
		note, ok, err := d.dialog.Prompt(ctx, spec.Prompt)
		if err != nil {
			return Cancelled, err
		}
		if !ok {
			return Cancelled, ErrCancelled
		}
		if spec.NoteRequired && strings.TrimSpace(note) == "" {
			err := Invalid("Vui lòng nhập %s", strings.ToLower(spec.Prompt))
			d.dialog.Notify(ctx, dialog.LevelError, err.Error())
			return Rejected, err
		}
		in.Note = note
	}

	if err := spec.Call(ctx, in); err != nil {
		d.dialog.Notify(ctx, dialog.LevelError, apiclient.Message(err, spec.Failure))
		log.Warn().Err(err).Msg("action failed")
		return Failed, err
	}

	if spec.Success != "" {
		d.dialog.Notify(ctx, dialog.LevelSuccess, spec.Success)
	}
	log.Info().Msg("action succeeded")

	if d.refresh != nil {
		if err := d.refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("refresh after action failed")
		}
	}
	return Succeeded, nil
}
