package delivery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bekksaar/intakebot/core/logger"
	"github.com/bekksaar/intakebot/core/telegram/sender"
	"github.com/bekksaar/intakebot/internal/funnel"
	"github.com/bekksaar/intakebot/internal/intake"
	"github.com/bekksaar/intakebot/internal/leads"
)

const component = "delivery"

// Sender posts one payload. *Client satisfies it.
type Sender interface {
	Send(ctx context.Context, id uuid.UUID, p Payload) error
}

// Archive stores submissions alongside their delivery status.
type Archive interface {
	Save(ctx context.Context, lead leads.Lead) error
}

// Recorder counts delivery outcomes.
type Recorder interface {
	DeliveryResult(status string)
}

// Async submits records off the update path through a dispatcher queue.
// It implements intake.Submitter.
type Async struct {
	sender     Sender
	dispatcher *sender.Dispatcher
	timeout    time.Duration
	archive    Archive
	recorder   Recorder
}

var _ intake.Submitter = (*Async)(nil)

// AsyncOption configures Async.
type AsyncOption func(*Async)

// WithArchive stores every submission in a.
func WithArchive(a Archive) AsyncOption {
	return func(s *Async) { s.archive = a }
}

// WithRecorder reports outcomes to r.
func WithRecorder(r Recorder) AsyncOption {
	return func(s *Async) { s.recorder = r }
}

// WithTimeout bounds a single submission including archiving.
func WithTimeout(d time.Duration) AsyncOption {
	return func(s *Async) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewAsync wires s to the dispatcher d.
func NewAsync(s Sender, d *sender.Dispatcher, opts ...AsyncOption) *Async {
	a := &Async{sender: s, dispatcher: d, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewDispatcher returns a dispatcher sized for collector submissions. Jobs
// are never retried.
func NewDispatcher(timeout time.Duration) *sender.Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return sender.NewDispatcher(sender.Options{
		QueueSize:   64,
		Workers:     2,
		MaxRetries:  0,
		MaxDuration: timeout,
		Component:   "delivery.sender",
	})
}

// Submit queues rec and returns immediately. The returned error only reports
// that the record could not be queued; delivery failures are logged.
func (a *Async) Submit(ctx context.Context, rec intake.Record) error {
	// Detach from the update so the submission outlives the handler.
	jobCtx := context.WithoutCancel(ctx)
	id := uuid.New()
	userID := logger.UserIDFrom(ctx)
	run := func() error { return a.deliver(jobCtx, id, userID, rec) }

	err := a.dispatcher.Enqueue(jobCtx, "delivery.submit", "collector", run)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sender.ErrQueueFull):
		logger.Warn(ctx, component, "delivery.queue_full",
			slog.String("status", "retry"),
			slog.String("delivery_id", id.String()),
		)
		go func() { _ = run() }()
		return nil
	default:
		a.record(funnel.DeliveryDropped)
		logger.Error(ctx, component, "delivery.drop",
			slog.String("status", "fail"),
			slog.String("delivery_id", id.String()),
			slog.String("err", err.Error()),
		)
		return err
	}
}

func (a *Async) deliver(ctx context.Context, id uuid.UUID, userID int64, rec intake.Record) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	err := a.sender.Send(ctx, id, NewPayload(rec))
	status := leads.StatusDelivered
	if err != nil {
		status = leads.StatusFailed
		a.record(funnel.DeliveryFail)
		logger.Error(ctx, component, "delivery.fail",
			slog.String("status", "fail"),
			slog.String("delivery_id", id.String()),
			slog.Int64("user_id", userID),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.String("err", err.Error()),
		)
	} else {
		a.record(funnel.DeliveryOK)
		logger.Info(ctx, component, "delivery.ok",
			slog.String("status", "ok"),
			slog.String("delivery_id", id.String()),
			slog.Int64("user_id", userID),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}

	if a.archive != nil {
		if archErr := a.archive.Save(ctx, leads.FromRecord(id, userID, rec, status)); archErr != nil {
			logger.Error(ctx, "leads", "lead.save",
				slog.String("status", "fail"),
				slog.String("lead_id", id.String()),
				slog.String("err", archErr.Error()),
			)
		}
	}
	return err
}

func (a *Async) record(status string) {
	if a.recorder != nil {
		a.recorder.DeliveryResult(status)
	}
}
