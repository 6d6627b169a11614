package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Notifier delivers a titled message to the user.
type Notifier interface {
	Send(ctx context.Context, title, message string) error
}

// Multi fans a message out to every transport. A failing transport never
// prevents the others from sending. When some transports delivered and
// others failed the error is a *PartialError.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, title, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, title, message); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", n, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	if delivered := len(m) - len(errs); delivered > 0 {
		return &PartialError{Delivered: delivered, Err: errors.Join(errs...)}
	}
	return errors.Join(errs...)
}

// PartialError is returned by Multi when the message reached at least one
// transport.
type PartialError struct {
	Delivered int
	Err       error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("delivered by %d transport(s), others failed: %v", e.Delivered, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// Delivered reports whether a Send that returned err reached the user
// through at least one transport.
func Delivered(err error) bool {
	var partial *PartialError
	return err == nil || errors.As(err, &partial)
}

// LogNotifier writes messages to the log. It stands in when no push
// transport is configured.
type LogNotifier struct {
	Log zerolog.Logger
}

func (l LogNotifier) Send(_ context.Context, title, message string) error {
	l.Log.Info().Str("title", title).Msg(message)
	return nil
}
