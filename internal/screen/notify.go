// Package screen holds the view-state coordinators of the client: one per
// screen, each owning its state and talking to the API on its behalf.
//
// Coordinators are safe for concurrent use. State() returns a copy.
package screen

import (
	"context"
	"log/slog"

	"booknest/internal/util"
)

// Notice is one failure reported to the user.
type Notice struct {
	Op  string
	Err error
}

// Notifier is the single channel through which coordinators surface failures.
type Notifier interface {
	Notify(Notice)
}

type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// LogNotifier writes notices to a slog logger at warn level.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(n Notice) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("operation failed", "op", n.Op, "err", n.Err)
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

const deleteChartPrompt = "Are you sure you want to delete this chart?"

// confirmed asks c to approve a chart deletion. Without a Confirmer nothing
// is deleted.
func confirmed(c Confirmer) bool {
	return c != nil && c.Confirm(deleteChartPrompt)
}

// sharedRequestID pins one request id on ctx so the calls a screen fans out
// for a single user action can be correlated in the logs.
func sharedRequestID(ctx context.Context) context.Context {
	if util.RequestIDFromContext(ctx) != "" {
		return ctx
	}
	return util.ContextWithRequestID(ctx, util.NewID())
}

func notifierOrDefault(n Notifier) Notifier {
	if n == nil {
		return LogNotifier{}
	}
	return n
}

func report(n Notifier, op string, err error) {
	if err != nil {
		n.Notify(Notice{Op: op, Err: err})
	}
}
