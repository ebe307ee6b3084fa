// Package service contains the business rules of the feed.
//
// THE THREE LAYERS:
//
//	Handler (HTTP)      → parses requests, writes responses
//	Service (this pkg)  → validates, checks ownership, orchestrates
//	Repository (SQLite) → reads/writes rows, owns atomicity
//
// Services take repository interfaces, never *sqlite.DB, so tests can run
// against an in-memory database or a fake that fails on demand.
//
// ERRORS:
// Every error a service returns is an *apperror.AppError (possibly wrapped).
// Validation runs before any store call. A store or verifier failure that is
// not already typed becomes apperror.Transient, so the HTTP layer answers 503
// and the client knows a retry is reasonable.
//
// DEADLINES:
// Each operation runs its store calls under a per-operation timeout. The
// service never retries a mutation on its own.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/snapfeed/internal/apperror"
)

// DefaultOperationTimeout bounds the store calls of a single operation when
// no timeout is configured.
const DefaultOperationTimeout = 5 * time.Second

// Validation limits.
const (
	MaxUsernameLength = 50
	MaxPostTextLength = 2200
	MaxCommentLength  = 1000
	DefaultListLimit  = 20
	MaxListLimit      = 100
)

// Author identifies who is writing a post or comment. Name is the display
// name copied onto the record at creation time.
type Author struct {
	ID   string
	Name string
}

// runner carries the pieces every service shares.
type runner struct {
	timeout time.Duration
	logger  *slog.Logger
}

func newRunner(timeout time.Duration, logger *slog.Logger) runner {
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}
	return runner{timeout: timeout, logger: logger}
}

// withDeadline derives the context for one operation's store calls.
func (r runner) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// fail passes typed application errors through and turns anything else
// (driver errors, deadline exceeded, network failures) into Transient.
// The raw cause is logged here and never reaches the client.
func (r runner) fail(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	r.logger.Error("operation failed",
		slog.String("op", op),
		slog.Bool("deadline", errors.Is(err, context.DeadlineExceeded)),
		slog.String("error", err.Error()),
	)
	return apperror.Transient(op, err)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
