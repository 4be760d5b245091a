// Package store holds the gorm-backed Catalog Store and Grant Store the engine consumes.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vitrine/apperrors"
	"vitrine/metrics"

	"github.com/jinzhu/gorm"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// ErrActiveGrantExists is returned by InsertGrant when the (email, plan_code) pair already has an
// active grant (unique index ux_access_grants_active).
var ErrActiveGrantExists = errors.New("active grant already exists")

// base carries the connection and the per-call timeout shared by both stores.
type base struct {
	db      *gorm.DB
	timeout time.Duration
}

// run executes fn against the database bounded by the store timeout. gorm v1 has no context
// support, so the call runs in its own goroutine and the caller stops waiting on timeout.
func (b base) run(ctx context.Context, op string, fn func(db *gorm.DB) error) error {
	start := time.Now()
	defer func() {
		metrics.StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return b.fail(op, ctxError(op, err))
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- fn(b.db)
	}()

	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		var appErr *apperrors.Error
		if errors.As(err, &appErr) || errors.Is(err, ErrActiveGrantExists) {
			return err
		}
		return b.fail(op, apperrors.Store(op, err))
	case <-ctx.Done():
		return b.fail(op, ctxError(op, ctx.Err()))
	}
}

// ctxError reports only an expired deadline as a timeout; a caller that gave up is a plain
// store error.
func ctxError(op string, err error) *apperrors.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Timeout(op, err)
	}
	return apperrors.Store(op, err)
}

func (b base) fail(op string, err *apperrors.Error) error {
	kind := "error"
	switch {
	case err.Timeout:
		kind = "timeout"
	case errors.Is(err.Err, context.Canceled):
		kind = "canceled"
	}
	metrics.StoreErrorsTotal.WithLabelValues(op, kind).Inc()
	return err
}

// Ping checks database connectivity (used by /health).
func Ping(ctx context.Context, db *gorm.DB, timeout time.Duration) error {
	b := base{db: db, timeout: timeout}
	return b.run(ctx, "ping", func(db *gorm.DB) error {
		return db.DB().Ping()
	})
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
