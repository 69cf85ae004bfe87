package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Alae213/gayla-shop-sub001/internal/platform/observability"
)

const (
	defaultTxAttempts = 5
	defaultTxBudget   = 15 * time.Second
)

// TxFunc runs inside a read-write transaction. Firestore re-runs it when the transaction
// aborts on contention, so it must read through tx, do every read before any write, and
// keep no state outside its return value.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxOption tunes a single transaction.
type TxOption func(*txSettings)

type txSettings struct {
	maxAttempts int
	budget      time.Duration
}

// WithTxAttempts caps how often fn is run before the abort is returned.
func WithTxAttempts(attempts int) TxOption {
	return func(s *txSettings) {
		if attempts > 0 {
			s.maxAttempts = attempts
		}
	}
}

// WithTxTimeout bounds the whole transaction, retries included. A tighter caller deadline wins.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(s *txSettings) {
		if timeout > 0 {
			s.budget = timeout
		}
	}
}

// RunTransaction executes fn in a transaction on the shared client and records the
// number of attempts it took on a span.
func (p *Provider) RunTransaction(ctx context.Context, fn TxFunc, opts ...TxOption) error {
	if fn == nil {
		return WrapError("transaction", errors.New("firestore: transaction function is nil"))
	}
	settings := txSettings{maxAttempts: defaultTxAttempts, budget: defaultTxBudget}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	client, err := p.Client(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := withBudget(ctx, settings.budget)
	defer cancel()

	ctx, span := observability.StartSpan(ctx, "firestore.transaction",
		attribute.Int("firestore.tx.max_attempts", settings.maxAttempts))
	attempts := 0
	err = client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		attempts++
		return fn(ctx, tx)
	}, firestore.MaxAttempts(settings.maxAttempts))
	span.SetAttributes(attribute.Int("firestore.tx.attempts", attempts))

	err = WrapError("transaction", err)
	observability.EndSpan(span, err)
	return err
}

func withBudget(ctx context.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	if budget <= 0 {
		return ctx, func() {}
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= budget {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, budget)
}
