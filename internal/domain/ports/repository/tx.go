package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// TransactionManager provides a thin abstraction to execute a function within
// a database transaction, passing the underlying transaction handle via `tx`.
//
// Repositories accept `tx Tx` and gracefully fall back to their pool when it
// is nil. The request path of the billing endpoints deliberately does NOT use
// this: the payment/subscription/profile updates are independent best-effort
// writes (a crash between steps leaves a window the reconciliation job
// closes). It exists for callers that do need atomicity, e.g. the seed tool.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
