package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "civreg/pkg/domain-errors"
	txcontext "civreg/pkg/platform/tx"
)

const defaultTransferTxTimeout = 5 * time.Second

// transferPostgresTx opens one database transaction per workflow transition
// and threads it through context so every store touched by the transition
// joins it.
type transferPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newTransferPostgresTx(db *sql.DB) *transferPostgresTx {
	return &transferPostgresTx{db: db}
}

func (t *transferPostgresTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTransferTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	return tx.Commit()
}
