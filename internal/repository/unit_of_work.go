package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// UnitOfWork carries one database transaction through a multi-step mutation
// together with the side effects that must follow its outcome.
type UnitOfWork struct {
	exec       sqlx.ExtContext
	onCommit   []func(context.Context)
	onRollback []func(context.Context)
}

// NewUnitOfWork wraps exec. A nil exec makes repositories fall back to their pool.
func NewUnitOfWork(exec sqlx.ExtContext) *UnitOfWork {
	return &UnitOfWork{exec: exec}
}

// Exec returns the transactional executor for repository calls.
func (u *UnitOfWork) Exec() sqlx.ExtContext {
	if u == nil {
		return nil
	}
	return u.exec
}

// OnCommit registers fn to run after a successful commit.
func (u *UnitOfWork) OnCommit(fn func(context.Context)) {
	u.onCommit = append(u.onCommit, fn)
}

// OnRollback registers fn to run after a rollback. Hooks run newest first.
func (u *UnitOfWork) OnRollback(fn func(context.Context)) {
	u.onRollback = append(u.onRollback, fn)
}

// Complete runs the hooks matching the transaction outcome.
func (u *UnitOfWork) Complete(ctx context.Context, committed bool) {
	if committed {
		for _, fn := range u.onCommit {
			fn(ctx)
		}
		return
	}
	for i := len(u.onRollback) - 1; i >= 0; i-- {
		u.onRollback[i](ctx)
	}
}

// TxManager opens database backed units of work.
type TxManager struct {
	db *sqlx.DB
}

// NewTxManager constructs a TxManager.
func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// Do runs fn inside a single transaction. Any error or panic from fn rolls the
// transaction back and fires the rollback hooks; otherwise the transaction is
// committed once and the commit hooks fire.
func (m *TxManager) Do(ctx context.Context, fn func(ctx context.Context, uow *UnitOfWork) error) (err error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	uow := NewUnitOfWork(tx)

	committed := false
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			uow.Complete(context.WithoutCancel(ctx), false)
			panic(p)
		}
		if !committed {
			_ = tx.Rollback()
		}
		uow.Complete(context.WithoutCancel(ctx), committed)
	}()

	if err = fn(ctx, uow); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}
