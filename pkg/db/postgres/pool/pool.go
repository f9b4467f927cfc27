// Package pool abstracts connection pools of pgx,
// so that repositories can share transactions and be faked in tests.
package pool

import (
	"context"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// something begins SQL Transaction
//
// this is extracted interface from "pgxpool.Pool" or "pgx.Tx".
type Begin interface {
	Begin(ctx context.Context) (Tx, error)
}

// something sending query with SQL.
//
// this is extracted interface from `pgxpool.Pool` and `pgx.Tx`
// When you need more details, see them.
type Queryer interface {
	// sending SQL Command which does not have any result rows.
	Exec(ctx context.Context, sql string, arguments ...interface{}) (commandTag pgconn.CommandTag, err error)

	// sending SQL Command which has result rows.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)

	// sending SQL Command which has just single result row.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// interface extracted from `pgx.Tx`
//
// `pgx.Tx` does NOT implement `Tx`, since `Begin` returns `pgx.Tx`.
// Begin a transaction from `Pool` to get `Tx`.
type Tx interface {
	Queryer
	Begin

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// thin wrapper of pgx.Tx as Tx
type pgxTx struct {
	base pgx.Tx
}

var _ Tx = &pgxTx{}

func (tx *pgxTx) Begin(ctx context.Context) (Tx, error) {
	new, err := tx.base.Begin(ctx)
	if new == nil {
		return nil, err
	}
	return &pgxTx{new}, err
}

func (tx *pgxTx) Commit(ctx context.Context) error {
	return tx.base.Commit(ctx)
}
func (tx *pgxTx) Rollback(ctx context.Context) error {
	return tx.base.Rollback(ctx)
}
func (tx *pgxTx) Exec(ctx context.Context, sql string, arguments ...interface{}) (commandTag pgconn.CommandTag, err error) {
	return tx.base.Exec(ctx, sql, arguments...)
}
func (tx *pgxTx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return tx.base.Query(ctx, sql, args...)
}
func (tx *pgxTx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return tx.base.QueryRow(ctx, sql, args...)
}

// interface extracted from `*pgxpool.Pool`
//
// this interface is JUST A SUBSET like `*pgxpool.Pool`
type Pool interface {
	Begin
	Queryer

	Ping(ctx context.Context) error
	Close()
}

type pgxPool struct {
	base *pgxpool.Pool
}

var _ Pool = &pgxPool{}

func (p *pgxPool) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.base.Begin(ctx)
	if tx == nil {
		return nil, err
	}
	return &pgxTx{tx}, err
}
func (p *pgxPool) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	return p.base.Exec(ctx, sql, arguments...)
}
func (p *pgxPool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return p.base.Query(ctx, sql, args...)
}
func (p *pgxPool) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return p.base.QueryRow(ctx, sql, args...)
}
func (p *pgxPool) Ping(ctx context.Context) error {
	return p.base.Ping(ctx)
}
func (p *pgxPool) Close() {
	p.base.Close()
}

func Wrap(p *pgxpool.Pool) Pool {
	return &pgxPool{p}
}
