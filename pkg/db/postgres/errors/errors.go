// Package errors classifies errors from postgres into kinds of pkg/errors.
package errors

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	xe "github.com/opst/pht-central/pkg/errors"
)

// Classify err caused by a query to table for identity.
//
// - no rows: xe.NotFound
//
// - foreign key violation: xe.NotFound, since the referred record is missing.
//
// - unique violation: xe.InvalidState
//
// - connection failures: xe.TransientIntegration
//
// Other errors are returned as they are. Classifying nil gives nil.
func Classify(err error, table string, identity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return xe.Classify(xe.NotFound, identity+" is not found in "+table, err)
	}

	if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) {
		switch {
		case pgerr.Code == pgerrcode.ForeignKeyViolation:
			return xe.Classify(xe.NotFound, table+" "+identity+" refers missing record", err)
		case pgerr.Code == pgerrcode.UniqueViolation:
			return xe.Classify(xe.InvalidState, table+" "+identity+" conflicts", err)
		case pgerrcode.IsConnectionException(pgerr.Code),
			pgerrcode.IsInsufficientResources(pgerr.Code),
			pgerrcode.IsOperatorIntervention(pgerr.Code):
			return xe.Classify(xe.TransientIntegration, "database is unavailable", err)
		}
		return err
	}
	if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return xe.Classify(xe.TransientIntegration, "database is unavailable", err)
	}
	return err
}
