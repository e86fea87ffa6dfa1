package postgres

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"teamnet-backend/internal/domain"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// translateError maps driver errors onto domain error kinds.
func translateError(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Errorf(domain.KindNotFound, "%s not found", entity)
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		switch pqErr.Constraint {
		case "payments_order_id_key":
			return domain.Wrap(domain.KindDuplicateOrder, err, "order id already exists")
		case "payments_pending_purpose_uniq":
			return domain.Wrap(domain.KindConflictingPendingIntent, err, "a pending payment already exists for this purpose")
		case "teams_team_name_key":
			return domain.Wrap(domain.KindAlreadyExists, err, "team name already exists")
		default:
			return domain.Wrap(domain.KindAlreadyExists, err, entity+" already exists")
		}
	case pqForeignKeyViolation:
		return domain.Wrap(domain.KindNotFound, err, "referenced record not found")
	}
	return err
}

func expectAffected(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.Errorf(domain.KindNotFound, "%s not found", entity)
	}
	return nil
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
