package postgres

import (
	"context"
	"database/sql"

	"teamnet-backend/internal/logger"
	"teamnet-backend/internal/repository"

	_ "github.com/lib/pq"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db  *sql.DB
	log logger.Logger
	repository.MemberRepository
	repository.HierarchyRepository
	repository.TeamRepository
	repository.PaymentRepository
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	log = logger.Module(log, "postgres")
	repos := newRepositories(db, log)
	return &Store{
		db:                  db,
		log:                 log,
		MemberRepository:    repos.Members,
		HierarchyRepository: repos.Hierarchy,
		TeamRepository:      repos.Teams,
		PaymentRepository:   repos.Payments,
	}
}

func newRepositories(q DBTX, log logger.Logger) repository.Repositories {
	return repository.Repositories{
		Members:   NewMemberRepository(q),
		Hierarchy: NewHierarchyRepository(q, log),
		Teams:     NewTeamRepository(q),
		Payments:  NewPaymentRepository(q, log),
	}
}

// DB exposes the underlying pool for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Repositories returns the non-transactional repository set.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Members:   s.MemberRepository,
		Hierarchy: s.HierarchyRepository,
		Teams:     s.TeamRepository,
		Payments:  s.PaymentRepository,
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(ctx, newRepositories(tx, s.log)); err != nil {
		return err
	}
	return tx.Commit()
}
