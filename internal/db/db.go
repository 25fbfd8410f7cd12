package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yourorg/vetting-worker/internal/model"
)

const batchSize = 100

// ErrNotFound aliases the model sentinel so callers can match either.
var ErrNotFound = model.ErrNotFound

type Store struct{ Pool *pgxpool.Pool }

func Open(ctx context.Context, url string) (*Store, error) {
	p, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: p}, nil
}

func (s *Store) Close() { s.Pool.Close() }

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Pool.Ping(ctx)
}

// IsInsufficientPrivilege reports a 42501 error, raised when the role may not
// run the schema DDL.
func IsInsufficientPrivilege(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42501"
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *Store) notifyProcessChanged(ctx context.Context, id string) {
	_, _ = s.Pool.Exec(ctx, `SELECT pg_notify('process_events', $1)`, id)
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tokens (
  id UUID PRIMARY KEY,
  chain TEXT NOT NULL,
  address TEXT NOT NULL,
  name TEXT,
  symbol TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (chain, address)
);

CREATE TABLE IF NOT EXISTS vetting_processes (
  id UUID PRIMARY KEY,
  token_id UUID NOT NULL REFERENCES tokens(id) ON DELETE CASCADE,
  status TEXT NOT NULL DEFAULT 'PENDING',
  automatic_score DOUBLE PRECISION,
  manual_score DOUBLE PRECISION,
  overall_score DOUBLE PRECISION,
  risk_level TEXT,
  worker_id TEXT,
  error_msg TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  started_at TIMESTAMPTZ,
  finished_at TIMESTAMPTZ,
  heartbeat_at TIMESTAMPTZ
);

ALTER TABLE vetting_processes ADD COLUMN IF NOT EXISTS heartbeat_at TIMESTAMPTZ;

DO $$
BEGIN
  IF EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'vetting_processes_status_check') THEN
    ALTER TABLE vetting_processes DROP CONSTRAINT vetting_processes_status_check;
  END IF;
  ALTER TABLE vetting_processes
    ADD CONSTRAINT vetting_processes_status_check
    CHECK (status IN ('PENDING','RUNNING','AUTO_COMPLETE','IN_REVIEW','APPROVED','REJECTED','FAILED'));
EXCEPTION
  WHEN duplicate_object THEN NULL;
END$$;

CREATE INDEX IF NOT EXISTS idx_vetting_processes_status_created ON vetting_processes (status, created_at);

CREATE OR REPLACE FUNCTION notify_process_event() RETURNS trigger AS $$
BEGIN
  PERFORM pg_notify('process_events', NEW.id::text);
  RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DO $$
BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'vetting_processes_notify') THEN
    CREATE TRIGGER vetting_processes_notify
    AFTER INSERT OR UPDATE OF status ON vetting_processes
    FOR EACH ROW EXECUTE FUNCTION notify_process_event();
  END IF;
END$$;

CREATE TABLE IF NOT EXISTS automatic_checks (
  id BIGSERIAL PRIMARY KEY,
  process_id UUID NOT NULL REFERENCES vetting_processes(id) ON DELETE CASCADE,
  check_type TEXT NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('COMPLETED','FAILED','SKIPPED')),
  passed BOOLEAN,
  score DOUBLE PRECISION,
  severity TEXT NOT NULL,
  details TEXT,
  raw_value JSONB,
  checked_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (process_id, check_type)
);

CREATE TABLE IF NOT EXISTS manual_checks (
  id BIGSERIAL PRIMARY KEY,
  process_id UUID NOT NULL REFERENCES vetting_processes(id) ON DELETE CASCADE,
  check_type TEXT NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('COMPLETED','FAILED','SKIPPED')),
  passed BOOLEAN,
  score DOUBLE PRECISION,
  severity TEXT NOT NULL,
  details TEXT,
  raw_value JSONB,
  reviewer TEXT,
  checked_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (process_id, check_type)
);

CREATE TABLE IF NOT EXISTS red_flags (
  id BIGSERIAL PRIMARY KEY,
  process_id UUID NOT NULL REFERENCES vetting_processes(id) ON DELETE CASCADE,
  check_type TEXT NOT NULL,
  message TEXT NOT NULL,
  severity TEXT NOT NULL,
  source TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_red_flags_process ON red_flags (process_id);

CREATE TABLE IF NOT EXISTS green_flags (
  id BIGSERIAL PRIMARY KEY,
  process_id UUID NOT NULL REFERENCES vetting_processes(id) ON DELETE CASCADE,
  check_type TEXT NOT NULL,
  message TEXT NOT NULL,
  source TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_green_flags_process ON green_flags (process_id);

CREATE TABLE IF NOT EXISTS process_activity (
  id BIGSERIAL PRIMARY KEY,
  process_id UUID NOT NULL REFERENCES vetting_processes(id) ON DELETE CASCADE,
  kind TEXT NOT NULL,
  summary TEXT NOT NULL,
  checks_run INTEGER NOT NULL DEFAULT 0,
  checks_passed INTEGER NOT NULL DEFAULT 0,
  error_count INTEGER NOT NULL DEFAULT 0,
  details JSONB,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_process_activity_process_id ON process_activity (process_id, id);
`)
	return err
}
