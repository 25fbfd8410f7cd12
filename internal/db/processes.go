package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourorg/vetting-worker/internal/model"
)

const processColumns = `
	id, token_id, status, automatic_score, manual_score, overall_score,
	risk_level, worker_id, error_msg, created_at, started_at, finished_at`

func scanProcess(row pgx.Row) (*model.Process, error) {
	var (
		p      model.Process
		status string
		risk   *string
	)
	if err := row.Scan(
		&p.ID, &p.TokenID, &status, &p.AutomaticScore, &p.ManualScore, &p.OverallScore,
		&risk, &p.WorkerID, &p.ErrorMsg, &p.CreatedAt, &p.StartedAt, &p.FinishedAt,
	); err != nil {
		return nil, notFound(err)
	}
	p.Status = model.ProcessStatus(status)
	if risk != nil {
		lvl := model.RiskLevel(*risk)
		p.RiskLevel = &lvl
	}
	return &p, nil
}

// CreateToken registers a token, returning the existing row when the
// (chain, address) pair is already known.
func (s *Store) CreateToken(ctx context.Context, chain model.Chain, address string) (*model.Token, error) {
	address = chain.NormalizeAddress(address)
	var (
		t           model.Token
		name, sym   *string
		chainStored string
	)
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO tokens (id, chain, address)
		VALUES ($1, $2, $3)
		ON CONFLICT (chain, address) DO UPDATE SET chain = EXCLUDED.chain
		RETURNING id, chain, address, name, symbol, created_at
	`, uuid.New(), string(chain), address).Scan(&t.ID, &chainStored, &t.Address, &name, &sym, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Chain = model.Chain(chainStored)
	t.Name, t.Symbol = deref(name), deref(sym)
	return &t, nil
}

// CreateProcess queues a PENDING process for the token.
func (s *Store) CreateProcess(ctx context.Context, tokenID uuid.UUID) (*model.Process, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO vetting_processes (id, token_id, status)
		VALUES ($1, $2, 'PENDING')
		RETURNING`+processColumns, uuid.New(), tokenID)
	return scanProcess(row)
}

func (s *Store) GetProcess(ctx context.Context, id uuid.UUID) (*model.Process, error) {
	row := s.Pool.QueryRow(ctx, `SELECT`+processColumns+` FROM vetting_processes WHERE id=$1`, id)
	return scanProcess(row)
}

func (s *Store) GetToken(ctx context.Context, id uuid.UUID) (*model.Token, error) {
	var (
		t         model.Token
		chain     string
		name, sym *string
	)
	err := s.Pool.QueryRow(ctx, `
		SELECT id, chain, address, name, symbol, created_at
		FROM tokens WHERE id=$1
	`, id).Scan(&t.ID, &chain, &t.Address, &name, &sym, &t.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	t.Chain = model.Chain(chain)
	t.Name, t.Symbol = deref(name), deref(sym)
	return &t, nil
}

// UpdateTokenInfo only fills columns that are still empty.
func (s *Store) UpdateTokenInfo(ctx context.Context, id uuid.UUID, info model.TokenInfo) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE tokens
		SET name   = COALESCE(NULLIF(name, ''), $2),
		    symbol = COALESCE(NULLIF(symbol, ''), $3)
		WHERE id=$1
	`, id, nullableString(info.Name), nullableString(info.Symbol))
	return err
}

// AcquireNextPending claims the oldest PENDING process for workerID, or
// returns nil when the queue is empty.
func (s *Store) AcquireNextPending(ctx context.Context, workerID string) (*model.Process, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id
		FROM vetting_processes
		WHERE status='PENDING'
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE vetting_processes
		SET status='RUNNING', started_at=now(), heartbeat_at=now(), finished_at=NULL,
		    error_msg=NULL, worker_id=$2
		WHERE id=$1
		RETURNING`+processColumns, id, workerID)
	p, err := scanProcess(row)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) SetProcessStatus(ctx context.Context, id uuid.UUID, status model.ProcessStatus) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE vetting_processes
		SET status=$2::text,
		    started_at   = CASE WHEN $2='RUNNING' THEN now() ELSE started_at END,
		    heartbeat_at = CASE WHEN $2='RUNNING' THEN now() ELSE heartbeat_at END,
		    finished_at  = CASE WHEN $2 IN ('RUNNING','PENDING') THEN NULL ELSE now() END
		WHERE id=$1
	`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProcess writes the scores of a scoring pass and its resulting status.
func (s *Store) UpdateProcess(ctx context.Context, id uuid.UUID, u model.ProcessUpdate) error {
	var risk *string
	if u.RiskLevel != nil {
		v := string(*u.RiskLevel)
		risk = &v
	}
	tag, err := s.Pool.Exec(ctx, `
		UPDATE vetting_processes
		SET status=$2,
		    automatic_score=$3,
		    manual_score=$4,
		    overall_score=$5,
		    risk_level=$6,
		    finished_at = CASE WHEN status <> $2 OR finished_at IS NULL THEN now() ELSE finished_at END
		WHERE id=$1
	`, id, string(u.Status), u.AutomaticScore, u.ManualScore, u.OverallScore, risk)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Heartbeat marks a RUNNING process as still owned by a live worker.
func (s *Store) Heartbeat(ctx context.Context, id uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE vetting_processes SET heartbeat_at=now()
		WHERE id=$1 AND status='RUNNING'
	`, id)
	return err
}

func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE vetting_processes
		SET status='FAILED',
		    finished_at=now(),
		    error_msg=$2
		WHERE id=$1
		  AND status IN ('PENDING','RUNNING')
	`, id, errMsg)
	return err
}

// RequeueStaleRunning puts RUNNING processes whose worker stopped sending
// heartbeats back on the queue.
func (s *Store) RequeueStaleRunning(ctx context.Context, idleFor time.Duration) ([]uuid.UUID, error) {
	seconds := int64(idleFor.Seconds())
	if seconds <= 0 {
		return nil, nil
	}
	rows, err := s.Pool.Query(ctx, `
		UPDATE vetting_processes
		SET status='PENDING',
		    started_at=NULL,
		    worker_id=NULL,
		    error_msg='re-queued: previous worker lost'
		WHERE status='RUNNING'
		  AND COALESCE(heartbeat_at, started_at, created_at)
		      < now() - ($1::bigint * interval '1 second')
		RETURNING id
	`, seconds)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		s.notifyProcessChanged(ctx, id.String())
	}
	return ids, nil
}

// ListByStatus returns processes in any of the given statuses, oldest first.
func (s *Store) ListByStatus(ctx context.Context, statuses []model.ProcessStatus, limit int) ([]model.Process, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT`+processColumns+`
		FROM vetting_processes
		WHERE status = ANY($1)
		ORDER BY created_at
		LIMIT $2
	`, names, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Process
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) AppendActivity(ctx context.Context, processID uuid.UUID, a model.Activity) error {
	details, err := json.Marshal(a.Details)
	if err != nil {
		return fmt.Errorf("marshal activity details: %w", err)
	}
	at := a.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO process_activity (process_id, kind, summary, checks_run, checks_passed, error_count, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, processID, a.Kind, a.Summary, a.ChecksRun, a.ChecksPassed, a.ErrorCount, details, at)
	return err
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
