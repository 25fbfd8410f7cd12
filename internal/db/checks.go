package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourorg/vetting-worker/internal/checks"
	"github.com/yourorg/vetting-worker/internal/model"
)

func (s *Store) UpsertCheck(ctx context.Context, r model.CheckResult) error {
	return s.upsertCheck(ctx, "automatic_checks", r, "")
}

// UpsertManualCheck records a reviewer verdict against a manual check type.
func (s *Store) UpsertManualCheck(ctx context.Context, r model.CheckResult, reviewer string) error {
	return s.upsertCheck(ctx, "manual_checks", r, reviewer)
}

func (s *Store) upsertCheck(ctx context.Context, table string, r model.CheckResult, reviewer string) error {
	if err := r.Validate(); err != nil {
		return err
	}
	var raw []byte
	if len(r.RawValue) > 0 {
		raw = r.RawValue
	}
	cols := "process_id, check_type, status, passed, score, severity, details, raw_value, checked_at"
	vals := "$1, $2, $3, $4, $5, $6, $7, $8, $9"
	set := `status = EXCLUDED.status,
		  passed = EXCLUDED.passed,
		  score = EXCLUDED.score,
		  severity = EXCLUDED.severity,
		  details = EXCLUDED.details,
		  raw_value = EXCLUDED.raw_value,
		  checked_at = EXCLUDED.checked_at`
	args := []interface{}{
		r.ProcessID, string(r.CheckType), string(r.Status), r.Outcome.Bool(), r.Score,
		string(r.Severity), nullableString(r.Details), raw, r.CheckedAt,
	}
	if table == "manual_checks" {
		cols += ", reviewer"
		vals += ", $10"
		set += ",\n\t\t  reviewer = EXCLUDED.reviewer"
		args = append(args, nullableString(reviewer))
	}
	_, err := s.Pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (%s)
		ON CONFLICT (process_id, check_type) DO UPDATE SET
		  %s`, table, cols, vals, set), args...)
	return err
}

func (s *Store) FindChecks(ctx context.Context, processID uuid.UUID) ([]model.CheckResult, error) {
	return s.findChecks(ctx, "automatic_checks", processID)
}

func (s *Store) FindManualChecks(ctx context.Context, processID uuid.UUID) ([]model.CheckResult, error) {
	return s.findChecks(ctx, "manual_checks", processID)
}

func (s *Store) findChecks(ctx context.Context, table string, processID uuid.UUID) ([]model.CheckResult, error) {
	rows, err := s.Pool.Query(ctx, fmt.Sprintf(`
		SELECT process_id, check_type, status, passed, score, severity, COALESCE(details, ''), raw_value, checked_at
		FROM %s
		WHERE process_id=$1
		ORDER BY check_type
	`, table), processID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CheckResult
	for rows.Next() {
		var (
			r                      model.CheckResult
			checkType, status, sev string
			passed                 *bool
		)
		if err := rows.Scan(&r.ProcessID, &checkType, &status, &passed, &r.Score, &sev, &r.Details, &r.RawValue, &r.CheckedAt); err != nil {
			return nil, err
		}
		r.CheckType = checks.Type(checkType)
		r.Status = model.CheckStatus(status)
		r.Severity = checks.Severity(sev)
		r.Outcome = model.OutcomeOf(passed)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplaceFlags swaps the process's red and green flags in one transaction so
// readers never see a partial set.
func (s *Store) ReplaceFlags(ctx context.Context, processID uuid.UUID, flags model.Flags) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM red_flags WHERE process_id=$1`, processID)
	batch.Queue(`DELETE FROM green_flags WHERE process_id=$1`, processID)
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("clear flags: %w", err)
	}

	if err := batchInsertRedFlags(ctx, tx, processID, flags.Red); err != nil {
		return fmt.Errorf("batch insert red flags: %w", err)
	}
	if err := batchInsertGreenFlags(ctx, tx, processID, flags.Green); err != nil {
		return fmt.Errorf("batch insert green flags: %w", err)
	}
	return tx.Commit(ctx)
}

func batchInsertRedFlags(ctx context.Context, tx pgx.Tx, processID uuid.UUID, flags []model.RedFlag) error {
	for start := 0; start < len(flags); start += batchSize {
		end := min(start+batchSize, len(flags))
		chunk := flags[start:end]

		const colCount = 5
		var sb strings.Builder
		sb.WriteString(`INSERT INTO red_flags (process_id, check_type, message, severity, source) VALUES `)
		args := make([]interface{}, 0, len(chunk)*colCount)
		for i, f := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			base := i*colCount + 1
			sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", base, base+1, base+2, base+3, base+4))
			args = append(args, processID, string(f.CheckType), f.Message, string(f.Severity), string(f.Source))
		}
		if _, err := tx.Exec(ctx, sb.String(), args...); err != nil {
			return err
		}
	}
	return nil
}

func batchInsertGreenFlags(ctx context.Context, tx pgx.Tx, processID uuid.UUID, flags []model.GreenFlag) error {
	for start := 0; start < len(flags); start += batchSize {
		end := min(start+batchSize, len(flags))
		chunk := flags[start:end]

		const colCount = 4
		var sb strings.Builder
		sb.WriteString(`INSERT INTO green_flags (process_id, check_type, message, source) VALUES `)
		args := make([]interface{}, 0, len(chunk)*colCount)
		for i, f := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			base := i*colCount + 1
			sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d)", base, base+1, base+2, base+3))
			args = append(args, processID, string(f.CheckType), f.Message, string(f.Source))
		}
		if _, err := tx.Exec(ctx, sb.String(), args...); err != nil {
			return err
		}
	}
	return nil
}

// ListFlags reads the current flag set of a process.
func (s *Store) ListFlags(ctx context.Context, processID uuid.UUID) (model.Flags, error) {
	var flags model.Flags

	rows, err := s.Pool.Query(ctx, `
		SELECT check_type, message, severity, source FROM red_flags
		WHERE process_id=$1 ORDER BY id
	`, processID)
	if err != nil {
		return flags, err
	}
	flags.Red, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.RedFlag, error) {
		var ct, msg, sev, src string
		err := row.Scan(&ct, &msg, &sev, &src)
		return model.RedFlag{CheckType: checks.Type(ct), Message: msg, Severity: checks.Severity(sev), Source: model.FlagSource(src)}, err
	})
	if err != nil {
		return flags, err
	}

	rows, err = s.Pool.Query(ctx, `
		SELECT check_type, message, source FROM green_flags
		WHERE process_id=$1 ORDER BY id
	`, processID)
	if err != nil {
		return flags, err
	}
	flags.Green, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.GreenFlag, error) {
		var ct, msg, src string
		err := row.Scan(&ct, &msg, &src)
		return model.GreenFlag{CheckType: checks.Type(ct), Message: msg, Source: model.FlagSource(src)}, err
	})
	return flags, err
}
