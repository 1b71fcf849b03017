package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"safemint/internal/audit/models"
	id "safemint/pkg/domain"
	"safemint/pkg/platform/sentinel"
)

// Postgres mirrors the in-memory fee-record store for durable deployments.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Schema returns the DDL this store expects.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS fee_records (
    project_id    BIGINT PRIMARY KEY,
    auditor       TEXT NOT NULL,
    value         NUMERIC(78, 0) NOT NULL,
    challenger    TEXT NOT NULL DEFAULT '',
    challenge_fee NUMERIC(78, 0) NOT NULL DEFAULT 0,
    arbitrated    BOOLEAN NOT NULL DEFAULT FALSE,
    claimed       BOOLEAN NOT NULL DEFAULT FALSE
);
`
}

const recordColumns = `project_id, auditor, value::TEXT, challenger, challenge_fee::TEXT, arbitrated, claimed`

// Save upserts the record for its project; a conflict is the re-audit
// overwrite path.
func (s *Postgres) Save(ctx context.Context, record *models.FeeRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fee_records (project_id, auditor, value, challenger, challenge_fee, arbitrated, claimed)
		VALUES ($1, $2, $3::NUMERIC, $4, $5::NUMERIC, $6, $7)
		ON CONFLICT (project_id) DO UPDATE SET
			auditor = EXCLUDED.auditor,
			value = EXCLUDED.value,
			challenger = EXCLUDED.challenger,
			challenge_fee = EXCLUDED.challenge_fee,
			arbitrated = EXCLUDED.arbitrated,
			claimed = EXCLUDED.claimed`,
		record.ProjectID, record.Auditor.String(), id.AmountString(record.Value),
		record.Challenger.String(), id.AmountString(record.ChallengeFee),
		record.Arbitrated, record.Claimed,
	)
	if err != nil {
		return fmt.Errorf("save fee record: %w", err)
	}
	return nil
}

func (s *Postgres) Find(ctx context.Context, projectID uint64) (*models.FeeRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM fee_records WHERE project_id = $1`, projectID)
	return scanRecord(row)
}

// Execute validates and mutates a record under SELECT ... FOR UPDATE.
func (s *Postgres) Execute(ctx context.Context, projectID uint64, validate func(*models.FeeRecord) error, mutate func(*models.FeeRecord)) (*models.FeeRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM fee_records WHERE project_id = $1 FOR UPDATE`, projectID)
	record, err := scanRecord(row)
	if err != nil {
		return nil, err
	}

	if err := validate(record); err != nil {
		return nil, err
	}
	mutate(record)

	_, err = tx.ExecContext(ctx, `
		UPDATE fee_records
		SET auditor = $2, value = $3::NUMERIC, challenger = $4,
		    challenge_fee = $5::NUMERIC, arbitrated = $6, claimed = $7
		WHERE project_id = $1`,
		record.ProjectID, record.Auditor.String(), id.AmountString(record.Value),
		record.Challenger.String(), id.AmountString(record.ChallengeFee),
		record.Arbitrated, record.Claimed,
	)
	if err != nil {
		return nil, fmt.Errorf("update fee record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return record, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.FeeRecord, error) {
	var (
		r          models.FeeRecord
		auditor    string
		challenger string
		value      string
		challenge  string
	)
	err := row.Scan(&r.ProjectID, &auditor, &value, &challenger, &challenge, &r.Arbitrated, &r.Claimed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan fee record: %w", err)
	}
	r.Auditor = id.Account(auditor)
	r.Challenger = id.Account(challenger)
	amount, ok := id.ParseAmount(value)
	if !ok {
		return nil, fmt.Errorf("malformed audit fee %q", value)
	}
	r.Value = amount
	fee, ok := id.ParseAmount(challenge)
	if !ok {
		return nil, fmt.Errorf("malformed challenge fee %q", challenge)
	}
	r.ChallengeFee = fee
	return &r, nil
}
