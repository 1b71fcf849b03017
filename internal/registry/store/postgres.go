package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"safemint/internal/registry/models"
	id "safemint/pkg/domain"
	"safemint/pkg/platform/sentinel"
)

// Postgres mirrors the in-memory store for durable deployments. Partition
// order is kept by a global status sequence: every insert or status change
// takes the next value, so paginated reads preserve partition entry order.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Schema returns the DDL this store expects. Applied by migrations in
// deployments; integration tests apply it directly.
func Schema() string {
	return `
CREATE SEQUENCE IF NOT EXISTS project_status_seq;

CREATE TABLE IF NOT EXISTS projects (
    id               BIGSERIAL PRIMARY KEY,
    name             TEXT NOT NULL,
    owner_account    TEXT NOT NULL,
    project_contract TEXT NOT NULL,
    start_time       BIGINT NOT NULL,
    end_time         BIGINT NOT NULL,
    ipfs_address     TEXT NOT NULL,
    project_fee      NUMERIC(78, 0) NOT NULL,
    status           SMALLINT NOT NULL,
    status_seq       BIGINT NOT NULL DEFAULT nextval('project_status_seq'),
    CONSTRAINT projects_name_key UNIQUE (name),
    CONSTRAINT projects_owner_key UNIQUE (owner_account),
    CONSTRAINT projects_contract_key UNIQUE (project_contract)
);

CREATE INDEX IF NOT EXISTS projects_status_idx ON projects (status, status_seq);
`
}

const projectColumns = `id, name, owner_account, project_contract, start_time, end_time, ipfs_address, project_fee::TEXT, status`

func (s *Postgres) Create(ctx context.Context, p *models.Project) (uint64, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO projects (name, owner_account, project_contract, start_time, end_time, ipfs_address, project_fee, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8)
		RETURNING id`,
		p.Name, p.Owner.String(), p.ProjectContract.String(),
		p.StartTime, p.EndTime, p.IPFSAddress,
		id.AmountString(p.ProjectFee), p.Status,
	)

	var projectID uint64
	if err := row.Scan(&projectID); err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return 0, mapped
		}
		return 0, fmt.Errorf("insert project: %w", err)
	}
	p.ID = projectID
	return projectID, nil
}

// CheckAvailable reports which uniqueness rule a create with these identities
// would violate. Create re-checks via the unique constraints, so a race here
// still cannot corrupt the table.
func (s *Postgres) CheckAvailable(ctx context.Context, name string, owner, contract id.Account) error {
	var ownerHit, contractHit, nameHit bool
	err := s.db.QueryRowContext(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM projects WHERE owner_account = $1),
			EXISTS (SELECT 1 FROM projects WHERE project_contract = $2),
			EXISTS (SELECT 1 FROM projects WHERE name = $3)`,
		owner.String(), contract.String(), name,
	).Scan(&ownerHit, &contractHit, &nameHit)
	if err != nil {
		return fmt.Errorf("check availability: %w", err)
	}
	switch {
	case ownerHit:
		return ErrOwnerTaken
	case contractHit:
		return ErrContractTaken
	case nameHit:
		return ErrNameTaken
	default:
		return nil
	}
}

func (s *Postgres) FindByID(ctx context.Context, projectID uint64) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, projectID)
	return scanProject(row)
}

func (s *Postgres) FindByName(ctx context.Context, name string) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE name = $1`, name)
	return scanProject(row)
}

func (s *Postgres) IDByName(ctx context.Context, name string) (uint64, error) {
	var projectID uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM projects WHERE name = $1`, name).Scan(&projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, sentinel.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup project id: %w", err)
	}
	return projectID, nil
}

// Execute validates and mutates a project under SELECT ... FOR UPDATE, so the
// row lock covers both callbacks. A status change refreshes status_seq to
// record the new partition entry position.
func (s *Postgres) Execute(ctx context.Context, name string, validate func(*models.Project) error, mutate func(*models.Project)) (*models.Project, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE name = $1 FOR UPDATE`, name)
	p, err := scanProject(row)
	if err != nil {
		return nil, err
	}

	if err := validate(p); err != nil {
		return nil, err
	}

	before := p.Status
	mutate(p)

	if p.Status != before {
		_, err = tx.ExecContext(ctx, `
			UPDATE projects
			SET start_time = $2, end_time = $3, ipfs_address = $4, status = $5,
			    status_seq = nextval('project_status_seq')
			WHERE id = $1`,
			p.ID, p.StartTime, p.EndTime, p.IPFSAddress, p.Status)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE projects
			SET start_time = $2, end_time = $3, ipfs_address = $4
			WHERE id = $1`,
			p.ID, p.StartTime, p.EndTime, p.IPFSAddress)
	}
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

func (s *Postgres) ListByStatus(ctx context.Context, status models.Status, offset, limit int) ([]*models.Project, error) {
	if offset < 0 || limit <= 0 {
		return []*models.Project{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects
		 WHERE status = $1 ORDER BY status_seq OFFSET $2 LIMIT $3`,
		status, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	page := []*models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		page = append(page, p)
	}
	return page, rows.Err()
}

func (s *Postgres) CountByStatus(ctx context.Context, status models.Status) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects WHERE status = $1`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	var (
		p     models.Project
		owner string
		contr string
		fee   string
	)
	err := row.Scan(&p.ID, &p.Name, &owner, &contr, &p.StartTime, &p.EndTime, &p.IPFSAddress, &fee, &p.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	p.Owner = id.Account(owner)
	p.ProjectContract = id.Account(contr)
	amount, ok := id.ParseAmount(fee)
	if !ok {
		return nil, fmt.Errorf("malformed project fee %q", fee)
	}
	p.ProjectFee = amount
	return &p, nil
}

// mapUniqueViolation translates pq unique-constraint failures to the identity
// errors the service layer distinguishes.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return nil
	}
	switch pqErr.Constraint {
	case "projects_owner_key":
		return ErrOwnerTaken
	case "projects_contract_key":
		return ErrContractTaken
	case "projects_name_key":
		return ErrNameTaken
	default:
		return sentinel.ErrConflict
	}
}
