package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"qualitrack/internal/protocol/models"
	"qualitrack/pkg/domain"
	"qualitrack/pkg/platform/sentinel"
)

// Postgres persists protocols and the standard criteria catalog.
// Department sets on specific criteria are stored as uuid arrays.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// SaveProtocol writes the protocol and its specific criteria in one
// transaction so a protocol is never visible without its criteria.
func (s *Postgres) SaveProtocol(ctx context.Context, p *models.Protocol) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save protocol: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO protocols (id, name, type, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.UUID(p.ID), p.Name, string(p.Type), uuid.UUID(p.CreatedBy), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert protocol: %w", err)
	}

	for _, c := range p.SpecificCriteria {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO specific_criteria (id, protocol_id, description, implementation_department_ids, check_department_ids)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.UUID(c.ID), uuid.UUID(p.ID), c.Description,
			pq.Array(departmentUUIDs(c.ImplementationDepartmentIDs)),
			pq.Array(departmentUUIDs(c.CheckDepartmentIDs)))
		if err != nil {
			return fmt.Errorf("insert specific criterion: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save protocol: %w", err)
	}
	return nil
}

func (s *Postgres) FindProtocol(ctx context.Context, id domain.ProtocolID) (*models.Protocol, error) {
	var p models.Protocol
	var pid, createdBy uuid.UUID
	var protocolType string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, type, created_by, created_at FROM protocols WHERE id = $1
	`, uuid.UUID(id)).Scan(&pid, &p.Name, &protocolType, &createdBy, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find protocol: %w", err)
	}
	p.ID = domain.ProtocolID(pid)
	p.Type = models.ProtocolType(protocolType)
	p.CreatedBy = domain.UserID(createdBy)

	criteria, err := s.listSpecificCriteria(ctx, id)
	if err != nil {
		return nil, err
	}
	p.SpecificCriteria = criteria
	return &p, nil
}

func (s *Postgres) ListProtocols(ctx context.Context) ([]*models.Protocol, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, created_by, created_at FROM protocols ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list protocols: %w", err)
	}
	defer rows.Close()

	var out []*models.Protocol
	for rows.Next() {
		var p models.Protocol
		var pid, createdBy uuid.UUID
		var protocolType string
		if err := rows.Scan(&pid, &p.Name, &protocolType, &createdBy, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan protocol: %w", err)
		}
		p.ID = domain.ProtocolID(pid)
		p.Type = models.ProtocolType(protocolType)
		p.CreatedBy = domain.UserID(createdBy)
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range out {
		criteria, err := s.listSpecificCriteria(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		p.SpecificCriteria = criteria
	}
	return out, nil
}

func (s *Postgres) listSpecificCriteria(ctx context.Context, protocolID domain.ProtocolID) ([]*models.SpecificCriterion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, protocol_id, description, implementation_department_ids, check_department_ids
		FROM specific_criteria WHERE protocol_id = $1
	`, uuid.UUID(protocolID))
	if err != nil {
		return nil, fmt.Errorf("list specific criteria: %w", err)
	}
	defer rows.Close()

	var out []*models.SpecificCriterion
	for rows.Next() {
		var c models.SpecificCriterion
		var cid, pid uuid.UUID
		var implementation, check []uuid.UUID
		if err := rows.Scan(&cid, &pid, &c.Description, pq.Array(&implementation), pq.Array(&check)); err != nil {
			return nil, fmt.Errorf("scan specific criterion: %w", err)
		}
		c.ID = domain.CriterionID(cid)
		c.ProtocolID = domain.ProtocolID(pid)
		c.ImplementationDepartmentIDs = departmentIDs(implementation)
		c.CheckDepartmentIDs = departmentIDs(check)
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *Postgres) SaveStandardCriterion(ctx context.Context, c *models.StandardCriterion) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO standard_criteria (id, description, implementation_department_id, check_department_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			description = EXCLUDED.description,
			implementation_department_id = EXCLUDED.implementation_department_id,
			check_department_id = EXCLUDED.check_department_id
	`, uuid.UUID(c.ID), c.Description, uuid.UUID(c.ImplementationDepartmentID), uuid.UUID(c.CheckDepartmentID))
	if err != nil {
		return fmt.Errorf("save standard criterion: %w", err)
	}
	return nil
}

func (s *Postgres) ListStandardCriteria(ctx context.Context) ([]*models.StandardCriterion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, implementation_department_id, check_department_id
		FROM standard_criteria ORDER BY description
	`)
	if err != nil {
		return nil, fmt.Errorf("list standard criteria: %w", err)
	}
	defer rows.Close()

	var out []*models.StandardCriterion
	for rows.Next() {
		var c models.StandardCriterion
		var cid, implementation, check uuid.UUID
		if err := rows.Scan(&cid, &c.Description, &implementation, &check); err != nil {
			return nil, fmt.Errorf("scan standard criterion: %w", err)
		}
		c.ID = domain.CriterionID(cid)
		c.ImplementationDepartmentID = domain.DepartmentID(implementation)
		c.CheckDepartmentID = domain.DepartmentID(check)
		out = append(out, &c)
	}
	return out, rows.Err()
}

func departmentUUIDs(ids []domain.DepartmentID) []uuid.UUID {
	out := make([]uuid.UUID, len(ids))
	for i, id := range ids {
		out[i] = uuid.UUID(id)
	}
	return out
}

func departmentIDs(ids []uuid.UUID) []domain.DepartmentID {
	out := make([]domain.DepartmentID, len(ids))
	for i, id := range ids {
		out[i] = domain.DepartmentID(id)
	}
	return out
}
