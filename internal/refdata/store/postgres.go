package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"qualitrack/internal/refdata/models"
	"qualitrack/pkg/domain"
	"qualitrack/pkg/platform/sentinel"
)

// Postgres persists reference data in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) CreateDepartmentIfNameAvailable(ctx context.Context, d *models.Department) error {
	query := `INSERT INTO departments (id, name) VALUES ($1, $2)`
	_, err := s.db.ExecContext(ctx, query, uuid.UUID(d.ID), d.Name)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

func (s *Postgres) UpdateDepartment(ctx context.Context, d *models.Department) error {
	query := `UPDATE departments SET name = $2 WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query, uuid.UUID(d.ID), d.Name)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("update department: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update department rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) DeleteDepartment(ctx context.Context, id domain.DepartmentID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM departments WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("delete department: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete department rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) FindDepartment(ctx context.Context, id domain.DepartmentID) (*models.Department, error) {
	return s.scanDepartment(s.db.QueryRowContext(ctx,
		`SELECT id, name FROM departments WHERE id = $1`, uuid.UUID(id)))
}

func (s *Postgres) FindDepartmentByName(ctx context.Context, name string) (*models.Department, error) {
	return s.scanDepartment(s.db.QueryRowContext(ctx,
		`SELECT id, name FROM departments WHERE lower(name) = lower($1)`, name))
}

func (s *Postgres) scanDepartment(r interface{ Scan(...any) error }) (*models.Department, error) {
	var d models.Department
	var id uuid.UUID
	if err := r.Scan(&id, &d.Name); err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan department: %w", err)
	}
	d.ID = domain.DepartmentID(id)
	return &d, nil
}

func (s *Postgres) ListDepartments(ctx context.Context) ([]*models.Department, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM departments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()

	var out []*models.Department
	for rows.Next() {
		var d models.Department
		var id uuid.UUID
		if err := rows.Scan(&id, &d.Name); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		d.ID = domain.DepartmentID(id)
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (s *Postgres) SavePlant(ctx context.Context, p *models.Plant) error {
	query := `
		INSERT INTO plants (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`
	if _, err := s.db.ExecContext(ctx, query, uuid.UUID(p.ID), p.Name); err != nil {
		return fmt.Errorf("save plant: %w", err)
	}
	return nil
}

func (s *Postgres) ListPlants(ctx context.Context) ([]*models.Plant, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM plants ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list plants: %w", err)
	}
	defer rows.Close()

	var out []*models.Plant
	for rows.Next() {
		var p models.Plant
		var id uuid.UUID
		if err := rows.Scan(&id, &p.Name); err != nil {
			return nil, fmt.Errorf("scan plant: %w", err)
		}
		p.ID = domain.PlantID(id)
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *Postgres) SaveLanguage(ctx context.Context, l *models.Language) error {
	query := `
		INSERT INTO languages (id, code, name, flag_url, is_default)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code,
			name = EXCLUDED.name,
			flag_url = EXCLUDED.flag_url,
			is_default = EXCLUDED.is_default
	`
	if _, err := s.db.ExecContext(ctx, query, uuid.UUID(l.ID), l.Code, l.Name, l.FlagURL, l.IsDefault); err != nil {
		return fmt.Errorf("save language: %w", err)
	}
	return nil
}

func (s *Postgres) ListLanguages(ctx context.Context) ([]*models.Language, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, code, name, flag_url, is_default FROM languages ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list languages: %w", err)
	}
	defer rows.Close()

	var out []*models.Language
	for rows.Next() {
		l, err := scanLanguage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Postgres) FindLanguageByCode(ctx context.Context, code string) (*models.Language, error) {
	l, err := scanLanguage(s.db.QueryRowContext(ctx,
		`SELECT id, code, name, flag_url, is_default FROM languages WHERE lower(code) = lower($1)`, code))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find language by code: %w", err)
	}
	return l, nil
}

func (s *Postgres) FindDefaultLanguage(ctx context.Context) (*models.Language, error) {
	l, err := scanLanguage(s.db.QueryRowContext(ctx,
		`SELECT id, code, name, flag_url, is_default FROM languages WHERE is_default LIMIT 1`))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find default language: %w", err)
	}
	return l, nil
}

func scanLanguage(r interface{ Scan(...any) error }) (*models.Language, error) {
	var l models.Language
	var id uuid.UUID
	if err := r.Scan(&id, &l.Code, &l.Name, &l.FlagURL, &l.IsDefault); err != nil {
		return nil, err
	}
	l.ID = domain.LanguageID(id)
	return &l, nil
}
