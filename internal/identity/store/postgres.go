package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"qualitrack/internal/identity/models"
	"qualitrack/pkg/domain"
	"qualitrack/pkg/platform/sentinel"
)

// Postgres persists users in PostgreSQL.
// This store is pure I/O; role rules and password policy belong in the service.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Save(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, first_name, last_name, password_hash, role, department_id, plant_id, profile_photo, created_at)
		VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role,
			department_id = EXCLUDED.department_id,
			plant_id = EXCLUDED.plant_id,
			profile_photo = EXCLUDED.profile_photo
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(user.ID),
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		string(user.Role),
		nullableUUID(uuid.UUID(user.DepartmentID)),
		nullableUUID(uuid.UUID(user.PlantID)),
		user.ProfilePhoto,
		user.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.UserID) (*models.User, error) {
	query := selectUser + ` WHERE id = $1`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, uuid.UUID(id)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return user, nil
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := selectUser + ` WHERE email = lower($1)`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return user, nil
}

func (s *Postgres) ListByRoleNot(ctx context.Context, role domain.Role) ([]*models.User, error) {
	query := selectUser + ` WHERE role <> $1 ORDER BY last_name, first_name`
	rows, err := s.db.QueryContext(ctx, query, string(role))
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

const selectUser = `
	SELECT id, email, first_name, last_name, password_hash, role, department_id, plant_id, profile_photo, created_at
	FROM users
`

type row interface {
	Scan(dest ...any) error
}

func scanUser(r row) (*models.User, error) {
	var user models.User
	var id uuid.UUID
	var departmentID, plantID uuid.NullUUID
	var role string
	if err := r.Scan(&id, &user.Email, &user.FirstName, &user.LastName, &user.PasswordHash, &role, &departmentID, &plantID, &user.ProfilePhoto, &user.CreatedAt); err != nil {
		return nil, err
	}
	user.ID = domain.UserID(id)
	user.Role = domain.Role(role)
	if departmentID.Valid {
		user.DepartmentID = domain.DepartmentID(departmentID.UUID)
	}
	if plantID.Valid {
		user.PlantID = domain.PlantID(plantID.UUID)
	}
	return &user, nil
}

func nullableUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}
