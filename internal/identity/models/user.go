package models

import (
	"strings"
	"time"

	"qualitrack/pkg/domain"
	dErrors "qualitrack/pkg/domain-errors"
)

// User is a member of the plant staff directory.
//
// Invariants:
//   - Email is non-empty and unique (store-enforced, case-insensitive)
//   - Role is one of ADMIN, DEPARTMENT_MANAGER, USER
//   - Non-admin users belong to exactly one department
//
// The password hash never leaves the service layer; it is excluded from JSON
// serialization entirely.
type User struct {
	ID           domain.UserID       `json:"id"`
	Email        string              `json:"email"`
	FirstName    string              `json:"firstName"`
	LastName     string              `json:"lastName"`
	PasswordHash string              `json:"-"`
	Role         domain.Role         `json:"role"`
	DepartmentID domain.DepartmentID `json:"departmentId"`
	PlantID      domain.PlantID      `json:"plantId"`
	ProfilePhoto string              `json:"profilePhoto,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
}

func NewUser(id domain.UserID, email, firstName, lastName, passwordHash string, role domain.Role, departmentID domain.DepartmentID, plantID domain.PlantID, now time.Time) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email cannot be empty")
	}
	if strings.TrimSpace(firstName) == "" || strings.TrimSpace(lastName) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "first and last name are required")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid role")
	}
	if role != domain.RoleAdmin && departmentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "non-admin users must belong to a department")
	}
	return &User{
		ID:           id,
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: passwordHash,
		Role:         role,
		DepartmentID: departmentID,
		PlantID:      plantID,
		CreatedAt:    now,
	}, nil
}
