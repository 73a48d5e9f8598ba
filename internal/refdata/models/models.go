package models

import (
	"strings"

	"qualitrack/pkg/domain"
	dErrors "qualitrack/pkg/domain-errors"
)

// Department is referenced, never owned, by criteria and users.
type Department struct {
	ID   domain.DepartmentID `json:"id"`
	Name string              `json:"name"`
}

func NewDepartment(id domain.DepartmentID, name string) (*Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "department name cannot be empty")
	}
	return &Department{ID: id, Name: name}, nil
}

// Plant is a physical site users belong to.
type Plant struct {
	ID   domain.PlantID `json:"id"`
	Name string         `json:"name"`
}

// Language is UI reference data: a selectable locale with a default flag.
type Language struct {
	ID        domain.LanguageID `json:"id"`
	Code      string            `json:"code"`
	Name      string            `json:"name"`
	FlagURL   string            `json:"flagUrl,omitempty"`
	IsDefault bool              `json:"isDefault"`
}
