package models

import (
	"strings"
	"time"

	"qualitrack/pkg/domain"
	dErrors "qualitrack/pkg/domain-errors"
)

// ProtocolType distinguishes first-time qualification from periodic
// requalification of equipment.
type ProtocolType string

const (
	TypeHomologation    ProtocolType = "HOMOLOGATION"
	TypeRequalification ProtocolType = "REQUALIFICATION"
)

func (t ProtocolType) IsValid() bool {
	return t == TypeHomologation || t == TypeRequalification
}

// ParseProtocolType normalizes a raw type string. Unknown values are
// rejected rather than defaulted.
func ParseProtocolType(raw string) (ProtocolType, error) {
	t := ProtocolType(strings.ToUpper(strings.TrimSpace(raw)))
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "protocol type must be HOMOLOGATION or REQUALIFICATION")
	}
	return t, nil
}

// StandardCriterion is a catalog item applied to every report regardless
// of protocol. Exactly one department implements it and exactly one
// department checks it.
type StandardCriterion struct {
	ID                         domain.CriterionID  `json:"id"`
	Description                string              `json:"description"`
	ImplementationDepartmentID domain.DepartmentID `json:"implementationDepartmentId"`
	CheckDepartmentID          domain.DepartmentID `json:"checkDepartmentId"`
}

func NewStandardCriterion(id domain.CriterionID, description string, implementation, check domain.DepartmentID) (*StandardCriterion, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "criterion description is required")
	}
	if implementation.IsNil() || check.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "criterion requires implementation and check departments")
	}
	return &StandardCriterion{
		ID:                         id,
		Description:                description,
		ImplementationDepartmentID: implementation,
		CheckDepartmentID:          check,
	}, nil
}

// SpecificCriterion belongs to a single protocol and carries sets of
// responsible departments. Both sets must be non-empty.
type SpecificCriterion struct {
	ID                          domain.CriterionID    `json:"id"`
	ProtocolID                  domain.ProtocolID     `json:"protocolId"`
	Description                 string                `json:"description"`
	ImplementationDepartmentIDs []domain.DepartmentID `json:"implementationDepartmentIds"`
	CheckDepartmentIDs          []domain.DepartmentID `json:"checkDepartmentIds"`
}

func NewSpecificCriterion(id domain.CriterionID, protocolID domain.ProtocolID, description string, implementation, check []domain.DepartmentID) (*SpecificCriterion, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "criterion description is required")
	}
	if len(implementation) == 0 || len(check) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "criterion requires at least one implementation and one check department")
	}
	return &SpecificCriterion{
		ID:                          id,
		ProtocolID:                  protocolID,
		Description:                 description,
		ImplementationDepartmentIDs: dedupeDepartments(implementation),
		CheckDepartmentIDs:          dedupeDepartments(check),
	}, nil
}

// IsCheckDepartment reports whether the given department sits in the
// criterion's check-responsible set.
func (c *SpecificCriterion) IsCheckDepartment(id domain.DepartmentID) bool {
	for _, d := range c.CheckDepartmentIDs {
		if d == id {
			return true
		}
	}
	return false
}

// Protocol is a named bundle of specific criteria. It is immutable once
// created; reports reference it by id.
type Protocol struct {
	ID               domain.ProtocolID    `json:"id"`
	Name             string               `json:"name"`
	Type             ProtocolType         `json:"type"`
	CreatedBy        domain.UserID        `json:"createdBy"`
	CreatedAt        time.Time            `json:"createdAt"`
	SpecificCriteria []*SpecificCriterion `json:"specificCriteria"`
}

func NewProtocol(id domain.ProtocolID, name string, protocolType ProtocolType, createdBy domain.UserID) (*Protocol, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "protocol name is required")
	}
	if !protocolType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid protocol type")
	}
	if createdBy.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "protocol creator is required")
	}
	return &Protocol{
		ID:        id,
		Name:      name,
		Type:      protocolType,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func dedupeDepartments(ids []domain.DepartmentID) []domain.DepartmentID {
	seen := make(map[domain.DepartmentID]struct{}, len(ids))
	out := make([]domain.DepartmentID, 0, len(ids))
	for _, id := range ids {
		if id.IsNil() {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
