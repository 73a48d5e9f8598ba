// Package expand turns a protocol's criteria into the entry set of a new
// report. It is pure: no stores, no clocks, no ordering guarantees.
package expand

import (
	protocolmodels "qualitrack/internal/protocol/models"
	"qualitrack/pkg/domain"
)

// StandardDescriptor describes one pending standard entry.
type StandardDescriptor struct {
	CriterionID       domain.CriterionID
	CheckDepartmentID domain.DepartmentID
}

// SpecificDescriptor describes one pending specific entry.
type SpecificDescriptor struct {
	CriterionID        domain.CriterionID
	CheckDepartmentIDs []domain.DepartmentID
}

// Expansion is the blueprint of a report: one descriptor per criterion
// plus the set of departments that must appear in the assignment map.
type Expansion struct {
	Standard            []StandardDescriptor
	Specific            []SpecificDescriptor
	RequiredDepartments map[domain.DepartmentID]struct{}
}

// Requires reports whether the department participates in any criterion.
func (e Expansion) Requires(id domain.DepartmentID) bool {
	_, ok := e.RequiredDepartments[id]
	return ok
}

// Expand builds the expansion for the full standard catalog plus the
// protocol's specific criteria. The required-department set is the union
// of every implementation- and check-responsible department across both.
func Expand(standard []*protocolmodels.StandardCriterion, specific []*protocolmodels.SpecificCriterion) Expansion {
	out := Expansion{
		Standard:            make([]StandardDescriptor, 0, len(standard)),
		Specific:            make([]SpecificDescriptor, 0, len(specific)),
		RequiredDepartments: make(map[domain.DepartmentID]struct{}),
	}

	for _, c := range standard {
		out.Standard = append(out.Standard, StandardDescriptor{
			CriterionID:       c.ID,
			CheckDepartmentID: c.CheckDepartmentID,
		})
		out.RequiredDepartments[c.ImplementationDepartmentID] = struct{}{}
		out.RequiredDepartments[c.CheckDepartmentID] = struct{}{}
	}

	for _, c := range specific {
		out.Specific = append(out.Specific, SpecificDescriptor{
			CriterionID:        c.ID,
			CheckDepartmentIDs: append([]domain.DepartmentID(nil), c.CheckDepartmentIDs...),
		})
		for _, d := range c.ImplementationDepartmentIDs {
			out.RequiredDepartments[d] = struct{}{}
		}
		for _, d := range c.CheckDepartmentIDs {
			out.RequiredDepartments[d] = struct{}{}
		}
	}

	return out
}
