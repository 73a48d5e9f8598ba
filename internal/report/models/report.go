package models

import (
	"strings"
	"time"

	"qualitrack/pkg/domain"
	dErrors "qualitrack/pkg/domain-errors"
)

// Header carries the equipment identification fields captured when a
// report is opened. Free text, filled from the nameplate.
type Header struct {
	Type                 string `json:"type"`
	SerialNumber         string `json:"serialNumber"`
	EquipmentDescription string `json:"equipmentDescription"`
	Designation          string `json:"designation"`
	Manufacturer         string `json:"manufacturer"`
	Immobilization       string `json:"immobilization"`
	ServiceSegment       string `json:"serviceSegment"`
	BusinessUnit         string `json:"businessUnit"`
}

// Report is the root of the inspection workflow. Entries and the
// maintenance form hang off it by report id; the assigned-user set
// drives every write authorization.
type Report struct {
	ID              domain.ReportID   `json:"id"`
	ProtocolID      domain.ProtocolID `json:"protocolId"`
	Header          Header            `json:"header"`
	CreatedBy       domain.UserID     `json:"createdBy"`
	CreatedAt       time.Time         `json:"createdAt"`
	AssignedUserIDs []domain.UserID   `json:"assignedUserIds"`
	Completed       bool              `json:"completed"`
}

func NewReport(id domain.ReportID, protocolID domain.ProtocolID, header Header, createdBy domain.UserID, assigned []domain.UserID) (*Report, error) {
	if protocolID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "report requires a protocol")
	}
	if createdBy.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "report creator is required")
	}
	return &Report{
		ID:              id,
		ProtocolID:      protocolID,
		Header:          header,
		CreatedBy:       createdBy,
		CreatedAt:       time.Now().UTC(),
		AssignedUserIDs: dedupeUsers(assigned),
	}, nil
}

func (r *Report) IsAssigned(userID domain.UserID) bool {
	for _, id := range r.AssignedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// CanView reports whether the principal may read the report: its creator,
// any assigned user, or an administrator.
func (r *Report) CanView(p domain.Principal) bool {
	return p.IsAdmin() || r.CreatedBy == p.UserID || r.IsAssigned(p.UserID)
}

// CanComplete uses the same circle as CanView; completing is not
// restricted further.
func (r *Report) CanComplete(p domain.Principal) bool {
	return r.CanView(p)
}

// FillInput is the payload of a one-shot entry fill. A true verdict
// discards the remediation fields; a false verdict requires all four.
type FillInput struct {
	Verdict           *bool  `json:"verdict"`
	Action            string `json:"action"`
	ResponsibleAction string `json:"responsibleAction"`
	Deadline          string `json:"deadline"`
	SuccessControl    string `json:"successControl"`
}

// Validate enforces the verdict/remediation coupling before anything is
// persisted.
func (f FillInput) Validate() error {
	if f.Verdict == nil {
		return dErrors.New(dErrors.CodeValidation, "verdict status is required")
	}
	if *f.Verdict {
		return nil
	}
	missing := make([]string, 0, 4)
	if strings.TrimSpace(f.Action) == "" {
		missing = append(missing, "action")
	}
	if strings.TrimSpace(f.ResponsibleAction) == "" {
		missing = append(missing, "responsibleAction")
	}
	if strings.TrimSpace(f.Deadline) == "" {
		missing = append(missing, "deadline")
	}
	if strings.TrimSpace(f.SuccessControl) == "" {
		missing = append(missing, "successControl")
	}
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeValidation, "a negative verdict requires all remediation fields").
			WithDetail("missing", missing)
	}
	return nil
}

// CheckableEntry is the capability shared by standard and specific
// entries: a check-responsible department set and a one-shot fill flag.
// The authorization guard and the fill path are written once against it.
type CheckableEntry interface {
	CheckDepartments() []domain.DepartmentID
	IsUpdated() bool
	OwningReport() domain.ReportID
}

// StandardEntry is a report line for a standard catalog criterion. Exactly
// one department is check-responsible, denormalized from the criterion at
// expansion time.
type StandardEntry struct {
	ID                domain.EntryID      `json:"id"`
	ReportID          domain.ReportID     `json:"reportId"`
	CriterionID       domain.CriterionID  `json:"criterionId"`
	CheckDepartmentID domain.DepartmentID `json:"checkDepartmentId"`
	Implemented       *bool               `json:"implemented"`
	Action            *string             `json:"action"`
	ResponsibleAction *string             `json:"responsibleAction"`
	Deadline          *string             `json:"deadline"`
	SuccessControl    *string             `json:"successControl"`
	Updated           bool                `json:"updated"`
}

// NewPendingStandardEntry builds the unfilled entry a criterion expands
// into. Remediation fields start as empty strings; they become null only
// when a positive verdict discards them.
func NewPendingStandardEntry(id domain.EntryID, reportID domain.ReportID, criterionID domain.CriterionID, checkDepartmentID domain.DepartmentID) *StandardEntry {
	e := &StandardEntry{
		ID:                id,
		ReportID:          reportID,
		CriterionID:       criterionID,
		CheckDepartmentID: checkDepartmentID,
	}
	e.Action, e.ResponsibleAction, e.Deadline, e.SuccessControl = emptyRemediation()
	return e
}

func (e *StandardEntry) CheckDepartments() []domain.DepartmentID {
	return []domain.DepartmentID{e.CheckDepartmentID}
}
func (e *StandardEntry) IsUpdated() bool               { return e.Updated }
func (e *StandardEntry) OwningReport() domain.ReportID { return e.ReportID }

// ApplyFill transitions the entry from pending to filled. The caller must
// have validated the input; the store enforces the one-shot flag.
func (e *StandardEntry) ApplyFill(f FillInput) {
	e.Implemented = f.Verdict
	e.Action, e.ResponsibleAction, e.Deadline, e.SuccessControl = remediation(f)
	e.Updated = true
}

// SpecificEntry is a report line for one of the protocol's own criteria.
// Any department in the check set may fill it.
type SpecificEntry struct {
	ID                 domain.EntryID        `json:"id"`
	ReportID           domain.ReportID       `json:"reportId"`
	CriterionID        domain.CriterionID    `json:"criterionId"`
	CheckDepartmentIDs []domain.DepartmentID `json:"checkDepartmentIds"`
	Homologation       *bool                 `json:"homologation"`
	Action             *string               `json:"action"`
	ResponsibleAction  *string               `json:"responsibleAction"`
	Deadline           *string               `json:"deadline"`
	SuccessControl     *string               `json:"successControl"`
	Updated            bool                  `json:"updated"`
}

// NewPendingSpecificEntry mirrors NewPendingStandardEntry for protocol
// criteria.
func NewPendingSpecificEntry(id domain.EntryID, reportID domain.ReportID, criterionID domain.CriterionID, checkDepartmentIDs []domain.DepartmentID) *SpecificEntry {
	e := &SpecificEntry{
		ID:                 id,
		ReportID:           reportID,
		CriterionID:        criterionID,
		CheckDepartmentIDs: checkDepartmentIDs,
	}
	e.Action, e.ResponsibleAction, e.Deadline, e.SuccessControl = emptyRemediation()
	return e
}

func (e *SpecificEntry) CheckDepartments() []domain.DepartmentID { return e.CheckDepartmentIDs }
func (e *SpecificEntry) IsUpdated() bool                         { return e.Updated }
func (e *SpecificEntry) OwningReport() domain.ReportID           { return e.ReportID }

func (e *SpecificEntry) ApplyFill(f FillInput) {
	e.Homologation = f.Verdict
	e.Action, e.ResponsibleAction, e.Deadline, e.SuccessControl = remediation(f)
	e.Updated = true
}

// remediation maps the fill input onto the stored fields: a positive
// verdict nulls all four, a negative one carries them over.
func remediation(f FillInput) (action, responsible, deadline, successControl *string) {
	if f.Verdict != nil && *f.Verdict {
		return nil, nil, nil, nil
	}
	a, r, d, c := f.Action, f.ResponsibleAction, f.Deadline, f.SuccessControl
	return &a, &r, &d, &c
}

func emptyRemediation() (action, responsible, deadline, successControl *string) {
	var a, r, d, c string
	return &a, &r, &d, &c
}

// MaintenanceForm holds the electrical checkout data, one per report.
// The maintenance department owns every field except IsInOrder, which the
// safety department owns. Writes are last-write-wins per field group.
type MaintenanceForm struct {
	ReportID                  domain.ReportID `json:"reportId"`
	ControlStandard           string          `json:"controlStandard"`
	CurrentType               string          `json:"currentType"`
	NetworkForm               string          `json:"networkForm"`
	PowerCircuit              string          `json:"powerCircuit"`
	ControlCircuit            string          `json:"controlCircuit"`
	FuseValue                 string          `json:"fuseValue"`
	HasTransformer            bool            `json:"hasTransformer"`
	Frequency                 string          `json:"frequency"`
	PhaseBalanceTest380v      string          `json:"phaseBalanceTest380v"`
	PhaseBalanceTest210v      string          `json:"phaseBalanceTest210v"`
	InsulationResistanceMotor string          `json:"insulationResistanceMotor"`
	InsulationResistanceCable string          `json:"insulationResistanceCable"`
	MachineSizeHeight         string          `json:"machineSizeHeight"`
	MachineSizeLength         string          `json:"machineSizeLength"`
	MachineSizeWidth          string          `json:"machineSizeWidth"`
	IsInOrder                 bool            `json:"isInOrder"`
}

// MaintenanceGroupInput covers the fields writable by the maintenance
// department.
type MaintenanceGroupInput struct {
	ControlStandard           string `json:"controlStandard"`
	CurrentType               string `json:"currentType"`
	NetworkForm               string `json:"networkForm"`
	PowerCircuit              string `json:"powerCircuit"`
	ControlCircuit            string `json:"controlCircuit"`
	FuseValue                 string `json:"fuseValue"`
	HasTransformer            bool   `json:"hasTransformer"`
	Frequency                 string `json:"frequency"`
	PhaseBalanceTest380v      string `json:"phaseBalanceTest380v"`
	PhaseBalanceTest210v      string `json:"phaseBalanceTest210v"`
	InsulationResistanceMotor string `json:"insulationResistanceMotor"`
	InsulationResistanceCable string `json:"insulationResistanceCable"`
	MachineSizeHeight         string `json:"machineSizeHeight"`
	MachineSizeLength         string `json:"machineSizeLength"`
	MachineSizeWidth          string `json:"machineSizeWidth"`
}

// ApplyMaintenanceGroup overwrites the maintenance-owned fields, leaving
// IsInOrder untouched.
func (m *MaintenanceForm) ApplyMaintenanceGroup(in MaintenanceGroupInput) {
	m.ControlStandard = in.ControlStandard
	m.CurrentType = in.CurrentType
	m.NetworkForm = in.NetworkForm
	m.PowerCircuit = in.PowerCircuit
	m.ControlCircuit = in.ControlCircuit
	m.FuseValue = in.FuseValue
	m.HasTransformer = in.HasTransformer
	m.Frequency = in.Frequency
	m.PhaseBalanceTest380v = in.PhaseBalanceTest380v
	m.PhaseBalanceTest210v = in.PhaseBalanceTest210v
	m.InsulationResistanceMotor = in.InsulationResistanceMotor
	m.InsulationResistanceCable = in.InsulationResistanceCable
	m.MachineSizeHeight = in.MachineSizeHeight
	m.MachineSizeLength = in.MachineSizeLength
	m.MachineSizeWidth = in.MachineSizeWidth
}

// ApplySafetyGroup overwrites the single safety-owned field.
func (m *MaintenanceForm) ApplySafetyGroup(isInOrder bool) {
	m.IsInOrder = isInOrder
}

func dedupeUsers(ids []domain.UserID) []domain.UserID {
	seen := make(map[domain.UserID]struct{}, len(ids))
	out := make([]domain.UserID, 0, len(ids))
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
