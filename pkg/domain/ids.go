// Package domain defines typed identifiers shared across services.
//
// Each entity gets its own UUID-backed type so the compiler rejects
// cross-entity id mixups (passing a DepartmentID where a UserID is
// expected fails to compile).
package domain

import (
	"github.com/google/uuid"

	dErrors "qualitrack/pkg/domain-errors"
)

type (
	UserID       uuid.UUID
	DepartmentID uuid.UUID
	PlantID      uuid.UUID
	LanguageID   uuid.UUID
	ProtocolID   uuid.UUID
	CriterionID  uuid.UUID
	ReportID     uuid.UUID
	EntryID      uuid.UUID
)

func (id UserID) String() string       { return uuid.UUID(id).String() }
func (id DepartmentID) String() string { return uuid.UUID(id).String() }
func (id PlantID) String() string      { return uuid.UUID(id).String() }
func (id LanguageID) String() string   { return uuid.UUID(id).String() }
func (id ProtocolID) String() string   { return uuid.UUID(id).String() }
func (id CriterionID) String() string  { return uuid.UUID(id).String() }
func (id ReportID) String() string     { return uuid.UUID(id).String() }
func (id EntryID) String() string      { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id DepartmentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PlantID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ProtocolID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id CriterionID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id ReportID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id EntryID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

func NewUserID() UserID             { return UserID(uuid.New()) }
func NewDepartmentID() DepartmentID { return DepartmentID(uuid.New()) }
func NewPlantID() PlantID           { return PlantID(uuid.New()) }
func NewLanguageID() LanguageID     { return LanguageID(uuid.New()) }
func NewProtocolID() ProtocolID     { return ProtocolID(uuid.New()) }
func NewCriterionID() CriterionID   { return CriterionID(uuid.New()) }
func NewReportID() ReportID         { return ReportID(uuid.New()) }
func NewEntryID() EntryID           { return EntryID(uuid.New()) }

// Text marshaling keeps the canonical UUID string form on the wire.
// Defined types do not inherit uuid.UUID's marshalers, so each id type
// declares its own.

func (id UserID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id DepartmentID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id PlantID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id LanguageID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id ProtocolID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id CriterionID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id ReportID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id EntryID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DepartmentID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *PlantID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *LanguageID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ProtocolID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *CriterionID) UnmarshalText(b []byte) error  { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ReportID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EntryID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }

// parseUUID enforces the shared invariant: ids arriving at trust
// boundaries must be valid, non-empty, non-nil UUIDs.
func parseUUID(raw, what string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" id is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+what+" id")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" id cannot be nil")
	}
	return parsed, nil
}

func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID(raw, "user")
	return UserID(parsed), err
}

func ParseDepartmentID(raw string) (DepartmentID, error) {
	parsed, err := parseUUID(raw, "department")
	return DepartmentID(parsed), err
}

func ParsePlantID(raw string) (PlantID, error) {
	parsed, err := parseUUID(raw, "plant")
	return PlantID(parsed), err
}

func ParseProtocolID(raw string) (ProtocolID, error) {
	parsed, err := parseUUID(raw, "protocol")
	return ProtocolID(parsed), err
}

func ParseCriterionID(raw string) (CriterionID, error) {
	parsed, err := parseUUID(raw, "criterion")
	return CriterionID(parsed), err
}

func ParseReportID(raw string) (ReportID, error) {
	parsed, err := parseUUID(raw, "report")
	return ReportID(parsed), err
}

func ParseEntryID(raw string) (EntryID, error) {
	parsed, err := parseUUID(raw, "entry")
	return EntryID(parsed), err
}
