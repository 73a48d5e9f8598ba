package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"qualitrack/internal/report/models"
	"qualitrack/pkg/domain"
	"qualitrack/pkg/platform/sentinel"
)

// Postgres persists reports, entries and maintenance forms. The one-shot
// entry fill and the completion flag are conditional updates; a zero row
// count means another writer got there first.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const selectReport = `
	SELECT id, protocol_id, header_type, serial_number, equipment_description,
	       designation, manufacturer, immobilization, service_segment, business_unit,
	       created_by, created_at, assigned_user_ids, completed
	FROM reports
`

// CreateReport writes the report, every entry and the empty form in a
// single transaction.
func (s *Postgres) CreateReport(ctx context.Context, r *models.Report, standard []*models.StandardEntry, specific []*models.SpecificEntry, form *models.MaintenanceForm) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create report: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reports (
			id, protocol_id, header_type, serial_number, equipment_description,
			designation, manufacturer, immobilization, service_segment, business_unit,
			created_by, created_at, assigned_user_ids, completed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, uuid.UUID(r.ID), uuid.UUID(r.ProtocolID),
		r.Header.Type, r.Header.SerialNumber, r.Header.EquipmentDescription,
		r.Header.Designation, r.Header.Manufacturer, r.Header.Immobilization,
		r.Header.ServiceSegment, r.Header.BusinessUnit,
		uuid.UUID(r.CreatedBy), r.CreatedAt, pq.Array(userUUIDs(r.AssignedUserIDs)), r.Completed)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}

	for _, e := range standard {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO standard_entries (
				id, report_id, criterion_id, check_department_id,
				implemented, action, responsible_action, deadline, success_control, updated
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, uuid.UUID(e.ID), uuid.UUID(e.ReportID), uuid.UUID(e.CriterionID),
			uuid.UUID(e.CheckDepartmentID),
			e.Implemented, e.Action, e.ResponsibleAction, e.Deadline, e.SuccessControl, e.Updated)
		if err != nil {
			return fmt.Errorf("insert standard entry: %w", err)
		}
	}

	for _, e := range specific {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO specific_entries (
				id, report_id, criterion_id, check_department_ids,
				homologation, action, responsible_action, deadline, success_control, updated
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, uuid.UUID(e.ID), uuid.UUID(e.ReportID), uuid.UUID(e.CriterionID),
			pq.Array(departmentUUIDs(e.CheckDepartmentIDs)),
			e.Homologation, e.Action, e.ResponsibleAction, e.Deadline, e.SuccessControl, e.Updated)
		if err != nil {
			return fmt.Errorf("insert specific entry: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO maintenance_forms (
			report_id, control_standard, current_type, network_form, power_circuit,
			control_circuit, fuse_value, has_transformer, frequency,
			phase_balance_test_380v, phase_balance_test_210v,
			insulation_resistance_motor, insulation_resistance_cable,
			machine_size_height, machine_size_length, machine_size_width, is_in_order
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, uuid.UUID(form.ReportID), form.ControlStandard, form.CurrentType, form.NetworkForm,
		form.PowerCircuit, form.ControlCircuit, form.FuseValue, form.HasTransformer,
		form.Frequency, form.PhaseBalanceTest380v, form.PhaseBalanceTest210v,
		form.InsulationResistanceMotor, form.InsulationResistanceCable,
		form.MachineSizeHeight, form.MachineSizeLength, form.MachineSizeWidth, form.IsInOrder)
	if err != nil {
		return fmt.Errorf("insert maintenance form: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create report: %w", err)
	}
	return nil
}

func (s *Postgres) FindReport(ctx context.Context, id domain.ReportID) (*models.Report, error) {
	r, err := scanReport(s.db.QueryRowContext(ctx, selectReport+` WHERE id = $1`, uuid.UUID(id)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find report: %w", err)
	}
	return r, nil
}

func (s *Postgres) ListReports(ctx context.Context) ([]*models.Report, error) {
	return s.queryReports(ctx, selectReport+` ORDER BY created_at DESC`)
}

func (s *Postgres) ListReportsCreatedBy(ctx context.Context, userID domain.UserID) ([]*models.Report, error) {
	return s.queryReports(ctx, selectReport+` WHERE created_by = $1 ORDER BY created_at DESC`, uuid.UUID(userID))
}

func (s *Postgres) ListReportsAssignedTo(ctx context.Context, userID domain.UserID) ([]*models.Report, error) {
	return s.queryReports(ctx, selectReport+` WHERE $1 = ANY(assigned_user_ids) ORDER BY created_at DESC`, uuid.UUID(userID))
}

func (s *Postgres) queryReports(ctx context.Context, query string, args ...any) ([]*models.Report, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []*models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanReport(r interface{ Scan(...any) error }) (*models.Report, error) {
	var report models.Report
	var id, protocolID, createdBy uuid.UUID
	var assigned []uuid.UUID
	err := r.Scan(&id, &protocolID,
		&report.Header.Type, &report.Header.SerialNumber, &report.Header.EquipmentDescription,
		&report.Header.Designation, &report.Header.Manufacturer, &report.Header.Immobilization,
		&report.Header.ServiceSegment, &report.Header.BusinessUnit,
		&createdBy, &report.CreatedAt, pq.Array(&assigned), &report.Completed)
	if err != nil {
		return nil, err
	}
	report.ID = domain.ReportID(id)
	report.ProtocolID = domain.ProtocolID(protocolID)
	report.CreatedBy = domain.UserID(createdBy)
	report.AssignedUserIDs = userIDs(assigned)
	return &report, nil
}

func (s *Postgres) ListEntries(ctx context.Context, reportID domain.ReportID) ([]*models.StandardEntry, []*models.SpecificEntry, error) {
	standard, err := s.queryStandardEntries(ctx, `WHERE report_id = $1`, uuid.UUID(reportID))
	if err != nil {
		return nil, nil, err
	}
	specific, err := s.querySpecificEntries(ctx, `WHERE report_id = $1`, uuid.UUID(reportID))
	if err != nil {
		return nil, nil, err
	}
	return standard, specific, nil
}

func (s *Postgres) FindStandardEntry(ctx context.Context, id domain.EntryID) (*models.StandardEntry, error) {
	entries, err := s.queryStandardEntries(ctx, `WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return entries[0], nil
}

func (s *Postgres) FindSpecificEntry(ctx context.Context, id domain.EntryID) (*models.SpecificEntry, error) {
	entries, err := s.querySpecificEntries(ctx, `WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return entries[0], nil
}

func (s *Postgres) queryStandardEntries(ctx context.Context, where string, args ...any) ([]*models.StandardEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, report_id, criterion_id, check_department_id,
		       implemented, action, responsible_action, deadline, success_control, updated
		FROM standard_entries `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query standard entries: %w", err)
	}
	defer rows.Close()

	var out []*models.StandardEntry
	for rows.Next() {
		var e models.StandardEntry
		var id, reportID, criterionID, checkDept uuid.UUID
		var implemented sql.NullBool
		var action, responsible, deadline, successControl sql.NullString
		if err := rows.Scan(&id, &reportID, &criterionID, &checkDept,
			&implemented, &action, &responsible, &deadline, &successControl, &e.Updated); err != nil {
			return nil, fmt.Errorf("scan standard entry: %w", err)
		}
		e.ID = domain.EntryID(id)
		e.ReportID = domain.ReportID(reportID)
		e.CriterionID = domain.CriterionID(criterionID)
		e.CheckDepartmentID = domain.DepartmentID(checkDept)
		if implemented.Valid {
			v := implemented.Bool
			e.Implemented = &v
		}
		e.Action = nullableString(action)
		e.ResponsibleAction = nullableString(responsible)
		e.Deadline = nullableString(deadline)
		e.SuccessControl = nullableString(successControl)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Postgres) querySpecificEntries(ctx context.Context, where string, args ...any) ([]*models.SpecificEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, report_id, criterion_id, check_department_ids,
		       homologation, action, responsible_action, deadline, success_control, updated
		FROM specific_entries `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query specific entries: %w", err)
	}
	defer rows.Close()

	var out []*models.SpecificEntry
	for rows.Next() {
		var e models.SpecificEntry
		var id, reportID, criterionID uuid.UUID
		var checkDepts []uuid.UUID
		var homologation sql.NullBool
		var action, responsible, deadline, successControl sql.NullString
		if err := rows.Scan(&id, &reportID, &criterionID, pq.Array(&checkDepts),
			&homologation, &action, &responsible, &deadline, &successControl, &e.Updated); err != nil {
			return nil, fmt.Errorf("scan specific entry: %w", err)
		}
		e.ID = domain.EntryID(id)
		e.ReportID = domain.ReportID(reportID)
		e.CriterionID = domain.CriterionID(criterionID)
		e.CheckDepartmentIDs = departmentIDs(checkDepts)
		if homologation.Valid {
			v := homologation.Bool
			e.Homologation = &v
		}
		e.Action = nullableString(action)
		e.ResponsibleAction = nullableString(responsible)
		e.Deadline = nullableString(deadline)
		e.SuccessControl = nullableString(successControl)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// FillStandardEntry writes the verdict only while updated is still false.
// Zero rows affected means the entry was already filled.
func (s *Postgres) FillStandardEntry(ctx context.Context, e *models.StandardEntry) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE standard_entries
		SET implemented = $2, action = $3, responsible_action = $4,
		    deadline = $5, success_control = $6, updated = TRUE
		WHERE id = $1 AND updated = FALSE
	`, uuid.UUID(e.ID), e.Implemented, e.Action, e.ResponsibleAction, e.Deadline, e.SuccessControl)
	if err != nil {
		return fmt.Errorf("fill standard entry: %w", err)
	}
	return casOutcome(result)
}

func (s *Postgres) FillSpecificEntry(ctx context.Context, e *models.SpecificEntry) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE specific_entries
		SET homologation = $2, action = $3, responsible_action = $4,
		    deadline = $5, success_control = $6, updated = TRUE
		WHERE id = $1 AND updated = FALSE
	`, uuid.UUID(e.ID), e.Homologation, e.Action, e.ResponsibleAction, e.Deadline, e.SuccessControl)
	if err != nil {
		return fmt.Errorf("fill specific entry: %w", err)
	}
	return casOutcome(result)
}

// CompleteReport flips completed exactly once. A zero row count is
// disambiguated with a follow-up existence probe.
func (s *Postgres) CompleteReport(ctx context.Context, id domain.ReportID) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE reports SET completed = TRUE WHERE id = $1 AND completed = FALSE
	`, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("complete report: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete report rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM reports WHERE id = $1)`, uuid.UUID(id)).Scan(&exists)
	if err != nil {
		return fmt.Errorf("complete report probe: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

func (s *Postgres) FindMaintenanceForm(ctx context.Context, reportID domain.ReportID) (*models.MaintenanceForm, error) {
	var f models.MaintenanceForm
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, `
		SELECT report_id, control_standard, current_type, network_form, power_circuit,
		       control_circuit, fuse_value, has_transformer, frequency,
		       phase_balance_test_380v, phase_balance_test_210v,
		       insulation_resistance_motor, insulation_resistance_cable,
		       machine_size_height, machine_size_length, machine_size_width, is_in_order
		FROM maintenance_forms WHERE report_id = $1
	`, uuid.UUID(reportID)).Scan(&id, &f.ControlStandard, &f.CurrentType, &f.NetworkForm,
		&f.PowerCircuit, &f.ControlCircuit, &f.FuseValue, &f.HasTransformer, &f.Frequency,
		&f.PhaseBalanceTest380v, &f.PhaseBalanceTest210v,
		&f.InsulationResistanceMotor, &f.InsulationResistanceCable,
		&f.MachineSizeHeight, &f.MachineSizeLength, &f.MachineSizeWidth, &f.IsInOrder)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find maintenance form: %w", err)
	}
	f.ReportID = domain.ReportID(id)
	return &f, nil
}

// UpdateMaintenanceGroup touches only the maintenance-owned columns;
// is_in_order is never part of the statement, so a concurrent safety
// write cannot be lost.
func (s *Postgres) UpdateMaintenanceGroup(ctx context.Context, reportID domain.ReportID, in models.MaintenanceGroupInput) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE maintenance_forms SET
			control_standard = $2, current_type = $3, network_form = $4, power_circuit = $5,
			control_circuit = $6, fuse_value = $7, has_transformer = $8, frequency = $9,
			phase_balance_test_380v = $10, phase_balance_test_210v = $11,
			insulation_resistance_motor = $12, insulation_resistance_cable = $13,
			machine_size_height = $14, machine_size_length = $15, machine_size_width = $16
		WHERE report_id = $1
	`, uuid.UUID(reportID), in.ControlStandard, in.CurrentType, in.NetworkForm, in.PowerCircuit,
		in.ControlCircuit, in.FuseValue, in.HasTransformer, in.Frequency,
		in.PhaseBalanceTest380v, in.PhaseBalanceTest210v,
		in.InsulationResistanceMotor, in.InsulationResistanceCable,
		in.MachineSizeHeight, in.MachineSizeLength, in.MachineSizeWidth)
	if err != nil {
		return fmt.Errorf("update maintenance group: %w", err)
	}
	return updateOutcome(result)
}

// UpdateSafetyGroup writes the single safety-owned column.
func (s *Postgres) UpdateSafetyGroup(ctx context.Context, reportID domain.ReportID, isInOrder bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE maintenance_forms SET is_in_order = $2 WHERE report_id = $1
	`, uuid.UUID(reportID), isInOrder)
	if err != nil {
		return fmt.Errorf("update safety group: %w", err)
	}
	return updateOutcome(result)
}

func updateOutcome(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func casOutcome(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func userUUIDs(ids []domain.UserID) []uuid.UUID {
	out := make([]uuid.UUID, len(ids))
	for i, id := range ids {
		out[i] = uuid.UUID(id)
	}
	return out
}

func userIDs(ids []uuid.UUID) []domain.UserID {
	out := make([]domain.UserID, len(ids))
	for i, id := range ids {
		out[i] = domain.UserID(id)
	}
	return out
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
