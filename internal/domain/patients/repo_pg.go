package patients

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

const defaultQueryTimeout = 10 * time.Second

type repoPG struct {
	pool    *pgxpool.Pool
	log     zerolog.Logger
	timeout time.Duration
}

func NewRepoPG(pool *pgxpool.Pool, log zerolog.Logger) Repository {
	return &repoPG{pool: pool, log: log, timeout: defaultQueryTimeout}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	return r.pool
}

// Each round-trip gets its own deadline so a hung storage call cannot
// block a request indefinitely.
func (r *repoPG) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// fail logs a data-access error with enough context to diagnose, then
// hands the error back unchanged.
func (r *repoPG) fail(op, query string, err error) error {
	r.log.Error().Err(err).Str("op", op).Str("query", truncateQuery(query)).Msg("patient query failed")
	return err
}

func truncateQuery(q string) string {
	if len(q) > 100 {
		return q[:100] + "..."
	}
	return q
}

const patientCols = `id, pms_patient_id, organization_id, name, email, phone,
	recent_appointment_count, upcoming_appointment_count, total_appointment_count,
	last_appointment_date, recent_appointments, upcoming_appointments,
	search_date_from, search_date_to, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.PMSPatientID, &p.OrganizationID, &p.Name, &p.Email, &p.Phone,
		&p.RecentAppointmentCount, &p.UpcomingAppointmentCount, &p.TotalAppointmentCount,
		&p.LastAppointmentDate, &p.RecentAppointments, &p.UpcomingAppointments,
		&p.SearchDateFrom, &p.SearchDateTo, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) List(ctx context.Context, filter Filter, limit int, orgID string) ([]*Patient, error) {
	query := `SELECT ` + patientCols + ` FROM active_patients`

	var args []interface{}
	var conds []string
	if orgID != "" {
		args = append(args, orgID)
		conds = append(conds, fmt.Sprintf("organization_id = $%d", len(args)))
	}
	if pred := filter.Predicate(); pred != "" {
		conds = append(conds, pred)
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}

	query += " " + orderClause()
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, r.fail("list_patients", query, err)
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, r.fail("list_patients", query, err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("list_patients", query, err)
	}
	return items, nil
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	query := `SELECT ` + patientCols + ` FROM active_patients WHERE id = $1`
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, r.fail("get_patient", query, err)
	}
	return p, nil
}

func (r *repoPG) GetByPMSPatientID(ctx context.Context, pmsPatientID string) (*Patient, error) {
	query := `SELECT ` + patientCols + ` FROM active_patients WHERE pms_patient_id = $1`
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, query, pmsPatientID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, r.fail("get_patient_by_pms_id", query, err)
	}
	return p, nil
}

func (r *repoPG) Stats(ctx context.Context, orgID string) (*Stats, error) {
	scoped := orgID != ""
	var args []interface{}
	if scoped {
		args = append(args, orgID)
	}

	query := statsSQL(scoped)
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()

	var s Stats
	err := r.conn(ctx).QueryRow(ctx, query, args...).Scan(
		&s.TotalPatients,
		&s.PatientsWithRecentAppointments,
		&s.PatientsWithUpcomingAppointments,
		&s.PatientsWithoutRecentAppointments,
		&s.PatientsWithoutUpcomingAppointments,
		&s.ChurnAnalysis.AtRiskPatients,
		&s.ChurnAnalysis.DormantPatients,
		&s.ChurnAnalysis.ChurnedPatients,
		&s.ChurnAnalysis.CompletedTreatment,
		&s.RebookingPriorities.High,
		&s.RebookingPriorities.Medium,
		&s.RebookingPriorities.Low,
		&s.TreatmentMomentum.Building,
		&s.TreatmentMomentum.Maintaining,
		&s.TreatmentMomentum.Declining,
		&s.TreatmentMomentum.Stalled,
	)
	if err != nil {
		return nil, r.fail("patient_stats", query, err)
	}

	distQuery := distributionSQL(scoped)
	rows, err := r.conn(ctx).Query(ctx, distQuery, args...)
	if err != nil {
		return nil, r.fail("patient_stats_distribution", distQuery, err)
	}
	defer rows.Close()
	for rows.Next() {
		var b DistributionBucket
		if err := rows.Scan(&b.Count, &b.Patients); err != nil {
			return nil, r.fail("patient_stats_distribution", distQuery, err)
		}
		s.RecentAppointmentDistribution = append(s.RecentAppointmentDistribution, b)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("patient_stats_distribution", distQuery, err)
	}
	return &s, nil
}

func (r *repoPG) Refresh(ctx context.Context, id int64) (*Patient, error) {
	query := `UPDATE active_patients SET updated_at = NOW() WHERE id = $1 RETURNING ` + patientCols
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, r.fail("refresh_patient", query, err)
	}
	return p, nil
}
