package patients

import "fmt"

// Filter is a dashboard-facing list filter token. Each token maps to one
// predicate over stored snapshot columns; unrecognized tokens behave as
// FilterAll.
type Filter string

const (
	FilterAll                Filter = "all"
	FilterHigh               Filter = "high"
	FilterMedium             Filter = "medium"
	FilterLow                Filter = "low"
	FilterRecent             Filter = "recent"
	FilterUpcoming           Filter = "upcoming"
	FilterInactive           Filter = "inactive"
	FilterActive             Filter = "active"
	FilterAtRisk             Filter = "at_risk"
	FilterDormant            Filter = "dormant"
	FilterChurned            Filter = "churned"
	FilterHighValueAtRisk    Filter = "high_value_at_risk"
	FilterImmediateRebooking Filter = "immediate_rebooking"
	FilterTreatmentBuilding  Filter = "treatment_building"
	FilterTreatmentDeclining Filter = "treatment_declining"
)

// ParseFilter maps a raw token to a known Filter, falling back to FilterAll.
func ParseFilter(s string) Filter {
	if _, ok := filterPredicates[Filter(s)]; ok {
		return Filter(s)
	}
	return FilterAll
}

// Filter-only thresholds. The list filters bucket patients more coarsely
// than the classifier; a patient with 3+ lifetime appointments counts as
// established for the high-value and immediate-rebooking filters.
const establishedMinTotal = 3

// Urgency ordering thresholds. These are wider than the classifier
// windows on purpose: the list surfaces patients worth calling today, not
// the exact segment boundaries.
const (
	urgentGapMinDays     = 21
	urgentGapMaxDays     = 45
	heavyHistoryMinTotal = 5
	heavyHistoryMaxDays  = 90
)

// gapBetween renders "last appointment between minDays and maxDays ago".
func gapBetween(maxDays, minDays int) string {
	return fmt.Sprintf(
		`last_appointment_date BETWEEN NOW() - INTERVAL '%d days' AND NOW() - INTERVAL '%d days'`,
		maxDays, minDays)
}

// Every compound predicate is parenthesised so AND-combining it with the
// organization scope keeps conjunction semantics.
var filterPredicates = map[Filter]string{
	FilterAll: "",
	FilterHigh: fmt.Sprintf(
		`last_appointment_date < NOW() - INTERVAL '%d days'`, atRiskWindowDays),
	FilterMedium: fmt.Sprintf(
		`(upcoming_appointment_count = 0 OR last_appointment_date IS NULL OR %s)`,
		gapBetween(atRiskWindowDays, activeWindowDays)),
	FilterLow: fmt.Sprintf(
		`(upcoming_appointment_count > 0 AND (last_appointment_date IS NULL OR last_appointment_date > NOW() - INTERVAL '%d days'))`,
		activeWindowDays),
	FilterRecent:   `recent_appointment_count > 0`,
	FilterUpcoming: `upcoming_appointment_count > 0`,
	FilterInactive: `(recent_appointment_count = 0 AND upcoming_appointment_count = 0)`,
	FilterActive:   `(recent_appointment_count > 0 OR upcoming_appointment_count > 0)`,
	FilterAtRisk:   gapBetween(atRiskWindowDays, activeWindowDays),
	FilterDormant:  gapBetween(dormantWindowDays, atRiskWindowDays),
	FilterChurned: fmt.Sprintf(
		`last_appointment_date < NOW() - INTERVAL '%d days'`, dormantWindowDays),
	FilterHighValueAtRisk: fmt.Sprintf(
		`(total_appointment_count >= %d AND recent_appointment_count = 0 AND upcoming_appointment_count = 0 AND %s)`,
		establishedMinTotal, gapBetween(dormantWindowDays, activeWindowDays)),
	FilterImmediateRebooking: fmt.Sprintf(
		`((%s AND upcoming_appointment_count = 0) OR (total_appointment_count >= %d AND recent_appointment_count = 0 AND last_appointment_date <= NOW() - INTERVAL '%d days'))`,
		gapBetween(atRiskWindowDays, activeWindowDays), establishedMinTotal, activeWindowDays),
	FilterTreatmentBuilding: fmt.Sprintf(
		`(recent_appointment_count >= %d AND upcoming_appointment_count > 0)`, buildingMinRecent),
	FilterTreatmentDeclining: `(recent_appointment_count > 0 AND upcoming_appointment_count = 0)`,
}

// Predicate returns the SQL predicate for the filter, or "" for FilterAll.
func (f Filter) Predicate() string {
	return filterPredicates[f]
}

// orderClause ranks patients needing urgent outreach first, then those with
// no recent activity, then those with nothing booked, then the rest. Ties
// break by most recent appointment, then by recent-appointment volume.
func orderClause() string {
	return fmt.Sprintf(`ORDER BY
	CASE
		WHEN (upcoming_appointment_count = 0 AND %s)
			OR (total_appointment_count >= %d AND recent_appointment_count = 0 AND last_appointment_date > NOW() - INTERVAL '%d days')
			OR (recent_appointment_count = 0 AND last_appointment_date BETWEEN NOW() - INTERVAL '%d days' AND NOW()) THEN 1
		WHEN recent_appointment_count = 0 THEN 2
		WHEN upcoming_appointment_count = 0 THEN 3
		ELSE 4
	END,
	last_appointment_date DESC NULLS LAST,
	recent_appointment_count DESC`,
		gapBetween(urgentGapMaxDays, urgentGapMinDays),
		heavyHistoryMinTotal, heavyHistoryMaxDays,
		urgentGapMinDays)
}

// The row classifier works in whole elapsed days while SQL compares
// continuous timestamps, so the interval boundaries below carry a one-day
// shift: floor days d <= n holds until a full n+1 days have passed, and
// d >= n holds from exactly n days on.

// withinDays renders "floor days since last appointment <= n".
func withinDays(n int) string {
	return fmt.Sprintf(`last_appointment_date > NOW() - INTERVAL '%d days'`, n+1)
}

// atLeastDays renders "floor days since last appointment >= n".
func atLeastDays(n int) string {
	return fmt.Sprintf(`last_appointment_date <= NOW() - INTERVAL '%d days'`, n)
}

// segmentCaseExpr renders the per-row segment rule over raw columns. The
// completed override sits first so it wins over the day-window buckets,
// mirroring Classify.
func segmentCaseExpr() string {
	return fmt.Sprintf(`CASE
		WHEN last_appointment_date IS NULL THEN 'new'
		WHEN total_appointment_count >= %d AND %s AND %s THEN 'completed'
		WHEN %s THEN 'active'
		WHEN %s THEN 'at_risk'
		WHEN %s THEN 'dormant'
		ELSE 'churned'
	END`,
		completedMinTotal, atLeastDays(atRiskWindowDays+1), withinDays(completedMaxDays-1),
		withinDays(activeWindowDays),
		withinDays(atRiskWindowDays),
		withinDays(dormantWindowDays))
}

func priorityCaseExpr() string {
	return fmt.Sprintf(`CASE
		WHEN last_appointment_date IS NOT NULL AND %s THEN 'high'
		WHEN upcoming_appointment_count = 0 THEN 'medium'
		ELSE 'low'
	END`, atLeastDays(highPriorityMinDays))
}

func momentumCaseExpr() string {
	return fmt.Sprintf(`CASE
		WHEN recent_appointment_count >= %d AND upcoming_appointment_count > 0 THEN 'building'
		WHEN recent_appointment_count >= %d AND upcoming_appointment_count > 0 THEN 'maintaining'
		WHEN recent_appointment_count > 0 AND upcoming_appointment_count = 0 THEN 'declining'
		ELSE 'stalled'
	END`, buildingMinRecent, maintainingMinRecent)
}

// statsSQL builds the single-pass aggregate over the whole population.
// When scoped is true the query takes the organization id as $1.
func statsSQL(scoped bool) string {
	where := ""
	if scoped {
		where = "WHERE organization_id = $1"
	}
	return fmt.Sprintf(`
	WITH classified AS (
		SELECT
			recent_appointment_count,
			upcoming_appointment_count,
			%s AS segment,
			%s AS priority,
			%s AS momentum
		FROM active_patients
		%s
	)
	SELECT
		COUNT(*) AS total_patients,
		COUNT(CASE WHEN recent_appointment_count > 0 THEN 1 END) AS patients_with_recent_appointments,
		COUNT(CASE WHEN upcoming_appointment_count > 0 THEN 1 END) AS patients_with_upcoming_appointments,
		COUNT(CASE WHEN recent_appointment_count = 0 THEN 1 END) AS patients_without_recent_appointments,
		COUNT(CASE WHEN upcoming_appointment_count = 0 THEN 1 END) AS patients_without_upcoming_appointments,
		COUNT(CASE WHEN segment = 'at_risk' THEN 1 END) AS at_risk_patients,
		COUNT(CASE WHEN segment = 'dormant' THEN 1 END) AS dormant_patients,
		COUNT(CASE WHEN segment = 'churned' THEN 1 END) AS churned_patients,
		COUNT(CASE WHEN segment = 'completed' THEN 1 END) AS completed_treatment,
		COUNT(CASE WHEN priority = 'high' THEN 1 END) AS priority_high,
		COUNT(CASE WHEN priority = 'medium' THEN 1 END) AS priority_medium,
		COUNT(CASE WHEN priority = 'low' THEN 1 END) AS priority_low,
		COUNT(CASE WHEN momentum = 'building' THEN 1 END) AS momentum_building,
		COUNT(CASE WHEN momentum = 'maintaining' THEN 1 END) AS momentum_maintaining,
		COUNT(CASE WHEN momentum = 'declining' THEN 1 END) AS momentum_declining,
		COUNT(CASE WHEN momentum = 'stalled' THEN 1 END) AS momentum_stalled
	FROM classified`,
		segmentCaseExpr(), priorityCaseExpr(), momentumCaseExpr(), where)
}

// distributionSQL builds the recent-appointment-count histogram query.
func distributionSQL(scoped bool) string {
	where := ""
	if scoped {
		where = "WHERE organization_id = $1"
	}
	return fmt.Sprintf(`
	SELECT recent_appointment_count AS count, COUNT(*) AS patients
	FROM active_patients
	%s
	GROUP BY recent_appointment_count
	ORDER BY recent_appointment_count DESC`, where)
}
