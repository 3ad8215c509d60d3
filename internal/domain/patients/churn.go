package patients

import (
	"math"
	"time"
)

// Classification thresholds. The aggregate SQL in sql.go is generated from
// these same constants so the two encodings cannot drift.
const (
	// Segment windows, in whole days since the last appointment.
	activeWindowDays  = 14
	atRiskWindowDays  = 30
	dormantWindowDays = 60

	// Patients with a substantial history who then stop within this window
	// are treated as having completed a course of care, not churned.
	completedMinTotal = 8
	completedMaxDays  = 90

	// Momentum counts.
	buildingMinRecent    = 3
	maintainingMinRecent = 2

	// A gap of this many days forces high rebooking priority.
	highPriorityMinDays = 30
)

// Classify derives the churn state for one snapshot at the given instant.
// It is deterministic and total: every structurally valid snapshot maps to
// exactly one result, with no I/O and no error path.
func Classify(p *Patient, now time.Time) *Classification {
	var days *int
	if p.LastAppointmentDate != nil {
		// Whole elapsed days, rounding toward negative infinity so a
		// future appointment yields a negative value.
		d := int(math.Floor(now.Sub(*p.LastAppointmentDate).Hours() / 24))
		days = &d
	}

	momentum := MomentumStalled
	switch {
	case p.RecentAppointmentCount >= buildingMinRecent && p.UpcomingAppointmentCount > 0:
		momentum = MomentumBuilding
	case p.RecentAppointmentCount >= maintainingMinRecent && p.UpcomingAppointmentCount > 0:
		momentum = MomentumMaintaining
	case p.RecentAppointmentCount > 0 && p.UpcomingAppointmentCount == 0:
		momentum = MomentumDeclining
	}

	segment := SegmentNew
	switch {
	case days == nil:
		segment = SegmentNew
	case *days < 0:
		// Most recent appointment is in the future.
		segment = SegmentActive
	case *days <= activeWindowDays:
		segment = SegmentActive
	case *days <= atRiskWindowDays:
		segment = SegmentAtRisk
	case *days <= dormantWindowDays:
		segment = SegmentDormant
	default:
		segment = SegmentChurned
	}
	if days != nil && p.TotalAppointmentCount >= completedMinTotal &&
		*days > atRiskWindowDays && *days < completedMaxDays {
		segment = SegmentCompleted
	}

	priority := PriorityLow
	switch {
	case days != nil && *days >= highPriorityMinDays:
		priority = PriorityHigh
	case p.UpcomingAppointmentCount == 0:
		priority = PriorityMedium
	}

	risk := RiskLow
	switch {
	case days == nil:
		// New patients default to medium attention.
		risk = RiskMedium
	case *days <= activeWindowDays:
		risk = RiskLow
	case *days <= atRiskWindowDays:
		risk = RiskMedium
	default:
		risk = RiskHigh
	}

	return &Classification{
		ChurnRisk:                risk,
		PatientSegment:           segment,
		RebookingPriority:        priority,
		DaysSinceLastAppointment: days,
		TreatmentMomentum:        momentum,
	}
}
