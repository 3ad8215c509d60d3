package patients

import (
	"encoding/json"
	"time"
)

// ChurnRisk is the likelihood-of-disengagement tier for a patient.
type ChurnRisk string

const (
	RiskLow    ChurnRisk = "low"
	RiskMedium ChurnRisk = "medium"
	RiskHigh   ChurnRisk = "high"
	// RiskCritical is part of the public vocabulary but no current rule
	// produces it.
	RiskCritical ChurnRisk = "critical"
)

// Segment is the lifecycle bucket describing a patient's current standing.
type Segment string

const (
	SegmentNew       Segment = "new"
	SegmentActive    Segment = "active"
	SegmentAtRisk    Segment = "at_risk"
	SegmentDormant   Segment = "dormant"
	SegmentChurned   Segment = "churned"
	SegmentCompleted Segment = "completed"
)

// Priority is the operational urgency ranking for staff outreach.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Momentum is the treatment trend signal derived from recent vs. upcoming
// appointment volume.
type Momentum string

const (
	MomentumBuilding    Momentum = "building"
	MomentumMaintaining Momentum = "maintaining"
	MomentumDeclining   Momentum = "declining"
	MomentumStalled     Momentum = "stalled"
)

// Patient is the point-in-time appointment-history snapshot for one patient.
// Rows are created and refreshed by the upstream practice-management sync;
// this service reads them and attaches a fresh Classification on every read.
type Patient struct {
	ID                       int64           `db:"id" json:"id"`
	PMSPatientID             string          `db:"pms_patient_id" json:"pms_patient_id"`
	OrganizationID           *string         `db:"organization_id" json:"organization_id,omitempty"`
	Name                     string          `db:"name" json:"name"`
	Email                    *string         `db:"email" json:"email,omitempty"`
	Phone                    *string         `db:"phone" json:"phone,omitempty"`
	RecentAppointmentCount   int             `db:"recent_appointment_count" json:"recent_appointment_count"`
	UpcomingAppointmentCount int             `db:"upcoming_appointment_count" json:"upcoming_appointment_count"`
	TotalAppointmentCount    int             `db:"total_appointment_count" json:"total_appointment_count"`
	LastAppointmentDate      *time.Time      `db:"last_appointment_date" json:"last_appointment_date"`
	RecentAppointments       json.RawMessage `db:"recent_appointments" json:"recent_appointments,omitempty"`
	UpcomingAppointments     json.RawMessage `db:"upcoming_appointments" json:"upcoming_appointments,omitempty"`
	SearchDateFrom           time.Time       `db:"search_date_from" json:"search_date_from"`
	SearchDateTo             time.Time       `db:"search_date_to" json:"search_date_to"`
	CreatedAt                time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time       `db:"updated_at" json:"updated_at"`

	// Computed at read time, never stored.
	Classification *Classification `db:"-" json:"classification,omitempty"`
}

// Classification is the derived churn state for one patient at one
// evaluation instant. It has no lifecycle of its own.
type Classification struct {
	ChurnRisk                ChurnRisk `json:"churn_risk"`
	PatientSegment           Segment   `json:"patient_segment"`
	RebookingPriority        Priority  `json:"rebooking_priority"`
	DaysSinceLastAppointment *int      `json:"days_since_last_appointment"`
	TreatmentMomentum        Momentum  `json:"treatment_momentum"`
}

// ChurnBreakdown counts patients per lifecycle segment of interest.
type ChurnBreakdown struct {
	AtRiskPatients     int `json:"at_risk_patients"`
	DormantPatients    int `json:"dormant_patients"`
	ChurnedPatients    int `json:"churned_patients"`
	CompletedTreatment int `json:"completed_treatment"`
}

// PriorityBreakdown counts patients per rebooking priority.
type PriorityBreakdown struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// MomentumBreakdown counts patients per treatment-momentum state.
type MomentumBreakdown struct {
	Building    int `json:"building"`
	Maintaining int `json:"maintaining"`
	Declining   int `json:"declining"`
	Stalled     int `json:"stalled"`
}

// DistributionBucket is one row of the recent-appointment-count histogram.
type DistributionBucket struct {
	Count    int `json:"count"`
	Patients int `json:"patients"`
}

// Stats is the population-level aggregate produced in one SQL pass.
type Stats struct {
	TotalPatients                       int                  `json:"total_patients"`
	PatientsWithRecentAppointments      int                  `json:"patients_with_recent_appointments"`
	PatientsWithUpcomingAppointments    int                  `json:"patients_with_upcoming_appointments"`
	PatientsWithoutRecentAppointments   int                  `json:"patients_without_recent_appointments"`
	PatientsWithoutUpcomingAppointments int                  `json:"patients_without_upcoming_appointments"`
	ChurnAnalysis                       ChurnBreakdown       `json:"churn_analysis"`
	RebookingPriorities                 PriorityBreakdown    `json:"rebooking_priorities"`
	TreatmentMomentum                   MomentumBreakdown    `json:"treatment_momentum"`
	RecentAppointmentDistribution       []DistributionBucket `json:"recent_appointment_distribution"`
}
