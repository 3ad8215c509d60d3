package patients

import "context"

// Repository fetches patient snapshots. Implementations never attach a
// Classification; that always happens at the service layer, at read time.
type Repository interface {
	List(ctx context.Context, filter Filter, limit int, orgID string) ([]*Patient, error)
	GetByID(ctx context.Context, id int64) (*Patient, error)
	GetByPMSPatientID(ctx context.Context, pmsPatientID string) (*Patient, error)
	Stats(ctx context.Context, orgID string) (*Stats, error)
	Refresh(ctx context.Context, id int64) (*Patient, error)
}
