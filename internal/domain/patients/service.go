package patients

import (
	"context"
	"fmt"
	"time"
)

// Service is the read surface consumed by the dashboard: filtered patient
// lists, single lookups and population statistics. Every patient returned
// carries a Classification computed against the current instant.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// ListPatients returns patients matching the filter token, scoped to the
// organization when one is supplied. Unrecognized tokens list everything.
func (s *Service) ListPatients(ctx context.Context, filter string, limit int, orgID string) ([]*Patient, error) {
	if limit < 0 {
		return nil, fmt.Errorf("limit must not be negative")
	}
	items, err := s.repo.List(ctx, ParseFilter(filter), limit, orgID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, p := range items {
		p.Classification = Classify(p, now)
	}
	return items, nil
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Classification = Classify(p, s.now())
	return p, nil
}

func (s *Service) GetPatientByPMSID(ctx context.Context, pmsPatientID string) (*Patient, error) {
	if pmsPatientID == "" {
		return nil, fmt.Errorf("pms_patient_id is required")
	}
	p, err := s.repo.GetByPMSPatientID(ctx, pmsPatientID)
	if err != nil {
		return nil, err
	}
	p.Classification = Classify(p, s.now())
	return p, nil
}

// Stats runs the population aggregate in one pass at the storage layer.
func (s *Service) Stats(ctx context.Context, orgID string) (*Stats, error) {
	return s.repo.Stats(ctx, orgID)
}

// RefreshPatient marks a snapshot as touched and returns the fresh row.
func (s *Service) RefreshPatient(ctx context.Context, id int64) (*Patient, error) {
	p, err := s.repo.Refresh(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Classification = Classify(p, s.now())
	return p, nil
}
