package assignment

import (
	"context"
	"sync"
	"time"

	"clinic-orders/internal/models"
)

type MockDoctorStore struct {
	ListActiveDoctorsFunc             func(ctx context.Context, hospitalID int64) ([]*models.DoctorProfile, error)
	ListActiveDoctorsAllHospitalsFunc func(ctx context.Context) ([]*models.DoctorProfile, error)
	FindActiveDoctorByNameFunc        func(ctx context.Context, hospitalID int64, name string) (*models.DoctorProfile, error)
	IncrementWorkloadFunc             func(ctx context.Context, doctorID int64, minutes int) (int, error)
	ResetWorkloadFunc                 func(ctx context.Context, doctorID int64) (int, error)
}

func (m *MockDoctorStore) ListActiveDoctors(ctx context.Context, hospitalID int64) ([]*models.DoctorProfile, error) {
	return m.ListActiveDoctorsFunc(ctx, hospitalID)
}

func (m *MockDoctorStore) ListActiveDoctorsAllHospitals(ctx context.Context) ([]*models.DoctorProfile, error) {
	return m.ListActiveDoctorsAllHospitalsFunc(ctx)
}

func (m *MockDoctorStore) FindActiveDoctorByName(ctx context.Context, hospitalID int64, name string) (*models.DoctorProfile, error) {
	if m.FindActiveDoctorByNameFunc != nil {
		return m.FindActiveDoctorByNameFunc(ctx, hospitalID, name)
	}

	// Fallback: search the hospital list, which most tests mock
	doctors, err := m.ListActiveDoctors(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	for _, d := range doctors {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, nil
}

func (m *MockDoctorStore) IncrementWorkload(ctx context.Context, doctorID int64, minutes int) (int, error) {
	return m.IncrementWorkloadFunc(ctx, doctorID, minutes)
}

func (m *MockDoctorStore) ResetWorkload(ctx context.Context, doctorID int64) (int, error) {
	return m.ResetWorkloadFunc(ctx, doctorID)
}

type MockAuditStore struct {
	mu      sync.Mutex
	Entries []*models.AuditLog
	Err     error
}

func (m *MockAuditStore) RecordAudit(ctx context.Context, entry *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Entries = append(m.Entries, entry)
	return nil
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func clockAt(hour, minute int) fixedClock {
	return fixedClock{now: time.Date(2024, 5, 1, hour, minute, 0, 0, time.UTC)}
}
