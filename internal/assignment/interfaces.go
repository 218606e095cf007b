package assignment

import (
	"context"
	"time"

	"clinic-orders/internal/models"
)

// WorkloadWriter adds minutes to a doctor's accumulated workload and returns
// the new total. Implementations must serialize concurrent increments of the
// same doctor so that no update is lost.
type WorkloadWriter interface {
	IncrementWorkload(ctx context.Context, doctorID int64, minutes int) (int, error)
}

// DoctorStore defines the doctor lookups and workload writes the engine needs.
// FindActiveDoctorByName returns (nil, nil) when no doctor matches.
type DoctorStore interface {
	WorkloadWriter
	ListActiveDoctors(ctx context.Context, hospitalID int64) ([]*models.DoctorProfile, error)
	ListActiveDoctorsAllHospitals(ctx context.Context) ([]*models.DoctorProfile, error)
	FindActiveDoctorByName(ctx context.Context, hospitalID int64, name string) (*models.DoctorProfile, error)
	ResetWorkload(ctx context.Context, doctorID int64) (int, error)
}

// AuditStore records maintenance and notification events.
type AuditStore interface {
	RecordAudit(ctx context.Context, entry *models.AuditLog) error
}

type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in a fixed location.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}
