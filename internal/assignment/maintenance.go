package assignment

import (
	"context"
	"errors"
	"fmt"

	"clinic-orders/internal/models"

	"go.uber.org/zap"
)

// ResetWorkloads zeroes the accumulated minutes of every active doctor, or of
// one hospital's doctors when hospitalID is set, and writes one audit record
// per doctor. It keeps going after a failure and returns the joined errors
// together with the number of doctors reset.
func (e *Engine) ResetWorkloads(ctx context.Context, hospitalID *int64) (int, error) {
	var (
		doctors []*models.DoctorProfile
		err     error
	)
	if hospitalID != nil {
		doctors, err = e.doctors.ListActiveDoctors(ctx, *hospitalID)
	} else {
		doctors, err = e.doctors.ListActiveDoctorsAllHospitals(ctx)
	}
	if err != nil {
		return 0, fmt.Errorf("list doctors for reset: %w", err)
	}

	var errs []error
	reset := 0
	for _, d := range doctors {
		previous, err := e.doctors.ResetWorkload(ctx, d.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("reset doctor %d: %w", d.ID, err))
			continue
		}
		reset++

		doctorID, name, minutes := d.ID, d.Name, previous
		entry := &models.AuditLog{
			Type:         models.AuditDoctorProfileReset,
			HospitalID:   d.HospitalID,
			DoctorID:     &doctorID,
			DoctorName:   &name,
			TotalMinutes: &minutes,
			Message:      fmt.Sprintf("workload reset: %s - %d minutes", d.Name, previous),
			Success:      true,
			CreatedAt:    e.clock.Now(),
		}
		if err := e.audit.RecordAudit(ctx, entry); err != nil {
			errs = append(errs, fmt.Errorf("audit reset of doctor %d: %w", d.ID, err))
		}
	}

	e.log.Info("workloads reset",
		zap.Int("doctors", reset),
		zap.Int("failures", len(errs)),
	)
	return reset, errors.Join(errs...)
}
