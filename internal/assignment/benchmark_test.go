package assignment

import (
	"context"
	"fmt"
	"testing"

	"clinic-orders/internal/models"
)

func BenchmarkSelect_LargeRoster(b *testing.B) {
	numDoctors := 1500
	doctors := make([]*models.DoctorProfile, numDoctors)
	for i := 0; i < numDoctors; i++ {
		doctors[i] = doctor(int64(i+1), fmt.Sprintf("doctor%d", i), i*7%5000, botoxID, fillerID)
	}
	engine, _, _ := setupEngine(b, doctors, clockAt(10, 0))
	batch := []models.ResolvedTreatment{botox(30), {TreatmentID: fillerID, Count: 2, EstimatedMinutes: 40}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = engine.Select(context.Background(), 10, batch, nil)
	}
}

func BenchmarkAssign(b *testing.B) {
	doctors := []*models.DoctorProfile{
		doctor(1, "Kim", 50, botoxID),
		doctor(2, "Lee", 200, botoxID),
	}
	engine, _, _ := setupEngine(b, doctors, clockAt(10, 0))
	batch := []models.ResolvedTreatment{botox(30)}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = engine.Assign(context.Background(), 10, batch, nil)
	}
}
