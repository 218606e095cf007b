// Package assignment selects one qualified, available doctor for a whole order
// and records the resulting workload.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"clinic-orders/internal/exceptions"
	"clinic-orders/internal/models"

	"go.uber.org/zap"
)

// MaxScore is the score of an idle doctor and of every specified-doctor assignment.
const MaxScore = 100.0

type Engine struct {
	doctors DoctorStore
	audit   AuditStore
	clock   Clock
	log     *zap.Logger
}

func NewEngine(doctors DoctorStore, audit AuditStore, clock Clock, log *zap.Logger) *Engine {
	return &Engine{
		doctors: doctors,
		audit:   audit,
		clock:   clock,
		log:     log,
	}
}

// Selection is the doctor chosen for an order, before any workload is written.
type Selection struct {
	Doctor     *models.DoctorProfile
	Score      float64
	Mode       models.AssignmentMode
	Candidates int
}

// Score maps accumulated minutes onto [50, 100]; more workload, lower score.
func Score(totalMinutes int) float64 {
	return MaxScore - math.Min(float64(totalMinutes)/100, 50)
}

// Assign selects a doctor for the batch and commits the workload increment
// through the engine's own store.
func (e *Engine) Assign(ctx context.Context, hospitalID int64, treatments []models.ResolvedTreatment, specifiedDoctor *string) ([]models.AssignmentDecision, error) {
	sel, err := e.Select(ctx, hospitalID, treatments, specifiedDoctor)
	if err != nil {
		return nil, err
	}
	return e.Commit(ctx, e.doctors, sel, treatments)
}

// Select picks the doctor for the whole batch without writing anything.
func (e *Engine) Select(ctx context.Context, hospitalID int64, treatments []models.ResolvedTreatment, specifiedDoctor *string) (*Selection, error) {
	if len(treatments) == 0 {
		return nil, errors.New("no treatments to assign")
	}
	required := models.DistinctTreatmentIDs(treatments)

	if specifiedDoctor != nil {
		return e.selectSpecified(ctx, hospitalID, *specifiedDoctor, required)
	}
	return e.selectAutomatic(ctx, hospitalID, required)
}

func (e *Engine) selectSpecified(ctx context.Context, hospitalID int64, name string, required []int64) (*Selection, error) {
	doctor, err := e.doctors.FindActiveDoctorByName(ctx, hospitalID, name)
	if err != nil {
		return nil, fmt.Errorf("find doctor %q: %w", name, err)
	}
	if doctor == nil {
		return nil, exceptions.ErrSpecifiedDoctorNotFound(name)
	}
	if e.onBreak(doctor) {
		return nil, exceptions.ErrSpecifiedDoctorOnBreak(name)
	}
	if missing := doctor.Qualifications.Missing(required); len(missing) > 0 {
		return nil, exceptions.ErrSpecifiedDoctorNotQualified(name, missing)
	}

	return &Selection{
		Doctor:     doctor,
		Score:      MaxScore,
		Mode:       models.ModeSpecified,
		Candidates: 1,
	}, nil
}

func (e *Engine) selectAutomatic(ctx context.Context, hospitalID int64, required []int64) (*Selection, error) {
	doctors, err := e.doctors.ListActiveDoctors(ctx, hospitalID)
	if err != nil {
		return nil, fmt.Errorf("list doctors of hospital %d: %w", hospitalID, err)
	}
	if len(doctors) == 0 {
		return nil, exceptions.ErrNoActiveDoctors(hospitalID)
	}

	candidates := e.filterAvailable(doctors)
	candidates = filterQualified(candidates, required)
	if len(candidates) == 0 {
		return nil, exceptions.ErrNoQualifiedDoctorForBatch(required)
	}

	best, score := loadBalance(candidates)
	return &Selection{
		Doctor:     best,
		Score:      score,
		Mode:       models.ModeAutomatic,
		Candidates: len(candidates),
	}, nil
}

func (e *Engine) onBreak(doctor *models.DoctorProfile) bool {
	if doctor.Break == nil {
		return false
	}
	return doctor.Break.Contains(models.TimeOfDayOf(e.clock.Now()))
}

func (e *Engine) filterAvailable(doctors []*models.DoctorProfile) []*models.DoctorProfile {
	var filtered []*models.DoctorProfile
	for _, d := range doctors {
		if !e.onBreak(d) {
			filtered = append(filtered, d)
		}
	}
	return filtered
}

// filterQualified keeps doctors qualified for every treatment of the batch.
func filterQualified(doctors []*models.DoctorProfile, required []int64) []*models.DoctorProfile {
	var filtered []*models.DoctorProfile
	for _, d := range doctors {
		if d.Qualifications.Covers(required) {
			filtered = append(filtered, d)
		}
	}
	return filtered
}

// loadBalance returns the highest scoring doctor; ties go to the lowest id.
func loadBalance(doctors []*models.DoctorProfile) (*models.DoctorProfile, float64) {
	sorted := append([]*models.DoctorProfile(nil), doctors...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var best *models.DoctorProfile
	bestScore := -1.0
	for _, d := range sorted {
		if s := Score(d.TotalMinutes); s > bestScore {
			best, bestScore = d, s
		}
	}
	return best, bestScore
}

// Commit adds the batch's minutes to the selected doctor through w and builds
// one decision per treatment. w is usually a transaction-scoped store so the
// increment commits together with the order's records.
func (e *Engine) Commit(ctx context.Context, w WorkloadWriter, sel *Selection, treatments []models.ResolvedTreatment) ([]models.AssignmentDecision, error) {
	doctor := sel.Doctor
	minutes := models.TotalMinutes(treatments)

	newTotal, err := w.IncrementWorkload(ctx, doctor.ID, minutes)
	if err != nil {
		e.log.Error("workload increment failed",
			zap.Int64("doctor_id", doctor.ID),
			zap.Int("minutes", minutes),
			zap.Error(err),
		)
		return nil, exceptions.ErrPersistenceUpdateFailure(err, doctor.ID)
	}

	var reason string
	if sel.Mode == models.ModeSpecified {
		reason = fmt.Sprintf("assigned to specified doctor %s", doctor.Name)
	} else {
		reason = fmt.Sprintf("assigned to %s, least loaded of %d qualified doctors (score %.1f)", doctor.Name, sel.Candidates, sel.Score)
	}

	e.log.Info("order assigned",
		zap.Int64("hospital_id", doctor.HospitalID),
		zap.Int64("doctor_id", doctor.ID),
		zap.String("mode", string(sel.Mode)),
		zap.Float64("score", sel.Score),
		zap.Int("minutes", minutes),
		zap.Int("total_minutes", newTotal),
	)

	decisions := make([]models.AssignmentDecision, 0, len(treatments))
	for _, t := range treatments {
		id, name := doctor.ID, doctor.Name
		decisions = append(decisions, models.AssignmentDecision{
			TreatmentID: t.TreatmentID,
			DoctorID:    &id,
			DoctorName:  &name,
			Success:     true,
			Reason:      reason,
			Score:       sel.Score,
		})
	}
	return decisions, nil
}

// Workloads reports every active doctor of a hospital with their current score
// and break status, ordered by id.
func (e *Engine) Workloads(ctx context.Context, hospitalID int64) ([]models.DoctorWorkload, error) {
	doctors, err := e.doctors.ListActiveDoctors(ctx, hospitalID)
	if err != nil {
		return nil, fmt.Errorf("list doctors of hospital %d: %w", hospitalID, err)
	}
	sort.Slice(doctors, func(i, j int) bool { return doctors[i].ID < doctors[j].ID })

	board := make([]models.DoctorWorkload, 0, len(doctors))
	for _, d := range doctors {
		board = append(board, models.DoctorWorkload{
			DoctorID:     d.ID,
			Name:         d.Name,
			TotalMinutes: d.TotalMinutes,
			Score:        Score(d.TotalMinutes),
			OnBreak:      e.onBreak(d),
		})
	}
	return board, nil
}
