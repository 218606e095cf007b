package assignment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"clinic-orders/internal/exceptions"
	"clinic-orders/internal/models"
	"clinic-orders/internal/store"

	"go.uber.org/zap"
)

const (
	botoxID  int64 = 1
	fillerID int64 = 2
)

// workloads keeps the mocked totals so commits are observable.
type workloads struct {
	mu     sync.Mutex
	totals map[int64]int
}

func (w *workloads) add(id int64, minutes int) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.totals[id] += minutes
	return w.totals[id]
}

// Helper for boilerplate setup
func setupEngine(t testing.TB, doctors []*models.DoctorProfile, clock Clock) (*Engine, *workloads, *MockAuditStore) {
	w := &workloads{totals: make(map[int64]int)}
	for _, d := range doctors {
		w.totals[d.ID] = d.TotalMinutes
	}

	mockDB := &MockDoctorStore{
		ListActiveDoctorsFunc: func(ctx context.Context, hospitalID int64) ([]*models.DoctorProfile, error) {
			var out []*models.DoctorProfile
			for _, d := range doctors {
				if d.HospitalID == hospitalID && d.Active {
					out = append(out, d)
				}
			}
			return out, nil
		},
		ListActiveDoctorsAllHospitalsFunc: func(ctx context.Context) ([]*models.DoctorProfile, error) {
			return doctors, nil
		},
		IncrementWorkloadFunc: func(ctx context.Context, doctorID int64, minutes int) (int, error) {
			return w.add(doctorID, minutes), nil
		},
		ResetWorkloadFunc: func(ctx context.Context, doctorID int64) (int, error) {
			w.mu.Lock()
			defer w.mu.Unlock()
			previous := w.totals[doctorID]
			w.totals[doctorID] = 0
			return previous, nil
		},
	}
	audit := &MockAuditStore{}

	return NewEngine(mockDB, audit, clock, zap.NewNop()), w, audit
}

func doctor(id int64, name string, load int, quals ...int64) *models.DoctorProfile {
	return &models.DoctorProfile{
		ID:             id,
		HospitalID:     10,
		Name:           name,
		Active:         true,
		TotalMinutes:   load,
		Qualifications: models.NewTreatmentSet(quals...),
	}
}

func botox(minutes int) models.ResolvedTreatment {
	return models.ResolvedTreatment{TreatmentID: botoxID, Count: 1, EstimatedMinutes: minutes, SourceItem: "BotoxA"}
}

func strPtr(s string) *string { return &s }

func TestAssign_LeastLoadedQualifiedDoctorWins(t *testing.T) {
	kim := doctor(1, "Kim", 50, botoxID)
	lee := doctor(2, "Lee", 200, botoxID)
	engine, w, _ := setupEngine(t, []*models.DoctorProfile{kim, lee}, clockAt(10, 0))

	decisions, err := engine.Assign(context.Background(), 10, []models.ResolvedTreatment{botox(30)}, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(decisions) != 1 {
		t.Fatalf("Expected 1 decision, got %d", len(decisions))
	}
	if *decisions[0].DoctorID != kim.ID {
		t.Errorf("Expected Kim to be selected, got %s", *decisions[0].DoctorName)
	}
	if decisions[0].Score != 99.5 {
		t.Errorf("Expected score 99.5, got %v", decisions[0].Score)
	}
	if w.totals[kim.ID] != 80 {
		t.Errorf("Expected Kim's load to become 80, got %d", w.totals[kim.ID])
	}
	if w.totals[lee.ID] != 200 {
		t.Errorf("Expected Lee's load to stay 200, got %d", w.totals[lee.ID])
	}
}

func TestScore(t *testing.T) {
	if got := Score(200); got != 98.0 {
		t.Errorf("Expected Score(200) = 98.0, got %v", got)
	}
	if got := Score(0); got != MaxScore {
		t.Errorf("Expected idle score %v, got %v", MaxScore, got)
	}
	if got := Score(1_000_000); got != 50 {
		t.Errorf("Expected score to floor at 50, got %v", got)
	}
}

func TestScore_Monotonic(t *testing.T) {
	prev := Score(0)
	for m := 1; m <= 6000; m += 7 {
		s := Score(m)
		if s > prev {
			t.Fatalf("Score increased from %v to %v at %d minutes", prev, s, m)
		}
		prev = s
	}
}

func TestAssign_SpecifiedDoctorNotFound(t *testing.T) {
	engine, w, _ := setupEngine(t, []*models.DoctorProfile{doctor(1, "Kim", 0, botoxID)}, clockAt(10, 0))

	_, err := engine.Assign(context.Background(), 10, []models.ResolvedTreatment{botox(30)}, strPtr("Park"))
	if !exceptions.Is(err, exceptions.SpecifiedDoctorNotFound) {
		t.Fatalf("Expected SpecifiedDoctorNotFound, got %v", err)
	}
	if w.totals[1] != 0 {
		t.Errorf("Expected no automatic fallback, Kim's load changed to %d", w.totals[1])
	}
}

func TestAssign_SpecifiedDoctorOnBreak(t *testing.T) {
	park := doctor(3, "Park", 0, botoxID)
	park.Break = &models.BreakWindow{Start: models.NewTimeOfDay(12, 0, 0), End: models.NewTimeOfDay(13, 0, 0)}
	engine, _, _ := setupEngine(t, []*models.DoctorProfile{park}, clockAt(12, 30))

	_, err := engine.Assign(context.Background(), 10, []models.ResolvedTreatment{botox(30)}, strPtr("Park"))
	if !exceptions.Is(err, exceptions.SpecifiedDoctorOnBreak) {
		t.Fatalf("Expected SpecifiedDoctorOnBreak, got %v", err)
	}
}

func TestAssign_SpecifiedDoctorNotQualified(t *testing.T) {
	park := doctor(3, "Park", 0, botoxID)
	engine, _, _ := setupEngine(t, []*models.DoctorProfile{park}, clockAt(10, 0))

	batch := []models.ResolvedTreatment{botox(30), {TreatmentID: fillerID, Count: 1, EstimatedMinutes: 20}}
	_, err := engine.Assign(context.Background(), 10, batch, strPtr("Park"))
	if !exceptions.Is(err, exceptions.SpecifiedDoctorNotQualified) {
		t.Fatalf("Expected SpecifiedDoctorNotQualified, got %v", err)
	}
}

func TestAssign_SpecifiedDoctorIgnoresLoad(t *testing.T) {
	kim := doctor(1, "Kim", 0, botoxID)
	lee := doctor(2, "Lee", 4000, botoxID)
	engine, w, _ := setupEngine(t, []*models.DoctorProfile{kim, lee}, clockAt(10, 0))

	decisions, err := engine.Assign(context.Background(), 10, []models.ResolvedTreatment{botox(30)}, strPtr("Lee"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if *decisions[0].DoctorID != lee.ID {
		t.Errorf("Expected Lee, got %s", *decisions[0].DoctorName)
	}
	if decisions[0].Score != MaxScore {
		t.Errorf("Expected max score for a specified doctor, got %v", decisions[0].Score)
	}
	if w.totals[lee.ID] != 4030 {
		t.Errorf("Expected Lee's load 4030, got %d", w.totals[lee.ID])
	}
}

func TestAssign_NoActiveDoctors(t *testing.T) {
	engine, _, _ := setupEngine(t, nil, clockAt(10, 0))

	_, err := engine.Assign(context.Background(), 10, []models.ResolvedTreatment{botox(30)}, nil)
	if !exceptions.Is(err, exceptions.NoActiveDoctors) {
		t.Fatalf("Expected NoActiveDoctors, got %v", err)
	}
}

func TestAssign_QualificationIsConjunctive(t *testing.T) {
	// Kim covers only BotoxA, Lee covers only FillerB; nobody covers both.
	kim := doctor(1, "Kim", 0, botoxID)
	lee := doctor(2, "Lee", 0, fillerID)
	engine, _, _ := setupEngine(t, []*models.DoctorProfile{kim, lee}, clockAt(10, 0))

	batch := []models.ResolvedTreatment{botox(30), {TreatmentID: fillerID, Count: 2, EstimatedMinutes: 20}}
	_, err := engine.Assign(context.Background(), 10, batch, nil)
	if !exceptions.Is(err, exceptions.NoQualifiedDoctorForBatch) {
		t.Fatalf("Expected NoQualifiedDoctorForBatch, got %v", err)
	}

	park := doctor(3, "Park", 900, botoxID, fillerID)
	engine, w, _ := setupEngine(t, []*models.DoctorProfile{kim, lee, park}, clockAt(10, 0))
	decisions, err := engine.Assign(context.Background(), 10, batch, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(decisions) != 2 {
		t.Fatalf("Expected 2 decisions, got %d", len(decisions))
	}
	for _, d := range decisions {
		if *d.DoctorID != park.ID {
			t.Errorf("Expected every treatment assigned to Park, got %s", *d.DoctorName)
		}
	}
	if w.totals[park.ID] != 950 {
		t.Errorf("Expected batch minutes summed onto Park, got %d", w.totals[park.ID])
	}
}

func TestAssign_TieGoesToLowestID(t *testing.T) {
	doctors := []*models.DoctorProfile{
		doctor(9, "Yoon", 100, botoxID),
		doctor(4, "Han", 100, botoxID),
		doctor(7, "Jung", 100, botoxID),
	}
	engine, _, _ := setupEngine(t, doctors, clockAt(10, 0))

	decisions, err := engine.Assign(context.Background(), 10, []models.ResolvedTreatment{botox(30)}, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if *decisions[0].DoctorID != 4 {
		t.Errorf("Expected the tie to go to doctor 4, got %d", *decisions[0].DoctorID)
	}
}

func TestAssign_SkipsDoctorsOnBreak(t *testing.T) {
	kim := doctor(1, "Kim", 0, botoxID)
	kim.Break = &models.BreakWindow{Start: models.NewTimeOfDay(22, 0, 0), End: models.NewTimeOfDay(2, 0, 0)}
	lee := doctor(2, "Lee", 500, botoxID)

	tests := []struct {
		name     string
		clock    fixedClock
		expected int64
	}{
		{"before midnight inside window", clockAt(23, 0), lee.ID},
		{"after midnight inside window", clockAt(1, 0), lee.ID},
		{"window start is inclusive", clockAt(22, 0), lee.ID},
		{"window end is inclusive", clockAt(2, 0), lee.ID},
		{"outside window", clockAt(10, 0), kim.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _, _ := setupEngine(t, []*models.DoctorProfile{kim, lee}, tt.clock)
			sel, err := engine.Select(context.Background(), 10, []models.ResolvedTreatment{botox(30)}, nil)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if sel.Doctor.ID != tt.expected {
				t.Errorf("Expected doctor %d, got %d", tt.expected, sel.Doctor.ID)
			}
		})
	}
}

func TestAssign_AllOnBreak(t *testing.T) {
	kim := doctor(1, "Kim", 0, botoxID)
	kim.Break = &models.BreakWindow{Start: models.NewTimeOfDay(9, 0, 0), End: models.NewTimeOfDay(11, 0, 0)}
	engine, _, _ := setupEngine(t, []*models.DoctorProfile{kim}, clockAt(10, 0))

	_, err := engine.Assign(context.Background(), 10, []models.ResolvedTreatment{botox(30)}, nil)
	if !exceptions.Is(err, exceptions.NoQualifiedDoctorForBatch) {
		t.Fatalf("Expected NoQualifiedDoctorForBatch, got %v", err)
	}
}

func TestAssign_EmptyBatch(t *testing.T) {
	engine, _, _ := setupEngine(t, []*models.DoctorProfile{doctor(1, "Kim", 0, botoxID)}, clockAt(10, 0))

	if _, err := engine.Assign(context.Background(), 10, nil, nil); err == nil {
		t.Fatal("Expected an error for an empty batch")
	}
}

func TestCommit_PersistenceFailure(t *testing.T) {
	kim := doctor(1, "Kim", 0, botoxID)
	engine, _, _ := setupEngine(t, []*models.DoctorProfile{kim}, clockAt(10, 0))
	sel, err := engine.Select(context.Background(), 10, []models.ResolvedTreatment{botox(30)}, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	failing := &MockDoctorStore{
		IncrementWorkloadFunc: func(ctx context.Context, doctorID int64, minutes int) (int, error) {
			return 0, errors.New("deadlock detected")
		},
	}
	_, err = engine.Commit(context.Background(), failing, sel, []models.ResolvedTreatment{botox(30)})
	if !exceptions.Is(err, exceptions.PersistenceUpdateFailure) {
		t.Fatalf("Expected PersistenceUpdateFailure, got %v", err)
	}
}

func TestCommit_ConcurrentOrdersDoNotLoseUpdates(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.AddDoctor(models.DoctorProfile{
		ID: 1, HospitalID: 10, Name: "Kim", Active: true,
		Qualifications: models.NewTreatmentSet(botoxID),
	})
	engine := NewEngine(mem, mem, clockAt(10, 0), zap.NewNop())

	const orders = 40
	var wg sync.WaitGroup
	for i := 0; i < orders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := []models.ResolvedTreatment{botox(30)}
			sel, err := engine.Select(context.Background(), 10, batch, nil)
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}
			err = mem.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
				_, err := engine.Commit(ctx, tx, sel, batch)
				return err
			})
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	d, _ := mem.Doctor(1)
	if d.TotalMinutes != orders*30 {
		t.Errorf("Expected total %d, got %d", orders*30, d.TotalMinutes)
	}
}

func TestWorkloads(t *testing.T) {
	kim := doctor(1, "Kim", 50, botoxID)
	kim.Break = &models.BreakWindow{Start: models.NewTimeOfDay(9, 0, 0), End: models.NewTimeOfDay(11, 0, 0)}
	lee := doctor(2, "Lee", 200, botoxID)
	engine, _, _ := setupEngine(t, []*models.DoctorProfile{lee, kim}, clockAt(10, 0))

	board, err := engine.Workloads(context.Background(), 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(board) != 2 || board[0].Name != "Kim" {
		t.Fatalf("Expected Kim first on the board, got %+v", board)
	}
	if !board[0].OnBreak || board[1].OnBreak {
		t.Errorf("Expected only Kim on break, got %+v", board)
	}
	if board[1].Score != 98.0 {
		t.Errorf("Expected Lee's score 98.0, got %v", board[1].Score)
	}
}
