package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"clinic-orders/internal/assignment"
	"clinic-orders/internal/catalog"
	"clinic-orders/internal/exceptions"
	"clinic-orders/internal/locker"
	"clinic-orders/internal/models"
	"clinic-orders/internal/queue"
	"clinic-orders/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const hospitalID int64 = 10

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var tenAM = fixedClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}

type fakeNotifier struct {
	mu   sync.Mutex
	ok   bool
	sent []string
}

func (f *fakeNotifier) Send(ctx context.Context, hospitalID int64, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return f.ok
}

type MockGuard struct {
	ClaimFunc    func(ctx context.Context, orderID int64) (string, bool, error)
	CompleteFunc func(ctx context.Context, orderID int64, token string) error
	ReleaseFunc  func(ctx context.Context, orderID int64, token string) error
}

func (m *MockGuard) Claim(ctx context.Context, orderID int64) (string, bool, error) {
	return m.ClaimFunc(ctx, orderID)
}

func (m *MockGuard) Complete(ctx context.Context, orderID int64, token string) error {
	return m.CompleteFunc(ctx, orderID, token)
}

func (m *MockGuard) Release(ctx context.Context, orderID int64, token string) error {
	return m.ReleaseFunc(ctx, orderID, token)
}

func seedClinic() *store.MemoryStore {
	mem := store.NewMemoryStore()
	mem.AddTreatment(models.CatalogTreatment{ID: 1, HospitalID: hospitalID, Name: "BotoxA", Active: true, DurationMinutes: 30})
	mem.AddTreatment(models.CatalogTreatment{ID: 2, HospitalID: hospitalID, Name: "FillerB", Active: true, DurationMinutes: 20})
	mem.AddGroup(models.TreatmentGroup{ID: 3, HospitalID: hospitalID, Name: "PackageA", Active: true, Members: []models.GroupMember{
		{TreatmentID: 1, Multiplier: 1, Position: 1},
		{TreatmentID: 2, Multiplier: 2, Position: 2},
	}})
	mem.AddDoctor(models.DoctorProfile{ID: 1, HospitalID: hospitalID, Name: "Kim", Active: true, TotalMinutes: 50,
		Qualifications: models.NewTreatmentSet(1, 2)})
	mem.AddDoctor(models.DoctorProfile{ID: 2, HospitalID: hospitalID, Name: "Lee", Active: true, TotalMinutes: 200,
		Qualifications: models.NewTreatmentSet(1, 2)})
	return mem
}

func setupPipeline(t testing.TB, mem *store.MemoryStore, guard Guard) (*Pipeline, *fakeNotifier) {
	log := zap.NewNop()
	notifier := &fakeNotifier{ok: true}
	p := New(Deps{
		Resolver: catalog.NewResolver(mem, log),
		Engine:   assignment.NewEngine(mem, mem, tenAM, log),
		Store:    mem,
		Notifier: notifier,
		Guard:    guard,
		Clock:    tenAM,
		Log:      log,
	})
	return p, notifier
}

func enqueue(t testing.TB, mem *store.MemoryStore, raw string) queue.OrderMessage {
	t.Helper()
	order := &models.Order{HospitalID: hospitalID, RawText: raw, CreatedBy: 80, CreatedAt: tenAM.now}
	id, err := mem.CreateOrder(context.Background(), order)
	require.NoError(t, err)
	return queue.OrderMessage{OrderID: id, HospitalID: hospitalID, RawText: raw, CreatedBy: 80, CreatedAt: tenAM.now}
}

func auditsOfType(mem *store.MemoryStore, typ models.AuditType) []models.AuditLog {
	var out []models.AuditLog
	for _, a := range mem.Audits() {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

func TestProcess_AssignsLeastLoadedDoctor(t *testing.T) {
	mem := seedClinic()
	p, notifier := setupPipeline(t, mem, nil)
	msg := enqueue(t, mem, "Jane / 12345 / BotoxA 2x / Room1")

	out := p.Process(context.Background(), msg)

	require.NoError(t, out.Err)
	assert.Equal(t, Done, out.State)
	require.Len(t, out.Decisions, 1)
	assert.Equal(t, int64(1), *out.Decisions[0].DoctorID)

	kim, _ := mem.Doctor(1)
	assert.Equal(t, 80, kim.TotalMinutes)
	lee, _ := mem.Doctor(2)
	assert.Equal(t, 200, lee.TotalMinutes)

	order, _ := mem.Order(msg.OrderID)
	assert.Equal(t, models.OrderAssigned, order.Status)

	records, _ := mem.ListOrderTreatments(context.Background(), msg.OrderID)
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].Count)
	assert.Equal(t, 30, records[0].EstimatedMinutes)
	require.NotNil(t, records[0].AssignedDoctorID)
	assert.Equal(t, int64(1), *records[0].AssignedDoctorID)

	assert.Equal(t, []string{"Jane / 12345 / BotoxA 2x / Room1 / Kim"}, notifier.sent)
	audits := auditsOfType(mem, models.AuditSlackNotification)
	require.Len(t, audits, 1)
	assert.True(t, audits[0].Success)
}

func TestProcess_ExpandsPackage(t *testing.T) {
	mem := seedClinic()
	p, _ := setupPipeline(t, mem, nil)
	msg := enqueue(t, mem, "Jane / 12345 / PackageA / Room1")

	out := p.Process(context.Background(), msg)
	require.NoError(t, out.Err)

	records, _ := mem.ListOrderTreatments(context.Background(), msg.OrderID)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0].TreatmentID)
	assert.Equal(t, 1, records[0].Count)
	assert.Equal(t, int64(2), records[1].TreatmentID)
	assert.Equal(t, 2, records[1].Count)

	kim, _ := mem.Doctor(1)
	assert.Equal(t, 100, kim.TotalMinutes)
}

func TestProcess_SpecifiedDoctorNotFound(t *testing.T) {
	mem := seedClinic()
	p, notifier := setupPipeline(t, mem, nil)
	msg := enqueue(t, mem, "Jane / 12345 / BotoxA / Room1 / Park")

	out := p.Process(context.Background(), msg)

	assert.Equal(t, Failed, out.State)
	assert.Equal(t, Resolved, out.FailedAt)
	assert.True(t, exceptions.Is(out.Err, exceptions.SpecifiedDoctorNotFound), "got %v", out.Err)

	kim, _ := mem.Doctor(1)
	assert.Equal(t, 50, kim.TotalMinutes, "no automatic fallback")

	order, _ := mem.Order(msg.OrderID)
	assert.Equal(t, models.OrderFailed, order.Status)
	require.NotNil(t, order.FailureStage)
	assert.Equal(t, "resolved", *order.FailureStage)
	assert.Len(t, auditsOfType(mem, models.AuditOrderFailed), 1)
	assert.Empty(t, notifier.sent)
}

func TestProcess_FailureStages(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		failedAt State
		kind     exceptions.Kind
	}{
		{"template mismatch", "Jane 12345 BotoxA Room1", Received, exceptions.TemplateMismatch},
		{"non numeric chart", "Jane / 12a45 / BotoxA / Room1", Received, exceptions.FieldValidation},
		{"nothing in catalog", "Jane / 12345 / Unknown / Room1", ClauseParsed, exceptions.MappingEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := seedClinic()
			p, _ := setupPipeline(t, mem, nil)
			msg := enqueue(t, mem, tt.raw)

			out := p.Process(context.Background(), msg)

			assert.Equal(t, Failed, out.State)
			assert.Equal(t, tt.failedAt, out.FailedAt)
			assert.Equal(t, tt.kind, exceptions.KindOf(out.Err))
			order, _ := mem.Order(msg.OrderID)
			assert.Equal(t, models.OrderFailed, order.Status)
		})
	}
}

func TestProcess_NotificationFailureKeepsAssignment(t *testing.T) {
	mem := seedClinic()
	p, notifier := setupPipeline(t, mem, nil)
	notifier.ok = false
	msg := enqueue(t, mem, "Jane / 12345 / BotoxA / Room1")

	out := p.Process(context.Background(), msg)

	require.NoError(t, out.Err)
	assert.Equal(t, Done, out.State)
	assert.False(t, out.Notified)
	kim, _ := mem.Doctor(1)
	assert.Equal(t, 80, kim.TotalMinutes)

	audits := auditsOfType(mem, models.AuditSlackNotification)
	require.Len(t, audits, 1)
	assert.False(t, audits[0].Success)
}

func TestProcess_PersistenceFailureRollsBack(t *testing.T) {
	directory := seedClinic()
	// the transactional store does not know the selected doctor, so the
	// locked increment fails inside the unit of work
	ledger := store.NewMemoryStore()
	log := zap.NewNop()
	p := New(Deps{
		Resolver: catalog.NewResolver(directory, log),
		Engine:   assignment.NewEngine(directory, directory, tenAM, log),
		Store:    ledger,
		Notifier: &fakeNotifier{ok: true},
		Clock:    tenAM,
		Log:      log,
	})
	msg := enqueue(t, ledger, "Jane / 12345 / BotoxA / Room1")

	out := p.Process(context.Background(), msg)

	assert.Equal(t, Assigned, out.FailedAt)
	assert.True(t, exceptions.Is(out.Err, exceptions.PersistenceUpdateFailure), "got %v", out.Err)
	assert.Nil(t, out.Decisions)
	records, _ := ledger.ListOrderTreatments(context.Background(), msg.OrderID)
	assert.Empty(t, records)
	order, _ := ledger.Order(msg.OrderID)
	assert.Equal(t, models.OrderFailed, order.Status)
}

func TestProcess_DuplicateClaimIsSkipped(t *testing.T) {
	mem := seedClinic()
	guard := &MockGuard{
		ClaimFunc: func(ctx context.Context, orderID int64) (string, bool, error) {
			return "", false, nil
		},
	}
	p, notifier := setupPipeline(t, mem, guard)
	msg := enqueue(t, mem, "Jane / 12345 / BotoxA / Room1")

	out := p.Process(context.Background(), msg)

	assert.Equal(t, Duplicate, out.State)
	kim, _ := mem.Doctor(1)
	assert.Equal(t, 50, kim.TotalMinutes)
	assert.Empty(t, notifier.sent)
}

func TestProcess_ReleasesClaimOnFailure(t *testing.T) {
	mem := seedClinic()
	var released, completed bool
	guard := &MockGuard{
		ClaimFunc: func(ctx context.Context, orderID int64) (string, bool, error) {
			return "token", true, nil
		},
		CompleteFunc: func(ctx context.Context, orderID int64, token string) error {
			completed = true
			return nil
		},
		ReleaseFunc: func(ctx context.Context, orderID int64, token string) error {
			released = true
			return nil
		},
	}
	p, _ := setupPipeline(t, mem, guard)

	p.Process(context.Background(), enqueue(t, mem, "garbage"))
	assert.True(t, released)
	assert.False(t, completed)

	released = false
	p.Process(context.Background(), enqueue(t, mem, "Jane / 12345 / BotoxA / Room1"))
	assert.True(t, completed)
	assert.False(t, released)
}

func TestProcess_RedeliveryDoesNotDoubleCount(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	guard := locker.NewGuard(rdb, time.Minute, time.Hour, zap.NewNop())

	mem := seedClinic()
	p, _ := setupPipeline(t, mem, guard)
	msg := enqueue(t, mem, "Jane / 12345 / BotoxA / Room1")

	first := p.Process(context.Background(), msg)
	second := p.Process(context.Background(), msg)

	assert.Equal(t, Done, first.State)
	assert.Equal(t, Duplicate, second.State)
	kim, _ := mem.Doctor(1)
	assert.Equal(t, 80, kim.TotalMinutes)
}

func TestProcess_GuardDownStillProcesses(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	guard := locker.NewGuard(rdb, time.Minute, time.Hour, zap.NewNop())
	mr.Close()

	mem := seedClinic()
	p, _ := setupPipeline(t, mem, guard)

	out := p.Process(context.Background(), enqueue(t, mem, "Jane / 12345 / BotoxA / Room1"))
	assert.Equal(t, Done, out.State)
}

func TestHandle(t *testing.T) {
	mem := seedClinic()
	p, notifier := setupPipeline(t, mem, nil)

	err := p.Handle(context.Background(), []byte(`{"order_id": 5, "hospital_id": "10", "raw_text": "Jane / 12345 / BotoxA / Room1", "created_by": 80, "created_at": "2024-05-01T10:00:00"}`))
	require.NoError(t, err)
	assert.Len(t, notifier.sent, 1)

	err = p.Handle(context.Background(), []byte(`not json`))
	assert.True(t, exceptions.Is(err, exceptions.InvalidMessage))
}

func TestProcess_ConcurrentOrdersBalanceWithoutLostUpdates(t *testing.T) {
	mem := seedClinic()
	p, _ := setupPipeline(t, mem, nil)

	const orders = 20
	msgs := make([]queue.OrderMessage, orders)
	for i := range msgs {
		msgs[i] = enqueue(t, mem, "Jane / 12345 / BotoxA / Room1")
	}

	var wg sync.WaitGroup
	for _, msg := range msgs {
		wg.Add(1)
		go func(msg queue.OrderMessage) {
			defer wg.Done()
			if out := p.Process(context.Background(), msg); out.Err != nil {
				t.Errorf("Unexpected error: %v", out.Err)
			}
		}(msg)
	}
	wg.Wait()

	kim, _ := mem.Doctor(1)
	lee, _ := mem.Doctor(2)
	assert.Equal(t, 50+200+orders*30, kim.TotalMinutes+lee.TotalMinutes)
}
