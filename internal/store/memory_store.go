package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"clinic-orders/internal/models"
)

var ErrDoctorNotFound = errors.New("doctor not found")

// MemoryStore keeps the whole order database in process. It backs local runs
// and the package tests of everything above the store.
type MemoryStore struct {
	mu sync.RWMutex
	// txMu serializes units of work so a buffered increment is always
	// computed against the latest committed total.
	txMu sync.Mutex

	hospitals    map[int64]bool
	treatments   map[int64]*models.CatalogTreatment
	groups       map[int64]*models.TreatmentGroup
	doctors      map[int64]*models.DoctorProfile
	orders       map[int64]*models.Order
	orderRecords map[int64][]models.OrderTreatment
	audits       []models.AuditLog
	nextOrderID  int64
	nextAuditID  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		hospitals:    make(map[int64]bool),
		treatments:   make(map[int64]*models.CatalogTreatment),
		groups:       make(map[int64]*models.TreatmentGroup),
		doctors:      make(map[int64]*models.DoctorProfile),
		orders:       make(map[int64]*models.Order),
		orderRecords: make(map[int64][]models.OrderTreatment),
	}
}

// Seeding

func (s *MemoryStore) AddHospital(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hospitals[id] = true
}

func (s *MemoryStore) AddTreatment(t models.CatalogTreatment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hospitals[t.HospitalID] = true
	s.treatments[t.ID] = &t
}

func (s *MemoryStore) AddGroup(g models.TreatmentGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hospitals[g.HospitalID] = true
	g.Members = append([]models.GroupMember(nil), g.Members...)
	s.groups[g.ID] = &g
}

func (s *MemoryStore) AddDoctor(d models.DoctorProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hospitals[d.HospitalID] = true
	s.doctors[d.ID] = &d
}

// Doctor returns a copy of the stored profile.
func (s *MemoryStore) Doctor(id int64) (models.DoctorProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.doctors[id]
	if !ok {
		return models.DoctorProfile{}, false
	}
	return *d, true
}

func (s *MemoryStore) Order(id int64) (models.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return models.Order{}, false
	}
	return *o, true
}

func (s *MemoryStore) Audits() []models.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.AuditLog(nil), s.audits...)
}

// Catalog

func (s *MemoryStore) FindActiveTreatmentByName(ctx context.Context, hospitalID int64, name string) (*models.CatalogTreatment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range sortedKeys(s.treatments) {
		t := s.treatments[id]
		if t.HospitalID == hospitalID && t.Active && t.Name == name {
			c := *t
			return &c, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) FindActiveGroupByName(ctx context.Context, hospitalID int64, name string) (*models.TreatmentGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range sortedKeys(s.groups) {
		g := s.groups[id]
		if g.HospitalID == hospitalID && g.Active && g.Name == name {
			c := *g
			c.Members = nil
			return &c, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListGroupMembers(ctx context.Context, groupID int64) ([]models.GroupMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, nil
	}
	members := append([]models.GroupMember(nil), g.Members...)
	sort.SliceStable(members, func(i, j int) bool { return members[i].Position < members[j].Position })
	return members, nil
}

func (s *MemoryStore) GetTreatments(ctx context.Context, ids []int64) (map[int64]*models.CatalogTreatment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[int64]*models.CatalogTreatment, len(ids))
	for _, id := range ids {
		if t, ok := s.treatments[id]; ok {
			c := *t
			result[id] = &c
		}
	}
	return result, nil
}

// Doctors

func (s *MemoryStore) ListActiveDoctors(ctx context.Context, hospitalID int64) ([]*models.DoctorProfile, error) {
	return s.listDoctors(func(d *models.DoctorProfile) bool {
		return d.Active && d.HospitalID == hospitalID
	}), nil
}

func (s *MemoryStore) ListActiveDoctorsAllHospitals(ctx context.Context) ([]*models.DoctorProfile, error) {
	return s.listDoctors(func(d *models.DoctorProfile) bool { return d.Active }), nil
}

func (s *MemoryStore) listDoctors(keep func(*models.DoctorProfile) bool) []*models.DoctorProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.DoctorProfile
	for _, id := range sortedKeys(s.doctors) {
		if d := s.doctors[id]; keep(d) {
			c := *d
			out = append(out, &c)
		}
	}
	return out
}

func (s *MemoryStore) FindActiveDoctorByName(ctx context.Context, hospitalID int64, name string) (*models.DoctorProfile, error) {
	matches := s.listDoctors(func(d *models.DoctorProfile) bool {
		return d.Active && d.HospitalID == hospitalID && d.Name == name
	})
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

func (s *MemoryStore) IncrementWorkload(ctx context.Context, doctorID int64, minutes int) (int, error) {
	var total int
	err := s.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		total, err = tx.IncrementWorkload(ctx, doctorID, minutes)
		return err
	})
	return total, err
}

func (s *MemoryStore) ResetWorkload(ctx context.Context, doctorID int64) (int, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.doctors[doctorID]
	if !ok {
		return 0, fmt.Errorf("reset doctor %d: %w", doctorID, ErrDoctorNotFound)
	}
	previous := d.TotalMinutes
	d.TotalMinutes = 0
	return previous, nil
}

// Orders

func (s *MemoryStore) HospitalExists(ctx context.Context, hospitalID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hospitals[hospitalID], nil
}

func (s *MemoryStore) CreateOrder(ctx context.Context, order *models.Order) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextOrderID++
	order.ID = s.nextOrderID
	order.Status = models.OrderQueued
	c := *order
	s.orders[order.ID] = &c
	return order.ID, nil
}

func (s *MemoryStore) DeleteOrder(ctx context.Context, orderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, orderID)
	delete(s.orderRecords, orderID)
	return nil
}

func (s *MemoryStore) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus, stage, reason *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setOrderStatus(orderID, status, stage, reason)
	return nil
}

// setOrderStatus upserts so that orders published by another process can
// still be tracked. Callers hold mu.
func (s *MemoryStore) setOrderStatus(orderID int64, status models.OrderStatus, stage, reason *string) {
	o, ok := s.orders[orderID]
	if !ok {
		o = &models.Order{ID: orderID}
		s.orders[orderID] = o
	}
	o.Status = status
	o.FailureStage = stage
	o.FailureReason = reason
}

func (s *MemoryStore) ListOrderTreatments(ctx context.Context, orderID int64) ([]models.OrderTreatment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.OrderTreatment(nil), s.orderRecords[orderID]...), nil
}

// Audit

func (s *MemoryStore) RecordAudit(ctx context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAuditID++
	c := *entry
	c.ID = s.nextAuditID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.audits = append(s.audits, c)
	return nil
}

// Transactions

// WithinTx buffers every write of fn and applies them together when fn
// returns nil. fn must only write through tx.
func (s *MemoryStore) WithinTx(ctx context.Context, fn TxFunc) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{store: s, workload: make(map[int64]int)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, total := range tx.workload {
		s.doctors[id].TotalMinutes = total
	}
	for _, rec := range tx.records {
		s.orderRecords[rec.OrderID] = append(s.orderRecords[rec.OrderID], rec)
	}
	for _, u := range tx.statuses {
		s.setOrderStatus(u.orderID, u.status, u.stage, u.reason)
	}
	return nil
}

type statusUpdate struct {
	orderID int64
	status  models.OrderStatus
	stage   *string
	reason  *string
}

type memTx struct {
	store    *MemoryStore
	workload map[int64]int
	records  []models.OrderTreatment
	statuses []statusUpdate
}

func (t *memTx) IncrementWorkload(ctx context.Context, doctorID int64, minutes int) (int, error) {
	current, ok := t.workload[doctorID]
	if !ok {
		t.store.mu.RLock()
		d, found := t.store.doctors[doctorID]
		if found {
			current = d.TotalMinutes
		}
		t.store.mu.RUnlock()
		if !found {
			return 0, fmt.Errorf("lock doctor %d: %w", doctorID, ErrDoctorNotFound)
		}
	}
	t.workload[doctorID] = current + minutes
	return current + minutes, nil
}

func (t *memTx) SaveOrderTreatments(ctx context.Context, records []models.OrderTreatment) error {
	t.records = append(t.records, records...)
	return nil
}

func (t *memTx) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus, stage, reason *string) error {
	t.statuses = append(t.statuses, statusUpdate{orderID: orderID, status: status, stage: stage, reason: reason})
	return nil
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
