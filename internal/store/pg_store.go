package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"clinic-orders/internal/db"
	"clinic-orders/internal/models"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ErrWorkloadOverflow is returned when an increment would push a doctor's
// total past what the total_minutes column holds.
var ErrWorkloadOverflow = errors.New("workload total out of range")

type PostgresStore struct {
	q   *db.Queries
	db  *sqlx.DB
	log *zap.Logger
}

func NewPostgresStore(conn *sqlx.DB, log *zap.Logger) *PostgresStore {
	return &PostgresStore{q: db.New(conn), db: conn, log: log}
}

// Catalog

func (s *PostgresStore) FindActiveTreatmentByName(ctx context.Context, hospitalID int64, name string) (*models.CatalogTreatment, error) {
	row, err := s.q.GetActiveTreatmentByName(ctx, hospitalID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toCatalogTreatment(row), nil
}

func (s *PostgresStore) FindActiveGroupByName(ctx context.Context, hospitalID int64, name string) (*models.TreatmentGroup, error) {
	row, err := s.q.GetActiveGroupByName(ctx, hospitalID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.TreatmentGroup{
		ID:         row.ID,
		HospitalID: row.HospitalID,
		Name:       row.GroupName,
		Active:     row.IsActive,
	}, nil
}

func (s *PostgresStore) ListGroupMembers(ctx context.Context, groupID int64) ([]models.GroupMember, error) {
	rows, err := s.q.ListGroupItems(ctx, groupID)
	if err != nil {
		return nil, err
	}
	members := make([]models.GroupMember, 0, len(rows))
	for _, r := range rows {
		members = append(members, models.GroupMember{
			TreatmentID: r.TreatmentID,
			Multiplier:  int(r.Count),
			Position:    int(r.Position),
		})
	}
	return members, nil
}

func (s *PostgresStore) GetTreatments(ctx context.Context, ids []int64) (map[int64]*models.CatalogTreatment, error) {
	result := make(map[int64]*models.CatalogTreatment, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := s.q.ListTreatmentsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		result[r.ID] = toCatalogTreatment(r)
	}
	return result, nil
}

func toCatalogTreatment(r db.Treatment) *models.CatalogTreatment {
	return &models.CatalogTreatment{
		ID:              r.ID,
		HospitalID:      r.HospitalID,
		Name:            r.Name,
		Active:          r.IsActive,
		DurationMinutes: int(r.DurationMinutes),
	}
}

// Doctors

func (s *PostgresStore) ListActiveDoctors(ctx context.Context, hospitalID int64) ([]*models.DoctorProfile, error) {
	rows, err := s.q.ListActiveDoctors(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	return s.toDoctors(rows), nil
}

func (s *PostgresStore) ListActiveDoctorsAllHospitals(ctx context.Context) ([]*models.DoctorProfile, error) {
	rows, err := s.q.ListAllActiveDoctors(ctx)
	if err != nil {
		return nil, err
	}
	return s.toDoctors(rows), nil
}

func (s *PostgresStore) FindActiveDoctorByName(ctx context.Context, hospitalID int64, name string) (*models.DoctorProfile, error) {
	row, err := s.q.GetActiveDoctorByName(ctx, hospitalID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.toDoctor(row), nil
}

// IncrementWorkload runs the locked read-modify-write in its own transaction.
// Inside WithinTx the transaction-scoped variant is used instead.
func (s *PostgresStore) IncrementWorkload(ctx context.Context, doctorID int64, minutes int) (int, error) {
	var total int
	err := s.inTx(ctx, func(q *db.Queries) error {
		var err error
		total, err = incrementWorkload(ctx, q, doctorID, minutes)
		return err
	})
	return total, err
}

func (s *PostgresStore) ResetWorkload(ctx context.Context, doctorID int64) (int, error) {
	var previous int
	err := s.inTx(ctx, func(q *db.Queries) error {
		current, err := q.LockDoctorWorkload(ctx, doctorID)
		if err != nil {
			return fmt.Errorf("lock doctor %d: %w", doctorID, err)
		}
		previous = int(current)
		return q.SetDoctorWorkload(ctx, doctorID, 0)
	})
	return previous, err
}

func incrementWorkload(ctx context.Context, q *db.Queries, doctorID int64, minutes int) (int, error) {
	current, err := q.LockDoctorWorkload(ctx, doctorID)
	if err != nil {
		return 0, fmt.Errorf("lock doctor %d: %w", doctorID, err)
	}
	total := int64(current) + int64(minutes)
	if total > math.MaxInt32 || total < 0 {
		return 0, fmt.Errorf("doctor %d: %w (%d + %d)", doctorID, ErrWorkloadOverflow, current, minutes)
	}
	if err := q.SetDoctorWorkload(ctx, doctorID, int32(total)); err != nil {
		return 0, fmt.Errorf("update doctor %d: %w", doctorID, err)
	}
	return int(total), nil
}

func (s *PostgresStore) toDoctors(rows []db.DoctorProfile) []*models.DoctorProfile {
	doctors := make([]*models.DoctorProfile, 0, len(rows))
	for _, r := range rows {
		doctors = append(doctors, s.toDoctor(r))
	}
	return doctors
}

func (s *PostgresStore) toDoctor(r db.DoctorProfile) *models.DoctorProfile {
	d := &models.DoctorProfile{
		ID:           r.UserID,
		HospitalID:   r.HospitalID,
		Name:         r.Name,
		Active:       r.IsActive,
		TotalMinutes: int(r.TotalMinutes),
	}

	quals, err := DecodeQualifications(r.QualifiedTreatmentIDs.String)
	if err != nil {
		s.log.Warn("unreadable qualifications, treating as none",
			zap.Int64("doctor_id", r.UserID),
			zap.Error(err),
		)
	}
	d.Qualifications = quals

	if r.BreakStart.Valid && r.BreakEnd.Valid {
		start, errStart := models.ParseTimeOfDay(r.BreakStart.String)
		end, errEnd := models.ParseTimeOfDay(r.BreakEnd.String)
		if errStart == nil && errEnd == nil {
			d.Break = &models.BreakWindow{Start: start, End: end}
		} else {
			s.log.Warn("unreadable break window, ignoring",
				zap.Int64("doctor_id", r.UserID),
				zap.String("break_start", r.BreakStart.String),
				zap.String("break_end", r.BreakEnd.String),
			)
		}
	}
	return d
}

// DecodeQualifications reads the JSON array of treatment ids stored on a
// doctor. Anything unreadable yields an empty set and the decode error.
func DecodeQualifications(raw string) (models.TreatmentSet, error) {
	if raw == "" || raw == "null" {
		return models.NewTreatmentSet(), nil
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return models.NewTreatmentSet(), fmt.Errorf("decode qualified treatment ids: %w", err)
	}
	return models.NewTreatmentSet(ids...), nil
}

// EncodeQualifications is the inverse of DecodeQualifications.
func EncodeQualifications(set models.TreatmentSet) (string, error) {
	b, err := json.Marshal(set.IDs())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Orders

func (s *PostgresStore) HospitalExists(ctx context.Context, hospitalID int64) (bool, error) {
	return s.q.HospitalExists(ctx, hospitalID)
}

func (s *PostgresStore) CreateOrder(ctx context.Context, order *models.Order) (int64, error) {
	id, err := s.q.CreateOrder(ctx, order.HospitalID, order.RawText, order.CreatedBy, order.CreatedAt)
	if err != nil {
		return 0, err
	}
	order.ID = id
	order.Status = models.OrderQueued
	return id, nil
}

func (s *PostgresStore) DeleteOrder(ctx context.Context, orderID int64) error {
	return s.q.DeleteOrder(ctx, orderID)
}

func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus, stage, reason *string) error {
	return s.q.UpdateOrderStatus(ctx, orderID, string(status), nullString(stage), nullString(reason))
}

func (s *PostgresStore) ListOrderTreatments(ctx context.Context, orderID int64) ([]models.OrderTreatment, error) {
	rows, err := s.q.ListOrderTreatments(ctx, orderID)
	if err != nil {
		return nil, err
	}
	records := make([]models.OrderTreatment, 0, len(rows))
	for _, r := range rows {
		rec := models.OrderTreatment{
			OrderID:          r.OrderID,
			TreatmentID:      r.TreatmentID,
			Count:            int(r.Count),
			EstimatedMinutes: int(r.EstimatedMinutes),
		}
		if r.RoundInfo.Valid {
			rec.RoundInfo = &r.RoundInfo.String
		}
		if r.AreaNote.Valid {
			rec.AreaNote = &r.AreaNote.String
		}
		if r.AssignedDoctorID.Valid {
			rec.AssignedDoctorID = &r.AssignedDoctorID.Int64
		}
		if r.AssignedAt.Valid {
			rec.AssignedAt = &r.AssignedAt.Time
		}
		records = append(records, rec)
	}
	return records, nil
}

// Audit

func (s *PostgresStore) RecordAudit(ctx context.Context, entry *models.AuditLog) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	row := db.SystemLog{
		LogType:    string(entry.Type),
		HospitalID: entry.HospitalID,
		CreatedBy:  nullInt64(entry.CreatedBy),
		OrderID:    nullInt64(entry.OrderID),
		DoctorID:   nullInt64(entry.DoctorID),
		DoctorName: nullString(entry.DoctorName),
		Message:    entry.Message,
		Success:    entry.Success,
		CreatedAt:  createdAt,
	}
	if entry.TotalMinutes != nil {
		row.TotalMinutes = sql.NullInt32{Int32: int32(*entry.TotalMinutes), Valid: true}
	}
	return s.q.InsertSystemLog(ctx, row)
}

// Transactions

func (s *PostgresStore) WithinTx(ctx context.Context, fn TxFunc) error {
	return s.inTx(ctx, func(q *db.Queries) error {
		return fn(ctx, &pgTx{q: q})
	})
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(q *db.Queries) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.Error("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	if err = fn(db.New(tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	q *db.Queries
}

func (t *pgTx) IncrementWorkload(ctx context.Context, doctorID int64, minutes int) (int, error) {
	return incrementWorkload(ctx, t.q, doctorID, minutes)
}

func (t *pgTx) SaveOrderTreatments(ctx context.Context, records []models.OrderTreatment) error {
	for _, r := range records {
		row := db.OrderTreatment{
			OrderID:          r.OrderID,
			TreatmentID:      r.TreatmentID,
			Count:            int32(r.Count),
			RoundInfo:        nullString(r.RoundInfo),
			AreaNote:         nullString(r.AreaNote),
			EstimatedMinutes: int32(r.EstimatedMinutes),
			AssignedDoctorID: nullInt64(r.AssignedDoctorID),
		}
		if r.AssignedAt != nil {
			row.AssignedAt = sql.NullTime{Time: *r.AssignedAt, Valid: true}
		}
		if err := t.q.InsertOrderTreatment(ctx, row); err != nil {
			return fmt.Errorf("insert treatment %d of order %d: %w", r.TreatmentID, r.OrderID, err)
		}
	}
	return nil
}

func (t *pgTx) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus, stage, reason *string) error {
	return t.q.UpdateOrderStatus(ctx, orderID, string(status), nullString(stage), nullString(reason))
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
