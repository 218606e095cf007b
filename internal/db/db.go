// Package db holds the row types and hand-written queries of the order
// database, in the shape sqlc would generate them.
package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Treatment struct {
	ID              int64  `db:"treatment_id"`
	HospitalID      int64  `db:"hospital_id"`
	Name            string `db:"name"`
	IsActive        bool   `db:"is_active"`
	DurationMinutes int32  `db:"duration_minutes"`
}

type TreatmentGroup struct {
	ID         int64  `db:"group_id"`
	HospitalID int64  `db:"hospital_id"`
	GroupName  string `db:"group_name"`
	IsActive   bool   `db:"is_active"`
}

type TreatmentGroupItem struct {
	GroupID     int64 `db:"group_id"`
	TreatmentID int64 `db:"treatment_id"`
	Count       int32 `db:"count"`
	Position    int32 `db:"position"`
}

type DoctorProfile struct {
	UserID                int64          `db:"user_id"`
	HospitalID            int64          `db:"hospital_id"`
	Name                  string         `db:"name"`
	IsActive              bool           `db:"is_active"`
	TotalMinutes          int32          `db:"total_minutes"`
	BreakStart            sql.NullString `db:"break_start"`
	BreakEnd              sql.NullString `db:"break_end"`
	QualifiedTreatmentIDs sql.NullString `db:"qualified_treatment_ids"`
}

type OrderTreatment struct {
	OrderID          int64          `db:"order_id"`
	TreatmentID      int64          `db:"treatment_id"`
	Count            int32          `db:"count"`
	RoundInfo        sql.NullString `db:"round_info"`
	AreaNote         sql.NullString `db:"area_note"`
	EstimatedMinutes int32          `db:"estimated_minutes"`
	AssignedDoctorID sql.NullInt64  `db:"assigned_doctor_id"`
	AssignedAt       sql.NullTime   `db:"assigned_at"`
}

// Queries runs against either a *sqlx.DB or a *sqlx.Tx.
type Queries struct {
	db sqlx.ExtContext
}

func New(db sqlx.ExtContext) *Queries {
	return &Queries{db: db}
}

const doctorColumns = `user_id, hospital_id, name, is_active, total_minutes,
	break_start::text AS break_start, break_end::text AS break_end,
	qualified_treatment_ids::text AS qualified_treatment_ids`

func (q *Queries) GetActiveTreatmentByName(ctx context.Context, hospitalID int64, name string) (Treatment, error) {
	var t Treatment
	err := sqlx.GetContext(ctx, q.db, &t,
		`SELECT treatment_id, hospital_id, name, is_active, duration_minutes
		FROM hospital_treatments
		WHERE hospital_id = $1 AND is_active = TRUE AND name = $2
		ORDER BY treatment_id LIMIT 1`,
		hospitalID, name)
	return t, err
}

func (q *Queries) ListTreatmentsByIDs(ctx context.Context, ids []int64) ([]Treatment, error) {
	var items []Treatment
	err := sqlx.SelectContext(ctx, q.db, &items,
		`SELECT treatment_id, hospital_id, name, is_active, duration_minutes
		FROM hospital_treatments WHERE treatment_id = ANY($1)`,
		pq.Array(ids))
	return items, err
}

func (q *Queries) GetActiveGroupByName(ctx context.Context, hospitalID int64, name string) (TreatmentGroup, error) {
	var g TreatmentGroup
	err := sqlx.GetContext(ctx, q.db, &g,
		`SELECT group_id, hospital_id, group_name, is_active
		FROM treatment_groups
		WHERE hospital_id = $1 AND is_active = TRUE AND group_name = $2
		ORDER BY group_id LIMIT 1`,
		hospitalID, name)
	return g, err
}

func (q *Queries) ListGroupItems(ctx context.Context, groupID int64) ([]TreatmentGroupItem, error) {
	var items []TreatmentGroupItem
	err := sqlx.SelectContext(ctx, q.db, &items,
		`SELECT group_id, treatment_id, count, position
		FROM treatment_group_items WHERE group_id = $1 ORDER BY position, treatment_id`,
		groupID)
	return items, err
}

func (q *Queries) ListActiveDoctors(ctx context.Context, hospitalID int64) ([]DoctorProfile, error) {
	var items []DoctorProfile
	err := sqlx.SelectContext(ctx, q.db, &items,
		`SELECT `+doctorColumns+` FROM doctor_profiles
		WHERE hospital_id = $1 AND is_active = TRUE ORDER BY user_id`,
		hospitalID)
	return items, err
}

func (q *Queries) ListAllActiveDoctors(ctx context.Context) ([]DoctorProfile, error) {
	var items []DoctorProfile
	err := sqlx.SelectContext(ctx, q.db, &items,
		`SELECT `+doctorColumns+` FROM doctor_profiles WHERE is_active = TRUE ORDER BY user_id`)
	return items, err
}

func (q *Queries) GetActiveDoctorByName(ctx context.Context, hospitalID int64, name string) (DoctorProfile, error) {
	var d DoctorProfile
	err := sqlx.GetContext(ctx, q.db, &d,
		`SELECT `+doctorColumns+` FROM doctor_profiles
		WHERE hospital_id = $1 AND is_active = TRUE AND name = $2
		ORDER BY user_id LIMIT 1`,
		hospitalID, name)
	return d, err
}

// LockDoctorWorkload takes the row lock on a doctor's workload until the
// surrounding transaction ends.
func (q *Queries) LockDoctorWorkload(ctx context.Context, userID int64) (int32, error) {
	var total int32
	err := sqlx.GetContext(ctx, q.db, &total,
		`SELECT total_minutes FROM doctor_profiles WHERE user_id = $1 FOR UPDATE`, userID)
	return total, err
}

func (q *Queries) SetDoctorWorkload(ctx context.Context, userID int64, total int32) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE doctor_profiles SET total_minutes = $2, updated_at = now() WHERE user_id = $1`,
		userID, total)
	return err
}

func (q *Queries) CreateOrder(ctx context.Context, hospitalID int64, rawText string, createdBy int64, createdAt time.Time) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, q.db, &id,
		`INSERT INTO orders (hospital_id, raw_text, created_by, created_at, status)
		VALUES ($1, $2, $3, $4, 'queued') RETURNING order_id`,
		hospitalID, rawText, createdBy, createdAt)
	return id, err
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, orderID int64, status string, stage, reason sql.NullString) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE orders SET status = $2, failure_stage = $3, failure_reason = $4 WHERE order_id = $1`,
		orderID, status, stage, reason)
	return err
}

func (q *Queries) DeleteOrder(ctx context.Context, orderID int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM orders WHERE order_id = $1`, orderID)
	return err
}

func (q *Queries) HospitalExists(ctx context.Context, hospitalID int64) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, q.db, &exists,
		`SELECT EXISTS (SELECT 1 FROM hospitals WHERE hospital_id = $1)`, hospitalID)
	return exists, err
}

func (q *Queries) InsertOrderTreatment(ctx context.Context, arg OrderTreatment) error {
	_, err := sqlx.NamedExecContext(ctx, q.db,
		`INSERT INTO order_treatments
			(order_id, treatment_id, count, round_info, area_note, estimated_minutes, assigned_doctor_id, assigned_at)
		VALUES
			(:order_id, :treatment_id, :count, :round_info, :area_note, :estimated_minutes, :assigned_doctor_id, :assigned_at)`,
		arg)
	return err
}

func (q *Queries) ListOrderTreatments(ctx context.Context, orderID int64) ([]OrderTreatment, error) {
	var items []OrderTreatment
	err := sqlx.SelectContext(ctx, q.db, &items,
		`SELECT order_id, treatment_id, count, round_info, area_note, estimated_minutes, assigned_doctor_id, assigned_at
		FROM order_treatments WHERE order_id = $1 ORDER BY id`,
		orderID)
	return items, err
}

type SystemLog struct {
	LogType      string         `db:"log_type"`
	HospitalID   int64          `db:"hospital_id"`
	CreatedBy    sql.NullInt64  `db:"created_by"`
	OrderID      sql.NullInt64  `db:"order_id"`
	DoctorID     sql.NullInt64  `db:"doctor_id"`
	DoctorName   sql.NullString `db:"doctor_name"`
	TotalMinutes sql.NullInt32  `db:"total_minutes"`
	Message      string         `db:"message"`
	Success      bool           `db:"success"`
	CreatedAt    time.Time      `db:"created_at"`
}

func (q *Queries) InsertSystemLog(ctx context.Context, arg SystemLog) error {
	_, err := sqlx.NamedExecContext(ctx, q.db,
		`INSERT INTO system_logs
			(log_type, hospital_id, created_by, order_id, doctor_id, doctor_name, total_minutes, message, success, created_at)
		VALUES
			(:log_type, :hospital_id, :created_by, :order_id, :doctor_id, :doctor_name, :total_minutes, :message, :success, :created_at)`,
		arg)
	return err
}
