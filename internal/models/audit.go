package models

import "time"

type AuditType string

const (
	AuditSlackNotification  AuditType = "slack_notification"
	AuditDoctorProfileReset AuditType = "doctor_profile_reset"
	AuditOrderFailed        AuditType = "order_failed"
)

type AuditLog struct {
	ID           int64     `json:"log_id" db:"log_id"`
	Type         AuditType `json:"log_type" db:"log_type"`
	HospitalID   int64     `json:"hospital_id" db:"hospital_id"`
	CreatedBy    *int64    `json:"created_by" db:"created_by"`
	OrderID      *int64    `json:"order_id" db:"order_id"`
	DoctorID     *int64    `json:"doctor_id" db:"doctor_id"`
	DoctorName   *string   `json:"doctor_name" db:"doctor_name"`
	TotalMinutes *int      `json:"total_minutes" db:"total_minutes"`
	Message      string    `json:"message" db:"message"`
	Success      bool      `json:"success" db:"success"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// DoctorWorkload is a read model for the workload board.
type DoctorWorkload struct {
	DoctorID     int64   `json:"doctor_id" db:"doctor_id"`
	Name         string  `json:"name" db:"name"`
	TotalMinutes int     `json:"total_minutes" db:"total_minutes"`
	Score        float64 `json:"score"`
	OnBreak      bool    `json:"on_break"`
}
