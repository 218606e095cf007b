package models

import "time"

type AssignmentMode string

const (
	ModeAutomatic AssignmentMode = "automatic"
	ModeSpecified AssignmentMode = "specified"
)

type OrderStatus string

const (
	OrderQueued   OrderStatus = "queued"
	OrderAssigned OrderStatus = "assigned"
	OrderFailed   OrderStatus = "failed"
)

// RawOrder is one inbound order exactly as it was submitted.
type RawOrder struct {
	OrderID    int64     `json:"order_id"`
	HospitalID int64     `json:"hospital_id"`
	RawText    string    `json:"raw_text"`
	CreatedBy  int64     `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

type ParsedOrder struct {
	PatientName string  `json:"patient_name"`
	ChartNumber string  `json:"chart_number"`
	Treatment   string  `json:"treatment"`
	Room        string  `json:"room"`
	DoctorName  *string `json:"doctor_name"`
}

func (p *ParsedOrder) Mode() AssignmentMode {
	if p.DoctorName != nil {
		return ModeSpecified
	}
	return ModeAutomatic
}

type Order struct {
	ID            int64       `json:"order_id" db:"order_id"`
	HospitalID    int64       `json:"hospital_id" db:"hospital_id"`
	RawText       string      `json:"raw_text" db:"raw_text"`
	CreatedBy     int64       `json:"created_by" db:"created_by"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	Status        OrderStatus `json:"status" db:"status"`
	FailureStage  *string     `json:"failure_stage" db:"failure_stage"`
	FailureReason *string     `json:"failure_reason" db:"failure_reason"`
}
