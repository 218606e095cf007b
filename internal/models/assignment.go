package models

import "time"

type AssignmentDecision struct {
	TreatmentID int64   `json:"treatment_id"`
	DoctorID    *int64  `json:"assigned_doctor_id"`
	DoctorName  *string `json:"assigned_doctor_name"`
	Success     bool    `json:"assignment_success"`
	Reason      string  `json:"reason"`
	Score       float64 `json:"score"`
}

// OrderTreatment is the persisted resolved-treatment record of an order.
type OrderTreatment struct {
	ID               int64      `json:"id" db:"id"`
	OrderID          int64      `json:"order_id" db:"order_id"`
	TreatmentID      int64      `json:"treatment_id" db:"treatment_id"`
	Count            int        `json:"count" db:"count"`
	RoundInfo        *string    `json:"round_info" db:"round_info"`
	AreaNote         *string    `json:"area_note" db:"area_note"`
	EstimatedMinutes int        `json:"estimated_minutes" db:"estimated_minutes"`
	AssignedDoctorID *int64     `json:"assigned_doctor_id" db:"assigned_doctor_id"`
	AssignedAt       *time.Time `json:"assigned_at" db:"assigned_at"`
}

// NewOrderTreatments pairs each resolved treatment with its decision.
func NewOrderTreatments(orderID int64, treatments []ResolvedTreatment, decisions []AssignmentDecision, assignedAt time.Time) []OrderTreatment {
	records := make([]OrderTreatment, 0, len(treatments))
	for i, t := range treatments {
		rec := OrderTreatment{
			OrderID:          orderID,
			TreatmentID:      t.TreatmentID,
			Count:            t.Count,
			RoundInfo:        t.Round,
			AreaNote:         t.Note,
			EstimatedMinutes: t.EstimatedMinutes,
		}
		if i < len(decisions) && decisions[i].Success {
			at := assignedAt
			rec.AssignedDoctorID = decisions[i].DoctorID
			rec.AssignedAt = &at
		}
		records = append(records, rec)
	}
	return records
}
