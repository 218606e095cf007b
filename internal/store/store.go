// Package store persists orders, the treatment catalog and doctor workloads.
package store

import (
	"context"

	"clinic-orders/internal/models"
)

// Tx is the unit of work that records an assigned order: the workload
// increment and the order's treatment records commit or roll back together.
type Tx interface {
	IncrementWorkload(ctx context.Context, doctorID int64, minutes int) (int, error)
	SaveOrderTreatments(ctx context.Context, records []models.OrderTreatment) error
	UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus, stage, reason *string) error
}

// TxFunc runs inside a transaction; returning an error rolls it back.
type TxFunc func(ctx context.Context, tx Tx) error
