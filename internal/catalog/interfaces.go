package catalog

import (
	"context"

	"clinic-orders/internal/models"
)

// CatalogStore reads a hospital's treatment catalog. Find methods return
// (nil, nil) when nothing matches.
type CatalogStore interface {
	FindActiveTreatmentByName(ctx context.Context, hospitalID int64, name string) (*models.CatalogTreatment, error)
	FindActiveGroupByName(ctx context.Context, hospitalID int64, name string) (*models.TreatmentGroup, error)
	ListGroupMembers(ctx context.Context, groupID int64) ([]models.GroupMember, error)
	GetTreatments(ctx context.Context, ids []int64) (map[int64]*models.CatalogTreatment, error)
}
