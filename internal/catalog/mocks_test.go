package catalog

import (
	"context"

	"clinic-orders/internal/models"
)

type MockCatalogStore struct {
	FindActiveTreatmentByNameFunc func(ctx context.Context, hospitalID int64, name string) (*models.CatalogTreatment, error)
	FindActiveGroupByNameFunc     func(ctx context.Context, hospitalID int64, name string) (*models.TreatmentGroup, error)
	ListGroupMembersFunc          func(ctx context.Context, groupID int64) ([]models.GroupMember, error)
	GetTreatmentsFunc             func(ctx context.Context, ids []int64) (map[int64]*models.CatalogTreatment, error)
}

func (m *MockCatalogStore) FindActiveTreatmentByName(ctx context.Context, hospitalID int64, name string) (*models.CatalogTreatment, error) {
	return m.FindActiveTreatmentByNameFunc(ctx, hospitalID, name)
}

func (m *MockCatalogStore) FindActiveGroupByName(ctx context.Context, hospitalID int64, name string) (*models.TreatmentGroup, error) {
	return m.FindActiveGroupByNameFunc(ctx, hospitalID, name)
}

func (m *MockCatalogStore) ListGroupMembers(ctx context.Context, groupID int64) ([]models.GroupMember, error) {
	return m.ListGroupMembersFunc(ctx, groupID)
}

func (m *MockCatalogStore) GetTreatments(ctx context.Context, ids []int64) (map[int64]*models.CatalogTreatment, error) {
	return m.GetTreatmentsFunc(ctx, ids)
}

// newCatalogMock serves one hospital's catalog from maps.
func newCatalogMock(treatments []*models.CatalogTreatment, groups []*models.TreatmentGroup) *MockCatalogStore {
	byID := make(map[int64]*models.CatalogTreatment)
	for _, t := range treatments {
		byID[t.ID] = t
	}

	return &MockCatalogStore{
		FindActiveTreatmentByNameFunc: func(ctx context.Context, hospitalID int64, name string) (*models.CatalogTreatment, error) {
			for _, t := range treatments {
				if t.HospitalID == hospitalID && t.Active && t.Name == name {
					return t, nil
				}
			}
			return nil, nil
		},
		FindActiveGroupByNameFunc: func(ctx context.Context, hospitalID int64, name string) (*models.TreatmentGroup, error) {
			for _, g := range groups {
				if g.HospitalID == hospitalID && g.Active && g.Name == name {
					return g, nil
				}
			}
			return nil, nil
		},
		ListGroupMembersFunc: func(ctx context.Context, groupID int64) ([]models.GroupMember, error) {
			for _, g := range groups {
				if g.ID == groupID {
					return append([]models.GroupMember(nil), g.Members...), nil
				}
			}
			return nil, nil
		},
		GetTreatmentsFunc: func(ctx context.Context, ids []int64) (map[int64]*models.CatalogTreatment, error) {
			result := make(map[int64]*models.CatalogTreatment)
			for _, id := range ids {
				if t, ok := byID[id]; ok {
					result[id] = t
				}
			}
			return result, nil
		},
	}
}
