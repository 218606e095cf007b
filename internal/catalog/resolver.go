// Package catalog maps parsed clause items onto a hospital's treatment catalog.
package catalog

import (
	"context"
	"fmt"
	"sort"

	"clinic-orders/internal/exceptions"
	"clinic-orders/internal/models"

	"go.uber.org/zap"
)

type Resolver struct {
	store CatalogStore
	log   *zap.Logger
}

func NewResolver(store CatalogStore, log *zap.Logger) *Resolver {
	return &Resolver{store: store, log: log}
}

// Result separates the treatments that resolved from the item names that
// matched neither a treatment nor a package.
type Result struct {
	Resolved  []models.ResolvedTreatment
	Unmatched []string
}

func (r *Result) Empty() bool {
	return len(r.Resolved) == 0
}

// Resolve maps every item, in order. An exact treatment name wins over a
// package of the same name; unmatched items are reported, not resolved. A
// package with no active member counts as unmatched.
func (r *Resolver) Resolve(ctx context.Context, hospitalID int64, items []models.TreatmentClauseItem) (*Result, error) {
	result := &Result{}

	for _, item := range items {
		treatment, err := r.store.FindActiveTreatmentByName(ctx, hospitalID, item.Name)
		if err != nil {
			return nil, fmt.Errorf("find treatment %q: %w", item.Name, err)
		}
		if treatment != nil {
			result.Resolved = append(result.Resolved, models.ResolvedTreatment{
				TreatmentID:      treatment.ID,
				Count:            item.Count,
				Round:            item.Round,
				Note:             item.Note,
				EstimatedMinutes: treatment.DurationMinutes,
				SourceItem:       item.Name,
			})
			continue
		}

		expanded, ok, err := r.expandGroup(ctx, hospitalID, item)
		if err != nil {
			return nil, err
		}
		if !ok || len(expanded) == 0 {
			result.Unmatched = append(result.Unmatched, item.Name)
			continue
		}
		result.Resolved = append(result.Resolved, expanded...)
	}

	if len(result.Unmatched) > 0 {
		r.log.Warn("catalog items not matched",
			zap.Int64("hospital_id", hospitalID),
			zap.Strings("unmatched", result.Unmatched),
			zap.Int("resolved", len(result.Resolved)),
		)
	}
	return result, nil
}

// ResolveStrict is Resolve that fails with MappingEmpty when nothing resolved.
func (r *Resolver) ResolveStrict(ctx context.Context, hospitalID int64, items []models.TreatmentClauseItem) (*Result, error) {
	result, err := r.Resolve(ctx, hospitalID, items)
	if err != nil {
		return nil, err
	}
	if result.Empty() {
		return nil, exceptions.ErrMappingEmpty(result.Unmatched)
	}
	return result, nil
}

func (r *Resolver) expandGroup(ctx context.Context, hospitalID int64, item models.TreatmentClauseItem) ([]models.ResolvedTreatment, bool, error) {
	group, err := r.store.FindActiveGroupByName(ctx, hospitalID, item.Name)
	if err != nil {
		return nil, false, fmt.Errorf("find group %q: %w", item.Name, err)
	}
	if group == nil {
		return nil, false, nil
	}

	members, err := r.store.ListGroupMembers(ctx, group.ID)
	if err != nil {
		return nil, false, fmt.Errorf("list members of group %d: %w", group.ID, err)
	}
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Position < members[j].Position
	})

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.TreatmentID)
	}
	treatments, err := r.store.GetTreatments(ctx, ids)
	if err != nil {
		return nil, false, fmt.Errorf("load members of group %d: %w", group.ID, err)
	}

	var resolved []models.ResolvedTreatment
	for _, m := range members {
		t, ok := treatments[m.TreatmentID]
		if !ok || !t.Active {
			r.log.Warn("group member is not an active treatment",
				zap.Int64("group_id", group.ID),
				zap.Int64("treatment_id", m.TreatmentID),
			)
			continue
		}
		resolved = append(resolved, models.ResolvedTreatment{
			TreatmentID:      m.TreatmentID,
			Count:            item.Count * m.Multiplier,
			Round:            item.Round,
			Note:             item.Note,
			EstimatedMinutes: t.DurationMinutes,
			SourceItem:       item.Name,
		})
	}
	return resolved, true, nil
}
