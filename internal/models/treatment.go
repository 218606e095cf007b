package models

// TreatmentClauseItem is one item of a treatment clause, e.g. "BotoxA (1-3) 2x".
type TreatmentClauseItem struct {
	Raw   string  `json:"raw"`
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Round *string `json:"round_info"`
	Note  *string `json:"area_note"`
}

type CatalogTreatment struct {
	ID              int64  `json:"treatment_id"`
	HospitalID      int64  `json:"hospital_id"`
	Name            string `json:"name"`
	Active          bool   `json:"is_active"`
	DurationMinutes int    `json:"duration_minutes"`
}

type TreatmentGroup struct {
	ID         int64         `json:"group_id"`
	HospitalID int64         `json:"hospital_id"`
	Name       string        `json:"group_name"`
	Active     bool          `json:"is_active"`
	Members    []GroupMember `json:"members"`
}

type GroupMember struct {
	TreatmentID int64 `json:"treatment_id"`
	Multiplier  int   `json:"count"`
	Position    int   `json:"position"`
}

// ResolvedTreatment is a catalog treatment instance ready to be assigned and billed.
type ResolvedTreatment struct {
	TreatmentID      int64   `json:"treatment_id"`
	Count            int     `json:"count"`
	Round            *string `json:"round_info"`
	Note             *string `json:"area_note"`
	EstimatedMinutes int     `json:"estimated_minutes"`
	SourceItem       string  `json:"source_item"`
}

// TotalMinutes sums the estimated duration of a batch.
func TotalMinutes(treatments []ResolvedTreatment) int {
	total := 0
	for _, t := range treatments {
		total += t.EstimatedMinutes
	}
	return total
}

// DistinctTreatmentIDs returns the ids of a batch in first-seen order.
func DistinctTreatmentIDs(treatments []ResolvedTreatment) []int64 {
	seen := make(map[int64]bool, len(treatments))
	ids := make([]int64, 0, len(treatments))
	for _, t := range treatments {
		if seen[t.TreatmentID] {
			continue
		}
		seen[t.TreatmentID] = true
		ids = append(ids, t.TreatmentID)
	}
	return ids
}
