package parser

import (
	"regexp"
	"strconv"
	"strings"

	"clinic-orders/internal/models"
)

var (
	legacyCountPattern = regexp.MustCompile(`(\d+)\s*회`)
	legacyRoundPattern = regexp.MustCompile(`(\d+-\d+)`)
	legacyNotePattern  = regexp.MustCompile(`\((.*?)\)`)
)

// ParseLegacyClause parses the older colon-delimited clause format, e.g.
// "보톡스 5u : 1회 : 5-1 : (이마 주의) + 울쎄라 300샷 : 1회". Components after
// the name may appear in any order. Callers pick this format explicitly; it is
// never tried as a fallback of ParseClause.
func ParseLegacyClause(clause string) []models.TreatmentClauseItem {
	var items []models.TreatmentClauseItem
	for _, fragment := range strings.Split(clause, "+") {
		fragment = strings.TrimSpace(fragment)
		if fragment == "" {
			continue
		}
		items = append(items, parseLegacyItem(fragment))
	}
	return items
}

func parseLegacyItem(text string) models.TreatmentClauseItem {
	item := models.TreatmentClauseItem{Raw: text, Count: 1}
	raw := text

	var notes []string
	if m := legacyNotePattern.FindStringSubmatch(raw); m != nil {
		notes = append(notes, m[1])
		raw = strings.TrimSpace(legacyNotePattern.ReplaceAllString(raw, ""))
	}

	var parts []string
	for _, p := range strings.Split(raw, ":") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		item.Name = parts[0]
	}

	for _, part := range parts[min(1, len(parts)):] {
		if m := legacyCountPattern.FindStringSubmatch(part); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				item.Count = n
			}
			continue
		}
		if m := legacyRoundPattern.FindStringSubmatch(part); m != nil {
			round := m[1]
			item.Round = &round
			continue
		}
		notes = append(notes, part)
	}

	if len(notes) > 0 {
		note := strings.Join(notes, " ")
		item.Note = &note
	}
	return item
}
