package parser

import (
	"regexp"
	"strconv"
	"strings"

	"clinic-orders/internal/models"
)

var (
	roundPattern = regexp.MustCompile(`\(\s*(\d+-\d+)\s*\)`)
	notePattern  = regexp.MustCompile(`\(([^()]*)\)\s*$`)
	// Count suffix: "2x", "BotoxA2x", "2 X" or "2회".
	countPattern = regexp.MustCompile(`(\d+)\s*(?:[xX]|회)$`)
)

// ParseClause splits a treatment clause on '+' and ',' and parses every item.
func ParseClause(clause string) []models.TreatmentClauseItem {
	fragments := strings.FieldsFunc(clause, func(r rune) bool {
		return r == '+' || r == ','
	})

	items := make([]models.TreatmentClauseItem, 0, len(fragments))
	for _, fragment := range fragments {
		fragment = strings.TrimSpace(fragment)
		if fragment == "" {
			continue
		}
		items = append(items, StripMarkers(fragment))
	}
	return items
}

// StripMarkers extracts the round, note and count markers from one item, in
// that order, each at most once. Round markers go first because they are
// parenthesized too.
func StripMarkers(item string) models.TreatmentClauseItem {
	parsed := models.TreatmentClauseItem{Raw: item, Count: 1}
	text := strings.TrimSpace(item)

	if loc := roundPattern.FindStringSubmatchIndex(text); loc != nil {
		round := text[loc[2]:loc[3]]
		parsed.Round = &round
		text = strings.TrimSpace(text[:loc[0]] + " " + text[loc[1]:])
	}

	if loc := notePattern.FindStringSubmatchIndex(text); loc != nil {
		note := strings.TrimSpace(text[loc[2]:loc[3]])
		parsed.Note = &note
		text = strings.TrimSpace(text[:loc[0]])
	}

	if loc := countPattern.FindStringSubmatchIndex(text); loc != nil {
		if n, err := strconv.Atoi(text[loc[2]:loc[3]]); err == nil && n >= 1 {
			parsed.Count = n
			text = strings.TrimSpace(text[:loc[0]])
		}
	}

	parsed.Name = collapseSpaces(text)
	return parsed
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
