// Package parser turns the free-text order envelope and its treatment clause
// into structured values.
package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"clinic-orders/internal/exceptions"
	"clinic-orders/internal/models"
)

// Each field runs up to the next '/'. The five-field template (named doctor)
// is tried before the four-field one.
var orderTemplates = []*regexp.Regexp{
	regexp.MustCompile(`^([^/]+)/([^/]+)/([^/]+)/([^/]+)/([^/]+)$`),
	regexp.MustCompile(`^([^/]+)/([^/]+)/([^/]+)/([^/]+)$`),
}

const minFieldLength = 2

// ParseOrder parses "name / chart / treatments / room [/ doctor]".
func ParseOrder(raw string) (*models.ParsedOrder, error) {
	fields := extractFields(strings.TrimSpace(raw))
	if fields == nil {
		return nil, exceptions.ErrTemplateMismatch()
	}

	order := &models.ParsedOrder{
		PatientName: fields[0],
		ChartNumber: fields[1],
		Treatment:   fields[2],
		Room:        fields[3],
	}
	if len(fields) == 5 {
		doctor := fields[4]
		order.DoctorName = &doctor
	}

	if err := validateOrder(order); err != nil {
		return nil, err
	}
	return order, nil
}

func extractFields(text string) []string {
	for _, tmpl := range orderTemplates {
		match := tmpl.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		fields := make([]string, 0, len(match)-1)
		for _, group := range match[1:] {
			fields = append(fields, strings.TrimSpace(group))
		}
		return fields
	}
	return nil
}

func validateOrder(o *models.ParsedOrder) error {
	if utf8.RuneCountInString(o.PatientName) < minFieldLength {
		return exceptions.ErrFieldValidation("patient_name", "patient name is too short")
	}
	if !isDigits(o.ChartNumber) {
		return exceptions.ErrFieldValidation("chart_number", "chart number must contain digits only")
	}
	if utf8.RuneCountInString(o.Treatment) < minFieldLength {
		return exceptions.ErrFieldValidation("treatment", "treatment clause is too short")
	}
	if utf8.RuneCountInString(o.Room) < minFieldLength {
		return exceptions.ErrFieldValidation("room", "room is too short")
	}
	if o.DoctorName != nil && utf8.RuneCountInString(*o.DoctorName) < minFieldLength {
		return exceptions.ErrFieldValidation("doctor_name", "doctor name is too short")
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
