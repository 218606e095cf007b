package exceptions

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	TemplateMismatch            Kind = "TEMPLATE_MISMATCH"
	FieldValidation             Kind = "FIELD_VALIDATION"
	MappingEmpty                Kind = "MAPPING_EMPTY"
	NoActiveDoctors             Kind = "NO_ACTIVE_DOCTORS"
	NoQualifiedDoctorForBatch   Kind = "NO_QUALIFIED_DOCTOR_FOR_BATCH"
	SpecifiedDoctorNotFound     Kind = "SPECIFIED_DOCTOR_NOT_FOUND"
	SpecifiedDoctorOnBreak      Kind = "SPECIFIED_DOCTOR_ON_BREAK"
	SpecifiedDoctorNotQualified Kind = "SPECIFIED_DOCTOR_NOT_QUALIFIED"
	PersistenceUpdateFailure    Kind = "PERSISTENCE_UPDATE_FAILURE"
	QueuePublishFailure         Kind = "QUEUE_PUBLISH_FAILURE"
	HospitalNotFound            Kind = "HOSPITAL_NOT_FOUND"
	InvalidMessage              Kind = "INVALID_MESSAGE"
	Unknown                     Kind = "UNKNOWN_ERROR"
)

// Error is a classified order-processing failure. Message is safe to show to
// the submitter; Err carries the underlying cause, if any.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind) + ": " + e.Message
	if e.Field != "" {
		msg += " (field " + e.Field + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case TemplateMismatch, FieldValidation, InvalidMessage:
		return http.StatusBadRequest
	case MappingEmpty, HospitalNotFound:
		return http.StatusNotFound
	case NoActiveDoctors, NoQualifiedDoctorForBatch, QueuePublishFailure:
		return http.StatusServiceUnavailable
	case SpecifiedDoctorNotFound, SpecifiedDoctorOnBreak, SpecifiedDoctorNotQualified:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func Suggestion(kind Kind) string {
	switch kind {
	case TemplateMismatch:
		return "Use the format: patient name / chart number / treatments / room [/ doctor]"
	case FieldValidation:
		return "Check the highlighted field and submit the order again"
	case MappingEmpty:
		return "Use treatment or package names from the hospital catalog"
	case NoActiveDoctors, NoQualifiedDoctorForBatch:
		return "No doctor can take this order right now, try again later"
	case SpecifiedDoctorNotFound:
		return "Check the doctor's name or leave it out for automatic assignment"
	case SpecifiedDoctorOnBreak, SpecifiedDoctorNotQualified:
		return "The named doctor is on break or cannot perform every treatment in the order"
	case QueuePublishFailure:
		return "The order queue is unavailable, try again shortly"
	case HospitalNotFound:
		return "Check the hospital identifier"
	default:
		return "Something went wrong, try again shortly"
	}
}
