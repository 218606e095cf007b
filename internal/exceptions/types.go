package exceptions

import "fmt"

var (
	ErrTemplateMismatch = func() *Error {
		return New(TemplateMismatch, "order text does not match any order template")
	}
	ErrFieldValidation = func(field, reason string) *Error {
		return &Error{Kind: FieldValidation, Message: reason, Field: field}
	}
	ErrMappingEmpty = func(unmatched []string) *Error {
		return Newf(MappingEmpty, "no treatment in the order matched the catalog (unmatched: %v)", unmatched)
	}
	ErrNoActiveDoctors = func(hospitalID int64) *Error {
		return Newf(NoActiveDoctors, "hospital %d has no active doctors", hospitalID)
	}
	ErrNoQualifiedDoctorForBatch = func(treatmentIDs []int64) *Error {
		return Newf(NoQualifiedDoctorForBatch, "no available doctor is qualified for all of treatments %v", treatmentIDs)
	}
	ErrSpecifiedDoctorNotFound = func(name string) *Error {
		return Newf(SpecifiedDoctorNotFound, "doctor %q is not an active doctor of this hospital", name)
	}
	ErrSpecifiedDoctorOnBreak = func(name string) *Error {
		return Newf(SpecifiedDoctorOnBreak, "doctor %q is currently on break", name)
	}
	ErrSpecifiedDoctorNotQualified = func(name string, missing []int64) *Error {
		return Newf(SpecifiedDoctorNotQualified, "doctor %q is not qualified for treatments %v", name, missing)
	}
	ErrPersistenceUpdateFailure = func(err error, doctorID int64) *Error {
		return Wrap(err, PersistenceUpdateFailure, fmt.Sprintf("failed to update workload of doctor %d", doctorID))
	}
	ErrQueuePublishFailure = func(err error) *Error {
		return Wrap(err, QueuePublishFailure, "failed to publish order to the queue")
	}
	ErrHospitalNotFound = func(hospitalID int64) *Error {
		return Newf(HospitalNotFound, "hospital %d not found", hospitalID)
	}
	ErrInvalidMessage = func(err error) *Error {
		return Wrap(err, InvalidMessage, "order message could not be decoded")
	}
)
