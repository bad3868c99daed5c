package domain

import "errors"

var (
	// ErrInvalidInput is returned when a submission is missing required fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrResultNotFound is returned when no PaperResult exists for (user, paper).
	ErrResultNotFound = errors.New("paper result not found")
	// ErrAggregateNotFound is returned when a paper has no aggregate yet.
	ErrAggregateNotFound = errors.New("paper aggregate not found")
	// ErrTimeSeriesNotFound is returned when no time series exists for (user, paper).
	ErrTimeSeriesNotFound = errors.New("time series not found")
	// ErrDuplicateSubmission is returned when a frozen result already exists.
	ErrDuplicateSubmission = errors.New("duplicate submission")
	// ErrConflict indicates a concurrent aggregate update won; callers retry.
	ErrConflict = errors.New("aggregate update conflict")
)
