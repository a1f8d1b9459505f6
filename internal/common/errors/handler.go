// internal/common/errors/handler.go
package errors

import (
	"errors"
	"time"
)

// ErrorHandler normalizes job failures into structured records and logs them.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleJobError normalizes err, logs it with job context, and returns
// the failure record the queue should persist against the job.
func (h *ErrorHandler) HandleJobError(jobID, jobType string, attempts int, err error) *JobError {
	record := JobErrorFrom(err, attempts)
	h.logError(jobID, jobType, record)
	return record
}

// JobErrorFrom normalizes any error into a job failure record without
// logging. Plain errors become retryable INTERNAL_ERROR records.
func JobErrorFrom(err error, attempts int) *JobError {
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		record := *jobErr
		record.Attempts = attempts
		return &record
	}
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return FromStandardError(stdErr, attempts)
	}
	return FromStandardError(&StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}, attempts)
}

func (h *ErrorHandler) logError(jobID, jobType string, record *JobError) {
	h.logger.Error("Job failed", map[string]interface{}{
		"jobId":     jobID,
		"jobType":   jobType,
		"errorCode": record.Code,
		"message":   record.Message,
		"details":   record.Details,
		"retryable": record.Retryable,
		"attempts":  record.Attempts,
	})
}
