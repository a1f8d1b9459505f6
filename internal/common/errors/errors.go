// Package errors provides standardized error handling for the asset pipeline workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed    ErrorCode = "VALIDATION_FAILED"
	ErrCodeJobPayloadInvalid   ErrorCode = "JOB_PAYLOAD_INVALID"
	ErrCodeUnknownEntityTable  ErrorCode = "UNKNOWN_ENTITY_TABLE"
	ErrCodeEntityNotFound      ErrorCode = "ENTITY_NOT_FOUND"
	ErrCodeNoDataSources       ErrorCode = "NO_DATA_SOURCES"
	ErrCodePricingInputInvalid ErrorCode = "PRICING_INPUT_INVALID"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeBulkInsertFailed         ErrorCode = "BULK_INSERT_FAILED"

	ErrCodeExternalAPIFailed       ErrorCode = "EXTERNAL_API_FAILED"
	ErrCodeExternalAPITimeout      ErrorCode = "EXTERNAL_API_TIMEOUT"
	ErrCodeExternalAPIUnauthorized ErrorCode = "EXTERNAL_API_UNAUTHORIZED"
	ErrCodeRateLimited             ErrorCode = "RATE_LIMITED"

	ErrCodeEmbeddingFailed    ErrorCode = "EMBEDDING_FAILED"
	ErrCodeVectorQueryFailed  ErrorCode = "VECTOR_QUERY_FAILED"
	ErrCodeVectorListFailed   ErrorCode = "VECTOR_LIST_FAILED"
	ErrCodeVectorFetchFailed  ErrorCode = "VECTOR_FETCH_FAILED"
	ErrCodeQueueOperationFail ErrorCode = "QUEUE_OPERATION_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// IsRetryable reports whether an error should be re-attempted. Errors
// that do not carry an explicit retryability flag are treated as
// retryable, matching the queue's at-least-once delivery contract.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	var jobErr *JobError
	if stderrors.As(err, &jobErr) {
		return jobErr.Retryable
	}
	return true
}

// CodeOf extracts the error code, or empty string for plain errors.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	var jobErr *JobError
	if stderrors.As(err, &jobErr) {
		return ErrorCode(jobErr.Code)
	}
	return ""
}

// ==========================
// 2. Queue Failure Integration
// ==========================

// JobError represents a failure that is recorded against a queued job.
type JobError struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Attempts  int                    `json:"attempts"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

func (e *JobError) Error() string {
	return fmt.Sprintf("JobError[%s]: %s", e.Code, e.Message)
}

// ToFailureVariables returns a map suitable for persisting on the job's
// failure record and for structured logging.
func (e *JobError) ToFailureVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
		"attempts":     e.Attempts,
	}

	if e.Variables != nil {
		for k, v := range e.Variables {
			vars[k] = v
		}
	}

	return vars
}

// FromStandardError converts a StandardError into a job failure record.
func FromStandardError(err *StandardError, attempts int) *JobError {
	return &JobError{
		Code:      string(err.Code),
		Message:   err.Message,
		Details:   err.Details,
		Retryable: err.Retryable,
		Attempts:  attempts,
		Variables: err.Metadata,
	}
}

// ==========================
// 3. Error Constructors
// ==========================

// NewValidationFailedError creates a non-retryable input validation error.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewJobPayloadInvalidError creates a non-retryable job payload error.
func NewJobPayloadInvalidError(jobType string, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeJobPayloadInvalid,
		Message:   "Job payload failed schema validation",
		Details:   fmt.Sprintf("jobType: %s, %s", jobType, details),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownEntityTableError creates a non-retryable entity table error.
func NewUnknownEntityTableError(table string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownEntityTable,
		Message:   "Unsupported entity table",
		Details:   fmt.Sprintf("entityTable: %s", table),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEntityNotFoundError creates a non-retryable missing entity error.
func NewEntityNotFoundError(table string, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEntityNotFound,
		Message:   "Entity not found",
		Details:   fmt.Sprintf("entityTable: %s, entityId: %s", table, id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNoDataSourcesError marks a verification where every external source
// came back empty. Retrying immediately would hit the same sources, so
// the error is non-retryable.
func NewNoDataSourcesError(entityName string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoDataSources,
		Message:   "No external data sources returned results",
		Details:   fmt.Sprintf("entityName: %s", entityName),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPricingInputInvalidError creates a non-retryable pricing input error.
func NewPricingInputInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePricingInputInvalid,
		Message:   "Pricing input rejected",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(queryType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("queryType: %s", queryType),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBulkInsertFailedError creates a retryable bulk insert error.
func NewBulkInsertFailedError(table string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBulkInsertFailed,
		Message:   "Bulk insert failed",
		Details:   fmt.Sprintf("table: %s, error: %s", table, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewExternalAPIFailedError creates a retryable upstream API error.
func NewExternalAPIFailedError(source string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalAPIFailed,
		Message:   "External API request failed",
		Details:   fmt.Sprintf("source: %s, error: %s", source, err.Error()),
		Retryable: true,
		Metadata:  map[string]interface{}{"source": source},
		Timestamp: time.Now().UTC(),
	}
}

// NewExternalAPITimeoutError creates a retryable upstream timeout error.
func NewExternalAPITimeoutError(source string) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalAPITimeout,
		Message:   "External API request timed out",
		Details:   fmt.Sprintf("source: %s", source),
		Retryable: true,
		Metadata:  map[string]interface{}{"source": source},
		Timestamp: time.Now().UTC(),
	}
}

// NewExternalAPIUnauthorizedError creates a non-retryable credentials error.
// Bad keys do not fix themselves on retry.
func NewExternalAPIUnauthorizedError(source string, status int) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalAPIUnauthorized,
		Message:   "External API rejected credentials",
		Details:   fmt.Sprintf("source: %s, status: %d", source, status),
		Retryable: false,
		Metadata:  map[string]interface{}{"source": source, "status": status},
		Timestamp: time.Now().UTC(),
	}
}

// NewRateLimitedError creates a retryable rate limit error.
func NewRateLimitedError(source string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRateLimited,
		Message:   "External API rate limit hit",
		Details:   fmt.Sprintf("source: %s", source),
		Retryable: true,
		Metadata:  map[string]interface{}{"source": source},
		Timestamp: time.Now().UTC(),
	}
}

// NewEmbeddingFailedError creates a retryable embedding generation error.
func NewEmbeddingFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmbeddingFailed,
		Message:   "Embedding generation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewVectorQueryFailedError creates a retryable vector index query error.
func NewVectorQueryFailedError(query string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeVectorQueryFailed,
		Message:   "Vector index query failed",
		Details:   fmt.Sprintf("query: %s, error: %s", query, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewVectorListFailedError creates a retryable vector listing error.
func NewVectorListFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeVectorListFailed,
		Message:   "Vector index listing failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewVectorFetchFailedError creates a retryable vector fetch error.
func NewVectorFetchFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeVectorFetchFailed,
		Message:   "Vector fetch failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueueOperationFailedError creates a retryable queue broker error.
func NewQueueOperationFailedError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueueOperationFail,
		Message:   "Queue operation failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
