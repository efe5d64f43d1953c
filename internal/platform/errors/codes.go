// Package errors provides structured error handling for the marking pipeline.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"
)

// Assignment validation errors.
const (
	CodeAssignmentEmptyStudentID    Code = "ASSIGNMENT_EMPTY_STUDENT_ID"
	CodeAssignmentEmptyModuleCode   Code = "ASSIGNMENT_EMPTY_MODULE_CODE"
	CodeAssignmentInvalidModuleCode Code = "ASSIGNMENT_INVALID_MODULE_CODE"
	CodeAssignmentInvalidQuestion   Code = "ASSIGNMENT_INVALID_QUESTION_NUMBER"
	CodeAssignmentEmptyContent      Code = "ASSIGNMENT_EMPTY_CONTENT"
	CodeAssignmentContentTooLong    Code = "ASSIGNMENT_CONTENT_TOO_LONG"
	CodeAssignmentEmptyRubric       Code = "ASSIGNMENT_EMPTY_RUBRIC"
	CodeAssignmentInvalidTransition Code = "ASSIGNMENT_INVALID_STATUS_TRANSITION"
)

// Security gate errors.
const (
	CodeSecurityEmptyIdentifier Code = "SECURITY_EMPTY_IDENTIFIER"
	CodeSecurityPIILeak         Code = "SECURITY_PII_LEAK"
)

// Jail transport errors.
const (
	CodeJailSpawn          Code = "JAIL_SPAWN_FAILED"
	CodeJailWrite          Code = "JAIL_WRITE_FAILED"
	CodeJailRead           Code = "JAIL_READ_FAILED"
	CodeJailEncode         Code = "JAIL_ENCODE_FAILED"
	CodeJailDecode         Code = "JAIL_DECODE_FAILED"
	CodeJailProcessCrashed Code = "JAIL_PROCESS_CRASHED"
	CodeJailTimeout        Code = "JAIL_TIMEOUT"
	CodeJailInvalidMessage Code = "JAIL_INVALID_MESSAGE"
	CodeJailRemoteError    Code = "JAIL_REMOTE_ERROR"
)

// Feedback quality errors.
const (
	CodeFeedbackEmpty           Code = "FEEDBACK_EMPTY"
	CodeFeedbackTooShort        Code = "FEEDBACK_TOO_SHORT"
	CodeFeedbackNoScores        Code = "FEEDBACK_NO_CRITERION_SCORES"
	CodeFeedbackGradeOutOfRange Code = "FEEDBACK_GRADE_OUT_OF_RANGE"
)

// Storage errors.
const (
	CodeNotFound      Code = "NOT_FOUND"
	CodeStorageAppend Code = "STORAGE_APPEND_FAILED"
	CodeStorageRead   Code = "STORAGE_READ_FAILED"
)
