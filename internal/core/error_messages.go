// Package core provides the change-detection and publication engine.
//
// # Error Codes Reference
//
// This file defines operator-facing error messages with codes for support
// reference. Codes are grouped by the publication step that failed:
//
//	LOAD001  - Load failed: the current masterfile could not be read
//	LOAD002  - Artifact not found: the masterfile does not exist at the configured path
//	KEY001   - Reserved column: a data column uses the reserved row key name
//	BAK001   - Backup failed: the dated backup copy could not be written
//	PUB001   - Overwrite failed: the primary masterfile could not be replaced
//	PUB002   - Nothing published: every dataset in the batch failed
//	CNT001   - Counter unavailable: the day counter could not be read or written
//	CNT002   - Counter conflict: another publication advanced the counter concurrently
//	NTF001   - Notification failed: the change report was not delivered
//	DS001    - Unknown dataset: the dataset key is not configured
//	CODEC001 - Format error: the file could not be decoded or encoded
//	BUSY001  - Publication busy: another publication is running
//	REQ001   - Request cancelled
//	REQ002   - Request timeout
//	ERR000   - Unknown error
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so step patterns come before the cause
// patterns they may wrap.
package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNothingPublished is returned when no dataset in a batch reached publication.
	ErrNothingPublished = errors.New("nothing was published")

	// ErrNotificationFailed wraps notifier errors. The day counter is not
	// advanced when it is returned, but published artifacts remain.
	ErrNotificationFailed = errors.New("notification failed")
)

// StepError records which dataset and publication step failed.
type StepError struct {
	Dataset string // Empty for batch-level steps
	Step    Phase  // Phase the attempt was trying to reach
	Err     error
}

func (e *StepError) Error() string {
	if e.Dataset == "" {
		return fmt.Sprintf("publish: %s: %v", stepAction(e.Step), e.Err)
	}
	return fmt.Sprintf("publish %s: %s: %v", e.Dataset, stepAction(e.Step), e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func stepAction(p Phase) string {
	switch p {
	case PhaseLoaded:
		return "load failed"
	case PhaseEdited:
		return "edit rejected"
	case PhaseDiffed:
		return "diff failed"
	case PhaseBackedUp:
		return "backup failed"
	case PhasePublished:
		return "overwrite failed"
	case PhaseCounted:
		return "counter read failed"
	case PhaseNotified:
		return "notify failed"
	case PhaseCommitted:
		return "counter commit failed"
	default:
		return string(p) + " failed"
	}
}

// UserMessage provides operator-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to operator messages.
var errorPatterns = []errorPattern{
	{
		pattern: "reserved row key column",
		msg: UserMessage{
			Message: "A data column uses the reserved row key name",
			Action:  "Rename the column in the masterfile or disable synthetic keys for this dataset",
			Code:    "KEY001",
		},
	},
	{
		pattern: "unknown dataset",
		msg: UserMessage{
			Message: "The dataset is not configured",
			Action:  "Check the dataset catalog",
			Code:    "DS001",
		},
	},
	{
		pattern: "publication already in progress",
		msg: UserMessage{
			Message: "Another publication is running",
			Action:  "Wait a moment and try again",
			Code:    "BUSY001",
		},
	},
	{
		pattern: "day counter changed concurrently",
		msg: UserMessage{
			Message: "Another publication advanced the day counter at the same time",
			Action:  "Check the version label of the last report before retrying",
			Code:    "CNT002",
		},
	},
	{
		pattern: "artifact not found",
		msg: UserMessage{
			Message: "The masterfile does not exist at the configured location",
			Action:  "Verify the folder and file name in the dataset catalog",
			Code:    "LOAD002",
		},
	},
	{
		pattern: "load failed",
		msg: UserMessage{
			Message: "The current masterfile could not be read",
			Action:  "Nothing was changed; try again in a few moments",
			Code:    "LOAD001",
		},
	},
	{
		pattern: "backup failed",
		msg: UserMessage{
			Message: "The backup copy could not be written",
			Action:  "The masterfile was not replaced; try again",
			Code:    "BAK001",
		},
	},
	{
		pattern: "overwrite failed",
		msg: UserMessage{
			Message: "The masterfile could not be replaced",
			Action:  "A backup was written; try publishing again",
			Code:    "PUB001",
		},
	},
	{
		pattern: "nothing was published",
		msg: UserMessage{
			Message: "No dataset could be published",
			Action:  "Review the per-dataset errors and try again",
			Code:    "PUB002",
		},
	},
	{
		pattern: "notification failed",
		msg: UserMessage{
			Message: "The masterfiles were published but the report was not sent",
			Action:  "Publish again; the same version label will be reused",
			Code:    "NTF001",
		},
	},
	{
		pattern: "day counter",
		msg: UserMessage{
			Message: "The day counter could not be read or written",
			Action:  "Check access to the counter store",
			Code:    "CNT001",
		},
	},
	{
		pattern: "decode",
		msg: UserMessage{
			Message: "The file could not be read as a table",
			Action:  "Check that the file is a valid spreadsheet",
			Code:    "CODEC001",
		},
	},
	{
		pattern: "encode",
		msg: UserMessage{
			Message: "The table could not be written to the file format",
			Action:  "Please try again or contact support",
			Code:    "CODEC001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again later",
			Code:    "REQ002",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to an operator-friendly message.
// If no pattern matches, a generic fallback with code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether an error matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with an operator-friendly message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
