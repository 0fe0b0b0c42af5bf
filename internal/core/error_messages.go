package core

// # Error Codes Reference
//
// Errors surfaced by a run are mapped to short user messages with a code that
// operators can quote when asking for help. Structural faults are matched by
// type; everything else is matched by pattern.
//
// # Schema Errors (SCH001-SCH099)
//
//	SCH001 - Missing table: a bronze table is absent
//	         Action: Load the table into bronze before running
//	SCH002 - Missing column: a required bronze column is absent
//	         Action: Fix the bronze export so the column is present
//	SCH003 - Stage order: a table was scheduled before one it depends on
//	         Action: Run tables in dependency order
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Connection refused            Patterns: "connection refused"
//	DB002 - Connection reset              Patterns: "connection reset"
//	DB003 - Timeout                       Patterns: "timeout"
//	DB004 - Deadlock                      Patterns: "deadlock"
//	DB005 - Permission denied             Patterns: "permission denied"
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Run in progress              Patterns: "run already in progress"
//	RUN002 - Too many runs                Patterns: "too many concurrent runs"
//	RUN003 - Cancelled                    Patterns: "context canceled"
//	RUN004 - Deadline exceeded            Patterns: "context deadline exceeded"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check the logs for the run ID.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns are matched case-insensitively with strings.Contains. The first
// match wins, so specific patterns come before general ones.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Run control
	// =========================================================================
	{
		pattern: "run already in progress",
		msg: UserMessage{
			Message: "A pipeline run is already in progress",
			Action:  "Wait for the current run to finish",
			Code:    "RUN001",
		},
	},
	{
		pattern: "too many concurrent runs",
		msg: UserMessage{
			Message: "System is busy with other runs",
			Action:  "Please wait a moment and try again",
			Code:    "RUN002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Run was cancelled",
			Action:  "Start a new run when ready",
			Code:    "RUN003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Run timed out",
			Action:  "Raise PIPELINE_RUN_TIMEOUT or check database load",
			Code:    "RUN004",
		},
	},

	// =========================================================================
	// Database
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB002",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Database operation timed out",
			Action:  "Try again later",
			Code:    "DB003",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},
	{
		pattern: "permission denied",
		msg: UserMessage{
			Message: "Database user lacks a required privilege",
			Action:  "Grant access to the bronze, silver, audit and gold schemas",
			Code:    "DB005",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the logs for this run",
	Code:    "ERR000",
}

// MapError converts an error to a user-friendly message. Structural faults
// and stage order errors are recognized by type, the rest by message pattern.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var fault *StructuralFault
	if errors.As(err, &fault) {
		if fault.Column == "" {
			return UserMessage{
				Message: fmt.Sprintf("Bronze table %q is missing", fault.Table),
				Action:  "Load the table into bronze before running",
				Code:    "SCH001",
			}
		}
		return UserMessage{
			Message: fmt.Sprintf("Bronze table %q is missing required column %q", fault.Table, fault.Column),
			Action:  "Fix the bronze export so the column is present",
			Code:    "SCH002",
		}
	}
	if errors.Is(err, ErrStageOrder) {
		return UserMessage{
			Message: "Tables were scheduled out of dependency order",
			Action:  "Run tables in dependency order",
			Code:    "SCH003",
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
