// Package core provides the business logic for table cleanup sessions.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support
// reference. Known sentinel errors are matched first with errors.Is; any
// other error falls back to case-insensitive substring patterns.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the maximum upload size
//	FILE002 - Unsupported type: Only CSV, TSV, TXT and Excel files are accepted
//	FILE003 - Unreadable file: The file could not be read as a table
//	FILE004 - No file: No file was selected
//	FILE005 - Empty file: The uploaded file is empty
//
// # Pattern Errors (RX001-RX099)
//
//	RX001 - Invalid pattern: No candidate pattern could be compiled
//	RX002 - No match: No candidate changed any cell
//	RX003 - Timeout: A pattern took too long to run
//	RX004 - No candidates: Nothing to evaluate
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session not found: Nothing uploaded yet, or the session expired
//	SES002 - Invalid session: The session id is malformed
//
// # Planner Errors (PLAN001-PLAN099)
//
//	PLAN001 - Planner failed: The instruction could not be turned into a plan
//	PLAN002 - Not a table edit: The instruction does not describe a table edit
//
// # Request Errors
//
//	UPL002  - System busy: Too many transforms in progress
//	UPL004  - Request cancelled
//	UPL005  - Request timeout
//	RATE001 - Rate limited
//	DB004   - Audit database unreachable
//	DB006   - Operation timed out
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Support staff should check application logs
// for the original technical error when users report ERR000.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/tablefix/internal/planner"
	"github.com/JonMunkholm/tablefix/internal/session"
	"github.com/JonMunkholm/tablefix/internal/table"
	"github.com/JonMunkholm/tablefix/internal/transform"
)

var (
	// ErrFileTooLarge is returned when an upload exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoFile is returned when a request carries no file.
	ErrNoFile = errors.New("no file provided")

	// ErrEmptyFile is returned for zero-byte uploads.
	ErrEmptyFile = errors.New("empty file")

	// ErrUnreadableFile wraps loader failures other than unsupported types.
	ErrUnreadableFile = errors.New("unreadable file")

	// ErrNoCandidates is returned when neither the request nor the planner
	// supplied a candidate.
	ErrNoCandidates = errors.New("no candidates to evaluate")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// sentinelMessage maps a sentinel error to its user message.
type sentinelMessage struct {
	target error
	msg    UserMessage
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgInvalidPattern = UserMessage{
		Message: "None of the candidate patterns is a valid regular expression",
		Action:  "Rephrase the instruction or correct the pattern",
		Code:    "RX001",
	}
	msgNoMatch = UserMessage{
		Message: "No candidate changed any cell",
		Action:  "Check the selected columns or describe the values more precisely",
		Code:    "RX002",
	}
	msgNoCandidates = UserMessage{
		Message: "There was nothing to evaluate",
		Action:  "Provide an instruction or at least one candidate",
		Code:    "RX004",
	}
)

// sentinels are checked in order with errors.Is; the first match wins.
var sentinels = []sentinelMessage{
	{ErrFileTooLarge, UserMessage{"File exceeds maximum size limit", "Split the file into smaller chunks", "FILE001"}},
	{table.ErrUnsupportedFormat, UserMessage{"Unsupported file type", "Upload a .csv, .tsv, .txt, .xlsx or .xls file", "FILE002"}},
	{ErrUnreadableFile, UserMessage{"The file could not be read as a table", "Re-save the file and upload it again", "FILE003"}},
	{ErrNoFile, UserMessage{"No file was selected", "Please select a file to upload", "FILE004"}},
	{ErrEmptyFile, UserMessage{"The uploaded file is empty", "Please upload a file with a header and data rows", "FILE005"}},

	{transform.ErrInvalidPattern, msgInvalidPattern},
	{transform.ErrSubstitutionTimeout, UserMessage{"A pattern took too long to run", "Use a simpler pattern", "RX003"}},
	{ErrNoCandidates, msgNoCandidates},

	{session.ErrNotFound, UserMessage{"No table found for this session", "Upload a file first; sessions expire after inactivity", "SES001"}},
	{session.ErrInvalidID, UserMessage{"Invalid session", "Start a new session", "SES002"}},

	{planner.ErrNotTableOperation, UserMessage{"The instruction does not describe a table edit", "Describe what to change in which column", "PLAN002"}},
	{planner.ErrBadResponse, UserMessage{"The instruction could not be turned into a plan", "Please try again or rephrase the instruction", "PLAN001"}},
	{planner.ErrInvalidPlan, UserMessage{"The instruction could not be turned into a plan", "Please try again or rephrase the instruction", "PLAN001"}},

	{ErrTooManyRequests, UserMessage{"System is busy processing other requests", "Please wait a moment and try again", "UPL002"}},
	{context.Canceled, UserMessage{"Request was cancelled", "Please try again", "UPL004"}},
	{context.DeadlineExceeded, UserMessage{"Request timed out", "Try a smaller file or a simpler instruction", "UPL005"}},
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(fmt.Errorf("upload: %w", ErrEmptyFile))
//	// msg.Code == "FILE005"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	// A batch where nothing compiled is a pattern problem, not a no-match.
	var nv *transform.NoViableCandidateError
	if errors.As(err, &nv) {
		switch {
		case nv.Total == 0:
			return msgNoCandidates
		case nv.NothingCompiled():
			return msgInvalidPattern
		}
		return msgNoMatch
	}

	for _, s := range sentinels {
		if errors.Is(err, s.target) {
			return s.msg
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

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err into a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
