package core

// # Error Codes Reference
//
// Errors shown to operators carry a short code they can quote to support.
// Known sentinel errors are matched with errors.Is first; everything else
// falls back to case-insensitive pattern matching on the error text.
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Report invalid: The file has validation issues
//	         Action: Fix the listed lines and upload the file again
//	         Sentinel: ErrReportInvalid
//
//	VAL002 - Invalid number: A quantity or unit cost is not a number
//	         Action: Remove currency symbols and use a plain decimal format
//	         Patterns: "not a number", "invalid number"
//
//	VAL003 - Invalid order status: The order status filter is not recognised
//	         Action: Use a WooCommerce status such as completed or processing
//	         Sentinel: ErrInvalidOrderStatus
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the maximum size limit
//	          Action: Split the file into smaller chunks
//	          Sentinel: ErrFileTooLarge
//
//	FILE002 - No file: No file was selected
//	          Action: Please select a CSV file to upload
//	          Patterns: "no file provided", "no such file"
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Import not found: The import session does not exist or expired
//	         Action: Upload the file again
//	         Sentinel: ErrImportNotFound
//
//	IMP002 - Already applied: The import has already been applied
//	         Action: Upload a new file to apply further changes
//	         Sentinel: ErrImportAlreadyApplied
//
//	IMP003 - System busy: Another import is being applied
//	         Action: Please wait for it to finish and try again
//	         Sentinel: ErrTooManyImports
//
//	IMP004 - Request cancelled: The request was cancelled
//	         Action: Please try again
//	         Sentinel: context.Canceled
//
//	IMP005 - Request timeout: The request timed out
//	         Action: Try a smaller file or try again later
//	         Sentinel: context.DeadlineExceeded
//
//	IMP006 - Still applying: The apply has not finished yet
//	         Action: Wait for the progress to complete, then try again
//	         Sentinel: ErrApplyInProgress
//
// # Catalog Errors (CAT001-CAT099)
//
//	CAT001 - Unauthorized: The store rejected the API credentials
//	         Action: Check the consumer key and secret
//	         Sentinel: ErrCatalogUnauthorized
//
//	CAT002 - Unreachable: The store could not be reached
//	         Action: Check the store URL and try again in a few moments
//	         Sentinel: ErrCatalogUnreachable
//
//	CAT003 - Rejected: The store rejected a request
//	         Action: Review the outcome details for the affected SKUs
//	         Type: *CatalogError
//
//	CAT004 - Orders unsupported: The connected store cannot list orders
//	         Action: Use a WooCommerce store connection
//	         Sentinel: ErrOrdersUnsupported
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//	          Action: Please wait a moment before trying again
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// When a user reports ERR000, check the application logs for the request id.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

type sentinelMessage struct {
	target error
	msg    UserMessage
}

// sentinelMessages is checked in order with errors.Is.
var sentinelMessages = []sentinelMessage{
	{ErrReportInvalid, UserMessage{
		Message: "The file has validation issues",
		Action:  "Fix the listed lines and upload the file again",
		Code:    "VAL001",
	}},
	{ErrFileTooLarge, UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}},
	{ErrImportNotFound, UserMessage{
		Message: "Import session not found",
		Action:  "The import may have expired. Please upload the file again",
		Code:    "IMP001",
	}},
	{ErrImportAlreadyApplied, UserMessage{
		Message: "This import has already been applied",
		Action:  "Upload a new file to apply further changes",
		Code:    "IMP002",
	}},
	{ErrTooManyImports, UserMessage{
		Message: "Another import is being applied",
		Action:  "Please wait for it to finish and try again",
		Code:    "IMP003",
	}},
	{ErrApplyInProgress, UserMessage{
		Message: "The import is still being applied",
		Action:  "Wait for the progress to complete, then try again",
		Code:    "IMP006",
	}},
	{ErrCatalogUnauthorized, UserMessage{
		Message: "The store rejected the API credentials",
		Action:  "Check the consumer key and secret",
		Code:    "CAT001",
	}},
	{ErrCatalogUnreachable, UserMessage{
		Message: "The store could not be reached",
		Action:  "Check the store URL and try again in a few moments",
		Code:    "CAT002",
	}},
	{ErrOrdersUnsupported, UserMessage{
		Message: "The connected store cannot list orders",
		Action:  "Use a WooCommerce store connection",
		Code:    "CAT004",
	}},
	{ErrInvalidOrderStatus, UserMessage{
		Message: "The order status filter is not recognised",
		Action:  "Use a WooCommerce status such as completed or processing",
		Code:    "VAL003",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "IMP004",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "IMP005",
	}},
}

var catalogRejected = UserMessage{
	Message: "The store rejected a request",
	Action:  "Review the outcome details for the affected SKUs",
	Code:    "CAT003",
}

// errorPattern maps a lower-case substring of an error to a user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is the fallback for errors without a sentinel.
// The first match wins, so specific patterns come first.
var errorPatterns = []errorPattern{
	{"not a number", UserMessage{
		Message: "Invalid number format detected",
		Action:  "Remove currency symbols and use a plain decimal format",
		Code:    "VAL002",
	}},
	{"invalid number", UserMessage{
		Message: "Invalid number format detected",
		Action:  "Remove currency symbols and use a plain decimal format",
		Code:    "VAL002",
	}},
	{"no file provided", UserMessage{
		Message: "No file was selected",
		Action:  "Please select a CSV file to upload",
		Code:    "FILE002",
	}},
	{"no such file", UserMessage{
		Message: "No file was selected",
		Action:  "Please select a CSV file to upload",
		Code:    "FILE002",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
	{"too many requests", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// A nil error maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.target) {
			return s.msg
		}
	}

	var ce *CatalogError
	if errors.As(err, &ce) {
		return catalogRejected
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
