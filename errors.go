package deerflow

import "errors"

var (
	// Store errors.
	ErrNoStore           = errors.New("deerflow: no store configured")
	ErrUnsupportedScheme = errors.New("deerflow: unsupported database URI scheme")

	// Not found errors.
	ErrRunNotFound          = errors.New("deerflow: run not found")
	ErrConversationNotFound = errors.New("deerflow: conversation not found")

	// Conflict errors.
	ErrConversationExists = errors.New("deerflow: conversation already exists")

	// Validation errors.
	ErrEmptyThreadID = errors.New("deerflow: empty thread id")
	ErrTitleTooLong  = errors.New("deerflow: title exceeds 500 characters")
)
