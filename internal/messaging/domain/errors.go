package domain

import "errors"

var (
	// ErrTemplateNotFound is returned when no active template exists for a key.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrRecipientTypeNotAllowed is returned when a template's user_types set
	// excludes the requested recipient type.
	ErrRecipientTypeNotAllowed = errors.New("recipient type not allowed for template")

	// ErrMessageNotFound is returned when a queued message id does not exist.
	ErrMessageNotFound = errors.New("queued message not found")

	// ErrNoDueMessages signals an empty claim cycle; callers treat it as
	// "no work", not a failure.
	ErrNoDueMessages = errors.New("no due messages")
)
