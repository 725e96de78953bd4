package notification

import "errors"

var (
	ErrUnknownEvent = errors.New("not an outcome event")
	ErrNoRecipient  = errors.New("outcome event has no recipient")
)
