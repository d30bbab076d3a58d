package bubble

import "errors"

var (
	ErrRemoved        = errors.New("bubble path removed")
	ErrClosed         = errors.New("registry closed")
	ErrInvalidBounds  = errors.New("invalid bounds")
	ErrInvalidOptions = errors.New("invalid options")
)
