package props

import "errors"

var (
	ErrNotFound       = errors.New("props: not found")
	ErrNotInitialized = errors.New("props: handler not initialized")
	ErrEmptyKey       = errors.New("props: empty key")
)
