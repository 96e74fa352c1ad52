package session

import "github.com/pkg/errors"

var (
	ErrAlreadyInitialized = errors.New("manager is already initialized")
	ErrEmptyMessage       = errors.New("message is empty")
	ErrSendInFlight       = errors.New("a message send is already in progress")
	ErrNoActiveSession    = errors.New("no active session")
	ErrUnknownSession     = errors.New("unknown session")
)
