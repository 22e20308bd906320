package browserpool

import (
	"errors"
	"fmt"
)

// ErrPoolClosed is returned by any operation on a pool that has been shut down.
var ErrPoolClosed = errors.New("browser pool is shut down")

// ErrEmptyKey is returned when a session is requested without a key.
var ErrEmptyKey = errors.New("session key is required")

// ErrEngineLaunch matches every *EngineLaunchError via errors.Is.
var ErrEngineLaunch = errors.New("browser launch failed")

// ErrSessionCreation matches every *SessionCreationError via errors.Is.
var ErrSessionCreation = errors.New("session creation failed")

// EngineLaunchError reports that the browser process could not be started.
// It fails the request in flight; the next Acquire tries to launch again.
type EngineLaunchError struct {
	Err error
}

func (e *EngineLaunchError) Error() string {
	return fmt.Sprintf("failed to launch browser: %v", e.Err)
}

func (e *EngineLaunchError) Unwrap() error { return e.Err }

func (e *EngineLaunchError) Is(target error) bool { return target == ErrEngineLaunch }

// SessionCreationError reports that a session could not be created for Key,
// even after relaunching the browser once.
type SessionCreationError struct {
	Key string
	Err error
}

func (e *SessionCreationError) Error() string {
	return fmt.Sprintf("failed to create session %q: %v", e.Key, e.Err)
}

func (e *SessionCreationError) Unwrap() error { return e.Err }

func (e *SessionCreationError) Is(target error) bool { return target == ErrSessionCreation }
