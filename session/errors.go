package session

import (
	"errors"
	"fmt"
)

var (
	ErrNotRunning = errors.New("session not running")
)

// SetupError reports which setup step failed while opening a session.
type SetupError struct {
	Step string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}
