package core

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrSessionRunning        = errors.New("session is already running")
	ErrSetupCancelled        = errors.New("session setup cancelled")
	ErrFrameNotReady         = errors.New("capture source has no frame yet")
	ErrTimestampNotMonotonic = errors.New("timestamp must be strictly increasing")
)

// SetupStage names one step of session initialisation.
type SetupStage int

const (
	StageSegmenter SetupStage = iota
	StageCapture
	StageLoop
)

func (s SetupStage) String() string {
	switch s {
	case StageSegmenter:
		return "segmenter"
	case StageCapture:
		return "capture"
	case StageLoop:
		return "render loop"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// SetupError reports which setup stage failed.
type SetupError struct {
	Stage SetupStage
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("session setup failed at %s stage: %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// Cause lets github.com/pkg/errors.Cause see through the setup error.
func (e *SetupError) Cause() error { return e.Err }
