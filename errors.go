package docstamp

import (
	"errors"
	"fmt"

	"github.com/tawqee/docstamp/pagerender"
)

// ErrUnsupportedFormat is returned when an attachment's file extension is
// outside the supported PDF/PNG/JPEG set.
var ErrUnsupportedFormat = pagerender.ErrUnsupportedFormat

// Stage names the step of a signing pass an error happened in.
type Stage string

const (
	StageDecoding   Stage = "decoding"
	StageComposing  Stage = "composing"
	StageReencoding Stage = "re-encoding"
	StagePersisting Stage = "persisting"
)

// StageError wraps the failure that aborted a signing pass with the stage
// it happened in. No partial work from the pass is finalized.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("signing failed during %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// stampStage classifies an error coming out of the rasterize-stamp-reencode
// pipeline: codec failures belong to re-encoding, everything else came from
// the compositor.
func stampStage(err error) Stage {
	var perr *pagerender.ProcessingError
	if errors.As(err, &perr) {
		return StageReencoding
	}
	return StageComposing
}
