package pipeline

import (
	"errors"
	"fmt"

	"github.com/ironsheep/objcount-mcp/internal/detection"
	"github.com/ironsheep/objcount-mcp/internal/imaging"
)

var (
	// ErrMalformedInput reports image text that is not valid hexadecimal.
	ErrMalformedInput = errors.New("malformed input")

	// ErrCallerContract reports a call with the wrong number or types of
	// arguments. It is never collapsed to a zero count.
	ErrCallerContract = errors.New("caller contract violation")

	// ErrTimeout reports a call that ran past its deadline.
	ErrTimeout = errors.New("count timed out")
)

// Stage names the pipeline step a failure came from.
type Stage string

const (
	StageNone       Stage = ""
	StageHex        Stage = "hex"
	StageDecode     Stage = "decode"
	StagePreprocess Stage = "preprocess"
	StageLoadModel  Stage = "load_model"
	StageDetect     Stage = "detect"
)

// Error tags a failure with the stage that produced it.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Kind names the error category of err: MalformedInputError, DecodeError,
// PreprocessError, ModelLoadError, DetectError, TimeoutError,
// CallerContractError, or InternalError for anything else.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCallerContract):
		return "CallerContractError"
	case errors.Is(err, ErrMalformedInput):
		return "MalformedInputError"
	case errors.Is(err, imaging.ErrDecode):
		return "DecodeError"
	case errors.Is(err, imaging.ErrPreprocess):
		return "PreprocessError"
	case errors.Is(err, detection.ErrModelLoad):
		return "ModelLoadError"
	case errors.Is(err, ErrTimeout):
		return "TimeoutError"
	case errors.Is(err, detection.ErrDetect):
		return "DetectError"
	default:
		return "InternalError"
	}
}
