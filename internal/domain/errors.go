package domain

import "errors"

var (
	ErrUnsupportedMediaType = errors.New("unsupported content type")
	ErrMalformedRequest     = errors.New("malformed request")
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrProcessingFailure    = errors.New("processing failure")
)

// ProcessingError carries a codec or field-access failure. Its message is the
// underlying error's message so it can be echoed to clients unchanged.
type ProcessingError struct {
	Err error
}

func NewProcessingError(err error) error {
	if err == nil {
		return nil
	}
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return err
	}
	return &ProcessingError{Err: err}
}

func (e *ProcessingError) Error() string {
	if e.Err == nil {
		return ErrProcessingFailure.Error()
	}
	return e.Err.Error()
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

func (e *ProcessingError) Is(target error) bool {
	return target == ErrProcessingFailure
}
