package processor

import (
	"errors"
	"fmt"

	"github.com/MrSlyte/rinhabackend3/internal/domain"
)

// ProcessorError retains which processor failed and how. Status is zero when
// the request never produced a response.
type ProcessorError struct {
	Processor domain.ProcessorID
	Status    int
	Err       error
}

func (e *ProcessorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("processor %s: %v", e.Processor, e.Err)
	}
	return fmt.Sprintf("processor %s returned status %d", e.Processor, e.Status)
}

func (e *ProcessorError) Unwrap() error {
	return e.Err
}

func IsProcessorError(err error) (*ProcessorError, bool) {
	var procErr *ProcessorError
	ok := errors.As(err, &procErr)
	return procErr, ok
}
