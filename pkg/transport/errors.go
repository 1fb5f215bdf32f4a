package transport

import (
	"errors"
	"fmt"

	"github.com/illmade-knight/go-malhttp/pkg/mal"
)

var (
	// ErrTransmit is wrapped by every TransmitError.
	ErrTransmit = errors.New("transport: transmit failed")

	// ErrClosed is returned for work submitted after Close.
	ErrClosed = errors.New("transport: closed")
)

// TransmitError reports a failure that must be surfaced to the sender of a
// message: an unreachable host, no HTTP response, an unknown endpoint, or a
// reply nobody is waiting for.
type TransmitError struct {
	// Header is the message that triggered the failure, when known.
	Header *mal.MessageHeader
	// Number classifies the failure in the standard error taxonomy.
	Number mal.ErrorNumber
	Err    error
}

func newTransmitError(h *mal.MessageHeader, number mal.ErrorNumber, err error) *TransmitError {
	return &TransmitError{Header: h, Number: number, Err: err}
}

func (e *TransmitError) Error() string {
	if e.Header == nil {
		return fmt.Sprintf("%v (%v): %v", ErrTransmit, e.Number, e.Err)
	}
	return fmt.Sprintf("%v (%v) for %s stage %d transaction %d to %s: %v",
		ErrTransmit, e.Number, e.Header.InteractionType, e.Header.InteractionStage,
		e.Header.TransactionID, e.Header.URITo, e.Err)
}

func (e *TransmitError) Unwrap() []error {
	return []error{ErrTransmit, e.Err}
}
