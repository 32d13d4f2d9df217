package progressor

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownOpCode is matched (via errors.Is) by every UnknownOpCodeError
	ErrUnknownOpCode = errors.New("unknown op code")

	// ErrEmptyCommand denotes a control point write without any bytes
	ErrEmptyCommand = errors.New("empty command")

	// ErrMalformedCommand denotes a command whose payload cannot be decoded
	ErrMalformedCommand = errors.New("malformed command")

	// ErrPayloadTooLarge denotes a response payload exceeding MaxPayloadSize
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrUnexpectedResponse denotes a data point of a different kind than requested
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// UnknownOpCodeError denotes a control byte that does not map to any command
type UnknownOpCodeError struct {
	Code byte
}

// Error implements the error interface
func (e *UnknownOpCodeError) Error() string {
	return fmt.Sprintf("unknown op code 0x%02x", e.Code)
}

// Is allows matching against ErrUnknownOpCode
func (e *UnknownOpCodeError) Is(target error) bool {
	return target == ErrUnknownOpCode
}
