package mlx9064x

import (
	"errors"
	"fmt"
)

// TransportError is returned when a bus transaction fails. It is never
// retried by the driver.
type TransportError struct {
	Op       string
	Register Address
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Register, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// InvalidDataError is returned when a buffer does not have the length of the
// window it is meant to hold.
type InvalidDataError struct {
	What string
	Got  int
	Want int
}

func (e *InvalidDataError) Error() string {
	return fmt.Sprintf("invalid data: %s has length %d, expected %d", e.What, e.Got, e.Want)
}

// ChecksumError is returned when an EEPROM word carries an uncorrectable
// error.
type ChecksumError struct {
	Address Address
	Word    uint16
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum: uncorrectable word 0x%04X at %s", e.Word, e.Address)
}

// ConfigurationError is returned when a decoded calibration field violates
// its valid range.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid calibration: %s %s", e.Field, e.Reason)
}

// StatusError is returned when the status register holds a value the driver
// does not recognize.
type StatusError struct {
	Status uint16
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unrecognized status register value 0x%04X", e.Status)
}

// IsChecksumError returns true if err is or wraps a ChecksumError.
func IsChecksumError(err error) bool {
	var ce *ChecksumError
	return errors.As(err, &ce)
}
