package domain

import (
	"errors"
)

var (
	// ErrJobNotFound is returned when a job id is unknown
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidJobStatus is returned when a status string is not one of the
	// five recognized values
	ErrInvalidJobStatus = errors.New("invalid job status")

	// ErrMissingErrorDetails is returned when a failed/timeout update omits
	// error_code or error_msg
	ErrMissingErrorDetails = errors.New("error_code and error_msg are required for failed and timeout statuses")

	// ErrEventNotFound is returned when a notification event id is unknown
	ErrEventNotFound = errors.New("notification event not found")

	// ErrInvalidEventType is returned for an unrecognized event type string
	ErrInvalidEventType = errors.New("invalid notification event type")

	// ErrInvalidChannel is returned for an unrecognized channel string
	ErrInvalidChannel = errors.New("invalid notification channel")

	// ErrInvalidDeliveryStatus is returned for an unrecognized delivery status
	ErrInvalidDeliveryStatus = errors.New("invalid delivery status")
)
