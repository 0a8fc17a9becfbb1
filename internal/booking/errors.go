package booking

import "errors"

var (
	// ErrSlotUnavailable covers every way a requested start time can be
	// unbookable: outside the staff window, off the slot grid, in the past,
	// already taken, or lost to a concurrent booking.
	ErrSlotUnavailable  = errors.New("requested slot is not available")
	ErrServiceNotFound  = errors.New("service not found")
	ErrStaffNotFound    = errors.New("staff not found")
	ErrCustomerRequired = errors.New("customer identity required")
	ErrInvalidDuration  = errors.New("service duration must be positive")
)
