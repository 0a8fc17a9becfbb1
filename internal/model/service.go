package model

import (
	"errors"
	"fmt"
	"time"
)

type ServiceType string

const (
	ServiceIndividual ServiceType = "individual"
	ServiceClass      ServiceType = "class"
	ServiceRecurring  ServiceType = "recurring"
)

func (t ServiceType) Valid() bool {
	switch t {
	case ServiceIndividual, ServiceClass, ServiceRecurring:
		return true
	}
	return false
}

// FixedSchedule reports whether bookings are restricted to the service's
// class times instead of free-form slots.
func (t ServiceType) FixedSchedule() bool {
	return t == ServiceClass || t == ServiceRecurring
}

// Service is a bookable offering. Capacity is the number of simultaneous
// bookings one occurrence can hold; individual services always book with
// capacity 1. Fixed-schedule services carry the weekdays and minute-of-day
// their occurrences start at.
type Service struct {
	ID               string
	BusinessID       string
	Name             string
	Type             ServiceType
	DurationMinutes  int
	Capacity         int
	ClassDays        []int // weekdays 0-6, Sunday=0; fixed-schedule types only
	ClassStartMinute int   // minute of day; fixed-schedule types only
	SessionsPerMonth int   // recurring type only
	Price            string
	CreatedAt        time.Time
}

var (
	ErrInvalidService = errors.New("invalid service definition")
)

func (s Service) Validate() error {
	if !s.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidService, s.Type)
	}
	if s.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidService)
	}
	if s.Capacity < 1 {
		return fmt.Errorf("%w: capacity must be at least 1", ErrInvalidService)
	}
	if s.Capacity > 1 && s.Type == ServiceIndividual {
		return fmt.Errorf("%w: individual services cannot have capacity above 1", ErrInvalidService)
	}
	if s.Type.FixedSchedule() {
		if len(s.ClassDays) == 0 {
			return fmt.Errorf("%w: %s services need at least one class day", ErrInvalidService, s.Type)
		}
		for _, d := range s.ClassDays {
			if d < 0 || d > 6 {
				return fmt.Errorf("%w: class day %d out of range", ErrInvalidService, d)
			}
		}
		if s.ClassStartMinute < 0 || s.ClassStartMinute >= 24*60 {
			return fmt.Errorf("%w: class start minute out of range", ErrInvalidService)
		}
	}
	if s.Type == ServiceRecurring && s.SessionsPerMonth <= 0 {
		return fmt.Errorf("%w: recurring services need sessions_per_month", ErrInvalidService)
	}
	return nil
}

// BookingCapacity is the capacity one booking attempt competes for.
func (s Service) BookingCapacity() int {
	if s.Type == ServiceIndividual {
		return 1
	}
	return s.Capacity
}

// OccursOn reports whether a fixed-schedule service holds a class on the
// given weekday.
func (s Service) OccursOn(weekday int) bool {
	for _, d := range s.ClassDays {
		if d == weekday {
			return true
		}
	}
	return false
}

// Staff is a bookable member of a business.
type Staff struct {
	ID         string
	BusinessID string
	Name       string
	IsActive   bool
	CreatedAt  time.Time
}
