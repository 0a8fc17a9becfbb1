package model

import (
	"testing"
	"time"
)

func TestAppointmentStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to AppointmentStatus
		want     bool
	}{
		{StatusScheduled, StatusConfirmed, true},
		{StatusScheduled, StatusCanceled, true},
		{StatusScheduled, StatusCompleted, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCanceled, true},
		{StatusConfirmed, StatusScheduled, false},
		{StatusCanceled, StatusConfirmed, false},
		{StatusCanceled, StatusCompleted, false},
		{StatusCompleted, StatusCanceled, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestPaymentStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentUnpaid, PaymentPending, true},
		{PaymentUnpaid, PaymentPaid, true},
		{PaymentUnpaid, PaymentRefunded, false},
		{PaymentPending, PaymentPaid, true},
		{PaymentPending, PaymentRefunded, true},
		{PaymentPending, PaymentUnpaid, false},
		{PaymentPaid, PaymentRefunded, true},
		{PaymentPaid, PaymentPending, false},
		{PaymentRefunded, PaymentPaid, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestServiceValidate(t *testing.T) {
	base := Service{
		Name:            "Cut",
		Type:            ServiceIndividual,
		DurationMinutes: 30,
		Capacity:        1,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid individual service rejected: %v", err)
	}

	bad := base
	bad.DurationMinutes = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("zero duration should be rejected")
	}

	bad = base
	bad.Capacity = 3
	if err := bad.Validate(); err == nil {
		t.Fatal("individual service with capacity 3 should be rejected")
	}

	class := Service{
		Name:             "Yoga",
		Type:             ServiceClass,
		DurationMinutes:  60,
		Capacity:         8,
		ClassDays:        []int{1, 3},
		ClassStartMinute: 18 * 60,
	}
	if err := class.Validate(); err != nil {
		t.Fatalf("valid class service rejected: %v", err)
	}

	class.ClassDays = nil
	if err := class.Validate(); err == nil {
		t.Fatal("class without class days should be rejected")
	}

	recurring := Service{
		Name:             "Course",
		Type:             ServiceRecurring,
		DurationMinutes:  45,
		Capacity:         5,
		ClassDays:        []int{2},
		ClassStartMinute: 10 * 60,
	}
	if err := recurring.Validate(); err == nil {
		t.Fatal("recurring without sessions_per_month should be rejected")
	}
	recurring.SessionsPerMonth = 4
	if err := recurring.Validate(); err != nil {
		t.Fatalf("valid recurring service rejected: %v", err)
	}
}

func TestAppointmentEndTime(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	a := Appointment{StartTime: start, DurationMinutes: 60}
	if !a.EndTime().Equal(start.Add(time.Hour)) {
		t.Fatalf("unexpected end time %s", a.EndTime())
	}
}
