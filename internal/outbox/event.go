package outbox

// Topic names double as event types: one event type per topic.
const (
	EventAppointmentBooked    = "booking.appointment.booked.v1"
	EventAppointmentConfirmed = "booking.appointment.confirmed.v1"
	EventAppointmentCanceled  = "booking.appointment.canceled.v1"
	EventAppointmentCompleted = "booking.appointment.completed.v1"
	EventPaymentRecorded      = "booking.payment.recorded.v1"
)

// Event is the domain event envelope written to the outbox table. It is
// published to Kafka by the poller, never directly by request handlers.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
