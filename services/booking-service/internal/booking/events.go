package booking

// Kafka topics, one per event type. The notification service consumes all
// three.
const (
	EventBooked    = "booking.appointment.booked.v1"
	EventEdited    = "booking.appointment.edited.v1"
	EventCancelled = "booking.appointment.cancelled.v1"
)

// EventItem is one child's appointment inside an event payload.
type EventItem struct {
	AppointmentID string `json:"appointment_id"`
	ChildName     string `json:"child_name"`
	Slot          string `json:"slot"`
}

// AppointmentEvent is the payload for all three appointment topics. For
// booked events Items holds the whole batch; edited and cancelled events
// carry a single item. Previous is set on edits only.
type AppointmentEvent struct {
	UserID    string      `json:"user_id"`
	UserName  string      `json:"user_name"`
	UserEmail string      `json:"user_email"`
	Date      string      `json:"date"`
	Staff     string      `json:"staff"`
	Service   string      `json:"service"`
	Items     []EventItem `json:"items"`

	Previous *EventSnapshot `json:"previous,omitempty"`
}

// EventSnapshot captures the pre-edit state so the email can say what
// changed.
type EventSnapshot struct {
	Date      string `json:"date"`
	Slot      string `json:"slot"`
	Staff     string `json:"staff"`
	Service   string `json:"service"`
	ChildName string `json:"child_name"`
}
