// Package outbox implements the transactional outbox shared by the auth and
// booking services: domain events are written in the same transaction as the
// state change, then relayed to Kafka by a polling publisher. The Kafka topic
// name equals EventType (event per topic).
package outbox

type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
