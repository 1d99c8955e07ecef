package mqtt

// Handler receives an inbound message.
type Handler func(topic string, payload []byte)

// Session is the part of the MQTT session the controller depends on.
type Session interface {
	// Subscribe registers h for messages on topic.
	Subscribe(topic string, h Handler) error

	// Publish sends payload to topic.
	Publish(topic string, payload []byte) error
}
