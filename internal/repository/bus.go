package repository

// MessageBus abstracts event publication so the repository does not depend
// on a concrete transport. The NATS implementation lives in
// internal/transport/nats; "none" deployments use NopBus.
type MessageBus interface {
	Publish(topic string, data []byte) error
}

// NopBus drops every event. Used when no bus provider is configured.
type NopBus struct{}

func (NopBus) Publish(topic string, data []byte) error { return nil }
