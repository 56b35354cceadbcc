package ports

import (
	"context"

	"github.com/Marketen/duties-traffic-generator/internal/application/domain"
)

// PayloadSynthesizer turns a message into a body of plausible size.
type PayloadSynthesizer interface {
	Payload(msg domain.Message) ([]byte, error)
}

// MessagePublisher is the transport the generated traffic is handed to.
type MessagePublisher interface {
	// Publish sends the payload on the topic the message belongs to.
	Publish(ctx context.Context, msg domain.Message, payload []byte) error

	Close() error
}

// MessageSource is a demand-driven sequence of messages.
type MessageSource interface {
	// Next blocks until a message is available or ctx is done.
	Next(ctx context.Context) (domain.Message, error)
}
