package adapters

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Marketen/duties-traffic-generator/internal/application/domain"
	"github.com/Marketen/duties-traffic-generator/internal/application/ports"
)

// LogPublisher writes one log line per message instead of sending it.
type LogPublisher struct {
	log        zerolog.Logger
	forkDigest string
}

var _ ports.MessagePublisher = (*LogPublisher)(nil)

func NewLogPublisher(log zerolog.Logger, forkDigest string) *LogPublisher {
	return &LogPublisher{log: log, forkDigest: forkDigest}
}

func (p *LogPublisher) Publish(_ context.Context, msg domain.Message, payload []byte) error {
	p.log.Info().
		Str("topic", TopicName(p.forkDigest, msg)).
		Stringer("kind", msg.Kind).
		Uint64("slot", uint64(msg.Slot)).
		Uint64("validator", uint64(msg.Validator)).
		Int("bytes", len(payload)).
		Msg("publish")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
