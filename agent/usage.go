package agent

import (
	"go.uber.org/zap"

	"github.com/BaSui01/fixflow/types"
)

// UsageSink receives per-turn token usage events. Record must not block the
// run loop; sinks drop events rather than stall.
type UsageSink interface {
	Record(event types.UsageEvent)
}

// ChannelSink buffers usage events on a channel for an external consumer.
// When the buffer is full the event is dropped and counted.
type ChannelSink struct {
	ch      chan types.UsageEvent
	logger  *zap.Logger
	dropped func()
}

// NewChannelSink creates a sink with the given buffer size.
func NewChannelSink(buffer int, logger *zap.Logger) *ChannelSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelSink{
		ch:     make(chan types.UsageEvent, buffer),
		logger: logger,
	}
}

// Record enqueues the event, dropping it when the buffer is full.
func (s *ChannelSink) Record(event types.UsageEvent) {
	select {
	case s.ch <- event:
	default:
		s.logger.Warn("usage event dropped, sink buffer full",
			zap.String("model", event.Model))
	}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan types.UsageEvent {
	return s.ch
}

var _ UsageSink = (*ChannelSink)(nil)
