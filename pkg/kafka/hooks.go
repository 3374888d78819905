package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook observes message handling. BeforeHandle may mutate the
// context, message, and payload; a non-nil error skips the handler and
// routes the message through error processing (OnError, DLQ, commit).
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error)
	AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
	OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
}

// NoopHook is the default hook and does nothing.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	return ctx, km, data, nil
}

func (NoopHook) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
}

func (NoopHook) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
}

type ctxKey string

const ctxStartTime ctxKey = "kafka_hook_start_time"

// LatencyHook measures per-message handling latency. Observe receives the
// topic and elapsed seconds after each handled message; OnFailure fires for
// messages that ended in an error. Nil callbacks are skipped.
type LatencyHook struct {
	Observe   func(topic string, seconds float64)
	OnFailure func(topic string)
}

func (h *LatencyHook) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	return context.WithValue(ctx, ctxStartTime, time.Now()), km, data, nil
}

func (h *LatencyHook) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	if h.Observe == nil {
		return
	}
	start, ok := ctx.Value(ctxStartTime).(time.Time)
	if !ok {
		return
	}
	h.Observe(topic, time.Since(start).Seconds())
}

func (h *LatencyHook) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	if h.OnFailure != nil {
		h.OnFailure(topic)
	}
}
