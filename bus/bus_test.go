package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"argus/core"
)

func TestTopicPublishReachesAllSubscribers(t *testing.T) {
	topic := NewTopic[core.SecurityEvent]("event", zap.NewNop().Sugar())

	var first, second []string
	topic.Subscribe(func(ev core.SecurityEvent) { first = append(first, ev.ID) })
	topic.Subscribe(func(ev core.SecurityEvent) { second = append(second, ev.ID) })

	topic.Publish(core.SecurityEvent{ID: "e1"})
	topic.Publish(core.SecurityEvent{ID: "e2"})

	assert.Equal(t, []string{"e1", "e2"}, first)
	assert.Equal(t, []string{"e1", "e2"}, second)
}

func TestTopicPanickingSubscriberIsIsolated(t *testing.T) {
	topic := NewTopic[string]("test", zap.NewNop().Sugar())

	var delivered []string
	topic.Subscribe(func(string) { panic("broken subscriber") })
	topic.Subscribe(func(v string) { delivered = append(delivered, v) })

	assert.NotPanics(t, func() { topic.Publish("payload") })
	assert.Equal(t, []string{"payload"}, delivered,
		"a failing handler must not prevent other handlers from running")
}

func TestTopicUnsubscribeIsIdempotent(t *testing.T) {
	topic := NewTopic[int]("test", zap.NewNop().Sugar())

	calls := 0
	unsubscribe := topic.Subscribe(func(int) { calls++ })
	topic.Publish(1)

	unsubscribe()
	unsubscribe() // second call is a no-op
	topic.Publish(2)

	assert.Equal(t, 1, calls)
	assert.Zero(t, topic.Len())
}

func TestTopicSubscribersAreIndependent(t *testing.T) {
	topic := NewTopic[int]("test", zap.NewNop().Sugar())

	var a, b int
	unsubA := topic.Subscribe(func(v int) { a += v })
	topic.Subscribe(func(v int) { b += v })

	topic.Publish(5)
	unsubA()
	topic.Publish(7)

	assert.Equal(t, 5, a)
	assert.Equal(t, 12, b)
	assert.Equal(t, 1, topic.Len())
}
