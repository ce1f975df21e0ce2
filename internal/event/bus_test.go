package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishToSubscriber(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var got []Event
	bus.Subscribe(DecisionMade, func(ev Event) {
		got = append(got, ev)
	})

	bus.Publish(DecisionMade, "payload")
	bus.Publish(BufferRefreshed, "other")

	require.Len(t, got, 1)
	assert.Equal(t, DecisionMade, got[0].Type)
	assert.Equal(t, "payload", got[0].Data)
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int
	bus.SubscribeAll(func(ev Event) { count++ })

	bus.Publish(DecisionMade, nil)
	bus.Publish(InstanceAppeared, nil)
	bus.Publish(InstanceRemoved, nil)

	assert.Equal(t, 3, count)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int
	unsub := bus.Subscribe(MessageSent, func(ev Event) { count++ })

	bus.Publish(MessageSent, nil)
	unsub()
	bus.Publish(MessageSent, nil)

	assert.Equal(t, 1, count)
}

func TestBus_PublishAfterCloseIsNoop(t *testing.T) {
	bus := NewBus()

	var count int
	bus.Subscribe(SelectionFound, func(ev Event) { count++ })

	require.NoError(t, bus.Close())
	bus.Publish(SelectionFound, nil)
	assert.Zero(t, count)
}

func TestBus_SubscribeAfterCloseIsNoop(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Close())

	unsub := bus.Subscribe(DecisionMade, func(ev Event) {})
	assert.NotNil(t, unsub)
	unsub()
}

func TestBus_CloseTwice(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())
}
