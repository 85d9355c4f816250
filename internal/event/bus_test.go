package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryBusDeliversToEverySubscriber(t *testing.T) {
	bus := NewBus(nil)

	first, unsubscribeFirst := bus.Subscribe()
	defer unsubscribeFirst()
	second, unsubscribeSecond := bus.Subscribe()
	defer unsubscribeSecond()

	bus.Publish(New(TypeLogout, "u1", SessionPayload{UserID: "u1", Status: "success"}))

	for _, ch := range []<-chan Event{first, second} {
		received := <-ch
		assert.Equal(t, TypeLogout, received.Type)
		assert.Equal(t, "u1", received.ActorID)
		assert.NotEmpty(t, received.ID)
		assert.NotEmpty(t, received.Timestamp)
	}
}

func TestInMemoryBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(nil)

	ch, unsubscribe := bus.Subscribe()
	unsubscribe()
	unsubscribe()

	_, open := <-ch
	require.False(t, open)

	bus.Publish(New(TypeLoginFailed, "", nil))
}

func TestInMemoryBusDropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewBus(nil)

	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish(New(TypeTokenRefreshed, "u1", nil))
	}

	require.Len(t, ch, subscriberBuffer)
}
