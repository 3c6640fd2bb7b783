package workshop_test

import (
	"testing"

	"github.com/goliatone/go-workshop"
	"github.com/stretchr/testify/assert"
)

func TestBroadcaster_PublishOrder(t *testing.T) {
	b := workshop.NewBroadcaster[int]()

	var got []string
	b.Subscribe(func(v int) { got = append(got, "first") })
	b.Subscribe(func(v int) { got = append(got, "second") })
	b.Subscribe(func(v int) { got = append(got, "third") })

	b.Publish(1)

	assert.Equal(t, []string{"first", "second", "third"}, got)
	assert.Equal(t, 3, b.Len())
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := workshop.NewBroadcaster[string]()

	var calls int
	sub := b.Subscribe(func(string) { calls++ })

	b.Publish("a")
	sub.Unsubscribe()
	sub.Unsubscribe()
	b.Publish("b")

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, b.Len())
}

func TestBroadcaster_ListenerMayUnsubscribeItself(t *testing.T) {
	b := workshop.NewBroadcaster[int]()

	var (
		sub   workshop.Subscription
		calls int
	)
	sub = b.Subscribe(func(int) {
		calls++
		sub.Unsubscribe()
	})

	b.Publish(1)
	b.Publish(2)

	assert.Equal(t, 1, calls)
}

func TestBroadcaster_NilListener(t *testing.T) {
	b := workshop.NewBroadcaster[int]()

	sub := b.Subscribe(nil)
	assert.NotPanics(t, sub.Unsubscribe)
	assert.Equal(t, 0, b.Len())
}
