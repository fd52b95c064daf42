package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvOne(t *testing.T, ch <-chan *LocalMessage) *LocalMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestPublishReachesSubscriber(t *testing.T) {
	ps := NewPubSub(8)
	ch, cancel, err := ps.Subscribe(context.Background(), "killfeed")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(context.Background(), "killfeed", "husk down"))

	msg := recvOne(t, ch)
	assert.Equal(t, "killfeed", msg.Channel)
	assert.Equal(t, "husk down", msg.Payload)
}

func TestSubscribeMultipleChannelsShareOneStream(t *testing.T) {
	ps := NewPubSub(8)
	ch, cancel, err := ps.Subscribe(context.Background(), "announce", "killfeed")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(context.Background(), "announce", "storm closing"))
	require.NoError(t, ps.Publish(context.Background(), "killfeed", "husk down"))

	first := recvOne(t, ch)
	second := recvOne(t, ch)
	assert.Equal(t, "announce", first.Channel)
	assert.Equal(t, "killfeed", second.Channel)
}

func TestPublishToUnsubscribedChannelIsDropped(t *testing.T) {
	ps := NewPubSub(8)
	ch, cancel, err := ps.Subscribe(context.Background(), "announce")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(context.Background(), "killfeed", "unheard"))

	select {
	case msg := <-ch:
		t.Fatalf("unexpected message: %+v", msg)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestFullBufferDropsInsteadOfBlocking(t *testing.T) {
	ps := NewPubSub(1)
	ch, cancel, err := ps.Subscribe(context.Background(), "announce")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(context.Background(), "announce", "kept"))
	require.NoError(t, ps.Publish(context.Background(), "announce", "dropped"))

	assert.Equal(t, "kept", recvOne(t, ch).Payload)
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message: %+v", msg)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestCancelClosesStream(t *testing.T) {
	ps := NewPubSub(8)
	ch, cancel, err := ps.Subscribe(context.Background(), "announce")
	require.NoError(t, err)

	cancel()
	cancel() // safe to repeat

	_, open := <-ch
	assert.False(t, open)

	// Publishing after cancel must not panic on the closed channel.
	require.NoError(t, ps.Publish(context.Background(), "announce", "late"))
}
