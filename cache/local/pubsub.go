// Package local provides an in-process pub/sub used when the server runs
// without Redis. Announce and killfeed streams fan out through it on single
// node deployments.
package local

import (
	"context"
	"sync"
)

// LocalMessage is one published payload with the channel it arrived on.
type LocalMessage struct {
	Channel string
	Payload string
}

type subscriber struct {
	ch   chan *LocalMessage
	gone bool
}

// LocalPubSub fans messages out to channel subscribers. Delivery is best
// effort: a subscriber that stops draining loses messages rather than
// blocking publishers.
type LocalPubSub struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscriber
	bufSize     int
}

// NewPubSub creates a LocalPubSub whose subscriber channels buffer bufSize
// messages each.
func NewPubSub(bufSize int) *LocalPubSub {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &LocalPubSub{
		subscribers: make(map[string][]*subscriber),
		bufSize:     bufSize,
	}
}

// Publish delivers message to every live subscriber of channel. Full
// subscriber buffers drop the message.
func (p *LocalPubSub) Publish(_ context.Context, channel, message string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, sub := range p.subscribers[channel] {
		if sub.gone {
			continue
		}
		select {
		case sub.ch <- &LocalMessage{Channel: channel, Payload: message}:
		default:
		}
	}
	return nil
}

// Subscribe returns a shared receive channel for the given channels and a
// cancel function. Cancel detaches the subscriber and closes the channel;
// it is safe to call more than once.
func (p *LocalPubSub) Subscribe(_ context.Context, channels ...string) (<-chan *LocalMessage, func(), error) {
	sub := &subscriber{ch: make(chan *LocalMessage, p.bufSize)}

	p.mu.Lock()
	for _, channel := range channels {
		p.subscribers[channel] = append(p.subscribers[channel], sub)
	}
	p.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			sub.gone = true
			for _, channel := range channels {
				p.subscribers[channel] = removeSub(p.subscribers[channel], sub)
			}
			p.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel, nil
}

func removeSub(subs []*subscriber, target *subscriber) []*subscriber {
	out := subs[:0]
	for _, s := range subs {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
