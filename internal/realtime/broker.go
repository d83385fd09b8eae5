// Package realtime provides in-process change notification for live views.
//
// A Broker fans out "something changed" signals per topic. Signals carry no
// payload and coalesce: a subscriber that has not yet consumed the previous
// signal will see at most one pending notification, so slow consumers never
// block publishers. Consumers reload the current state on every signal (see
// Watch), which makes delivery order irrelevant and missed intermediate
// states harmless.
package realtime

import (
	"sync"
)

// Broker is a topic-keyed set of subscribers. The zero value is not usable;
// create one with NewBroker. A nil *Broker is valid and drops all publishes.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]map[*subscriber]struct{}
}

type subscriber struct {
	ch chan struct{}
}

func NewBroker() *Broker {
	return &Broker{topics: make(map[string]map[*subscriber]struct{})}
}

// Subscribe registers interest in topic. The returned channel receives a
// value after every Publish on topic (coalesced). The returned func removes
// the subscription; it is safe to call more than once.
func (b *Broker) Subscribe(topic string) (<-chan struct{}, func()) {
	s := &subscriber{ch: make(chan struct{}, 1)}
	if b == nil {
		return s.ch, func() {}
	}

	b.mu.Lock()
	set, ok := b.topics[topic]
	if !ok {
		set = make(map[*subscriber]struct{})
		b.topics[topic] = set
	}
	set[s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if set, ok := b.topics[topic]; ok {
				delete(set, s)
				if len(set) == 0 {
					delete(b.topics, topic)
				}
			}
		})
	}
}

// Publish signals every subscriber of each topic. It never blocks.
func (b *Broker) Publish(topics ...string) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, topic := range topics {
		for s := range b.topics[topic] {
			select {
			case s.ch <- struct{}{}:
			default:
			}
		}
	}
}

// Subscribers returns the number of live subscriptions on topic.
func (b *Broker) Subscribers(topic string) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// ConversationTopic is signalled whenever a message is added to conversation id.
func ConversationTopic(id string) string { return "conversation:" + id }

// UserConversationsTopic is signalled whenever any conversation of userID is
// created or receives a message.
func UserConversationsTopic(userID string) string { return "user:" + userID + ":conversations" }
