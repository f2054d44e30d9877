// Package events is the application-scoped publish/subscribe channel used
// to notify decoupled parts of the client (profile updates, user notices,
// navigation requests).
package events

import (
	"log/slog"
	"sync"
	"time"
)

type Topic string

const (
	TopicProfileUpdated Topic = "profile-updated"
	TopicNotice         Topic = "notice"
	TopicRedirect       Topic = "redirect"
	TopicOpenURL        Topic = "open-url"
)

type Event struct {
	Topic   Topic
	Payload any
	At      time.Time
}

// Notice is a blocking user-facing message.
type Notice struct {
	Message string `json:"message"`
}

// Redirect asks the UI to navigate. Destination names an in-app route;
// URL, when set, is a hard navigation.
type Redirect struct {
	Destination string `json:"destination,omitempty"`
	URL         string `json:"url,omitempty"`
}

// OpenURL asks the UI to open URL in a new browsing context.
type OpenURL struct {
	URL string `json:"url"`
}

type subscription struct {
	ch     chan Event
	topics map[Topic]bool
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscription
	nextID int
	closed bool
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[int]*subscription),
		logger: logger,
	}
}

// Subscribe registers for the given topics (all topics when none given).
// The returned cancel func unregisters and closes the channel.
func (b *Bus) Subscribe(buffer int, topics ...Topic) (<-chan Event, func()) {
	sub := &subscription{
		ch:     make(chan Event, buffer),
		topics: make(map[Topic]bool, len(topics)),
	}
	for _, t := range topics {
		sub.topics[t] = true
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if s, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(s.ch)
			}
			b.mu.Unlock()
		})
	}
}

func (b *Bus) Publish(topic Topic, payload any) {
	evt := Event{Topic: topic, Payload: payload, At: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if len(sub.topics) > 0 && !sub.topics[topic] {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			b.logger.Warn("[events.Publish] subscriber buffer full, event dropped",
				slog.String("topic", string(topic)))
		}
	}
}

func (b *Bus) Notice(message string) {
	b.Publish(TopicNotice, Notice{Message: message})
}

func (b *Bus) Redirect(destination, url string) {
	b.Publish(TopicRedirect, Redirect{Destination: destination, URL: url})
}

// Close unregisters every subscriber and closes their channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}
