package websocket

import (
	"fmt"

	"github.com/dom/blueming-client/internal/events"
)

var topicMessageTypes = map[events.Topic]MessageType{
	events.TopicProfileUpdated: MessageTypeProfileUpdated,
	events.TopicNotice:         MessageTypeNotice,
	events.TopicRedirect:       MessageTypeRedirect,
	events.TopicOpenURL:        MessageTypeOpenURL,
}

// ForwardedTopics are the bus topics pushed to connected UIs.
func ForwardedTopics() []events.Topic {
	return []events.Topic{
		events.TopicProfileUpdated,
		events.TopicNotice,
		events.TopicRedirect,
		events.TopicOpenURL,
	}
}

// MessageFromEvent converts a bus event into the wire message for it.
func MessageFromEvent(evt events.Event) (*Message, error) {
	msgType, ok := topicMessageTypes[evt.Topic]
	if !ok {
		return nil, fmt.Errorf("no message type for topic %q", evt.Topic)
	}
	msg, err := NewMessage(msgType, evt.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	if !evt.At.IsZero() {
		msg.Timestamp = evt.At.UnixMilli()
	}
	return msg, nil
}
