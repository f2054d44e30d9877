package websocket

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	// Client to Server
	MessageTypePing MessageType = "PING"

	// Server to Client
	MessageTypePong           MessageType = "PONG"
	MessageTypeProfileUpdated MessageType = "PROFILE_UPDATED"
	MessageTypeNotice         MessageType = "NOTICE"
	MessageTypeRedirect       MessageType = "REDIRECT"
	MessageTypeOpenURL        MessageType = "OPEN_URL"
	MessageTypeError          MessageType = "ERROR"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Seq       uint64          `json:"seq,omitempty"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	msg := &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
	}
	if payload == nil {
		return msg, nil
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	msg.Payload = payloadBytes
	return msg, nil
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
