package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType represents the type of message
type MessageType string

const (
	// Subscriber to server
	MsgTypeKeepalive MessageType = "keepalive"

	// Server to subscriber
	MsgTypeAck   MessageType = "ack"
	MsgTypeAlert MessageType = "alert"
)

// BaseMessage is the common structure for all subscriber messages
type BaseMessage struct {
	Type MessageType `json:"type"`
}

// KeepaliveMessage is the only message subscribers are expected to send
type KeepaliveMessage struct {
	Type MessageType `json:"type"`
}

// AckMessage is sent by the server in response to a keepalive
type AckMessage struct {
	Type   MessageType `json:"type"`
	Status string      `json:"status"`
}

const AckStatusAlive = "alive"

// AlertNotification is the payload pushed to subscribers and published to
// the alert topic when a sensor batch fires.
type AlertNotification struct {
	Type      MessageType `json:"type"`
	SensorID  string      `json:"sensor_id"`
	Message   string      `json:"message"`
	Min       float64     `json:"min"`
	Max       float64     `json:"max"`
	Avg       float64     `json:"current_avg"`
	Threshold float64     `json:"threshold"`
	FiredAt   time.Time   `json:"fired_at"`
}

// ParseSubscriberMessage parses a message received on the alert channel.
// Anything other than a keepalive is rejected.
func ParseSubscriberMessage(data []byte) (*KeepaliveMessage, error) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if base.Type != MsgTypeKeepalive {
		return nil, fmt.Errorf("unknown message type: %s", base.Type)
	}

	var msg KeepaliveMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid keepalive message: %w", err)
	}
	return &msg, nil
}

// NewAckMessage creates a new acknowledgment message
func NewAckMessage(status string) *AckMessage {
	return &AckMessage{
		Type:   MsgTypeAck,
		Status: status,
	}
}

// EncodeAlertNotification encodes an AlertNotification to JSON
func EncodeAlertNotification(alert *AlertNotification) ([]byte, error) {
	return json.Marshal(alert)
}

// DecodeAlertNotification decodes JSON to AlertNotification
func DecodeAlertNotification(data []byte) (*AlertNotification, error) {
	var alert AlertNotification
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}
