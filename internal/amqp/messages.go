package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidMessage = errors.New("invalid month changed message")

// MonthChangedMessage announces a new version of a month document. It
// carries no tree; consumers read the document from the database.
type MonthChangedMessage struct {
	ID        string    `json:"id"`
	Origin    string    `json:"origin"`
	Month     string    `json:"month"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMonthChangedMessage(origin, month string, version int64) *MonthChangedMessage {
	return &MonthChangedMessage{
		ID:        uuid.NewString(),
		Origin:    origin,
		Month:     month,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *MonthChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MonthChangedMessageFromJSON decodes and validates a message.
func MonthChangedMessageFromJSON(data []byte) (*MonthChangedMessage, error) {
	var msg MonthChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Month == "" {
		return nil, ErrInvalidMessage
	}
	return &msg, nil
}
