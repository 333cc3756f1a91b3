package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Change operations carried by ExpenseChangedMessage.
const (
	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

var ErrMalformedMessage = errors.New("malformed expense change message")

// ExpenseChangedMessage announces a write to the expense table. It only
// carries the ID; consumers read the current record from the store.
type ExpenseChangedMessage struct {
	ID        string    `json:"id"`
	Op        string    `json:"op"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseChangedMessage(id, op, origin string, at time.Time) *ExpenseChangedMessage {
	return &ExpenseChangedMessage{
		ID:        id,
		Op:        op,
		Origin:    origin,
		Timestamp: at.UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseChangedMessageFromJSON decodes and checks a message body.
func ExpenseChangedMessageFromJSON(data []byte) (*ExpenseChangedMessage, error) {
	var msg ExpenseChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Join(ErrMalformedMessage, err)
	}
	if msg.ID == "" {
		return nil, errors.Join(ErrMalformedMessage, errors.New("missing id"))
	}
	switch msg.Op {
	case OpCreated, OpUpdated, OpDeleted:
	default:
		return nil, errors.Join(ErrMalformedMessage, errors.New("unknown op "+msg.Op))
	}
	return &msg, nil
}
