package websocket

import (
	"encoding/json"
	"time"
)

// Message actions pushed to event feed clients.
const (
	ActionAudit          = "audit"
	ActionInactiveReport = "inactive_report"
	ActionError          = "error"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
	SentAt  time.Time   `json:"sentAt"`
}

// Encode marshals a message for the wire.
func Encode(action string, payload interface{}) ([]byte, error) {
	return json.Marshal(Message{Action: action, Payload: payload, SentAt: time.Now().UTC()})
}

// NewErrorMessage creates a JSON-encoded error message.
func NewErrorMessage(text string) []byte {
	data, _ := Encode(ActionError, map[string]string{"error": text})
	return data
}
