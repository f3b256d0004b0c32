package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is one turn of the assistant transcript. Messages are immutable
// once appended.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	IsUser    bool      `json:"isUser"`
	Timestamp time.Time `json:"timestamp"`
}

// UserFlag returns the 1/0 form used by storage and the wire format.
func (m Message) UserFlag() int {
	if m.IsUser {
		return 1
	}
	return 0
}

type wireMessage struct {
	ID        string          `json:"id"`
	Content   string          `json:"content"`
	IsUser    json.RawMessage `json:"isUser"`
	Timestamp time.Time       `json:"timestamp"`
}

// MarshalJSON emits isUser as 1 or 0, matching the transcript table.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        string    `json:"id"`
		Content   string    `json:"content"`
		IsUser    int       `json:"isUser"`
		Timestamp time.Time `json:"timestamp"`
	}{m.ID, m.Content, m.UserFlag(), m.Timestamp})
}

// UnmarshalJSON accepts isUser as 1/0 or true/false.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	var isUser bool
	switch string(w.IsUser) {
	case "", "null", "0", "false":
		isUser = false
	case "1", "true":
		isUser = true
	default:
		return fmt.Errorf("invalid isUser value %s", w.IsUser)
	}

	*m = Message{ID: w.ID, Content: w.Content, IsUser: isUser, Timestamp: w.Timestamp}
	return nil
}
