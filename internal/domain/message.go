package domain

import "time"

// Speaker identifies who authored a conversation message.
type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerBot  Speaker = "bot"
)

// Message is one conversation entry, used both for the short in-session
// history window and for the durable transcript.
type Message struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
