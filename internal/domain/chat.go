package domain

import "time"

// ChatTurn is one question/answer exchange about a document.
type ChatTurn struct {
	ID          string
	UserID      string
	DocumentID  string
	UserMessage string
	BotResponse string
	Timestamp   time.Time
}
