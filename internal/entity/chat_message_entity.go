package entity

import "time"

type ChatMessage struct {
	Role      string
	Content   string
	Timestamp time.Time
}
