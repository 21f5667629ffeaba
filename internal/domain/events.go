package domain

import "time"

// QueueChangedEvent рассылается подписчикам живой очереди
type QueueChangedEvent struct {
	Queue     string        `json:"queue"`
	Members   []QueueMember `json:"members"`
	ChangedAt time.Time     `json:"changed_at"`
}

// StreamMessage - сообщение из Redis Stream
type StreamMessage struct {
	ID   string
	Data string
}
