package payments

import "time"

// ProcessedEvent marks a provider event as applied. It is written in the same
// transaction as the event's effect.
type ProcessedEvent struct {
	ExternalEventID string    `gorm:"type:varchar(255);primaryKey" json:"externalEventId"`
	Kind            string    `gorm:"type:varchar(32);index" json:"kind"`
	ProcessedAt     time.Time `gorm:"not null" json:"processedAt"`
}

func (ProcessedEvent) TableName() string {
	return "processed_webhook_events"
}
