package projects

import "time"

// Project is owned by the editor service. This service only reads it to check
// listing ownership and to locate exported assets.
type Project struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID       string    `gorm:"type:varchar(36);not null;index" json:"userId"`
	Title        string    `json:"title"`
	AssetKey     string    `json:"-"`
	ThumbnailKey string    `json:"thumbnailKey,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
