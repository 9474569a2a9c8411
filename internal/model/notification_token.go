package model

import "time"

// NotificationToken holds one opaque push token for a user. A user may have
// several (one per installed app instance); re-registering the same token is
// a no-op.
type NotificationToken struct {
	UserID    string    `gorm:"primaryKey;size:64"`
	Token     string    `gorm:"primaryKey;size:256"`
	CreatedAt time.Time `gorm:"not null"`
}
