package model

import "time"

// DispatchConfig is the per-device emergency escalation setting, created
// lazily on first configuration. An absent row means escalation is not
// configured for the device.
type DispatchConfig struct {
	DeviceUUID string    `gorm:"primaryKey;size:36"`
	Address    string    `gorm:"size:512;not null"`
	Enabled    bool      `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}
