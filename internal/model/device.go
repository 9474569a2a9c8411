package model

import "time"

// Device mirrors one vendor-side device binding in the local registry.
// UUID is minted locally on registration and is the only identifier ever
// exposed to callers; VendorDeviceID is the vendor's stable id for the
// physical unit.
type Device struct {
	UUID            string    `gorm:"primaryKey;size:36" json:"uuid"`
	OwnerUserID     string    `gorm:"index;size:64;not null" json:"-"`
	VendorDeviceID  string    `gorm:"uniqueIndex;size:64;not null" json:"-"`
	VendorProductID string    `gorm:"size:64;not null" json:"product_id"`
	DisplayName     string    `gorm:"size:256" json:"name"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
}
