package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"smokewatch-backend/internal/model"
)

// ErrDeviceConflict is returned by CreateDevice when another row already
// claims the same vendor device id. The unique index on vendor_device_id is
// the registry-side backstop for the reconciler's ownership invariant.
var ErrDeviceConflict = errors.New("vendor device id already registered")

// Store defines the registry operations the rest of the system depends on.
type Store interface {
	CreateDevice(ctx context.Context, dev *model.Device) error
	DeviceByVendorID(ctx context.Context, vendorDeviceID string) (*model.Device, error)
	DeviceByOwner(ctx context.Context, userID, vendorDeviceID string) (*model.Device, error)
	DeviceByUUID(ctx context.Context, userID, uuid string) (*model.Device, error)
	DeleteDevice(ctx context.Context, uuid string) error
	ListDevices(ctx context.Context, userID string, limit, offset int) ([]model.Device, error)
	RenameDevice(ctx context.Context, userID, uuid, name string) error

	SaveNotificationToken(ctx context.Context, userID, token string) error
	TokensForUser(ctx context.Context, userID string) ([]string, error)

	UpsertDispatchConfig(ctx context.Context, cfg *model.DispatchConfig) error
	DispatchConfigForDevice(ctx context.Context, deviceUUID string) (*model.DispatchConfig, error)

	PurgeUser(ctx context.Context, userID string) error

	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// CreateDevice inserts a registry row. A duplicate vendor device id surfaces
// as ErrDeviceConflict so the reconciler can roll back its vendor-side bind.
func (s *gormStore) CreateDevice(ctx context.Context, dev *model.Device) error {
	if err := s.db.WithContext(ctx).Create(dev).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("create device %s: %w", dev.VendorDeviceID, ErrDeviceConflict)
		}
		return fmt.Errorf("create device %s: %w", dev.VendorDeviceID, err)
	}
	return nil
}

// isDuplicate recognizes a unique-constraint violation from either the
// postgres or the sqlite (test) driver.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}

// DeviceByVendorID looks a device up regardless of owner. Returns (nil, nil)
// when no row exists.
func (s *gormStore) DeviceByVendorID(ctx context.Context, vendorDeviceID string) (*model.Device, error) {
	var dev model.Device
	err := s.db.WithContext(ctx).Where("vendor_device_id = ?", vendorDeviceID).First(&dev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup device by vendor id %s: %w", vendorDeviceID, err)
	}
	return &dev, nil
}

func (s *gormStore) DeviceByOwner(ctx context.Context, userID, vendorDeviceID string) (*model.Device, error) {
	var dev model.Device
	err := s.db.WithContext(ctx).
		Where("owner_user_id = ? AND vendor_device_id = ?", userID, vendorDeviceID).
		First(&dev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup device %s for user %s: %w", vendorDeviceID, userID, err)
	}
	return &dev, nil
}

func (s *gormStore) DeviceByUUID(ctx context.Context, userID, uuid string) (*model.Device, error) {
	var dev model.Device
	err := s.db.WithContext(ctx).
		Where("owner_user_id = ? AND uuid = ?", userID, uuid).
		First(&dev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup device uuid %s for user %s: %w", uuid, userID, err)
	}
	return &dev, nil
}

// DeleteDevice removes the registry row together with its dispatch config.
func (s *gormStore) DeleteDevice(ctx context.Context, uuid string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("device_uuid = ?", uuid).Delete(&model.DispatchConfig{}).Error; err != nil {
			return fmt.Errorf("delete dispatch config for device %s: %w", uuid, err)
		}
		if err := tx.Where("uuid = ?", uuid).Delete(&model.Device{}).Error; err != nil {
			return fmt.Errorf("delete device %s: %w", uuid, err)
		}
		return nil
	})
}

// ListDevices returns the user's devices, newest first.
func (s *gormStore) ListDevices(ctx context.Context, userID string, limit, offset int) ([]model.Device, error) {
	q := s.db.WithContext(ctx).
		Where("owner_user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	var devices []model.Device
	if err := q.Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("list devices for user %s: %w", userID, err)
	}
	return devices, nil
}

// RenameDevice updates the display name of the caller's device. Returns
// gorm.ErrRecordNotFound when the user owns no such device.
func (s *gormStore) RenameDevice(ctx context.Context, userID, uuid, name string) error {
	res := s.db.WithContext(ctx).
		Model(&model.Device{}).
		Where("owner_user_id = ? AND uuid = ?", userID, uuid).
		Update("display_name", name)
	if res.Error != nil {
		return fmt.Errorf("rename device %s: %w", uuid, res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SaveNotificationToken registers a push token for the user. Re-registering
// the same token is a no-op rather than an error.
func (s *gormStore) SaveNotificationToken(ctx context.Context, userID, token string) error {
	row := model.NotificationToken{UserID: userID, Token: token}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("save notification token for user %s: %w", userID, err)
	}
	return nil
}

func (s *gormStore) TokensForUser(ctx context.Context, userID string) ([]string, error) {
	var tokens []string
	err := s.db.WithContext(ctx).
		Model(&model.NotificationToken{}).
		Where("user_id = ?", userID).
		Pluck("token", &tokens).Error
	if err != nil {
		return nil, fmt.Errorf("list tokens for user %s: %w", userID, err)
	}
	return tokens, nil
}

// UpsertDispatchConfig creates the per-device escalation config on first
// write and replaces address/enabled on subsequent writes.
func (s *gormStore) UpsertDispatchConfig(ctx context.Context, cfg *model.DispatchConfig) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_uuid"}},
			DoUpdates: clause.AssignmentColumns([]string{"address", "enabled", "updated_at"}),
		}).
		Create(cfg).Error
	if err != nil {
		return fmt.Errorf("upsert dispatch config for device %s: %w", cfg.DeviceUUID, err)
	}
	return nil
}

// DispatchConfigForDevice returns (nil, nil) when escalation was never
// configured for the device.
func (s *gormStore) DispatchConfigForDevice(ctx context.Context, deviceUUID string) (*model.DispatchConfig, error) {
	var cfg model.DispatchConfig
	err := s.db.WithContext(ctx).Where("device_uuid = ?", deviceUUID).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup dispatch config for device %s: %w", deviceUUID, err)
	}
	return &cfg, nil
}

// PurgeUser removes the user's notification tokens. Device rows (and their
// dispatch configs) are expected to be gone already via Unregister.
func (s *gormStore) PurgeUser(ctx context.Context, userID string) error {
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.NotificationToken{}).Error; err != nil {
		return fmt.Errorf("purge tokens for user %s: %w", userID, err)
	}
	return nil
}
