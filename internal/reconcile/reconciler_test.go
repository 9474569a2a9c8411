package reconcile

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"smokewatch-backend/internal/apperr"
	"smokewatch-backend/internal/model"
	"smokewatch-backend/internal/store"
)

type vendorCall struct {
	user   string
	device string
}

// fakeVendor is a scripted VendorBinder that records every call.
type fakeVendor struct {
	lookupID  string
	lookupErr error
	bindErr   error
	unbindErr error

	lookupCalls int
	bindCalls   []vendorCall
	unbindCalls []vendorCall
}

func (f *fakeVendor) LookupByName(ctx context.Context, userID, productID, name string) (string, error) {
	f.lookupCalls++
	if f.lookupErr != nil {
		return "", f.lookupErr
	}
	return f.lookupID, nil
}

func (f *fakeVendor) Bind(ctx context.Context, userID, deviceID string) error {
	f.bindCalls = append(f.bindCalls, vendorCall{userID, deviceID})
	return f.bindErr
}

func (f *fakeVendor) Unbind(ctx context.Context, userID, deviceID string) error {
	f.unbindCalls = append(f.unbindCalls, vendorCall{userID, deviceID})
	return f.unbindErr
}

func newTestStore(t *testing.T) store.Store {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	require.NoError(t, db.AutoMigrate(&model.Device{}, &model.NotificationToken{}, &model.DispatchConfig{}))
	return store.NewGormStore(db)
}

func TestRegisterHappyPath(t *testing.T) {
	vendor := &fakeVendor{lookupID: "D1"}
	s := newTestStore(t)
	r := NewReconciler(vendor, s)

	dev, err := r.Register(context.Background(), "u1", "P1", "dev-aa")
	require.NoError(t, err)

	assert.NotEmpty(t, dev.UUID, "a fresh uuid is minted")
	assert.Equal(t, "u1", dev.OwnerUserID)
	assert.Equal(t, "D1", dev.VendorDeviceID)
	assert.WithinDuration(t, time.Now().UTC(), dev.CreatedAt, 5*time.Second)

	require.Len(t, vendor.bindCalls, 1, "vendor bind called once")
	assert.Equal(t, vendorCall{"u1", "D1"}, vendor.bindCalls[0])
	assert.Empty(t, vendor.unbindCalls)

	stored, err := s.DeviceByVendorID(context.Background(), "D1")
	require.NoError(t, err)
	require.NotNil(t, stored, "registry insert called once")
	assert.Equal(t, dev.UUID, stored.UUID)
}

func TestRegisterUnknownDevice(t *testing.T) {
	vendor := &fakeVendor{lookupErr: apperr.NotFound("DEVICE_NOT_FOUND")}
	r := NewReconciler(vendor, newTestStore(t))

	_, err := r.Register(context.Background(), "u1", "P1", "dev-aa")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Empty(t, vendor.bindCalls, "no bind attempted for an unknown device")
}

func TestRegisterTwiceIsConflict(t *testing.T) {
	vendor := &fakeVendor{lookupID: "D1"}
	s := newTestStore(t)
	r := NewReconciler(vendor, s)

	_, err := r.Register(context.Background(), "u1", "P1", "dev-aa")
	require.NoError(t, err)

	_, err = r.Register(context.Background(), "u1", "P1", "dev-aa")
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, "DEVICE_ALREADY_REGISTERED", apperr.Detail(err))

	// Exactly one row and one bind remain.
	devices, err := s.ListDevices(context.Background(), "u1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, devices, 1)
	assert.Len(t, vendor.bindCalls, 1)
}

func TestRegisterReassignsFromOtherOwner(t *testing.T) {
	vendor := &fakeVendor{lookupID: "D1"}
	s := newTestStore(t)
	r := NewReconciler(vendor, s)

	first, err := r.Register(context.Background(), "alice", "P1", "dev-aa")
	require.NoError(t, err)

	dev, err := r.Register(context.Background(), "bob", "P1", "dev-aa")
	require.NoError(t, err)

	// The device was unbound under the previous owner's identity.
	require.Len(t, vendor.unbindCalls, 1)
	assert.Equal(t, vendorCall{"alice", "D1"}, vendor.unbindCalls[0])

	// Bob owns the device now; Alice's row is gone.
	assert.NotEqual(t, first.UUID, dev.UUID, "reassignment mints a fresh uuid")
	stored, err := s.DeviceByVendorID(context.Background(), "D1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "bob", stored.OwnerUserID)

	gone, err := s.DeviceByUUID(context.Background(), "alice", first.UUID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestRegisterReassignAbortsWhenUnbindFails(t *testing.T) {
	vendor := &fakeVendor{lookupID: "D1"}
	s := newTestStore(t)
	r := NewReconciler(vendor, s)

	_, err := r.Register(context.Background(), "alice", "P1", "dev-aa")
	require.NoError(t, err)

	vendor.unbindErr = apperr.Upstream("VENDOR_UNBIND_FAILED", fmt.Errorf("vendor unbind returned %q", "denied"))
	_, err = r.Register(context.Background(), "bob", "P1", "dev-aa")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))

	// Alice keeps the device.
	stored, err := s.DeviceByVendorID(context.Background(), "D1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "alice", stored.OwnerUserID)
}

func TestRegisterBindFailureLeavesNoRow(t *testing.T) {
	vendor := &fakeVendor{
		lookupID: "D1",
		bindErr:  apperr.Upstream("VENDOR_BIND_FAILED", fmt.Errorf("vendor bind returned %q", "denied")),
	}
	s := newTestStore(t)
	r := NewReconciler(vendor, s)

	_, err := r.Register(context.Background(), "u1", "P1", "dev-aa")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))

	stored, err := s.DeviceByVendorID(context.Background(), "D1")
	require.NoError(t, err)
	assert.Nil(t, stored, "no orphan row on bind failure")
}

func TestUnregister(t *testing.T) {
	vendor := &fakeVendor{lookupID: "D1"}
	s := newTestStore(t)
	r := NewReconciler(vendor, s)

	_, err := r.Register(context.Background(), "u1", "P1", "dev-aa")
	require.NoError(t, err)

	require.NoError(t, r.Unregister(context.Background(), "u1", "P1", "dev-aa"))

	require.Len(t, vendor.unbindCalls, 1)
	assert.Equal(t, vendorCall{"u1", "D1"}, vendor.unbindCalls[0])

	stored, err := s.DeviceByVendorID(context.Background(), "D1")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestUnregisterWithoutRow(t *testing.T) {
	vendor := &fakeVendor{lookupID: "D1"}
	r := NewReconciler(vendor, newTestStore(t))

	err := r.Unregister(context.Background(), "u1", "P1", "dev-aa")
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, "DEVICE_NOT_REGISTERED", apperr.Detail(err))
	assert.Empty(t, vendor.unbindCalls, "no vendor mutation for an unregistered device")
}

func TestUnregisterKeepsRowWhenUnbindFails(t *testing.T) {
	vendor := &fakeVendor{lookupID: "D1"}
	s := newTestStore(t)
	r := NewReconciler(vendor, s)

	_, err := r.Register(context.Background(), "u1", "P1", "dev-aa")
	require.NoError(t, err)

	vendor.unbindErr = apperr.Upstream("VENDOR_UNBIND_FAILED", fmt.Errorf("vendor unbind returned %q", "denied"))
	err = r.Unregister(context.Background(), "u1", "P1", "dev-aa")
	require.Error(t, err)

	// Favor "still registered" over a false unregister.
	stored, err := s.DeviceByVendorID(context.Background(), "D1")
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestUnregisterByUUID(t *testing.T) {
	vendor := &fakeVendor{lookupID: "D1"}
	s := newTestStore(t)
	r := NewReconciler(vendor, s)

	dev, err := r.Register(context.Background(), "u1", "P1", "dev-aa")
	require.NoError(t, err)
	vendor.lookupCalls = 0

	require.NoError(t, r.UnregisterByUUID(context.Background(), "u1", dev.UUID))
	assert.Zero(t, vendor.lookupCalls, "the uuid path needs no vendor name lookup")

	stored, err := s.DeviceByVendorID(context.Background(), "D1")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestUnregisterByUUIDUnknown(t *testing.T) {
	vendor := &fakeVendor{lookupID: "D1"}
	r := NewReconciler(vendor, newTestStore(t))

	err := r.UnregisterByUUID(context.Background(), "u1", "no-such-uuid")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Zero(t, vendor.lookupCalls)
	assert.Empty(t, vendor.unbindCalls, "zero vendor calls for an unknown uuid")
}

func TestUnregisterByUUIDOtherOwner(t *testing.T) {
	vendor := &fakeVendor{lookupID: "D1"}
	s := newTestStore(t)
	r := NewReconciler(vendor, s)

	dev, err := r.Register(context.Background(), "alice", "P1", "dev-aa")
	require.NoError(t, err)

	err = r.UnregisterByUUID(context.Background(), "bob", dev.UUID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestOwnershipUniquenessAcrossSequences(t *testing.T) {
	vendor := &fakeVendor{lookupID: "D1"}
	s := newTestStore(t)
	r := NewReconciler(vendor, s)
	ctx := context.Background()

	_, err := r.Register(ctx, "alice", "P1", "dev-aa")
	require.NoError(t, err)
	_, err = r.Register(ctx, "bob", "P1", "dev-aa")
	require.NoError(t, err)
	require.NoError(t, r.Unregister(ctx, "bob", "P1", "dev-aa"))
	_, err = r.Register(ctx, "alice", "P1", "dev-aa")
	require.NoError(t, err)

	// After any error-free sequence at most one row references D1.
	var count int64
	s.DB().Model(&model.Device{}).Where("vendor_device_id = ?", "D1").Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestPurgeAccount(t *testing.T) {
	vendor := &fakeVendor{lookupID: "D1"}
	s := newTestStore(t)
	r := NewReconciler(vendor, s)
	ctx := context.Background()

	_, err := r.Register(ctx, "u1", "P1", "dev-aa")
	require.NoError(t, err)
	require.NoError(t, s.SaveNotificationToken(ctx, "u1", "tok-1"))

	require.NoError(t, r.PurgeAccount(ctx, "u1"))

	require.Len(t, vendor.unbindCalls, 1)
	devices, err := s.ListDevices(ctx, "u1", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, devices)
	tokens, err := s.TokensForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, tokens)
}
