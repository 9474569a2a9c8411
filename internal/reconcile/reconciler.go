package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"smokewatch-backend/internal/apperr"
	"smokewatch-backend/internal/model"
	"smokewatch-backend/internal/store"
	"smokewatch-backend/internal/vendorapi"
)

// VendorBinder is the slice of the vendor platform client the reconciler
// depends on.
type VendorBinder interface {
	LookupByName(ctx context.Context, userID, productID, name string) (string, error)
	Bind(ctx context.Context, userID, deviceID string) error
	Unbind(ctx context.Context, userID, deviceID string) error
}

var _ VendorBinder = (*vendorapi.Client)(nil)

// Reconciler orchestrates device registration against the vendor platform
// and the local registry. The ordering rule throughout: the vendor is
// mutated first, the registry second, so the local view never claims a
// binding the vendor does not also hold.
type Reconciler struct {
	vendor VendorBinder
	store  store.Store
	locks  *keyLock
}

// NewReconciler creates a binding reconciler.
func NewReconciler(vendor VendorBinder, s store.Store) *Reconciler {
	return &Reconciler{
		vendor: vendor,
		store:  s,
		locks:  newKeyLock(),
	}
}

// Register claims ownership of the named device for the user.
//
// A row owned by another user triggers unbind-then-rebind: the physical
// sensor only ever belongs to one user, and the newer registration wins
// provided the vendor-side unbind succeeds. A row owned by the same user is
// a conflict; registration is not idempotent for the current owner.
func (r *Reconciler) Register(ctx context.Context, userID, productID, deviceName string) (*model.Device, error) {
	deviceID, err := r.vendor.LookupByName(ctx, userID, productID, deviceName)
	if err != nil {
		return nil, err
	}

	// Serialize the check-then-act sequence per vendor device. The unique
	// index on vendor_device_id backs this up across processes.
	unlock := r.locks.Lock(deviceID)
	defer unlock()

	existing, err := r.store.DeviceByVendorID(ctx, deviceID)
	if err != nil {
		return nil, apperr.Upstream("REGISTRY_LOOKUP_FAILED", err)
	}
	if existing != nil {
		if existing.OwnerUserID == userID {
			return nil, apperr.Conflict("DEVICE_ALREADY_REGISTERED")
		}
		if err := r.reassign(ctx, existing); err != nil {
			return nil, err
		}
	}

	if err := r.vendor.Bind(ctx, userID, deviceID); err != nil {
		// Nothing was written locally, so this path leaves no orphan.
		return nil, err
	}

	dev := &model.Device{
		UUID:            uuid.NewString(),
		OwnerUserID:     userID,
		VendorDeviceID:  deviceID,
		VendorProductID: productID,
		DisplayName:     deviceName,
		CreatedAt:       time.Now().UTC(),
	}
	if err := r.store.CreateDevice(ctx, dev); err != nil {
		if errors.Is(err, store.ErrDeviceConflict) {
			// A concurrent registration won the insert. Roll the vendor bind
			// back so the loser does not hold a dangling binding.
			if uerr := r.vendor.Unbind(ctx, userID, deviceID); uerr != nil {
				log.Printf("Orphan window: vendor bind for device %s (user %s) could not be rolled back: %v", deviceID, userID, uerr)
			}
			return nil, apperr.Conflict("DEVICE_ALREADY_REGISTERED")
		}
		// Vendor holds a binding the registry does not. Left for out-of-band
		// reconciliation.
		log.Printf("Orphan window: device %s bound at vendor for user %s but registry insert failed: %v", deviceID, userID, err)
		return nil, apperr.Upstream("REGISTRY_WRITE_FAILED", err)
	}
	return dev, nil
}

// reassign unbinds the device from its current owner at the vendor and
// removes the stale registry row, then re-checks that the row is really
// gone before the new bind proceeds.
func (r *Reconciler) reassign(ctx context.Context, existing *model.Device) error {
	if err := r.vendor.Unbind(ctx, existing.OwnerUserID, existing.VendorDeviceID); err != nil {
		return err
	}
	if err := r.store.DeleteDevice(ctx, existing.UUID); err != nil {
		log.Printf("Orphan window: device %s unbound at vendor but stale row %s not deleted: %v", existing.VendorDeviceID, existing.UUID, err)
		return apperr.Upstream("REGISTRY_WRITE_FAILED", err)
	}
	again, err := r.store.DeviceByVendorID(ctx, existing.VendorDeviceID)
	if err != nil {
		return apperr.Upstream("REGISTRY_LOOKUP_FAILED", err)
	}
	if again != nil {
		return apperr.Conflict("DEVICE_ALREADY_REGISTERED")
	}
	return nil
}

// Unregister releases the named device. The registry row stays in place when
// the vendor unbind fails, favoring a stale "still registered" over a false
// unregister.
func (r *Reconciler) Unregister(ctx context.Context, userID, productID, deviceName string) error {
	deviceID, err := r.vendor.LookupByName(ctx, userID, productID, deviceName)
	if err != nil {
		return err
	}

	dev, err := r.store.DeviceByOwner(ctx, userID, deviceID)
	if err != nil {
		return apperr.Upstream("REGISTRY_LOOKUP_FAILED", err)
	}
	if dev == nil {
		return apperr.Conflict("DEVICE_NOT_REGISTERED")
	}
	return r.release(ctx, userID, dev)
}

// UnregisterByUUID releases a device keyed by its locally minted uuid. This
// is the preferred path for callers that have listed or created the device
// before: it needs no vendor name lookup.
func (r *Reconciler) UnregisterByUUID(ctx context.Context, userID, deviceUUID string) error {
	dev, err := r.store.DeviceByUUID(ctx, userID, deviceUUID)
	if err != nil {
		return apperr.Upstream("REGISTRY_LOOKUP_FAILED", err)
	}
	if dev == nil {
		return apperr.NotFound("DEVICE_NOT_FOUND")
	}
	return r.release(ctx, userID, dev)
}

func (r *Reconciler) release(ctx context.Context, userID string, dev *model.Device) error {
	if err := r.vendor.Unbind(ctx, userID, dev.VendorDeviceID); err != nil {
		return err
	}
	if err := r.store.DeleteDevice(ctx, dev.UUID); err != nil {
		log.Printf("Orphan window: device %s unbound at vendor but row %s not deleted: %v", dev.VendorDeviceID, dev.UUID, err)
		return apperr.Upstream("REGISTRY_WRITE_FAILED", err)
	}
	return nil
}

// PurgeAccount unregisters every device the user owns and removes the user's
// notification tokens. The first vendor failure aborts so no row outlives
// its vendor-side binding check.
func (r *Reconciler) PurgeAccount(ctx context.Context, userID string) error {
	devices, err := r.store.ListDevices(ctx, userID, 0, 0)
	if err != nil {
		return apperr.Upstream("REGISTRY_LOOKUP_FAILED", err)
	}
	for i := range devices {
		if err := r.release(ctx, userID, &devices[i]); err != nil {
			return fmt.Errorf("purge account %s: %w", userID, err)
		}
	}
	if err := r.store.PurgeUser(ctx, userID); err != nil {
		return apperr.Upstream("REGISTRY_WRITE_FAILED", err)
	}
	return nil
}
