// Package entitlement tracks which devices have paid ("Pro") access.
//
// A device entitlement is a boolean projection of the subscription state as
// last communicated by the payment provider, plus the linked billing
// customer ID. Records are created implicitly on first write and never
// deleted, only flipped between active and inactive.
package entitlement

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned by CustomerID when a device has no linked
// billing customer.
var ErrNotFound = errors.New("entitlement: not found")

// Store is the entitlement port. Two production implementations exist:
// FileStore for single-instance deployments and RedisStore for clustered
// ones. All writes are idempotent upserts; re-applying the same value is a
// no-op in effect, which is what makes concurrent duplicate webhook
// deliveries safe without any cross-request locking.
type Store interface {
	// ProStatus reports whether the device currently has Pro access.
	// An absent record reads as false.
	ProStatus(ctx context.Context, deviceID string) (bool, error)

	// SetProStatus idempotently upserts the Pro flag for a device.
	SetProStatus(ctx context.Context, deviceID string, isPro bool) error

	// CustomerID returns the billing customer linked to the device, or
	// ErrNotFound if none has been linked.
	CustomerID(ctx context.Context, deviceID string) (string, error)

	// SetCustomerID idempotently upserts the linked billing customer.
	// Last write wins.
	SetCustomerID(ctx context.Context, deviceID, customerID string) error

	// Ping checks backend connectivity (used for readiness probes).
	Ping(ctx context.Context) error

	Close() error
}

// ActivatePro flips a device to Pro. Called after a successful checkout or
// subscription activation.
func ActivatePro(ctx context.Context, s Store, deviceID string) error {
	if err := s.SetProStatus(ctx, deviceID, true); err != nil {
		return err
	}
	log.Info().Str("device_id", deviceID).Msg("Pro activated")
	return nil
}

// DeactivatePro flips a device off Pro (cancellation, unpaid).
func DeactivatePro(ctx context.Context, s Store, deviceID string) error {
	if err := s.SetProStatus(ctx, deviceID, false); err != nil {
		return err
	}
	log.Info().Str("device_id", deviceID).Msg("Pro deactivated")
	return nil
}

// ProStatusOrFalse wraps ProStatus for caller-visible request paths: a
// backend failure is logged and reads as not-Pro (fail closed) rather than
// failing the request.
func ProStatusOrFalse(ctx context.Context, s Store, deviceID string) bool {
	isPro, err := s.ProStatus(ctx, deviceID)
	if err != nil {
		log.Error().Err(err).Str("device_id", deviceID).Msg("entitlement lookup failed; treating as not Pro")
		return false
	}
	return isPro
}
