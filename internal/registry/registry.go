// Package registry tracks device/pass associations for the wallet protocol.
package registry

import (
	"context"
	"time"

	"github.com/brewpass/brewpass/internal/metrics"
	"github.com/brewpass/brewpass/internal/observability/logger"
	"github.com/brewpass/brewpass/internal/store/core"
)

// Registry is the device registry service. Registration is deliberately
// forgiving: the wallet provider retries nothing, so a registration that
// fails to persist is logged and acknowledged rather than surfaced.
type Registry struct {
	regs core.RegistrationRepository
}

func New(regs core.RegistrationRepository) *Registry {
	return &Registry{regs: regs}
}

// Register records that a device holds a pass. It never returns an error:
// a store failure costs one push notification, not the installation.
func (r *Registry) Register(ctx context.Context, deviceID, passTypeID, serial, pushToken string) {
	reg := &core.DeviceRegistration{
		DeviceID:     deviceID,
		PassTypeID:   passTypeID,
		SerialNumber: serial,
		PushToken:    pushToken,
		UpdatedAt:    time.Now(),
	}
	if err := r.regs.Upsert(ctx, reg); err != nil {
		logger.From(ctx).Warn("device registration not persisted",
			logger.DeviceID(deviceID),
			logger.Serial(serial),
			logger.PassType(passTypeID),
			logger.Err(err))
		return
	}
	metrics.RecordRegistration("register")
	logger.From(ctx).Info("device registered",
		logger.DeviceID(deviceID),
		logger.Serial(serial),
		logger.PassType(passTypeID))
}

// Unregister drops a device/pass association. Removing an absent
// registration is a success: the end state is what was asked for.
func (r *Registry) Unregister(ctx context.Context, deviceID, passTypeID, serial string) error {
	if err := r.regs.Delete(ctx, deviceID, passTypeID, serial); err != nil {
		return err
	}
	metrics.RecordRegistration("unregister")
	logger.From(ctx).Info("device unregistered",
		logger.DeviceID(deviceID),
		logger.Serial(serial),
		logger.PassType(passTypeID))
	return nil
}

// SerialsForDevice lists the serials a device holds, optionally limited to
// passes whose backing record changed after updatedSince.
func (r *Registry) SerialsForDevice(ctx context.Context, deviceID, passTypeID string, updatedSince *time.Time) ([]string, error) {
	return r.regs.SerialsForDevice(ctx, deviceID, passTypeID, updatedSince)
}

// PushTargets returns the push tokens of every device holding a pass,
// deduplicated and with tokenless registrations filtered out.
func (r *Registry) PushTargets(ctx context.Context, serial, passTypeID string) ([]string, error) {
	devices, err := r.regs.DevicesForSerial(ctx, serial, passTypeID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(devices))
	tokens := make([]string, 0, len(devices))
	for _, d := range devices {
		if d.PushToken == "" {
			continue
		}
		if _, dup := seen[d.PushToken]; dup {
			continue
		}
		seen[d.PushToken] = struct{}{}
		tokens = append(tokens, d.PushToken)
	}
	return tokens, nil
}
