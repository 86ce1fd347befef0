package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brewpass/brewpass/internal/store/core"
)

// ─── RegistrationRepository ───

type registrationRepo struct{ pool *pgxpool.Pool }

func (r *registrationRepo) Upsert(ctx context.Context, reg *core.DeviceRegistration) error {
	// Last writer wins on the push token: re-registration for the same key is
	// a refresh, never a duplicate.
	const query = `
		INSERT INTO device_registration (device_id, pass_type_id, serial_number, push_token, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (device_id, pass_type_id, serial_number)
		DO UPDATE SET push_token = $4, updated_at = NOW()
	`
	_, err := r.pool.Exec(ctx, query, reg.DeviceID, reg.PassTypeID, reg.SerialNumber, reg.PushToken)
	if err != nil {
		return fmt.Errorf("pg: upsert registration: %w", err)
	}
	return nil
}

func (r *registrationRepo) Delete(ctx context.Context, deviceID, passTypeID, serial string) error {
	const query = `
		DELETE FROM device_registration
		WHERE device_id = $1 AND pass_type_id = $2 AND serial_number = $3
	`
	// Zero rows affected is fine: the provider unregisters defensively.
	_, err := r.pool.Exec(ctx, query, deviceID, passTypeID, serial)
	if err != nil {
		return fmt.Errorf("pg: delete registration: %w", err)
	}
	return nil
}

func (r *registrationRepo) SerialsForDevice(ctx context.Context, deviceID, passTypeID string, updatedSince *time.Time) ([]string, error) {
	// The updatedSince filter compares against the pass record's own
	// modification time, whichever domain the serial belongs to.
	const query = `
		SELECT r.serial_number
		FROM device_registration r
		LEFT JOIN customer c ON c.serial_number = r.serial_number
		LEFT JOIN gift_card g ON g.serial_number = r.serial_number
		WHERE r.device_id = $1 AND r.pass_type_id = $2
		  AND ($3::timestamptz IS NULL
		       OR GREATEST(COALESCE(c.updated_at, 'epoch'), COALESCE(g.updated_at, 'epoch')) > $3)
		ORDER BY r.serial_number
	`
	rows, err := r.pool.Query(ctx, query, deviceID, passTypeID, updatedSince)
	if err != nil {
		return nil, fmt.Errorf("pg: serials for device: %w", err)
	}
	defer rows.Close()

	serials := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		serials = append(serials, s)
	}
	return serials, rows.Err()
}

func (r *registrationRepo) DevicesForSerial(ctx context.Context, serial, passTypeID string) ([]core.Device, error) {
	const query = `
		SELECT device_id, push_token
		FROM device_registration
		WHERE serial_number = $1 AND pass_type_id = $2
		ORDER BY device_id
	`
	rows, err := r.pool.Query(ctx, query, serial, passTypeID)
	if err != nil {
		return nil, fmt.Errorf("pg: devices for serial: %w", err)
	}
	defer rows.Close()

	devices := []core.Device{}
	for rows.Next() {
		var d core.Device
		if err := rows.Scan(&d.DeviceID, &d.PushToken); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}
