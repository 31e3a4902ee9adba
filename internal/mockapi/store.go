package mockapi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/yitethio/liyt-driver/internal/apperr"
	"github.com/yitethio/liyt-driver/internal/domain"
)

// Store persists drivers, refresh tokens and deliveries in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at path and runs migrations.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// The sqlite driver serializes writers; a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating sqlite db: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS drivers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			full_name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			vehicle_type TEXT NOT NULL DEFAULT '',
			license_number TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			token TEXT PRIMARY KEY,
			driver_id INTEGER NOT NULL,
			expires_at DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (driver_id) REFERENCES drivers(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS deliveries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			public_id TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'pending',
			price REAL NOT NULL DEFAULT 0,
			description TEXT NOT NULL DEFAULT '',
			business_id INTEGER NOT NULL DEFAULT 0,
			business_name TEXT NOT NULL DEFAULT '',
			driver_id INTEGER,
			customer_name TEXT NOT NULL DEFAULT '',
			customer_phone TEXT NOT NULL DEFAULT '',
			pickup_address TEXT NOT NULL DEFAULT '',
			pickup_city TEXT NOT NULL DEFAULT '',
			pickup_contact_name TEXT NOT NULL DEFAULT '',
			pickup_contact_phone TEXT NOT NULL DEFAULT '',
			pickup_lat REAL,
			pickup_lng REAL,
			dropoff_address TEXT NOT NULL DEFAULT '',
			dropoff_city TEXT NOT NULL DEFAULT '',
			dropoff_contact_name TEXT NOT NULL DEFAULT '',
			dropoff_contact_phone TEXT NOT NULL DEFAULT '',
			dropoff_lat REAL,
			dropoff_lng REAL,
			accepted_at DATETIME,
			picked_up_at DATETIME,
			delivered_at DATETIME,
			cancelled_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_driver ON deliveries(driver_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_driver ON refresh_tokens(driver_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// driverRow is a driver record including the password hash; the hash
// never leaves this package.
type driverRow struct {
	Driver       domain.Driver
	PasswordHash string
}

// CreateDriver inserts a driver account. A duplicate email fails with
// apperr.ErrConflict.
func (s *Store) CreateDriver(ctx context.Context, email, passwordHash, fullName, phone, vehicleType, licenseNumber string) (domain.Driver, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO drivers (email, password_hash, full_name, phone, vehicle_type, license_number)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		email, passwordHash, fullName, phone, vehicleType, licenseNumber,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return domain.Driver{}, fmt.Errorf("email %s: %w", email, apperr.ErrConflict)
		}
		return domain.Driver{}, fmt.Errorf("inserting driver: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Driver{}, fmt.Errorf("reading driver id: %w", err)
	}
	return s.DriverByID(ctx, id)
}

// DriverByEmail looks a driver up for login.
func (s *Store) DriverByEmail(ctx context.Context, email string) (driverRow, error) {
	var row driverRow
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, full_name, phone, status, vehicle_type, license_number
		 FROM drivers WHERE email = ?`, email,
	).Scan(
		&row.Driver.ID, &row.Driver.Email, &row.PasswordHash, &row.Driver.FullName,
		&row.Driver.Phone, &row.Driver.Status, &row.Driver.VehicleType, &row.Driver.LicenseNumber,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return driverRow{}, fmt.Errorf("driver %s: %w", email, apperr.ErrNotFound)
	}
	if err != nil {
		return driverRow{}, fmt.Errorf("selecting driver: %w", err)
	}
	return row, nil
}

// DriverByID fetches a driver's profile.
func (s *Store) DriverByID(ctx context.Context, id int64) (domain.Driver, error) {
	var d domain.Driver
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, full_name, phone, status, vehicle_type, license_number
		 FROM drivers WHERE id = ?`, id,
	).Scan(&d.ID, &d.Email, &d.FullName, &d.Phone, &d.Status, &d.VehicleType, &d.LicenseNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Driver{}, fmt.Errorf("driver %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return domain.Driver{}, fmt.Errorf("selecting driver: %w", err)
	}
	return d, nil
}

// SaveRefreshToken stores a refresh token for the driver.
func (s *Store) SaveRefreshToken(ctx context.Context, token string, driverID int64, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token, driver_id, expires_at) VALUES (?, ?, ?)`,
		token, driverID, expiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting refresh token: %w", err)
	}
	return nil
}

// ConsumeRefreshToken redeems a refresh token exactly once: the token
// row is deleted on use, so a replay fails with apperr.ErrUnauthorized,
// as does an expired or unknown token.
func (s *Store) ConsumeRefreshToken(ctx context.Context, token string, now time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback()

	var (
		driverID  int64
		expiresAt time.Time
	)
	err = tx.QueryRowContext(ctx,
		`SELECT driver_id, expires_at FROM refresh_tokens WHERE token = ?`, token,
	).Scan(&driverID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: unknown refresh token", apperr.ErrUnauthorized)
	}
	if err != nil {
		return 0, fmt.Errorf("selecting refresh token: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = ?`, token); err != nil {
		return 0, fmt.Errorf("deleting refresh token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing tx: %w", err)
	}

	if now.After(expiresAt) {
		return 0, fmt.Errorf("%w: refresh token expired", apperr.ErrUnauthorized)
	}
	return driverID, nil
}

// RevokeRefreshTokens drops every refresh token for the driver.
func (s *Store) RevokeRefreshTokens(ctx context.Context, driverID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE driver_id = ?`, driverID)
	return err
}

const deliveryColumns = `id, public_id, status, price, description, business_id, business_name,
	driver_id, customer_name, customer_phone,
	pickup_address, pickup_city, pickup_contact_name, pickup_contact_phone, pickup_lat, pickup_lng,
	dropoff_address, dropoff_city, dropoff_contact_name, dropoff_contact_phone, dropoff_lat, dropoff_lng,
	accepted_at, picked_up_at, delivered_at, cancelled_at, created_at`

// DeliveriesForDriver lists what the driver can see: unassigned pending
// jobs plus everything assigned to them, newest first.
func (s *Store) DeliveriesForDriver(ctx context.Context, driverID int64) ([]domain.Delivery, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries
		 WHERE (status = 'pending' AND driver_id IS NULL) OR driver_id = ?
		 ORDER BY created_at DESC, id DESC`, driverID,
	)
	if err != nil {
		return nil, fmt.Errorf("selecting deliveries: %w", err)
	}
	defer rows.Close()

	var out []domain.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeliveryByID fetches one delivery.
func (s *Store) DeliveryByID(ctx context.Context, id int64) (domain.Delivery, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = ?`, id)
	d, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Delivery{}, fmt.Errorf("delivery %d: %w", id, apperr.ErrNotFound)
	}
	return d, err
}

// ApplyTransition advances a delivery through the lifecycle on behalf
// of the driver. Illegal transitions and transitions against a job
// owned by another driver fail with apperr.ErrConflict.
func (s *Store) ApplyTransition(ctx context.Context, id, driverID int64, tr domain.Transition, now time.Time) (domain.Delivery, error) {
	next, ok := tr.Result()
	if !ok {
		return domain.Delivery{}, fmt.Errorf("unknown transition %q: %w", tr, apperr.ErrInvalid)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback()

	var (
		status  string
		ownerID sql.NullInt64
	)
	err = tx.QueryRowContext(ctx, `SELECT status, driver_id FROM deliveries WHERE id = ?`, id).
		Scan(&status, &ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Delivery{}, fmt.Errorf("delivery %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("selecting delivery: %w", err)
	}

	if !tr.AllowedFrom(domain.Status(status)) {
		return domain.Delivery{}, fmt.Errorf("cannot %s a %s delivery: %w", tr, status, apperr.ErrConflict)
	}
	if tr != domain.TransitionAccept && (!ownerID.Valid || ownerID.Int64 != driverID) {
		return domain.Delivery{}, fmt.Errorf("delivery %d belongs to another driver: %w", id, apperr.ErrConflict)
	}

	ts := now.UTC()
	switch tr {
	case domain.TransitionAccept:
		_, err = tx.ExecContext(ctx,
			`UPDATE deliveries SET status = ?, driver_id = ?, accepted_at = ? WHERE id = ?`,
			string(next), driverID, ts, id)
	case domain.TransitionPickup:
		_, err = tx.ExecContext(ctx,
			`UPDATE deliveries SET status = ?, picked_up_at = ? WHERE id = ?`,
			string(next), ts, id)
	case domain.TransitionComplete:
		_, err = tx.ExecContext(ctx,
			`UPDATE deliveries SET status = ?, delivered_at = ? WHERE id = ?`,
			string(next), ts, id)
	}
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("updating delivery: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Delivery{}, fmt.Errorf("committing tx: %w", err)
	}
	return s.DeliveryByID(ctx, id)
}

// InsertDelivery adds a job; used by seeding and tests. A blank public
// id gets a generated one.
func (s *Store) InsertDelivery(ctx context.Context, d domain.Delivery) (int64, error) {
	publicID := d.PublicID
	if publicID == "" {
		publicID = "DLV-" + uuid.NewString()[:8]
	}
	status := d.Status
	if status == "" {
		status = domain.StatusPending
	}
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries (
			public_id, status, price, description, business_id, business_name,
			driver_id, customer_name, customer_phone,
			pickup_address, pickup_city, pickup_contact_name, pickup_contact_phone, pickup_lat, pickup_lng,
			dropoff_address, dropoff_city, dropoff_contact_name, dropoff_contact_phone, dropoff_lat, dropoff_lng,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		publicID, string(status), d.Price, d.Description, d.BusinessID, businessName(d),
		d.DriverID, customerName(d), customerPhone(d),
		d.Pickup.Address, d.Pickup.City, d.Pickup.ContactName, d.Pickup.ContactPhone,
		latOrNil(d.Pickup), lngOrNil(d.Pickup),
		d.Dropoff.Address, d.Dropoff.City, d.Dropoff.ContactName, d.Dropoff.ContactPhone,
		latOrNil(d.Dropoff), lngOrNil(d.Dropoff),
		createdAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting delivery: %w", err)
	}
	return res.LastInsertId()
}

func businessName(d domain.Delivery) string {
	if d.Business != nil {
		return d.Business.Name
	}
	return ""
}

func customerName(d domain.Delivery) string {
	if d.Customer != nil {
		return d.Customer.FullName
	}
	return ""
}

func customerPhone(d domain.Delivery) string {
	if d.Customer != nil {
		return d.Customer.Phone
	}
	return ""
}

func latOrNil(s domain.Stop) any {
	if s.CoordinatesEstimated || !s.Coordinates.Usable() {
		return nil
	}
	return s.Coordinates.Latitude
}

func lngOrNil(s domain.Stop) any {
	if s.CoordinatesEstimated || !s.Coordinates.Usable() {
		return nil
	}
	return s.Coordinates.Longitude
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDelivery(row rowScanner) (domain.Delivery, error) {
	var (
		d                      domain.Delivery
		driverID               sql.NullInt64
		businessName           string
		customerName           string
		customerPhone          string
		pickupLat, pickupLng   sql.NullFloat64
		dropoffLat, dropoffLng sql.NullFloat64
		acceptedAt, pickedUpAt sql.NullTime
		deliveredAt            sql.NullTime
		cancelledAt            sql.NullTime
		status                 string
	)
	err := row.Scan(
		&d.ID, &d.PublicID, &status, &d.Price, &d.Description, &d.BusinessID, &businessName,
		&driverID, &customerName, &customerPhone,
		&d.Pickup.Address, &d.Pickup.City, &d.Pickup.ContactName, &d.Pickup.ContactPhone, &pickupLat, &pickupLng,
		&d.Dropoff.Address, &d.Dropoff.City, &d.Dropoff.ContactName, &d.Dropoff.ContactPhone, &dropoffLat, &dropoffLng,
		&acceptedAt, &pickedUpAt, &deliveredAt, &cancelledAt, &d.CreatedAt,
	)
	if err != nil {
		return domain.Delivery{}, err
	}

	d.Status = domain.Status(status)
	d.Pickup.Kind = domain.StopPickup
	d.Dropoff.Kind = domain.StopDropoff
	if driverID.Valid {
		d.DriverID = &driverID.Int64
	}
	if businessName != "" {
		d.Business = &domain.BusinessRef{ID: d.BusinessID, Name: businessName}
	}
	if customerName != "" || customerPhone != "" {
		d.Customer = &domain.CustomerRef{FullName: customerName, Phone: customerPhone}
	}
	if pickupLat.Valid && pickupLng.Valid {
		d.Pickup.Coordinates = domain.Coordinates{Latitude: pickupLat.Float64, Longitude: pickupLng.Float64}
	}
	if dropoffLat.Valid && dropoffLng.Valid {
		d.Dropoff.Coordinates = domain.Coordinates{Latitude: dropoffLat.Float64, Longitude: dropoffLng.Float64}
	}
	if acceptedAt.Valid {
		d.AcceptedAt = &acceptedAt.Time
	}
	if pickedUpAt.Valid {
		d.PickedUpAt = &pickedUpAt.Time
	}
	if deliveredAt.Valid {
		d.DeliveredAt = &deliveredAt.Time
	}
	if cancelledAt.Valid {
		d.CancelledAt = &cancelledAt.Time
	}
	return d, nil
}
