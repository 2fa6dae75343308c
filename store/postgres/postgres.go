// Package postgres implements store.Store on PostgreSQL via pgx, with a
// Redis hot cache for each sensor's last-known value so dashboards read
// live state without touching the relational store.
package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Kevin-Teran/acuaponia-sub001/errors"
	"github.com/Kevin-Teran/acuaponia-sub001/types"
)

// lastValueTTL expires hot-cache entries for sensors that stopped
// reporting so dead sensors age out of dashboards.
const lastValueTTL = 24 * time.Hour

// Config holds connection settings for the persistent store.
type Config struct {
	PostgresURL   string `json:"postgres_url"`
	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty"`
}

// Store implements store.Store on pgxpool plus an optional Redis client.
type Store struct {
	pool   *pgxpool.Pool
	redis  *redis.Client
	logger *slog.Logger
}

// New connects to Postgres (required) and Redis (optional: empty RedisAddr
// disables the hot cache). Both connections are verified with a ping.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.PostgresURL == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Store", "New", "postgres URL")
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, errors.WrapFatal(err, "Store", "New", "create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.WrapTransient(err, "Store", "New", "ping postgres")
	}

	s := &Store{pool: pool, logger: logger}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			pool.Close()
			return nil, errors.WrapTransient(err, "Store", "New", "ping redis")
		}
		s.redis = rdb
	}

	return s, nil
}

// Close releases both connections.
func (s *Store) Close() {
	s.pool.Close()
	if s.redis != nil {
		_ = s.redis.Close()
	}
}

// FindSensorByHardwareRef resolves a sensor and its denormalized tank and
// owner display fields in one query.
func (s *Store) FindSensorByHardwareRef(ctx context.Context, hardwareRef string) (types.Sensor, error) {
	const query = `
		SELECT s.id, s.hardware_address, s.name, s.kind, s.status,
		       s.last_reading, s.last_updated_at,
		       t.id, t.name,
		       u.id, u.name
		FROM sensors s
		JOIN tanks t ON t.id = s.tank_id
		JOIN users u ON u.id = t.user_id
		WHERE s.hardware_address = $1
	`

	var sensor types.Sensor
	err := s.pool.QueryRow(ctx, query, hardwareRef).Scan(
		&sensor.ID, &sensor.HardwareAddress, &sensor.Name, &sensor.Kind, &sensor.Status,
		&sensor.LastReading, &sensor.LastUpdatedAt,
		&sensor.TankID, &sensor.TankName,
		&sensor.OwnerUserID, &sensor.OwnerName,
	)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return types.Sensor{}, errors.WrapInvalid(errors.ErrSensorNotFound, "Store", "FindSensorByHardwareRef", hardwareRef)
		}
		return types.Sensor{}, errors.WrapTransient(err, "Store", "FindSensorByHardwareRef", "query")
	}
	return sensor, nil
}

// FindSensorByID resolves a sensor by identifier, same projection as the
// hardware-reference lookup.
func (s *Store) FindSensorByID(ctx context.Context, sensorID string) (types.Sensor, error) {
	const query = `
		SELECT s.id, s.hardware_address, s.name, s.kind, s.status,
		       s.last_reading, s.last_updated_at,
		       t.id, t.name,
		       u.id, u.name
		FROM sensors s
		JOIN tanks t ON t.id = s.tank_id
		JOIN users u ON u.id = t.user_id
		WHERE s.id = $1
	`

	var sensor types.Sensor
	err := s.pool.QueryRow(ctx, query, sensorID).Scan(
		&sensor.ID, &sensor.HardwareAddress, &sensor.Name, &sensor.Kind, &sensor.Status,
		&sensor.LastReading, &sensor.LastUpdatedAt,
		&sensor.TankID, &sensor.TankName,
		&sensor.OwnerUserID, &sensor.OwnerName,
	)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return types.Sensor{}, errors.WrapInvalid(errors.ErrSensorNotFound, "Store", "FindSensorByID", sensorID)
		}
		return types.Sensor{}, errors.WrapTransient(err, "Store", "FindSensorByID", "query")
	}
	return sensor, nil
}

// CreateReading appends one reading row.
func (s *Store) CreateReading(ctx context.Context, r types.Reading) error {
	const query = `
		INSERT INTO readings (id, sensor_id, tank_id, kind, value, time)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.pool.Exec(ctx, query, r.ID, r.SensorID, r.TankID, r.Kind, r.Value, r.Timestamp); err != nil {
		return errors.WrapTransient(err, "Store", "CreateReading", "insert")
	}
	return nil
}

// UpdateSensorCache writes the last-known value to the sensors row and
// mirrors it into Redis. A Redis failure is logged, not returned: the
// relational row is the source of truth.
func (s *Store) UpdateSensorCache(ctx context.Context, sensorID string, value float64, at time.Time) error {
	const query = `UPDATE sensors SET last_reading = $2, last_updated_at = $3 WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, sensorID, value, at); err != nil {
		return errors.WrapTransient(err, "Store", "UpdateSensorCache", "update")
	}

	if s.redis != nil {
		key := lastValueKey(sensorID)
		if err := s.redis.Set(ctx, key, strconv.FormatFloat(value, 'f', -1, 64), lastValueTTL).Err(); err != nil {
			s.logger.Warn("redis last-value write failed",
				"component", "store", "sensor_id", sensorID, "error", err)
		}
	}
	return nil
}

// LastReading reads the hot-cache value for a sensor. Returns false when
// the cache is disabled or the key is absent.
func (s *Store) LastReading(ctx context.Context, sensorID string) (float64, bool) {
	if s.redis == nil {
		return 0, false
	}
	raw, err := s.redis.Get(ctx, lastValueKey(sensorID)).Result()
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// CreateAlert persists one alert row.
func (s *Store) CreateAlert(ctx context.Context, a types.Alert) error {
	const query = `
		INSERT INTO alerts (id, sensor_id, kind, type, severity, message,
		                    value, threshold, owner_user_id, resolved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.pool.Exec(ctx, query,
		a.ID, a.SensorID, a.Kind, a.Type, a.Severity, a.Message,
		a.Value, a.Threshold, nullable(a.OwnerUserID), a.Resolved, a.CreatedAt)
	if err != nil {
		return errors.WrapTransient(err, "Store", "CreateAlert", "insert")
	}
	return nil
}

// ResolveAlert flips the resolved flag for an alert.
func (s *Store) ResolveAlert(ctx context.Context, alertID string, at time.Time) error {
	const query = `UPDATE alerts SET resolved = TRUE, resolved_at = $2 WHERE id = $1 AND resolved = FALSE`
	tag, err := s.pool.Exec(ctx, query, alertID, at)
	if err != nil {
		return errors.WrapTransient(err, "Store", "ResolveAlert", "update")
	}
	if tag.RowsAffected() == 0 {
		return errors.WrapInvalid(fmt.Errorf("alert %s not found or already resolved", alertID),
			"Store", "ResolveAlert", "lookup")
	}
	return nil
}

// ListUsersByRole returns active users holding a role.
func (s *Store) ListUsersByRole(ctx context.Context, role types.Role) ([]types.Principal, error) {
	const query = `
		SELECT id, name, email, role, status
		FROM users
		WHERE role = $1 AND status = 'active'
		ORDER BY id
	`
	rows, err := s.pool.Query(ctx, query, role)
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "ListUsersByRole", "query")
	}
	defer rows.Close()

	var users []types.Principal
	for rows.Next() {
		var p types.Principal
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.Role, &p.Status); err != nil {
			return nil, errors.WrapTransient(err, "Store", "ListUsersByRole", "scan")
		}
		users = append(users, p)
	}
	return users, rows.Err()
}

func lastValueKey(sensorID string) string {
	return "sensor:last:" + sensorID
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
