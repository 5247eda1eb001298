package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	errx "github.com/stock-monitor/server/internal/core/error"
	"github.com/stock-monitor/server/internal/stock/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS stock_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	product_id  TEXT    NOT NULL,
	store_id    TEXT    NOT NULL,
	quantity    INTEGER NOT NULL CHECK (quantity >= 0),
	observed_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stock_history_key_time
	ON stock_history(product_id, store_id, observed_at, id);

CREATE TABLE IF NOT EXISTS notifications (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	product_id   TEXT    NOT NULL,
	store_id     TEXT    NOT NULL,
	old_quantity INTEGER NOT NULL,
	new_quantity INTEGER NOT NULL,
	increase     INTEGER NOT NULL CHECK (increase > 0),
	acknowledged INTEGER NOT NULL DEFAULT 0,
	message_ref  TEXT    NOT NULL DEFAULT '',
	created_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_key
	ON notifications(product_id, store_id, id);
`

// Migrate creates the schema when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate sqlite: %w", errx.WrapSQL(err))
	}
	return nil
}

// SQLiteHistory stores observations in the stock_history table. Timestamps
// are unix milliseconds.
type SQLiteHistory struct {
	db  *sql.DB
	loc *time.Location
	log zerolog.Logger
}

func NewSQLiteHistory(db *sql.DB, loc *time.Location, logger zerolog.Logger) *SQLiteHistory {
	if loc == nil {
		loc = time.UTC
	}
	return &SQLiteHistory{db: db, loc: loc, log: logger}
}

func (r *SQLiteHistory) Append(ctx context.Context, obs model.Observation) (model.Observation, error) {
	if err := validateObservation(obs); err != nil {
		return model.Observation{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO stock_history (product_id, store_id, quantity, observed_at) VALUES (?, ?, ?, ?)`,
		obs.ProductID, obs.StoreID, obs.Quantity, obs.ObservedAt.UnixMilli())
	if err != nil {
		r.log.Error().Err(err).Str("key", obs.Key().String()).Msg("failed to append observation to sqlite")
		return model.Observation{}, errx.WrapSQL(err)
	}
	if obs.Seq, err = res.LastInsertId(); err != nil {
		return model.Observation{}, errx.WrapSQL(err)
	}
	obs.ObservedAt = time.UnixMilli(obs.ObservedAt.UnixMilli()).UTC()
	return obs, nil
}

func (r *SQLiteHistory) Latest(ctx context.Context, key model.StockKey) (*model.Observation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, quantity, observed_at FROM stock_history
		 WHERE product_id = ? AND store_id = ?
		 ORDER BY observed_at DESC, id DESC LIMIT 1`,
		key.ProductID, key.StoreID)

	obs := model.Observation{ProductID: key.ProductID, StoreID: key.StoreID}
	var observedAt int64
	if err := row.Scan(&obs.Seq, &obs.Quantity, &observedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.log.Error().Err(err).Str("key", key.String()).Msg("failed to load latest observation from sqlite")
		return nil, errx.WrapSQL(err)
	}
	obs.ObservedAt = time.UnixMilli(observedAt).UTC()
	return &obs, nil
}

func (r *SQLiteHistory) QueryRange(ctx context.Context, key model.StockKey, since time.Time) ([]model.DayPeak, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, quantity, observed_at FROM stock_history
		 WHERE product_id = ? AND store_id = ? AND observed_at >= ?
		 ORDER BY observed_at, id`,
		key.ProductID, key.StoreID, since.UnixMilli())
	if err != nil {
		r.log.Error().Err(err).Str("key", key.String()).Msg("failed to query observations from sqlite")
		return nil, errx.WrapSQL(err)
	}
	defer rows.Close()

	var observations []model.Observation
	for rows.Next() {
		obs := model.Observation{ProductID: key.ProductID, StoreID: key.StoreID}
		var observedAt int64
		if err := rows.Scan(&obs.Seq, &obs.Quantity, &observedAt); err != nil {
			return nil, errx.WrapSQL(err)
		}
		obs.ObservedAt = time.UnixMilli(observedAt).UTC()
		observations = append(observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapSQL(err)
	}
	return model.PeakByDay(observations, r.loc), nil
}

func (r *SQLiteHistory) Count(ctx context.Context, key model.StockKey) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stock_history WHERE product_id = ? AND store_id = ?`,
		key.ProductID, key.StoreID).Scan(&n)
	if err != nil {
		return 0, errx.WrapSQL(err)
	}
	return n, nil
}

var _ model.HistoryRepository = (*SQLiteHistory)(nil)

// SQLiteNotifications stores notifications in the notifications table.
type SQLiteNotifications struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewSQLiteNotifications(db *sql.DB, logger zerolog.Logger) *SQLiteNotifications {
	return &SQLiteNotifications{db: db, log: logger}
}

const notificationColumns = `id, product_id, store_id, old_quantity, new_quantity, increase, acknowledged, message_ref, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(s rowScanner) (model.RestockNotification, error) {
	var n model.RestockNotification
	var createdAt int64
	err := s.Scan(&n.ID, &n.ProductID, &n.StoreID, &n.OldQuantity, &n.NewQuantity,
		&n.Increase, &n.Acknowledged, &n.DeliveryRef, &createdAt)
	if err != nil {
		return model.RestockNotification{}, err
	}
	n.CreatedAt = time.UnixMilli(createdAt).UTC()
	return n, nil
}

func (r *SQLiteNotifications) Create(ctx context.Context, n model.RestockNotification) (model.RestockNotification, error) {
	if err := validateNotification(n); err != nil {
		return model.RestockNotification{}, err
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (product_id, store_id, old_quantity, new_quantity, increase, acknowledged, message_ref, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		n.ProductID, n.StoreID, n.OldQuantity, n.NewQuantity, n.Increase, n.DeliveryRef, n.CreatedAt.UnixMilli())
	if err != nil {
		r.log.Error().Err(err).Str("key", n.Key().String()).Msg("failed to persist notification to sqlite")
		return model.RestockNotification{}, errx.WrapSQL(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.RestockNotification{}, errx.WrapSQL(err)
	}
	return r.Get(ctx, id)
}

func (r *SQLiteNotifications) Get(ctx context.Context, id int64) (model.RestockNotification, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.RestockNotification{}, errx.NotFound("notification %d", id)
		}
		return model.RestockNotification{}, errx.WrapSQL(err)
	}
	return n, nil
}

func (r *SQLiteNotifications) update(ctx context.Context, id int64, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.Error().Err(err).Int64("notification_id", id).Msg("failed to update notification in sqlite")
		return errx.WrapSQL(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errx.WrapSQL(err)
	}
	if n == 0 {
		return errx.NotFound("notification %d", id)
	}
	return nil
}

func (r *SQLiteNotifications) SetDeliveryRef(ctx context.Context, id int64, ref string) error {
	return r.update(ctx, id, `UPDATE notifications SET message_ref = ? WHERE id = ?`, ref, id)
}

func (r *SQLiteNotifications) Acknowledge(ctx context.Context, id int64) (model.RestockNotification, bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET acknowledged = 1 WHERE id = ? AND acknowledged = 0`, id)
	if err != nil {
		r.log.Error().Err(err).Int64("notification_id", id).Msg("failed to acknowledge notification in sqlite")
		return model.RestockNotification{}, false, errx.WrapSQL(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return model.RestockNotification{}, false, errx.WrapSQL(err)
	}
	// Zero rows means either an unknown id or an earlier acknowledgement; Get tells them apart.
	n, err := r.Get(ctx, id)
	if err != nil {
		return model.RestockNotification{}, false, err
	}
	return n, affected == 1, nil
}

func (r *SQLiteNotifications) ListByKey(ctx context.Context, key model.StockKey, limit int) ([]model.RestockNotification, error) {
	return r.list(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE product_id = ? AND store_id = ? ORDER BY id DESC LIMIT ?`,
		key.ProductID, key.StoreID, listLimit(limit))
}

func (r *SQLiteNotifications) ListUndelivered(ctx context.Context, limit int) ([]model.RestockNotification, error) {
	return r.list(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE message_ref = '' ORDER BY id LIMIT ?`,
		listLimit(limit))
}

func (r *SQLiteNotifications) list(ctx context.Context, query string, args ...any) ([]model.RestockNotification, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errx.WrapSQL(err)
	}
	defer rows.Close()

	out := make([]model.RestockNotification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, errx.WrapSQL(err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapSQL(err)
	}
	return out, nil
}

var _ model.NotificationRepository = (*SQLiteNotifications)(nil)
