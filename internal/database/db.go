package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jgoulah/contactenergy/pkg/models"
	_ "modernc.org/sqlite"
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		contract_id TEXT NOT NULL,
		granularity TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		epoch INTEGER NOT NULL,
		currency TEXT NOT NULL,
		unit TEXT NOT NULL,
		value REAL NOT NULL,
		dollar_value REAL,
		offpeak_value REAL,
		uncharged_value REAL,
		offpeak_dollar_value REAL,
		created_at TEXT NOT NULL,
		published INTEGER DEFAULT 0,
		UNIQUE(contract_id, granularity, epoch)
	);
	CREATE INDEX IF NOT EXISTS idx_usage_contract_granularity ON usage_data(contract_id, granularity);
	CREATE INDEX IF NOT EXISTS idx_usage_epoch ON usage_data(epoch);
	CREATE INDEX IF NOT EXISTS idx_usage_published ON usage_data(published);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// InsertUsage inserts a usage record, ignoring duplicates.
// It reports whether a new row was written.
func (db *DB) InsertUsage(contractID string, interval models.Interval, d models.UsageDatum) (bool, error) {
	query := `
	INSERT OR IGNORE INTO usage_data (contract_id, granularity, timestamp, epoch, currency, unit, value,
		dollar_value, offpeak_value, uncharged_value, offpeak_dollar_value, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := time.Now().UTC().Format(time.RFC3339)
	res, err := db.conn.Exec(query,
		contractID, string(interval), d.Timestamp.Format(time.RFC3339), d.Timestamp.Unix(), d.Currency, d.Unit, d.Value,
		nullFloat(d.DollarValue), nullFloat(d.OffpeakValue), nullFloat(d.UnchargedValue), nullFloat(d.OffpeakDollarValue),
		createdAt)
	if err != nil {
		return false, fmt.Errorf("inserting usage data: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking inserted rows: %w", err)
	}
	return n > 0, nil
}

const selectColumns = `id, contract_id, granularity, timestamp, currency, unit, value,
	dollar_value, offpeak_value, uncharged_value, offpeak_dollar_value, published`

// ListUsage retrieves all usage data of an interval, newest first.
// An empty contractID matches every contract.
func (db *DB) ListUsage(contractID string, interval models.Interval) ([]models.StoredUsage, error) {
	query := `SELECT ` + selectColumns + `
	FROM usage_data
	WHERE granularity = ? AND (? = '' OR contract_id = ?)
	ORDER BY epoch DESC
	`

	rows, err := db.conn.Query(query, string(interval), contractID, contractID)
	if err != nil {
		return nil, fmt.Errorf("querying usage data: %w", err)
	}
	defer rows.Close()

	return scanUsage(rows)
}

// ListUnpublishedUsage retrieves all unpublished usage data of an interval, oldest first
func (db *DB) ListUnpublishedUsage(contractID string, interval models.Interval) ([]models.StoredUsage, error) {
	query := `SELECT ` + selectColumns + `
	FROM usage_data
	WHERE granularity = ? AND (? = '' OR contract_id = ?) AND published = 0
	ORDER BY epoch ASC
	`

	rows, err := db.conn.Query(query, string(interval), contractID, contractID)
	if err != nil {
		return nil, fmt.Errorf("querying unpublished usage data: %w", err)
	}
	defer rows.Close()

	return scanUsage(rows)
}

// MarkPublished marks a usage record as published
func (db *DB) MarkPublished(id int64) error {
	query := `UPDATE usage_data SET published = 1 WHERE id = ?`
	_, err := db.conn.Exec(query, id)
	if err != nil {
		return fmt.Errorf("marking record as published: %w", err)
	}
	return nil
}

func scanUsage(rows *sql.Rows) ([]models.StoredUsage, error) {
	var results []models.StoredUsage
	for rows.Next() {
		var rec models.StoredUsage
		var interval, timestamp string
		var dollar, offpeak, uncharged, offpeakDollar sql.NullFloat64
		var published int

		if err := rows.Scan(&rec.ID, &rec.ContractID, &interval, &timestamp, &rec.Currency, &rec.Unit, &rec.Value,
			&dollar, &offpeak, &uncharged, &offpeakDollar, &published); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		ts, err := time.Parse(time.RFC3339, timestamp)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}

		rec.Interval = models.Interval(interval)
		rec.Timestamp = ts
		rec.DollarValue = floatPtr(dollar)
		rec.OffpeakValue = floatPtr(offpeak)
		rec.UnchargedValue = floatPtr(uncharged)
		rec.OffpeakDollarValue = floatPtr(offpeakDollar)
		rec.Published = published != 0

		results = append(results, rec)
	}

	return results, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
