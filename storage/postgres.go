package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"housemarket-scraper/models"
)

// PostgresStore persists listings and the agent blacklist in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection, runs schema migrations and returns a
// ready-to-use store.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return ps, nil
}

func (ps *PostgresStore) migrate() error {
	_, err := ps.db.Exec(`
		CREATE TABLE IF NOT EXISTS listings (
			source_id     TEXT PRIMARY KEY,
			url           TEXT UNIQUE NOT NULL,
			title         TEXT NOT NULL DEFAULT '',
			address       TEXT NOT NULL DEFAULT '',
			agent_name    TEXT NOT NULL DEFAULT '',
			price         INTEGER,
			beds          INTEGER,
			sqft          INTEGER,
			property_type TEXT NOT NULL DEFAULT '',
			images        TEXT NOT NULL DEFAULT '[]',
			sources       TEXT NOT NULL DEFAULT '{}',
			first_seen    TIMESTAMPTZ NOT NULL,
			last_seen     TIMESTAMPTZ NOT NULL,
			on_market     BOOLEAN NOT NULL DEFAULT TRUE
		);

		CREATE TABLE IF NOT EXISTS agent_blacklist (
			address     TEXT PRIMARY KEY,
			blacklisted BOOLEAN NOT NULL DEFAULT FALSE,
			first_seen  TIMESTAMPTZ NOT NULL,
			last_seen   TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS agent_address_sightings (
			address   TEXT NOT NULL,
			source_id TEXT NOT NULL,
			PRIMARY KEY (address, source_id)
		);

		CREATE INDEX IF NOT EXISTS idx_listings_price     ON listings(price);
		CREATE INDEX IF NOT EXISTS idx_listings_beds      ON listings(beds);
		CREATE INDEX IF NOT EXISTS idx_listings_on_market ON listings(on_market);
		CREATE INDEX IF NOT EXISTS idx_listings_type      ON listings(property_type);
	`)
	return err
}

// Close closes the underlying connection pool.
func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}

const listingColumns = `source_id, url, title, address, agent_name, price, beds, sqft,
	property_type, images, sources, first_seen, last_seen, on_market`

func (ps *PostgresStore) Get(sourceID string) (*models.ListingRecord, error) {
	row := ps.db.QueryRow(
		`SELECT `+listingColumns+` FROM listings WHERE source_id = $1`, sourceID)

	rec, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get %s: %w", sourceID, err)
	}
	return rec, nil
}

func (ps *PostgresStore) Upsert(rec *models.ListingRecord) error {
	images, err := json.Marshal(rec.Images)
	if err != nil {
		return fmt.Errorf("postgres: marshal images: %w", err)
	}
	sources, err := json.Marshal(rec.Sources)
	if err != nil {
		return fmt.Errorf("postgres: marshal sources: %w", err)
	}

	_, err = ps.db.Exec(`
		INSERT INTO listings (`+listingColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (source_id) DO UPDATE SET
			url           = EXCLUDED.url,
			title         = EXCLUDED.title,
			address       = EXCLUDED.address,
			agent_name    = EXCLUDED.agent_name,
			price         = EXCLUDED.price,
			beds          = EXCLUDED.beds,
			sqft          = EXCLUDED.sqft,
			property_type = EXCLUDED.property_type,
			images        = EXCLUDED.images,
			sources       = EXCLUDED.sources,
			last_seen     = EXCLUDED.last_seen,
			on_market     = EXCLUDED.on_market
	`,
		rec.SourceID, rec.URL, rec.Title, rec.Address, rec.AgentName,
		nullInt(rec.Price), nullInt(rec.Beds), nullInt(rec.Sqft),
		string(rec.PropertyType), string(images), string(sources),
		rec.FirstSeen, rec.LastSeen, rec.OnMarket)
	if err != nil {
		return fmt.Errorf("postgres: upsert %s: %w", rec.SourceID, err)
	}
	return nil
}

func (ps *PostgresStore) Delist(seen map[string]struct{}) (int, error) {
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}

	var res sql.Result
	var err error
	if len(ids) > 0 {
		placeholders := make([]string, len(ids))
		args := make([]interface{}, len(ids))
		for i, id := range ids {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = id
		}
		res, err = ps.db.Exec(fmt.Sprintf(
			`UPDATE listings SET on_market = FALSE
			 WHERE on_market AND source_id NOT IN (%s)`,
			strings.Join(placeholders, ",")), args...)
	} else {
		res, err = ps.db.Exec(`UPDATE listings SET on_market = FALSE WHERE on_market`)
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: delist: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres: delist rows: %w", err)
	}
	return int(n), nil
}

func (ps *PostgresStore) ClearAddress(normalized string) (int, error) {
	res, err := ps.db.Exec(`
		UPDATE listings SET address = ''
		WHERE address <> ''
		  AND LOWER(regexp_replace(trim(address), '\s+', ' ', 'g')) = $1
	`, normalized)
	if err != nil {
		return 0, fmt.Errorf("postgres: clear address: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres: clear address rows: %w", err)
	}
	return int(n), nil
}

func (ps *PostgresStore) Query(f ListingFilter) ([]*models.ListingRecord, error) {
	var conds []string
	var args []interface{}

	add := func(cond string, val interface{}) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.MinPrice != nil {
		add("price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("price <= $%d", *f.MaxPrice)
	}
	if f.MinBeds != nil {
		add("beds >= $%d", *f.MinBeds)
	}
	if f.MaxBeds != nil {
		add("beds <= $%d", *f.MaxBeds)
	}
	if f.MinSqft != nil {
		add("sqft >= $%d", *f.MinSqft)
	}
	if f.MaxSqft != nil {
		add("sqft <= $%d", *f.MaxSqft)
	}
	if f.PropertyType != models.TypeUnknown {
		add("property_type = $%d", string(f.PropertyType))
	}
	if f.OnMarket != nil {
		add("on_market = $%d", *f.OnMarket)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		conds = append(conds, fmt.Sprintf("(address ILIKE $%d OR title ILIKE $%d)", len(args), len(args)))
	}

	query := `SELECT ` + listingColumns + ` FROM listings`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY source_id"

	rows, err := ps.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	var out []*models.ListingRecord
	for rows.Next() {
		rec, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) Count() (int, error) {
	var n int
	if err := ps.db.QueryRow(`SELECT COUNT(*) FROM listings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count: %w", err)
	}
	return n, nil
}

func (ps *PostgresStore) RecordSighting(normalized, sourceID string, at time.Time) (*models.AgentAddressEntry, error) {
	tx, err := ps.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("postgres: sighting tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO agent_blacklist (address, first_seen, last_seen)
		VALUES ($1, $2, $2)
		ON CONFLICT (address) DO UPDATE SET last_seen = EXCLUDED.last_seen
	`, normalized, at); err != nil {
		return nil, fmt.Errorf("postgres: sighting upsert: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO agent_address_sightings (address, source_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, normalized, sourceID); err != nil {
		return nil, fmt.Errorf("postgres: sighting insert: %w", err)
	}

	entry := &models.AgentAddressEntry{NormalizedAddress: normalized}
	if err := tx.QueryRow(`
		SELECT b.blacklisted, b.first_seen, b.last_seen,
		       (SELECT COUNT(*) FROM agent_address_sightings s WHERE s.address = b.address)
		FROM agent_blacklist b WHERE b.address = $1
	`, normalized).Scan(&entry.Blacklisted, &entry.FirstSeen, &entry.LastSeen,
		&entry.DistinctListingCount); err != nil {
		return nil, fmt.Errorf("postgres: sighting read: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("postgres: sighting commit: %w", err)
	}
	return entry, nil
}

func (ps *PostgresStore) MarkBlacklisted(normalized string) error {
	_, err := ps.db.Exec(
		`UPDATE agent_blacklist SET blacklisted = TRUE WHERE address = $1`, normalized)
	if err != nil {
		return fmt.Errorf("postgres: mark blacklisted: %w", err)
	}
	return nil
}

func (ps *PostgresStore) Entry(normalized string) (*models.AgentAddressEntry, error) {
	entry := &models.AgentAddressEntry{NormalizedAddress: normalized}
	err := ps.db.QueryRow(`
		SELECT b.blacklisted, b.first_seen, b.last_seen,
		       (SELECT COUNT(*) FROM agent_address_sightings s WHERE s.address = b.address)
		FROM agent_blacklist b WHERE b.address = $1
	`, normalized).Scan(&entry.Blacklisted, &entry.FirstSeen, &entry.LastSeen,
		&entry.DistinctListingCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: entry: %w", err)
	}
	return entry, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row rowScanner) (*models.ListingRecord, error) {
	rec := &models.ListingRecord{}
	var price, beds, sqft sql.NullInt64
	var ptype, images, sources string

	if err := row.Scan(&rec.SourceID, &rec.URL, &rec.Title, &rec.Address,
		&rec.AgentName, &price, &beds, &sqft, &ptype, &images, &sources,
		&rec.FirstSeen, &rec.LastSeen, &rec.OnMarket); err != nil {
		return nil, err
	}

	rec.Price = fromNullInt(price)
	rec.Beds = fromNullInt(beds)
	rec.Sqft = fromNullInt(sqft)
	rec.PropertyType = models.PropertyType(ptype)
	if err := json.Unmarshal([]byte(images), &rec.Images); err != nil {
		rec.Images = nil
	}
	if err := json.Unmarshal([]byte(sources), &rec.Sources); err != nil {
		rec.Sources = nil
	}
	return rec, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func fromNullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
