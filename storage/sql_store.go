package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Ibino273/raspi-moto-scraper/models"
	"github.com/Ibino273/raspi-moto-scraper/utils"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const sqliteTimeLayout = "2006-01-02 15:04:05.999999999-07:00"

var placeholderRegexp = regexp.MustCompile(`\$\d+`)

const (
	pingAttempts = 10
	pingInterval = 2 * time.Second
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS moto_listings (
		id           SERIAL PRIMARY KEY,
		natural_key  TEXT          UNIQUE NOT NULL,
		title        TEXT,
		price        NUMERIC(12,2),
		brand        TEXT,
		model        TEXT,
		version      TEXT,
		vehicle_type TEXT,
		year         INTEGER,
		mileage_km   INTEGER,
		engine_cc    INTEGER,
		likes_count  INTEGER       NOT NULL DEFAULT 0,
		city         TEXT,
		publish_date TIMESTAMPTZ,
		detail_url   TEXT          NOT NULL,
		scraped_at   TIMESTAMPTZ   NOT NULL,
		created_at   TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ   NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_moto_listings_price ON moto_listings(price);
	CREATE INDEX IF NOT EXISTS idx_moto_listings_brand ON moto_listings(brand);
	CREATE INDEX IF NOT EXISTS idx_moto_listings_year  ON moto_listings(year);

	ALTER TABLE moto_listings ADD COLUMN IF NOT EXISTS city TEXT;
`

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS moto_listings (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		natural_key  TEXT          UNIQUE NOT NULL,
		title        TEXT,
		price        NUMERIC(12,2),
		brand        TEXT,
		model        TEXT,
		version      TEXT,
		vehicle_type TEXT,
		year         INTEGER,
		mileage_km   INTEGER,
		engine_cc    INTEGER,
		likes_count  INTEGER       NOT NULL DEFAULT 0,
		city         TEXT,
		publish_date DATETIME,
		detail_url   TEXT          NOT NULL,
		scraped_at   DATETIME      NOT NULL,
		created_at   DATETIME      NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at   DATETIME      NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_moto_listings_price ON moto_listings(price);
	CREATE INDEX IF NOT EXISTS idx_moto_listings_brand ON moto_listings(brand);
	CREATE INDEX IF NOT EXISTS idx_moto_listings_year  ON moto_listings(year);
`

const listingColumns = `natural_key, title, price, brand, model, version, vehicle_type,
	year, mileage_km, engine_cc, likes_count, city, publish_date, detail_url, scraped_at`

// SQLStore persists listings to PostgreSQL or SQLite through database/sql.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewSQLStore opens a connection, runs schema migrations, and returns a
// ready-to-use SQLStore. The database gets a few pings to come up; ctx
// cancels the wait.
func NewSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One writer at a time; also keeps ":memory:" on a single connection.
		db.SetMaxOpenConns(1)
	}

	for i := 0; i < pingAttempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		if i == pingAttempts-1 {
			break
		}
		if serr := utils.SleepContext(ctx, pingInterval); serr != nil {
			err = fmt.Errorf("%w (last ping: %v)", serr, err)
			break
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping failed: %w", driver, err)
	}

	s, err := NewSQLStoreFromDB(ctx, db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStoreFromDB wraps an already opened database and migrates it.
func NewSQLStoreFromDB(ctx context.Context, db *sql.DB, driver string) (*SQLStore, error) {
	s := &SQLStore{db: db, driver: driver}
	if err := s.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("%s: migrate: %w", driver, err)
	}
	return s, nil
}

// Migrate creates the listings table and its indexes if they do not exist,
// and adds columns missing from tables created by older releases.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if s.driver == DriverPostgres {
		_, err := s.db.ExecContext(ctx, postgresSchema)
		return err
	}

	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return err
	}
	// SQLite has no ADD COLUMN IF NOT EXISTS.
	var hasCity int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('moto_listings') WHERE name = 'city'`).Scan(&hasCity)
	if err != nil {
		return err
	}
	if hasCity == 0 {
		_, err = s.db.ExecContext(ctx, `ALTER TABLE moto_listings ADD COLUMN city TEXT`)
	}
	return err
}

// rebind rewrites $n placeholders for drivers that only understand '?'.
// Queries must use their placeholders in ascending order.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverSQLite {
		return query
	}
	return placeholderRegexp.ReplaceAllString(query, "?")
}

// FindByNaturalKey returns the stored listing or ErrNotFound.
func (s *SQLStore) FindByNaturalKey(ctx context.Context, key string) (*models.Listing, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+listingColumns+`
		FROM moto_listings
		WHERE natural_key = $1
	`), key)

	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: find %q: %w", s.driver, key, err)
	}
	return l, nil
}

// Insert stores a new listing.
func (s *SQLStore) Insert(ctx context.Context, l *models.Listing) error {
	if l.NaturalKey == "" {
		return errors.New("store: insert without natural key")
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO moto_listings (`+listingColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`),
		l.NaturalKey, nullString(l.Title), nullFloat(l.Price),
		nullString(l.Brand), nullString(l.Model), nullString(l.Version), nullString(l.VehicleType),
		nullInt(l.Year), nullInt(l.MileageKm), nullInt(l.EngineCC),
		l.LikesCount, nullString(l.City), s.nullTime(l.PublishDate), l.DetailURL, s.timeArg(l.ScrapedAt),
	)
	if err != nil {
		return fmt.Errorf("%s: insert %q: %w", s.driver, l.NaturalKey, err)
	}
	return nil
}

// Update applies patch to the listing with the given key. Columns the patch
// does not carry keep their stored value.
func (s *SQLStore) Update(ctx context.Context, key string, p models.ListingPatch) error {
	var likes any
	if p.LikesCount != nil {
		likes = *p.LikesCount
	}
	var scrapedAt any
	if p.ScrapedAt != nil {
		scrapedAt = s.timeArg(*p.ScrapedAt)
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE moto_listings SET
			title        = COALESCE($1, title),
			price        = COALESCE($2, price),
			brand        = COALESCE($3, brand),
			model        = COALESCE($4, model),
			version      = COALESCE($5, version),
			vehicle_type = COALESCE($6, vehicle_type),
			year         = COALESCE($7, year),
			mileage_km   = COALESCE($8, mileage_km),
			engine_cc    = COALESCE($9, engine_cc),
			likes_count  = COALESCE($10, likes_count),
			city         = COALESCE($11, city),
			publish_date = COALESCE($12, publish_date),
			detail_url   = COALESCE($13, detail_url),
			scraped_at   = COALESCE($14, scraped_at),
			updated_at   = $15
		WHERE natural_key = $16
	`),
		nullStringPtr(p.Title), nullFloat(p.Price),
		nullStringPtr(p.Brand), nullStringPtr(p.Model), nullStringPtr(p.Version), nullStringPtr(p.VehicleType),
		nullInt(p.Year), nullInt(p.MileageKm), nullInt(p.EngineCC),
		likes, nullStringPtr(p.City), s.nullTime(p.PublishDate), nullStringPtr(p.DetailURL), scrapedAt,
		s.timeArg(time.Now()), key,
	)
	if err != nil {
		return fmt.Errorf("%s: update %q: %w", s.driver, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: update %q: %w", s.driver, key, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FetchAll retrieves all stored listings, used by the insight service.
func (s *SQLStore) FetchAll(ctx context.Context) ([]*models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+listingColumns+`
		FROM moto_listings
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch all: %w", s.driver, err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", s.driver, err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(r rowScanner) (*models.Listing, error) {
	var (
		l                       models.Listing
		title, brand, model     sql.NullString
		version, vehicleType    sql.NullString
		city                    sql.NullString
		price                   sql.NullFloat64
		year, mileage, engineCC sql.NullInt64
		publishDate             sql.NullTime
	)
	if err := r.Scan(
		&l.NaturalKey, &title, &price, &brand, &model, &version, &vehicleType,
		&year, &mileage, &engineCC, &l.LikesCount, &city, &publishDate, &l.DetailURL, &l.ScrapedAt,
	); err != nil {
		return nil, err
	}

	l.Title = title.String
	l.Brand = brand.String
	l.Model = model.String
	l.Version = version.String
	l.VehicleType = vehicleType.String
	l.City = city.String
	if price.Valid {
		v := price.Float64
		l.Price = &v
	}
	l.Year = intPtr(year)
	l.MileageKm = intPtr(mileage)
	l.EngineCC = intPtr(engineCC)
	if publishDate.Valid {
		t := publishDate.Time
		l.PublishDate = &t
	}
	return &l, nil
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullStringPtr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return int64(*i)
}

func (s *SQLStore) nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return s.timeArg(*t)
}

// timeArg stores instants in UTC; SQLite gets a text layout its driver
// parses back into time.Time for DATETIME columns.
func (s *SQLStore) timeArg(t time.Time) any {
	if s.driver == DriverSQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}
