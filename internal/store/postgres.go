package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	dbtypes "github.com/nitesh/nearby_news/internal/db"
	"github.com/nitesh/nearby_news/pkg/models"
)

type PgStore struct {
	db *sqlx.DB
}

func NewPgStore(db *sql.DB) *PgStore {
	return &PgStore{db: sqlx.NewDb(db, "postgres")}
}

// RunMigrations creates the schema if it is missing. Geohash columns use the
// "C" collation so prefix ranges can be answered from the btree index.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	initSQL := `
CREATE TABLE IF NOT EXISTS news_items(
  id UUID PRIMARY KEY,
  content TEXT NOT NULL CHECK (length(content) BETWEEN 1 AND 500),
  latitude DOUBLE PRECISION NOT NULL CHECK (latitude BETWEEN -90 AND 90),
  longitude DOUBLE PRECISION NOT NULL CHECK (longitude BETWEEN -180 AND 180),
  image_ref TEXT,
  geohash TEXT COLLATE "C" NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_news_items_geohash ON news_items(geohash);
CREATE INDEX IF NOT EXISTS idx_news_items_created ON news_items(created_at);

CREATE TABLE IF NOT EXISTS location_pings(
  id UUID PRIMARY KEY,
  device_id TEXT,
  latitude DOUBLE PRECISION NOT NULL,
  longitude DOUBLE PRECISION NOT NULL,
  geohash TEXT COLLATE "C" NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_location_pings_device ON location_pings(device_id) WHERE device_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_location_pings_geohash ON location_pings(geohash);
CREATE INDEX IF NOT EXISTS idx_location_pings_updated ON location_pings(updated_at);
`
	_, err := db.ExecContext(ctx, initSQL)
	return wrap("store.RunMigrations", err)
}

type newsRow struct {
	ID        string                 `db:"id"`
	Content   string                 `db:"content"`
	Latitude  float64                `db:"latitude"`
	Longitude float64                `db:"longitude"`
	ImageRef  dbtypes.OptionalString `db:"image_ref"`
	Geohash   string                 `db:"geohash"`
	CreatedAt time.Time              `db:"created_at"`
}

func (r newsRow) item() models.NewsItem {
	return models.NewsItem{
		ID:        r.ID,
		Content:   r.Content,
		Location:  models.Location{Latitude: r.Latitude, Longitude: r.Longitude},
		ImageRef:  r.ImageRef.String(),
		Geohash:   r.Geohash,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func (p *PgStore) CreateNews(ctx context.Context, item *models.NewsItem) error {
	stmt := `
INSERT INTO news_items (id, content, latitude, longitude, image_ref, geohash, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := p.db.ExecContext(ctx, stmt,
		item.ID,
		item.Content,
		item.Location.Latitude,
		item.Location.Longitude,
		dbtypes.OptionalString(item.ImageRef),
		item.Geohash,
		item.CreatedAt,
	)
	return wrap("store.CreateNews", err)
}

// ScanCells turns every prefix into a half-open range [prefix, prefix+"~")
// on the geohash index; '~' sorts after every geohash character.
func (p *PgStore) ScanCells(ctx context.Context, prefixes []string, notBefore time.Time) ([]models.NewsItem, error) {
	if len(prefixes) == 0 {
		return []models.NewsItem{}, nil
	}
	query := `
SELECT DISTINCT n.id, n.content, n.latitude, n.longitude, n.image_ref, n.geohash, n.created_at
FROM news_items n
JOIN unnest($1::text[]) AS c(prefix)
  ON n.geohash >= c.prefix COLLATE "C" AND n.geohash < (c.prefix || '~') COLLATE "C"
WHERE n.created_at > $2
`
	rows := []newsRow{}
	if err := p.db.SelectContext(ctx, &rows, query, pq.Array(prefixes), notBefore); err != nil {
		return nil, wrap("store.ScanCells", err)
	}
	out := make([]models.NewsItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.item())
	}
	return out, nil
}

func (p *PgStore) UpsertPing(ctx context.Context, ping *models.LocationPing) (bool, error) {
	if ping.DeviceID == "" {
		stmt := `
INSERT INTO location_pings (id, device_id, latitude, longitude, geohash, updated_at)
VALUES ($1, NULL, $2, $3, $4, $5)
`
		_, err := p.db.ExecContext(ctx, stmt, ping.ID, ping.Location.Latitude, ping.Location.Longitude, ping.Geohash, ping.UpdatedAt)
		return err == nil, wrap("store.UpsertPing", err)
	}

	// xmax is zero only for a freshly inserted tuple
	stmt := `
INSERT INTO location_pings (id, device_id, latitude, longitude, geohash, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (device_id) WHERE device_id IS NOT NULL DO UPDATE SET
 latitude=EXCLUDED.latitude,
 longitude=EXCLUDED.longitude,
 geohash=EXCLUDED.geohash,
 updated_at=EXCLUDED.updated_at
RETURNING id, (xmax = 0) AS inserted
`
	var res struct {
		ID       string `db:"id"`
		Inserted bool   `db:"inserted"`
	}
	err := p.db.GetContext(ctx, &res, stmt,
		ping.ID,
		ping.DeviceID,
		ping.Location.Latitude,
		ping.Location.Longitude,
		ping.Geohash,
		ping.UpdatedAt,
	)
	if err != nil {
		return false, wrap("store.UpsertPing", err)
	}
	ping.ID = res.ID
	return res.Inserted, nil
}

func (p *PgStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, int64, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, wrap("store.DeleteExpired", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM news_items WHERE created_at <= $1`, cutoff)
	if err != nil {
		return 0, 0, wrap("store.DeleteExpired news", err)
	}
	news, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM location_pings WHERE updated_at <= $1`, cutoff)
	if err != nil {
		return 0, 0, wrap("store.DeleteExpired pings", err)
	}
	pings, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, 0, wrap("store.DeleteExpired commit", err)
	}
	return news, pings, nil
}

func (p *PgStore) Ping(ctx context.Context) error {
	return wrap("store.Ping", p.db.PingContext(ctx))
}

func (p *PgStore) Close() error {
	return p.db.Close()
}
