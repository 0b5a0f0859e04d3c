// Package featurestore keeps named GeoJSON feature collections in DuckDB so
// read-only maps can load them from the server's own collections endpoint.
package featurestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geoform/internal/geocodec"
)

var (
	ErrNotFound       = errors.New("feature not found")
	ErrCollectionName = errors.New("invalid collection name")
)

var collectionName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// DefaultLimit is the page size used when ListOptions.Limit is zero.
const DefaultLimit = 100

var schema = []string{
	`CREATE SEQUENCE IF NOT EXISTS feature_ids START 1`,
	`CREATE TABLE IF NOT EXISTS features (
	id         BIGINT PRIMARY KEY DEFAULT nextval('feature_ids'),
	collection VARCHAR NOT NULL,
	geometry   VARCHAR,
	properties VARCHAR,
	min_x      DOUBLE,
	min_y      DOUBLE,
	max_x      DOUBLE,
	max_y      DOUBLE
)`,
}

// Store is a DuckDB backed feature store.
type Store struct {
	db *sql.DB
}

// New creates the schema if needed.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("featurestore schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// CheckName validates a collection name.
func CheckName(name string) error {
	if !collectionName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrCollectionName, name)
	}
	return nil
}

// Insert adds features to a collection in one transaction and returns
// their ids. The ids are also set on the features.
func (s *Store) Insert(ctx context.Context, collection string, features []*geojson.Feature) ([]int64, error) {
	if err := CheckName(collection); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ids := make([]int64, 0, len(features))
	for i, f := range features {
		geom, props, bound, err := encodeRow(f)
		if err != nil {
			return nil, fmt.Errorf("features[%d]: %w", i, err)
		}

		var id int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO features (collection, geometry, properties, min_x, min_y, max_x, max_y)
			 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			collection, geom, props, bound[0], bound[1], bound[2], bound[3],
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("features[%d]: %w", i, err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	for i, f := range features {
		f.ID = ids[i]
	}
	return ids, nil
}

func encodeRow(f *geojson.Feature) (geom, props sql.NullString, bound [4]sql.NullFloat64, err error) {
	if f.Geometry != nil {
		data, err := json.Marshal(geojson.NewGeometry(f.Geometry))
		if err != nil {
			return geom, props, bound, err
		}
		geom = sql.NullString{String: string(data), Valid: true}
		b := f.Geometry.Bound()
		for i, v := range []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]} {
			bound[i] = sql.NullFloat64{Float64: v, Valid: true}
		}
	}
	if len(f.Properties) > 0 {
		data, err := json.Marshal(f.Properties)
		if err != nil {
			return geom, props, bound, err
		}
		props = sql.NullString{String: string(data), Valid: true}
	}
	return geom, props, bound, nil
}

// ListOptions pages and filters a collection.
type ListOptions struct {
	Offset int
	Limit  int
	// BBox keeps features whose bounds intersect it. Features without
	// geometry never match.
	BBox *orb.Bound
}

func (o ListOptions) where(collection string) (string, []any) {
	clause := "collection = ?"
	args := []any{collection}
	if o.BBox != nil {
		clause += " AND max_x >= ? AND min_x <= ? AND max_y >= ? AND min_y <= ?"
		args = append(args, o.BBox.Min[0], o.BBox.Max[0], o.BBox.Min[1], o.BBox.Max[1])
	}
	return clause, args
}

// List returns one page of a collection in insertion order, and the total
// number of matching features.
func (s *Store) List(ctx context.Context, collection string, opts ListOptions) ([]*geojson.Feature, int, error) {
	if err := CheckName(collection); err != nil {
		return nil, 0, err
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	where, args := opts.where(collection)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM features WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, geometry, properties FROM features WHERE "+where+" ORDER BY id LIMIT ? OFFSET ?",
		append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	features, err := scanFeatures(rows)
	return features, total, err
}

// FeatureCollection returns every feature of a collection, optionally
// filtered by bbox. An unknown collection is empty.
func (s *Store) FeatureCollection(ctx context.Context, collection string, bbox *orb.Bound) (*geojson.FeatureCollection, error) {
	if err := CheckName(collection); err != nil {
		return nil, err
	}
	where, args := ListOptions{BBox: bbox}.where(collection)
	rows, err := s.db.QueryContext(ctx, "SELECT id, geometry, properties FROM features WHERE "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, err
	}
	features, err := scanFeatures(rows)
	if err != nil {
		return nil, err
	}
	fc := geojson.NewFeatureCollection()
	fc.Features = features
	return fc, nil
}

// Get returns one feature.
func (s *Store) Get(ctx context.Context, collection string, id int64) (*geojson.Feature, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, geometry, properties FROM features WHERE collection = ? AND id = ?", collection, id)
	if err != nil {
		return nil, err
	}
	features, err := scanFeatures(rows)
	if err != nil {
		return nil, err
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: %s/%d", ErrNotFound, collection, id)
	}
	return features[0], nil
}

func scanFeatures(rows *sql.Rows) ([]*geojson.Feature, error) {
	defer rows.Close()

	features := []*geojson.Feature{}
	for rows.Next() {
		var (
			id          int64
			geom, props sql.NullString
		)
		if err := rows.Scan(&id, &geom, &props); err != nil {
			return nil, err
		}

		f := &geojson.Feature{Type: "Feature", ID: id, Properties: geojson.Properties{}}
		if geom.Valid {
			g, err := geojson.UnmarshalGeometry([]byte(geom.String))
			if err != nil {
				return nil, fmt.Errorf("feature %d: %w", id, err)
			}
			f.Geometry = g.Geometry()
		}
		if props.Valid {
			if err := json.Unmarshal([]byte(props.String), &f.Properties); err != nil {
				return nil, fmt.Errorf("feature %d: %w", id, err)
			}
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

// Collection summarises a stored collection.
type Collection struct {
	Name   string     `json:"name" doc:"Collection name" example:"sites"`
	Count  int        `json:"count" doc:"Number of features"`
	Extent [4]float64 `json:"extent" doc:"Extent [minx, miny, maxx, maxy] of the features with geometry"`
}

// Collections lists the stored collections by name.
func (s *Store) Collections(ctx context.Context) ([]Collection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, count(*),
		       coalesce(min(min_x), 0), coalesce(min(min_y), 0),
		       coalesce(max(max_x), 0), coalesce(max(max_y), 0)
		FROM features GROUP BY collection ORDER BY collection`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Collection{}
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.Name, &c.Count, &c.Extent[0], &c.Extent[1], &c.Extent[2], &c.Extent[3]); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Drop deletes a collection and returns the number of removed features.
func (s *Store) Drop(ctx context.Context, collection string) (int64, error) {
	if err := CheckName(collection); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM features WHERE collection = ?", collection)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Path returns the REST path serving a collection as a FeatureCollection.
func Path(collection string) string {
	return "/api/v1/collections/" + strings.TrimSpace(collection) + "/features"
}

// Import validates a GeoJSON FeatureCollection and appends its features to
// a collection.
func (s *Store) Import(ctx context.Context, collection string, data []byte) (int, error) {
	features, err := geocodec.DecodeFeatureCollection(data)
	if err != nil {
		return 0, err
	}
	ids, err := s.Insert(ctx, collection, features)
	return len(ids), err
}
