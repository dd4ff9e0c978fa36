// Package catalogue records produced rasters in a Postgres table.
package catalogue

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/nci/lulcagg/processor"
)

const schema = `create table if not exists lulcagg_outputs (
	path         text primary key,
	source       text not null,
	job          text not null,
	operation    text not null,
	class_name   text,
	width        integer not null,
	height       integer not null,
	data_type    text not null,
	geotransform float8[] not null,
	crs          text,
	created_at   timestamptz not null default now()
)`

const upsert = `insert into lulcagg_outputs
	(path, source, job, operation, class_name, width, height, data_type, geotransform, crs, created_at)
values ($1, $2, $3, $4, nullif($5,''), $6, $7, $8, $9, nullif($10,''), now())
on conflict (path) do update set
	source = excluded.source,
	job = excluded.job,
	operation = excluded.operation,
	class_name = excluded.class_name,
	width = excluded.width,
	height = excluded.height,
	data_type = excluded.data_type,
	geotransform = excluded.geotransform,
	crs = excluded.crs,
	created_at = excluded.created_at`

// Catalogue implements processor.OutputCatalogue.
type Catalogue struct {
	db *sql.DB
}

// Open connects to dsn and makes sure the outputs table exists.
func Open(ctx context.Context, dsn string) (*Catalogue, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(2)
	db.SetMaxOpenConns(8)

	c := &Catalogue{db: db}
	if err := c.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalogue) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("catalogue schema: %v", err)
	}
	return nil
}

// Register upserts rec keyed by its output path.
func (c *Catalogue) Register(ctx context.Context, rec *processor.OutputRecord) error {
	_, err := c.db.ExecContext(ctx, upsert,
		rec.Path,
		rec.Source,
		rec.Job,
		rec.Operation,
		rec.ClassName,
		rec.Width,
		rec.Height,
		rec.DataType,
		pq.Array(rec.GeoTransform[:]),
		rec.CRS,
	)
	if err != nil {
		return fmt.Errorf("catalogue register %s: %v", rec.Path, err)
	}
	return nil
}

// Lookup returns the record of path, or nil when it is not catalogued.
func (c *Catalogue) Lookup(ctx context.Context, path string) (*processor.OutputRecord, error) {
	var (
		rec       processor.OutputRecord
		className sql.NullString
		crs       sql.NullString
		gt        []float64
	)
	err := c.db.QueryRowContext(ctx,
		`select path, source, job, operation, class_name, width, height, data_type, geotransform, crs
		from lulcagg_outputs where path = $1`, path,
	).Scan(&rec.Path, &rec.Source, &rec.Job, &rec.Operation, &className, &rec.Width, &rec.Height, &rec.DataType, pq.Array(&gt), &crs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(gt) != len(rec.GeoTransform) {
		return nil, fmt.Errorf("catalogue %s: geotransform has %d coefficients", path, len(gt))
	}
	copy(rec.GeoTransform[:], gt)
	rec.ClassName = className.String
	rec.CRS = crs.String
	return &rec, nil
}

func (c *Catalogue) Close() error {
	return c.db.Close()
}
