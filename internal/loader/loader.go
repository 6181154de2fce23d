// Package loader materializes staged datasets into the canonical output
// tables. DDL and inserts are both derived from the table's column mappings,
// and nullable integer columns are carried through the typed load as the
// reserved sentinel, decoded back to null once the table is in place.
package loader

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"

	berrors "github.com/boundaries-lt/boundaries/internal/errors"
	"github.com/boundaries-lt/boundaries/internal/sentinel"
	"github.com/boundaries-lt/boundaries/pkg/types"
)

// Loader writes canonical tables into the output database.
type Loader struct {
	db    *sql.DB
	codec *sentinel.Codec
}

// New creates a loader writing through db with the given null codec.
func New(db *sql.DB, codec *sentinel.Codec) *Loader {
	return &Loader{db: db, codec: codec}
}

// Load creates table and inserts every record of ds in dataset order inside
// one transaction. A mapped source column absent from the dataset is a
// SchemaMismatch: an upstream export change must fail the build, not produce
// a silently hollow table. After the transaction commits, sentinel-coded
// columns are decoded back to null.
func (l *Loader) Load(ctx context.Context, table types.Table, ds *types.Dataset) (int64, error) {
	if err := l.checkColumns(table, ds); err != nil {
		return 0, err
	}
	if err := l.createTable(ctx, table); err != nil {
		return 0, err
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, berrors.NewInternalError("begin load transaction", err).WithTable(table.Name)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(table))
	if err != nil {
		tx.Rollback()
		return 0, berrors.NewInternalError("prepare insert", err).WithTable(table.Name)
	}

	var n int64
	for i, rec := range ds.Records {
		args, err := l.bindArgs(table, rec)
		if err != nil {
			stmt.Close()
			tx.Rollback()
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			stmt.Close()
			tx.Rollback()
			return 0, berrors.NewInternalError(
				fmt.Sprintf("insert record %d", i), err).WithTable(table.Name)
		}
		n++
	}
	stmt.Close()

	if err := tx.Commit(); err != nil {
		return 0, berrors.NewInternalError("commit load transaction", err).WithTable(table.Name)
	}

	if cols := table.SentinelColumns(); len(cols) > 0 {
		if err := l.codec.DecodeAll(ctx, l.db, table.Name, cols); err != nil {
			return 0, err
		}
	}

	log.Printf("loader: %s loaded %d rows", table.Name, n)
	return n, nil
}

// LoadAddresses joins per-region point records with the national attribute
// export on keyColumn and loads the result. The join is strict: a point with
// no attribute record is dropped, an attribute record with no point never
// reaches the table. Joined rows keep point order, so the table follows
// region fetch order.
func (l *Loader) LoadAddresses(ctx context.Context, table types.Table, points, attrs *types.Dataset, keyColumn string) (int64, error) {
	if !points.HasColumn(keyColumn) {
		return 0, berrors.NewSchemaMismatch(points.Name, "missing join column "+keyColumn).WithTable(table.Name)
	}
	if !attrs.HasColumn(keyColumn) {
		return 0, berrors.NewSchemaMismatch(attrs.Name, "missing join column "+keyColumn).WithTable(table.Name)
	}

	byKey := make(map[int64]types.Record, len(attrs.Records))
	for _, rec := range attrs.Records {
		if key, ok := joinKey(rec.Field(keyColumn)); ok {
			byKey[key] = rec
		}
	}

	joined := &types.Dataset{
		Name:    table.Name,
		Columns: unionColumns(points.Columns, attrs.Columns),
	}
	var dropped int
	for _, pt := range points.Records {
		key, ok := joinKey(pt.Field(keyColumn))
		if !ok {
			dropped++
			continue
		}
		attr, found := byKey[key]
		if !found {
			dropped++
			continue
		}
		fields := make(map[string]any, len(attr.Fields)+len(pt.Fields))
		for k, v := range attr.Fields {
			fields[k] = v
		}
		for k, v := range pt.Fields {
			fields[k] = v
		}
		joined.Records = append(joined.Records, types.Record{Fields: fields, Geometry: pt.Geometry})
	}

	if dropped > 0 {
		log.Printf("loader: %s dropped %d points without attribute records", table.Name, dropped)
	}
	return l.Load(ctx, table, joined)
}

// joinKey normalizes a join value for matching. Registry codes arrive as
// JSON numbers on the point side and as delimited text on the attribute
// side; both collapse to int64 before lookup.
func joinKey(v any) (int64, bool) {
	cast, err := castValue(types.ColumnMapping{Type: types.ColInteger}, v)
	if err != nil || cast == nil {
		return 0, false
	}
	return cast.(int64), true
}

func (l *Loader) checkColumns(table types.Table, ds *types.Dataset) error {
	for _, col := range table.Columns {
		if col.Type == types.ColGeometry {
			continue
		}
		if !ds.HasColumn(col.Source) {
			return berrors.NewSchemaMismatch(ds.Name,
				"missing source column "+col.Source).WithTable(table.Name)
		}
	}
	return nil
}

func (l *Loader) createTable(ctx context.Context, table types.Table) error {
	var defs []string
	if table.KeyColumn != "" {
		defs = append(defs, table.KeyColumn+" INTEGER PRIMARY KEY")
	}
	for _, col := range table.Columns {
		def := col.Target + " " + sqlType(col.Type)
		if !col.Nullable && !col.Sentinel {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}

	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", table.Name, strings.Join(defs, ", "))
	if _, err := l.db.ExecContext(ctx, ddl); err != nil {
		return berrors.NewInternalError("create table", err).WithTable(table.Name)
	}
	return nil
}

func sqlType(t types.ColumnType) string {
	if t == types.ColGeometry {
		return "BLOB"
	}
	return string(t)
}

func insertSQL(table types.Table) string {
	cols := make([]string, len(table.Columns))
	marks := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		cols[i] = col.Target
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table.Name, strings.Join(cols, ", "), strings.Join(marks, ", "))
}

func (l *Loader) bindArgs(table types.Table, rec types.Record) ([]any, error) {
	args := make([]any, 0, len(table.Columns))
	for _, col := range table.Columns {
		var v any
		if col.Type == types.ColGeometry {
			if len(rec.Geometry) == 0 {
				return nil, berrors.NewSchemaMismatch(table.Name, "record without geometry").WithTable(table.Name)
			}
			args = append(args, rec.Geometry)
			continue
		}

		v = rec.Field(col.Source)
		cast, err := castValue(col, v)
		if err != nil {
			return nil, berrors.New(berrors.ErrCategorySchema, berrors.CodeBadCast,
				fmt.Sprintf("column %s: %v", col.Target, err)).WithTable(table.Name)
		}
		if cast == nil {
			if col.Sentinel {
				cast = l.codec.Encode(nil)
			} else if !col.Nullable {
				return nil, berrors.NewSchemaMismatch(table.Name,
					"null in non-nullable column "+col.Target).WithTable(table.Name)
			}
		}
		args = append(args, cast)
	}
	return args, nil
}

// castValue coerces a staged value to the canonical column type. Upstream
// exports are loose about numeric representation: integer codes arrive as
// JSON numbers or delimited text, so both are accepted.
func castValue(col types.ColumnMapping, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch col.Type {
	case types.ColInteger:
		switch n := v.(type) {
		case int64:
			return n, nil
		case float64:
			if n != float64(int64(n)) {
				return nil, fmt.Errorf("non-integral value %v", n)
			}
			return int64(n), nil
		case string:
			i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("cannot parse %q as integer", n)
			}
			return i, nil
		}
	case types.ColReal:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err != nil {
				return nil, fmt.Errorf("cannot parse %q as real", n)
			}
			return f, nil
		}
	case types.ColText, types.ColDate:
		switch s := v.(type) {
		case string:
			return s, nil
		case int64:
			return strconv.FormatInt(s, 10), nil
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64), nil
		}
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}

func unionColumns(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, cols := range [][]string{a, b} {
		for _, c := range cols {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}
