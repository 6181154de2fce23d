// Package sentinel works around typed-cast null coercion in the output
// format: casting a column to INTEGER degrades to a text fallback when the
// source value is null. The codec substitutes a reserved out-of-band integer
// for null during load and rewrites it back to true null afterwards.
package sentinel

import (
	"context"
	"database/sql"
	"fmt"

	berrors "github.com/boundaries-lt/boundaries/internal/errors"
)

// Domain declares the legal value range of one sentinel-coded column.
// The sentinel must fall outside every domain it is applied to; this is
// validated at configuration time, never trusted at call sites.
type Domain struct {
	Table  string
	Column string

	// Min and Max bound the legal values of the column, inclusive.
	Min int64
	Max int64
}

// Codec encodes and decodes null values through a reserved sentinel.
type Codec struct {
	sentinel int64
}

// New creates a codec using the given reserved value.
func New(sentinel int64) *Codec {
	return &Codec{sentinel: sentinel}
}

// Sentinel returns the reserved value.
func (c *Codec) Sentinel() int64 {
	return c.sentinel
}

// Validate checks the sentinel against every declared column domain.
// A sentinel inside any legal domain would be silently corrupted by Decode,
// so a collision is fatal here, at configuration time.
func (c *Codec) Validate(domains []Domain) error {
	for _, d := range domains {
		if d.Min > d.Max {
			return berrors.NewInternalError(
				fmt.Sprintf("invalid domain for %s.%s: min %d > max %d", d.Table, d.Column, d.Min, d.Max), nil)
		}
		if c.sentinel >= d.Min && c.sentinel <= d.Max {
			return berrors.NewSentinelCollision(d.Table+"."+d.Column, c.sentinel)
		}
	}
	return nil
}

// Encode maps a bind value for a sentinel-coded column: nil becomes the
// sentinel, an integer passes through unchanged.
func (c *Codec) Encode(v any) any {
	if v == nil {
		return c.sentinel
	}
	return v
}

// EncodeExpr wraps a SQL expression so that null evaluates to the sentinel
// and everything else is cast to INTEGER.
func (c *Codec) EncodeExpr(expr string) string {
	return fmt.Sprintf("CAST(COALESCE(%s, %d) AS INTEGER)", expr, c.sentinel)
}

// Decode rewrites every occurrence of the sentinel in table.column back to
// true null. After Decode the sentinel never appears in the column.
func (c *Codec) Decode(ctx context.Context, db *sql.DB, table, column string) error {
	query := fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s = ?", table, column, column)
	if _, err := db.ExecContext(ctx, query, c.sentinel); err != nil {
		return berrors.NewInternalError(
			fmt.Sprintf("decode sentinel in %s.%s", table, column), err)
	}
	return nil
}

// DecodeAll runs Decode over every listed column of a table.
func (c *Codec) DecodeAll(ctx context.Context, db *sql.DB, table string, columns []string) error {
	for _, col := range columns {
		if err := c.Decode(ctx, db, table, col); err != nil {
			return err
		}
	}
	return nil
}
