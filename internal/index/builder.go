// Package index builds the lookup indexes of the finished database. Indexes
// are created only after their table fully loads, from the IndexDef list on
// the canonical table definition.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	berrors "github.com/boundaries-lt/boundaries/internal/errors"
	"github.com/boundaries-lt/boundaries/pkg/types"
)

// Builder creates table indexes in the output database.
type Builder struct {
	db *sql.DB
}

// NewBuilder creates an index builder writing through db.
func NewBuilder(db *sql.DB) *Builder {
	return &Builder{db: db}
}

// Build creates every index declared on table. Creation is idempotent, so a
// rerun against a database that already carries an index is not an error.
// Any other failure is an IndexBuildFailure naming the index.
func (b *Builder) Build(ctx context.Context, table types.Table) error {
	for _, def := range table.Indexes {
		if err := b.buildOne(ctx, table.Name, def); err != nil {
			return err
		}
	}
	log.Printf("index: %s built %d indexes", table.Name, len(table.Indexes))
	return nil
}

func (b *Builder) buildOne(ctx context.Context, tableName string, def types.IndexDef) error {
	cols := make([]string, len(def.Columns))
	for i, c := range def.Columns {
		cols[i] = c
		if def.NoCase {
			cols[i] = c + " COLLATE NOCASE"
		}
	}

	unique := ""
	if def.Unique {
		unique = "UNIQUE "
	}
	stmt := fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS idx_%s ON %s (%s)",
		unique, def.Name, tableName, strings.Join(cols, ", "))

	if _, err := b.db.ExecContext(ctx, stmt); err != nil {
		return berrors.NewIndexBuildFailure(def.Name, err).WithTable(tableName)
	}
	return nil
}
