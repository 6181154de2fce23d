package types

// ColumnType is the canonical target type of a column in the output database.
type ColumnType string

const (
	ColInteger  ColumnType = "INTEGER"
	ColReal     ColumnType = "REAL"
	ColText     ColumnType = "TEXT"
	ColDate     ColumnType = "DATE"
	ColGeometry ColumnType = "GEOMETRY"
)

// ColumnMapping projects one source column onto one canonical column.
// Mappings are data: the loader derives both DDL and the insert list from
// them instead of assembling per-table SQL by hand.
type ColumnMapping struct {
	// Source is the column or feature-property name in the upstream dataset.
	Source string

	// Target is the canonical column name.
	Target string

	// Type is the canonical column type.
	Type ColumnType

	// Nullable indicates whether the finished column may hold NULL.
	Nullable bool

	// Sentinel marks a nullable integer column whose NULLs are carried
	// through the load as the reserved sentinel and decoded afterwards.
	Sentinel bool
}

// IndexDef defines one index on a canonical table.
type IndexDef struct {
	// Name is the index name.
	Name string

	// Columns lists the indexed columns in order.
	Columns []string

	// Unique indicates whether the index enforces uniqueness.
	Unique bool

	// NoCase applies case-insensitive collation to every column.
	// Used for human-entered name columns.
	NoCase bool
}

// Table is the canonical definition of one output table.
type Table struct {
	// Name is the table name in the output database.
	Name string

	// KeyColumn is the implicit integer primary key (feature identifier).
	KeyColumn string

	// Columns lists the source-to-canonical column mappings in output order.
	Columns []ColumnMapping

	// Indexes lists the indexes built after the table fully loads.
	Indexes []IndexDef

	// DependsOn names parent tables that must be loaded and indexed first.
	DependsOn []string
}

// Column returns the mapping for the given target column name.
func (t Table) Column(target string) (ColumnMapping, bool) {
	for _, c := range t.Columns {
		if c.Target == target {
			return c, true
		}
	}
	return ColumnMapping{}, false
}

// SentinelColumns returns the target names of all sentinel-coded columns.
func (t Table) SentinelColumns() []string {
	var cols []string
	for _, c := range t.Columns {
		if c.Sentinel {
			cols = append(cols, c.Target)
		}
	}
	return cols
}
