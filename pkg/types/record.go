package types

// Record is one staged row read from an upstream dataset after parsing but
// before projection onto the canonical schema.
type Record struct {
	// Fields maps source column names to raw values. A missing key or a
	// nil value both mean the source carried no value. Values are string,
	// int64 or float64 depending on the source format.
	Fields map[string]any

	// Geometry is the EWKB-encoded feature geometry, nil for tabular rows.
	Geometry []byte
}

// Field returns the named source value, nil when absent.
func (r Record) Field(name string) any {
	return r.Fields[name]
}

// Has reports whether the record carries the named source column at all.
// Null values count as present; only columns the source never emitted are
// absent.
func (r Record) Has(name string) bool {
	_, ok := r.Fields[name]
	return ok
}

// Dataset is a fully staged source dataset in deterministic source order.
type Dataset struct {
	// Name identifies the dataset in diagnostics, usually the source
	// artifact name.
	Name string

	// Columns lists the source columns every record is expected to carry.
	Columns []string

	// Records holds the staged rows in fetch order.
	Records []Record
}

// HasColumn reports whether the dataset declares the named source column.
func (d Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}
