package schema

import (
	"testing"

	"github.com/boundaries-lt/boundaries/internal/sentinel"
)

func TestAll_LoadOrderSatisfiesDependencies(t *testing.T) {
	loaded := map[string]bool{}
	for _, table := range All() {
		for _, dep := range table.DependsOn {
			if !loaded[dep] {
				t.Errorf("table %s depends on %s which loads later", table.Name, dep)
			}
		}
		loaded[table.Name] = true
	}
	if len(loaded) != 11 {
		t.Errorf("expected 11 canonical tables, got %d", len(loaded))
	}
}

func TestAll_UniqueNaturalKeys(t *testing.T) {
	for _, table := range All() {
		unique := false
		for _, idx := range table.Indexes {
			if idx.Unique {
				unique = true
			}
		}
		if !unique {
			t.Errorf("table %s has no unique natural key index", table.Name)
		}
	}
}

func TestAll_SentinelColumnsAreNullableIntegers(t *testing.T) {
	for _, table := range All() {
		for _, col := range table.Columns {
			if !col.Sentinel {
				continue
			}
			if !col.Nullable {
				t.Errorf("%s.%s: sentinel columns must be nullable", table.Name, col.Target)
			}
		}
	}
}

func TestDomains_RejectDefaultSentinelCollision(t *testing.T) {
	codec := sentinel.New(DefaultSentinel)
	if err := codec.Validate(Domains()); err != nil {
		t.Fatalf("default sentinel must sit outside every domain: %v", err)
	}

	colliding := sentinel.New(7)
	if err := colliding.Validate(Domains()); err == nil {
		t.Fatal("expected SentinelCollision for in-domain sentinel")
	}
}

func TestDomains_CoverExactlyTheSentinelColumns(t *testing.T) {
	want := map[string]bool{
		"addresses.residential_area_code": true,
		"addresses.street_code":           true,
		"purpose_types.purpose_group_id":  true,
		"parcels.status_id":               true,
		"parcels.eldership_code":          true,
	}
	domains := Domains()
	if len(domains) != len(want) {
		t.Fatalf("expected %d domains, got %d", len(want), len(domains))
	}
	for _, d := range domains {
		if !want[d.Table+"."+d.Column] {
			t.Errorf("unexpected sentinel domain %s.%s", d.Table, d.Column)
		}
	}
}
