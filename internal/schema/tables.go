// Package schema holds the canonical cross-source table definitions. Every
// upstream dataset is projected onto these tables through explicit column
// mappings: the mapping list is data driving both DDL and inserts, never
// generated SQL text.
package schema

import (
	"github.com/boundaries-lt/boundaries/internal/sentinel"
	"github.com/boundaries-lt/boundaries/pkg/types"
)

// SRID is the single coordinate reference system of every geometry column:
// LKS 94 / Lithuanian TM (EPSG:3346).
const SRID = 3346

// DefaultSentinel is the reserved value carried through typed loads in place
// of null. All registry codes and classifier identifiers are positive, so -1
// sits outside every legal domain; Domains() is still validated against it
// at configuration time.
const DefaultSentinel = -1

// GeometryColumn is the canonical geometry column name.
const GeometryColumn = "geom"

func Counties() types.Table {
	return types.Table{
		Name:      "counties",
		KeyColumn: "feature_id",
		Columns: []types.ColumnMapping{
			{Source: "APS_KODAS", Target: "code", Type: types.ColInteger},
			{Source: "APS_PAV", Target: "name", Type: types.ColText},
			{Source: "PLOTAS", Target: "area_ha", Type: types.ColReal, Nullable: true},
			{Source: "IST_DATA", Target: "created_at", Type: types.ColDate, Nullable: true},
			{Source: GeometryColumn, Target: GeometryColumn, Type: types.ColGeometry},
		},
		Indexes: []types.IndexDef{
			{Name: "counties_code", Columns: []string{"code"}, Unique: true},
			{Name: "counties_name", Columns: []string{"name"}, NoCase: true},
		},
	}
}

func Municipalities() types.Table {
	return types.Table{
		Name:      "municipalities",
		KeyColumn: "feature_id",
		DependsOn: []string{"counties"},
		Columns: []types.ColumnMapping{
			{Source: "SAV_KODAS", Target: "code", Type: types.ColInteger},
			{Source: "SAV_PAV", Target: "name", Type: types.ColText},
			{Source: "PLOTAS", Target: "area_ha", Type: types.ColReal, Nullable: true},
			{Source: "IST_DATA", Target: "created_at", Type: types.ColDate, Nullable: true},
			{Source: "APS_KODAS", Target: "county_code", Type: types.ColInteger},
			{Source: GeometryColumn, Target: GeometryColumn, Type: types.ColGeometry},
		},
		Indexes: []types.IndexDef{
			{Name: "municipalities_code", Columns: []string{"code"}, Unique: true},
			{Name: "municipalities_name", Columns: []string{"name"}, NoCase: true},
			{Name: "municipalities_county_code", Columns: []string{"county_code"}},
		},
	}
}

func Elderships() types.Table {
	return types.Table{
		Name:      "elderships",
		KeyColumn: "feature_id",
		DependsOn: []string{"municipalities"},
		Columns: []types.ColumnMapping{
			{Source: "SEN_KODAS", Target: "code", Type: types.ColInteger},
			{Source: "SEN_PAV", Target: "name", Type: types.ColText},
			{Source: "PLOTAS", Target: "area_ha", Type: types.ColReal, Nullable: true},
			{Source: "IST_DATA", Target: "created_at", Type: types.ColDate, Nullable: true},
			{Source: "SAV_KODAS", Target: "municipality_code", Type: types.ColInteger},
			{Source: GeometryColumn, Target: GeometryColumn, Type: types.ColGeometry},
		},
		Indexes: []types.IndexDef{
			{Name: "elderships_code", Columns: []string{"code"}, Unique: true},
			{Name: "elderships_name", Columns: []string{"name"}, NoCase: true},
			{Name: "elderships_municipality_code", Columns: []string{"municipality_code"}},
		},
	}
}

func ResidentialAreas() types.Table {
	return types.Table{
		Name:      "residential_areas",
		KeyColumn: "feature_id",
		DependsOn: []string{"municipalities"},
		Columns: []types.ColumnMapping{
			{Source: "GYV_KODAS", Target: "code", Type: types.ColInteger},
			{Source: "GYV_PAV", Target: "name", Type: types.ColText},
			{Source: "PLOTAS", Target: "area_ha", Type: types.ColReal, Nullable: true},
			{Source: "IST_DATA", Target: "created_at", Type: types.ColDate, Nullable: true},
			{Source: "SAV_KODAS", Target: "municipality_code", Type: types.ColInteger},
			{Source: GeometryColumn, Target: GeometryColumn, Type: types.ColGeometry},
		},
		Indexes: []types.IndexDef{
			{Name: "residential_areas_code", Columns: []string{"code"}, Unique: true},
			{Name: "residential_areas_name", Columns: []string{"name"}, NoCase: true},
			{Name: "residential_areas_municipality_code", Columns: []string{"municipality_code"}},
		},
	}
}

func Streets() types.Table {
	return types.Table{
		Name:      "streets",
		KeyColumn: "feature_id",
		DependsOn: []string{"residential_areas"},
		Columns: []types.ColumnMapping{
			{Source: "GAT_KODAS", Target: "code", Type: types.ColInteger},
			{Source: "GAT_PAV", Target: "name", Type: types.ColText},
			{Source: "GAT_PAV_PILNAS", Target: "full_name", Type: types.ColText},
			{Source: "ILGIS", Target: "length_m", Type: types.ColReal, Nullable: true},
			{Source: "IST_DATA", Target: "created_at", Type: types.ColDate, Nullable: true},
			{Source: "GYV_KODAS", Target: "residential_area_code", Type: types.ColInteger},
			{Source: GeometryColumn, Target: GeometryColumn, Type: types.ColGeometry},
		},
		Indexes: []types.IndexDef{
			{Name: "streets_code", Columns: []string{"code"}, Unique: true},
			{Name: "streets_name", Columns: []string{"name"}, NoCase: true},
			{Name: "streets_full_name", Columns: []string{"full_name"}, NoCase: true},
			{Name: "streets_residential_area_code", Columns: []string{"residential_area_code"}},
		},
	}
}

// Addresses is loaded from the inner join of per-region point fragments and
// the national attribute export, both keyed by AOB_KODAS.
func Addresses() types.Table {
	return types.Table{
		Name:      "addresses",
		KeyColumn: "feature_id",
		DependsOn: []string{"municipalities", "residential_areas", "streets"},
		Columns: []types.ColumnMapping{
			{Source: "AOB_KODAS", Target: "code", Type: types.ColInteger},
			{Source: "NR", Target: "plot_or_building_number", Type: types.ColText},
			{Source: "PASTO_KODAS", Target: "postal_code", Type: types.ColText, Nullable: true},
			{Source: "KORPUSO_NR", Target: "building_block_number", Type: types.ColText, Nullable: true},
			{Source: "AOB_NUO", Target: "created_at", Type: types.ColDate, Nullable: true},
			{Source: "SAV_KODAS", Target: "municipality_code", Type: types.ColInteger},
			{Source: "GYV_KODAS", Target: "residential_area_code", Type: types.ColInteger, Nullable: true, Sentinel: true},
			{Source: "GAT_KODAS", Target: "street_code", Type: types.ColInteger, Nullable: true, Sentinel: true},
			{Source: GeometryColumn, Target: GeometryColumn, Type: types.ColGeometry},
		},
		Indexes: []types.IndexDef{
			{Name: "addresses_code", Columns: []string{"code"}, Unique: true},
			{Name: "addresses_municipality_code", Columns: []string{"municipality_code"}},
			{Name: "addresses_residential_area_code", Columns: []string{"residential_area_code"}},
			{Name: "addresses_street_code", Columns: []string{"street_code"}},
			{Name: "addresses_postal_code", Columns: []string{"postal_code"}},
		},
	}
}

func Rooms() types.Table {
	return types.Table{
		Name:      "rooms",
		DependsOn: []string{"addresses"},
		Columns: []types.ColumnMapping{
			{Source: "PAT_KODAS", Target: "code", Type: types.ColInteger},
			{Source: "PATALPOS_NR", Target: "room_number", Type: types.ColText},
			{Source: "PAT_NUO", Target: "created_at", Type: types.ColDate, Nullable: true},
			{Source: "AOB_KODAS", Target: "address_code", Type: types.ColInteger},
		},
		Indexes: []types.IndexDef{
			{Name: "rooms_code", Columns: []string{"code"}, Unique: true},
			{Name: "rooms_address_code", Columns: []string{"address_code"}},
		},
	}
}

func PurposeGroups() types.Table {
	return types.Table{
		Name: "purpose_groups",
		Columns: []types.ColumnMapping{
			{Source: "GRUPE_ID", Target: "group_id", Type: types.ColInteger},
			{Source: "PAVADINIMAS", Target: "name", Type: types.ColText},
			{Source: "PILNAS_PAVADINIMAS", Target: "full_name", Type: types.ColText, Nullable: true},
			{Source: "PAKEITIMO_DATA", Target: "updated_at", Type: types.ColDate, Nullable: true},
		},
		Indexes: []types.IndexDef{
			{Name: "purpose_groups_group_id", Columns: []string{"group_id"}, Unique: true},
		},
	}
}

func PurposeTypes() types.Table {
	return types.Table{
		Name:      "purpose_types",
		DependsOn: []string{"purpose_groups"},
		Columns: []types.ColumnMapping{
			{Source: "PASKIRTIS_ID", Target: "purpose_id", Type: types.ColInteger},
			{Source: "GRUPE_ID", Target: "purpose_group_id", Type: types.ColInteger, Nullable: true, Sentinel: true},
			{Source: "PAVADINIMAS", Target: "name", Type: types.ColText},
			{Source: "PILNAS_PAVADINIMAS", Target: "full_name", Type: types.ColText, Nullable: true},
			{Source: "PAVADINIMAS_EN", Target: "name_en", Type: types.ColText, Nullable: true},
			{Source: "PILNAS_PAVADINIMAS_EN", Target: "full_name_en", Type: types.ColText, Nullable: true},
			{Source: "PAKEITIMO_DATA", Target: "updated_at", Type: types.ColDate, Nullable: true},
		},
		Indexes: []types.IndexDef{
			{Name: "purpose_types_purpose_id", Columns: []string{"purpose_id"}, Unique: true},
			{Name: "purpose_types_purpose_group_id", Columns: []string{"purpose_group_id"}},
		},
	}
}

func StatusTypes() types.Table {
	return types.Table{
		Name: "status_types",
		Columns: []types.ColumnMapping{
			{Source: "STATUSAS_ID", Target: "status_id", Type: types.ColInteger},
			{Source: "PAVADINIMAS", Target: "name", Type: types.ColText},
			{Source: "PILNAS_PAVADINIMAS", Target: "full_name", Type: types.ColText, Nullable: true},
			{Source: "PAVADINIMAS_EN", Target: "name_en", Type: types.ColText, Nullable: true},
			{Source: "PILNAS_PAVADINIMAS_EN", Target: "full_name_en", Type: types.ColText, Nullable: true},
			{Source: "PAKEITIMO_DATA", Target: "updated_at", Type: types.ColDate, Nullable: true},
		},
		Indexes: []types.IndexDef{
			{Name: "status_types_status_id", Columns: []string{"status_id"}, Unique: true},
		},
	}
}

func Parcels() types.Table {
	return types.Table{
		Name:      "parcels",
		KeyColumn: "ogc_fid",
		DependsOn: []string{"municipalities", "elderships", "purpose_types", "status_types"},
		Columns: []types.ColumnMapping{
			{Source: "UNIKALUS_NR", Target: "unique_number", Type: types.ColInteger},
			{Source: "KADASTRO_NR", Target: "cadastral_number", Type: types.ColText, Nullable: true},
			{Source: "STATUSAS_ID", Target: "status_id", Type: types.ColInteger, Nullable: true, Sentinel: true},
			{Source: "PASKIRTIS_ID", Target: "purpose_id", Type: types.ColInteger},
			{Source: "PAKEITIMO_DATA", Target: "updated_at", Type: types.ColDate, Nullable: true},
			{Source: "PLOTAS", Target: "area_ha", Type: types.ColReal, Nullable: true},
			{Source: "SAV_KODAS", Target: "municipality_code", Type: types.ColInteger},
			{Source: "SEN_KODAS", Target: "eldership_code", Type: types.ColInteger, Nullable: true, Sentinel: true},
			{Source: GeometryColumn, Target: GeometryColumn, Type: types.ColGeometry},
		},
		Indexes: []types.IndexDef{
			{Name: "parcels_unique_number", Columns: []string{"unique_number"}, Unique: true},
			{Name: "parcels_cadastral_number", Columns: []string{"cadastral_number"}},
			{Name: "parcels_municipality_code", Columns: []string{"municipality_code"}},
			{Name: "parcels_purpose_id", Columns: []string{"purpose_id"}},
			{Name: "parcels_status_id", Columns: []string{"status_id"}},
		},
	}
}

// All returns every canonical table in load order: parents before children,
// classification tables before parcels. The pipeline verifies this order
// against each table's DependsOn declaration.
func All() []types.Table {
	return []types.Table{
		Counties(),
		Municipalities(),
		Elderships(),
		ResidentialAreas(),
		Streets(),
		Addresses(),
		Rooms(),
		PurposeGroups(),
		PurposeTypes(),
		StatusTypes(),
		Parcels(),
	}
}

// Domains declares the legal value domain of every sentinel-coded column.
// Registry codes and classifier identifiers are positive integers.
func Domains() []sentinel.Domain {
	var domains []sentinel.Domain
	for _, t := range All() {
		for _, col := range t.SentinelColumns() {
			domains = append(domains, sentinel.Domain{
				Table:  t.Name,
				Column: col,
				Min:    1,
				Max:    1 << 50,
			})
		}
	}
	return domains
}
