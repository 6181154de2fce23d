// Package integration provides end-to-end tests for the boundaries build
// pipeline against fixture HTTP sources.
package integration

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/boundaries-lt/boundaries/internal/checksum"
	"github.com/boundaries-lt/boundaries/internal/config"
	berrors "github.com/boundaries-lt/boundaries/internal/errors"
	"github.com/boundaries-lt/boundaries/internal/pipeline"
	"github.com/boundaries-lt/boundaries/internal/storage"
	_ "github.com/mattn/go-sqlite3"
)

const (
	countiesJSON = `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"APS_KODAS":5,"APS_PAV":"Kauno apskr.","PLOTAS":808060.35,"IST_DATA":"1994-08-15"},"geometry":{"type":"Polygon","coordinates":[[[400000,6000000],[500000,6000000],[500000,6100000],[400000,6000000]]]}},
		{"type":"Feature","properties":{"APS_KODAS":10,"APS_PAV":"Vilniaus apskr.","PLOTAS":965016.9,"IST_DATA":"1994-08-15"},"geometry":{"type":"Polygon","coordinates":[[[500000,6000000],[600000,6000000],[600000,6100000],[500000,6000000]]]}}
	]}`

	municipalitiesJSON = `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"SAV_KODAS":13,"SAV_PAV":"Kauno m. sav.","PLOTAS":15699.9,"IST_DATA":"1994-08-15","APS_KODAS":5},"geometry":{"type":"Polygon","coordinates":[[[450000,6050000],[460000,6050000],[460000,6060000],[450000,6050000]]]}},
		{"type":"Feature","properties":{"SAV_KODAS":21,"SAV_PAV":"Vilniaus m. sav.","PLOTAS":40102.1,"IST_DATA":"1994-08-15","APS_KODAS":10},"geometry":{"type":"Polygon","coordinates":[[[570000,6050000],[580000,6050000],[580000,6060000],[570000,6050000]]]}}
	]}`

	eldershipsJSON = `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"SEN_KODAS":1301,"SEN_PAV":"Centro sen.","PLOTAS":300.5,"IST_DATA":"2000-01-01","SAV_KODAS":13},"geometry":{"type":"Polygon","coordinates":[[[450000,6050000],[451000,6050000],[451000,6051000],[450000,6050000]]]}},
		{"type":"Feature","properties":{"SEN_KODAS":2101,"SEN_PAV":"Senamiescio sen.","PLOTAS":448.8,"IST_DATA":"2000-01-01","SAV_KODAS":21},"geometry":{"type":"Polygon","coordinates":[[[570000,6050000],[571000,6050000],[571000,6051000],[570000,6050000]]]}}
	]}`

	residentialAreasJSON = `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"GYV_KODAS":20001,"GYV_PAV":"Kaunas","PLOTAS":15699.9,"IST_DATA":"1994-08-15","SAV_KODAS":13},"geometry":{"type":"Polygon","coordinates":[[[450000,6050000],[460000,6050000],[460000,6060000],[450000,6050000]]]}},
		{"type":"Feature","properties":{"GYV_KODAS":20002,"GYV_PAV":"Vilnius","PLOTAS":40102.1,"IST_DATA":"1994-08-15","SAV_KODAS":21},"geometry":{"type":"Polygon","coordinates":[[[570000,6050000],[580000,6050000],[580000,6060000],[570000,6050000]]]}}
	]}`

	streetsJSON = `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"GAT_KODAS":501,"GAT_PAV":"Laisves al.","GAT_PAV_PILNAS":"Laisves aleja","ILGIS":1621.5,"IST_DATA":"1994-08-15","GYV_KODAS":20001},"geometry":{"type":"LineString","coordinates":[[450100,6050100],[450200,6050200]]}},
		{"type":"Feature","properties":{"GAT_KODAS":502,"GAT_PAV":"Pilies g.","GAT_PAV_PILNAS":"Pilies gatve","ILGIS":540.0,"IST_DATA":"1994-08-15","GYV_KODAS":20002},"geometry":{"type":"LineString","coordinates":[[570100,6050100],[570200,6050200]]}}
	]}`

	regionIndexCSV = "13|Kauno m. sav.\n21|Vilniaus m. sav.\n"

	// Point 999 in region 21 has no attribute record: the join drops it.
	addressPoints13 = `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"AOB_KODAS":101},"geometry":{"type":"Point","coordinates":[450150,6050150]}},
		{"type":"Feature","properties":{"AOB_KODAS":102},"geometry":{"type":"Point","coordinates":[450160,6050160]}}
	]}`
	addressPoints21 = `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"AOB_KODAS":201},"geometry":{"type":"Point","coordinates":[570150,6050150]}},
		{"type":"Feature","properties":{"AOB_KODAS":999},"geometry":{"type":"Point","coordinates":[570160,6050160]}}
	]}`

	// Attribute 300 has no point: it never reaches the table. Address 102
	// sits outside any street, address 201 outside any residential area.
	addressAttrsCSV = "AOB_KODAS|NR|PASTO_KODAS|KORPUSO_NR|AOB_NUO|SAV_KODAS|GYV_KODAS|GAT_KODAS\n" +
		"101|15|LT-44311||1998-03-02|13|20001|501\n" +
		"102|2A|LT-44312||1998-03-02|13|20001|\n" +
		"201|7|LT-01101|B|2001-06-10|21||\n" +
		"300|9|LT-99999||2001-06-10|21|20002|502\n"

	roomsCSV = "PAT_KODAS|PATALPOS_NR|AOB_KODAS|PAT_NUO\n" +
		"7001|1|101|2001-01-12\n" +
		"7002|2|101|\n"

	purposeGroupsCSV = "GRUPE_ID|PAVADINIMAS|PILNAS_PAVADINIMAS|PAKEITIMO_DATA\n" +
		"1|Gyvenamosios|Gyvenamosios paskirties|2020-05-01\n" +
		"2|Kitos|Kitos paskirties|2020-05-01\n"

	// Purpose 999 belongs to no group: the sentinel path.
	purposeTypesCSV = "PASKIRTIS_ID|GRUPE_ID|PAVADINIMAS|PILNAS_PAVADINIMAS|PAVADINIMAS_EN|PILNAS_PAVADINIMAS_EN|PAKEITIMO_DATA\n" +
		"110|1|Gyvenamoji|Gyvenamoji (viena seima)|Residential|Residential (single family)|2020-05-01\n" +
		"999||Kita|Kita paskirtis|Other|Other purpose|2020-05-01\n"

	statusTypesCSV = "STATUSAS_ID|PAVADINIMAS|PILNAS_PAVADINIMAS|PAVADINIMAS_EN|PILNAS_PAVADINIMAS_EN|PAKEITIMO_DATA\n" +
		"1|Suformuotas|Suformuotas sklypas|Formed|Formed parcel|2020-05-01\n" +
		"2|Registruotas|Registruotas sklypas|Registered|Registered parcel|2020-05-01\n"

	parcels13 = `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"UNIKALUS_NR":900001,"KADASTRO_NR":"1301/0001:1","STATUSAS_ID":null,"PASKIRTIS_ID":110,"PAKEITIMO_DATA":"2024-02-01","PLOTAS":0.25,"SAV_KODAS":13,"SEN_KODAS":1301},"geometry":{"type":"Polygon","coordinates":[[[450100,6050100],[450110,6050100],[450110,6050110],[450100,6050100]]]}}
	]}`
	// Parcel 900001 repeats in region 21: the merge keeps the first region's row.
	parcels21 = `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"UNIKALUS_NR":900001,"KADASTRO_NR":"1301/0001:1","STATUSAS_ID":null,"PASKIRTIS_ID":110,"PAKEITIMO_DATA":"2024-02-01","PLOTAS":0.25,"SAV_KODAS":13,"SEN_KODAS":1301},"geometry":{"type":"Polygon","coordinates":[[[450100,6050100],[450110,6050100],[450110,6050110],[450100,6050100]]]}},
		{"type":"Feature","properties":{"UNIKALUS_NR":900002,"KADASTRO_NR":"0101/0002:7","STATUSAS_ID":1,"PASKIRTIS_ID":999,"PAKEITIMO_DATA":"2024-03-15","PLOTAS":1.75,"SAV_KODAS":21,"SEN_KODAS":null},"geometry":{"type":"Polygon","coordinates":[[[570100,6050100],[570110,6050100],[570110,6050110],[570100,6050100]]]}}
	]}`
)

func zipOf(t *testing.T, member string, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(member)
	if err != nil {
		t.Fatalf("create zip member failed: %v", err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatalf("write zip member failed: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip failed: %v", err)
	}
	return buf.Bytes()
}

// fixtureServer serves a complete consistent set of upstream exports.
func fixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	serve := func(path, content string) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, content)
		})
	}
	serve("/counties.json", countiesJSON)
	serve("/municipalities.json", municipalitiesJSON)
	serve("/elderships.json", eldershipsJSON)
	serve("/residential_areas.json", residentialAreasJSON)
	serve("/streets.json", streetsJSON)
	serve("/regions.csv", regionIndexCSV)
	serve("/adr_13.json", addressPoints13)
	serve("/adr_21.json", addressPoints21)
	serve("/attrs.csv", addressAttrsCSV)
	serve("/rooms.csv", roomsCSV)
	serve("/groups.csv", purposeGroupsCSV)
	serve("/purposes.csv", purposeTypesCSV)
	serve("/statuses.csv", statusTypesCSV)

	zip13 := zipOf(t, "sklypai_13.json", parcels13)
	zip21 := zipOf(t, "sklypai_21.json", parcels21)
	mux.HandleFunc("/kad_13.zip", func(w http.ResponseWriter, r *http.Request) { w.Write(zip13) })
	mux.HandleFunc("/kad_21.zip", func(w http.ResponseWriter, r *http.Request) { w.Write(zip21) })

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func fixtureConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Fetch.Retries = 0
	cfg.Fetch.RetryDelay = 10 * time.Millisecond
	cfg.Fetch.Timeout = 10 * time.Second
	cfg.Sources.Counties = baseURL + "/counties.json"
	cfg.Sources.Municipalities = baseURL + "/municipalities.json"
	cfg.Sources.Elderships = baseURL + "/elderships.json"
	cfg.Sources.ResidentialAreas = baseURL + "/residential_areas.json"
	cfg.Sources.Streets = baseURL + "/streets.json"
	cfg.Sources.AddressRegionIndex = baseURL + "/regions.csv"
	cfg.Sources.AddressPointsTemplate = baseURL + "/adr_%s.json"
	cfg.Sources.AddressAttributes = baseURL + "/attrs.csv"
	cfg.Sources.Rooms = baseURL + "/rooms.csv"
	cfg.Sources.PurposeGroups = baseURL + "/groups.csv"
	cfg.Sources.PurposeTypes = baseURL + "/purposes.csv"
	cfg.Sources.StatusTypes = baseURL + "/statuses.csv"
	cfg.Sources.ParcelsTemplate = baseURL + "/kad_%s.zip"
	cfg.Resolve()
	return cfg
}

func runBuild(t *testing.T, cfg *config.Config, store storage.Store) *pipeline.Result {
	t.Helper()
	p, err := pipeline.New(cfg, store)
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return result
}

func TestPipeline_FullBuild(t *testing.T) {
	srv := fixtureServer(t)
	cfg := fixtureConfig(t, srv.URL)
	result := runBuild(t, cfg, nil)

	want := map[string]int64{
		"counties":          2,
		"municipalities":    2,
		"elderships":        2,
		"residential_areas": 2,
		"streets":           2,
		"addresses":         3,
		"rooms":             2,
		"purpose_groups":    2,
		"purpose_types":     2,
		"status_types":      2,
		"parcels":           2,
	}
	for table, n := range want {
		if result.Tables[table] != n {
			t.Errorf("table %s: expected %d rows, got %d", table, n, result.Tables[table])
		}
	}

	db, err := sql.Open("sqlite3", result.DatabasePath)
	if err != nil {
		t.Fatalf("failed to open built database: %v", err)
	}
	defer db.Close()

	// Every address resolves its parents; absent parents are true null.
	var orphans int
	if err := db.QueryRow(`
		SELECT COUNT(*) FROM addresses a
		WHERE NOT EXISTS (SELECT 1 FROM municipalities m WHERE m.code = a.municipality_code)
		   OR (a.residential_area_code IS NOT NULL AND NOT EXISTS
		       (SELECT 1 FROM residential_areas r WHERE r.code = a.residential_area_code))
		   OR (a.street_code IS NOT NULL AND NOT EXISTS
		       (SELECT 1 FROM streets s WHERE s.code = a.street_code))
	`).Scan(&orphans); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if orphans != 0 {
		t.Errorf("expected no orphaned addresses, found %d", orphans)
	}

	var sentinels int
	if err := db.QueryRow(`
		SELECT (SELECT COUNT(*) FROM addresses WHERE residential_area_code = -1 OR street_code = -1)
		     + (SELECT COUNT(*) FROM parcels WHERE eldership_code = -1 OR status_id = -1)
		     + (SELECT COUNT(*) FROM purpose_types WHERE purpose_group_id = -1)
	`).Scan(&sentinels); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if sentinels != 0 {
		t.Errorf("sentinel values must not survive the build, found %d", sentinels)
	}

	var nullStreet int
	if err := db.QueryRow("SELECT COUNT(*) FROM addresses WHERE street_code IS NULL").Scan(&nullStreet); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if nullStreet != 2 {
		t.Errorf("expected 2 addresses without a street, got %d", nullStreet)
	}

	var geomLen int
	if err := db.QueryRow("SELECT LENGTH(geom) FROM addresses WHERE code = 101").Scan(&geomLen); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if geomLen == 0 {
		t.Error("expected EWKB geometry on address 101")
	}

	// The manifest lists every fetched artifact: 5 boundary exports, the
	// region index, 2 address fragments, 5 delimited exports, 2 parcel
	// bundles.
	manifest, err := os.ReadFile(result.ManifestPath)
	if err != nil {
		t.Fatalf("failed to read manifest: %v", err)
	}
	entries, err := checksum.ParseManifest(manifest)
	if err != nil {
		t.Fatalf("failed to parse manifest: %v", err)
	}
	if len(entries) != 15 {
		t.Errorf("expected 15 manifest entries, got %d", len(entries))
	}
}

func TestPipeline_ManifestReproducible(t *testing.T) {
	srv := fixtureServer(t)

	first := runBuild(t, fixtureConfig(t, srv.URL), nil)
	second := runBuild(t, fixtureConfig(t, srv.URL), nil)

	a, err := os.ReadFile(first.ManifestPath)
	if err != nil {
		t.Fatalf("read first manifest: %v", err)
	}
	b, err := os.ReadFile(second.ManifestPath)
	if err != nil {
		t.Fatalf("read second manifest: %v", err)
	}
	if diff := checksum.Compare(a, b); !diff.Empty() {
		t.Errorf("manifests differ across identical runs:\n%s", diff)
	}
}

func TestPipeline_FailedRegionAbortsBuild(t *testing.T) {
	srv := fixtureServer(t)
	cfg := fixtureConfig(t, srv.URL)

	// One address fragment permanently unavailable.
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer broken.Close()
	cfg.Sources.AddressPointsTemplate = broken.URL + "/adr_%s.json"

	p, err := pipeline.New(cfg, nil)
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}
	_, err = p.Run(context.Background())
	if err == nil {
		t.Fatal("expected PartialRegionSet")
	}
	if !errors.Is(err, berrors.New(berrors.ErrCategoryRegion, berrors.CodePartialRegionSet, "")) {
		t.Errorf("expected PartialRegionSet, got %v", err)
	}
	if p.State() != pipeline.StateFailed {
		t.Errorf("expected failed state, got %s", p.State())
	}

	// Nothing promoted.
	if _, err := os.Stat(cfg.Output.DatabasePath); !os.IsNotExist(err) {
		t.Error("failed build must not promote a database")
	}
	if _, err := os.Stat(cfg.Output.ManifestPath); !os.IsNotExist(err) {
		t.Error("failed build must not write a manifest")
	}

	// Staged work is discarded on failure as well.
	entries, err := os.ReadDir(cfg.Output.StagingDir)
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("failed build must discard its run directory, found %d entries", len(entries))
	}
}

func TestPipeline_PublishAndPriorCompare(t *testing.T) {
	srv := fixtureServer(t)

	storeDir := t.TempDir()
	store, err := storage.NewLocalStore(storeDir)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	cfg := fixtureConfigWithStore(t, srv.URL)

	first := runBuild(t, cfg, store)
	if !first.ManifestChanged {
		t.Error("first publication must report changed sources")
	}

	ok, err := store.Exists(context.Background(), "latest/boundaries.sqlite")
	if err != nil || !ok {
		t.Errorf("expected published database, exists=%v err=%v", ok, err)
	}

	archived, err := store.List(context.Background(), "runs/")
	if err != nil {
		t.Fatalf("list archives failed: %v", err)
	}
	if len(archived) != 1 {
		t.Errorf("expected 1 archived manifest after first run, got %v", archived)
	}

	second := runBuild(t, fixtureConfigWithStore(t, srv.URL), store)
	if second.ManifestChanged {
		t.Errorf("unchanged sources must report an empty diff, got:\n%s", second.ManifestDiff)
	}

	// KeepRuns 1: the second run's archive evicts the first.
	archived, err = store.List(context.Background(), "runs/")
	if err != nil {
		t.Fatalf("list archives failed: %v", err)
	}
	if len(archived) != 1 {
		t.Errorf("expected retention to keep 1 archived manifest, got %v", archived)
	}
}

func fixtureConfigWithStore(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := fixtureConfig(t, baseURL)
	cfg.Publish.Enabled = true
	cfg.Publish.KeepRuns = 1
	return cfg
}
