// Package pipeline orchestrates a full build run: fetch every upstream
// source, stage and merge per-region fragments, load the canonical tables in
// dependency order, build indexes, and promote the finished database and its
// checksum manifest atomically.
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/boundaries-lt/boundaries/internal/checksum"
	"github.com/boundaries-lt/boundaries/internal/config"
	berrors "github.com/boundaries-lt/boundaries/internal/errors"
	"github.com/boundaries-lt/boundaries/internal/fetch"
	"github.com/boundaries-lt/boundaries/internal/index"
	"github.com/boundaries-lt/boundaries/internal/loader"
	"github.com/boundaries-lt/boundaries/internal/region"
	"github.com/boundaries-lt/boundaries/internal/schema"
	"github.com/boundaries-lt/boundaries/internal/sentinel"
	"github.com/boundaries-lt/boundaries/internal/source"
	"github.com/boundaries-lt/boundaries/internal/staging"
	"github.com/boundaries-lt/boundaries/internal/storage"
	"github.com/boundaries-lt/boundaries/pkg/types"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// State is the pipeline run state.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateStaging    State = "staging"
	StateLoading    State = "loading"
	StateFinalizing State = "finalizing"
	StatePublishing State = "publishing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Result summarizes a finished build run.
type Result struct {
	// RunID identifies the run's staging directory.
	RunID string

	// DatabasePath is the promoted database location.
	DatabasePath string

	// ManifestPath is the written manifest location.
	ManifestPath string

	// Tables maps each canonical table to its loaded row count.
	Tables map[string]int64

	// ManifestChanged reports whether the manifest differs from the
	// previously published one. Only meaningful when publication with
	// prior comparison is enabled.
	ManifestChanged bool

	// ManifestDiff is the line diff against the prior published manifest.
	ManifestDiff checksum.Diff
}

// Pipeline runs builds.
type Pipeline struct {
	cfg   *config.Config
	store storage.Store
	state State
}

// New creates a pipeline. store may be nil when publication is disabled.
func New(cfg *config.Config, store storage.Store) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, berrors.NewInternalError("invalid configuration", err)
	}
	codec := sentinel.New(cfg.Sentinel)
	if err := codec.Validate(schema.Domains()); err != nil {
		return nil, err
	}
	if cfg.Publish.Enabled && store == nil {
		return nil, berrors.NewInternalError("publication enabled without a store", nil)
	}
	return &Pipeline{cfg: cfg, store: store, state: StateIdle}, nil
}

// State returns the current run state.
func (p *Pipeline) State() State {
	return p.state
}

func (p *Pipeline) setState(s State) {
	log.Printf("pipeline: %s -> %s", p.state, s)
	p.state = s
}

// Run executes one full build. Any failure leaves the previously promoted
// database and manifest untouched.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	result, err := p.run(ctx)
	if err != nil {
		p.setState(StateFailed)
		return nil, err
	}
	p.setState(StateDone)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context) (*Result, error) {
	if err := p.cfg.EnsureDirectories(); err != nil {
		return nil, berrors.NewInternalError("prepare directories", err)
	}

	runID := uuid.New().String()
	runDir := filepath.Join(p.cfg.Output.StagingDir, "run-"+runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, berrors.NewInternalError("create run directory", err)
	}
	// Staged work is discarded whether the run succeeds or fails; the
	// promoted artifacts are the only output that survives.
	defer func() {
		if err := os.RemoveAll(runDir); err != nil {
			log.Printf("pipeline: leaving run directory %s: %v", runDir, err)
		}
	}()
	log.Printf("pipeline: run %s staging in %s", runID, runDir)

	ledger := checksum.NewLedger()
	fetcher := fetch.NewFetcher(runDir, ledger, fetch.Options{
		Retries:      p.cfg.Fetch.Retries,
		RetryDelay:   p.cfg.Fetch.RetryDelay,
		Timeout:      p.cfg.Fetch.Timeout,
		MaxRedirects: p.cfg.Fetch.MaxRedirects,
	})

	p.setState(StateFetching)
	arts, err := p.fetchAll(ctx, fetcher)
	if err != nil {
		return nil, err
	}

	p.setState(StateStaging)
	datasets, err := p.stage(runDir, arts)
	if err != nil {
		return nil, err
	}

	p.setState(StateLoading)
	tmpDB := filepath.Join(runDir, "boundaries.sqlite")
	tables, err := p.load(ctx, tmpDB, datasets)
	if err != nil {
		return nil, err
	}

	p.setState(StateFinalizing)
	stagedManifest := filepath.Join(runDir, "data-sources-checksums.txt")
	if err := ledger.WriteManifest(stagedManifest); err != nil {
		return nil, berrors.NewInternalError("write manifest", err)
	}
	if err := promoteArtifacts(tmpDB, stagedManifest, p.cfg.Output.DatabasePath, p.cfg.Output.ManifestPath); err != nil {
		return nil, err
	}

	result := &Result{
		RunID:        runID,
		DatabasePath: p.cfg.Output.DatabasePath,
		ManifestPath: p.cfg.Output.ManifestPath,
		Tables:       tables,
	}

	if p.cfg.Publish.Enabled {
		p.setState(StatePublishing)
		if err := p.publish(ctx, runDir, ledger, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// promoteArtifacts moves the fully written database and manifest from the run
// directory to their final paths. Both artifacts exist before the first
// rename, so a failed manifest write never costs the previously promoted
// database. The database moves first: a stale manifest next to a fresh
// database only triggers a rebuild on the next run, while the reverse would
// suppress rebuilds against old data.
func promoteArtifacts(stagedDB, stagedManifest, dbPath, manifestPath string) error {
	if _, err := os.Stat(stagedManifest); err != nil {
		return berrors.NewInternalError("staged manifest missing", err)
	}
	if err := os.Rename(stagedDB, dbPath); err != nil {
		return berrors.NewInternalError("promote database", err)
	}
	if err := os.Rename(stagedManifest, manifestPath); err != nil {
		return berrors.NewInternalError("promote manifest", err)
	}
	return nil
}

// artifacts holds every fetched source of one run.
type artifacts struct {
	counties         *fetch.Artifact
	municipalities   *fetch.Artifact
	elderships       *fetch.Artifact
	residentialAreas *fetch.Artifact
	streets          *fetch.Artifact
	addressPoints    []region.Fragment
	addressAttrs     *fetch.Artifact
	rooms            *fetch.Artifact
	purposeGroups    *fetch.Artifact
	purposeTypes     *fetch.Artifact
	statusTypes      *fetch.Artifact
	parcels          []region.Fragment
}

// fetchAll downloads every source in a fixed order so the manifest line
// order is identical across runs.
func (p *Pipeline) fetchAll(ctx context.Context, fetcher *fetch.Fetcher) (*artifacts, error) {
	src := p.cfg.Sources
	arts := &artifacts{}

	national := []struct {
		url  string
		name string
		dest **fetch.Artifact
	}{
		{src.Counties, "gra/apskritys.json", &arts.counties},
		{src.Municipalities, "gra/savivaldybes.json", &arts.municipalities},
		{src.Elderships, "gra/seniunijos.json", &arts.elderships},
		{src.ResidentialAreas, "gra/gyvenvietes.json", &arts.residentialAreas},
		{src.Streets, "gra/gatves.json", &arts.streets},
	}
	for _, n := range national {
		art, err := fetcher.Fetch(ctx, n.url, n.name)
		if err != nil {
			return nil, err
		}
		*n.dest = art
	}

	indexArt, err := fetcher.Fetch(ctx, src.AddressRegionIndex, "adr/savivaldybes.csv")
	if err != nil {
		return nil, err
	}
	indexData, err := os.ReadFile(indexArt.Path)
	if err != nil {
		return nil, berrors.NewInternalError("read region index", err)
	}
	regions, err := region.ParseIndex(indexData)
	if err != nil {
		return nil, err
	}
	log.Printf("pipeline: %d regions listed", len(regions))

	agg := region.NewAggregator(fetcher, p.cfg.Regions.Concurrency)
	arts.addressPoints, err = agg.FetchAll(ctx, src.AddressPointsTemplate, "adr/adresai_%s.json", regions)
	if err != nil {
		return nil, err
	}

	rest := []struct {
		url  string
		name string
		dest **fetch.Artifact
	}{
		{src.AddressAttributes, "adr/adresai.csv", &arts.addressAttrs},
		{src.Rooms, "adr/patalpos.csv", &arts.rooms},
		{src.PurposeGroups, "ntr/paskirciu_grupes.csv", &arts.purposeGroups},
		{src.PurposeTypes, "ntr/paskirtys.csv", &arts.purposeTypes},
		{src.StatusTypes, "ntr/statusai.csv", &arts.statusTypes},
	}
	for _, n := range rest {
		art, err := fetcher.Fetch(ctx, n.url, n.name)
		if err != nil {
			return nil, err
		}
		*n.dest = art
	}

	arts.parcels, err = agg.FetchAll(ctx, src.ParcelsTemplate, "kad/sklypai_%s.zip", regions)
	if err != nil {
		return nil, err
	}

	return arts, nil
}

// datasets holds every parsed staging dataset keyed by canonical table name.
// Addresses carry their point and attribute halves separately: the loader
// joins them.
type datasets struct {
	byTable       map[string]*types.Dataset
	addressPoints *types.Dataset
	addressAttrs  *types.Dataset
}

func (p *Pipeline) stage(runDir string, arts *artifacts) (*datasets, error) {
	delim := rune(p.cfg.Sources.Delimiter[0])
	ds := &datasets{byTable: map[string]*types.Dataset{}}

	geojson := []struct {
		table string
		art   *fetch.Artifact
	}{
		{"counties", arts.counties},
		{"municipalities", arts.municipalities},
		{"elderships", arts.elderships},
		{"residential_areas", arts.residentialAreas},
		{"streets", arts.streets},
	}
	for _, g := range geojson {
		parsed, err := parseGeoJSONFile(g.art.Path, g.art.Name)
		if err != nil {
			return nil, err
		}
		ds.byTable[g.table] = parsed
	}

	points, err := region.Merge(arts.addressPoints, func(f region.Fragment) (*types.Dataset, error) {
		return parseGeoJSONFile(f.Artifact.Path, f.Artifact.Name)
	}, "AOB_KODAS")
	if err != nil {
		return nil, err
	}
	ds.addressPoints = points

	attrData, err := os.ReadFile(arts.addressAttrs.Path)
	if err != nil {
		return nil, berrors.NewInternalError("read "+arts.addressAttrs.Name, err)
	}
	ds.addressAttrs, err = source.ParseDelimited(arts.addressAttrs.Name, attrData, delim)
	if err != nil {
		return nil, err
	}

	tabular := []struct {
		table string
		art   *fetch.Artifact
	}{
		{"rooms", arts.rooms},
		{"purpose_groups", arts.purposeGroups},
		{"purpose_types", arts.purposeTypes},
		{"status_types", arts.statusTypes},
	}
	for _, tb := range tabular {
		data, err := os.ReadFile(tb.art.Path)
		if err != nil {
			return nil, berrors.NewInternalError("read "+tb.art.Name, err)
		}
		parsed, err := source.ParseDelimited(tb.art.Name, data, delim)
		if err != nil {
			return nil, err
		}
		ds.byTable[tb.table] = parsed
	}

	// Parcel fragments arrive zipped. The extracted member is staged
	// compressed with a content sum and read back before parsing, so a
	// corrupted intermediate fails here rather than as a half-loaded table.
	parcels, err := region.Merge(arts.parcels, func(f region.Fragment) (*types.Dataset, error) {
		zipData, err := os.ReadFile(f.Artifact.Path)
		if err != nil {
			return nil, berrors.NewInternalError("read "+f.Artifact.Name, err)
		}
		member, err := source.ExtractMember(f.Artifact.Name, zipData, ".json")
		if err != nil {
			return nil, err
		}
		stagedPath := filepath.Join(runDir, "staged", "sklypai_"+f.Region+".bin")
		if err := staging.Write(stagedPath, member); err != nil {
			return nil, err
		}
		verified, err := staging.Read(stagedPath)
		if err != nil {
			return nil, err
		}
		return source.ParseGeoJSON(f.Artifact.Name, verified, schema.SRID)
	}, "UNIKALUS_NR")
	if err != nil {
		return nil, err
	}
	ds.byTable["parcels"] = parcels

	return ds, nil
}

func (p *Pipeline) load(ctx context.Context, dbPath string, ds *datasets) (map[string]int64, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, berrors.NewInternalError("open output database", err)
	}
	defer db.Close()

	codec := sentinel.New(p.cfg.Sentinel)
	ld := loader.New(db, codec)
	ib := index.NewBuilder(db)

	counts := map[string]int64{}
	for _, table := range schema.All() {
		for _, dep := range table.DependsOn {
			if _, ok := counts[dep]; !ok {
				return nil, berrors.NewInternalError(
					fmt.Sprintf("table %s loads before its dependency %s", table.Name, dep), nil)
			}
		}

		var n int64
		if table.Name == "addresses" {
			n, err = ld.LoadAddresses(ctx, table, ds.addressPoints, ds.addressAttrs, "AOB_KODAS")
		} else {
			data, ok := ds.byTable[table.Name]
			if !ok {
				return nil, berrors.NewInternalError("no dataset for table "+table.Name, nil)
			}
			n, err = ld.Load(ctx, table, data)
		}
		if err != nil {
			return nil, err
		}

		// Indexes build only once the table fully loads.
		if err := ib.Build(ctx, table); err != nil {
			return nil, err
		}
		counts[table.Name] = n
	}

	return counts, nil
}

// Published object keys. The latest artifacts live under a stable prefix so
// consumers can fetch them without listing. Each run also archives its
// manifest under a timestamped directory, keeping an evidence trail of what
// every published database was built from; archive names sort
// chronologically.
const (
	publishedDatabase = "latest/boundaries.sqlite"
	publishedManifest = "latest/data-sources-checksums.txt"

	archivePrefix     = "runs/"
	archiveTimeFormat = "20060102T150405Z"
)

func (p *Pipeline) publish(ctx context.Context, runDir string, ledger *checksum.Ledger, result *Result) error {
	if p.cfg.Publish.ComparePrior {
		priorPath := filepath.Join(runDir, "prior-manifest.txt")
		err := p.store.Get(ctx, publishedManifest, priorPath)
		switch {
		case errors.Is(err, storage.ErrObjectNotFound):
			result.ManifestChanged = true
			log.Printf("pipeline: no prior manifest published")
		case err != nil:
			return berrors.NewInternalError("fetch prior manifest", err)
		default:
			prior, err := os.ReadFile(priorPath)
			if err != nil {
				return berrors.NewInternalError("read prior manifest", err)
			}
			result.ManifestDiff = checksum.Compare(prior, ledger.Finalize())
			result.ManifestChanged = !result.ManifestDiff.Empty()
			if result.ManifestChanged {
				log.Printf("pipeline: manifest changed:\n%s", result.ManifestDiff)
			} else {
				log.Printf("pipeline: manifest unchanged since last publication")
			}
		}
	}

	if err := p.store.Put(ctx, p.cfg.Output.DatabasePath, publishedDatabase); err != nil {
		return berrors.NewInternalError("publish database", err)
	}
	if err := p.store.Put(ctx, p.cfg.Output.ManifestPath, publishedManifest); err != nil {
		return berrors.NewInternalError("publish manifest", err)
	}
	log.Printf("pipeline: published %s and %s", publishedDatabase, publishedManifest)

	archiveKey := archivePrefix + time.Now().UTC().Format(archiveTimeFormat) +
		"-" + result.RunID + "/data-sources-checksums.txt"
	if err := p.store.Put(ctx, p.cfg.Output.ManifestPath, archiveKey); err != nil {
		return berrors.NewInternalError("archive manifest", err)
	}
	return p.pruneArchives(ctx)
}

// pruneArchives deletes the oldest archived run manifests beyond the
// configured retention.
func (p *Pipeline) pruneArchives(ctx context.Context) error {
	keys, err := p.store.List(ctx, archivePrefix)
	if err != nil {
		return berrors.NewInternalError("list archived manifests", err)
	}

	byRun := map[string][]string{}
	for _, key := range keys {
		run, _, ok := strings.Cut(strings.TrimPrefix(key, archivePrefix), "/")
		if ok {
			byRun[run] = append(byRun[run], key)
		}
	}
	if len(byRun) <= p.cfg.Publish.KeepRuns {
		return nil
	}

	runs := make([]string, 0, len(byRun))
	for run := range byRun {
		runs = append(runs, run)
	}
	sort.Strings(runs)

	for _, run := range runs[:len(runs)-p.cfg.Publish.KeepRuns] {
		for _, key := range byRun[run] {
			if err := p.store.Delete(ctx, key); err != nil {
				return berrors.NewInternalError("prune archived manifest "+key, err)
			}
		}
		log.Printf("pipeline: pruned archived run %s", run)
	}
	return nil
}

func parseGeoJSONFile(path, name string) (*types.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, berrors.NewInternalError("read "+name, err)
	}
	return source.ParseGeoJSON(name, data, schema.SRID)
}
