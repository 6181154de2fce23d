// Package region handles data sources the registry only publishes as
// per-administrative-region fragments. It enumerates regions from an index
// resource, fetches every fragment with bounded concurrency, and merges the
// fragments into one national staging dataset before loading. A partial
// region set is never merged: a silently incomplete national dataset is
// worse than a failed build.
package region

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	berrors "github.com/boundaries-lt/boundaries/internal/errors"
	"github.com/boundaries-lt/boundaries/internal/fetch"
	"github.com/boundaries-lt/boundaries/pkg/types"
	"golang.org/x/sync/semaphore"
)

// Fragment is one region's staged slice of a per-region dataset.
type Fragment struct {
	// Region is the region identifier from the index resource.
	Region string

	// Artifact is the staged fragment file.
	Artifact *fetch.Artifact
}

// Aggregator fetches and merges per-region dataset fragments.
type Aggregator struct {
	fetcher     *fetch.Fetcher
	concurrency int64
}

// NewAggregator creates an aggregator downloading through fetcher with the
// given fragment-fetch concurrency.
func NewAggregator(fetcher *fetch.Fetcher, concurrency int) *Aggregator {
	if concurrency < 1 {
		concurrency = 4
	}
	return &Aggregator{fetcher: fetcher, concurrency: int64(concurrency)}
}

// ParseIndex parses the region index resource: one region identifier per
// line, optionally followed by delimited annotation fields which are
// ignored. Blank lines are a tolerated artifact of the index format and are
// skipped, not errors. The result is sorted ascending so downstream work is
// deterministic regardless of index order.
func ParseIndex(data []byte) ([]string, error) {
	var regions []string
	seen := map[string]bool{}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		if line == "" {
			continue
		}
		code, _, _ := strings.Cut(line, "|")
		code = strings.TrimSpace(code)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		regions = append(regions, code)
	}

	if len(regions) == 0 {
		return nil, berrors.New(berrors.ErrCategoryRegion, berrors.CodeEmptyRegionIndex,
			"region index resource lists no regions")
	}

	sort.Strings(regions)
	return regions, nil
}

// FetchAll downloads every region's fragment. urlTemplate and nameTemplate
// carry one %s placeholder for the region identifier. Fragments download in
// parallel but are recorded in the checksum ledger in sorted region order,
// keeping the manifest reproducible across runs. Any single failure aborts
// with PartialRegionSet; nothing is recorded in that case.
func (a *Aggregator) FetchAll(ctx context.Context, urlTemplate, nameTemplate string, regions []string) ([]Fragment, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := semaphore.NewWeighted(a.concurrency)
	fragments := make([]Fragment, len(regions))
	errs := make([]error, len(regions))

	var wg sync.WaitGroup
	for i, region := range regions {
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[i] = err
			break
		}

		wg.Add(1)
		go func(i int, region string) {
			defer sem.Release(1)
			defer wg.Done()

			url := fmt.Sprintf(urlTemplate, region)
			name := fmt.Sprintf(nameTemplate, region)
			art, err := a.fetcher.FetchNoRecord(ctx, url, name)
			if err != nil {
				errs[i] = fmt.Errorf("region %s: %w", region, err)
				cancel()
				return
			}
			fragments[i] = Fragment{Region: region, Artifact: art}
		}(i, region)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, berrors.NewPartialRegionSet(
				fmt.Sprintf("aborting merge: %d regions listed, at least one fragment failed", len(regions)), err)
		}
	}

	// All fragments present: record in sorted region order.
	for _, frag := range fragments {
		a.fetcher.Record(frag.Artifact)
	}

	log.Printf("region: fetched %d fragments", len(fragments))
	return fragments, nil
}

// ParseFunc turns one staged fragment into a dataset.
type ParseFunc func(Fragment) (*types.Dataset, error)

// Merge combines all fragment datasets into one national staging dataset.
// Fragments contribute in region order (the slice is already sorted) and
// rows keep their in-fragment order, so the merged row order is reproducible
// regardless of fetch completion order. Rows repeating a key seen in an
// earlier region are dropped.
func Merge(fragments []Fragment, parse ParseFunc, keyColumn string) (*types.Dataset, error) {
	merged := &types.Dataset{}
	seen := map[any]bool{}

	for _, frag := range fragments {
		ds, err := parse(frag)
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", frag.Region, err)
		}

		if merged.Name == "" {
			merged.Name = ds.Name
			merged.Columns = ds.Columns
		}

		for _, rec := range ds.Records {
			key := rec.Field(keyColumn)
			if key != nil {
				if seen[key] {
					continue
				}
				seen[key] = true
			}
			merged.Records = append(merged.Records, rec)
		}
	}

	return merged, nil
}
