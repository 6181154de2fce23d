package loader

import (
	"context"
	"testing"

	"github.com/boundaries-lt/boundaries/internal/schema"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// The address join is strictly narrowing: the loaded row count equals the
// size of the key intersection, never more.
func TestLoadAddresses_JoinNarrowingProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	keySet := gen.SliceOf(gen.Int64Range(1, 200))

	properties.Property("row count equals key intersection", prop.ForAll(
		func(pointKeys, attrKeys []int64) bool {
			l, db := testLoader(t)

			points := dedupe(pointKeys)
			attrs := dedupe(attrKeys)
			n, err := l.LoadAddresses(context.Background(), schema.Addresses(),
				addressPoints(points...), addressAttrs(attrs...), "AOB_KODAS")
			if err != nil {
				return false
			}

			inAttrs := map[int64]bool{}
			for _, k := range attrs {
				inAttrs[k] = true
			}
			var want int64
			for _, k := range points {
				if inAttrs[k] {
					want++
				}
			}

			var loaded int64
			if err := db.QueryRow("SELECT COUNT(*) FROM addresses").Scan(&loaded); err != nil {
				return false
			}
			return n == want && loaded == want
		},
		keySet, keySet,
	))

	properties.TestingRun(t)
}

func dedupe(keys []int64) []int64 {
	seen := map[int64]bool{}
	var out []int64
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
