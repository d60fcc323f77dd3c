// Package compose implements the pure computation stages of the pipeline:
// compatibility scoring, composite template building, and runtime data
// injection. Nothing in this package performs I/O or retries; every function
// is a deterministic function of its inputs.
package compose

import (
	"github.com/GTP-getaipro/FWIQ-sub012/domain/catalog"
	appErrors "github.com/GTP-getaipro/FWIQ-sub012/pkg/errors"
)

// Score computes the aggregate compatibility of a category selection as a
// value in [0,1]. Pairwise scores combine the Jaccard similarity of
// normalized top-level taxonomy names with the overlap ratio of shared
// intent keys; the aggregate is the minimum over all pairs, so the weakest
// pairwise fit caps overall compatibility. A single category is trivially
// compatible (1.0).
func Score(categories []catalog.CategoryDefinition) (float64, error) {
	if len(categories) == 0 {
		return 0, appErrors.NewInsufficientInputError("no categories to score")
	}
	if len(categories) == 1 {
		return 1.0, nil
	}

	min := 1.0
	for i := 0; i < len(categories); i++ {
		for j := i + 1; j < len(categories); j++ {
			s := pairScore(&categories[i], &categories[j])
			if s < min {
				min = s
			}
		}
	}
	return min, nil
}

// pairScore is the mean of top-level name Jaccard and intent-key overlap
func pairScore(a, b *catalog.CategoryDefinition) float64 {
	return (topLevelJaccard(a, b) + intentOverlap(a, b)) / 2
}

func topLevelJaccard(a, b *catalog.CategoryDefinition) float64 {
	namesA := topLevelNames(a)
	namesB := topLevelNames(b)
	if len(namesA) == 0 && len(namesB) == 0 {
		return 0
	}

	intersection := 0
	union := len(namesB)
	for name := range namesA {
		if namesB[name] {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// intentOverlap is |shared| / |smaller set|, so a category that is a strict
// subset of another still counts as a full overlap.
func intentOverlap(a, b *catalog.CategoryDefinition) float64 {
	keysA := a.IntentKeys()
	keysB := b.IntentKeys()
	smaller := len(keysA)
	if len(keysB) < smaller {
		smaller = len(keysB)
	}
	if smaller == 0 {
		return 0
	}

	shared := 0
	for k := range keysA {
		if keysB[k] {
			shared++
		}
	}
	return float64(shared) / float64(smaller)
}

func topLevelNames(c *catalog.CategoryDefinition) map[string]bool {
	names := make(map[string]bool, len(c.Taxonomy))
	for _, n := range c.Taxonomy {
		names[catalog.NormalizeName(n.DisplayName)] = true
	}
	return names
}
