// Package rollout provides deterministic bucketing for percentage
// rollouts and weighted variant selection.
//
// Buckets are computed as xxhash64(input) mod 100, which gives the
// properties the distribution model depends on:
//   - deterministic: the same input maps to the same bucket forever,
//     across processes and versions
//   - approximately uniform across buckets
//   - rollout-monotonic: a (flag, key) pair included at percentage p is
//     included at every percentage >= p, so raising a rollout only ever
//     adds callers, never removes them
package rollout

import (
	"github.com/cespare/xxhash/v2"

	"github.com/flagdeck/flagdeck/flags"
)

// Bucket maps input to a deterministic bucket in [0, 100).
func Bucket(input string) int {
	return int(xxhash.Sum64String(input) % 100)
}

// rolloutInput builds the hashing input for the percentage gate.
func rolloutInput(flagKey, key string) string {
	return flagKey + "." + key
}

// IsRolledOut reports whether the given key is inside the rollout
// percentage for a flag. Percentage 0 excludes everyone and 100 includes
// everyone without consulting the hash.
func IsRolledOut(flagKey, key string, percentage int) bool {
	if percentage <= 0 {
		return false
	}
	if percentage >= 100 {
		return true
	}
	return Bucket(rolloutInput(flagKey, key)) < percentage
}

// SelectVariant deterministically assigns a variant by walking variants
// in declared order and accumulating weights against
// xxhash64(flagKey + "." + key + ".variant") mod total weight. The
// second return is false when no variant carries weight, in which case
// the caller should fall back to the flag's default variant.
func SelectVariant(flagKey, key string, variants []flags.Variant) (string, bool) {
	var total uint64
	for _, v := range variants {
		total += uint64(v.Weight)
	}
	if total == 0 {
		return "", false
	}

	bucket := xxhash.Sum64String(flagKey+"."+key+".variant") % total
	var cumulative uint64
	for _, v := range variants {
		cumulative += uint64(v.Weight)
		if bucket < cumulative {
			return v.Name, true
		}
	}
	// Unreachable: bucket < total and weights sum to total.
	return variants[len(variants)-1].Name, true
}
