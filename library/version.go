package library

import (
	"github.com/Masterminds/semver/v3"
)

// LatestVersion returns the highest semantic version in versions. Entries
// that do not parse are ignored.
func LatestVersion(versions []string) (string, bool) {
	var best *semver.Version
	var raw string
	for _, v := range versions {
		sv, err := semver.NewVersion(v)
		if err != nil {
			continue
		}
		if best == nil || sv.GreaterThan(best) {
			best, raw = sv, v
		}
	}
	return raw, best != nil
}

// IsNewer reports whether candidate is a later version than current. When
// either side is not a semantic version nothing is considered newer.
func IsNewer(current, candidate string) bool {
	cur, err := semver.NewVersion(current)
	if err != nil {
		return false
	}
	c, err := semver.NewVersion(candidate)
	if err != nil {
		return false
	}
	return c.GreaterThan(cur)
}
