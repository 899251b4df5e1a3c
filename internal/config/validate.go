package config

import (
	"github.com/sentineld/sentineld/internal/apperrors"
	"github.com/sentineld/sentineld/internal/util/sets"
)

// Validate performs structural checks beyond what normalizeDaemons already
// enforces (uniqueness, missing files): it rejects a fleet with zero
// resolvable daemons, since global start requires at least one.
func Validate(daemons []DaemonConfig) error {
	if len(daemons) == 0 {
		return apperrors.ValidationFailed("no daemons resolved from configuration")
	}
	seen := sets.New[string]()
	for _, d := range daemons {
		if seen.Has(d.Name) {
			return apperrors.ValidationFailed("duplicate daemon name: " + d.Name)
		}
		seen.Add(d.Name)
	}
	return nil
}
