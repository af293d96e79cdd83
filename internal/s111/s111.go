// Package s111 encodes surface-current forecasts as IHO S-111 HDF5
// artifacts, either on the regular output grid (data coding format 2) or at
// the native model points (format 3), and chops full-domain artifacts into
// per-subgrid files.
package s111

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/ofs-s111/internal/domain"
)

// Data coding formats carried in the root metadata.
const (
	FormatRegular         int32 = 2 // regular georectified grid
	FormatUngeorectified  int32 = 3 // native points
	productSpecification        = "INT.IHO.S-111.1.0"
	timeFormat                  = "20060102T150405Z"
)

// ArtifactName returns the output file name for a cycle, optionally scoped
// to a subgrid: S111US_<cycle>_<MODEL>[_<subgrid>].h5.
func ArtifactName(m domain.Model, cycle domain.Cycle, subgrid string) string {
	name := fmt.Sprintf("S111US_%s_%s", cycle.Stamp(), strings.ToUpper(m.ID))
	if subgrid != "" {
		name += "_" + sanitize(subgrid)
	}
	return name + ".h5"
}

// sanitize keeps subgrid names path-safe.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// groupName returns the HDF5 group holding the i-th time record (1-based).
func groupName(i int) string {
	return fmt.Sprintf("Group_%03d", i+1)
}
