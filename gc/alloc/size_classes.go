package alloc

import (
	"fmt"
	"slices"

	"github.com/joshuapare/simplegc/internal/word"
)

// SizeClasses decides which free list a cell of a given size is filed under.
// Cells up to LinearMax get one list per LinearStep bytes. Past that each
// list covers GrowthPct percent more than the one before, up to GeometricMax.
// Everything larger shares a single list.
type SizeClasses struct {
	Name         string
	LinearStep   uint64
	LinearMax    uint64
	GeometricMax uint64
	GrowthPct    uint64
}

// Presets, selectable by name with SizeClassesByName.
var (
	// FineClasses keeps many narrow lists for workloads with mixed small sizes.
	FineClasses = SizeClasses{Name: "fine", LinearStep: 8, LinearMax: 256, GeometricMax: 16 << 10, GrowthPct: 50}

	// BalancedClasses is the default.
	BalancedClasses = SizeClasses{Name: "balanced", LinearStep: 16, LinearMax: 512, GeometricMax: 16 << 10, GrowthPct: 50}

	// CoarseClasses has few lists; fits are looser but lookups shorter.
	CoarseClasses = SizeClasses{Name: "coarse", LinearStep: 32, LinearMax: 512, GeometricMax: 16 << 10, GrowthPct: 100}
)

// SizeClassesByName returns the preset called name.
func SizeClassesByName(name string) (SizeClasses, error) {
	for _, sc := range []SizeClasses{FineClasses, BalancedClasses, CoarseClasses} {
		if sc.Name == name {
			return sc, nil
		}
	}
	return SizeClasses{}, fmt.Errorf("%w: unknown preset %q (want fine, balanced or coarse)", ErrBadSizeClasses, name)
}

func (sc SizeClasses) validate() error {
	switch {
	case sc.LinearStep == 0 || !word.Aligned(sc.LinearStep):
		return fmt.Errorf("%w: %s: step %d is not a positive multiple of %d", ErrBadSizeClasses, sc.Name, sc.LinearStep, word.Size)
	case sc.GrowthPct == 0:
		return fmt.Errorf("%w: %s: growth must be positive", ErrBadSizeClasses, sc.Name)
	}
	return nil
}

// classTable maps a cell size to a free-list index. limits[i] is the
// largest cell size list i holds; index len(limits) is the large list.
type classTable struct {
	name   string
	limits []uint64
}

func newClassTable(sc SizeClasses) *classTable {
	t := &classTable{name: sc.Name}
	lo := uint64(minCellSize)
	for ; lo < sc.LinearMax; lo += sc.LinearStep {
		t.limits = append(t.limits, lo+sc.LinearStep-1)
	}
	for lo < sc.GeometricMax {
		hi := word.Align(lo + lo*sc.GrowthPct/100)
		if hi <= lo {
			hi = lo + word.Size
		}
		t.limits = append(t.limits, hi-1)
		lo = hi
	}
	return t
}

// classOf returns the list for a cell of size bytes.
func (t *classTable) classOf(size uint64) int {
	i, _ := slices.BinarySearch(t.limits, size)
	return i
}

// lists returns the number of free lists, the large list included.
func (t *classTable) lists() int { return len(t.limits) + 1 }

func (t *classTable) String() string { return t.name }
