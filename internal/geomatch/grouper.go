package geomatch

import (
	"math"
	"sort"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/openings-cli/internal/model"
)

// Grouper assigns records to address groups using the Matcher. Candidate
// lookup goes through two indexes — a normalized-address map and a coarse
// geographic cell grid — so grouping stays near-linear at city volumes
// instead of the naive O(n·k) scan. The match semantics are exactly the
// Matcher's; the indexes only narrow the candidate set.
type Grouper struct {
	matcher *Matcher
	cellDeg float64
	groups  []*model.AddressGroup
	byAddr  map[string]int    // normalized address → group index
	byCell  map[cellKey][]int // grid cell → group indexes with a record there
}

type cellKey struct{ x, y int }

// NewGrouper creates a Grouper around the given matcher.
func NewGrouper(matcher *Matcher) *Grouper {
	// One degree of latitude is ~111.32 km. Cells are sized so any two
	// points within tolerance land in the same or an adjacent cell.
	cellDeg := matcher.toleranceM / 111320.0 * 2
	return &Grouper{
		matcher: matcher,
		cellDeg: cellDeg,
		byAddr:  make(map[string]int),
		byCell:  make(map[cellKey][]int),
	}
}

// Group partitions records into address groups. The input is sorted by a
// stable key first, so any permutation of the same record list yields the
// same set of groups by membership.
func Group(matcher *Matcher, records []model.NormalizedRecord) []*model.AddressGroup {
	sorted := make([]model.NormalizedRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		ni, nj := NormalizeAddress(sorted[i].Address), NormalizeAddress(sorted[j].Address)
		if ni != nj {
			return ni < nj
		}
		di, dj := sorted[i].EventDate, sorted[j].EventDate
		switch {
		case di == nil && dj == nil:
			return sorted[i].ID < sorted[j].ID
		case di == nil:
			return false
		case dj == nil:
			return true
		case !di.Equal(*dj):
			return di.Before(*dj)
		default:
			return sorted[i].ID < sorted[j].ID
		}
	})

	g := NewGrouper(matcher)
	for i := range sorted {
		g.Add(sorted[i])
	}
	return g.Groups()
}

// Add places one record into an existing group when it matches that group's
// first record, otherwise starts a new group.
func (g *Grouper) Add(rec model.NormalizedRecord) {
	if idx, ok := g.find(&rec); ok {
		g.groups[idx].Records = append(g.groups[idx].Records, rec)
		g.index(&rec, idx)
		return
	}

	idx := len(g.groups)
	g.groups = append(g.groups, &model.AddressGroup{
		Address: rec.Address,
		Records: []model.NormalizedRecord{rec},
	})
	g.index(&rec, idx)
}

// Groups returns the accumulated groups.
func (g *Grouper) Groups() []*model.AddressGroup {
	return g.groups
}

func (g *Grouper) find(rec *model.NormalizedRecord) (int, bool) {
	if na := NormalizeAddress(rec.Address); na != "" {
		if idx, ok := g.byAddr[na]; ok {
			return idx, true
		}
	}

	c := coord(rec)
	if c == nil {
		return 0, false
	}
	seen := make(map[int]bool)
	center := g.cell(c)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for _, idx := range g.byCell[cellKey{center.x + dx, center.y + dy}] {
				if seen[idx] {
					continue
				}
				seen[idx] = true
				if g.matcher.Match(&g.groups[idx].Records[0], rec) {
					return idx, true
				}
			}
		}
	}
	return 0, false
}

func (g *Grouper) index(rec *model.NormalizedRecord, idx int) {
	if na := NormalizeAddress(rec.Address); na != "" {
		if _, ok := g.byAddr[na]; !ok {
			g.byAddr[na] = idx
		}
	}
	if c := coord(rec); c != nil {
		key := g.cell(c)
		ids := g.byCell[key]
		if len(ids) == 0 || ids[len(ids)-1] != idx {
			g.byCell[key] = append(ids, idx)
		}
	}
}

func (g *Grouper) cell(c geom.Coord) cellKey {
	return cellKey{
		x: int(math.Floor(c[0] / g.cellDeg)),
		y: int(math.Floor(c[1] / g.cellDeg)),
	}
}
