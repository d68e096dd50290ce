package geomatch

import (
	"math/rand"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/openings-cli/internal/model"
)

func ptrF(v float64) *float64 { return &v }

func rec(id, addr string, lat, lon float64) model.NormalizedRecord {
	r := model.NormalizedRecord{ID: id, Address: addr}
	if lat != 0 || lon != 0 {
		r.Lat, r.Lon = ptrF(lat), ptrF(lon)
	}
	return r
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"case fold", "123 N MILWAUKEE AVE", "123 n milwaukee ave"},
		{"long forms collapse", "123 North Milwaukee Avenue", "123 n milwaukee ave"},
		{"suite dropped", "500 W Madison St Suite 200", "500 w madison st"},
		{"hash unit dropped", "500 W Madison St #200", "500 w madison st"},
		{"punctuation stripped", "1060 W. Addison St.", "1060 w addison st"},
		{"diacritics folded", "12 Café Boulevard", "12 cafe blvd"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeAddress(tt.in))
		})
	}
}

func TestNormalizeAddressEquivalence(t *testing.T) {
	a := NormalizeAddress("2100 SOUTH HALSTED STREET UNIT 1B")
	b := NormalizeAddress("2100 S Halsted St")
	assert.Equal(t, a, b)
}

func TestHaversineM(t *testing.T) {
	// Chicago City Hall to Daley Plaza is roughly 150m.
	a := geom.Coord{-87.6317, 41.8837}
	b := geom.Coord{-87.6298, 41.8842}
	d := haversineM(a, b)
	assert.Greater(t, d, 100.0)
	assert.Less(t, d, 250.0)

	assert.InDelta(t, 0, haversineM(a, a), 0.001)
}

func TestMatcherGeo(t *testing.T) {
	m := NewMatcher(100)

	// ~30m apart, different address spellings.
	a := rec("a", "100 N State St", 41.8840, -87.6278)
	b := rec("b", "102 N State", 41.88425, -87.6279)
	assert.True(t, m.Match(&a, &b))

	// ~500m apart, different addresses.
	c := rec("c", "800 N Michigan Ave", 41.8975, -87.6240)
	assert.False(t, m.Match(&a, &c))
}

func TestMatcherStringFallback(t *testing.T) {
	m := NewMatcher(100)

	// No coords on one side: fall back to normalized string equality.
	a := rec("a", "123 North Milwaukee Avenue", 0, 0)
	b := rec("b", "123 N MILWAUKEE AVE", 41.9100, -87.6770)
	assert.True(t, m.Match(&a, &b))

	c := rec("c", "125 N Milwaukee Ave", 0, 0)
	assert.False(t, m.Match(&a, &c))
}

func TestMatcherNullIsland(t *testing.T) {
	m := NewMatcher(100)
	a := rec("a", "1 First St", 0, 0)
	b := rec("b", "2 Second St", 0, 0)
	a.Lat, a.Lon = ptrF(0), ptrF(0)
	b.Lat, b.Lon = ptrF(0), ptrF(0)
	// (0,0) coords must not cause a geo match between unrelated addresses.
	assert.False(t, m.Match(&a, &b))
}

func TestGroupMembership(t *testing.T) {
	m := NewMatcher(100)
	records := []model.NormalizedRecord{
		rec("1", "123 N Milwaukee Ave", 41.9100, -87.6770),
		rec("2", "123 NORTH MILWAUKEE AVENUE", 0, 0),
		rec("3", "800 W Randolph St", 41.8845, -87.6480),
		rec("4", "123 N Milwaukee Ave Suite 2", 41.91003, -87.67702),
	}
	groups := Group(m, records)
	require.Len(t, groups, 2)

	sizes := []int{len(groups[0].Records), len(groups[1].Records)}
	sort.Ints(sizes)
	assert.Equal(t, []int{1, 3}, sizes)
}

func TestGroupPermutationInvariance(t *testing.T) {
	m := NewMatcher(100)
	base := []model.NormalizedRecord{
		rec("1", "123 N Milwaukee Ave", 41.9100, -87.6770),
		rec("2", "123 North Milwaukee Avenue", 0, 0),
		rec("3", "800 W Randolph St", 41.8845, -87.6480),
		rec("4", "800 West Randolph Street", 0, 0),
		rec("5", "3400 N Clark St", 41.9440, -87.6560),
	}

	fingerprint := func(groups []*model.AddressGroup) string {
		var keys []string
		for _, g := range groups {
			var ids []string
			for _, r := range g.Records {
				ids = append(ids, r.ID)
			}
			sort.Strings(ids)
			keys = append(keys, strings.Join(ids, ","))
		}
		sort.Strings(keys)
		return strings.Join(keys, "|")
	}

	want := fingerprint(Group(m, base))
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := make([]model.NormalizedRecord, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, fingerprint(Group(m, shuffled)), "permutation %d", i)
	}
}

func TestGroupSortStableOnDates(t *testing.T) {
	m := NewMatcher(100)
	d1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	a := rec("a", "1 Main St", 0, 0)
	a.EventDate = &d2
	b := rec("b", "1 Main St", 0, 0)
	b.EventDate = &d1

	groups := Group(m, []model.NormalizedRecord{a, b})
	require.Len(t, groups, 1)
	assert.Equal(t, "b", groups[0].Records[0].ID)
}
