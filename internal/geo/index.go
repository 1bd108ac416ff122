package geo

import (
	"strings"
	"unicode/utf8"

	"github.com/timmy/jobimport/internal/domain"
)

// minContainLen is the shortest normalized name allowed to take part in a
// containment match.
const minContainLen = 3

// MatchMethod records which resolution step produced a Match.
type MatchMethod string

const (
	MatchByID       MatchMethod = "id_map"
	MatchExact      MatchMethod = "exact"
	MatchContains   MatchMethod = "contains"
	MatchLoose      MatchMethod = "loose"
	MatchByKeywords MatchMethod = "keywords"
)

// Match is a resolved canonical entity.
type Match struct {
	ID       int64
	Name     string
	RegionID *int64
	Method   MatchMethod
}

type idKey struct {
	source     string
	kind       domain.MappingKind
	externalID string
}

// IDMap is the source-specific numeric id lookup used before any string
// matching.
type IDMap struct {
	ids map[idKey]int64
}

// NewIDMap builds an IDMap from stored mappings.
func NewIDMap(mappings []domain.SourceMapping) IDMap {
	m := IDMap{ids: make(map[idKey]int64, len(mappings))}
	for _, sm := range mappings {
		m.ids[idKey{source: sm.Source, kind: sm.Kind, externalID: strings.TrimSpace(sm.ExternalID)}] = sm.CanonicalID
	}
	return m
}

// Lookup returns the canonical id mapped to a source id.
func (m IDMap) Lookup(source string, kind domain.MappingKind, externalID string) (int64, bool) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" || externalID == "0" || m.ids == nil {
		return 0, false
	}
	id, ok := m.ids[idKey{source: source, kind: kind, externalID: externalID}]
	return id, ok
}

type entry struct {
	id       int64
	name     string
	regionID *int64
	forms    []string
	loose    []string
}

func newEntry(id int64, regionID *int64, names []string) entry {
	e := entry{id: id, regionID: regionID}
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		if e.name == "" {
			e.name = strings.TrimSpace(n)
		}
		form := NormalizeGeoName(n)
		if form == "" {
			continue
		}
		e.forms = append(e.forms, form)
		if loose := StripGeoTypeTokens(form); loose != "" {
			e.loose = append(e.loose, loose)
		}
	}
	return e
}

func (e *entry) match(method MatchMethod) *Match {
	return &Match{ID: e.id, Name: e.name, RegionID: e.regionID, Method: method}
}

// Index resolves free-text places to canonical regions and districts.
// It is built once per run and is safe for concurrent reads.
type Index struct {
	regions    []entry
	districts  []entry
	regionPos  map[int64]int
	districtPs map[int64]int
	ids        IDMap
}

// NewIndex builds an Index. Table order of regions and districts is the
// tie-break between equally good matches.
func NewIndex(regions []domain.Region, districts []domain.District, ids IDMap) *Index {
	idx := &Index{
		regions:    make([]entry, 0, len(regions)),
		districts:  make([]entry, 0, len(districts)),
		regionPos:  make(map[int64]int, len(regions)),
		districtPs: make(map[int64]int, len(districts)),
		ids:        ids,
	}
	for _, r := range regions {
		idx.regionPos[r.ID] = len(idx.regions)
		idx.regions = append(idx.regions, newEntry(r.ID, nil, r.Names()))
	}
	for _, d := range districts {
		idx.districtPs[d.ID] = len(idx.districts)
		idx.districts = append(idx.districts, newEntry(d.ID, d.RegionID, d.Names()))
	}
	return idx
}

// Region returns the canonical region with the given id.
func (idx *Index) Region(id int64) (*Match, bool) {
	pos, ok := idx.regionPos[id]
	if !ok {
		return nil, false
	}
	return idx.regions[pos].match(MatchByID), true
}

// District returns the canonical district with the given id.
func (idx *Index) District(id int64) (*Match, bool) {
	pos, ok := idx.districtPs[id]
	if !ok {
		return nil, false
	}
	return idx.districts[pos].match(MatchByID), true
}

// ResolveRegion maps a source region to a canonical region. The id map is
// consulted first; names are tried in the order given. Returns nil when
// nothing matches.
func (idx *Index) ResolveRegion(source, externalID string, names ...string) *Match {
	if id, ok := idx.ids.Lookup(source, domain.MappingKindRegion, externalID); ok {
		if m, ok := idx.Region(id); ok {
			return m
		}
	}
	return matchNames(idx.regions, names)
}

// ResolveDistrict maps a source district to a canonical district. When
// regionID is known, districts of that region are searched first.
func (idx *Index) ResolveDistrict(source, externalID string, regionID *int64, names ...string) *Match {
	if id, ok := idx.ids.Lookup(source, domain.MappingKindDistrict, externalID); ok {
		if m, ok := idx.District(id); ok {
			return m
		}
	}
	if regionID != nil {
		var scoped []entry
		for _, d := range idx.districts {
			if d.regionID != nil && *d.regionID == *regionID {
				scoped = append(scoped, d)
			}
		}
		if m := matchNames(scoped, names); m != nil {
			return m
		}
	}
	return matchNames(idx.districts, names)
}

// matchNames runs exact, containment and loose matching in that order
// across all candidate names. The first hit wins.
func matchNames(entries []entry, names []string) *Match {
	forms := make([]string, 0, len(names))
	for _, n := range names {
		if f := NormalizeGeoName(n); f != "" {
			forms = append(forms, f)
		}
	}
	if len(forms) == 0 || len(entries) == 0 {
		return nil
	}

	for _, f := range forms {
		for i := range entries {
			for _, ef := range entries[i].forms {
				if ef == f {
					return entries[i].match(MatchExact)
				}
			}
		}
	}

	for _, f := range forms {
		for i := range entries {
			for _, ef := range entries[i].forms {
				if contains(ef, f) {
					return entries[i].match(MatchContains)
				}
			}
		}
	}

	for _, f := range forms {
		loose := StripGeoTypeTokens(f)
		if loose == "" {
			continue
		}
		for i := range entries {
			for _, el := range entries[i].loose {
				if el == loose {
					return entries[i].match(MatchLoose)
				}
			}
		}
	}
	return nil
}

// contains reports substring containment in either direction.
func contains(a, b string) bool {
	if utf8.RuneCountInString(a) < minContainLen || utf8.RuneCountInString(b) < minContainLen {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
