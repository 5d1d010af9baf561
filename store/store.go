// Package store holds the resident forecast-hour snapshots for every field
// source and answers synchronous point queries from the simulation loop.
//
// Snapshots are immutable once installed: queries copy the snapshot pointer
// under a read lock and sample outside it, so eviction never tears a read.
package store

import (
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/adambom/sfbaysim/field"
	"github.com/adambom/sfbaysim/latlon"
)

// Source identifies one forecast data source.
type Source string

const (
	// Wind is the regular-grid wind source.
	Wind Source = "wind"
	// Current is the unstructured-mesh current source.
	Current Source = "current"
)

// Sources lists every source the store manages.
var Sources = []Source{Wind, Current}

// Requester is the loader-facing half of the store: the store asks it to
// begin fetching hours that rolled into the window, and to abandon hours
// that rolled out.
type Requester interface {
	Request(source Source, hour int)
	Cancel(source Source, hour int)
}

type hourEntry struct {
	hour  int
	field field.Field
}

// Window describes the sliding span of resident hours, in hours relative to
// the scenario base time.
type Window struct {
	Back  int
	Ahead int
}

// Progress reports residency for one source, for the UI boundary.
type Progress struct {
	Resident []int `json:"resident"`
	Wanted   int   `json:"wanted"`
	Failed   []int `json:"failed"`
}

type Store struct {
	window Window
	base   time.Time

	mu        sync.RWMutex
	resident  map[Source]map[int]*hourEntry
	pending   map[Source]map[int]*hourEntry // evicted from the window, swept later
	failed    map[Source]map[int]bool       // permanently unavailable this session
	requested map[Source]map[int]bool       // asked of the loader, not yet installed
	span      map[Source][2]int             // active [first, last] hour span
	spanSet   map[Source]bool

	requester Requester

	displayMu    sync.Mutex
	displayHints map[Source]*field.Hint
}

// New creates a store for the given window span around the scenario base
// time. The requester is attached later, once the loader exists.
func New(base time.Time, window Window) *Store {
	s := &Store{
		window:       window,
		base:         base,
		resident:     make(map[Source]map[int]*hourEntry),
		pending:      make(map[Source]map[int]*hourEntry),
		failed:       make(map[Source]map[int]bool),
		requested:    make(map[Source]map[int]bool),
		span:         make(map[Source][2]int),
		spanSet:      make(map[Source]bool),
		displayHints: make(map[Source]*field.Hint),
	}
	for _, src := range Sources {
		s.resident[src] = make(map[int]*hourEntry)
		s.pending[src] = make(map[int]*hourEntry)
		s.failed[src] = make(map[int]bool)
		s.requested[src] = make(map[int]bool)
		s.displayHints[src] = &field.Hint{}
	}
	return s
}

func (s *Store) SetRequester(r Requester) {
	s.requester = r
}

// Base returns the scenario base time; hour 0 is valid at Base.
func (s *Store) Base() time.Time {
	return s.base
}

// hourOf converts a simulation time to a fractional hour offset.
func (s *Store) hourOf(t time.Time) float64 {
	return t.Sub(s.base).Hours()
}

// Query samples the source at a point and simulation time, blending linearly
// between the two bracketing resident hours. With one bracketing hour it
// degrades to that hour's value; with none it reports no data and the caller
// applies its documented fallback. Runtime failures never escape as errors.
func (s *Store) Query(source Source, p latlon.LatLon, t time.Time, h *field.Hint) (field.Vector, bool) {
	ht := s.hourOf(t)
	h0 := intFloor(ht)
	h1 := h0 + 1

	s.mu.RLock()
	before, beforeOk := s.nearestAtOrBelow(source, h0)
	after, afterOk := s.nearestAtOrAbove(source, h1)
	s.mu.RUnlock()

	switch {
	case beforeOk && afterOk:
		v0, ok0 := before.field.Sample(p, h)
		v1, ok1 := after.field.Sample(p, h)
		if !ok0 || !ok1 {
			return field.Vector{}, false
		}
		frac := (ht - float64(before.hour)) / float64(after.hour-before.hour)
		return field.Vector{
			U: v0.U + frac*(v1.U-v0.U),
			V: v0.V + frac*(v1.V-v0.V),
		}, true
	case beforeOk:
		return before.field.Sample(p, h)
	case afterOk:
		return after.field.Sample(p, h)
	default:
		return field.Vector{}, false
	}
}

// SampleForDisplay serves the rendering overlay with the same contract as
// Query, using a store-owned locality hint per source.
func (s *Store) SampleForDisplay(source Source, p latlon.LatLon, t time.Time) (field.Vector, bool) {
	s.displayMu.Lock()
	defer s.displayMu.Unlock()
	return s.Query(source, p, t, s.displayHints[source])
}

// nearestAtOrBelow finds the resident hour closest below or at h.
// Callers hold s.mu.
func (s *Store) nearestAtOrBelow(source Source, h int) (*hourEntry, bool) {
	var best *hourEntry
	for hour, e := range s.resident[source] {
		if hour > h {
			continue
		}
		if best == nil || hour > best.hour {
			best = e
		}
	}
	return best, best != nil
}

func (s *Store) nearestAtOrAbove(source Source, h int) (*hourEntry, bool) {
	var best *hourEntry
	for hour, e := range s.resident[source] {
		if hour < h {
			continue
		}
		if best == nil || hour < best.hour {
			best = e
		}
	}
	return best, best != nil
}

// AdvanceWindow recomputes the wanted hour span for the simulation time,
// schedules eviction of hours that fell out, and requests missing hours in
// ascending distance from now so the most-used hours arrive first.
func (s *Store) AdvanceWindow(t time.Time) {
	now := intFloor(s.hourOf(t))
	first := now - s.window.Back
	last := now + s.window.Ahead

	type request struct {
		source Source
		hour   int
	}
	var toRequest []request
	var toCancel []request

	s.mu.Lock()
	for _, src := range Sources {
		s.span[src] = [2]int{first, last}
		s.spanSet[src] = true

		for hour, e := range s.resident[src] {
			if hour < first || hour > last {
				s.pending[src][hour] = e
				delete(s.resident[src], hour)
				log.Debugf("Hour %d of %s left the window, eviction deferred", hour, src)
			}
		}

		for hour := first; hour <= last; hour++ {
			if _, ok := s.resident[src][hour]; ok {
				continue
			}
			if back, ok := s.pending[src][hour]; ok {
				// The window moved back over a deferred eviction; reinstate.
				s.resident[src][hour] = back
				delete(s.pending[src], hour)
				continue
			}
			if s.failed[src][hour] {
				continue
			}
			toRequest = append(toRequest, request{src, hour})
			s.requested[src][hour] = true
		}

		// Cancel fetches that are still in flight for hours the window left
		// behind. Evicted resident hours need no cancellation: their fetch
		// already completed.
		for hour := range s.requested[src] {
			if hour < first || hour > last {
				delete(s.requested[src], hour)
				toCancel = append(toCancel, request{src, hour})
			}
		}
	}
	s.mu.Unlock()

	if s.requester == nil {
		return
	}

	for _, c := range toCancel {
		s.requester.Cancel(c.source, c.hour)
	}

	sort.Slice(toRequest, func(i, j int) bool {
		return abs(toRequest[i].hour-now) < abs(toRequest[j].hour-now)
	})
	for _, r := range toRequest {
		s.requester.Request(r.source, r.hour)
	}
}

// Install publishes a completed hour snapshot atomically. Hours outside the
// active span are dropped: the loader lost the cancellation race.
func (s *Store) Install(source Source, hour int, f field.Field) {
	s.mu.Lock()
	delete(s.requested[source], hour)
	if span := s.span[source]; s.spanSet[source] && (hour < span[0] || hour > span[1]) {
		s.mu.Unlock()
		log.Infof("Discarding %s hour %d, outside active window [%d, %d]", source, hour, span[0], span[1])
		return
	}
	s.resident[source][hour] = &hourEntry{hour: hour, field: f}
	s.mu.Unlock()

	log.Infof("Installed %s hour %d", source, hour)
}

// MarkUnavailable records an hour as permanently failed for this session.
// Queries simply treat it as absent; it is never re-requested.
func (s *Store) MarkUnavailable(source Source, hour int) {
	s.mu.Lock()
	s.failed[source][hour] = true
	delete(s.requested[source], hour)
	s.mu.Unlock()

	log.Warnf("Hour %d of %s is permanently unavailable", hour, source)
}

// Resident reports whether an hour is installed.
func (s *Store) Resident(source Source, hour int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.resident[source][hour]
	return ok
}

// Failed reports whether an hour has been marked permanently unavailable.
func (s *Store) Failed(source Source, hour int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failed[source][hour]
}

// ResidentHours returns the sorted resident hour keys for a source.
func (s *Store) ResidentHours(source Source) []int {
	s.mu.RLock()
	hours := make([]int, 0, len(s.resident[source]))
	for h := range s.resident[source] {
		hours = append(hours, h)
	}
	s.mu.RUnlock()

	sort.Ints(hours)
	return hours
}

// SweepEvictions drops snapshots whose deferred eviction is due. Readers
// that copied a snapshot pointer before the sweep keep a valid immutable
// value; the garbage collector reclaims it when they finish.
func (s *Store) SweepEvictions() int {
	s.mu.Lock()
	n := 0
	for _, src := range Sources {
		for hour := range s.pending[src] {
			delete(s.pending[src], hour)
			n++
			log.Debugf("Evicted %s hour %d", src, hour)
		}
	}
	s.mu.Unlock()
	return n
}

// Progress summarizes residency per source for the UI boundary.
func (s *Store) Progress() map[Source]Progress {
	out := make(map[Source]Progress, len(Sources))

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, src := range Sources {
		p := Progress{Wanted: s.window.Back + s.window.Ahead + 1}
		for h := range s.resident[src] {
			p.Resident = append(p.Resident, h)
		}
		for h := range s.failed[src] {
			p.Failed = append(p.Failed, h)
		}
		sort.Ints(p.Resident)
		sort.Ints(p.Failed)
		out[src] = p
	}
	return out
}

func intFloor(f float64) int {
	n := int(f)
	if f < 0 && float64(n) != f {
		n--
	}
	return n
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
