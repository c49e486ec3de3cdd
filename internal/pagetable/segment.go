package pagetable

import "sort"

// Segment describes one mapped virtual range: start_va (page-aligned),
// its length in pages, and how many of those pages are currently
// resident.
type Segment struct {
	StartVA      uint32
	SizePages    uint32
	ResidentPages uint32
	Flags        AccessType
}

func (s *Segment) endVA() uint32 {
	return s.StartVA + s.SizePages*PageSize
}

// segmentMap is an ordered, non-overlapping set of segments, kept
// sorted by StartVA so overlap checks only need to look at the
// predecessor and successor of a candidate insertion point.
type segmentMap struct {
	segments []*Segment
}

// insertionPoint returns the index at which a segment starting at
// startVA would be inserted to keep the slice sorted.
func (m *segmentMap) insertionPoint(startVA uint32) int {
	return sort.Search(len(m.segments), func(i int) bool {
		return m.segments[i].StartVA >= startVA
	})
}

// overlaps reports whether [startVA, startVA+sizePages*PageSize) would
// overlap any existing segment, checking only the immediate
// predecessor and successor of the insertion point — sufficient because
// the map is maintained non-overlapping at all times.
func (m *segmentMap) overlaps(startVA uint32, sizePages uint32) bool {
	idx := m.insertionPoint(startVA)
	end := startVA + sizePages*PageSize

	if idx > 0 {
		prev := m.segments[idx-1]
		if prev.endVA() > startVA {
			return true
		}
	}
	if idx < len(m.segments) {
		next := m.segments[idx]
		if end > next.StartVA {
			return true
		}
	}
	return false
}

// insert adds seg at its sorted position. Callers must have already
// checked overlaps.
func (m *segmentMap) insert(seg *Segment) {
	idx := m.insertionPoint(seg.StartVA)
	m.segments = append(m.segments, nil)
	copy(m.segments[idx+1:], m.segments[idx:])
	m.segments[idx] = seg
}

// remove deletes the segment starting at startVA, if any.
func (m *segmentMap) remove(startVA uint32) {
	idx := m.insertionPoint(startVA)
	if idx >= len(m.segments) || m.segments[idx].StartVA != startVA {
		return
	}
	m.segments = append(m.segments[:idx], m.segments[idx+1:]...)
}

// find returns the segment starting exactly at startVA, if present.
func (m *segmentMap) find(startVA uint32) *Segment {
	idx := m.insertionPoint(startVA)
	if idx >= len(m.segments) || m.segments[idx].StartVA != startVA {
		return nil
	}
	return m.segments[idx]
}

// containing returns the segment covering virtual address va, found by
// linear scan, as the original does — the segment count per process is
// small enough that this is not worth making binary.
func (m *segmentMap) containing(va uint32) *Segment {
	for _, s := range m.segments {
		if va >= s.StartVA && va < s.endVA() {
			return s
		}
	}
	return nil
}
