package alnmap

import "github.com/biogo/store/interval"

type iv struct {
	start, end int
	id         uintptr
}

func (i iv) Overlap(b interval.IntRange) bool { return i.end > b.Start && i.start < b.End }
func (i iv) Range() interval.IntRange         { return interval.IntRange{Start: i.start, End: i.end} }
func (i iv) ID() uintptr                      { return i.id }

// ivSet is a set of half-open integer intervals with overlap queries, backed
// by an interval tree.
type ivSet struct {
	tree interval.IntTree
	next uintptr
}

func (s *ivSet) add(b, e uint32) {
	if e <= b {
		return
	}
	s.next++
	_ = s.tree.Insert(iv{start: int(b), end: int(e), id: s.next}, false)
}

func (s *ivSet) overlaps(b, e uint32) bool {
	if s == nil || e <= b {
		return false
	}
	return len(s.tree.Get(iv{start: int(b), end: int(e)})) > 0
}
