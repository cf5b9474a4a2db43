package mcan

import (
	"fmt"
	"sort"
)

// DataFieldSize selects the payload capacity of the elements of a RAM
// region.
type DataFieldSize uint8

const (
	Data8 DataFieldSize = iota
	Data12
	Data16
	Data20
	Data24
	Data32
	Data48
	Data64
)

// Bytes returns the payload capacity in bytes.
func (s DataFieldSize) Bytes() uint32 {
	if s < Data32 {
		return (uint32(s) + 2) * 4
	}
	return (uint32(s) - 3) * 16
}

// ElementSize returns the size of a buffer element including its two
// header words.
func (s DataFieldSize) ElementSize() uint32 { return elementHeaderSize + s.Bytes() }

func (s DataFieldSize) String() string { return fmt.Sprintf("%dB", s.Bytes()) }

// DataFieldSizeFor returns the smallest data field size holding n bytes.
func DataFieldSizeFor(n int) (DataFieldSize, bool) {
	for s := Data8; s <= Data64; s++ {
		if uint32(n) <= s.Bytes() {
			return s, true
		}
	}
	return 0, false
}

const (
	elementHeaderSize = 8
	txEventSize       = 8
	stdFilterSize     = 4
	extFilterSize     = 8
)

// RegionKind names a message RAM region.
type RegionKind uint8

const (
	RxBuffers RegionKind = iota
	RxFIFO0
	RxFIFO1
	TxBuffers
	TxEventFIFO
	StandardFilters
	ExtendedFilters
)

var regionNames = [...]string{
	RxBuffers:       "rx buffers",
	RxFIFO0:         "rx fifo0",
	RxFIFO1:         "rx fifo1",
	TxBuffers:       "tx buffers",
	TxEventFIFO:     "tx event fifo",
	StandardFilters: "standard filters",
	ExtendedFilters: "extended filters",
}

func (k RegionKind) String() string {
	if int(k) < len(regionNames) {
		return regionNames[k]
	}
	return fmt.Sprintf("region(%d)", uint8(k))
}

// Address is a message RAM offset. The zero value leaves the choice to the
// planner.
type Address struct {
	offset uint32
	fixed  bool
}

// At returns a fixed message RAM offset. offset must be a multiple of 4.
func At(offset uint32) Address {
	return Address{offset: offset, fixed: true}
}

// Offset returns the fixed offset and whether one was set.
func (a Address) Offset() (uint32, bool) { return a.offset, a.fixed }

// RegionRequest asks the planner for Count elements of Kind.
type RegionRequest struct {
	Kind  RegionKind
	Count uint32
	// FieldSize applies to buffer and FIFO regions only.
	FieldSize DataFieldSize
	Start     Address
}

// ElementSize returns the size in bytes of one element of the request.
func (r RegionRequest) ElementSize() uint32 {
	switch r.Kind {
	case TxEventFIFO:
		return txEventSize
	case StandardFilters:
		return stdFilterSize
	case ExtendedFilters:
		return extFilterSize
	default:
		return r.FieldSize.ElementSize()
	}
}

// Region is a placed message RAM region.
type Region struct {
	Kind        RegionKind
	Start       uint32
	Count       uint32
	ElementSize uint32
}

// Size returns the region size in bytes.
func (r Region) Size() uint32 { return r.Count * r.ElementSize }

// End returns the offset just past the region.
func (r Region) End() uint32 { return r.Start + r.Size() }

// Element returns the offset of element i.
func (r Region) Element(i uint32) uint32 { return r.Start + i*r.ElementSize }

// fits reports whether the region ends inside a window of window bytes.
func (r Region) fits(window uint32) bool {
	return uint64(r.Start)+uint64(r.Count)*uint64(r.ElementSize) <= uint64(window)
}

func (r Region) overlaps(o Region) bool {
	return r.Start < o.End() && o.Start < r.End()
}

func (r Region) String() string {
	return fmt.Sprintf("%s [%#04x,%#04x) %dx%dB", r.Kind, r.Start, r.End(), r.Count, r.ElementSize)
}

// LayoutError describes a region that could not be placed.
type LayoutError struct {
	Region Region
	Window uint32
	// Conflict is the region overlapped by a fixed placement.
	Conflict *Region
	Err      error
}

func (e *LayoutError) Error() string {
	if e.Conflict != nil {
		return fmt.Sprintf("%v: %v collides with %v", e.Err, e.Region, *e.Conflict)
	}
	return fmt.Sprintf("%v: %v does not fit window of %d bytes", e.Err, e.Region, e.Window)
}

func (e *LayoutError) Unwrap() error { return e.Err }

// Layout tracks the used spans of one message RAM window.
type Layout struct {
	window uint32
	// used is sorted by start offset.
	used []Region
}

// NewLayout returns an empty layout of window bytes.
func NewLayout(window uint32) *Layout {
	if window > MaxRAMSize {
		panic(badRAMWindow)
	}
	return &Layout{window: window}
}

// Window returns the window size in bytes.
func (l *Layout) Window() uint32 { return l.window }

// Regions returns the placed regions ordered by start offset.
func (l *Layout) Regions() []Region {
	return append([]Region(nil), l.used...)
}

// Free returns the number of unused bytes.
func (l *Layout) Free() uint32 {
	free := l.window
	for _, r := range l.used {
		free -= r.Size()
	}
	return free
}

// Clone returns an independent copy of l.
func (l *Layout) Clone() *Layout {
	return &Layout{window: l.window, used: l.Regions()}
}

// Place reserves the requested region, at its fixed offset if it has one,
// otherwise at the lowest offset with enough free space. Requests for zero
// elements reserve nothing.
func (l *Layout) Place(req RegionRequest) (Region, error) {
	r := Region{Kind: req.Kind, Count: req.Count, ElementSize: req.ElementSize()}
	if start, fixed := req.Start.Offset(); fixed {
		if start%4 != 0 {
			panic(badRAMAlignment)
		}
		r.Start = start
		if r.Count == 0 {
			return r, nil
		}
		if !r.fits(l.window) {
			return r, &LayoutError{Region: r, Window: l.window, Err: ErrRAMOverflow}
		}
		for i := range l.used {
			if r.overlaps(l.used[i]) {
				conflict := l.used[i]
				return r, &LayoutError{Region: r, Window: l.window, Conflict: &conflict, Err: ErrRAMOverlap}
			}
		}
		l.insert(r)
		return r, nil
	}
	if r.Count == 0 {
		return r, nil
	}
	if !r.fits(l.window) {
		return r, &LayoutError{Region: r, Window: l.window, Err: ErrRAMOverflow}
	}
	var candidate uint32
	for _, u := range l.used {
		if candidate+r.Size() <= u.Start {
			break
		}
		if u.End() > candidate {
			candidate = u.End()
		}
	}
	r.Start = candidate
	if !r.fits(l.window) {
		return r, &LayoutError{Region: r, Window: l.window, Err: ErrRAMOverflow}
	}
	l.insert(r)
	return r, nil
}

func (l *Layout) insert(r Region) {
	i := sort.Search(len(l.used), func(i int) bool { return l.used[i].Start > r.Start })
	l.used = append(l.used, Region{})
	copy(l.used[i+1:], l.used[i:])
	l.used[i] = r
}

// Plan places reqs in order into an empty window of window bytes. Regions
// are not reordered; a caller wanting tight packing orders the requests
// accordingly.
func Plan(window uint32, reqs []RegionRequest) ([]Region, error) {
	l := NewLayout(window)
	regions := make([]Region, 0, len(reqs))
	for _, req := range reqs {
		r, err := l.Place(req)
		if err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return regions, nil
}
