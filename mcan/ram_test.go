package mcan

import (
	"errors"
	"testing"
)

func TestDataFieldSize(t *testing.T) {
	want := []uint32{8, 12, 16, 20, 24, 32, 48, 64}
	for code, bytes := range want {
		s := DataFieldSize(code)
		if got := s.Bytes(); got != bytes {
			t.Errorf("code %d bytes got!=expected: %d != %d", code, got, bytes)
		}
		if got := s.ElementSize(); got != bytes+8 {
			t.Errorf("code %d element size got!=expected: %d != %d", code, got, bytes+8)
		}
	}
	if s, ok := DataFieldSizeFor(13); !ok || s != Data16 {
		t.Errorf("13 bytes got %v, %v", s, ok)
	}
	if _, ok := DataFieldSizeFor(65); ok {
		t.Error("65 bytes fit a data field")
	}
}

func TestPlanOverflow(t *testing.T) {
	reqs := []RegionRequest{
		{Kind: RxFIFO0, Count: 32, FieldSize: Data64},
		{Kind: TxBuffers, Count: 32, FieldSize: Data64},
	}
	_, err := Plan(4096, reqs)
	if !errors.Is(err, ErrRAMOverflow) {
		t.Fatalf("got %v, want %v", err, ErrRAMOverflow)
	}
	var lerr *LayoutError
	if !errors.As(err, &lerr) || lerr.Region.Kind != TxBuffers {
		t.Errorf("overflow not attributed to tx buffers: %v", err)
	}
}

func TestPlanExactFit(t *testing.T) {
	reqs := []RegionRequest{
		{Kind: StandardFilters, Count: 3},
		{Kind: ExtendedFilters, Count: 2},
		{Kind: RxFIFO0, Count: 4, FieldSize: Data8},
		{Kind: RxFIFO1, Count: 2, FieldSize: Data12},
		{Kind: RxBuffers, Count: 1, FieldSize: Data64},
		{Kind: TxEventFIFO, Count: 3},
		{Kind: TxBuffers, Count: 2, FieldSize: Data20},
	}
	var total uint32
	for _, r := range reqs {
		total += r.Count * r.ElementSize()
	}
	regions, err := Plan(total, reqs)
	if err != nil {
		t.Fatal(err)
	}
	if len(regions) != len(reqs) {
		t.Fatalf("got %d regions, want %d", len(regions), len(reqs))
	}
	var offset uint32
	for i, r := range regions {
		if r.Kind != reqs[i].Kind {
			t.Errorf("region %d reordered: %v", i, r.Kind)
		}
		if r.Start%4 != 0 {
			t.Errorf("%v start %#x not word aligned", r.Kind, r.Start)
		}
		if r.Start != offset {
			t.Errorf("%v start got!=expected: %#x != %#x", r.Kind, r.Start, offset)
		}
		offset = r.End()
		for _, o := range regions[i+1:] {
			if r.overlaps(o) {
				t.Errorf("%v overlaps %v", r, o)
			}
		}
	}
	if offset != total {
		t.Errorf("packed end %#x, want %#x", offset, total)
	}
}

func TestLayoutFixedPlacement(t *testing.T) {
	l := NewLayout(0x400)
	fifo, err := l.Place(RegionRequest{Kind: RxFIFO0, Count: 4, FieldSize: Data8, Start: At(0x100)})
	if err != nil {
		t.Fatal(err)
	}
	if fifo.Start != 0x100 || fifo.End() != 0x140 {
		t.Errorf("fixed fifo at %v", fifo)
	}

	// First fit uses the gap below the fixed region.
	tx, err := l.Place(RegionRequest{Kind: TxBuffers, Count: 2, FieldSize: Data8})
	if err != nil {
		t.Fatal(err)
	}
	if tx.Start != 0 {
		t.Errorf("tx buffers at %#x, want 0", tx.Start)
	}
	// Too large for the gap, goes after the fixed region.
	big, err := l.Place(RegionRequest{Kind: RxBuffers, Count: 16, FieldSize: Data8})
	if err != nil {
		t.Fatal(err)
	}
	if big.Start != 0x140 {
		t.Errorf("rx buffers at %#x, want 0x140", big.Start)
	}

	_, err = l.Place(RegionRequest{Kind: TxEventFIFO, Count: 4, Start: At(0x120)})
	if !errors.Is(err, ErrRAMOverlap) {
		t.Errorf("got %v, want %v", err, ErrRAMOverlap)
	}
	_, err = l.Place(RegionRequest{Kind: TxEventFIFO, Count: 4, Start: At(0x3F0)})
	if !errors.Is(err, ErrRAMOverflow) {
		t.Errorf("got %v, want %v", err, ErrRAMOverflow)
	}
	if got := len(l.Regions()); got != 3 {
		t.Errorf("failed placements reserved space: %d regions", got)
	}
	if free := l.Free(); free != 0x400-0x20-0x40-0x100 {
		t.Errorf("free got!=expected: %#x != %#x", free, 0x400-0x20-0x40-0x100)
	}
}

func TestLayoutClone(t *testing.T) {
	l := NewLayout(0x100)
	l.Place(RegionRequest{Kind: StandardFilters, Count: 4})
	c := l.Clone()
	c.Place(RegionRequest{Kind: ExtendedFilters, Count: 4})
	if len(l.Regions()) != 1 || len(c.Regions()) != 2 {
		t.Errorf("clone shares state: %d and %d regions", len(l.Regions()), len(c.Regions()))
	}
}

func TestLayoutMisalignedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("misaligned fixed address did not panic")
		}
	}()
	NewLayout(0x100).Place(RegionRequest{Kind: TxBuffers, Count: 1, Start: At(0x42)})
}

func TestPlanZeroCount(t *testing.T) {
	regions, err := Plan(0x10, []RegionRequest{
		{Kind: RxFIFO1, Count: 0, FieldSize: Data64},
		{Kind: StandardFilters, Count: 4},
	})
	if err != nil {
		t.Fatal(err)
	}
	if regions[1].Start != 0 {
		t.Errorf("empty region took space: filters at %#x", regions[1].Start)
	}
}

func TestPlanOverflowLargeCount(t *testing.T) {
	tests := []struct {
		name string
		req  RegionRequest
	}{
		{"automatic", RegionRequest{Kind: RxFIFO0, Count: 1 << 29, FieldSize: Data8}},
		{"fixed", RegionRequest{Kind: TxBuffers, Count: 1 << 28, FieldSize: Data64, Start: At(0x100)}},
		{"filters", RegionRequest{Kind: StandardFilters, Count: 1 << 30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			regions, err := Plan(0x400, []RegionRequest{tt.req})
			if !errors.Is(err, ErrRAMOverflow) {
				t.Fatalf("got regions %v err %v, want %v", regions, err, ErrRAMOverflow)
			}
		})
	}

	l := NewLayout(0x400)
	if _, err := l.Place(RegionRequest{Kind: RxFIFO0, Count: 1 << 29, FieldSize: Data8}); err == nil {
		t.Fatal("oversized region placed")
	}
	if len(l.Regions()) != 0 || l.Free() != 0x400 {
		t.Errorf("failed placement changed the layout: %v free %d", l.Regions(), l.Free())
	}
}
