package mcan

import (
	"bytes"
	"errors"
	"testing"
)

func TestDataLengthCode(t *testing.T) {
	want := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 12, 16, 20, 24, 32, 48, 64}
	for dlc, n := range want {
		if got := DataLengthCode(dlc).Bytes(); got != n {
			t.Errorf("dlc %d bytes got!=expected: %d != %d", dlc, got, n)
		}
		code, ok := DataLengthCodeFor(n)
		if !ok || code != DataLengthCode(dlc) {
			t.Errorf("length %d code got %d, %v", n, code, ok)
		}
	}
	for _, n := range []int{9, 10, 13, 33, 63, 65} {
		if _, ok := DataLengthCodeFor(n); ok {
			t.Errorf("length %d has a code", n)
		}
	}
}

func TestMessageID(t *testing.T) {
	if _, err := StandardID(0x800); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("standard 0x800: got %v", err)
	}
	if _, err := ExtendedID(0x20000000); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("extended 0x20000000: got %v", err)
	}
	id, err := StandardID(0x7FF)
	if err != nil || id.IsExtended() || id.Value() != 0x7FF {
		t.Errorf("standard 0x7FF: %v %v", id, err)
	}
}

func TestNewFrameLengths(t *testing.T) {
	id, _ := ExtendedID(0x0CFE6E00)
	tests := []struct {
		name string
		n    int
		mode FrameMode
		ok   bool
	}{
		{"classic 8", 8, Classic, true},
		{"classic 9", 9, Classic, false},
		{"fd 9", 9, FDLong, false},
		{"classic 12", 12, Classic, false},
		{"fd 12", 12, FDLong, true},
		{"fd brs 64", 64, FDLongAndFast, true},
		{"classic 65", 65, Classic, false},
		{"fd 65", 65, FDLong, false},
		{"fd brs 65", 65, FDLongAndFast, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFrameMode(id, make([]byte, tt.n), tt.mode)
			if tt.ok && err != nil {
				t.Errorf("unexpected error %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidFrame) {
				t.Errorf("got %v, want %v", err, ErrInvalidFrame)
			}
		})
	}

	if _, err := NewFrame(id, make([]byte, 9)); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("NewFrame 9 bytes: got %v", err)
	}
	f, err := NewFrame(id, make([]byte, 12))
	if err != nil || f.Mode() != FDLong || f.DLC() != 9 {
		t.Errorf("NewFrame 12 bytes: mode %v dlc %d err %v", f.Mode(), f.DLC(), err)
	}
	if _, err := NewFrame(id, make([]byte, 65)); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("NewFrame 65 bytes: got %v", err)
	}
}

func TestFrameElementRoundTrip(t *testing.T) {
	id, _ := ExtendedID(0x0CFE6E00)
	payload := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	f, err := NewFrame(id, payload)
	if err != nil {
		t.Fatal(err)
	}
	words := make([]uint32, 2+Data8.Bytes()/4)
	encodeTx(words, f, txElement{})
	if words[0] != 0x0CFE6E00|elemXTD {
		t.Errorf("t0 got!=expected: %#x != %#x", words[0], 0x0CFE6E00|elemXTD)
	}
	if words[1] != 8<<elemDLCPos {
		t.Errorf("t1 got!=expected: %#x != %#x", words[1], 8<<elemDLCPos)
	}
	if words[2] != 0x04030201 || words[3] != 0x08070605 {
		t.Errorf("data words %#x %#x", words[2], words[3])
	}

	got := decodeRx(words)
	if got.ID() != id {
		t.Errorf("id got!=expected: %v != %v", got.ID(), id)
	}
	if !got.ID().IsExtended() {
		t.Error("extended tag lost")
	}
	if got.DLC() != f.DLC() || got.Mode() != Classic {
		t.Errorf("dlc %d mode %v", got.DLC(), got.Mode())
	}
	if !bytes.Equal(got.Data(), payload) {
		t.Errorf("payload got!=expected: % X != % X", got.Data(), payload)
	}
}

func TestDecodeStandardID(t *testing.T) {
	words := []uint32{0x123 << 18, 2<<elemDLCPos | elemFDF | elemBRS | 0xBEEF | 5<<elemFIDXPos, 0xAABB, 0}
	f := decodeRx(words)
	if f.ID().IsExtended() || f.ID().Value() != 0x123 {
		t.Errorf("standard id decoded as %v", f.ID())
	}
	if f.Mode() != FDLongAndFast {
		t.Errorf("mode %v, want fd+brs", f.Mode())
	}
	if !bytes.Equal(f.Data(), []byte{0xBB, 0xAA}) {
		t.Errorf("payload % X", f.Data())
	}
	if f.Timestamp() != 0xBEEF {
		t.Errorf("timestamp %#x", f.Timestamp())
	}
	if idx, matched := f.FilterIndex(); idx != 5 || !matched {
		t.Errorf("filter index %d matched %v", idx, matched)
	}
}

func TestDecodeTruncatesToDataField(t *testing.T) {
	// A 64 byte DLC read from an 8 byte element keeps the 8 stored bytes.
	words := []uint32{elemXTD | 1, 15<<elemDLCPos | elemFDF, 0x11111111, 0x22222222}
	f := decodeRx(words)
	data := f.Data()
	if len(data) != 64 {
		t.Fatalf("payload length %d, want 64", len(data))
	}
	if data[0] != 0x11 || data[7] != 0x22 {
		t.Errorf("stored bytes % X", data[:8])
	}
	for i, b := range data[8:] {
		if b != 0 {
			t.Errorf("byte %d beyond the data field is %#x", i+8, b)
		}
	}
}

func TestRemoteFrame(t *testing.T) {
	id, _ := StandardID(0x100)
	f, err := NewRemoteFrame(id, 4)
	if err != nil {
		t.Fatal(err)
	}
	words := make([]uint32, 4)
	encodeTx(words, f, txElement{marker: 7, storeEvent: true})
	if words[0]&elemRTR == 0 {
		t.Error("rtr bit not set")
	}
	if words[1] != 4<<elemDLCPos|7<<elemMMPos|elemEFC {
		t.Errorf("t1 %#x", words[1])
	}
	got := decodeRx(words)
	if !got.IsRemote() || got.Len() != 0 {
		t.Errorf("remote decode: remote %v len %d", got.IsRemote(), got.Len())
	}
	if _, err := NewRemoteFrame(id, 9); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("remote dlc 9: got %v", err)
	}
}

func TestFilterEncoding(t *testing.T) {
	std := Filter{Type: FilterClassic, Action: FilterStoreFIFO1, ID1: 0x123, ID2: 0x7F0}
	if got, want := std.encodeStandard(), uint32(2<<30|2<<27|0x123<<16|0x7F0); got != want {
		t.Errorf("standard filter got!=expected: %#x != %#x", got, want)
	}
	ext := Filter{Type: FilterRange, Action: FilterReject, ID1: 0x1000, ID2: 0x1FFF}
	f0, f1 := ext.encodeExtended()
	if f0 != 3<<29|0x1000 || f1 != 0x1FFF {
		t.Errorf("extended filter %#x %#x", f0, f1)
	}
	if err := (Filter{ID1: 0x800}).validate(maxStandardID, false); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("standard id 0x800: got %v", err)
	}
	if err := (Filter{Type: FilterDisabled}).validate(maxExtendedID, true); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("disabled extended filter: got %v", err)
	}
	if err := (Filter{Action: FilterStoreRxBuffer, ID1: 0x10, ID2: 63}).validate(maxStandardID, false); err != nil {
		t.Errorf("rx buffer filter: %v", err)
	}
}
