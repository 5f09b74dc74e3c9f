package codec

import (
	"bytes"
	"errors"
	"testing"
)

func TestReadFSPEC(t *testing.T) {
	tests := []struct {
		name      string
		buf       []byte
		want      []byte
		wantSlots []int
	}{
		{
			name:      "single byte",
			buf:       []byte{0xD0, 0xAA},
			want:      []byte{0xD0},
			wantSlots: []int{1, 2, 4},
		},
		{
			name:      "two bytes chained",
			buf:       []byte{0xC1, 0x80, 0xFF},
			want:      []byte{0xC1, 0x80},
			wantSlots: []int{1, 2, 8},
		},
		{
			name:      "three bytes",
			buf:       []byte{0x81, 0x01, 0x40},
			want:      []byte{0x81, 0x01, 0x40},
			wantSlots: []int{1, 16},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fspec, n, err := readFSPEC(tt.buf)
			if err != nil {
				t.Fatalf("readFSPEC: %v", err)
			}
			if !bytes.Equal(fspec, tt.want) || n != len(tt.want) {
				t.Fatalf("fspec = % X (n=%d), want % X", fspec, n, tt.want)
			}

			set := make(map[int]bool)
			for _, s := range tt.wantSlots {
				set[s] = true
			}
			for slot := 1; slot <= len(fspec)*7+3; slot++ {
				if got := fspecBitSet(fspec, slot); got != set[slot] {
					t.Errorf("slot %d = %v, want %v", slot, got, set[slot])
				}
			}
		})
	}
}

func TestReadFSPECErrors(t *testing.T) {
	if _, _, err := readFSPEC(nil); !errors.Is(err, ErrEmptyFspec) {
		t.Errorf("empty buffer error = %v, want ErrEmptyFspec", err)
	}
	if _, _, err := readFSPEC([]byte{0x01}); !errors.Is(err, ErrTruncated) {
		t.Errorf("dangling FX error = %v, want ErrTruncated", err)
	}
}

func TestBuildFSPEC(t *testing.T) {
	uap := []string{"010", "000", "020", "030", "041", "050", "060", "070", "100", "090", "080", "-", "SP", "-"}

	tests := []struct {
		name    string
		present []int // 1-based slots
		want    []byte
	}{
		{"first slot only", []int{1}, []byte{0x80}},
		{"slots in first byte", []int{1, 2, 4}, []byte{0xD0}},
		{"second byte needed", []int{1, 2, 8}, []byte{0xC1, 0x80}},
		{"no slots still one byte", nil, []byte{0x00}},
		{"slot 13", []int{1, 13}, []byte{0x81, 0x04}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			present := make([]bool, len(uap))
			for _, s := range tt.present {
				present[s-1] = true
			}
			got := buildFSPEC(uap, present)
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("buildFSPEC = % X, want % X", got, tt.want)
			}

			// Re-reading must yield the same slot vector.
			fspec, _, err := readFSPEC(got)
			if err != nil {
				t.Fatalf("readFSPEC: %v", err)
			}
			for slot := 1; slot <= len(uap); slot++ {
				if fspecBitSet(fspec, slot) != present[slot-1] {
					t.Errorf("slot %d mismatch after re-read", slot)
				}
			}
		})
	}
}

func TestBuildFSPECSkipsSentinels(t *testing.T) {
	uap := []string{"010", "-", "rfs", "040"}
	present := []bool{true, true, true, true}
	got := buildFSPEC(uap, present)
	// Only slots 1 and 4 may be set.
	if !bytes.Equal(got, []byte{0x90}) {
		t.Errorf("buildFSPEC = % X, want 90", got)
	}
}
