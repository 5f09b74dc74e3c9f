package bitstream

import (
	"bytes"
	"errors"
	"testing"
)

func TestReadUint(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		reads []int
		want  []uint64
	}{
		{
			name:  "nibbles of 0xAB",
			data:  []byte{0xAB},
			reads: []int{4, 4},
			want:  []uint64{0xA, 0xB},
		},
		{
			name:  "single bits MSB first",
			data:  []byte{0xB2}, // 1011 0010
			reads: []int{1, 1, 1, 1, 1, 1, 1, 1},
			want:  []uint64{1, 0, 1, 1, 0, 0, 1, 0},
		},
		{
			name:  "field crossing a byte boundary",
			data:  []byte{0x12, 0x34},
			reads: []int{12, 4},
			want:  []uint64{0x123, 0x4},
		},
		{
			name:  "uneven split",
			data:  []byte{0xC1, 0x80},
			reads: []int{3, 5, 2, 6},
			want:  []uint64{0b110, 0b00001, 0b10, 0},
		},
		{
			name:  "full 64 bits",
			data:  []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88},
			reads: []int{64},
			want:  []uint64{0x1122334455667788},
		},
		{
			name:  "big-endian 24-bit value",
			data:  []byte{0x00, 0x32, 0x00},
			reads: []int{24},
			want:  []uint64{12800},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(tt.data)
			for i, n := range tt.reads {
				got, err := r.ReadUint(n)
				if err != nil {
					t.Fatalf("ReadUint(%d) error: %v", n, err)
				}
				if got != tt.want[i] {
					t.Errorf("read %d (%d bits) = %#x, want %#x", i, n, got, tt.want[i])
				}
			}
		})
	}
}

func TestReadUintErrors(t *testing.T) {
	r := NewReader([]byte{0xFF})

	if _, err := r.ReadUint(0); !errors.Is(err, ErrBitCount) {
		t.Errorf("ReadUint(0) error = %v, want ErrBitCount", err)
	}
	if _, err := r.ReadUint(65); !errors.Is(err, ErrBitCount) {
		t.Errorf("ReadUint(65) error = %v, want ErrBitCount", err)
	}
	if _, err := r.ReadUint(9); !errors.Is(err, ErrInsufficientBits) {
		t.Errorf("ReadUint(9) on 1 byte error = %v, want ErrInsufficientBits", err)
	}

	// Position must be unchanged after failed reads.
	if r.BitsRead() != 0 {
		t.Errorf("BitsRead = %d after failed reads, want 0", r.BitsRead())
	}
}

func TestSkipAndAlign(t *testing.T) {
	r := NewReader([]byte{0xFF, 0x0F})

	if err := r.Skip(3); err != nil {
		t.Fatalf("Skip(3): %v", err)
	}
	if r.ByteAligned() {
		t.Error("ByteAligned after Skip(3) = true, want false")
	}
	r.AlignToByte()
	if !r.ByteAligned() || r.BitsRead() != 8 {
		t.Errorf("after AlignToByte: aligned=%v bits=%d, want true, 8", r.ByteAligned(), r.BitsRead())
	}
	// Aligning when already aligned is a no-op.
	r.AlignToByte()
	if r.BitsRead() != 8 {
		t.Errorf("second AlignToByte moved position to %d", r.BitsRead())
	}

	got, err := r.ReadUint(8)
	if err != nil || got != 0x0F {
		t.Errorf("ReadUint(8) = %#x, %v, want 0x0F", got, err)
	}
}

func TestSubReader(t *testing.T) {
	r := NewReader([]byte{0xAA, 0xBB, 0xCC, 0xDD})

	sub, err := r.SubReader(2)
	if err != nil {
		t.Fatalf("SubReader(2): %v", err)
	}
	if r.BytesRead() != 2 {
		t.Errorf("outer BytesRead = %d, want 2", r.BytesRead())
	}

	got, err := sub.ReadUint(16)
	if err != nil || got != 0xAABB {
		t.Errorf("sub.ReadUint(16) = %#x, %v, want 0xAABB", got, err)
	}
	if _, err := sub.ReadUint(1); !errors.Is(err, ErrInsufficientBits) {
		t.Errorf("read past sub-reader window error = %v, want ErrInsufficientBits", err)
	}

	// The outer reader continues after the window.
	got, err = r.ReadUint(16)
	if err != nil || got != 0xCCDD {
		t.Errorf("outer ReadUint(16) = %#x, %v, want 0xCCDD", got, err)
	}

	// Misaligned SubReader is refused.
	r2 := NewReader([]byte{0xFF, 0x00})
	_, _ = r2.ReadUint(3)
	if _, err := r2.SubReader(1); !errors.Is(err, ErrUnaligned) {
		t.Errorf("misaligned SubReader error = %v, want ErrUnaligned", err)
	}
}

func TestRemaining(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03})
	if _, err := r.ReadUint(8); err != nil {
		t.Fatal(err)
	}

	tail, err := r.Remaining()
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if !bytes.Equal(tail, []byte{0x02, 0x03}) {
		t.Errorf("Remaining = % X, want 02 03", tail)
	}
	// Remaining does not advance.
	if r.BytesRead() != 1 {
		t.Errorf("BytesRead after Remaining = %d, want 1", r.BytesRead())
	}
}

func TestWriterBasics(t *testing.T) {
	w := NewWriter()
	if err := w.WriteUint(0xA, 4); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUint(0xB, 4); err != nil {
		t.Fatal(err)
	}
	if got := w.Bytes(); !bytes.Equal(got, []byte{0xAB}) {
		t.Errorf("Bytes = % X, want AB", got)
	}

	w.WriteOctet(0xCD)
	w.WriteBit(true)
	if w.ByteAligned() {
		t.Error("ByteAligned after odd bit = true, want false")
	}
	if err := w.WriteUint(0, 7); err != nil {
		t.Fatal(err)
	}
	if got := w.Take(); !bytes.Equal(got, []byte{0xAB, 0xCD, 0x80}) {
		t.Errorf("Take = % X, want AB CD 80", got)
	}
	if w.BitsWritten() != 0 {
		t.Errorf("BitsWritten after Take = %d, want 0", w.BitsWritten())
	}
}

func TestWriteBytesMisaligned(t *testing.T) {
	w := NewWriter()
	w.WriteBit(true)
	w.WriteBytes([]byte{0xFF, 0x00})
	if err := w.WriteUint(0, 7); err != nil {
		t.Fatal(err)
	}
	// 1 | 11111111 | 00000000 | 0000000
	want := []byte{0xFF, 0x80, 0x00}
	if got := w.Take(); !bytes.Equal(got, want) {
		t.Errorf("misaligned WriteBytes = % X, want % X", got, want)
	}
}

func TestWriteUintMasksValue(t *testing.T) {
	w := NewWriter()
	// Only the low 4 bits of the value may be used.
	if err := w.WriteUint(0xFFF5, 4); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUint(0, 4); err != nil {
		t.Fatal(err)
	}
	if got := w.Take(); !bytes.Equal(got, []byte{0x50}) {
		t.Errorf("masked write = % X, want 50", got)
	}
}

// Every width and a range of positions must round-trip through a writer and
// reader pair.
func TestRoundTripAllWidths(t *testing.T) {
	for n := 1; n <= 64; n++ {
		for _, lead := range []int{0, 1, 3, 7, 8, 13} {
			var mask uint64 = ^uint64(0)
			if n < 64 {
				mask = (1 << n) - 1
			}
			v := uint64(0x9E3779B97F4A7C15) & mask

			w := NewWriter()
			if lead > 0 {
				if err := w.WriteUint(0, lead); err != nil {
					t.Fatal(err)
				}
			}
			if err := w.WriteUint(v, n); err != nil {
				t.Fatalf("WriteUint(%#x, %d): %v", v, n, err)
			}
			// Pad to whole bytes so the buffer is well formed.
			if pad := (8 - (lead+n)%8) % 8; pad > 0 {
				if err := w.WriteUint(0, pad); err != nil {
					t.Fatal(err)
				}
			}

			r := NewReader(w.Take())
			if lead > 0 {
				if err := r.Skip(lead); err != nil {
					t.Fatal(err)
				}
			}
			got, err := r.ReadUint(n)
			if err != nil {
				t.Fatalf("ReadUint(%d) at offset %d: %v", n, lead, err)
			}
			if got != v {
				t.Fatalf("round-trip %d bits at offset %d = %#x, want %#x", n, lead, got, v)
			}
		}
	}
}
