package transform

import (
	"math"
	"testing"

	"asterix_codec/internal/schema"
)

func TestSignExtend(t *testing.T) {
	tests := []struct {
		raw  uint64
		bits int
		want int64
	}{
		{0x00, 8, 0},
		{0x7F, 8, 127},
		{0x80, 8, -128},
		{0xFD, 8, -3},
		{0x3FF8, 14, -8},
		{0xFF38, 16, -200},
		{0xF0BDC0, 24, -1000000},
		{0x7FFF, 16, 32767},
		{1, 1, -1},
		{0xFFFFFFFFFFFFFFFF, 64, -1},
	}
	for _, tt := range tests {
		if got := SignExtend(tt.raw, tt.bits); got != tt.want {
			t.Errorf("SignExtend(%#x, %d) = %d, want %d", tt.raw, tt.bits, got, tt.want)
		}
	}
}

func TestPhysical(t *testing.T) {
	tod := schema.Element{Name: "TOD", Bits: 24, Encoding: schema.UnsignedQuantity, Scale: 0.0078125, Unit: "s"}
	if got, ok := Physical(tod, 12800); !ok || got != 100 {
		t.Errorf("TOD physical = %v, %v, want 100, true", got, ok)
	}

	azm := schema.Element{Name: "AZM", Bits: 8, Encoding: schema.SignedQuantity, Scale: 0.5, Unit: "deg"}
	if got, ok := Physical(azm, 0xFD); !ok || got != -1.5 {
		t.Errorf("AZM physical = %v, %v, want -1.5, true", got, ok)
	}

	raw := schema.Element{Name: "SAC", Bits: 8, Encoding: schema.Raw}
	if _, ok := Physical(raw, 8); ok {
		t.Error("Physical on raw encoding reported ok")
	}

	sn := schema.Element{Name: "SN", Bits: 8, Encoding: schema.UnsignedQuantity, Scale: 1.40625, Unit: "deg"}
	if got, _ := Physical(sn, 64); math.Abs(got-90) > 1e-9 {
		t.Errorf("SN physical = %v, want 90", got)
	}
}

func TestMeaning(t *testing.T) {
	mt := schema.Element{Name: "MT", Bits: 8, Encoding: schema.Table, Table: map[uint64]string{
		1: "North marker message",
		2: "Sector crossing message",
	}}
	if got, ok := Meaning(mt, 1); !ok || got != "North marker message" {
		t.Errorf("Meaning(1) = %q, %v", got, ok)
	}
	if _, ok := Meaning(mt, 99); ok {
		t.Error("Meaning for unmapped value reported ok")
	}
	raw := schema.Element{Name: "SAC", Bits: 8, Encoding: schema.Raw}
	if _, ok := Meaning(raw, 1); ok {
		t.Error("Meaning on raw encoding reported ok")
	}
}

func TestOctal(t *testing.T) {
	tests := []struct {
		raw  uint64
		bits int
		want string
	}{
		{0xFC0, 12, "7700"},
		{0x4E5, 12, "2345"},
		{0, 12, "0000"},
		{0x1F, 5, "37"},
	}
	for _, tt := range tests {
		if got := Octal(tt.raw, tt.bits); got != tt.want {
			t.Errorf("Octal(%#x, %d) = %q, want %q", tt.raw, tt.bits, got, tt.want)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		elem schema.Element
		raw  uint64
		want string
	}{
		{
			name: "raw",
			elem: schema.Element{Name: "SAC", Bits: 8, Encoding: schema.Raw},
			raw:  8,
			want: "8 (0x8)",
		},
		{
			name: "table hit",
			elem: schema.Element{Name: "TYP", Bits: 1, Encoding: schema.Table, Table: map[uint64]string{0: "Plot", 1: "Track"}},
			raw:  1,
			want: "1 [Track]",
		},
		{
			name: "table miss",
			elem: schema.Element{Name: "TYP", Bits: 1, Encoding: schema.Table, Table: map[uint64]string{0: "Plot"}},
			raw:  7,
			want: "7 [?]",
		},
		{
			name: "unsigned quantity",
			elem: schema.Element{Name: "TOD", Bits: 24, Encoding: schema.UnsignedQuantity, Scale: 0.0078125, Unit: "s"},
			raw:  12800,
			want: "100.0000 s (raw=12800)",
		},
		{
			name: "signed quantity",
			elem: schema.Element{Name: "AE", Bits: 8, Encoding: schema.SignedQuantity, Scale: 0.5, Unit: "deg"},
			raw:  0xFD,
			want: "-1.5000 deg (raw=-3)",
		},
		{
			name: "octal squawk",
			elem: schema.Element{Name: "MODE3A", Bits: 12, Encoding: schema.StringOctal},
			raw:  0xFC0,
			want: "7700",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.elem, tt.raw); got != tt.want {
				t.Errorf("Format = %q, want %q", got, tt.want)
			}
		})
	}
}
