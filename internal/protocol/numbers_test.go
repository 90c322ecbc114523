package protocol

import (
	"bytes"
	"testing"
)

func TestParseUint(t *testing.T) {
	cases := map[string]uint64{
		"0":                  0,
		"42":                 42,
		"0x10":               16,
		"0xFFFFFFFFFFFFFFFF": ^uint64(0),
		"0Xab":               0xab,
	}
	for in, want := range cases {
		got, err := ParseUint(in)
		if err != nil || got != want {
			t.Fatalf("ParseUint(%q) = %d,%v want %d", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "zz", "0xZZ", "-1"} {
		if _, err := ParseUint(bad); err == nil {
			t.Fatalf("ParseUint(%q) expected error", bad)
		}
	}
}

func TestParseInt(t *testing.T) {
	cases := map[string]int64{
		"-5":      -5,
		"17":      17,
		"0x7FFF":  0x7fff,
		"-0x7FFF": -0x7fff,
		"-0x10":   -16,
	}
	for in, want := range cases {
		got, err := ParseInt(in)
		if err != nil || got != want {
			t.Fatalf("ParseInt(%q) = %d,%v want %d", in, got, err, want)
		}
	}
	if _, err := ParseInt("0xq"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseBytes(t *testing.T) {
	cases := []struct {
		in   string
		want []byte
	}{
		{"0x0102FF", []byte{0x01, 0x02, 0xff}},
		{"0xABC", []byte{0x0a, 0xbc}},
		{"1234", []byte{12, 34}},
		{"123", []byte{1, 23}},
		{"0x1", []byte{0x01}},
	}
	for _, c := range cases {
		got, err := ParseBytes(c.in)
		if err != nil || !bytes.Equal(got, c.want) {
			t.Fatalf("ParseBytes(%q) = %x,%v want %x", c.in, got, err, c.want)
		}
	}
	if _, err := ParseBytes("0xGG"); err == nil {
		t.Fatalf("expected error for invalid hex")
	}
}

func TestParseBool(t *testing.T) {
	for in, want := range map[string]bool{"0": false, "1": true, "2": true, "true": true, "False": false} {
		got, err := ParseBool(in)
		if err != nil || got != want {
			t.Fatalf("ParseBool(%q) = %v,%v", in, got, err)
		}
	}
	if _, err := ParseBool("maybe"); err == nil {
		t.Fatalf("expected error")
	}
}
