package protocol

import "testing"

func TestHexify(t *testing.T) {
	if got := string(Hexify([]byte{0x01, 0xab, 0xff}, false)); got != "01ABFF" {
		t.Fatalf("Hexify = %s", got)
	}
	if got := string(Hexify([]byte{0x01, 0xab, 0xff}, true)); got != "FFAB01" {
		t.Fatalf("Hexify flip = %s", got)
	}
	if got := Hexify(nil, false); len(got) != 0 {
		t.Fatalf("Hexify(nil) = %q", got)
	}
}

func TestHexifyValue(t *testing.T) {
	cases := []struct {
		in   []byte
		want string
	}{
		{[]byte{0x34, 0x12}, "1234"},
		{[]byte{0x7f}, "7F"},
		{[]byte{0x78, 0x56, 0x34, 0x12}, "12345678"},
		{[]byte{0x00, 0x00, 0x00, 0x80, 0x07, 0x00, 0x00, 0x00}, "0000000780000000"},
	}
	for _, c := range cases {
		got, ok := HexifyValue(c.in)
		if !ok || string(got) != c.want {
			t.Fatalf("HexifyValue(%x) = %s,%v want %s", c.in, got, ok, c.want)
		}
	}
	if got, ok := HexifyValue([]byte{1, 2, 3}); ok || len(got) != 3 {
		t.Fatalf("odd-sized value must be returned unchanged")
	}
}

func TestTerminate(t *testing.T) {
	if got := string(Terminate([]byte("abc"))); got != "abc\n" {
		t.Fatalf("Terminate = %q", got)
	}
	if got := string(Terminate([]byte("abc\n"))); got != "abc\n" {
		t.Fatalf("Terminate double newline: %q", got)
	}
	if got := Terminate(nil); got != nil {
		t.Fatalf("Terminate(nil) = %q", got)
	}
}
