//go:build linux

package button

import (
	"encoding/binary"
	"testing"
	"unsafe"
)

func TestHasKey(t *testing.T) {
	tests := []struct {
		caps string
		code uint16
		want bool
	}{
		{"10000000\n", 28, true},
		{"10000000", 29, false},
		{"1 0", 64, true},
		{"1 0", 0, false},
		{"2000000 0 0", 153, true},
		{"ff", 200, false},
		{"", 28, false},
		{"zz", 1, false},
	}
	for _, tt := range tests {
		if got := hasKey(tt.caps, tt.code); got != tt.want {
			t.Errorf("hasKey(%q, %d) = %v, want %v", tt.caps, tt.code, got, tt.want)
		}
	}
}

func TestNewRejectsUnknownSource(t *testing.T) {
	if _, err := New(Config{Source: "gpio"}); err == nil {
		t.Fatal("expected error for unknown source")
	}
}

func inputEvent(tv int, typ, code uint16, value int32) []byte {
	b := make([]byte, inputEventSize(tv))
	binary.NativeEndian.PutUint16(b[tv:], typ)
	binary.NativeEndian.PutUint16(b[tv+2:], code)
	binary.NativeEndian.PutUint32(b[tv+4:], uint32(value))
	return b
}

func TestParseInputEventsBothLayouts(t *testing.T) {
	for _, tv := range []int{16, 8} {
		var buf []byte
		buf = append(buf, inputEvent(tv, evKey, keySpace, keyPress)...)
		buf = append(buf, inputEvent(tv, 0, 0, 0)...) // EV_SYN
		buf = append(buf, inputEvent(tv, evKey, keySpace, keyRelease)...)
		buf = append(buf, 0, 0, 0) // partial record

		type key struct {
			code  uint16
			value int32
		}
		var got []key
		parseInputEvents(buf, tv, func(code uint16, value int32) {
			got = append(got, key{code, value})
		})
		want := []key{{keySpace, keyPress}, {keySpace, keyRelease}}
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("timeval %d: got %v, want %v", tv, got, want)
		}
	}
}

func TestTimevalSizeMatchesWordSize(t *testing.T) {
	if want := 2 * int(unsafe.Sizeof(uintptr(0))); timevalSize != want {
		t.Errorf("timevalSize = %d, want %d", timevalSize, want)
	}
}
