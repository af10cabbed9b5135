package transport

import (
	"testing"
	"testing/quick"
)

func TestVarintLenBoundaries(t *testing.T) {
	cases := []struct {
		v    uint64
		want int
	}{
		{0, 1},
		{maxVarint1, 1},
		{maxVarint1 + 1, 2},
		{maxVarint2, 2},
		{maxVarint2 + 1, 4},
		{maxVarint4, 4},
		{maxVarint4 + 1, 8},
		{maxVarint8, 8},
		{maxVarint8 + 1, 0},
		{1<<64 - 1, 0},
	}
	for _, c := range cases {
		if got := varintLen(c.v); got != c.want {
			t.Errorf("varintLen(%d) = %d, want %d", c.v, got, c.want)
		}
	}
}

func TestPutVarintRejectsOutOfRange(t *testing.T) {
	b := make([]byte, 8)
	if n := putVarint(b, maxVarint8+1); n != 0 {
		t.Fatalf("putVarint(maxVarint8+1) = %d, want 0", n)
	}
}

func TestPutVarintRejectsShortBuffer(t *testing.T) {
	b := make([]byte, 1)
	if n := putVarint(b, maxVarint2); n != 0 {
		t.Fatalf("putVarint into a too-short buffer = %d, want 0", n)
	}
}

func TestGetVarintRejectsTruncated(t *testing.T) {
	b := []byte{0x80, 0x00, 0x00} // 4-byte prefix, only 3 bytes present.
	var v uint64
	if n := getVarint(b, &v); n != 0 {
		t.Fatalf("getVarint on a truncated buffer = %d, want 0", n)
	}
}

func TestGetVarintEmpty(t *testing.T) {
	var v uint64
	if n := getVarint(nil, &v); n != 0 {
		t.Fatalf("getVarint(nil) = %d, want 0", n)
	}
}

// TestVarintRoundTrip checks that every value within the representable
// range survives putVarint followed by getVarint, across the length-prefix
// boundaries (RFC 9000 Section 16), using testing/quick to sample widely
// instead of hand-enumerating cases.
func TestVarintRoundTrip(t *testing.T) {
	f := func(v uint64) bool {
		v %= maxVarint8 + 1
		b := make([]byte, 8)
		n := putVarint(b, v)
		if n == 0 {
			return false
		}
		var got uint64
		m := getVarint(b[:n], &got)
		return m == n && got == v
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

// TestVarintEncodedLenMatchesPutVarint checks varintLen agrees with the
// number of bytes putVarint actually writes, for every encodable value.
func TestVarintEncodedLenMatchesPutVarint(t *testing.T) {
	f := func(v uint64) bool {
		v %= maxVarint8 + 1
		b := make([]byte, 8)
		return putVarint(b, v) == varintLen(v)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}
