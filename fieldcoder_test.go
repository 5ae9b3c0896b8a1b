package dblib

import (
	"sort"
	"testing"
	"time"
)

func TestIntegerCoderRoundTrip(t *testing.T) {
	c, _ := CoderFor(FieldInteger)
	for _, v := range []int64{0, 1, -1, 1<<63 - 1, -(1 << 62), 42} {
		enc, err := c.Encode(v)
		if err != nil {
			t.Fatalf("Encode(%d): %v", v, err)
		}
		if len(enc) != 16 {
			t.Fatalf("Encode(%d) = %q, want 16 hex digits", v, enc)
		}
		dec, err := c.Decode(enc)
		if err != nil {
			t.Fatalf("Decode(%q): %v", enc, err)
		}
		if dec.(int64) != v {
			t.Fatalf("round trip %d -> %q -> %d", v, enc, dec)
		}
	}
}

func TestIntegerCoderOrdering(t *testing.T) {
	c, _ := CoderFor(FieldInteger)
	values := []int64{5, -5, 0, -100, 100, 1, -1}
	want := append([]int64{}, values...)
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

	encoded := make([]string, len(values))
	for i, v := range values {
		encoded[i], _ = c.Encode(v)
	}
	sort.Strings(encoded)

	for i, enc := range encoded {
		dec, _ := c.Decode(enc)
		if dec.(int64) != want[i] {
			t.Fatalf("position %d: byte order gives %d, numeric order wants %d", i, dec, want[i])
		}
	}
}

func TestDoubleCoderOrdering(t *testing.T) {
	c, _ := CoderFor(FieldNumber)
	values := []float64{-3.5, 2.25, 0, -0.001, 100.75, -100.75}
	want := append([]float64{}, values...)
	sort.Float64s(want)

	encoded := make([]string, len(values))
	for i, v := range values {
		encoded[i], _ = c.Encode(v)
	}
	sort.Strings(encoded)

	for i, enc := range encoded {
		dec, _ := c.Decode(enc)
		if dec.(float64) != want[i] {
			t.Fatalf("position %d: byte order gives %v, numeric order wants %v", i, dec, want[i])
		}
	}
}

func TestBooleanCoder(t *testing.T) {
	c, _ := CoderFor(FieldBoolean)
	for _, v := range []bool{true, false} {
		enc, _ := c.Encode(v)
		dec, _ := c.Decode(enc)
		if dec.(bool) != v {
			t.Fatalf("round trip %v -> %q -> %v", v, enc, dec)
		}
	}
}

func TestDateCoderOrdering(t *testing.T) {
	c, _ := CoderFor(FieldDate)
	t1 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2020, 6, 15, 12, 30, 0, 0, time.UTC)

	e1, _ := c.Encode(t1)
	e2, _ := c.Encode(t2)
	if e1 >= e2 {
		t.Fatalf("earlier date %q did not sort before later date %q", e1, e2)
	}
	if len(e1) != len(e2) {
		t.Fatalf("fixed-width encoding produced different lengths: %d vs %d", len(e1), len(e2))
	}
}

func TestBlobCoderRawAndCompressed(t *testing.T) {
	c, _ := CoderFor(FieldBlob)

	small := []byte("short value")
	enc, err := c.Encode(small)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := c.Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if string(dec.([]byte)) != string(small) {
		t.Fatalf("small blob round trip: got %q", dec)
	}

	big := make([]byte, BlobCompressThreshold*4)
	for i := range big {
		big[i] = byte(i % 7)
	}
	enc, err = c.Encode(big)
	if err != nil {
		t.Fatal(err)
	}
	dec, err = c.Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if len(dec.([]byte)) != len(big) {
		t.Fatalf("large blob round trip length: got %d, want %d", len(dec.([]byte)), len(big))
	}
	for i := range big {
		if dec.([]byte)[i] != big[i] {
			t.Fatalf("large blob round trip mismatch at %d", i)
		}
	}
}

func TestStringCoderPassthrough(t *testing.T) {
	c, _ := CoderFor(FieldString)
	for _, s := range []string{"", "hello", "with;semicolons", "unicode éè"} {
		enc, _ := c.Encode(s)
		dec, _ := c.Decode(enc)
		if dec.(string) != s {
			t.Fatalf("round trip %q -> %q -> %q", s, enc, dec)
		}
	}
}
