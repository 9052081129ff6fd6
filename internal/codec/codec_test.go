package codec

import "testing"

type sample struct {
	B string `cbor:"b"`
	A int    `cbor:"a"`
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := sample{B: "two", A: 1}
	enc, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var out sample
	if err := Decode(enc, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("got %+v, want %+v", out, in)
	}
}

func TestEncodeIsDeterministicAcrossFieldOrder(t *testing.T) {
	a := map[string]int{"z": 1, "a": 2, "m": 3}
	enc1, err := Encode(a)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	enc2, err := Encode(map[string]int{"m": 3, "z": 1, "a": 2})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(enc1) != string(enc2) {
		t.Fatal("expected canonical encoding to be independent of map literal order")
	}
}

func TestHashStableUnderReencode(t *testing.T) {
	v := sample{B: "x", A: 7}
	h1, err := Hash(v)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	enc, err := Encode(v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var rt sample
	if err := Decode(enc, &rt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	h2, err := Hash(rt)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("hash changed after decode/re-encode: %s != %s", h1, h2)
	}
	if h1 != HashBytes(enc) {
		t.Fatalf("HashBytes(enc) = %s, want %s", HashBytes(enc), h1)
	}
}

func TestDecodeRejectsTrailingGarbage(t *testing.T) {
	enc, err := Encode(sample{B: "x", A: 1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var out sample
	if err := Decode(append(enc, 0xff), &out); err == nil {
		t.Fatal("expected decode to reject trailing bytes as non-canonical")
	}
}
