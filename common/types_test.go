package common

import "testing"

func TestHashRoundTrip(t *testing.T) {
	h := HexToHash("0xaabbccdd")
	if h.Hex() == "" {
		t.Fatal("expected non-empty hex")
	}
	got := BytesToHash(h.Bytes())
	if got != h {
		t.Fatalf("round trip mismatch: got %x want %x", got, h)
	}
}

func TestHashSetBytesCropsFromLeft(t *testing.T) {
	big := make([]byte, 40)
	for i := range big {
		big[i] = byte(i)
	}
	h := BytesToHash(big)
	if h[0] != big[8] {
		t.Fatalf("expected crop from the left, got first byte %x want %x", h[0], big[8])
	}
}

func TestServiceIDString(t *testing.T) {
	if got := ServiceID(65536).String(); got != "65536" {
		t.Fatalf("unexpected ServiceID.String(): %s", got)
	}
}
