package blob

import (
	"testing"

	"grid-trading-lab/internal/domain"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	points := []domain.PricePoint{
		{OffsetMs: 34200000, Price: 100.25},
		{OffsetMs: 34260000, Price: 100.5},
		{OffsetMs: 34320000, Price: 99.875},
	}

	data, err := Encode(points)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if len(got) != len(points) {
		t.Fatalf("Expected %d points, got %d", len(points), len(got))
	}
	for i := range points {
		if got[i] != points[i] {
			t.Errorf("Point %d mismatch: got %+v, want %+v", i, got[i], points[i])
		}
	}
}

func TestEncode_Empty(t *testing.T) {
	data, err := Encode(nil)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no points, got %d", len(got))
	}
}

func TestDecode_Corrupt(t *testing.T) {
	if _, err := Decode([]byte{0x01, 0x02, 0x03}); err == nil {
		t.Error("Expected error for corrupt input")
	}
}
