package config

import (
	"errors"
	"testing"
)

func TestParseAppliesDefaultsThenOverrides(t *testing.T) {
	opts, err := Parse([]byte("K: 4\nptsmax: 100\nmaxlevel: 5\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if opts.K != 4 {
		t.Fatalf("K = %v, want 4", opts.K)
	}
	if opts.PtsMax != 100 {
		t.Fatalf("PtsMax = %d, want 100", opts.PtsMax)
	}
	if opts.NPQ != Default().NPQ {
		t.Fatalf("NPQ = %d, want unoverridden default %d", opts.NPQ, Default().NPQ)
	}
}

func TestParseRejectsMaxLevelBelowUnitLevel(t *testing.T) {
	_, err := Parse([]byte("K: 16\nmaxlevel: 2\n"))
	if !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions, got %v", err)
	}
}

func TestParseRejectsNonPositiveK(t *testing.T) {
	_, err := Parse([]byte("K: 0\n"))
	if !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions, got %v", err)
	}
}

func TestMarshalRoundTrips(t *testing.T) {
	opts := Default()
	opts.K = 8
	data, err := opts.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse(Marshal()): %v", err)
	}
	if back.K != opts.K || back.PtsMax != opts.PtsMax || back.MaxLevel != opts.MaxLevel {
		t.Fatalf("round trip mismatch: got %+v, want %+v", back, opts)
	}
}
