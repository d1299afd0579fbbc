package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunSolveRejectsNonPositiveRanks(t *testing.T) {
	ranks, numPoints, wavenumber, configPath = 0, 200, 1.0, ""
	cmd := rootCmd()
	cmd.SetArgs([]string{"--ranks", "0"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected an error for --ranks=0")
	}
}

func TestRunSolveReportsAggregateSum(t *testing.T) {
	ranks, numPoints, wavenumber, configPath = 2, 24, 1.0, ""
	cmd := rootCmd()
	cmd.SetArgs([]string{"--ranks", "2", "--points", "24"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "sum(target)=") {
		t.Fatalf("expected output to report an aggregate sum, got %q", out.String())
	}
}
