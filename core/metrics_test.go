package core

import "testing"

func TestComputeMetricsFormatting(t *testing.T) {
	m := ComputeMetrics(1234.5678)
	if m.RangeDisplay != "123.46" {
		t.Fatalf("RangeDisplay = %q", m.RangeDisplay)
	}
	if m.LatencyDisplay != "8230.45" {
		t.Fatalf("LatencyDisplay = %q", m.LatencyDisplay)
	}
	if z := ComputeMetrics(0); z.RangeDisplay != "0.00" || z.LatencyDisplay != "0.00" {
		t.Fatalf("zero range readouts = %+v", z)
	}
}
