package core

import "strconv"

const (
	// RangeDisplayScale converts world units to displayed metres.
	RangeDisplayScale = 10.0
	// PropagationConstant divides the round-trip distance to give the
	// latency readout.
	PropagationConstant = 0.3
)

// Metrics are the HUD readouts derived each tick. They are never stored
// beyond the latest snapshot.
type Metrics struct {
	// Range is the missile-to-target-centre distance in world units.
	Range float64 `json:"range"`
	// RangeMeters is Range / RangeDisplayScale.
	RangeMeters float64 `json:"rangeMeters"`
	Latency     float64 `json:"latency"`

	RangeDisplay   string `json:"rangeDisplay"`
	LatencyDisplay string `json:"latencyDisplay"`
}

// ComputeMetrics derives the readouts for a range in world units.
func ComputeMetrics(rangeUnits float64) Metrics {
	meters := rangeUnits / RangeDisplayScale
	latency := rangeUnits * 2 / PropagationConstant
	return Metrics{
		Range:          rangeUnits,
		RangeMeters:    meters,
		Latency:        latency,
		RangeDisplay:   strconv.FormatFloat(meters, 'f', 2, 64),
		LatencyDisplay: strconv.FormatFloat(latency, 'f', 2, 64),
	}
}
