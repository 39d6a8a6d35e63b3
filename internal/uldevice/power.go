package uldevice

import "fmt"

// powerComputer derives power = current * voltage whenever the
// instrument is sampling at its native rate and therefore only
// delivers current and voltage, not a precomputed power field. Both
// inputs must start at the same 64-bit sample id; a mismatch means the
// two channels drifted out of lockstep and the caller should drop the
// window rather than publish misaligned power samples.
type powerComputer struct{}

// Compute multiplies current and voltage element-wise into a new power
// buffer, truncating to the shorter of the two slices.
func (powerComputer) Compute(currentID uint64, current []float32, voltageID uint64, voltage []float32) ([]float32, error) {
	if currentID != voltageID {
		return nil, fmt.Errorf("uldevice: power inputs start at different sample ids (current=%d voltage=%d)", currentID, voltageID)
	}
	n := len(current)
	if len(voltage) < n {
		n = len(voltage)
	}
	power := make([]float32, n)
	for i := 0; i < n; i++ {
		power[i] = current[i] * voltage[i]
	}
	return power, nil
}
