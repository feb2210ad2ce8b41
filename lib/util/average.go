package util

// ----------------------------------------------------------------------------
// RunningAverage
// ----------------------------------------------------------------------------

// RunningAverage maintains the arithmetic mean of all observed samples without
// storing them. It is used to smooth round trip times that drive polling cadence.
//
// Not thread-safe: an instance belongs to exactly one owner.
type RunningAverage struct {
	count   uint64
	average float64
}

// Observe adds a sample to the mean.
//
// The update is a - a/n + s/n with n the count including the new sample. Callers
// comparing results against a reference mean must allow for floating point tolerance.
func (r *RunningAverage) Observe(sample float64) {
	if r.count == 0 {
		r.average = sample
		r.count = 1
		return
	}
	r.count++
	n := float64(r.count)
	r.average = r.average - r.average/n + sample/n
}

// Average returns the current mean, 0 if no sample was observed.
func (r *RunningAverage) Average() float64 {
	return r.average
}

// Count returns the number of observed samples.
func (r *RunningAverage) Count() uint64 {
	return r.count
}
