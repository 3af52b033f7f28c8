package hdrhistogram

// RecordValue records a single occurrence of v. It fails with
// ValueOutOfRange if v exceeds HighestTrackableValue. O(1), no allocation.
func (h *Histogram) RecordValue(v int64) error {
	return h.RecordValueWithCount(v, 1)
}

// RecordValueWithCount records n occurrences of v in one step. It fails with
// ValueOutOfRange if v exceeds HighestTrackableValue. O(1), no allocation.
func (h *Histogram) RecordValueWithCount(v, n int64) error {
	h.lock()
	defer h.unlock()
	return h.recordValueWithCountLocked(v, n)
}

func (h *Histogram) recordValueWithCountLocked(v, n int64) error {
	idx, err := h.layout.countsIndexForValue(v)
	if err != nil {
		return err
	}
	h.store.addTo(idx, uint64(n))
	h.totalCount += n
	if v > h.maxRecordedValue {
		h.maxRecordedValue = v
	}
	if v > 0 && v < h.minNonZeroRecordedValue {
		h.minNonZeroRecordedValue = v
	}
	return nil
}

// RecordValueWithExpectedInterval records v, then — if expectedInterval is
// positive and smaller than v — synthesizes the samples a measurement loop
// stalled for v-expectedInterval would have produced had it kept sampling at
// its expected rate. This is the at-recording coordinated-omission
// correction described in §4.3/§4.6. If expectedInterval <= 0 this is
// exactly RecordValue(v). O(v/expectedInterval).
func (h *Histogram) RecordValueWithExpectedInterval(v, expectedInterval int64) error {
	h.lock()
	defer h.unlock()
	return h.recordValueWithCountAndExpectedIntervalLocked(v, 1, expectedInterval)
}

// recordValueWithCountAndExpectedIntervalLocked is the shared
// CoordinatedOmissionCorrector replay loop: record (v, n), then walk
// backwards from v in steps of expectedInterval, recording n occurrences of
// each missing value, down to (but not below) expectedInterval itself. Both
// RecordValueWithExpectedInterval and the post-recording correction paths in
// aggregator.go funnel through this one loop.
func (h *Histogram) recordValueWithCountAndExpectedIntervalLocked(v, n, expectedInterval int64) error {
	if err := h.recordValueWithCountLocked(v, n); err != nil {
		return err
	}
	if expectedInterval <= 0 || v <= expectedInterval {
		return nil
	}
	for missing := v - expectedInterval; missing >= expectedInterval; missing -= expectedInterval {
		if err := h.recordValueWithCountLocked(missing, n); err != nil {
			return err
		}
	}
	return nil
}
