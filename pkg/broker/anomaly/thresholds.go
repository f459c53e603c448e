package anomaly

// Thresholds configures every built-in detector. Zero-value fields are
// replaced by WithDefaults() before a registry is constructed, so a
// missing config value always means "use the documented default" per
// spec.md §9 Design Note 3 (DESIGN.md Open Question 3).
type Thresholds struct {
	FlashThresholdMs        int64
	LargePayloadBytes       int64
	LongProcessingMs        int64
	NearDLQRemaining        int
	ZombieMultiplier        float64
	BurstCount              int
	BurstWindowSeconds      int64
	BulkThreshold           int
}

// Defaults documents every threshold's fallback value.
func Defaults() Thresholds {
	return Thresholds{
		FlashThresholdMs:   50,
		LargePayloadBytes:  256 * 1024,
		LongProcessingMs:   30_000,
		NearDLQRemaining:   1,
		ZombieMultiplier:   3.0,
		BurstCount:         50,
		BurstWindowSeconds: 10,
		BulkThreshold:      100,
	}
}

// WithDefaults returns a copy of t with every zero-value field replaced
// by its documented default.
func (t Thresholds) WithDefaults() Thresholds {
	d := Defaults()

	if t.FlashThresholdMs == 0 {
		t.FlashThresholdMs = d.FlashThresholdMs
	}

	if t.LargePayloadBytes == 0 {
		t.LargePayloadBytes = d.LargePayloadBytes
	}

	if t.LongProcessingMs == 0 {
		t.LongProcessingMs = d.LongProcessingMs
	}

	if t.NearDLQRemaining == 0 {
		t.NearDLQRemaining = d.NearDLQRemaining
	}

	if t.ZombieMultiplier == 0 {
		t.ZombieMultiplier = d.ZombieMultiplier
	}

	if t.BurstCount == 0 {
		t.BurstCount = d.BurstCount
	}

	if t.BurstWindowSeconds == 0 {
		t.BurstWindowSeconds = d.BurstWindowSeconds
	}

	if t.BulkThreshold == 0 {
		t.BulkThreshold = d.BulkThreshold
	}

	return t
}
