package domain

import "time"

// Report formats for the detection date and time columns.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// TrackingRecord represents one detection of an identifier and the price
// measurements taken after it.
// Corresponds to tracking_records (+ tracking_samples) in PostgreSQL.
type TrackingRecord struct {
	RecordID          int64                    // assigned by the store on Create
	Identifier        string                   // token mint address
	DetectedAt        int64                    // Unix timestamp in milliseconds
	DetectionDate     string                   // YYYY-MM-DD in the configured location
	DetectionTime     string                   // HH:MM:SS in the configured location
	BaselinePrice     float64                  // USD price at detection, 0 = unknown
	BaselineMarketCap float64                  // USD market cap at detection, 0 = unknown
	Samples           map[string]*OffsetSample // keyed by offset name; absent = not measured
	CreatedAt         int64                    // record creation timestamp (ms)
}

// OffsetSample is the measurement for one configured offset.
type OffsetSample struct {
	Offset    string  // offset name, e.g. "10m"
	Price     float64 // measured USD price
	GainPct   float64 // percentage gain against the baseline
	SampledAt int64   // Unix timestamp in milliseconds
}

// NewTrackingRecord builds a record for a detection, deriving the date and
// time columns in loc.
func NewTrackingRecord(identifier string, detectedAt time.Time, loc *time.Location, baseline Quote) *TrackingRecord {
	if loc == nil {
		loc = time.Local
	}
	local := detectedAt.In(loc)
	return &TrackingRecord{
		Identifier:        identifier,
		DetectedAt:        detectedAt.UnixMilli(),
		DetectionDate:     local.Format(DateLayout),
		DetectionTime:     local.Format(TimeLayout),
		BaselinePrice:     baseline.Price,
		BaselineMarketCap: baseline.MarketCap,
	}
}

// Sample returns the sample for an offset, or nil if it was never measured.
func (r *TrackingRecord) Sample(offset string) *OffsetSample {
	if r.Samples == nil {
		return nil
	}
	return r.Samples[offset]
}

// Clone returns a deep copy of the record.
func (r *TrackingRecord) Clone() *TrackingRecord {
	out := *r
	if r.Samples != nil {
		out.Samples = make(map[string]*OffsetSample, len(r.Samples))
		for k, s := range r.Samples {
			sampleCopy := *s
			out.Samples[k] = &sampleCopy
		}
	}
	return &out
}

// Gain returns the percentage change of measured relative to baseline.
// Either price being zero (unknown) yields 0.
func Gain(baseline, measured float64) float64 {
	if baseline <= 0 || measured <= 0 {
		return 0
	}
	return (measured - baseline) / baseline * 100
}
