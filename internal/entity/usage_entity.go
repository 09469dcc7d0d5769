package entity

import "time"

// MinutesPerHour is the number of counters stored per feature per hourly bucket.
const MinutesPerHour = 60

// FeatureUsage holds per-minute counters for one feature inside an hourly bucket.
type FeatureUsage struct {
	Used    [MinutesPerHour]int `json:"used"`
	Skipped [MinutesPerHour]int `json:"skipped"`
}

// UsageBucket is the usage of an organization during one calendar hour (UTC).
type UsageBucket struct {
	Organization string
	Hour         string // YYYY-MM-DDTHH
	Features     map[string]FeatureUsage
	UpdatedAt    time.Time
}

type UsageSample struct {
	Used    int `json:"used"`
	Skipped int `json:"skipped"`
}

// HourKey formats t as the bucket identifier used for storage.
func HourKey(t time.Time) string {
	return t.UTC().Format("2006-01-02T15")
}
