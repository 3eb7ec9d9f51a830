// Package backup takes verified point-in-time snapshots of the sqlite
// curation database and prunes them with a tiered retention policy.
package backup

import (
	"time"
)

// Config holds snapshot settings.
type Config struct {
	// DBPath is the sqlite database file to snapshot.
	DBPath string

	// Dir is where snapshots are written.
	Dir string

	// Retention bounds how many snapshots each age tier keeps.
	Retention RetentionPolicy

	// Verify runs an integrity check on every new snapshot.
	Verify bool

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// RetentionPolicy is the number of snapshots kept per age tier:
// hourly (<24h), daily (<7d), weekly (<30d) and monthly (<365d).
// Anything older than a year is always removed.
type RetentionPolicy struct {
	Hourly  int `mapstructure:"hourly"`
	Daily   int `mapstructure:"daily"`
	Weekly  int `mapstructure:"weekly"`
	Monthly int `mapstructure:"monthly"`
}

// DefaultRetention keeps a day of hourly snapshots, a week of dailies,
// a month of weeklies and a year of monthlies.
func DefaultRetention() RetentionPolicy {
	return RetentionPolicy{Hourly: 24, Daily: 7, Weekly: 4, Monthly: 12}
}

func (p RetentionPolicy) withDefaults() RetentionPolicy {
	d := DefaultRetention()
	if p.Hourly == 0 {
		p.Hourly = d.Hourly
	}
	if p.Daily == 0 {
		p.Daily = d.Daily
	}
	if p.Weekly == 0 {
		p.Weekly = d.Weekly
	}
	if p.Monthly == 0 {
		p.Monthly = d.Monthly
	}
	return p
}

// Snapshot describes one snapshot file.
type Snapshot struct {
	Path      string
	Timestamp time.Time
	Size      int64
}

// Result is the outcome of one snapshot run.
type Result struct {
	Path     string
	Duration time.Duration
	Size     int64
	Verified bool
	Pruned   int
}
