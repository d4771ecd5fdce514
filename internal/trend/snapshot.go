// Package trend records coverage snapshots over time and derives
// velocity, projection, regression, milestone and weekly analytics.
package trend

import (
	"fmt"
	"time"

	"github.com/hpungsan/doccov/internal/errors"
)

// Source records what triggered a snapshot.
type Source string

const (
	SourceCI        Source = "ci"
	SourceManual    Source = "manual"
	SourceScheduled Source = "scheduled"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceCI, SourceManual, SourceScheduled:
		return true
	}
	return false
}

// Snapshot is one point-in-time coverage measurement of a package.
type Snapshot struct {
	ID                string    `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	Package           string    `json:"package"`
	Version           string    `json:"version,omitempty"`
	Commit            string    `json:"commit,omitempty"`
	CoverageScore     int       `json:"coverageScore"`
	DocumentedExports int       `json:"documentedExports"`
	TotalExports      int       `json:"totalExports"`
	DescriptionCount  int       `json:"descriptionCount"`
	ParamsCount       int       `json:"paramsCount"`
	ReturnsCount      int       `json:"returnsCount"`
	ExamplesCount     int       `json:"examplesCount"`
	DriftCount        int       `json:"driftCount"`
	Source            Source    `json:"source"`
}

// Label names the snapshot for display: version, short commit, or date.
func (s Snapshot) Label() string {
	switch {
	case s.Version != "":
		return s.Version
	case len(s.Commit) > 7:
		return s.Commit[:7]
	case s.Commit != "":
		return s.Commit
	}
	return s.Timestamp.UTC().Format(time.DateOnly)
}

// Validate checks the fields a caller must supply.
func (s Snapshot) Validate() error {
	if s.Package == "" {
		return errors.NewInvalidRequest("package is required")
	}
	if s.CoverageScore < 0 || s.CoverageScore > 100 {
		return errors.NewInvalidRequest(fmt.Sprintf("coverage score %d out of range 0-100", s.CoverageScore))
	}
	if s.DocumentedExports < 0 || s.TotalExports < 0 || s.DocumentedExports > s.TotalExports {
		return errors.NewInvalidRequest("documented exports must be between 0 and total exports")
	}
	if !s.Source.Valid() {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid source %q (want ci, manual or scheduled)", s.Source))
	}
	return nil
}

// Tier is a retention policy name.
type Tier string

const (
	TierFree Tier = "free"
	TierTeam Tier = "team"
	TierPro  Tier = "pro"
)

// RetentionDays returns how many days of history tier keeps.
func RetentionDays(tier Tier) (int, error) {
	switch tier {
	case TierFree:
		return 7, nil
	case TierTeam:
		return 30, nil
	case TierPro:
		return 90, nil
	}
	return 0, errors.NewInvalidRequest(fmt.Sprintf("unknown retention tier %q (want free, team or pro)", tier))
}
