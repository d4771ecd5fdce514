package trend

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Analytics never mutate their input; each works on a sorted copy.

const (
	// regressionWindow is how many recent snapshots regression scans.
	regressionWindow = 5
	// regressionThreshold is the smallest drop, in points, that counts.
	regressionThreshold = 3
	// sparklineSize is how many recent scores a sparkline shows.
	sparklineSize = 10
)

// Milestones are the coverage thresholds reported when first crossed.
var Milestones = []int{50, 75, 90, 100}

// Regression is an adjacent pair of snapshots whose coverage dropped.
type Regression struct {
	FromVersion  string `json:"fromVersion"`
	ToVersion    string `json:"toVersion"`
	CoverageDrop int    `json:"coverageDrop"`
	ExportsLost  int    `json:"exportsLost"`
}

// Milestone is the first crossing of a coverage threshold.
type Milestone struct {
	Threshold     int       `json:"threshold"`
	Timestamp     time.Time `json:"timestamp"`
	Version       string    `json:"version"`
	CoverageScore int       `json:"coverageScore"`
}

// WeeklySummary aggregates the snapshots of one ISO week.
type WeeklySummary struct {
	Week            string    `json:"week"`
	Start           time.Time `json:"start"`
	Snapshots       int       `json:"snapshots"`
	AverageCoverage float64   `json:"averageCoverage"`
	// Delta is the change from the previous summarized week; 0 for the first.
	Delta float64 `json:"delta"`
}

// Trend is the basic coverage trend of a package.
type Trend struct {
	Current *Snapshot  `json:"current"`
	History []Snapshot `json:"history"`
	// Delta is the change from the previous snapshot.
	Delta     int   `json:"delta"`
	Sparkline []int `json:"sparkline"`
}

// Analysis extends Trend with velocity, projection and insights.
type Analysis struct {
	Trend
	Velocity7d   float64         `json:"velocity7d"`
	Velocity30d  float64         `json:"velocity30d"`
	Velocity90d  float64         `json:"velocity90d"`
	Projected30d int             `json:"projected30d"`
	Regression   *Regression     `json:"regression"`
	Milestones   []Milestone     `json:"milestones"`
	Weekly       []WeeklySummary `json:"weekly"`
}

// Velocity is the average coverage change per day across the snapshots in
// the trailing window of days ending at the newest snapshot. It is 0 with
// fewer than two snapshots in the window.
func Velocity(snaps []Snapshot, days int) float64 {
	sorted := Chronological(snaps)
	if len(sorted) < 2 || days <= 0 {
		return 0
	}
	last := sorted[len(sorted)-1]
	start := last.Timestamp.AddDate(0, 0, -days)

	first := -1
	for i, s := range sorted {
		if !s.Timestamp.Before(start) {
			first = i
			break
		}
	}
	if first < 0 || first == len(sorted)-1 {
		return 0
	}
	span := last.Timestamp.Sub(sorted[first].Timestamp).Hours() / 24
	if span <= 0 {
		return 0
	}
	return float64(last.CoverageScore-sorted[first].CoverageScore) / span
}

// Projection estimates coverage 30 days after the newest snapshot from the
// 30-day velocity, clamped to [0, 100].
func Projection(snaps []Snapshot) int {
	sorted := Chronological(snaps)
	if len(sorted) == 0 {
		return 0
	}
	current := float64(sorted[len(sorted)-1].CoverageScore)
	projected := current + Velocity(sorted, 30)*30
	return int(math.Round(math.Max(0, math.Min(100, projected))))
}

// DetectRegression scans the five most recent snapshots in chronological
// order and returns the first adjacent pair whose coverage fell by at
// least three points, or nil.
func DetectRegression(snaps []Snapshot) *Regression {
	sorted := Chronological(snaps)
	if len(sorted) > regressionWindow {
		sorted = sorted[len(sorted)-regressionWindow:]
	}
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		drop := prev.CoverageScore - cur.CoverageScore
		if drop < regressionThreshold {
			continue
		}
		return &Regression{
			FromVersion:  prev.Label(),
			ToVersion:    cur.Label(),
			CoverageDrop: drop,
			ExportsLost:  max(0, prev.DocumentedExports-cur.DocumentedExports),
		}
	}
	return nil
}

// DetectMilestones reports the first time each threshold was crossed from
// below, in chronological order. A history that starts above a threshold
// never crosses it.
func DetectMilestones(snaps []Snapshot) []Milestone {
	sorted := Chronological(snaps)
	out := []Milestone{}
	reached := make(map[int]bool, len(Milestones))
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		for _, th := range Milestones {
			if reached[th] || prev.CoverageScore >= th || cur.CoverageScore < th {
				continue
			}
			reached[th] = true
			out = append(out, Milestone{
				Threshold:     th,
				Timestamp:     cur.Timestamp,
				Version:       cur.Label(),
				CoverageScore: cur.CoverageScore,
			})
		}
	}
	return out
}

// WeeklySummaries groups snapshots into ISO weeks, oldest first.
func WeeklySummaries(snaps []Snapshot) []WeeklySummary {
	out := []WeeklySummary{}
	var sum int
	for _, s := range Chronological(snaps) {
		ts := s.Timestamp.UTC()
		year, week := ts.ISOWeek()
		key := fmt.Sprintf("%d-W%02d", year, week)
		if len(out) == 0 || out[len(out)-1].Week != key {
			closeWeek(out, sum)
			sum = 0
			out = append(out, WeeklySummary{Week: key, Start: weekStart(ts)})
		}
		out[len(out)-1].Snapshots++
		sum += s.CoverageScore
	}
	closeWeek(out, sum)
	for i := 1; i < len(out); i++ {
		out[i].Delta = round1(out[i].AverageCoverage - out[i-1].AverageCoverage)
	}
	return out
}

func closeWeek(weeks []WeeklySummary, sum int) {
	if len(weeks) == 0 {
		return
	}
	w := &weeks[len(weeks)-1]
	w.AverageCoverage = round1(float64(sum) / float64(w.Snapshots))
}

// weekStart returns midnight UTC of the Monday starting t's ISO week.
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	day := t.AddDate(0, 0, -offset)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}

// BuildTrend summarizes snaps: the newest snapshot, history newest first,
// the delta from the previous snapshot and a sparkline of recent scores
// (oldest to newest).
func BuildTrend(snaps []Snapshot) Trend {
	history := NewestFirst(snaps)
	t := Trend{History: history, Sparkline: []int{}}
	if len(history) == 0 {
		return t
	}
	current := history[0]
	t.Current = &current
	if len(history) > 1 {
		t.Delta = current.CoverageScore - history[1].CoverageScore
	}
	n := min(len(history), sparklineSize)
	for i := n - 1; i >= 0; i-- {
		t.Sparkline = append(t.Sparkline, history[i].CoverageScore)
	}
	return t
}

// Analyze computes every analytic over snaps.
func Analyze(snaps []Snapshot) Analysis {
	return Analysis{
		Trend:        BuildTrend(snaps),
		Velocity7d:   round1(Velocity(snaps, 7)),
		Velocity30d:  round1(Velocity(snaps, 30)),
		Velocity90d:  round1(Velocity(snaps, 90)),
		Projected30d: Projection(snaps),
		Regression:   DetectRegression(snaps),
		Milestones:   DetectMilestones(snaps),
		Weekly:       WeeklySummaries(snaps),
	}
}

var sparkBars = []rune("▁▂▃▄▅▆▇█")

// RenderSparkline draws scores (0-100) as block characters.
func RenderSparkline(scores []int) string {
	var b strings.Builder
	for _, s := range scores {
		s = max(0, min(100, s))
		b.WriteRune(sparkBars[s*(len(sparkBars)-1)/100])
	}
	return b.String()
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
