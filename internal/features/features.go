package features

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/edumind/engagement-tracker/internal/logger"
	"github.com/edumind/engagement-tracker/internal/types"
)

// ErrMalformedRecord marks an input score row that cannot be used. It is
// scoped to the offending row: the engineer skips and keeps going.
var ErrMalformedRecord = errors.New("malformed engagement score record")

// LowEngagementCutoff is the composite score below which a day counts
// toward the consecutive-low-days streak.
const LowEngagementCutoff = 40.0

// Row is the engineered feature row for one (student, date). Lag and
// rolling-average fields are nil during a student's burn-in period; the
// distinction between nil and zero matters for training-set filtering.
type Row struct {
	StudentID string
	Date      time.Time

	LoginScore       float64
	SessionScore     float64
	InteractionScore float64
	ForumScore       float64
	AssignmentScore  float64
	EngagementScore  float64

	// Series-index lags of the composite score (not calendar offsets).
	Lag1  *float64
	Lag3  *float64
	Lag7  *float64
	Lag14 *float64

	// Rolling averages carried in from the upstream score record.
	RollingAvg7  *float64
	RollingAvg30 *float64

	// Rolling sample std of the composite over the trailing <=7
	// observations; 0 for a window of one, never undefined.
	Volatility7 float64

	// One-hot of the upstream trend label. IsStable stays outside the
	// model columns: the declining/improving pair already determines it.
	IsDeclining float64
	IsImproving float64
	IsStable    float64

	LoginToSessionRatio     float64
	InteractionToForumRatio float64

	ConsecutiveLowDays int
	DaysSinceStart     int
	CumulativeAvgScore float64
}

// TrainingEligible reports whether the row may enter the training set.
// Burn-in rows missing the 7-day lag or 7-day rolling average are excluded
// from training rather than imputed; at inference they are scored with
// zero-imputed vectors instead.
func (r *Row) TrainingEligible() bool {
	return r.Lag7 != nil && r.RollingAvg7 != nil
}

// Set is the output of one engineering pass over the full score history.
type Set struct {
	Rows    []*Row
	Skipped int
}

// LatestPerStudent returns each student's most recent feature row. This is
// the read-only view the study-schedule generator consumes.
func (s *Set) LatestPerStudent() map[string]*Row {
	out := make(map[string]*Row)
	for _, row := range s.Rows {
		prev, ok := out[row.StudentID]
		if !ok || row.Date.After(prev.Date) {
			out[row.StudentID] = row
		}
	}
	return out
}

type Engineer struct {
	log *logger.Logger
}

func NewEngineer(baseLog *logger.Logger) *Engineer {
	return &Engineer{log: baseLog.With("component", "FeatureEngineer")}
}

// Build computes one feature row per input record. Records are explicitly
// partitioned by student and sorted by date before any windowed
// computation; relying on incidental storage order would silently corrupt
// every lag, rolling and streak feature.
func (e *Engineer) Build(records []*types.EngagementScore) *Set {
	set := &Set{}
	byStudent := make(map[string][]*types.EngagementScore)
	var studentIDs []string
	for _, rec := range records {
		if rec == nil {
			e.log.Warn("Skipping malformed score record", "error", "nil record")
			set.Skipped++
			continue
		}
		if err := validateRecord(rec); err != nil {
			e.log.Warn("Skipping malformed score record",
				"student_id", rec.StudentID, "date", rec.Date, "error", err)
			set.Skipped++
			continue
		}
		if _, ok := byStudent[rec.StudentID]; !ok {
			studentIDs = append(studentIDs, rec.StudentID)
		}
		byStudent[rec.StudentID] = append(byStudent[rec.StudentID], rec)
	}
	sort.Strings(studentIDs)

	for _, studentID := range studentIDs {
		series := byStudent[studentID]
		sort.SliceStable(series, func(i, j int) bool {
			return series[i].Date.Before(series[j].Date)
		})
		set.Rows = append(set.Rows, e.buildSeries(series)...)
	}
	return set
}

func (e *Engineer) buildSeries(series []*types.EngagementScore) []*Row {
	rows := make([]*Row, 0, len(series))
	composites := make([]float64, 0, len(series))

	streak := 0
	cumulative := 0.0

	for i, rec := range series {
		composites = append(composites, rec.EngagementScore)
		cumulative += rec.EngagementScore

		if rec.EngagementScore < LowEngagementCutoff {
			streak++
		} else {
			streak = 0
		}

		row := &Row{
			StudentID:        rec.StudentID,
			Date:             rec.Date,
			LoginScore:       rec.LoginScore,
			SessionScore:     rec.SessionScore,
			InteractionScore: rec.InteractionScore,
			ForumScore:       rec.ForumScore,
			AssignmentScore:  rec.AssignmentScore,
			EngagementScore:  rec.EngagementScore,

			Lag1:  lag(composites, i, 1),
			Lag3:  lag(composites, i, 3),
			Lag7:  lag(composites, i, 7),
			Lag14: lag(composites, i, 14),

			RollingAvg7:  rec.RollingAvg7Days,
			RollingAvg30: rec.RollingAvg30Days,

			Volatility7: rollingStd(composites, i, 7),

			// The +1 denominator offsets are a deliberate smoothing
			// choice; changing them breaks result reproducibility.
			LoginToSessionRatio:     rec.LoginScore / (rec.SessionScore + 1),
			InteractionToForumRatio: rec.InteractionScore / (rec.ForumScore + 1),

			ConsecutiveLowDays: streak,
			DaysSinceStart:     i + 1,
			CumulativeAvgScore: cumulative / float64(i+1),
		}

		if rec.EngagementTrend != nil {
			switch *rec.EngagementTrend {
			case types.TrendDeclining:
				row.IsDeclining = 1
			case types.TrendImproving:
				row.IsImproving = 1
			case types.TrendStable:
				row.IsStable = 1
			}
		}

		rows = append(rows, row)
	}
	return rows
}

// lag returns the composite score n observations back in the student's own
// series, or nil when fewer than n prior observations exist.
func lag(composites []float64, i, n int) *float64 {
	if i-n < 0 {
		return nil
	}
	v := composites[i-n]
	return &v
}

// rollingStd is the sample standard deviation over the trailing window of
// up to `window` observations ending at index i. The window narrows at the
// series start; a single observation yields 0 by convention.
func rollingStd(composites []float64, i, window int) float64 {
	start := i - window + 1
	if start < 0 {
		start = 0
	}
	slice := composites[start : i+1]
	if len(slice) < 2 {
		return 0
	}
	return stat.StdDev(slice, nil)
}

func validateRecord(rec *types.EngagementScore) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrMalformedRecord)
	}
	if rec.StudentID == "" {
		return fmt.Errorf("%w: empty student id", ErrMalformedRecord)
	}
	if rec.Date.IsZero() {
		return fmt.Errorf("%w: zero date", ErrMalformedRecord)
	}
	componentScores := map[string]float64{
		"login_score":       rec.LoginScore,
		"session_score":     rec.SessionScore,
		"interaction_score": rec.InteractionScore,
		"forum_score":       rec.ForumScore,
		"assignment_score":  rec.AssignmentScore,
		"engagement_score":  rec.EngagementScore,
	}
	for name, v := range componentScores {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrMalformedRecord, name)
		}
		if v < 0 || v > 100 {
			return fmt.Errorf("%w: %s=%v outside [0,100]", ErrMalformedRecord, name, v)
		}
	}
	return nil
}
