package domain

import (
	"time"

	"github.com/dhsingh07/ensureu-sub002/internal/scorekey"
)

// OutcomeStatus classifies how a user handled a single question.
type OutcomeStatus string

const (
	OutcomeCorrect OutcomeStatus = "CORRECT"
	OutcomeWrong   OutcomeStatus = "WRONG"
	OutcomeSkipped OutcomeStatus = "SKIPPED"
)

// QuestionOutcome is one question of a scored attempt. Marks are signed;
// negative marking yields values below zero.
type QuestionOutcome struct {
	QuestionID      string        `json:"questionId"`
	QuestionNumber  int64         `json:"questionNumber"`
	Section         string        `json:"section"`
	SubSection      string        `json:"subSection"`
	Type            string        `json:"type"`
	ComplexityLevel string        `json:"complexityLevel"`
	TimeTaken       int64         `json:"timeTaken"` // seconds
	Status          OutcomeStatus `json:"status"`
	Marks           float64       `json:"marks"`
}

// PaperResult is one user's scored attempt at a paper. Once Freeze is set
// the record is final and re-ingestion for the same (user, paper) pair is
// rejected.
type PaperResult struct {
	UserID           string            `json:"userId"`
	PaperID          string            `json:"paperId"`
	PaperName        string            `json:"paperName"`
	PaperCategory    string            `json:"paperCategory"`
	PaperHierarchy   string            `json:"paperHierarchy"`
	TestType         string            `json:"testType"`
	TotalScore       float64           `json:"totalScore"`
	MaxPossibleScore float64           `json:"maxPossibleScore"`
	TotalQuestions   int               `json:"totalQuestions"`
	TotalAttempted   int               `json:"totalAttempted"`
	TotalCorrect     int               `json:"totalCorrect"`
	TotalSkipped     int               `json:"totalSkipped"`
	TotalTime        int64             `json:"totalTime"`      // seconds allotted
	TotalTimeTaken   int64             `json:"totalTimeTaken"` // seconds spent
	Completed        bool              `json:"completed"`
	Freeze           bool              `json:"freeze"`
	CreatedAt        time.Time         `json:"createdAt"`
	Questions        []QuestionOutcome `json:"questions"`
}

// PercentileBand groups every participant sharing one score. Rank is the
// 1-based rank of the band's first member counted from the top; all members
// share the rank and the percentile.
type PercentileBand struct {
	Score      float64  `json:"score"`
	Percentile float64  `json:"percentile"`
	Rank       int      `json:"rank"`
	UserIDs    []string `json:"userIds"`
}

// PaperAggregate is the paper-wide score index shared by every participant.
// Bands map an encoded score to the users who achieved it. Version guards
// read-modify-write cycles: stores bump it on every successful update and
// reject stale writers.
type PaperAggregate struct {
	PaperID        string                    `json:"paperId"`
	PaperName      string                    `json:"paperName"`
	PaperCategory  string                    `json:"paperCategory"`
	PaperHierarchy string                    `json:"paperHierarchy"`
	Participants   []string                  `json:"participants"`
	Toppers        []string                  `json:"toppers"`
	Bands          map[scorekey.Key][]string `json:"bands"`
	Percentiles    []PercentileBand          `json:"percentiles"`
	Version        int64                     `json:"version"`
}

// NewPaperAggregate seeds an empty aggregate for a paper from the first
// ingested result.
func NewPaperAggregate(result *PaperResult) *PaperAggregate {
	return &PaperAggregate{
		PaperID:        result.PaperID,
		PaperName:      result.PaperName,
		PaperCategory:  result.PaperCategory,
		PaperHierarchy: result.PaperHierarchy,
		Bands:          make(map[scorekey.Key][]string),
	}
}

// TopScore returns the highest score present in the aggregate. The second
// result is false while the aggregate has no participants.
func (a *PaperAggregate) TopScore() (float64, bool) {
	if len(a.Percentiles) == 0 {
		return 0, false
	}
	return a.Percentiles[0].Score, true
}

// PercentileOf scans the bands for the user's membership and reports their
// percentile and rank.
func (a *PaperAggregate) PercentileOf(userID string) (percentile float64, rank int, ok bool) {
	for _, band := range a.Percentiles {
		for _, id := range band.UserIDs {
			if id == userID {
				return band.Percentile, band.Rank, true
			}
		}
	}
	return 0, 0, false
}

// QuestionTimeEvent is one entry of a paper attempt's time replay.
type QuestionTimeEvent struct {
	QuestionID     string        `json:"questionId"`
	QuestionNumber int64         `json:"questionNumber"`
	TimeTaken      int64         `json:"timeTaken"` // seconds
	Status         OutcomeStatus `json:"status"`
}

// TimeSeriesRecord replays how long a user spent on each question of one
// paper attempt, in submission order. Distinct from scoring.
type TimeSeriesRecord struct {
	UserID  string              `json:"userId"`
	PaperID string              `json:"paperId"`
	Events  []QuestionTimeEvent `json:"events"`
}

// TimeSeries is the chart-ready view of a TimeSeriesRecord.
type TimeSeries struct {
	Events        []QuestionTimeEvent         `json:"events"`
	TimeTakenList []int64                     `json:"timeTakenList"`
	TimeToEvent   map[int64]QuestionTimeEvent `json:"timeToEvent"`
}

// QuestionComparison pairs one question's outcome for the user with the
// reference (top scorer) outcome on the same question.
type QuestionComparison struct {
	QuestionID         string  `json:"questionId"`
	QuestionNumber     int64   `json:"questionNumber"`
	Section            string  `json:"section"`
	SubSection         string  `json:"subSection"`
	Type               string  `json:"type"`
	UserTimeTaken      int64   `json:"userTimeTaken"`
	ReferenceTimeTaken int64   `json:"referenceTimeTaken"`
	UserMarks          float64 `json:"userMarks"`
	ReferenceMarks     float64 `json:"referenceMarks"`
}

// SectionHistogram rolls one section's comparisons up into counts.
type SectionHistogram struct {
	Section             string               `json:"section"`
	TotalMarks          float64              `json:"totalMarks"`
	TotalQuestions      int                  `json:"totalQuestions"`
	TotalRightQuestions int                  `json:"totalRightQuestions"`
	TotalWrongQuestions int                  `json:"totalWrongQuestions"`
	TotalSkipped        int                  `json:"totalSkipped"`
	Questions           []QuestionComparison `json:"questions"`
}

// GrowthPoint is one historical attempt on the user's growth chart.
type GrowthPoint struct {
	PaperID        string  `json:"paperId"`
	PaperName      string  `json:"paperName"`
	UserScore      float64 `json:"userScore"`
	TopperScore    float64 `json:"topperScore"`
	UserPercentile float64 `json:"userPercentile"`
}

// GrowthSeries is the chronological list of growth points, oldest first.
type GrowthSeries struct {
	UserID string        `json:"userId"`
	Points []GrowthPoint `json:"points"`
}

// ScoreSummary is the headline block of an analytics response.
type ScoreSummary struct {
	UserID           string  `json:"userId"`
	Score            float64 `json:"score"`
	MaxPossibleScore float64 `json:"maxPossibleScore"`
	Percentile       float64 `json:"percentile"`
	Rank             int     `json:"rank"`
}

// Analytics is the composite response for one user's attempt at one paper.
type Analytics struct {
	ScoreSummary      ScoreSummary         `json:"scoreSummary"`
	Toppers           []string             `json:"toppers"`
	TopScore          float64              `json:"topScore"`
	TimeSeries        *TimeSeries          `json:"timeSeries"`
	QuestionHistogram []QuestionComparison `json:"questionHistogram"`
	SectionHistogram  []SectionHistogram   `json:"sectionHistogram"`
	PercentileBands   []PercentileBand     `json:"percentileBands"`
	GrowthSeries      GrowthSeries         `json:"growthSeries"`
}
