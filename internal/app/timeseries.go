package app

import "github.com/dhsingh07/ensureu-sub002/internal/domain"

// BuildTimeSeries turns a stored record into its chart-ready view: the
// events in submission order, the flat list of per-question times, and a
// time→event index for hover lookups.
func BuildTimeSeries(record *domain.TimeSeriesRecord) *domain.TimeSeries {
	series := &domain.TimeSeries{
		Events:        record.Events,
		TimeTakenList: make([]int64, 0, len(record.Events)),
		TimeToEvent:   make(map[int64]domain.QuestionTimeEvent, len(record.Events)),
	}
	for _, event := range record.Events {
		series.TimeTakenList = append(series.TimeTakenList, event.TimeTaken)
		series.TimeToEvent[event.TimeTaken] = event
	}
	return series
}
