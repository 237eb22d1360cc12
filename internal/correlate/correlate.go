package correlate

import "loglens/internal/model"

// DefaultWindowMS widens task intervals and scales drift on both sides.
const DefaultWindowMS = 5000

// openTaskSpanMS substitutes for the end time of a task that never saw a
// terminal event.
const openTaskSpanMS = 60_000

// Options tunes the correlator.
type Options struct {
	WindowMS int64
}

// Entries attaches a correlation verdict to every auxiliary entry.
//
// The strategy cascade is fixed and the first applicable strategy wins:
// identifier equality, then task-id ownership, then pure time-window
// matching. Matched tasks are referenced by key and never mutated; calling
// Entries twice, or over any batching of the same inputs, yields identical
// assignments. With no tasks the entries are returned unchanged.
func Entries(entries []model.AuxLogEntry, tasks []model.Task, opts Options) []model.AuxLogEntry {
	if len(tasks) == 0 {
		return entries
	}
	window := opts.WindowMS
	if window <= 0 {
		window = DefaultWindowMS
	}

	out := make([]model.AuxLogEntry, len(entries))
	for i, e := range entries {
		out[i] = e
		out[i].Correlation = match(e, tasks, window)
	}
	return out
}

func match(e model.AuxLogEntry, tasks []model.Task, window int64) *model.Correlation {
	if e.Identifier != "" {
		for i := range tasks {
			if tasks[i].Identifier == e.Identifier {
				return matched(model.StrategyIdentifier, tasks[i].Key, 1.0)
			}
		}
	}

	if e.TaskID != nil {
		if c := matchTaskID(e, tasks, window); c != nil {
			return c
		}
	}

	if e.TimestampMS != nil {
		if key, score := bestTimeMatch(*e.TimestampMS, tasks, window); score > 0.5 {
			return matched(model.StrategyTimeWindow, key, score)
		}
	}

	return &model.Correlation{
		Status:   model.CorrelationUnmatched,
		Strategy: model.StrategyNone,
	}
}

// matchTaskID resolves task-id ownership. A unique owner scores a flat 0.9;
// with several owners (task ids are reused across processes and time) the
// best time-interval fit wins.
func matchTaskID(e model.AuxLogEntry, tasks []model.Task, window int64) *model.Correlation {
	var owners []*model.Task
	for i := range tasks {
		if tasks[i].TaskID == *e.TaskID {
			owners = append(owners, &tasks[i])
		}
	}
	switch {
	case len(owners) == 0:
		return nil
	case len(owners) == 1 || e.TimestampMS == nil:
		return matched(model.StrategyTaskID, owners[0].Key, 0.9)
	}

	bestKey, bestScore := "", -1.0
	for _, t := range owners {
		if s := timeScore(*e.TimestampMS, t, window); s > bestScore {
			bestKey, bestScore = t.Key, s
		}
	}
	return matched(model.StrategyTaskID, bestKey, bestScore)
}

func bestTimeMatch(ts int64, tasks []model.Task, window int64) (string, float64) {
	bestKey, bestScore := "", -1.0
	for i := range tasks {
		if s := timeScore(ts, &tasks[i], window); s > bestScore {
			bestKey, bestScore = tasks[i].Key, s
		}
	}
	return bestKey, bestScore
}

// timeScore scores the fit of a timestamp against a task's interval. Drift
// is the gap to the interval edge; one full window of drift zeroes the
// score, which is exactly the padded-interval acceptance bound.
func timeScore(ts int64, t *model.Task, window int64) float64 {
	start := t.StartTime.UnixMilli()
	end := start + openTaskSpanMS
	if t.EndTime != nil {
		end = t.EndTime.UnixMilli()
	}

	var drift int64
	switch {
	case ts < start:
		drift = start - ts
	case ts > end:
		drift = ts - end
	}
	score := 1 - float64(drift)/float64(window)
	if score < 0 {
		return 0
	}
	return score
}

func matched(strategy, key string, score float64) *model.Correlation {
	return &model.Correlation{
		Status:   model.CorrelationMatched,
		Strategy: strategy,
		TaskKey:  key,
		Score:    score,
	}
}
