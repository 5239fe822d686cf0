package backtest

// Stage identifies a coarse run milestone.
type Stage string

// Run stages, in rough execution order.
const (
	StageInitialize        Stage = "initialize"
	StageSearchingFirstDay Stage = "searching-first-day"
	StageDownloadingBefore Stage = "downloading-before"
	StageDownloadingAfter  Stage = "downloading-after"
	StageWorkingOnChunk    Stage = "working-on-chunk"
	StageCompleted         Stage = "completed"
)

// Event is one progress milestone. Consumers must treat silence between
// events as normal, not a hang signal.
type Event struct {
	Stage    Stage
	Message  string
	Progress float64 // 0-100
}

// ProgressFunc receives progress events. A nil func disables reporting.
type ProgressFunc func(Event)
