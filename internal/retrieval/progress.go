package retrieval

import "log"

// Stages of one retrieval round, in order
const (
	StageSearching  = "searching"
	StageFetching   = "fetching"
	StageExtracting = "extracting"
	StageReflecting = "reflecting"
	StageContinuing = "continuing"
	StageDone       = "done"
)

// Progress is one best-effort notification about a stage transition
type Progress struct {
	RunID   string `json:"run_id"`
	Round   int    `json:"round"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// ProgressSink receives progress events. Publish errors are logged and
// never abort retrieval.
type ProgressSink interface {
	Publish(p Progress) error
}

func (c *Controller) emit(sink ProgressSink, runID string, round int, stage, message string) {
	if sink == nil {
		return
	}
	err := sink.Publish(Progress{RunID: runID, Round: round, Stage: stage, Message: message})
	if err != nil {
		log.Printf("[Retrieval] Progress sink failed (stage=%s): %v", stage, err)
	}
}
