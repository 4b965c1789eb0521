package progress

import (
	"sync"
	"time"

	"github.com/viant/facilitor/model/execution"
	"github.com/viant/facilitor/service/event"
)

// Report is a point-in-time view of one plan execution's node counters.
type Report struct {
	PlanExecutionID string
	PlanState       string
	StartedAt       time.Time

	Total     int
	Running   int
	Waiting   int
	Succeeded int
	Failed    int
	Skipped   int
	Aborted   int
	Expired   int
}

// Finished returns the number of observed nodes in a terminal status.
func (r Report) Finished() int {
	return r.Succeeded + r.Failed + r.Skipped + r.Aborted + r.Expired
}

type planProgress struct {
	state     string
	startedAt time.Time
	statuses  map[string]execution.Status // node execution id -> last seen status
}

// Tracker aggregates execution counters per plan execution from transition
// events.  Counters are derived from the last status seen per node execution,
// which makes the tracker tolerant of the duplicate delivery the fan-out
// allows.
type Tracker struct {
	mux      sync.RWMutex
	plans    map[string]*planProgress
	onChange func(Report)
}

// NewTracker creates an empty progress tracker.
func NewTracker() *Tracker {
	return &Tracker{plans: make(map[string]*planProgress)}
}

// OnChange registers a callback invoked with a report copy after every
// counter update.  Passing nil disables the callback; only one callback can
// be active.
func (t *Tracker) OnChange(cb func(Report)) {
	t.mux.Lock()
	t.onChange = cb
	t.mux.Unlock()
}

func (t *Tracker) Name() string { return "progress" }

func (t *Tracker) Interested(*event.Context) bool { return true }

// Notify folds one transition event into the owning plan's counters.
func (t *Tracker) Notify(anEvent *event.Event[any]) error {
	eventContext := anEvent.Context
	if eventContext.PlanExecutionID == "" {
		return nil
	}
	t.mux.Lock()
	progress, ok := t.plans[eventContext.PlanExecutionID]
	if !ok {
		progress = &planProgress{startedAt: anEvent.CreatedAt, statuses: map[string]execution.Status{}}
		t.plans[eventContext.PlanExecutionID] = progress
	}
	if eventContext.EventType == event.TypePlanStatusUpdate {
		progress.state = eventContext.PlanState
	} else if eventContext.NodeExecutionID != "" {
		progress.statuses[eventContext.NodeExecutionID] = eventContext.Status
	}
	report := t.report(eventContext.PlanExecutionID, progress)
	cb := t.onChange
	t.mux.Unlock()

	if cb != nil {
		cb(report)
	}
	return nil
}

// Snapshot returns the current counters of a plan execution; the zero report
// is returned for an unknown id.
func (t *Tracker) Snapshot(planExecutionID string) Report {
	t.mux.RLock()
	defer t.mux.RUnlock()
	progress, ok := t.plans[planExecutionID]
	if !ok {
		return Report{PlanExecutionID: planExecutionID}
	}
	return t.report(planExecutionID, progress)
}

// Forget drops the counters of a finished plan execution.
func (t *Tracker) Forget(planExecutionID string) {
	t.mux.Lock()
	delete(t.plans, planExecutionID)
	t.mux.Unlock()
}

func (t *Tracker) report(planExecutionID string, progress *planProgress) Report {
	report := Report{
		PlanExecutionID: planExecutionID,
		PlanState:       progress.state,
		StartedAt:       progress.startedAt,
		Total:           len(progress.statuses),
	}
	for _, status := range progress.statuses {
		switch {
		case status == execution.StatusRunning:
			report.Running++
		case status == execution.StatusSucceeded:
			report.Succeeded++
		case status == execution.StatusFailed:
			report.Failed++
		case status == execution.StatusSkipped:
			report.Skipped++
		case status == execution.StatusAborted:
			report.Aborted++
		case status == execution.StatusExpired:
			report.Expired++
		case status.IsWaiting():
			report.Waiting++
		}
	}
	return report
}
