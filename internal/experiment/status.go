package experiment

import (
	"context"
	"fmt"

	"github.com/vk/scalegrid/internal/engine"
	"github.com/vk/scalegrid/internal/fsutil"
	"github.com/vk/scalegrid/internal/scale"
)

// State is the lifecycle state of one scale. It is derived from the
// artifact files on disk and the runs made by this process.
type State int

const (
	Created State = iota
	Configured
	ParamWritten
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Configured:
		return "configured"
	case ParamWritten:
		return "param-written"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ScaleStatus is a point-in-time view of one scale.
type ScaleStatus struct {
	Scale         scale.Scale     `json:"scale"`
	State         State           `json:"-"`
	StateName     string          `json:"state"`
	ParamFile     string          `json:"param_file"`
	OutputFile    string          `json:"output_file"`
	ParamPresent  bool            `json:"param_present"`
	OutputPresent bool            `json:"output_present"`
	LastOutcome   *engine.Outcome `json:"-"`
	Err           error           `json:"-"`
}

// Status derives the state of every scale. It only reads.
func (e *Experiment) Status(ctx context.Context) []ScaleStatus {
	e.mu.RLock()
	configured := e.configured
	e.mu.RUnlock()

	out := make([]ScaleStatus, 0, len(e.scales))
	for _, s := range e.scales {
		paths := e.paths[s]
		st := ScaleStatus{Scale: s, ParamFile: paths.Param, OutputFile: paths.Out}

		var err error
		if st.ParamPresent, err = fsutil.Exists(paths.Param); err != nil {
			st.Err = err
		}
		if st.OutputPresent, err = fsutil.Exists(paths.Out); err != nil {
			st.Err = err
		}

		e.runMu.Lock()
		running := e.running[s]
		last, ran := e.lastRun[s]
		e.runMu.Unlock()
		if ran {
			o := last.outcome
			st.LastOutcome = &o
		}

		switch {
		case running:
			st.State = Running
		case st.Err != nil:
			st.State = Failed
		case st.OutputPresent:
			st.State = Completed
		case ran && (last.err != nil || last.outcome.Failed()):
			st.State = Failed
			if last.err != nil {
				st.Err = last.err
			} else {
				st.Err = &EngineFailure{Scale: s, Outcome: last.outcome}
			}
		case st.ParamPresent:
			st.State = ParamWritten
		case configured:
			st.State = Configured
		default:
			st.State = Created
		}
		st.StateName = st.State.String()
		out = append(out, st)
	}
	return out
}
