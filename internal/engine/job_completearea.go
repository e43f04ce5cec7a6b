package engine

import "swarmforge.ai/internal/tasks"

// CompleteAreaJobInput is the immutable input carried on Job.InputData for
// KindCompleteAreaJob (§3 Job, §4.9).
type CompleteAreaJobInput struct {
	Surface         SurfaceID
	Force           ForceID
	AreasToComplete []tasks.Rect
}

// RegisterCompleteAreaJob installs the CompleteArea job behavior into jm.
// Called once at engine construction, alongside every other job kind the
// host wires in (§9: never persist function pointers across restarts —
// registration happens fresh every process start).
func RegisterCompleteAreaJob(jm *JobManager) {
	jm.RegisterJobKind(KindCompleteAreaJob, completeAreaJobBehavior{})
}

type completeAreaJobBehavior struct{}

func (completeAreaJobBehavior) PrimaryTaskKind() tasks.Kind { return tasks.KindCompleteArea }

func (completeAreaJobBehavior) Activate(tm *TaskManager, job *Job) *Task {
	in := job.InputData.(CompleteAreaJobInput)
	t := tm.NewPrimaryTask(job, tasks.KindCompleteArea)
	t.TaskData = &CompleteAreaData{
		Surface:         in.Surface,
		Force:           in.Force,
		AreasToComplete: in.AreasToComplete,
	}
	return t
}
