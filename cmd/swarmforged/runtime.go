package main

import (
	"fmt"
	"sync"
	"time"

	"swarmforge.ai/internal/engine"
	"swarmforge.ai/internal/hostworld"
	"swarmforge.ai/internal/tasks"
	"swarmforge.ai/internal/transport/observerws"
)

// runtime owns the single goroutine that touches the engine (§5:
// "single-threaded, cooperative scheduling"). HTTP handlers never call the
// engine directly; they enqueue a func() onto cmds and the tick loop runs
// it between ticks, an inbox-channel model without a full join/leave/attach
// queue (this engine has no per-connection session to manage).
type runtime struct {
	world   *hostworld.World
	am      *engine.AgentManager
	jm      *engine.JobManager
	tm      *engine.TaskManager
	surface engine.SurfaceID

	cmds chan func()
	stop chan struct{}
	done chan struct{}

	mu           sync.Mutex
	agentStates  []observerws.AgentStateFrame
}

func newRuntime(w *hostworld.World, am *engine.AgentManager, jm *engine.JobManager, tm *engine.TaskManager, surface engine.SurfaceID) *runtime {
	return &runtime{
		world:   w,
		am:      am,
		jm:      jm,
		tm:      tm,
		surface: surface,
		cmds:    make(chan func(), 256),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// run drives the tick loop at tickRateHz until Stop is called.
func (rt *runtime) run(tickRateHz int) {
	defer close(rt.done)
	if tickRateHz <= 0 {
		tickRateHz = 20
	}
	ticker := time.NewTicker(time.Second / time.Duration(tickRateHz))
	defer ticker.Stop()

	var tick uint64
	for {
		select {
		case <-rt.stop:
			return
		case fn := <-rt.cmds:
			fn()
		case <-ticker.C:
			tick++
			rt.am.Tick(tick)
			rt.world.Advance()
			rt.refreshAgentStates()
		}
	}
}

func (rt *runtime) Stop() {
	close(rt.stop)
	<-rt.done
}

// do runs fn on the tick-loop goroutine and waits for it to finish. Every
// engine mutation from an HTTP handler goes through this.
func (rt *runtime) do(fn func()) {
	done := make(chan struct{})
	rt.cmds <- func() {
		fn()
		close(done)
	}
	<-done
}

func (rt *runtime) refreshAgentStates() {
	agents := rt.am.Agents()
	states := make([]observerws.AgentStateFrame, 0, len(agents))
	for _, a := range agents {
		text, severity := a.LastStateText()
		states = append(states, observerws.AgentStateFrame{
			AgentID:  uint64(a.ID),
			Text:     text,
			Severity: int(severity),
		})
	}
	rt.mu.Lock()
	rt.agentStates = states
	rt.mu.Unlock()
}

// agentStateFrames implements observerws.AgentStateSource.
func (rt *runtime) agentStateFrames() []observerws.AgentStateFrame {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([]observerws.AgentStateFrame(nil), rt.agentStates...)
}

// SpawnAgent creates a hostworld entity and an engine agent bound to it,
// naming the entity "robot" the way enginetest.Harness does for tests.
func (rt *runtime) SpawnAgent(force engine.ForceID, pos tasks.Vec2i, master string) *engine.Agent {
	var a *engine.Agent
	rt.do(func() {
		e := rt.world.SpawnEntity("robot", "agent", pos, force)
		a = rt.am.CreateAgent(e, force, master)
	})
	return a
}

// CreateJob creates a COMPLETE_AREA_JOB and assigns it to agentID.
func (rt *runtime) CreateJob(agentID engine.AgentID, force engine.ForceID, creator string, areas []tasks.Rect) (*engine.Job, error) {
	var job *engine.Job
	var rerr error
	rt.do(func() {
		a, ok := rt.am.Agent(agentID)
		if !ok {
			rerr = fmt.Errorf("no such agent: %d", agentID)
			return
		}
		job = rt.jm.Create(engine.KindCompleteAreaJob, creator, engine.CompleteAreaJobInput{
			Surface:         rt.surface,
			Force:           force,
			AreasToComplete: areas,
		})
		a.Jobs = append(a.Jobs, job)
	})
	return job, rerr
}
