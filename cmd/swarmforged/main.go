// Command swarmforged is the job/task execution engine's server process: it
// owns one hostworld.World, wires it to the engine (Agent Manager, Job
// Manager, Task Manager), and exposes job creation, agent spawning, and the
// observer/debug websocket stream over HTTP.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"swarmforge.ai/internal/engine"
	"swarmforge.ai/internal/hostworld"
	"swarmforge.ai/internal/persistence/auditdb"
	"swarmforge.ai/internal/protocol"
	"swarmforge.ai/internal/tasks"
	"swarmforge.ai/internal/transport/observerws"
	"swarmforge.ai/internal/tuning"
)

const defaultSurface engine.SurfaceID = "default"

func main() {
	var (
		addr         = flag.String("addr", ":8080", "http listen address")
		tuningPath   = flag.String("tuning", "", "path to tuning.yaml (default: built-in defaults)")
		schemaPath   = flag.String("job_schema", "schemas/job_create.schema.json", "path to the job-create JSON schema")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		auditPath    = flag.String("audit_db", "", "path to sqlite audit db (default: <data>/audit.db)")
		disableAudit = flag.Bool("disable_audit", false, "disable the sqlite audit trail")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[engine] ", log.LstdFlags|log.Lmicroseconds)

	tune := tuning.Default()
	if tp := strings.TrimSpace(*tuningPath); tp != "" {
		t, err := tuning.Load(tp)
		if err != nil {
			logger.Fatalf("load tuning: %v", err)
		}
		tune = t
	} else {
		logger.Printf("tuning: using built-in defaults (no -tuning given)")
	}
	settings := tune.Settings()

	schema, err := protocol.CompileJobCreateSchema(*schemaPath)
	if err != nil {
		logger.Fatalf("compile job schema: %v", err)
	}

	var audit *auditdb.Store
	if !*disableAudit {
		ap := strings.TrimSpace(*auditPath)
		if ap == "" {
			ap = filepath.Join(*dataDir, "audit.db")
		}
		a, err := auditdb.Open(ap)
		if err != nil {
			logger.Fatalf("open audit db: %v", err)
		}
		audit = a
		defer audit.Close()
		logger.Printf("audit trail: %s", ap)
	} else {
		logger.Printf("audit trail disabled (-disable_audit)")
	}

	w := hostworld.New(defaultSurface)
	paths := engine.NewPathRequestRegistry()
	protos := engine.NewProtoAttrCache(w)
	tm := engine.NewTaskManager(w, paths, protos, &settings)
	jm := engine.NewJobManager(tm)
	engine.RegisterCompleteAreaJob(jm)
	am := engine.NewAgentManager(w, jm)
	w.SetPathfinderCallback(tm.DeliverPathResult)

	if audit != nil {
		jm.OnJobCompleted = func(job *engine.Job, tick uint64) {
			audit.WriteJobCompleted(auditdb.JobCompletion{
				JobID:         job.ID,
				Kind:          string(job.Kind),
				Creator:       job.Creator,
				CompletedTick: tick,
			})
		}
		tm.OnEntityAudited = func(jobID, action, entityName string, chunk tasks.ChunkPos, tick uint64) {
			audit.WriteEntityAudit(auditdb.EntityAudit{
				JobID:      jobID,
				Action:     action,
				EntityName: entityName,
				ChunkX:     chunk.CX,
				ChunkY:     chunk.CY,
				Tick:       tick,
			})
		}
	}

	rt := newRuntime(w, am, jm, tm, defaultSurface)
	go rt.run(tune.TickRateHz)

	obsSrv := observerws.NewServer(w, rt.agentStateFrames, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		tick := w.CurrentTick()
		agents := len(rt.agentStateFrames())
		fmt.Fprintf(rw, "# HELP swarmforge_tick Current engine tick.\n")
		fmt.Fprintf(rw, "# TYPE swarmforge_tick gauge\n")
		fmt.Fprintf(rw, "swarmforge_tick %d\n", tick)
		fmt.Fprintf(rw, "# HELP swarmforge_agents Current number of agents.\n")
		fmt.Fprintf(rw, "# TYPE swarmforge_agents gauge\n")
		fmt.Fprintf(rw, "swarmforge_agents %d\n", agents)
	})
	mux.HandleFunc("/v1/agents", handleSpawnAgent(rt, logger))
	mux.HandleFunc("/v1/jobs", handleCreateJob(rt, schema, logger))
	mux.HandleFunc("/observer/bootstrap", obsSrv.BootstrapHandler())
	mux.HandleFunc("/observer/ws", obsSrv.WSHandler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	rt.Stop()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

type spawnAgentRequest struct {
	Force  string `json:"force"`
	Master string `json:"master"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

type spawnAgentResponse struct {
	AgentID uint64 `json:"agent_id"`
}

func handleSpawnAgent(rt *runtime, logger *log.Logger) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req spawnAgentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(rw, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
			return
		}
		if req.Force == "" {
			http.Error(rw, "force is required", http.StatusBadRequest)
			return
		}
		a := rt.SpawnAgent(engine.ForceID(req.Force), tasks.Vec2i{X: req.X, Y: req.Y}, req.Master)
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(spawnAgentResponse{AgentID: uint64(a.ID)})
	}
}

type createJobResponse struct {
	JobID string `json:"job_id"`
}

func handleCreateJob(rt *runtime, schema *jsonschema.Schema, logger *log.Logger) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		agentIDParam := r.URL.Query().Get("agent_id")
		var agentID uint64
		if _, err := fmt.Sscanf(agentIDParam, "%d", &agentID); err != nil {
			http.Error(rw, "agent_id query parameter is required", http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(rw, fmt.Sprintf("read body: %v", err), http.StatusBadRequest)
			return
		}

		creq, err := protocol.DecodeCreateJobRequest(schema, body)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}

		job, err := rt.CreateJob(engine.AgentID(agentID), engine.ForceID(creq.Force), creq.Creator, creq.Rects())
		if err != nil {
			http.Error(rw, err.Error(), http.StatusNotFound)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(createJobResponse{JobID: job.ID})
	}
}
