package supervisor

import (
	"context"
	"time"

	"ai-notetaking-pipeline/internal/constant"
	"ai-notetaking-pipeline/internal/pkg/logger"

	"github.com/thejerf/suture/v4"
)

type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  30 * time.Second,
	}
}

// Tree is the worker's supervisor hierarchy:
//   - workers: the job queue consumers
//   - maintenance: the ledger janitor
//   - api: the ops HTTP server
//
// A crashing layer is restarted without touching the others.
type Tree struct {
	root        *suture.Supervisor
	workers     *suture.Supervisor
	maintenance *suture.Supervisor
	api         *suture.Supervisor
}

func NewTree(cfg TreeConfig, log logger.ILogger) *Tree {
	def := DefaultTreeConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	rootSpec := suture.Spec{
		EventHook:        eventHook(log),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}

	t := &Tree{
		root:        suture.New("pipeline", rootSpec),
		workers:     suture.New("workers", childSpec),
		maintenance: suture.New("maintenance", childSpec),
		api:         suture.New("api", childSpec),
	}
	t.root.Add(t.workers)
	t.root.Add(t.maintenance)
	t.root.Add(t.api)
	return t
}

func (t *Tree) AddWorker(svc suture.Service) suture.ServiceToken {
	return t.workers.Add(svc)
}

func (t *Tree) AddMaintenance(svc suture.Service) suture.ServiceToken {
	return t.maintenance.Add(svc)
}

func (t *Tree) AddAPI(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve blocks until ctx is cancelled and every service has stopped.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}

// eventHook routes suture's lifecycle events into the structured logger.
func eventHook(log logger.ILogger) suture.EventHook {
	return func(e suture.Event) {
		details := e.Map()
		switch e.Type() {
		case suture.EventTypeServicePanic, suture.EventTypeServiceTerminate:
			log.Error(constant.ModuleSupervisor, e.String(), details)
		case suture.EventTypeBackoff, suture.EventTypeStopTimeout:
			log.Warn(constant.ModuleSupervisor, e.String(), details)
		default:
			log.Info(constant.ModuleSupervisor, e.String(), details)
		}
	}
}
