package service

import (
	"context"

	"github.com/xiaot623/negarena/internal/config"
	"github.com/xiaot623/negarena/internal/engine"
	"github.com/xiaot623/negarena/internal/metrics"
	"github.com/xiaot623/negarena/internal/registry"
	"github.com/xiaot623/negarena/internal/repository"
	"github.com/xiaot623/negarena/internal/runner"
	"github.com/xiaot623/negarena/policy"
)

type Service struct {
	registry     *registry.Registry
	store        store.Store
	config       *config.Config
	policyEngine *policy.Engine
	metrics      *metrics.Metrics
}

// New wires the service and the registry whose runners report back to it.
func New(eng engine.Engine, store store.Store, cfg *config.Config, policyEngine *policy.Engine, m *metrics.Metrics) *Service {
	s := &Service{
		store:        store,
		config:       cfg,
		policyEngine: policyEngine,
		metrics:      m,
	}
	s.registry = registry.New(eng, runner.Options{
		MaxDuration: cfg.SessionMaxDuration,
		Parallelism: cfg.TournamentParallelism,
		Strict:      cfg.StrictInvariants,
		OnAppend:    s.onAppend,
		OnFinish:    s.onFinish,
	})
	return s
}

// Registry returns the live session registry.
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// Shutdown cancels all running sessions and waits for their runners.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.registry.Shutdown(ctx)
}
