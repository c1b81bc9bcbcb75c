package container

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"popconn/adapters/battery"
	"popconn/adapters/reshape"
	"popconn/adapters/rng"
	"popconn/adapters/stats/engine"
	"popconn/adapters/stats/metrics"
	"popconn/app"
	"popconn/internal"
	"popconn/internal/api"
	"popconn/internal/config"
	"popconn/internal/instrument"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	RunMetrics *instrument.RunMetrics

	// Core adapters
	Reshaper *reshape.Reshaper
	Engine   *engine.CovarianceEngine
	Tester   *battery.PermutationTester

	// Services
	ConnectomeService *app.ConnectomeService
}

// New wires every component from cfg
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	logger := cfg.Logger()
	c := &Container{
		Config:     cfg,
		Logger:     logger,
		RunMetrics: instrument.NewRunMetrics(),
	}

	c.Reshaper = reshape.NewReshaper(logger)
	c.Engine = engine.NewCovarianceEngine(logger)
	c.Tester = battery.NewPermutationTester(c.Engine, rng.NewCounterRNG(), logger)
	c.Tester.SetWorkers(cfg.Permutation.EffectiveWorkers())
	c.Tester.SetObserver(c.RunMetrics)

	c.ConnectomeService = app.NewConnectomeService(c.Reshaper, c.Engine, c.Tester, metrics.Lookup)
	c.ConnectomeService.SetPermutationLimits(cfg.Permutation.DefaultPermutations, cfg.Permutation.MaxPermutations)

	logger.Debug("container initialized: workers=%d default_permutations=%d max_permutations=%d",
		cfg.Permutation.EffectiveWorkers(), cfg.Permutation.DefaultPermutations, cfg.Permutation.MaxPermutations)
	return c, nil
}

// Router builds the HTTP engine serving the connectome service
func (c *Container) Router() *gin.Engine {
	gin.SetMode(c.Config.Server.GinMode)
	return api.NewRouter(api.NewConnectomeHandler(c.ConnectomeService, c.Logger), c.RunMetrics)
}
