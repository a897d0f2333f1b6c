package commands

import (
	"fmt"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/wonny/finfetch/internal/options"
	"github.com/wonny/finfetch/internal/pipeline"
	"github.com/wonny/finfetch/internal/selection"
	"github.com/wonny/finfetch/internal/sources"
	"github.com/wonny/finfetch/pkg/config"
	"github.com/wonny/finfetch/pkg/logger"
	"github.com/wonny/finfetch/pkg/redis"
)

// cachePrefix redis 키 접두사 (가격 캐시, 레이트 리미터, 랭킹 저장소 공용)
const cachePrefix = "finfetch"

// app bundles the dependencies every command needs
type app struct {
	cfg          *config.Config
	opts         *options.Options
	optsHash     string
	logger       *logger.Logger
	redis        *redis.Client
	registry     *sources.Registry
	repo         *selection.Repository
	orchestrator *pipeline.Orchestrator
}

// newApp loads env config and options, then wires redis, sources and the pipeline
// redis 연결 실패 시 캐시 없이 계속 진행
func newApp() (*app, error) {
	// 1. Load config
	cfg, err := config.LoadFrom(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if rootCmd.PersistentFlags().Changed("debug-level") {
		cfg.LogLevel = logger.LevelForDebug(debugLevel)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Load pipeline options
	opts := options.Default()
	if optionsFile != "" {
		if opts, _, err = options.Load(optionsFile); err != nil {
			return nil, fmt.Errorf("load options: %w", err)
		}
	}
	hash, err := options.Hash(opts)
	if err != nil {
		return nil, fmt.Errorf("hash options: %w", err)
	}

	// 4. Connect to redis
	rc, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without cache")
		rc, _ = redis.New(&config.Config{})
	}
	cache := redis.NewCache(rc, cachePrefix)

	// 5. Sources, repository, orchestrator
	registry := sources.NewRegistry(cfg, log).
		WithCache(cache).
		WithRateLimiter(redis.NewRateLimiter(rc, cachePrefix))
	repo := selection.NewRepository(cache)
	orch := pipeline.New(registry, opts, log).WithRepository(repo)

	log.WithFields(map[string]interface{}{
		"env":          cfg.Env,
		"redis":        rc.Enabled(),
		"options_hash": hash,
	}).Debug("Application initialized")

	return &app{
		cfg:          cfg,
		opts:         opts,
		optsHash:     hash,
		logger:       log,
		redis:        rc,
		registry:     registry,
		repo:         repo,
		orchestrator: orch,
	}, nil
}

// Close releases the redis connection
func (a *app) Close() {
	if err := a.redis.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close redis")
	}
}

// withProgress attaches a terminal progress bar in clean/basic output modes
func (a *app) withProgress(desc string) {
	if debugLevel > 1 {
		return
	}
	a.orchestrator.WithProgress(progressBar(desc))
}

// progressBar renders pipeline steps on stderr; 총 단계 수는 첫 이벤트에서 결정
func progressBar(desc string) pipeline.ProgressFunc {
	var (
		once sync.Once
		bar  *progressbar.ProgressBar
	)
	return func(p pipeline.Progress) {
		once.Do(func() {
			bar = progressbar.NewOptions(p.Total,
				progressbar.OptionSetDescription(desc),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		})
		_ = bar.Set(p.Done)
		if p.Done == p.Total {
			_ = bar.Finish()
		}
	}
}
