package sources

import (
	"fmt"
	"sort"

	"github.com/wonny/finfetch/internal/contracts"
	"github.com/wonny/finfetch/pkg/config"
	"github.com/wonny/finfetch/pkg/logger"
	"github.com/wonny/finfetch/pkg/redis"
)

// Registry builds source adapters from configuration
// ⭐ SSOT: 소스 이름 → 어댑터 생성은 여기서만
type Registry struct {
	cfg     *config.Config
	cache   *redis.Cache
	limiter *redis.RateLimiter
	custom  map[string]contracts.Source
	logger  *logger.Logger
}

// NewRegistry creates a registry over the loaded configuration
func NewRegistry(cfg *config.Config, log *logger.Logger) *Registry {
	return &Registry{
		cfg:    cfg,
		custom: make(map[string]contracts.Source),
		logger: log,
	}
}

// WithCache wraps every built source in a CachedSource
func (r *Registry) WithCache(cache *redis.Cache) *Registry {
	r.cache = cache
	return r
}

// WithRateLimiter shares per-source request budgets across processes
func (r *Registry) WithRateLimiter(limiter *redis.RateLimiter) *Registry {
	r.limiter = limiter
	return r
}

// Register adds or replaces a source by name
func (r *Registry) Register(src contracts.Source) {
	r.custom[src.Name()] = src
}

// Names returns every known source name
func (r *Registry) Names() []string {
	names := []string{NameYahoo, NamePolygon, NameAlphaVantage, NameFRED, NameHTML, NameMock}
	for name := range r.custom {
		if !contains(names, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Get returns the source for name (cache-wrapped when a cache is set)
func (r *Registry) Get(name string) (contracts.Source, error) {
	src, err := r.build(name)
	if err != nil {
		return nil, err
	}
	if r.cache != nil && r.cache.Enabled() && name != NameMock {
		return NewCachedSource(src, r.cache, r.logger), nil
	}
	return src, nil
}

// Select returns the named sources, or every enabled non-mock source when names is empty
// 명시된 소스가 비활성이면 ErrSourceDisabled
func (r *Registry) Select(names []string) ([]contracts.Source, error) {
	explicit := len(names) > 0
	if !explicit {
		for _, name := range r.Names() {
			if name != NameMock {
				names = append(names, name)
			}
		}
	}

	selected := make([]contracts.Source, 0, len(names))
	for _, name := range names {
		src, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		if !src.Enabled() {
			if explicit {
				return nil, fmt.Errorf("%s: %w", name, contracts.ErrSourceDisabled)
			}
			continue
		}
		if err := src.Validate(); err != nil {
			if explicit {
				return nil, fmt.Errorf("source %s: %w", name, err)
			}
			r.logger.WithError(err).WithField("source", name).Warn("Skipping misconfigured source")
			continue
		}
		selected = append(selected, src)
	}

	if len(selected) == 0 {
		return nil, fmt.Errorf("no enabled sources: %w", contracts.ErrSourceDisabled)
	}
	return selected, nil
}

// SourceConfig returns the validated-ready config for a built-in source
func (r *Registry) SourceConfig(name string) (contracts.SourceConfig, bool) {
	var s config.SourceSettings
	switch name {
	case NameYahoo:
		s = r.cfg.Sources.Yahoo
	case NamePolygon:
		s = r.cfg.Sources.Polygon
	case NameAlphaVantage:
		s = r.cfg.Sources.AlphaVantage
	case NameFRED:
		s = r.cfg.Sources.FRED
	case NameHTML:
		s = r.cfg.Sources.HTML
	default:
		return contracts.SourceConfig{}, false
	}
	return contracts.SourceConfig{
		Name:      name,
		Enabled:   s.Enabled,
		APIKey:    s.APIKey,
		RateLimit: s.RateLimit,
		Timeout:   s.Timeout,
		BaseURL:   s.BaseURL,
	}, true
}

func (r *Registry) build(name string) (contracts.Source, error) {
	if src, ok := r.custom[name]; ok {
		return src, nil
	}
	if name == NameMock {
		return NewMockSource(r.logger), nil
	}

	cfg, ok := r.SourceConfig(name)
	if !ok {
		return nil, contracts.ValidationError{Field: "source", Message: fmt.Sprintf("unknown source %q", name)}
	}

	switch name {
	case NameYahoo:
		return r.withLimiter(NewYahooSource(cfg, r.logger), cfg), nil
	case NamePolygon:
		return NewPolygonSource(cfg, r.logger), nil
	case NameAlphaVantage:
		return r.withLimiter(NewAlphaVantageSource(cfg, r.logger), cfg), nil
	case NameFRED:
		return r.withLimiter(NewFREDSource(cfg, r.logger), cfg), nil
	default:
		return r.withLimiter(NewHTMLTableSource(cfg, r.logger), cfg), nil
	}
}

// httpSource is an adapter backed by pkg/httputil
type httpSource interface {
	contracts.Source
	setRateLimiter(limiter *redis.RateLimiter, cfg redis.RateLimitConfig)
}

// withLimiter attaches the shared redis limiter when configured
func (r *Registry) withLimiter(src httpSource, cfg contracts.SourceConfig) contracts.Source {
	if r.limiter != nil && cfg.RateLimit > 0 {
		src.setRateLimiter(r.limiter, redis.PerMinute("source:"+cfg.Name, cfg.RateLimit))
	}
	return src
}

func (s *YahooSource) setRateLimiter(l *redis.RateLimiter, cfg redis.RateLimitConfig) {
	s.httpClient.WithRateLimiter(l, cfg)
}

func (s *AlphaVantageSource) setRateLimiter(l *redis.RateLimiter, cfg redis.RateLimitConfig) {
	s.httpClient.WithRateLimiter(l, cfg)
}

func (s *FREDSource) setRateLimiter(l *redis.RateLimiter, cfg redis.RateLimitConfig) {
	s.httpClient.WithRateLimiter(l, cfg)
}

func (s *HTMLTableSource) setRateLimiter(l *redis.RateLimiter, cfg redis.RateLimitConfig) {
	s.httpClient.WithRateLimiter(l, cfg)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
