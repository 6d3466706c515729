// Package inference implements ATLAS's local/offline inference fallback
// chain: a bounded response cache, a remote (Bedrock-backed) provider,
// and a last-resort rule-based responder.
package inference

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	atlaserrors "github.com/S-Corkum/atlas-core/pkg/errors"
	"github.com/S-Corkum/atlas-core/pkg/observability"
	"github.com/S-Corkum/atlas-core/pkg/resilience"
)

// Provider is the remote tier backing this fallback chain, e.g. a
// Bedrock runtime client.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// fallbackRule maps a keyword found in the prompt to a canned response,
// matching the original's FALLBACK_RULES/RULE_RESPONSES table.
type fallbackRule struct {
	keyword  string
	response string
}

var defaultRules = []fallbackRule{
	{"status", "System operational in degraded mode."},
	{"health", "Health check unavailable; assuming degraded."},
	{"help", "Limited assistance available in offline mode."},
	{"error", "An error occurred; local fallback engaged."},
}

const cacheHashLen = 16

// LocalInference implements the cache -> remote -> rule-based chain.
type LocalInference struct {
	cache    *lru.Cache[string, string]
	provider Provider
	breaker  *resilience.CircuitBreaker
	rules    []fallbackRule
	logger   observability.Logger
	metrics  observability.MetricsClient
}

// Config configures the cache size and circuit breaker guarding the
// remote tier.
type Config struct {
	CacheSize      int
	BreakerConfig  resilience.CircuitBreakerConfig
}

// New creates a LocalInference chain. provider may be nil, in which case
// the remote tier is always skipped and only cache/rule-based tiers run.
func New(cfg Config, provider Provider, logger observability.Logger, metrics observability.MetricsClient) (*LocalInference, error) {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 512
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, atlaserrors.Wrap(err, "inference_cache_init_failed", atlaserrors.ClassPermanent)
	}

	return &LocalInference{
		cache:    cache,
		provider: provider,
		breaker:  resilience.NewCircuitBreaker("local-inference-remote", cfg.BreakerConfig, logger, metrics),
		rules:    defaultRules,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

func cacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])[:cacheHashLen]
}

// Generate returns a response for prompt, trying the cache, then the
// remote provider (gated by a circuit breaker), then the rule-based
// table, matching the original's generate() priority order. It never
// returns an error: the rule-based tier is the guaranteed last resort.
func (l *LocalInference) Generate(ctx context.Context, prompt string) (response string, tier string) {
	key := cacheKey(prompt)

	if cached, ok := l.cache.Get(key); ok {
		l.recordTier("cache")
		return cached, "cache"
	}

	if l.provider != nil {
		result, err := l.breaker.Execute(ctx, func() (interface{}, error) {
			return l.provider.Generate(ctx, prompt)
		})
		if err == nil {
			text, _ := result.(string)
			l.cache.Add(key, text)
			l.recordTier("remote")
			return text, "remote"
		}
		l.logger.Warn("remote inference tier failed, falling back", map[string]interface{}{"error": err.Error()})
	}

	resp := l.ruleBasedResponse(prompt)
	l.recordTier("rule_based")
	return resp, "rule_based"
}

func (l *LocalInference) ruleBasedResponse(prompt string) string {
	lower := strings.ToLower(prompt)
	for _, rule := range l.rules {
		if strings.Contains(lower, rule.keyword) {
			return rule.response
		}
	}
	return "Unable to process request; operating in fully offline mode."
}

func (l *LocalInference) recordTier(tier string) {
	if l.metrics != nil {
		l.metrics.IncrementCounterWithLabels("local_inference_tier", 1, map[string]string{"tier": tier})
	}
}

// IsAvailable reports whether the remote tier's circuit is currently
// closed or half-open (i.e. usable), matching the original's
// is_available() probe.
func (l *LocalInference) IsAvailable() bool {
	if l.provider == nil {
		return false
	}
	metrics := l.breaker.GetMetrics()
	state, _ := metrics["state"].(string)
	return state != "open"
}

// AddRule registers an additional keyword -> response fallback rule.
func (l *LocalInference) AddRule(keyword, response string) {
	l.rules = append(l.rules, fallbackRule{keyword: keyword, response: response})
}

// CacheLen returns the number of cached responses currently held.
func (l *LocalInference) CacheLen() int {
	return l.cache.Len()
}
