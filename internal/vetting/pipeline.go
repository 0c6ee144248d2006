package vetting

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/grantbridge/vetting-cli/internal/config"
	"github.com/grantbridge/vetting-cli/internal/model"
	"github.com/grantbridge/vetting-cli/internal/store"
)

// ProfileSource builds the organization snapshot and filing history the
// engines consume.
type ProfileSource interface {
	Build(ctx context.Context, ein string) (*model.OrganizationProfile, []model.FilingSummary, error)
}

// VetOptions modifies a single vetting call.
type VetOptions struct {
	// ForceRefresh bypasses the cache and always re-evaluates.
	ForceRefresh bool
}

// VetOutcome is what the pipeline hands back to callers.
type VetOutcome struct {
	Result     model.VettingResult `json:"result"`
	Cached     bool                `json:"cached"`
	CachedNote string              `json:"cached_note,omitempty"`
}

// Pipeline orchestrates one vetting run: cache check, evaluation
// (gates, then scoring and red flags), and best-effort persistence.
type Pipeline struct {
	profiles ProfileSource
	cache    store.ResultCache
	gates    *GateEngine
	scoring  *ScoringEngine
	flags    *RedFlagDetector
	cacheCfg config.CacheConfig
	now      func() time.Time
}

// NewPipeline wires the pipeline. cache may be nil, which disables both
// the cache check and persistence.
func NewPipeline(profiles ProfileSource, cache store.ResultCache, gates *GateEngine, scoring *ScoringEngine, flags *RedFlagDetector, cacheCfg config.CacheConfig) *Pipeline {
	return &Pipeline{
		profiles: profiles,
		cache:    cache,
		gates:    gates,
		scoring:  scoring,
		flags:    flags,
		cacheCfg: cacheCfg,
		now:      time.Now,
	}
}

// Vet runs the full pipeline for one EIN. A cached result is returned
// as-is when present and fresh; otherwise the engines run and the new
// result is persisted. Persistence failures never fail the call.
func (p *Pipeline) Vet(ctx context.Context, rawEIN string, opts VetOptions) (*VetOutcome, error) {
	ein, err := NormalizeEIN(rawEIN)
	if err != nil {
		return nil, err
	}

	if !opts.ForceRefresh && p.cache != nil {
		if outcome := p.checkCache(ctx, ein); outcome != nil {
			return outcome, nil
		}
	}

	profile, filings, err := p.profiles.Build(ctx, ein)
	if err != nil {
		return nil, err
	}

	result, err := p.evaluate(ctx, profile, filings)
	if err != nil {
		return nil, err
	}

	p.persist(ctx, result)
	return &VetOutcome{Result: *result}, nil
}

// checkCache returns a usable cached outcome, or nil when the pipeline
// should evaluate. Cache read failures degrade to a fresh evaluation.
func (p *Pipeline) checkCache(ctx context.Context, ein string) *VetOutcome {
	cached, err := p.cache.GetLatest(ctx, ein)
	if err != nil {
		zap.L().Warn("pipeline: cache read failed, evaluating fresh",
			zap.String("ein", ein),
			zap.Error(err),
		)
		return nil
	}
	if cached == nil {
		return nil
	}

	age := p.now().Sub(cached.VettedAt)
	if p.cacheCfg.MaxAgeDays > 0 && age > time.Duration(p.cacheCfg.MaxAgeDays)*24*time.Hour {
		zap.L().Info("pipeline: cached result stale, re-evaluating",
			zap.String("ein", ein),
			zap.Time("vetted_at", cached.VettedAt),
		)
		return nil
	}

	return &VetOutcome{
		Result: cached.Result,
		Cached: true,
		CachedNote: fmt.Sprintf("vetted %s by %s",
			cached.VettedAt.Format("2006-01-02"), cached.Attribution),
	}
}

// evaluate runs the decision core. Scoring only runs when every gate
// passed; red flags always run.
func (p *Pipeline) evaluate(ctx context.Context, profile *model.OrganizationProfile, filings []model.FilingSummary) (*model.VettingResult, error) {
	gates, err := p.gates.Evaluate(ctx, profile)
	if err != nil {
		return nil, err
	}

	result := &model.VettingResult{
		EIN:         profile.EIN,
		Name:        profile.Name,
		Gates:       *gates,
		GateBlocked: !gates.AllPassed,
	}

	if gates.AllPassed {
		score, checks := p.scoring.Evaluate(profile, p.now())
		result.Score = &score
		result.Checks = checks
		result.Recommendation = p.scoring.Recommend(score)
	} else {
		result.Recommendation = model.RecommendReject
	}

	result.RedFlags = p.flags.Detect(ctx, profile, filings, p.now())
	result.Summary = buildSummary(result)
	return result, nil
}

// persist writes the result to the cache. The decision already
// happened, so failures are logged and swallowed, and a caller that
// abandoned the request does not abort the write.
func (p *Pipeline) persist(ctx context.Context, result *model.VettingResult) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Save(context.WithoutCancel(ctx), *result, p.cacheCfg.Attribution); err != nil {
		zap.L().Error("pipeline: cache write failed",
			zap.String("ein", result.EIN),
			zap.Error(err),
		)
	}
}
