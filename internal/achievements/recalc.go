package achievements

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jerkyranks/jerkyranks-backend/pkg/cache"
	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
	redisclient "github.com/jerkyranks/jerkyranks-backend/pkg/redis"
)

const (
	recalcBatchSize = 5
	// Cancellation flags outlive any plausible sweep and then self-expire.
	recalcFlagTTL = 2 * time.Hour
)

// RecalcSummary reports the outcome of one retroactive sweep.
type RecalcSummary struct {
	Total        int      `json:"total"`
	Processed    int      `json:"processed"`
	NewAwards    int      `json:"new_awards"`
	TierUpgrades int      `json:"tier_upgrades"`
	Errors       []string `json:"errors"`
	Cancelled    bool     `json:"cancelled"`
}

// Recalculator re-evaluates a single coin across the user base. The user
// subset is narrowed by the requirement type so sweeps skip users who cannot
// possibly qualify.
type Recalculator interface {
	Recalculate(ctx context.Context, code string) (*RecalcSummary, error)
	Cancel(ctx context.Context, code string) error
}

type userLister interface {
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

type recalcSubsetReader interface {
	UserIDs(ctx context.Context) ([]uuid.UUID, error)
}

type recalcEvaluator interface {
	EvaluateDefinition(ctx context.Context, userID uuid.UUID, def *models.CoinDefinition) (*Award, error)
}

// recalcFlags tracks the per-code cancellation flag checked at batch
// boundaries.
type recalcFlags interface {
	IsCancelled(ctx context.Context, code string) (bool, error)
	SetCancelled(ctx context.Context, code string) error
	Clear(ctx context.Context, code string) error
}

// RedisRecalcFlags stores cancellation flags in Redis so any instance can
// cancel a sweep running on another.
type RedisRecalcFlags struct {
	client *redisclient.Client
}

// NewRedisRecalcFlags constructs the Redis-backed flag store.
func NewRedisRecalcFlags(client *redisclient.Client) (*RedisRecalcFlags, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &RedisRecalcFlags{client: client}, nil
}

func (f *RedisRecalcFlags) key(code string) string {
	return f.client.FlagKey("recalc-cancel", code)
}

// IsCancelled reports whether a cancellation flag is set for the code.
func (f *RedisRecalcFlags) IsCancelled(ctx context.Context, code string) (bool, error) {
	_, err := f.client.Get(ctx, f.key(code))
	if err == redisclient.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetCancelled raises the cancellation flag for the code.
func (f *RedisRecalcFlags) SetCancelled(ctx context.Context, code string) error {
	return f.client.Set(ctx, f.key(code), "1", recalcFlagTTL)
}

// Clear removes the cancellation flag for the code.
func (f *RedisRecalcFlags) Clear(ctx context.Context, code string) error {
	return f.client.Del(ctx, f.key(code))
}

type recalculator struct {
	repo    *Repository
	eval    recalcEvaluator
	users   userLister
	rankers recalcSubsetReader
	actives recalcSubsetReader
	flags   recalcFlags
	caches  *cache.Registry
	logg    *logger.Logger
}

// NewRecalculator constructs the admin recalculator.
func NewRecalculator(repo *Repository, eval recalcEvaluator, users userLister, rankers, actives recalcSubsetReader, flags recalcFlags, caches *cache.Registry, logg *logger.Logger) (Recalculator, error) {
	if repo == nil {
		return nil, fmt.Errorf("achievements repository required")
	}
	if eval == nil {
		return nil, fmt.Errorf("evaluator required")
	}
	if users == nil {
		return nil, fmt.Errorf("user lister required")
	}
	if rankers == nil {
		return nil, fmt.Errorf("ranking subset reader required")
	}
	if actives == nil {
		return nil, fmt.Errorf("activity subset reader required")
	}
	if flags == nil {
		return nil, fmt.Errorf("flag store required")
	}
	if caches == nil {
		return nil, fmt.Errorf("cache registry required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &recalculator{
		repo:    repo,
		eval:    eval,
		users:   users,
		rankers: rankers,
		actives: actives,
		flags:   flags,
		caches:  caches,
		logg:    logg,
	}, nil
}

// Cancel flags a running sweep for the code to stop at its next batch
// boundary.
func (r *recalculator) Cancel(ctx context.Context, code string) error {
	return r.flags.SetCancelled(ctx, code)
}

// Recalculate re-runs one definition across the relevant users in batches.
// Per-user errors are collected and do not halt the sweep.
func (r *recalculator) Recalculate(ctx context.Context, code string) (*RecalcSummary, error) {
	def, err := r.repo.FindDefinitionByCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find coin definition")
	}
	if def == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("unknown coin %q", code))
	}

	if err := r.flags.Clear(ctx, code); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cancellation flag")
	}

	userIDs, err := r.subjectUsers(ctx, def)
	if err != nil {
		return nil, err
	}

	sctx := r.logg.WithFields(ctx, map[string]any{
		"coin_code": code,
		"total":     len(userIDs),
	})
	r.logg.Info(sctx, "coin recalculation started")

	summary := &RecalcSummary{Total: len(userIDs)}
	for start := 0; start < len(userIDs); start += recalcBatchSize {
		cancelled, err := r.flags.IsCancelled(ctx, code)
		if err != nil {
			r.logg.Error(sctx, "cancellation flag check failed, continuing sweep", err)
		}
		if cancelled {
			summary.Cancelled = true
			r.logg.Warn(sctx, "coin recalculation cancelled")
			break
		}

		end := start + recalcBatchSize
		if end > len(userIDs) {
			end = len(userIDs)
		}
		for _, userID := range userIDs[start:end] {
			award, err := r.eval.EvaluateDefinition(ctx, userID, def)
			if err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", userID, err))
				uctx := r.logg.WithUserID(sctx, userID.String())
				r.logg.Error(uctx, "coin recalculation failed for user", err)
				continue
			}
			summary.Processed++
			if award == nil {
				continue
			}
			switch award.Kind {
			case enums.AwardNew:
				summary.NewAwards++
			case enums.AwardTierUpgrade:
				summary.TierUpgrades++
			}
		}
	}

	r.invalidateCaches(ctx)

	r.logg.Info(r.logg.WithFields(sctx, map[string]any{
		"processed":     summary.Processed,
		"new_awards":    summary.NewAwards,
		"tier_upgrades": summary.TierUpgrades,
		"errors":        len(summary.Errors),
		"cancelled":     summary.Cancelled,
	}), "coin recalculation finished")
	return summary, nil
}

// subjectUsers narrows the sweep: ranking-based coins only touch users with
// rankings, activity-based coins only users with activity, everything else
// sweeps the full user base.
func (r *recalculator) subjectUsers(ctx context.Context, def *models.CoinDefinition) ([]uuid.UUID, error) {
	var (
		ids []uuid.UUID
		err error
	)
	switch {
	case def.RequirementType.IsRankingBased():
		ids, err = r.rankers.UserIDs(ctx)
	case def.RequirementType.IsActivityBased():
		ids, err = r.actives.UserIDs(ctx)
	default:
		ids, err = r.users.ListIDs(ctx)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list sweep users")
	}
	return ids, nil
}

// invalidateCaches drops every cache an award can influence. Failures are
// logged; stale entries age out on TTL.
func (r *recalculator) invalidateCaches(ctx context.Context) {
	targets := map[string]*cache.Cache{
		"definitions":          r.caches.Definitions,
		"home_stats":           r.caches.HomeStats,
		"leaderboard":          r.caches.Leaderboard,
		"ranking_stats":        r.caches.RankingStats,
		"leaderboard_position": r.caches.LeaderboardPosition,
	}
	for name, target := range targets {
		if err := target.Invalidate(ctx, "*"); err != nil {
			r.logg.Error(r.logg.WithField(ctx, "cache", name), "cache invalidation failed after recalculation", err)
		}
	}
}
