package cache

import (
	"fmt"

	"github.com/jerkyranks/jerkyranks-backend/pkg/config"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
	"github.com/jerkyranks/jerkyranks-backend/pkg/metrics"
	redispkg "github.com/jerkyranks/jerkyranks-backend/pkg/redis"
)

// Named cache namespaces. Every state-mutating path declares which of these
// it invalidates; the registry is the single typed collection so no caller
// reaches for a global.
const (
	NameDefinitions         = "coin_definitions"
	NameLeaderboard         = "leaderboard"
	NameRankingStats        = "ranking_stats"
	NameProductMetadata     = "product_metadata"
	NameHomeStats           = "home_stats"
	NameLeaderboardPosition = "leaderboard_position"
	NameCatalog             = "catalog"
)

// SingletonKey addresses caches that hold one value per namespace.
const SingletonKey = "all"

// Registry holds the named caches with their distinct invalidation policies.
type Registry struct {
	// Coin definitions, 1h TTL, invalidated on any admin mutation.
	Definitions *Cache
	// Ranked positions, 5m TTL, granular invalidation on ranking change.
	Leaderboard *Cache
	// Per-product ranking statistics, event-invalidated only.
	RankingStats *Cache
	// Product taxonomy snapshots, 30m TTL plus event invalidation.
	ProductMetadata *Cache
	// Per-user progress and home stats, 5m TTL.
	HomeStats *Cache
	// Per (user, period) leaderboard position, 5m TTL.
	LeaderboardPosition *Cache
	// Raw catalog pages, 30m TTL with stale-while-revalidate.
	Catalog *Cache
}

// StoreFactory builds the backing store for one cache namespace.
type StoreFactory func(namespace string) (Store, error)

// MemoryFactory backs every namespace with its own in-process store.
func MemoryFactory() StoreFactory {
	return func(string) (Store, error) {
		return NewMemoryStore(), nil
	}
}

// RedisFactory backs every namespace with the shared Redis client.
func RedisFactory(client *redispkg.Client) StoreFactory {
	return func(namespace string) (Store, error) {
		return NewRedisStore(client, namespace)
	}
}

// FactoryFor picks the store factory for the configured backend.
func FactoryFor(cfg config.CacheConfig, client *redispkg.Client) (StoreFactory, error) {
	switch cfg.Backend {
	case "", "memory":
		return MemoryFactory(), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("cache backend redis requires a redis client")
		}
		return RedisFactory(client), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// NewRegistry wires the named caches from configuration.
func NewRegistry(cfg config.CacheConfig, factory StoreFactory, logg *logger.Logger, m *metrics.CacheMetrics) (*Registry, error) {
	build := func(opts Options) (*Cache, error) {
		store, err := factory(opts.Name)
		if err != nil {
			return nil, fmt.Errorf("store for cache %s: %w", opts.Name, err)
		}
		opts.Store = store
		opts.Logger = logg
		opts.Metrics = m
		opts.WaitTimeout = cfg.RefreshWaitTimeout
		return New(opts)
	}

	definitions, err := build(Options{Name: NameDefinitions, TTL: cfg.DefinitionsTTL})
	if err != nil {
		return nil, err
	}
	leaderboard, err := build(Options{Name: NameLeaderboard, TTL: cfg.LeaderboardTTL})
	if err != nil {
		return nil, err
	}
	rankingStats, err := build(Options{Name: NameRankingStats})
	if err != nil {
		return nil, err
	}
	metadata, err := build(Options{Name: NameProductMetadata, TTL: cfg.MetadataTTL})
	if err != nil {
		return nil, err
	}
	homeStats, err := build(Options{Name: NameHomeStats, TTL: cfg.HomeStatsTTL})
	if err != nil {
		return nil, err
	}
	position, err := build(Options{Name: NameLeaderboardPosition, TTL: cfg.LeaderboardTTL})
	if err != nil {
		return nil, err
	}
	catalog, err := build(Options{Name: NameCatalog, TTL: cfg.MetadataTTL, StaleWhileRevalidate: true})
	if err != nil {
		return nil, err
	}

	return &Registry{
		Definitions:         definitions,
		Leaderboard:         leaderboard,
		RankingStats:        rankingStats,
		ProductMetadata:     metadata,
		HomeStats:           homeStats,
		LeaderboardPosition: position,
		Catalog:             catalog,
	}, nil
}

// Key builders. Keeping the shapes in one place doubles as the key schedule
// for stores that enumerate rather than scan.

// LeaderboardTopKey addresses the top-N slice for a period.
func LeaderboardTopKey(period string, n int) string {
	return fmt.Sprintf("period:%s:top:%d", period, n)
}

// PositionKey addresses a user's cached rank for a period.
func PositionKey(userID, period string) string {
	return fmt.Sprintf("%s:%s", userID, period)
}

// HomeStatsUserKey addresses one user's home stats.
func HomeStatsUserKey(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}

// UserPattern matches every key scoped to the user in any period.
func UserPattern(userID string) string {
	return fmt.Sprintf("*%s*", userID)
}
