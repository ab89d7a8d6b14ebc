package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jerkyranks/jerkyranks-backend/internal/rankings"
	"github.com/jerkyranks/jerkyranks-backend/pkg/cache"
	"github.com/jerkyranks/jerkyranks-backend/pkg/catalog"
	"github.com/jerkyranks/jerkyranks-backend/pkg/config"
	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
	"github.com/jerkyranks/jerkyranks-backend/pkg/taxonomy"
)

// Service serves enriched catalog products and per-user rankable sets.
type Service interface {
	GetAll(ctx context.Context, search string) ([]EnrichedProduct, error)
	GetByIDs(ctx context.Context, ids []string) ([]EnrichedProduct, error)
	GetRankableForUser(ctx context.Context, userID uuid.UUID) (*RankableResult, error)
	RefreshCatalog(ctx context.Context) error
}

type catalogFetcher interface {
	FetchRankable(ctx context.Context) ([]catalog.Product, error)
}

type rankingStatsReader interface {
	StatsForProducts(ctx context.Context, productIDs []string) (map[string]rankings.ProductStat, error)
}

type purchaseReader interface {
	PurchasedProductIDs(ctx context.Context, userID uuid.UUID) ([]string, error)
}

type userRankReader interface {
	ListByUser(ctx context.Context, userID uuid.UUID, listID string) ([]models.Ranking, error)
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type service struct {
	repo      *Repository
	fetcher   catalogFetcher
	stats     rankingStatsReader
	purchases purchaseReader
	userRanks userRankReader
	users     userReader
	operator  config.OperatorConfig
	caches    *cache.Registry
	logg      *logger.Logger
}

// NewService constructs the products service.
func NewService(repo *Repository, fetcher catalogFetcher, stats rankingStatsReader, purchases purchaseReader, userRanks userRankReader, users userReader, operator config.OperatorConfig, caches *cache.Registry, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("catalog fetcher required")
	}
	if stats == nil {
		return nil, fmt.Errorf("ranking stats reader required")
	}
	if purchases == nil {
		return nil, fmt.Errorf("purchase reader required")
	}
	if userRanks == nil {
		return nil, fmt.Errorf("user rank reader required")
	}
	if users == nil {
		return nil, fmt.Errorf("user reader required")
	}
	if caches == nil {
		return nil, fmt.Errorf("cache registry required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		fetcher:   fetcher,
		stats:     stats,
		purchases: purchases,
		userRanks: userRanks,
		users:     users,
		operator:  operator,
		caches:    caches,
		logg:      logg,
	}, nil
}

// GetAll returns the enriched catalog, optionally filtered by a search
// phrase. Every word of the phrase must match the title, tags, or taxonomy.
func (s *service) GetAll(ctx context.Context, search string) ([]EnrichedProduct, error) {
	enriched, err := s.enrichedCatalog(ctx)
	if err != nil {
		return nil, err
	}

	words := strings.Fields(strings.ToLower(search))
	if len(words) == 0 {
		return enriched, nil
	}

	filtered := make([]EnrichedProduct, 0, len(enriched))
	for _, p := range enriched {
		if matchesAllWords(p, words) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// GetByIDs returns enriched products for the requested ids, preserving
// request order and skipping unknown ids.
func (s *service) GetByIDs(ctx context.Context, ids []string) ([]EnrichedProduct, error) {
	enriched, err := s.enrichedCatalog(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]EnrichedProduct, len(enriched))
	for _, p := range enriched {
		byID[p.ID] = p
	}

	out := make([]EnrichedProduct, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetRankableForUser returns the products the user has not yet placed on
// their default list. Operator employees may rank the whole catalog; everyone
// else is restricted to what they bought plus operator-flagged products.
func (s *service) GetRankableForUser(ctx context.Context, userID uuid.UUID) (*RankableResult, error) {
	enriched, err := s.enrichedCatalog(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	userRanks, err := s.userRanks.ListByUser(ctx, userID, models.DefaultListID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user rankings")
	}
	ranked := make(map[string]struct{}, len(userRanks))
	for _, row := range userRanks {
		ranked[row.ProductID] = struct{}{}
	}

	unranked := make([]EnrichedProduct, 0, len(enriched))
	for _, p := range enriched {
		if _, ok := ranked[p.ID]; !ok {
			unranked = append(unranked, p)
		}
	}

	if s.isEmployee(user) {
		return &RankableResult{Mode: EligibilityAllCatalog, Products: unranked}, nil
	}

	purchased, err := s.purchases.PurchasedProductIDs(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchases")
	}
	flagged, err := s.repo.ForceRankableIDs(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load flagged products")
	}

	allowed := make(map[string]struct{}, len(purchased)+len(flagged))
	for _, id := range purchased {
		allowed[id] = struct{}{}
	}
	for _, id := range flagged {
		allowed[id] = struct{}{}
	}

	subset := make([]EnrichedProduct, 0, len(allowed))
	for _, p := range unranked {
		if _, ok := allowed[p.ID]; ok {
			subset = append(subset, p)
		}
	}
	mode := EligibilityPurchased
	if len(flagged) > 0 {
		mode = EligibilityPurchasedOrFlagged
	}
	return &RankableResult{Mode: mode, Products: subset}, nil
}

// isEmployee treats the operator's staff as employees whether or not their
// role was ever promoted, keyed off the operator email domain.
func (s *service) isEmployee(user *models.User) bool {
	if user.Role == enums.RoleEmployeeAdmin {
		return true
	}
	domain := strings.ToLower(strings.TrimSpace(s.operator.EmailDomain))
	if domain == "" {
		return false
	}
	return strings.HasSuffix(strings.ToLower(user.Email), "@"+domain)
}

// RefreshCatalog forces a catalog pull regardless of freshness.
func (s *service) RefreshCatalog(ctx context.Context) error {
	return s.caches.Catalog.Refresh(ctx, cache.SingletonKey, s.fillCatalog)
}

// cachedCatalog returns the catalog snapshot, filling through the single
// upstream pull when cold.
func (s *service) cachedCatalog(ctx context.Context) ([]catalog.Product, error) {
	var snapshot []catalog.Product
	stale, err := s.caches.Catalog.GetOrFill(ctx, cache.SingletonKey, &snapshot, s.fillCatalog)
	if err != nil {
		return nil, err
	}
	if stale {
		s.logg.Debug(ctx, "serving stale catalog while refresh runs")
	}
	return snapshot, nil
}

// fillCatalog pulls the catalog and syncs the taxonomy snapshot as a side
// effect, so metadata tracks whatever the cache holds.
func (s *service) fillCatalog(ctx context.Context) (any, error) {
	snapshot, err := s.fetcher.FetchRankable(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.syncMetadata(ctx, snapshot); err != nil {
		s.logg.Error(ctx, "metadata sync failed", err)
	}
	return snapshot, nil
}

func (s *service) syncMetadata(ctx context.Context, snapshot []catalog.Product) error {
	for _, p := range snapshot {
		meta := MetadataFromProduct(p)
		if err := s.repo.UpsertMetadata(ctx, meta); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) enrichedCatalog(ctx context.Context) ([]EnrichedProduct, error) {
	snapshot, err := s.cachedCatalog(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(snapshot))
	for _, p := range snapshot {
		ids = append(ids, p.ID)
	}

	meta, err := s.repo.MetadataByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product metadata")
	}
	stats, err := s.stats.StatsForProducts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ranking stats")
	}

	enriched := make([]EnrichedProduct, 0, len(snapshot))
	for _, p := range snapshot {
		enriched = append(enriched, enrichOne(p, meta[p.ID], stats[p.ID]))
	}
	return enriched, nil
}

func enrichOne(p catalog.Product, meta models.ProductMetadata, stat rankings.ProductStat) EnrichedProduct {
	out := EnrichedProduct{
		ID:       p.ID,
		Title:    p.Title,
		Handle:   p.Handle,
		ImageURL: p.ImageURL,
		Price:    p.Price,
		Tags:     p.Tags,
		Animal: TaxonomyDTO{
			Type:    meta.AnimalType,
			Display: meta.AnimalDisplay,
			Icon:    meta.AnimalIcon,
		},
		Flavor: TaxonomyDTO{
			Type:    meta.FlavorPrimary,
			Display: meta.FlavorDisplay,
			Icon:    meta.FlavorIcon,
		},
		ProteinCategory: meta.ProteinCategory,
		Vendor:          p.Vendor,
		ProductType:     p.ProductType,
		Body:            p.Body,
		Stats: StatsDTO{
			TimesRanked:   stat.TimesRanked,
			UniqueRankers: stat.UniqueRankers,
			BestRank:      stat.BestRank,
			WorstRank:     stat.WorstRank,
			LastRankedAt:  stat.LastRankedAt,
		},
	}
	if stat.TimesRanked > 0 {
		avg := stat.AverageRank.Round(2)
		out.Stats.AverageRank = &avg
	}
	return out
}

// MetadataFromProduct derives the taxonomy snapshot from the product's tags
// and type.
func MetadataFromProduct(p catalog.Product) *models.ProductMetadata {
	tax := taxonomy.Derive(p.Title, p.ProductType, p.Tags)
	return &models.ProductMetadata{
		ProductID:       p.ID,
		Title:           p.Title,
		AnimalType:      tax.AnimalType,
		AnimalDisplay:   tax.AnimalDisplay,
		AnimalIcon:      tax.AnimalIcon,
		FlavorPrimary:   tax.FlavorPrimary,
		FlavorSecondary: tax.FlavorSecondary,
		FlavorDisplay:   tax.FlavorDisplay,
		FlavorIcon:      tax.FlavorIcon,
		ProteinCategory: tax.ProteinCategory,
	}
}

func matchesAllWords(p EnrichedProduct, words []string) bool {
	haystack := strings.ToLower(strings.Join(append([]string{
		p.Title, p.Vendor, p.ProductType, p.Animal.Type, p.Animal.Display, p.Flavor.Type, p.Flavor.Display, p.ProteinCategory,
	}, p.Tags...), " "))
	for _, w := range words {
		if !strings.Contains(haystack, w) {
			return false
		}
	}
	return true
}
