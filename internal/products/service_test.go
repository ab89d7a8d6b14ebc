package products

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jerkyranks/jerkyranks-backend/internal/rankings"
	"github.com/jerkyranks/jerkyranks-backend/pkg/cache"
	"github.com/jerkyranks/jerkyranks-backend/pkg/catalog"
	"github.com/jerkyranks/jerkyranks-backend/pkg/config"
	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

type fakeFetcher struct {
	snapshot []catalog.Product
}

func (f *fakeFetcher) FetchRankable(context.Context) ([]catalog.Product, error) {
	return f.snapshot, nil
}

type fakeStats struct {
	byProduct map[string]rankings.ProductStat
}

func (f *fakeStats) StatsForProducts(_ context.Context, productIDs []string) (map[string]rankings.ProductStat, error) {
	if f.byProduct == nil {
		return map[string]rankings.ProductStat{}, nil
	}
	return f.byProduct, nil
}

type fakePurchases struct {
	ids []string
}

func (f *fakePurchases) PurchasedProductIDs(context.Context, uuid.UUID) ([]string, error) {
	return f.ids, nil
}

type fakeUserRanks struct {
	rows []models.Ranking
}

func (f *fakeUserRanks) ListByUser(context.Context, uuid.UUID, string) ([]models.Ranking, error) {
	return f.rows, nil
}

type fakeUsers struct {
	user *models.User
}

func (f *fakeUsers) FindByID(context.Context, uuid.UUID) (*models.User, error) {
	return f.user, nil
}

type serviceFixture struct {
	fetcher   *fakeFetcher
	stats     *fakeStats
	purchases *fakePurchases
	userRanks *fakeUserRanks
	users     *fakeUsers
	repo      *Repository
}

func newConn(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.ProductMetadata{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, _ := conn.DB()
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func newFixture(t *testing.T, snapshot []catalog.Product, user *models.User) (Service, *serviceFixture) {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "products-test"})
	caches, err := cache.NewRegistry(config.CacheConfig{}, cache.MemoryFactory(), logg, nil)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	fx := &serviceFixture{
		fetcher:   &fakeFetcher{snapshot: snapshot},
		stats:     &fakeStats{},
		purchases: &fakePurchases{},
		userRanks: &fakeUserRanks{},
		users:     &fakeUsers{user: user},
		repo:      NewRepository(newConn(t)),
	}
	svc, err := NewService(fx.repo, fx.fetcher, fx.stats, fx.purchases, fx.userRanks, fx.users, config.OperatorConfig{EmailDomain: "jerkyranks.com"}, caches, logg)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, fx
}

func jerkyCatalog() []catalog.Product {
	return []catalog.Product{
		{ID: "p1", Title: "Smoked Beef Original", Vendor: "Prairie Smoke Co", ProductType: "Beef Jerky"},
		{ID: "p2", Title: "Peppered Elk", Vendor: "Highline Meats", ProductType: "Elk Jerky"},
		{ID: "p3", Title: "Teriyaki Turkey", Vendor: "Prairie Smoke Co", ProductType: "Turkey Jerky"},
	}
}

func ids(products []EnrichedProduct) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

func TestRankableBuyerWithoutPurchasesGetsEmptySet(t *testing.T) {
	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Email: "gusfring@example.com", Role: enums.RoleUser}
	svc, _ := newFixture(t, jerkyCatalog(), user)

	result, err := svc.GetRankableForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("rankable: %v", err)
	}
	if result.Mode != EligibilityPurchased {
		t.Fatalf("mode = %q, want %q", result.Mode, EligibilityPurchased)
	}
	if len(result.Products) != 0 {
		t.Fatalf("rankable set = %v, want empty", ids(result.Products))
	}
}

func TestRankableBuyerRestrictedToUnrankedPurchases(t *testing.T) {
	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Email: "gusfring@example.com", Role: enums.RoleUser}
	svc, fx := newFixture(t, jerkyCatalog(), user)
	fx.purchases.ids = []string{"p1", "p2"}
	fx.userRanks.rows = []models.Ranking{{UserID: user.ID, ProductID: "p1", ListID: models.DefaultListID, Position: 1}}

	result, err := svc.GetRankableForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("rankable: %v", err)
	}
	if result.Mode != EligibilityPurchased {
		t.Fatalf("mode = %q, want %q", result.Mode, EligibilityPurchased)
	}
	if got := ids(result.Products); len(got) != 1 || got[0] != "p2" {
		t.Fatalf("rankable set = %v, want [p2]", got)
	}
}

func TestRankableFlaggedProductsWidenBuyerSet(t *testing.T) {
	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Email: "gusfring@example.com", Role: enums.RoleUser}
	svc, fx := newFixture(t, jerkyCatalog(), user)
	fx.purchases.ids = []string{"p1"}
	if err := fx.repo.UpsertMetadata(ctx, &models.ProductMetadata{ProductID: "p3", Title: "Teriyaki Turkey", ForceRankable: true}); err != nil {
		t.Fatalf("seed metadata: %v", err)
	}

	result, err := svc.GetRankableForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("rankable: %v", err)
	}
	if result.Mode != EligibilityPurchasedOrFlagged {
		t.Fatalf("mode = %q, want %q", result.Mode, EligibilityPurchasedOrFlagged)
	}
	got := ids(result.Products)
	if len(got) != 2 || got[0] != "p1" || got[1] != "p3" {
		t.Fatalf("rankable set = %v, want [p1 p3]", got)
	}
}

func TestRankableEmployeeRoleGetsWholeUnrankedCatalog(t *testing.T) {
	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Email: "admin@example.com", Role: enums.RoleEmployeeAdmin}
	svc, fx := newFixture(t, jerkyCatalog(), user)
	fx.userRanks.rows = []models.Ranking{{UserID: user.ID, ProductID: "p2", ListID: models.DefaultListID, Position: 1}}

	result, err := svc.GetRankableForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("rankable: %v", err)
	}
	if result.Mode != EligibilityAllCatalog {
		t.Fatalf("mode = %q, want %q", result.Mode, EligibilityAllCatalog)
	}
	got := ids(result.Products)
	if len(got) != 2 || got[0] != "p1" || got[1] != "p3" {
		t.Fatalf("rankable set = %v, want [p1 p3]", got)
	}
}

func TestRankableOperatorEmailCountsAsEmployee(t *testing.T) {
	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Email: "Taster@JerkyRanks.com", Role: enums.RoleUser}
	svc, _ := newFixture(t, jerkyCatalog(), user)

	result, err := svc.GetRankableForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("rankable: %v", err)
	}
	if result.Mode != EligibilityAllCatalog {
		t.Fatalf("mode = %q, want %q", result.Mode, EligibilityAllCatalog)
	}
	if len(result.Products) != 3 {
		t.Fatalf("rankable set = %v, want whole catalog", ids(result.Products))
	}
}

func TestSearchMatchesVendorAndProductType(t *testing.T) {
	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Email: "gusfring@example.com", Role: enums.RoleUser}
	svc, _ := newFixture(t, jerkyCatalog(), user)

	byVendor, err := svc.GetAll(ctx, "highline")
	if err != nil {
		t.Fatalf("search by vendor: %v", err)
	}
	if got := ids(byVendor); len(got) != 1 || got[0] != "p2" {
		t.Fatalf("vendor search = %v, want [p2]", got)
	}

	byType, err := svc.GetAll(ctx, "turkey jerky")
	if err != nil {
		t.Fatalf("search by type: %v", err)
	}
	if got := ids(byType); len(got) != 1 || got[0] != "p3" {
		t.Fatalf("type search = %v, want [p3]", got)
	}
}
