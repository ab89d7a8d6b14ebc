package achievements

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/jerkyranks/jerkyranks-backend/pkg/db/models"
	"github.com/jerkyranks/jerkyranks-backend/pkg/enums"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

// Engine reconciles coin definitions against a user's counters. A definition
// that fails to evaluate is logged and skipped so the rest still process.
type Engine interface {
	EvaluateAll(ctx context.Context, userID uuid.UUID) ([]Award, error)
	EvaluateOne(ctx context.Context, userID uuid.UUID, code string) (*Award, error)
	EvaluateDefinition(ctx context.Context, userID uuid.UUID, def *models.CoinDefinition) (*Award, error)
	GetWithProgress(ctx context.Context, userID uuid.UUID) ([]CoinProgressDTO, error)
	Validate(ctx context.Context, userID uuid.UUID, code string) ([]Divergence, error)
	NextMilestone(ctx context.Context, userID uuid.UUID) (*Milestone, error)
	Insights(ctx context.Context, userID uuid.UUID) ([]string, error)
}

type rankingReader interface {
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	RankedProductIDs(ctx context.Context, userID uuid.UUID) ([]string, error)
}

type activityReader interface {
	CountByType(ctx context.Context, userID uuid.UUID, activityType enums.ActivityType) (int64, error)
	CountProductViews(ctx context.Context, userID uuid.UUID) (int64, error)
	CountDistinctProductViews(ctx context.Context, userID uuid.UUID) (int64, error)
	CountPageViews(ctx context.Context, userID uuid.UUID) (int64, error)
	CountProfileViews(ctx context.Context, userID uuid.UUID) (int64, error)
	CountDistinctProfileViews(ctx context.Context, userID uuid.UUID) (int64, error)
}

type streakReader interface {
	Find(ctx context.Context, userID uuid.UUID, streakType enums.StreakType) (*models.Streak, error)
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type productSetResolver interface {
	ProductIDsBySelectors(ctx context.Context, selectors, proteinFilters []string) ([]string, error)
	AllProductIDs(ctx context.Context) ([]string, error)
}

// positionReader reports the user's all-time leaderboard position, zero when
// the user holds no points. Implemented by the leaderboard service and wired
// at startup to keep the dependency one-directional.
type positionReader interface {
	AllTimePosition(ctx context.Context, userID uuid.UUID) (int, error)
}

type engine struct {
	repo     *Repository
	rankings rankingReader
	activity activityReader
	streaks  streakReader
	users    userReader
	products productSetResolver
	position positionReader
	logg     *logger.Logger
	now      func() time.Time
}

// NewEngine constructs the achievement engine.
func NewEngine(repo *Repository, rankings rankingReader, activity activityReader, streaks streakReader, users userReader, products productSetResolver, position positionReader, logg *logger.Logger) (Engine, error) {
	if repo == nil {
		return nil, fmt.Errorf("achievements repository required")
	}
	if rankings == nil {
		return nil, fmt.Errorf("ranking reader required")
	}
	if activity == nil {
		return nil, fmt.Errorf("activity reader required")
	}
	if streaks == nil {
		return nil, fmt.Errorf("streak reader required")
	}
	if users == nil {
		return nil, fmt.Errorf("user reader required")
	}
	if products == nil {
		return nil, fmt.Errorf("product set resolver required")
	}
	if position == nil {
		return nil, fmt.Errorf("position reader required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &engine{
		repo:     repo,
		rankings: rankings,
		activity: activity,
		streaks:  streaks,
		users:    users,
		products: products,
		position: position,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// EvaluateAll runs every active definition for the user and returns the state
// transitions that occurred.
func (e *engine) EvaluateAll(ctx context.Context, userID uuid.UUID) ([]Award, error) {
	defs, err := e.repo.ListActiveDefinitions(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list coin definitions")
	}

	var awards []Award
	for i := range defs {
		def := &defs[i]
		award, err := e.EvaluateDefinition(ctx, userID, def)
		if err != nil {
			dctx := e.logg.WithCoinCode(e.logg.WithUserID(ctx, userID.String()), def.Code)
			e.logg.Error(dctx, "coin evaluation failed, skipping definition", err)
			continue
		}
		if award != nil {
			awards = append(awards, *award)
		}
	}
	return awards, nil
}

// EvaluateOne evaluates a single definition by code.
func (e *engine) EvaluateOne(ctx context.Context, userID uuid.UUID, code string) (*Award, error) {
	def, err := e.repo.FindDefinitionByCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find coin definition")
	}
	if def == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("unknown coin %q", code))
	}
	if !def.IsActive {
		return nil, nil
	}
	return e.EvaluateDefinition(ctx, userID, def)
}

// EvaluateDefinition computes the user's standing against one definition and
// persists any award. Returns nil when nothing changed.
func (e *engine) EvaluateDefinition(ctx context.Context, userID uuid.UUID, def *models.CoinDefinition) (*Award, error) {
	eval, err := e.evaluate(ctx, userID, def)
	if err != nil {
		return nil, err
	}
	return e.award(ctx, userID, def, eval)
}

// GetWithProgress returns every visible definition with the user's current
// percentage and tier. Hidden definitions the user has not earned are
// excluded; definitions that fail to evaluate are shown from stored state.
func (e *engine) GetWithProgress(ctx context.Context, userID uuid.UUID) ([]CoinProgressDTO, error) {
	defs, err := e.repo.ListActiveDefinitions(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list coin definitions")
	}
	rows, err := e.repo.ListUserCoins(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list user coins")
	}
	earned := make(map[uuid.UUID]*models.UserCoin, len(rows))
	for i := range rows {
		earned[rows[i].CoinID] = &rows[i]
	}

	out := make([]CoinProgressDTO, 0, len(defs))
	for i := range defs {
		def := &defs[i]
		row := earned[def.ID]
		if def.IsHidden && row == nil {
			continue
		}

		dto := CoinProgressDTO{
			Code:        def.Code,
			Name:        def.Name,
			Description: def.Description,
			Icon:        def.Icon,
			Collection:  def.CollectionType,
			HasTiers:    def.HasTiers,
			MaxPoints:   def.Points,
		}
		if row != nil {
			dto.Earned = true
			earnedAt := row.EarnedAt
			dto.EarnedAt = &earnedAt
			dto.CurrentTier = row.CurrentTier
			dto.PointsAwarded = row.PointsAwarded
			dto.PercentComplete = row.PercentComplete
			dto.Progress = row.Progress
		}

		eval, err := e.evaluate(ctx, userID, def)
		if err != nil {
			dctx := e.logg.WithCoinCode(e.logg.WithUserID(ctx, userID.String()), def.Code)
			e.logg.Warn(dctx, "coin progress evaluation failed, serving stored state")
			out = append(out, dto)
			continue
		}

		dto.PercentComplete = eval.Percent
		dto.Progress = eval.Progress
		// Stored tier and points floor the live computation.
		if eval.Tier.Rank() > dto.CurrentTier.Rank() {
			dto.CurrentTier = eval.Tier
		}
		if eval.Points > dto.PointsAwarded {
			dto.PointsAwarded = eval.Points
		}
		out = append(out, dto)
	}
	return out, nil
}

// Validate re-runs evaluations without ever lowering stored state and reports
// where the stored tier or points exceed what current counters support. Used
// by the coin-recalculation worker after order cancellations. An empty code
// validates every earned coin.
func (e *engine) Validate(ctx context.Context, userID uuid.UUID, code string) ([]Divergence, error) {
	rows, err := e.repo.ListUserCoins(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list user coins")
	}

	var divergences []Divergence
	for i := range rows {
		row := &rows[i]
		def, err := e.repo.FindDefinitionByID(ctx, row.CoinID)
		if err != nil || def == nil {
			continue
		}
		if code != "" && def.Code != code {
			continue
		}

		eval, err := e.evaluate(ctx, userID, def)
		if err != nil {
			dctx := e.logg.WithCoinCode(e.logg.WithUserID(ctx, userID.String()), def.Code)
			e.logg.Error(dctx, "coin validation failed, skipping definition", err)
			continue
		}

		if eval.Tier.Rank() < row.CurrentTier.Rank() || eval.Points < row.PointsAwarded {
			div := Divergence{
				Code:           def.Code,
				StoredTier:     row.CurrentTier,
				ComputedTier:   eval.Tier,
				StoredPoints:   row.PointsAwarded,
				ComputedPoints: eval.Points,
			}
			divergences = append(divergences, div)
			dctx := e.logg.WithFields(ctx, map[string]any{
				"user_id":         userID.String(),
				"coin_code":       def.Code,
				"stored_tier":     row.CurrentTier.String(),
				"computed_tier":   eval.Tier.String(),
				"stored_points":   row.PointsAwarded,
				"computed_points": eval.Points,
			})
			e.logg.Warn(dctx, "coin divergence detected, stored state retained")
		}

		// Upgrades still apply during validation; only downgrades are held.
		if _, err := e.award(ctx, userID, def, eval); err != nil {
			dctx := e.logg.WithCoinCode(e.logg.WithUserID(ctx, userID.String()), def.Code)
			e.logg.Error(dctx, "coin validation award failed", err)
		}
	}
	return divergences, nil
}

// award reconciles an evaluation with the stored row. Tier and points never
// decrease; a lower evaluation only refreshes the progress snapshot.
func (e *engine) award(ctx context.Context, userID uuid.UUID, def *models.CoinDefinition, eval evaluation) (*Award, error) {
	existing, err := e.repo.FindUserCoin(ctx, userID, def.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find user coin")
	}

	if existing == nil {
		if eval.Tier == "" {
			return nil, nil
		}
		ok, err := e.prerequisiteMet(ctx, userID, def)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}

		row := &models.UserCoin{
			UserID:          userID,
			CoinID:          def.ID,
			CurrentTier:     eval.Tier,
			PercentComplete: eval.Percent,
			PointsAwarded:   eval.Points,
			Progress:        eval.Progress,
			EarnedAt:        e.now().UTC(),
		}
		if err := e.repo.SaveUserCoin(ctx, row); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save user coin")
		}
		return &Award{
			Code:          def.Code,
			Name:          def.Name,
			Icon:          def.Icon,
			Collection:    def.CollectionType,
			Kind:          enums.AwardNew,
			NewTier:       eval.Tier,
			PointsAwarded: eval.Points,
			PointsGained:  eval.Points,
			Events:        e.tierPath(def, "", eval.Tier),
		}, nil
	}

	previousTier := existing.CurrentTier
	previousPoints := existing.PointsAwarded

	upgraded := eval.Tier.Rank() > previousTier.Rank()
	points := previousPoints
	if eval.Points > points {
		points = eval.Points
	}

	existing.PercentComplete = eval.Percent
	existing.Progress = eval.Progress
	existing.PointsAwarded = points
	if upgraded {
		existing.CurrentTier = eval.Tier
		existing.EarnedAt = e.now().UTC()
	}
	if err := e.repo.SaveUserCoin(ctx, existing); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save user coin")
	}

	if !upgraded {
		return nil, nil
	}
	return &Award{
		Code:          def.Code,
		Name:          def.Name,
		Icon:          def.Icon,
		Collection:    def.CollectionType,
		Kind:          enums.AwardTierUpgrade,
		PreviousTier:  previousTier,
		NewTier:       eval.Tier,
		PointsAwarded: points,
		PointsGained:  points - previousPoints,
		Events:        e.tierPath(def, previousTier, eval.Tier),
	}, nil
}

func (e *engine) prerequisiteMet(ctx context.Context, userID uuid.UUID, def *models.CoinDefinition) (bool, error) {
	if def.PrerequisiteID == nil {
		return true, nil
	}
	prereq, err := e.repo.FindUserCoin(ctx, userID, *def.PrerequisiteID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find prerequisite coin")
	}
	return prereq != nil, nil
}

// tierPath emits one event per tier crossed between from (exclusive) and to
// (inclusive), each carrying its threshold's proportional point total. A
// non-tiered coin yields a single complete event.
func (e *engine) tierPath(def *models.CoinDefinition, from, to enums.Tier) []TierEvent {
	if !def.HasTiers {
		return []TierEvent{{Tier: enums.TierComplete, Points: def.Points}}
	}
	thresholds := e.thresholds(def)
	var events []TierEvent
	for _, tier := range enums.TierOrder {
		if tier == enums.TierComplete {
			break
		}
		if tier.Rank() <= from.Rank() || tier.Rank() > to.Rank() {
			continue
		}
		events = append(events, TierEvent{
			Tier:   tier,
			Points: proportionalPoints(float64(thresholds[tier]), def.Points),
		})
	}
	return events
}

// evaluate dispatches on the requirement type and returns percent, tier, and
// a progress snapshot.
func (e *engine) evaluate(ctx context.Context, userID uuid.UUID, def *models.CoinDefinition) (evaluation, error) {
	switch def.RequirementType {
	case enums.RequirementProductList:
		return e.evalCollection(ctx, userID, def, []string(def.ProductIDs))
	case enums.RequirementCategorySelector:
		set, err := e.products.ProductIDsBySelectors(ctx, []string(def.CategorySelectors), []string(def.ProteinFilters))
		if err != nil {
			return evaluation{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve category selectors")
		}
		return e.evalCollection(ctx, userID, def, set)
	case enums.RequirementAllRankableCollection:
		set, err := e.products.AllProductIDs(ctx)
		if err != nil {
			return evaluation{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve rankable set")
		}
		return e.evalCollection(ctx, userID, def, set)
	case enums.RequirementLeaderboardPosition:
		return e.evalLeaderboardPosition(ctx, userID, def)
	case enums.RequirementJoinBefore:
		return e.evalJoinBefore(ctx, userID, def)
	default:
		return e.evalCounter(ctx, userID, def)
	}
}

func (e *engine) evalCounter(ctx context.Context, userID uuid.UUID, def *models.CoinDefinition) (evaluation, error) {
	if def.RequirementValue <= 0 {
		return evaluation{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("coin %s has no requirement value", def.Code))
	}
	current, err := e.counterValue(ctx, userID, def.RequirementType)
	if err != nil {
		return evaluation{}, err
	}
	percent := math.Min(100, float64(current)*100/float64(def.RequirementValue))
	return e.finish(def, percent, models.JSONMap{
		"current":  current,
		"required": def.RequirementValue,
	}), nil
}

func (e *engine) counterValue(ctx context.Context, userID uuid.UUID, requirement enums.RequirementType) (int64, error) {
	switch requirement {
	case enums.RequirementRankCount:
		return e.rankings.CountByUser(ctx, userID)
	case enums.RequirementSearchCount:
		return e.activity.CountByType(ctx, userID, enums.ActivitySearch)
	case enums.RequirementPageViewCount:
		return e.activity.CountPageViews(ctx, userID)
	case enums.RequirementProductViewCount:
		return e.activity.CountProductViews(ctx, userID)
	case enums.RequirementUniqueProductViews:
		return e.activity.CountDistinctProductViews(ctx, userID)
	case enums.RequirementProfileViewCount:
		return e.activity.CountProfileViews(ctx, userID)
	case enums.RequirementUniqueProfileViews:
		return e.activity.CountDistinctProfileViews(ctx, userID)
	case enums.RequirementStreakDays:
		return e.streakValue(ctx, userID, enums.StreakDailyRank)
	case enums.RequirementDailyLoginStreak:
		return e.streakValue(ctx, userID, enums.StreakDailyLogin)
	default:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported requirement type %q", requirement))
	}
}

func (e *engine) streakValue(ctx context.Context, userID uuid.UUID, streakType enums.StreakType) (int64, error) {
	row, err := e.streaks.Find(ctx, userID, streakType)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find streak")
	}
	if row == nil {
		return 0, nil
	}
	return int64(row.CurrentStreak), nil
}

func (e *engine) evalCollection(ctx context.Context, userID uuid.UUID, def *models.CoinDefinition, set []string) (evaluation, error) {
	if len(set) == 0 {
		return e.finish(def, 0, models.JSONMap{"ranked": 0, "total": 0}), nil
	}
	ranked, err := e.rankings.RankedProductIDs(ctx, userID)
	if err != nil {
		return evaluation{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list ranked products")
	}
	members := make(map[string]struct{}, len(set))
	for _, id := range set {
		members[id] = struct{}{}
	}
	matched := 0
	for _, id := range ranked {
		if _, ok := members[id]; ok {
			matched++
		}
	}
	percent := math.Min(100, float64(matched)*100/float64(len(set)))
	return e.finish(def, percent, models.JSONMap{
		"ranked": matched,
		"total":  len(set),
	}), nil
}

func (e *engine) evalLeaderboardPosition(ctx context.Context, userID uuid.UUID, def *models.CoinDefinition) (evaluation, error) {
	if def.RequirementValue <= 0 {
		return evaluation{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("coin %s has no requirement value", def.Code))
	}
	position, err := e.position.AllTimePosition(ctx, userID)
	if err != nil {
		return evaluation{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read leaderboard position")
	}
	percent := 0.0
	if position > 0 && position <= def.RequirementValue {
		percent = 100
	}
	return e.finish(def, percent, models.JSONMap{
		"position": position,
		"required": def.RequirementValue,
	}), nil
}

func (e *engine) evalJoinBefore(ctx context.Context, userID uuid.UUID, def *models.CoinDefinition) (evaluation, error) {
	if def.RequirementDate == nil {
		return evaluation{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("coin %s has no requirement date", def.Code))
	}
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return evaluation{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find user")
	}
	if user == nil {
		return evaluation{}, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	percent := 0.0
	if !user.CreatedAt.After(*def.RequirementDate) {
		percent = 100
	}
	return e.finish(def, percent, models.JSONMap{
		"joined_at": user.CreatedAt.UTC().Format(time.RFC3339),
		"cutoff":    def.RequirementDate.UTC().Format(time.RFC3339),
	}), nil
}

// finish derives tier and points from the raw percentage.
func (e *engine) finish(def *models.CoinDefinition, percent float64, progress models.JSONMap) evaluation {
	eval := evaluation{Percent: percent, Progress: progress}
	if !def.HasTiers {
		if percent >= 100 {
			eval.Tier = enums.TierComplete
			eval.Points = def.Points
		}
		return eval
	}
	thresholds := e.thresholds(def)
	for _, tier := range enums.TierOrder {
		if tier == enums.TierComplete {
			break
		}
		threshold, ok := thresholds[tier]
		if !ok {
			continue
		}
		if float64(threshold) <= percent {
			eval.Tier = tier
		}
	}
	if eval.Tier != "" {
		eval.Points = proportionalPoints(percent, def.Points)
	}
	return eval
}

// thresholds returns the definition's tier thresholds, falling back to the
// app-wide defaults when the definition carries none.
func (e *engine) thresholds(def *models.CoinDefinition) map[enums.Tier]int {
	if len(def.TierThresholds) == 0 {
		return enums.DefaultTierThresholds
	}
	out := make(map[enums.Tier]int, len(def.TierThresholds))
	for name, threshold := range def.TierThresholds {
		out[enums.Tier(name)] = threshold
	}
	return out
}

func proportionalPoints(percent float64, maxPoints int) int {
	return int(math.Round(percent * float64(maxPoints) / 100))
}
