package imports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	pkgAuth "github.com/angelmondragon/shopfront-backend/pkg/auth"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/metrics"
	"github.com/angelmondragon/shopfront-backend/pkg/outbox"
	"github.com/angelmondragon/shopfront-backend/pkg/outbox/payloads"
)

const lockScope = "import"

// Source is either a URL to download or an uploaded price list body.
// Body wins when both are set.
type Source struct {
	URL  string
	Body []byte
}

// Result summarises one import run.
type Result struct {
	Shop    string   `json:"shop"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Stale   int      `json:"stale"`
	Errors  []string `json:"errors,omitempty"`
}

// Service imports partner price lists.
type Service interface {
	Import(ctx context.Context, principal pkgAuth.Principal, src Source) (*Result, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type locker interface {
	LockKey(scope, id string) string
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type recorder interface {
	ObserveDuration(shop string, duration time.Duration)
	IncSuccess(shop string)
	IncFailure(shop string)
	AddRows(outcome string, n int)
}

type ServiceParams struct {
	DB      txRunner
	Locker  locker
	Fetcher Fetcher
	Outbox  outbox.Emitter
	Metrics recorder
	Logger  *logger.Logger
	LockTTL time.Duration
}

type service struct {
	db      txRunner
	locker  locker
	fetcher Fetcher
	outbox  outbox.Emitter
	metrics recorder
	logg    *logger.Logger
	lockTTL time.Duration
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	if params.Locker == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "import locker required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	fetcher := params.Fetcher
	if fetcher == nil {
		fetcher = NewHTTPFetcher(0, 0)
	}
	rec := params.Metrics
	if rec == nil {
		rec = metrics.NewImportMetrics(nil)
	}
	ttl := params.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &service{
		db:      params.DB,
		locker:  params.Locker,
		fetcher: fetcher,
		outbox:  params.Outbox,
		metrics: rec,
		logg:    params.Logger,
		lockTTL: ttl,
	}, nil
}

func (s *service) Import(ctx context.Context, principal pkgAuth.Principal, src Source) (*Result, error) {
	body, err := s.load(ctx, src)
	if err != nil {
		return nil, err
	}
	feed, err := ParseFeed(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	key := s.locker.LockKey(lockScope, strings.ToLower(feed.Shop))
	acquired, err := s.locker.TryLock(ctx, key, s.lockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire import lock")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an import for this shop is already running")
	}
	defer func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), key); err != nil && s.logg != nil {
			s.logg.Error(ctx, "import.unlock_failed", err)
		}
	}()

	started := time.Now()
	result, err := s.run(ctx, principal, feed, strings.TrimSpace(src.URL))
	s.metrics.ObserveDuration(feed.Shop, time.Since(started))
	if err != nil || result.Failed > 0 {
		s.metrics.IncFailure(feed.Shop)
	} else {
		s.metrics.IncSuccess(feed.Shop)
	}
	if err != nil {
		return nil, err
	}
	s.metrics.AddRows("created", result.Created)
	s.metrics.AddRows("updated", result.Updated)
	s.metrics.AddRows("failed", result.Failed)
	s.metrics.AddRows("stale", result.Stale)

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"shop":    result.Shop,
			"created": result.Created,
			"updated": result.Updated,
			"failed":  result.Failed,
			"stale":   result.Stale,
		})
		s.logg.Info(logCtx, "import.completed")
	}
	return result, nil
}

func (s *service) load(ctx context.Context, src Source) ([]byte, error) {
	if len(bytes.TrimSpace(src.Body)) > 0 {
		return src.Body, nil
	}
	if strings.TrimSpace(src.URL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "url or price list body is required").
			WithDetails(map[string][]string{"url": {"is required"}})
	}
	return s.fetcher.Fetch(ctx, strings.TrimSpace(src.URL))
}

func (s *service) run(ctx context.Context, principal pkgAuth.Principal, feed *Feed, sourceURL string) (*Result, error) {
	var (
		shop       *models.Shop
		categories map[int64]uuid.UUID
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := newTxRepository(tx)
		var err error
		shop, err = s.resolveShop(repo, principal.UserID, feed.Shop, sourceURL)
		if err != nil {
			return err
		}
		categories, err = ensureCategories(repo, shop.ID, feed.Categories)
		return err
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithShopID(ctx, shop.ID.String())
	result := &Result{Shop: shop.Name}
	seen := make([]uuid.UUID, 0, len(feed.Goods))
	// goods that are in the feed but failed keep their current rows
	var failed []int64
	var rowErrs error
	for _, good := range feed.Goods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, created, err := s.importGood(ctx, shop.ID, categories, good)
		if err != nil {
			result.Failed++
			failed = append(failed, good.ID)
			rowErrs = multierr.Append(rowErrs, fmt.Errorf("good %d: %w", good.ID, err))
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"good_id": good.ID, "error": err.Error()}), "import.good_failed")
			continue
		}
		seen = append(seen, id)
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	for _, e := range multierr.Errors(rowErrs) {
		result.Errors = append(result.Errors, e.Error())
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		stale, err := newTxRepository(tx).zeroMissing(shop.ID, seen, failed)
		if err != nil {
			return err
		}
		result.Stale = stale
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCatalogImported,
			AggregateType: enums.AggregateShop,
			AggregateID:   shop.ID,
			Actor:         &outbox.ActorRef{UserID: principal.UserID, Role: string(principal.Type)},
			Data: payloads.CatalogImportedEvent{
				ShopID:   shop.ID,
				ShopName: shop.Name,
				Email:    principal.Email,
				Created:  result.Created,
				Updated:  result.Updated,
				Failed:   result.Failed,
				Stale:    result.Stale,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolveShop finds the caller's shop by name or creates it. A name owned by
// someone else is forbidden; one account owns one shop.
func (s *service) resolveShop(repo *txRepository, userID uuid.UUID, name, sourceURL string) (*models.Shop, error) {
	shop, err := repo.findShopByName(name)
	switch {
	case err == nil:
		if shop.UserID == nil || *shop.UserID != userID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "shop belongs to another account")
		}
		if sourceURL != "" {
			if err := repo.setShopURL(shop.ID, sourceURL); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shop url")
			}
			shop.URL = &sourceURL
		}
		return shop, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup shop")
	}

	owned, err := repo.findShopByUser(userID)
	if err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("account already owns shop %q", owned.Name))
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup shop")
	}

	shop = &models.Shop{Name: name, UserID: &userID, State: enums.ShopStateOpen}
	if sourceURL != "" {
		shop.URL = &sourceURL
	}
	if err := repo.createShop(shop); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shop")
	}
	return shop, nil
}

func ensureCategories(repo *txRepository, shopID uuid.UUID, feedCategories []FeedCategory) (map[int64]uuid.UUID, error) {
	ids := make(map[int64]uuid.UUID, len(feedCategories))
	for _, c := range feedCategories {
		categoryID, err := repo.ensureCategory(c.Name)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert category")
		}
		if err := repo.linkShopCategory(shopID, categoryID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link category")
		}
		ids[c.ID] = categoryID
	}
	return ids, nil
}

// importGood writes one offer with its parameters in a single transaction.
func (s *service) importGood(ctx context.Context, shopID uuid.UUID, categories map[int64]uuid.UUID, good FeedGood) (uuid.UUID, bool, error) {
	if err := good.validate(); err != nil {
		return uuid.Nil, false, err
	}
	categoryID, ok := categories[good.Category]
	if !ok {
		return uuid.Nil, false, fmt.Errorf("unknown category %d", good.Category)
	}

	var (
		infoID  uuid.UUID
		created bool
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := newTxRepository(tx)
		productID, err := repo.ensureProduct(strings.TrimSpace(good.Name), categoryID)
		if err != nil {
			return err
		}
		info := &models.ProductInfo{
			Model:      strings.TrimSpace(good.Model),
			ExternalID: good.ID,
			ProductID:  productID,
			ShopID:     shopID,
			Quantity:   good.Quantity,
			Price:      good.Price,
			PriceRRC:   good.PriceRRC,
		}
		created, err = repo.upsertProductInfo(info)
		if err != nil {
			return err
		}
		infoID = info.ID

		params := good.sortedParameters()
		keep := make([]uuid.UUID, 0, len(params))
		for _, p := range params {
			parameterID, err := repo.ensureParameter(p.Name)
			if err != nil {
				return err
			}
			if err := repo.upsertProductParameter(infoID, parameterID, p.Value); err != nil {
				return err
			}
			keep = append(keep, parameterID)
		}
		return repo.pruneParameters(infoID, keep)
	})
	if err != nil {
		return uuid.Nil, false, err
	}
	return infoID, created, nil
}
