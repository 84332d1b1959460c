package imports

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	pkgAuth "github.com/angelmondragon/shopfront-backend/pkg/auth"
	"github.com/angelmondragon/shopfront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/outbox"
)

type stubLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	unlocked []string
}

func newStubLocker() *stubLocker { return &stubLocker{held: map[string]bool{}} }

func (l *stubLocker) LockKey(scope, id string) string { return scope + ":" + id }

func (l *stubLocker) TryLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *stubLocker) Unlock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	l.unlocked = append(l.unlocked, key)
	return nil
}

type stubFetcher struct {
	body []byte
	urls []string
}

func (f *stubFetcher) Fetch(_ context.Context, rawURL string) ([]byte, error) {
	f.urls = append(f.urls, rawURL)
	return f.body, nil
}

type importFixture struct {
	conn    *gorm.DB
	svc     Service
	locker  *stubLocker
	fetcher *stubFetcher
	owner   pkgAuth.Principal
}

func newImportFixture(t *testing.T) *importFixture {
	t.Helper()
	client := dbtest.Client(t)
	conn := client.DB()
	user := dbtest.SeedUser(t, conn, "partner@example.com", enums.UserTypeShop)

	f := &importFixture{
		conn:    conn,
		locker:  newStubLocker(),
		fetcher: &stubFetcher{body: []byte(sampleFeed)},
		owner:   pkgAuth.Principal{UserID: user.ID, Email: user.Email, Type: user.Type},
	}
	svc, err := NewService(ServiceParams{
		DB:      client,
		Locker:  f.locker,
		Fetcher: f.fetcher,
		Outbox:  outbox.NewService(outbox.NewRepository(conn), nil),
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestImportCreatesCatalog(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()

	res, err := f.svc.Import(ctx, f.owner, Source{URL: "https://example.com/shop1.yaml"})
	require.NoError(t, err)
	assert.Equal(t, &Result{Shop: "Связной", Created: 1}, res)
	assert.Equal(t, []string{"https://example.com/shop1.yaml"}, f.fetcher.urls)
	assert.Equal(t, []string{"import:связной"}, f.locker.unlocked)

	var shop models.Shop
	require.NoError(t, f.conn.Where("name = ?", "Связной").First(&shop).Error)
	require.NotNil(t, shop.UserID)
	assert.Equal(t, f.owner.UserID, *shop.UserID)
	require.NotNil(t, shop.URL)
	assert.Equal(t, "https://example.com/shop1.yaml", *shop.URL)

	var links int64
	require.NoError(t, f.conn.Model(&models.ShopCategory{}).Where("shop_id = ?", shop.ID).Count(&links).Error)
	assert.Equal(t, int64(2), links)

	var info models.ProductInfo
	require.NoError(t, f.conn.Preload("Parameters.Parameter").Where("shop_id = ?", shop.ID).First(&info).Error)
	assert.Equal(t, int64(4216292), info.ExternalID)
	assert.Equal(t, 14, info.Quantity)
	assert.Equal(t, "apple/iphone/xs-max", info.Model)
	assert.Len(t, info.Parameters, 4)

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Where("aggregate_id = ?", shop.ID).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventCatalogImported, events[0].EventType)
}

func TestReimportUpdatesInPlace(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()

	_, err := f.svc.Import(ctx, f.owner, Source{Body: []byte(sampleFeed)})
	require.NoError(t, err)

	changed := strings.Replace(sampleFeed, "quantity: 14", "quantity: 3", 1)
	changed = strings.Replace(changed, `"Цвет": золотистый`, `"Цвет": серебристый`, 1)
	changed = strings.Replace(changed, `      "Диагональ (дюйм)": 6.5`+"\n", "", 1)
	res, err := f.svc.Import(ctx, f.owner, Source{Body: []byte(changed)})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Updated)

	var infos []models.ProductInfo
	require.NoError(t, f.conn.Preload("Parameters.Parameter").Find(&infos).Error)
	require.Len(t, infos, 1)
	assert.Equal(t, 3, infos[0].Quantity)
	require.Len(t, infos[0].Parameters, 3)
	for _, p := range infos[0].Parameters {
		if p.Parameter.Name == "Цвет" {
			assert.Equal(t, "серебристый", p.Value)
		}
		assert.NotEqual(t, "Диагональ (дюйм)", p.Parameter.Name)
	}

	var products, params int64
	require.NoError(t, f.conn.Model(&models.Product{}).Count(&products).Error)
	require.NoError(t, f.conn.Model(&models.ProductParameter{}).Count(&params).Error)
	assert.Equal(t, int64(1), products)
	assert.Equal(t, int64(3), params)
}

func TestImportCollectsRowErrorsAndZeroesMissingRows(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()

	shop := dbtest.SeedShop(t, f.conn, "Связной", &f.owner.UserID)
	stale := dbtest.SeedOffer(t, f.conn, dbtest.Offer{
		Shop: shop, Category: "Старое", Product: "Old phone", ExternalID: 1, Quantity: 9, Price: "10",
	})

	feed := sampleFeed + `
  - id: 77
    category: 999
    model: m
    name: Orphan
    price: 1
    price_rrc: 1
    quantity: 1
  - id: 78
    category: 15
    model: m
    name: ""
    price: 1
    price_rrc: 1
    quantity: 1
`
	res, err := f.svc.Import(ctx, f.owner, Source{Body: []byte(feed)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 1, res.Stale)
	assert.Equal(t, []string{"good 77: unknown category 999", "good 78: name is required"}, res.Errors)

	var reloaded models.ProductInfo
	require.NoError(t, f.conn.First(&reloaded, "id = ?", stale.ID).Error)
	assert.Equal(t, 0, reloaded.Quantity)
}

func TestImportKeepsRowsOfFailedGoods(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()

	shop := dbtest.SeedShop(t, f.conn, "Связной", &f.owner.UserID)
	kept := dbtest.SeedOffer(t, f.conn, dbtest.Offer{
		Shop: shop, Category: "Старое", Product: "Listed phone", ExternalID: 78, Quantity: 4, Price: "10",
	})

	feed := sampleFeed + `
  - id: 78
    category: 15
    model: m
    name: ""
    price: 1
    price_rrc: 1
    quantity: 1
`
	res, err := f.svc.Import(ctx, f.owner, Source{Body: []byte(feed)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, res.Stale)

	var reloaded models.ProductInfo
	require.NoError(t, f.conn.First(&reloaded, "id = ?", kept.ID).Error)
	assert.Equal(t, 4, reloaded.Quantity)
}

func TestImportShopOwnership(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()

	other := dbtest.SeedUser(t, f.conn, "other@example.com", enums.UserTypeShop)
	dbtest.SeedShop(t, f.conn, "Связной", &other.ID)

	_, err := f.svc.Import(ctx, f.owner, Source{Body: []byte(sampleFeed)})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	dbtest.SeedShop(t, f.conn, "Мой магазин", &f.owner.UserID)
	_, err = f.svc.Import(ctx, f.owner, Source{Body: []byte(strings.Replace(sampleFeed, "shop: Связной", "shop: Другой", 1))})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestImportRejectsConcurrentRunForShop(t *testing.T) {
	f := newImportFixture(t)
	f.locker.held["import:связной"] = true

	_, err := f.svc.Import(context.Background(), f.owner, Source{Body: []byte(sampleFeed)})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Empty(t, f.locker.unlocked)
}

func TestImportRequiresSource(t *testing.T) {
	f := newImportFixture(t)
	_, err := f.svc.Import(context.Background(), f.owner, Source{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.yaml":
			_, _ = w.Write([]byte(sampleFeed))
		case "/big.yaml":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(time.Second, 32)
	_, err := fetcher.Fetch(context.Background(), srv.URL+"/big.yaml")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = fetcher.Fetch(context.Background(), srv.URL+"/missing.yaml")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	body, err := NewHTTPFetcher(time.Second, 0).Fetch(context.Background(), srv.URL+"/ok.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(body), "Связной")
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}
