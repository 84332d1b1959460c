package orders

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/metrics"
	"github.com/angelmondragon/shopfront-backend/pkg/outbox"
	"github.com/angelmondragon/shopfront-backend/pkg/outbox/payloads"
)

type ordersFixture struct {
	conn     *gorm.DB
	svc      Service
	reg      *prometheus.Registry
	buyer    *models.User
	partner  *models.User
	shop     *models.Shop
	phone    *models.ProductInfo
	extra    *models.ProductInfo
	contact  *models.Contact
	otherBuy *models.User
}

func newOrdersFixture(t *testing.T) *ordersFixture {
	t.Helper()
	client := dbtest.Client(t)
	conn := client.DB()
	f := &ordersFixture{conn: conn, reg: prometheus.NewRegistry()}

	f.buyer = dbtest.SeedUser(t, conn, "buyer@example.com", enums.UserTypeBuyer)
	f.otherBuy = dbtest.SeedUser(t, conn, "other@example.com", enums.UserTypeBuyer)
	f.partner = dbtest.SeedUser(t, conn, "partner@example.com", enums.UserTypeShop)
	f.shop = dbtest.SeedShop(t, conn, "Связной", &f.partner.ID)
	f.phone = dbtest.SeedOffer(t, conn, dbtest.Offer{Shop: f.shop, Category: "Смартфоны", Product: "iPhone XS", ExternalID: 1, Quantity: 10, Price: "100.50"})
	f.extra = dbtest.SeedOffer(t, conn, dbtest.Offer{Shop: f.shop, Category: "Аксессуары", Product: "Case", ExternalID: 2, Quantity: 3, Price: "10"})

	f.contact = &models.Contact{UserID: f.buyer.ID, City: "Moscow", Street: "Tverskaya", Phone: "+70000000000"}
	require.NoError(t, conn.Create(f.contact).Error)

	svc, err := NewService(ServiceParams{
		Repo:    NewRepository(conn),
		DB:      client,
		Outbox:  outbox.NewService(outbox.NewRepository(conn), nil),
		Metrics: metrics.NewOrderMetrics(f.reg),
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *ordersFixture) placeOrder(t *testing.T) OrderDTO {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.AddItems(ctx, f.buyer.ID, []AddItem{{ProductInfo: f.phone.ID, Quantity: 2}})
	require.NoError(t, err)
	basket, err := f.svc.Basket(ctx, f.buyer.ID)
	require.NoError(t, err)
	require.Len(t, basket, 1)
	order, err := f.svc.Checkout(ctx, f.buyer.ID, CheckoutRequest{ID: basket[0].ID, Contact: f.contact.ID})
	require.NoError(t, err)
	return *order
}

func TestBasketLifecycle(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()

	basket, err := f.svc.Basket(ctx, f.buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, basket)

	n, err := f.svc.AddItems(ctx, f.buyer.ID, []AddItem{
		{ProductInfo: f.phone.ID, Quantity: 2},
		{ProductInfo: f.extra.ID, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	basket, err = f.svc.Basket(ctx, f.buyer.ID)
	require.NoError(t, err)
	require.Len(t, basket, 1)
	assert.Equal(t, enums.OrderStateBasket, basket[0].State)
	require.Len(t, basket[0].OrderedItems, 2)
	assert.Equal(t, "211", basket[0].TotalSum.String())

	_, err = f.svc.AddItems(ctx, f.buyer.ID, []AddItem{{ProductInfo: f.phone.ID, Quantity: 1}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	var phoneLine uuid.UUID
	for _, line := range basket[0].OrderedItems {
		if line.ProductInfo.ID == f.phone.ID {
			phoneLine = line.ID
		}
	}
	updated, err := f.svc.UpdateItems(ctx, f.buyer.ID, []UpdateItem{{ID: phoneLine, Quantity: 5}})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	_, err = f.svc.UpdateItems(ctx, f.buyer.ID, []UpdateItem{{ID: uuid.New(), Quantity: 1}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	deleted, err := f.svc.DeleteItems(ctx, f.buyer.ID, []uuid.UUID{phoneLine, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	basket, err = f.svc.Basket(ctx, f.buyer.ID)
	require.NoError(t, err)
	require.Len(t, basket[0].OrderedItems, 1)
	assert.Equal(t, "10", basket[0].TotalSum.String())

	var baskets int64
	require.NoError(t, f.conn.Model(&models.Order{}).Where("user_id = ? AND state = ?", f.buyer.ID, enums.OrderStateBasket).Count(&baskets).Error)
	assert.Equal(t, int64(1), baskets)
}

func TestUpdateItemsChecksStock(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItems(ctx, f.buyer.ID, []AddItem{{ProductInfo: f.extra.ID, Quantity: 1}})
	require.NoError(t, err)
	var line models.OrderItem
	require.NoError(t, f.conn.Where("product_info_id = ?", f.extra.ID).First(&line).Error)

	_, err = f.svc.UpdateItems(ctx, f.buyer.ID, []UpdateItem{{ID: line.ID, Quantity: 4}})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, map[string][]string{"quantity": {"only 3 available"}}, pkgerrors.As(err).Details())

	require.NoError(t, f.conn.First(&line, "id = ?", line.ID).Error)
	assert.Equal(t, 1, line.Quantity)

	updated, err := f.svc.UpdateItems(ctx, f.buyer.ID, []UpdateItem{{ID: line.ID, Quantity: 3}})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
}

func TestAddItemsRejectsBadLines(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItems(ctx, f.buyer.ID, []AddItem{{ProductInfo: f.phone.ID, Quantity: 0}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.AddItems(ctx, f.buyer.ID, []AddItem{{ProductInfo: uuid.New(), Quantity: 1}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.AddItems(ctx, f.buyer.ID, []AddItem{{ProductInfo: f.extra.ID, Quantity: 4}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.AddItems(ctx, f.buyer.ID, []AddItem{{ProductInfo: f.phone.ID, Quantity: 1}, {ProductInfo: f.phone.ID, Quantity: 1}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	require.NoError(t, f.conn.Model(&models.Shop{}).Where("id = ?", f.shop.ID).Update("state", enums.ShopStateClosed).Error)
	_, err = f.svc.AddItems(ctx, f.buyer.ID, []AddItem{{ProductInfo: f.phone.ID, Quantity: 1}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	var lines int64
	require.NoError(t, f.conn.Model(&models.OrderItem{}).Count(&lines).Error)
	assert.Zero(t, lines)
}

func TestCheckout(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItems(ctx, f.buyer.ID, []AddItem{{ProductInfo: f.phone.ID, Quantity: 2}})
	require.NoError(t, err)
	basket, err := f.svc.Basket(ctx, f.buyer.ID)
	require.NoError(t, err)
	basketID := basket[0].ID

	foreign := &models.Contact{UserID: f.otherBuy.ID, City: "Kazan", Street: "Baumana", Phone: "+71111111111"}
	require.NoError(t, f.conn.Create(foreign).Error)
	_, err = f.svc.Checkout(ctx, f.buyer.ID, CheckoutRequest{ID: basketID, Contact: foreign.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Checkout(ctx, f.otherBuy.ID, CheckoutRequest{ID: basketID, Contact: foreign.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	order, err := f.svc.Checkout(ctx, f.buyer.ID, CheckoutRequest{ID: basketID, Contact: f.contact.ID})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStateNew, order.State)
	require.NotNil(t, order.Contact)
	assert.Equal(t, f.contact.ID, order.Contact.ID)
	assert.Equal(t, "201", order.TotalSum.String())

	_, err = f.svc.Checkout(ctx, f.buyer.ID, CheckoutRequest{ID: basketID, Contact: f.contact.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	basket, err = f.svc.Basket(ctx, f.buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, basket)

	var event models.OutboxEvent
	require.NoError(t, f.conn.Where("aggregate_id = ?", order.ID).First(&event).Error)
	assert.Equal(t, enums.EventOrderStateChanged, event.EventType)
	envelope, err := outbox.DecodeEnvelope(event.Payload)
	require.NoError(t, err)
	var data payloads.OrderStateChangedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, enums.OrderStateBasket, data.From)
	assert.Equal(t, enums.OrderStateNew, data.To)
	assert.Equal(t, "buyer@example.com", data.Email)
	assert.Equal(t, "201.00", data.Total)

	assert.Equal(t, float64(1), transitionCount(t, f.reg, "basket", "new"))
}

func TestCheckoutEmptyBasket(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()

	basket := &models.Order{UserID: f.buyer.ID, State: enums.OrderStateBasket}
	require.NoError(t, f.conn.Create(basket).Error)
	_, err := f.svc.Checkout(ctx, f.buyer.ID, CheckoutRequest{ID: basket.ID, Contact: f.contact.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestOrderListGetAndCancel(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()
	order := f.placeOrder(t)

	list, err := f.svc.List(ctx, f.buyer.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, order.ID, list[0].ID)

	_, err = f.svc.Get(ctx, f.otherBuy.ID, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	got, err := f.svc.Get(ctx, f.buyer.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStateNew, got.State)

	_, err = f.svc.Cancel(ctx, f.otherBuy.ID, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	canceled, err := f.svc.Cancel(ctx, f.buyer.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStateCanceled, canceled.State)

	_, err = f.svc.Cancel(ctx, f.buyer.ID, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestPartnerOrdersAndStateChanges(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()

	otherOwner := dbtest.SeedUser(t, f.conn, "rival@example.com", enums.UserTypeShop)
	rival := dbtest.SeedShop(t, f.conn, "Rival", &otherOwner.ID)
	rivalOffer := dbtest.SeedOffer(t, f.conn, dbtest.Offer{Shop: rival, Category: "Смартфоны", Product: "Pixel", ExternalID: 1, Quantity: 5, Price: "50"})

	_, err := f.svc.AddItems(ctx, f.buyer.ID, []AddItem{{ProductInfo: f.phone.ID, Quantity: 1}, {ProductInfo: rivalOffer.ID, Quantity: 1}})
	require.NoError(t, err)
	basket, err := f.svc.Basket(ctx, f.buyer.ID)
	require.NoError(t, err)
	order, err := f.svc.Checkout(ctx, f.buyer.ID, CheckoutRequest{ID: basket[0].ID, Contact: f.contact.ID})
	require.NoError(t, err)
	assert.Equal(t, "150.5", order.TotalSum.String())

	partnerView, err := f.svc.PartnerOrders(ctx, f.partner.ID)
	require.NoError(t, err)
	require.Len(t, partnerView, 1)
	require.Len(t, partnerView[0].OrderedItems, 1)
	assert.Equal(t, "100.5", partnerView[0].TotalSum.String())

	_, err = f.svc.PartnerChangeState(ctx, f.partner.ID, order.ID, "sent")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.PartnerChangeState(ctx, f.partner.ID, order.ID, "teleported")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	confirmed, err := f.svc.PartnerChangeState(ctx, f.partner.ID, order.ID, "confirmed")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStateConfirmed, confirmed.State)

	_, err = f.svc.PartnerChangeState(ctx, f.buyer.ID, order.ID, "assembled")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	unrelated := dbtest.SeedUser(t, f.conn, "lonely@example.com", enums.UserTypeShop)
	dbtest.SeedShop(t, f.conn, "Lonely", &unrelated.ID)
	_, err = f.svc.PartnerChangeState(ctx, unrelated.ID, order.ID, "assembled")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	staff := Actor{UserID: uuid.New(), Role: "staff"}
	for _, state := range []string{"assembled", "sent", "delivered"} {
		dto, err := f.svc.ChangeState(ctx, staff, order.ID, state)
		require.NoError(t, err)
		assert.Equal(t, enums.OrderState(state), dto.State)
	}
	_, err = f.svc.ChangeState(ctx, staff, order.ID, "canceled")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	var events int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("aggregate_id = ?", order.ID).Count(&events).Error)
	assert.Equal(t, int64(5), events)
}

func TestChangeStateRejectsBaskets(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItems(ctx, f.buyer.ID, []AddItem{{ProductInfo: f.phone.ID, Quantity: 1}})
	require.NoError(t, err)
	basket, err := f.svc.Basket(ctx, f.buyer.ID)
	require.NoError(t, err)

	_, err = f.svc.ChangeState(ctx, Actor{UserID: uuid.New()}, basket[0].ID, "new")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.ChangeState(ctx, Actor{UserID: uuid.New()}, uuid.New(), "new")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestPartnerWithoutShop(t *testing.T) {
	f := newOrdersFixture(t)
	_, err := f.svc.PartnerOrders(context.Background(), f.buyer.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func transitionCount(t *testing.T, reg *prometheus.Registry, from, to string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "order_state_transitions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["from"] == from && labels["to"] == to {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}
