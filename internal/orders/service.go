package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/metrics"
	"github.com/angelmondragon/shopfront-backend/pkg/outbox"
	"github.com/angelmondragon/shopfront-backend/pkg/outbox/payloads"
)

const basketIndex = "ux_orders_open_basket"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type transitionRecorder interface {
	IncTransition(from, to string)
}

// Service covers the buyer basket, checkout and the fulfillment state machine.
type Service interface {
	Basket(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error)
	AddItems(ctx context.Context, userID uuid.UUID, items []AddItem) (int, error)
	UpdateItems(ctx context.Context, userID uuid.UUID, items []UpdateItem) (int, error)
	DeleteItems(ctx context.Context, userID uuid.UUID, itemIDs []uuid.UUID) (int64, error)
	Checkout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*OrderDTO, error)
	List(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	PartnerOrders(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error)
	PartnerChangeState(ctx context.Context, userID, orderID uuid.UUID, state string) (*OrderDTO, error)
	ChangeState(ctx context.Context, actor Actor, orderID uuid.UUID, state string) (*OrderDTO, error)
}

type ServiceParams struct {
	Repo    Repository
	DB      txRunner
	Outbox  outbox.Emitter
	Metrics transitionRecorder
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outbox.Emitter
	metrics transitionRecorder
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	rec := params.Metrics
	if rec == nil {
		rec = metrics.NewOrderMetrics(nil)
	}
	return &service{repo: params.Repo, tx: params.DB, outbox: params.Outbox, metrics: rec}, nil
}

func (s *service) Basket(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error) {
	basket, err := s.repo.FindBasket(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []OrderDTO{}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load basket")
	}
	return []OrderDTO{FromModel(basket, nil)}, nil
}

func (s *service) AddItems(ctx context.Context, userID uuid.UUID, items []AddItem) (int, error) {
	if len(items) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "no items given")
	}
	basketID, err := s.ensureBasket(ctx, userID)
	if err != nil {
		return 0, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		basket, err := repo.LockOrder(ctx, basketID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock basket")
		}
		if basket.State != enums.OrderStateBasket {
			return pkgerrors.New(pkgerrors.CodeConflict, "basket was checked out concurrently, retry")
		}
		existing, err := repo.FindItems(ctx, basketID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load basket lines")
		}
		inBasket := make(map[uuid.UUID]bool, len(existing))
		for _, item := range existing {
			inBasket[item.ProductInfoID] = true
		}

		lines := make([]models.OrderItem, 0, len(items))
		for _, item := range items {
			if item.Quantity <= 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
					WithDetails(map[string][]string{"quantity": {"must be greater than 0"}})
			}
			if inBasket[item.ProductInfo] {
				return pkgerrors.New(pkgerrors.CodeConflict, "product is already in the basket, update its quantity instead")
			}
			info, err := repo.FindProductInfo(ctx, item.ProductInfo)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeValidation, "product not found").
						WithDetails(map[string][]string{"product_info": {item.ProductInfo.String() + " does not exist"}})
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			if info.Shop == nil || !info.Shop.IsOpen() {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "shop is not accepting orders")
			}
			if err := checkStock(info, item.Quantity); err != nil {
				return err
			}
			inBasket[item.ProductInfo] = true
			lines = append(lines, models.OrderItem{OrderID: basketID, ProductInfoID: item.ProductInfo, Quantity: item.Quantity})
		}
		if err := repo.CreateItems(ctx, lines); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "product is already in the basket, update its quantity instead")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add basket lines")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// ensureBasket returns the caller's basket id, creating the basket on first use.
// It runs outside the caller's transaction so a lost insert race on postgres
// does not abort it.
func (s *service) ensureBasket(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	basket, err := s.repo.FindBasket(ctx, userID)
	if err == nil {
		return basket.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load basket")
	}
	order := &models.Order{UserID: userID, State: enums.OrderStateBasket}
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		if db.IsUniqueViolation(err, basketIndex) {
			basket, err = s.repo.FindBasket(ctx, userID)
			if err == nil {
				return basket.ID, nil
			}
		}
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create basket")
	}
	return order.ID, nil
}

func (s *service) UpdateItems(ctx context.Context, userID uuid.UUID, items []UpdateItem) (int, error) {
	if len(items) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "no items given")
	}
	basket, err := s.basketFor(ctx, s.repo, userID)
	if err != nil {
		return 0, err
	}
	updated := 0
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindItems(ctx, basket.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load basket lines")
		}
		lines := make(map[uuid.UUID]uuid.UUID, len(existing))
		for _, line := range existing {
			lines[line.ID] = line.ProductInfoID
		}
		for _, item := range items {
			if item.Quantity <= 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
					WithDetails(map[string][]string{"quantity": {"must be greater than 0"}})
			}
			infoID, ok := lines[item.ID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "basket line not found")
			}
			info, err := repo.FindProductInfo(ctx, infoID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			if err := checkStock(info, item.Quantity); err != nil {
				return err
			}
			n, err := repo.UpdateItemQuantity(ctx, basket.ID, item.ID, item.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update basket line")
			}
			if n == 0 {
				return pkgerrors.New(pkgerrors.CodeNotFound, "basket line not found")
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func checkStock(info *models.ProductInfo, quantity int) error {
	if quantity > info.Quantity {
		return pkgerrors.New(pkgerrors.CodeValidation, "not enough stock").
			WithDetails(map[string][]string{"quantity": {fmt.Sprintf("only %d available", info.Quantity)}})
	}
	return nil
}

func (s *service) DeleteItems(ctx context.Context, userID uuid.UUID, itemIDs []uuid.UUID) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "no items given")
	}
	basket, err := s.basketFor(ctx, s.repo, userID)
	if err != nil {
		return 0, err
	}
	deleted, err := s.repo.DeleteItems(ctx, basket.ID, itemIDs)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete basket lines")
	}
	return deleted, nil
}

func (s *service) basketFor(ctx context.Context, repo Repository, userID uuid.UUID) (*models.Order, error) {
	basket, err := repo.FindBasket(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "basket is empty")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load basket")
	}
	return basket, nil
}

func (s *service) Checkout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*OrderDTO, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := s.ownedOrder(ctx, repo, userID, req.ID)
		if err != nil {
			return err
		}
		if locked.State != enums.OrderStateBasket {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not a basket")
		}
		items, err := repo.FindItems(ctx, locked.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load basket lines")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "basket is empty")
		}
		owned, err := repo.ContactOwnedBy(ctx, req.Contact, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contact")
		}
		if !owned {
			return pkgerrors.New(pkgerrors.CodeValidation, "contact not found").
				WithDetails(map[string][]string{"contact": {"does not exist"}})
		}
		order, err = s.transition(ctx, repo, tx, locked, enums.OrderStateNew, &req.Contact, Actor{UserID: userID, Role: string(enums.UserTypeBuyer)})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransition(string(enums.OrderStateBasket), string(enums.OrderStateNew))
	dto := FromModel(order, nil)
	return &dto, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i], nil))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.UserID != userID || order.State == enums.OrderStateBasket {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	dto := FromModel(order, nil)
	return &dto, nil
}

func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	var (
		order *models.Order
		from  enums.OrderState
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := s.ownedOrder(ctx, repo, userID, orderID)
		if err != nil {
			return err
		}
		if locked.State == enums.OrderStateBasket {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		from = locked.State
		order, err = s.transition(ctx, repo, tx, locked, enums.OrderStateCanceled, nil, Actor{UserID: userID, Role: string(enums.UserTypeBuyer)})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransition(string(from), string(enums.OrderStateCanceled))
	dto := FromModel(order, nil)
	return &dto, nil
}

func (s *service) PartnerOrders(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error) {
	shop, err := s.partnerShop(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByShop(ctx, shop.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shop orders")
	}
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i], shopLines(shop.ID)))
	}
	return out, nil
}

func (s *service) PartnerChangeState(ctx context.Context, userID, orderID uuid.UUID, raw string) (*OrderDTO, error) {
	to, err := parseState(raw)
	if err != nil {
		return nil, err
	}
	shop, err := s.partnerShop(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	var (
		order *models.Order
		from  enums.OrderState
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockOrder(ctx, orderID)
		if err != nil {
			return notFoundOr(err, "load order")
		}
		has, err := repo.OrderHasShop(ctx, orderID, shop.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order lines")
		}
		if !has || locked.State == enums.OrderStateBasket {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		from = locked.State
		order, err = s.transition(ctx, repo, tx, locked, to, nil, Actor{UserID: userID, Role: string(enums.UserTypeShop)})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransition(string(from), string(to))
	dto := FromModel(order, shopLines(shop.ID))
	return &dto, nil
}

// ChangeState moves any placed order through the state machine on behalf of
// staff. Baskets only leave their state through Checkout.
func (s *service) ChangeState(ctx context.Context, actor Actor, orderID uuid.UUID, raw string) (*OrderDTO, error) {
	to, err := parseState(raw)
	if err != nil {
		return nil, err
	}
	var (
		order *models.Order
		from  enums.OrderState
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockOrder(ctx, orderID)
		if err != nil {
			return notFoundOr(err, "load order")
		}
		if locked.State == enums.OrderStateBasket {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "baskets are placed through checkout")
		}
		from = locked.State
		order, err = s.transition(ctx, repo, tx, locked, to, nil, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransition(string(from), string(to))
	dto := FromModel(order, nil)
	return &dto, nil
}

// transition validates and applies a state change on a locked order, queues
// the notification event and returns the reloaded order.
func (s *service) transition(ctx context.Context, repo Repository, tx *gorm.DB, order *models.Order, to enums.OrderState, contactID *uuid.UUID, actor Actor) (*models.Order, error) {
	from := order.State
	if err := ValidateTransition(from, to); err != nil {
		return nil, err
	}
	if err := repo.UpdateState(ctx, order.ID, to, contactID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order state")
	}
	reloaded, err := repo.FindOrder(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	email, err := repo.FindUserEmail(ctx, reloaded.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderStateChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   reloaded.ID,
		Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role},
		Data: payloads.OrderStateChangedEvent{
			OrderID: reloaded.ID,
			UserID:  reloaded.UserID,
			Email:   email,
			From:    from,
			To:      to,
			Total:   orderTotal(reloaded).StringFixed(2),
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order event")
	}
	return reloaded, nil
}

func (s *service) ownedOrder(ctx context.Context, repo Repository, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.LockOrder(ctx, orderID)
	if err != nil {
		return nil, notFoundOr(err, "load order")
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) partnerShop(ctx context.Context, repo Repository, userID uuid.UUID) (*models.Shop, error) {
	shop, err := repo.FindShopByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no shop is linked to this account")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shop")
	}
	return shop, nil
}

func shopLines(shopID uuid.UUID) func(models.OrderItem) bool {
	return func(item models.OrderItem) bool {
		return item.ProductInfo != nil && item.ProductInfo.ShopID == shopID
	}
}

func parseState(raw string) (enums.OrderState, error) {
	state, err := enums.ParseOrderState(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown order state").
			WithDetails(map[string][]string{"state": {"must be one of new, confirmed, assembled, sent, delivered, canceled"}})
	}
	return state, nil
}

func notFoundOr(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
