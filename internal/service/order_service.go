package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"shopcore/internal/clock"
	"shopcore/internal/events"
	"shopcore/internal/metrics"
	"shopcore/internal/model"
	"shopcore/internal/promotion"
	"shopcore/internal/repository"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxOrderNumberAttempts = 3

// orderService implements OrderService.
type orderService struct {
	txm        repository.TxManager
	orderRepo  repository.OrderRepository
	carts      CartService
	promotions PromotionService
	stock      StockReserver
	settings   SettingsProvider
	publisher  events.Publisher
	clock      clock.Clock
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	logger     zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	txm repository.TxManager,
	orderRepo repository.OrderRepository,
	carts CartService,
	promotions PromotionService,
	reserver StockReserver,
	settings SettingsProvider,
	publisher events.Publisher,
	clk clock.Clock,
	m *metrics.Metrics,
	logger zerolog.Logger,
) OrderService {
	return &orderService{
		txm:        txm,
		orderRepo:  orderRepo,
		carts:      carts,
		promotions: promotions,
		stock:      reserver,
		settings:   settings,
		publisher:  publisher,
		clock:      clk,
		metrics:    m,
		tracer:     otel.Tracer("shopcore/service"),
		logger:     logger.With().Str("service", "order").Logger(),
	}
}

// CreateFromCart assembles an order from the customer's cart. Either the order,
// its items, every reservation and every promotion redemption commit together,
// or nothing does. The cart is cleared only after commit.
func (s *orderService) CreateFromCart(ctx context.Context, customerID int64, req model.CheckoutRequest) (*model.Order, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "order.CreateFromCart",
		trace.WithAttributes(attribute.Int64("customer.id", customerID)))
	defer span.End()

	order, err := s.createFromCart(ctx, customerID, req)
	s.metrics.ObserveCheckout(start)
	if err != nil {
		kind := string(model.KindOf(err))
		if kind == "" {
			kind = "Internal"
		}
		s.metrics.CheckoutFailures.WithLabelValues(kind).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("order.number", order.OrderNumber))
	s.metrics.OrdersCreated.Inc()
	return order, nil
}

func (s *orderService) createFromCart(ctx context.Context, customerID int64, req model.CheckoutRequest) (*model.Order, error) {
	if customerID <= 0 {
		return nil, model.Errorf(model.KindValidation, "customer id must be positive")
	}
	address := strings.TrimSpace(req.ShippingAddress)
	if address == "" {
		return nil, model.Errorf(model.KindValidation, "shipping address is required")
	}

	c, err := s.carts.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, model.Errorf(model.KindEmptyCart, "cart of customer %d is empty", customerID)
	}

	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read shop settings")
	}

	results, err := s.validatePromotions(ctx, customerID, c.Items, req)
	if err != nil {
		return nil, err
	}

	discount := decimal.Zero
	for _, res := range results {
		discount = discount.Add(res.DiscountAmount)
	}
	totals := ComputeTotals(c.Items, discount, settings)

	now := s.clock.Now()
	order := &model.Order{
		ID:              uuid.New(),
		CustomerID:      customerID,
		Subtotal:        totals.Subtotal,
		DiscountAmount:  totals.DiscountAmount,
		ShippingCost:    totals.ShippingCost,
		TaxAmount:       totals.TaxAmount,
		TotalAmount:     totals.TotalAmount,
		Status:          model.StatusPending,
		ShippingAddress: address,
		Notes:           req.Notes,
		CreatedBy:       req.ActorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, res := range results {
		if res.Kind == model.PromotionCoupon {
			id := res.PromotionID
			order.CouponID = &id
		}
	}
	order.Items = make([]model.OrderItem, len(c.Items))
	for i, item := range c.Items {
		order.Items[i] = model.OrderItem{
			ID:           uuid.New(),
			OrderID:      order.ID,
			ProductID:    item.ProductID,
			ExternalCode: item.ExternalCode,
			ProductName:  item.Name,
			Quantity:     item.Quantity,
			UnitPrice:    item.CapturedPrice,
			LineTotal:    model.RoundMoney(item.LineTotal()),
		}
	}

	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		order.OrderNumber = newOrderNumber(now)
		err = s.txm.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			return s.assemble(ctx, tx, order, results, req.ActorID)
		})
		if !errors.Is(err, repository.ErrDuplicateOrderNumber) {
			break
		}
		s.logger.Warn().
			Str("order_number", order.OrderNumber).
			Int("attempt", attempt).
			Msg("order number collision, regenerating")
	}
	if err != nil {
		s.logger.Warn().
			Err(err).
			Int64("customer_id", customerID).
			Msg("checkout rejected")
		return nil, err
	}

	if err := s.carts.Clear(ctx, customerID); err != nil {
		s.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Int64("customer_id", customerID).
			Msg("order committed but cart could not be cleared")
	}
	s.publish(ctx, events.OrderCreated, order, "", req.ActorID)

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Int("item_count", len(order.Items)).
		Str("total", order.TotalAmount.StringFixed(2)).
		Msg("order created successfully")

	return order, nil
}

// validatePromotions evaluates the requested coupon and deals without side
// effects.
func (s *orderService) validatePromotions(ctx context.Context, customerID int64, items []model.CartItem, req model.CheckoutRequest) ([]*promotion.Result, error) {
	var results []*promotion.Result

	if req.CouponCode != nil && strings.TrimSpace(*req.CouponCode) != "" {
		res, err := s.promotions.ValidateCoupon(ctx, strings.TrimSpace(*req.CouponCode), items, &customerID)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	seen := make(map[int64]bool, len(req.DealIDs))
	for _, dealID := range req.DealIDs {
		if seen[dealID] {
			continue
		}
		seen[dealID] = true

		res, err := s.promotions.ValidateDeal(ctx, dealID, items, &customerID)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// assemble is the transactional part of checkout. It may run more than once.
func (s *orderService) assemble(ctx context.Context, tx pgx.Tx, o *model.Order, results []*promotion.Result, actorID *int64) error {
	if err := s.checkAvailability(ctx, tx, o); err != nil {
		return err
	}

	if err := s.orderRepo.CreateOrder(ctx, tx, o); err != nil {
		return err
	}
	if err := s.orderRepo.CreateOrderItems(ctx, tx, o.Items); err != nil {
		return err
	}

	if _, err := s.stock.ReserveOrder(ctx, tx, o, actorID); err != nil {
		return err
	}

	var dealUsages []model.UsageRecord
	for _, res := range results {
		record, err := s.promotions.RecordUsage(ctx, tx, res, o.ID, &o.CustomerID)
		if err != nil {
			return err
		}
		if record.Kind == model.PromotionDeal {
			dealUsages = append(dealUsages, *record)
		}
	}
	o.DealUsages = dealUsages
	return nil
}

// checkAvailability locks every stocked product in ascending id order and
// verifies all of them before any stock moves.
func (s *orderService) checkAvailability(ctx context.Context, tx pgx.Tx, o *model.Order) error {
	quantities := o.StockedQuantities()
	ids := make([]int64, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	for _, id := range ids {
		requested := quantities[id]
		err := s.stock.WithLock(ctx, tx, id, func(_ context.Context, _ pgx.Tx, p *model.Product) error {
			if !p.IsActive {
				return model.Errorf(model.KindUnavailable, "product %d (%s) is not available", p.ID, p.Name)
			}
			if p.StockQuantity < requested {
				return model.Errorf(model.KindInsufficientStock,
					"insufficient stock for product %d (%s): available %d, requested %d",
					p.ID, p.Name, p.StockQuantity, requested)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// GetByID retrieves an order with its items and deal usages.
func (s *orderService) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, errors.Wrap(err, "failed to get order")
	}

	if order == nil {
		s.logger.Debug().Str("order_id", id.String()).Msg("order not found")
		return nil, model.Errorf(model.KindNotFound, "order %s not found", id)
	}

	return order, nil
}

// publish emits an order event. Failures are logged only; the change is
// already committed.
func (s *orderService) publish(ctx context.Context, t events.Type, o *model.Order, previous model.OrderStatus, actorID *int64) {
	event := events.NewOrderEvent(t, o, previous, actorID, s.clock.Now())
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error().
			Err(err).
			Str("event", string(t)).
			Str("order_id", o.ID.String()).
			Msg("failed to publish order event")
	}
}

// newOrderNumber formats ORD-YYYYMMDD-XXXXXXXX from the UTC date and eight
// random hex digits.
func newOrderNumber(now time.Time) string {
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), random[:8])
}
