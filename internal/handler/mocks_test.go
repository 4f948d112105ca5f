package handler

import (
	"context"

	"shopcore/internal/cart"
	"shopcore/internal/model"
	"shopcore/internal/promotion"
	"shopcore/internal/purchase"
	"shopcore/internal/stock"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
)

// MockProductService is a mock implementation of ProductService.
type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) GetAll(ctx context.Context, page model.Page) ([]model.Product, error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockProductService) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

// MockStockService is a mock implementation of StockService.
type MockStockService struct {
	mock.Mock
}

func (m *MockStockService) Adjust(ctx context.Context, req stock.AdjustRequest) (*model.StockChange, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StockChange), args.Error(1)
}

func (m *MockStockService) SetAbsolute(ctx context.Context, productID int64, newQuantity int, reason string, actorID *int64) (*model.StockChange, error) {
	args := m.Called(ctx, productID, newQuantity, reason, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StockChange), args.Error(1)
}

func (m *MockStockService) BulkAdjust(ctx context.Context, reqs []stock.AdjustRequest) ([]model.StockChange, error) {
	args := m.Called(ctx, reqs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.StockChange), args.Error(1)
}

func (m *MockStockService) History(ctx context.Context, productID int64, limit, offset int) ([]model.LedgerEntry, error) {
	args := m.Called(ctx, productID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.LedgerEntry), args.Error(1)
}

// MockPurchaseService is a mock implementation of PurchaseService.
type MockPurchaseService struct {
	mock.Mock
}

func (m *MockPurchaseService) Import(ctx context.Context, source string, actorID *int64) (*purchase.Result, error) {
	args := m.Called(ctx, source, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*purchase.Result), args.Error(1)
}

func (m *MockPurchaseService) ImportAll(ctx context.Context, sources []string, actorID *int64) ([]purchase.Result, error) {
	args := m.Called(ctx, sources, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]purchase.Result), args.Error(1)
}

// MockCartService is a mock implementation of CartService.
type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) Get(ctx context.Context, customerID int64) (*model.Cart, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

func (m *MockCartService) AddItem(ctx context.Context, customerID int64, req cart.AddItemRequest) (*model.Cart, error) {
	args := m.Called(ctx, customerID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

func (m *MockCartService) RemoveItem(ctx context.Context, customerID, productID int64) (*model.Cart, error) {
	args := m.Called(ctx, customerID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Cart), args.Error(1)
}

func (m *MockCartService) Clear(ctx context.Context, customerID int64) error {
	return m.Called(ctx, customerID).Error(0)
}

// MockPromotionService is a mock implementation of PromotionService.
type MockPromotionService struct {
	mock.Mock
}

func (m *MockPromotionService) ValidateCoupon(ctx context.Context, code string, items []model.CartItem, customerID *int64) (*promotion.Result, error) {
	args := m.Called(ctx, code, items, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*promotion.Result), args.Error(1)
}

func (m *MockPromotionService) ValidateDeal(ctx context.Context, id int64, items []model.CartItem, customerID *int64) (*promotion.Result, error) {
	args := m.Called(ctx, id, items, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*promotion.Result), args.Error(1)
}

func (m *MockPromotionService) RecordUsage(ctx context.Context, tx pgx.Tx, res *promotion.Result, orderID uuid.UUID, customerID *int64) (*model.UsageRecord, error) {
	args := m.Called(ctx, tx, res, orderID, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UsageRecord), args.Error(1)
}

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateFromCart(ctx context.Context, customerID int64, req model.CheckoutRequest) (*model.Order, error) {
	args := m.Called(ctx, customerID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) Transition(ctx context.Context, id uuid.UUID, target model.OrderStatus, actorID *int64) (*model.Order, error) {
	args := m.Called(ctx, id, target, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) Cancel(ctx context.Context, id uuid.UUID, actorID *int64) (*model.Order, error) {
	args := m.Called(ctx, id, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) Delete(ctx context.Context, id uuid.UUID, actorID *int64) error {
	return m.Called(ctx, id, actorID).Error(0)
}
