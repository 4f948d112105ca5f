// Package cart keeps customer carts in Redis. A cart is a hash keyed by
// customer; each field is one line stored as JSON with the price captured
// when the line was first added.
package cart

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"shopcore/internal/clock"
	"shopcore/internal/model"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	keyPrefix    = "shopcore:cart:"
	updatedField = "_updated_at"
	maxTxRetries = 5
)

// Catalog is the product lookup used to capture prices.
type Catalog interface {
	GetByID(ctx context.Context, id int64) (*model.Product, error)
}

// AddItemRequest adds either a catalogue product or a dropship line. Dropship
// lines have no ProductID and must carry their own name and price.
type AddItemRequest struct {
	ProductID    *int64           `json:"productId,omitempty"`
	ExternalCode string           `json:"externalCode,omitempty"`
	Name         string           `json:"name,omitempty"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	Quantity     int              `json:"quantity"`
}

// Store is the Redis backed cart provider.
type Store struct {
	client  *redis.Client
	catalog Catalog
	ttl     time.Duration
	clock   clock.Clock
	logger  zerolog.Logger
}

// NewStore creates a cart store. Carts expire ttl after their last change.
func NewStore(client *redis.Client, catalog Catalog, ttl time.Duration, clk clock.Clock, logger zerolog.Logger) *Store {
	return &Store{
		client:  client,
		catalog: catalog,
		ttl:     ttl,
		clock:   clk,
		logger:  logger.With().Str("component", "cart_store").Logger(),
	}
}

func cartKey(customerID int64) string {
	return keyPrefix + strconv.FormatInt(customerID, 10)
}

func lineField(item model.CartItem) string {
	if item.ProductID != nil {
		return "p:" + strconv.FormatInt(*item.ProductID, 10)
	}
	return "x:" + item.ExternalCode
}

// Get returns the customer's cart. A missing cart is an empty cart.
func (s *Store) Get(ctx context.Context, customerID int64) (*model.Cart, error) {
	fields, err := s.client.HGetAll(ctx, cartKey(customerID)).Result()
	if err != nil {
		s.logger.Error().Err(err).Int64("customer_id", customerID).Msg("failed to read cart")
		return nil, errors.Wrap(err, "failed to read cart")
	}

	cart := &model.Cart{CustomerID: customerID, Items: []model.CartItem{}}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == updatedField {
			if ts, err := time.Parse(time.RFC3339Nano, fields[k]); err == nil {
				cart.UpdatedAt = ts
			}
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		var item model.CartItem
		if err := json.Unmarshal([]byte(fields[k]), &item); err != nil {
			s.logger.Error().Err(err).Int64("customer_id", customerID).Str("line", k).Msg("corrupt cart line")
			return nil, errors.Wrapf(err, "corrupt cart line %s", k)
		}
		cart.Items = append(cart.Items, item)
	}
	return cart, nil
}

// AddItem adds a line, or increases the quantity of an existing line for the
// same product. The captured price of an existing line is kept.
func (s *Store) AddItem(ctx context.Context, customerID int64, req AddItemRequest) (*model.Cart, error) {
	item, err := s.capture(ctx, req)
	if err != nil {
		return nil, err
	}

	key := cartKey(customerID)
	field := lineField(item)

	update := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, field).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var existing model.CartItem
			if err := json.Unmarshal([]byte(raw), &existing); err != nil {
				return errors.Wrapf(err, "corrupt cart line %s", field)
			}
			item.Quantity += existing.Quantity
			item.CapturedPrice = existing.CapturedPrice
		}

		payload, err := json.Marshal(item)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, field, payload, updatedField, s.clock.Now().Format(time.RFC3339Nano))
			pipe.Expire(ctx, key, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = s.client.Watch(ctx, update, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("customer_id", customerID).Str("line", field).Msg("failed to add cart item")
		return nil, errors.Wrap(err, "failed to add cart item")
	}

	s.logger.Debug().Int64("customer_id", customerID).Str("line", field).Int("quantity", req.Quantity).Msg("cart item added")
	return s.Get(ctx, customerID)
}

// RemoveItem drops the line of a catalogue product.
func (s *Store) RemoveItem(ctx context.Context, customerID, productID int64) (*model.Cart, error) {
	return s.removeField(ctx, customerID, "p:"+strconv.FormatInt(productID, 10))
}

// RemoveExternal drops a dropship line.
func (s *Store) RemoveExternal(ctx context.Context, customerID int64, externalCode string) (*model.Cart, error) {
	return s.removeField(ctx, customerID, "x:"+externalCode)
}

func (s *Store) removeField(ctx context.Context, customerID int64, field string) (*model.Cart, error) {
	key := cartKey(customerID)
	removed, err := s.client.HDel(ctx, key, field).Result()
	if err != nil {
		s.logger.Error().Err(err).Int64("customer_id", customerID).Str("line", field).Msg("failed to remove cart item")
		return nil, errors.Wrap(err, "failed to remove cart item")
	}
	if removed == 0 {
		return nil, model.Errorf(model.KindNotFound, "cart of customer %d has no line %s", customerID, field)
	}
	return s.Get(ctx, customerID)
}

// Clear deletes the whole cart.
func (s *Store) Clear(ctx context.Context, customerID int64) error {
	if err := s.client.Del(ctx, cartKey(customerID)).Err(); err != nil {
		s.logger.Error().Err(err).Int64("customer_id", customerID).Msg("failed to clear cart")
		return errors.Wrap(err, "failed to clear cart")
	}
	return nil
}

// capture builds the line to store, reading name and price from the catalogue
// for product lines.
func (s *Store) capture(ctx context.Context, req AddItemRequest) (model.CartItem, error) {
	if req.Quantity <= 0 {
		return model.CartItem{}, model.Errorf(model.KindValidation, "quantity must be positive")
	}

	if req.ProductID == nil {
		code := strings.TrimSpace(req.ExternalCode)
		if code == "" {
			return model.CartItem{}, model.Errorf(model.KindValidation, "either productId or externalCode is required")
		}
		if req.Name == "" || req.Price == nil || req.Price.IsNegative() {
			return model.CartItem{}, model.Errorf(model.KindValidation, "dropship line %s needs a name and a non-negative price", code)
		}
		return model.CartItem{
			ExternalCode:  code,
			Name:          req.Name,
			Quantity:      req.Quantity,
			CapturedPrice: model.RoundMoney(*req.Price),
		}, nil
	}

	if req.ExternalCode != "" {
		return model.CartItem{}, model.Errorf(model.KindValidation, "productId and externalCode are mutually exclusive")
	}

	p, err := s.catalog.GetByID(ctx, *req.ProductID)
	if err != nil {
		return model.CartItem{}, err
	}
	if p == nil {
		return model.CartItem{}, model.Errorf(model.KindNotFound, "product %d not found", *req.ProductID)
	}
	if !p.IsActive {
		return model.CartItem{}, model.Errorf(model.KindUnavailable, "product %d (%s) is not available", p.ID, p.Name)
	}

	id := p.ID
	return model.CartItem{
		ProductID:     &id,
		Name:          p.Name,
		Quantity:      req.Quantity,
		CapturedPrice: p.Price,
	}, nil
}
