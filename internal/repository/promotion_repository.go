package repository

import (
	"context"

	"shopcore/internal/model"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const couponColumns = `id, code, type, discount_value, minimum_purchase, maximum_discount,
	usage_limit, usage_limit_per_customer, usage_count, valid_from, valid_until,
	applicable_products, applicable_categories, is_active, created_at, updated_at`

const dealColumns = `id, name, type, discount_type, discount_value, minimum_purchase_amount,
	maximum_discount, buy_quantity, get_quantity, get_product_id, usage_limit,
	usage_limit_per_customer, usage_count, valid_from, valid_until, product_ids,
	category_ids, is_active, created_at, updated_at`

// promotionRepository implements PromotionRepository using PostgreSQL.
type promotionRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPromotionRepository creates a new PostgreSQL-backed promotion repository.
func NewPromotionRepository(pool *pgxpool.Pool, logger zerolog.Logger) PromotionRepository {
	return &promotionRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "promotion").Logger(),
	}
}

// usageTable maps a promotion kind to its table and usage table.
func usageTable(kind model.PromotionKind) (promoTable, usages, fk string, err error) {
	switch kind {
	case model.PromotionCoupon:
		return "coupons", "coupon_usages", "coupon_id", nil
	case model.PromotionDeal:
		return "deals", "deal_usages", "deal_id", nil
	}
	return "", "", "", model.Errorf(model.KindValidation, "unknown promotion kind %q", kind)
}

func decimalPtr(n decimal.NullDecimal) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	d := n.Decimal
	return &d
}

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var (
		c       model.Coupon
		ctype   string
		minimum decimal.NullDecimal
		maximum decimal.NullDecimal
	)
	err := row.Scan(
		&c.ID,
		&c.Code,
		&ctype,
		&c.DiscountValue,
		&minimum,
		&maximum,
		&c.UsageLimit,
		&c.UsageLimitPerCustomer,
		&c.UsageCount,
		&c.ValidFrom,
		&c.ValidUntil,
		&c.ApplicableProducts,
		&c.ApplicableCategories,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Type = model.DiscountType(ctype)
	c.MinimumPurchase = decimalPtr(minimum)
	c.MaximumDiscount = decimalPtr(maximum)
	return &c, nil
}

func scanDeal(row pgx.Row) (*model.Deal, error) {
	var (
		d        model.Deal
		dtype    string
		discType string
		minimum  decimal.NullDecimal
		maximum  decimal.NullDecimal
	)
	err := row.Scan(
		&d.ID,
		&d.Name,
		&dtype,
		&discType,
		&d.DiscountValue,
		&minimum,
		&maximum,
		&d.BuyQuantity,
		&d.GetQuantity,
		&d.GetProductID,
		&d.UsageLimit,
		&d.UsageLimitPerCustomer,
		&d.UsageCount,
		&d.ValidFrom,
		&d.ValidUntil,
		&d.ProductIDs,
		&d.CategoryIDs,
		&d.IsActive,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Type = model.DealType(dtype)
	d.DiscountType = model.DiscountType(discType)
	d.MinimumPurchaseAmount = decimalPtr(minimum)
	d.MaximumDiscount = decimalPtr(maximum)
	return &d, nil
}

// GetCouponByCode retrieves a coupon by its unique code. Returns nil when absent.
func (r *promotionRepository) GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`

	c, err := scanCoupon(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("coupon_code", code).Msg("failed to query coupon")
		return nil, errors.Wrap(err, "failed to query coupon")
	}
	return c, nil
}

// GetDealByID retrieves a deal. Returns nil when absent.
func (r *promotionRepository) GetDealByID(ctx context.Context, id int64) (*model.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE id = $1`

	d, err := scanDeal(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		r.logger.Error().Err(err).Int64("deal_id", id).Msg("failed to query deal")
		return nil, errors.Wrap(err, "failed to query deal")
	}
	return d, nil
}

// LockCoupon reads a coupon with SELECT ... FOR UPDATE.
func (r *promotionRepository) LockCoupon(ctx context.Context, tx pgx.Tx, id int64) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1 FOR UPDATE`

	c, err := scanCoupon(tx.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		r.logger.Error().Err(err).Int64("coupon_id", id).Msg("failed to lock coupon")
		return nil, errors.Wrap(err, "failed to lock coupon")
	}
	return c, nil
}

// LockDeal reads a deal with SELECT ... FOR UPDATE.
func (r *promotionRepository) LockDeal(ctx context.Context, tx pgx.Tx, id int64) (*model.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE id = $1 FOR UPDATE`

	d, err := scanDeal(tx.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		r.logger.Error().Err(err).Int64("deal_id", id).Msg("failed to lock deal")
		return nil, errors.Wrap(err, "failed to lock deal")
	}
	return d, nil
}

// CountCustomerUsage counts a customer's redemptions of a promotion.
func (r *promotionRepository) CountCustomerUsage(ctx context.Context, kind model.PromotionKind, promotionID, customerID int64) (int, error) {
	return r.countUsage(ctx, r.pool, kind, promotionID, customerID)
}

// CountCustomerUsageTx counts a customer's redemptions inside tx.
func (r *promotionRepository) CountCustomerUsageTx(ctx context.Context, tx pgx.Tx, kind model.PromotionKind, promotionID, customerID int64) (int, error) {
	return r.countUsage(ctx, tx, kind, promotionID, customerID)
}

func (r *promotionRepository) countUsage(ctx context.Context, db querier, kind model.PromotionKind, promotionID, customerID int64) (int, error) {
	_, usages, fk, err := usageTable(kind)
	if err != nil {
		return 0, err
	}

	query := `SELECT COUNT(*) FROM ` + usages + ` WHERE ` + fk + ` = $1 AND customer_id = $2`

	var n int
	if err := db.QueryRow(ctx, query, promotionID, customerID).Scan(&n); err != nil {
		r.logger.Error().Err(err).
			Str("kind", string(kind)).
			Int64("promotion_id", promotionID).
			Int64("customer_id", customerID).
			Msg("failed to count promotion usage")
		return 0, errors.Wrap(err, "failed to count promotion usage")
	}
	return n, nil
}

// IncrementUsage adds one to usage_count. The guard keeps the count within
// usage_limit even if a caller skipped the locked re-check.
func (r *promotionRepository) IncrementUsage(ctx context.Context, tx pgx.Tx, kind model.PromotionKind, promotionID int64) (int, error) {
	table, _, _, err := usageTable(kind)
	if err != nil {
		return 0, err
	}

	query := `
		UPDATE ` + table + `
		SET usage_count = usage_count + 1, updated_at = NOW()
		WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)
		RETURNING usage_count
	`

	var count int
	if err := tx.QueryRow(ctx, query, promotionID).Scan(&count); err != nil {
		if isNoRows(err) {
			return 0, model.Errorf(model.KindInvalidPromotion, "%s %d has reached its usage limit", kind, promotionID)
		}
		r.logger.Error().Err(err).Str("kind", string(kind)).Int64("promotion_id", promotionID).Msg("failed to increment usage")
		return 0, errors.Wrap(err, "failed to increment promotion usage")
	}
	return count, nil
}

// InsertUsage writes one redemption record within tx.
func (r *promotionRepository) InsertUsage(ctx context.Context, tx pgx.Tx, u *model.UsageRecord) error {
	_, usages, fk, err := usageTable(u.Kind)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO ` + usages + ` (id, ` + fk + `, order_id, customer_id, discount_amount,
			total_before_discount, total_after_discount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = tx.Exec(ctx, query,
		u.ID,
		u.PromotionID,
		u.OrderID,
		u.CustomerID,
		u.DiscountAmount,
		u.TotalBeforeDiscount,
		u.TotalAfterDiscount,
		u.CreatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).
			Str("kind", string(u.Kind)).
			Int64("promotion_id", u.PromotionID).
			Str("order_id", u.OrderID.String()).
			Msg("failed to insert usage record")
		return errors.Wrap(err, "failed to insert usage record")
	}
	return nil
}
