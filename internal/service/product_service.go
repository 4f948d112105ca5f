package service

import (
	"context"

	"shopcore/internal/model"
	"shopcore/internal/repository"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// catalog serves product reads. Stock on the returned products is a snapshot;
// only the stock manager changes it.
type catalog struct {
	products repository.ProductRepository
	logger   zerolog.Logger
}

// NewProductService creates the catalogue read service.
func NewProductService(products repository.ProductRepository, logger zerolog.Logger) ProductService {
	return &catalog{
		products: products,
		logger:   logger.With().Str("service", "catalog").Logger(),
	}
}

func (s *catalog) GetAll(ctx context.Context, page model.Page) ([]model.Product, error) {
	if page.Limit <= 0 {
		return nil, model.Errorf(model.KindValidation, "page limit must be positive")
	}

	products, err := s.products.GetAll(ctx, page.Limit, page.Offset)
	if err != nil {
		return nil, errors.Wrapf(err, "list products at offset %d", page.Offset)
	}

	s.logger.Debug().Int("count", len(products)).Int("offset", page.Offset).Msg("listed products")
	return products, nil
}

func (s *catalog) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	if id <= 0 {
		return nil, model.Errorf(model.KindValidation, "product id must be positive")
	}

	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %d", id)
	}
	if product == nil {
		return nil, model.Errorf(model.KindNotFound, "product %d not found", id)
	}
	return product, nil
}
