package service

import (
	"context"
	"errors"
	"testing"

	"shopcore/internal/model"
	"shopcore/internal/repository/mocks"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func catalogItem(id int64, sku string, stock int) model.Product {
	return model.Product{ID: id, SKU: sku, Name: sku, Price: decimal.RequireFromString("4.20"), StockQuantity: stock, IsActive: true}
}

func TestCatalog_GetAll(t *testing.T) {
	ctx := context.Background()

	t.Run("passes the page window through", func(t *testing.T) {
		repo := &mocks.MockProductRepository{}
		want := []model.Product{catalogItem(21, "MUG-1", 3), catalogItem(22, "MUG-2", 0)}
		repo.On("GetAll", mock.Anything, 2, 20).Return(want, nil).Once()

		got, err := NewProductService(repo, zerolog.Nop()).GetAll(ctx, model.Page{Limit: 2, Offset: 20})

		require.NoError(t, err)
		assert.Equal(t, want, got)
		repo.AssertExpectations(t)
	})

	t.Run("zero page is rejected", func(t *testing.T) {
		repo := &mocks.MockProductRepository{}

		_, err := NewProductService(repo, zerolog.Nop()).GetAll(ctx, model.Page{})

		assert.Equal(t, model.KindValidation, model.KindOf(err))
		repo.AssertNotCalled(t, "GetAll", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("storage failure carries no domain kind", func(t *testing.T) {
		repo := &mocks.MockProductRepository{}
		repo.On("GetAll", mock.Anything, 10, 0).Return(nil, errors.New("conn refused")).Once()

		_, err := NewProductService(repo, zerolog.Nop()).GetAll(ctx, model.Page{Limit: 10})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "conn refused")
		assert.Empty(t, model.KindOf(err))
	})
}

func TestCatalog_GetByID(t *testing.T) {
	ctx := context.Background()
	mug := catalogItem(21, "MUG-1", 3)

	tests := []struct {
		name     string
		id       int64
		found    *model.Product
		repoErr  error
		wantKind model.ErrorKind
	}{
		{name: "found", id: 21, found: &mug},
		{name: "missing product", id: 404, wantKind: model.KindNotFound},
		{name: "zero id skips storage", id: 0, wantKind: model.KindValidation},
		{name: "storage failure", id: 21, repoErr: errors.New("conn refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mocks.MockProductRepository{}
			if tt.id > 0 {
				repo.On("GetByID", mock.Anything, tt.id).Return(tt.found, tt.repoErr).Once()
			}

			got, err := NewProductService(repo, zerolog.Nop()).GetByID(ctx, tt.id)

			switch {
			case tt.found != nil:
				require.NoError(t, err)
				assert.Equal(t, tt.found, got)
			case tt.repoErr != nil:
				require.Error(t, err)
				assert.Empty(t, model.KindOf(err))
			default:
				assert.Nil(t, got)
				assert.Equal(t, tt.wantKind, model.KindOf(err))
			}
			repo.AssertExpectations(t)
		})
	}
}
