package purchase

import (
	"context"
	"fmt"

	"shopcore/internal/metrics"
	"shopcore/internal/model"
	"shopcore/internal/stock"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentLoads = 4

// BulkAdjuster applies a batch of stock movements all-or-nothing, at most once
// per reference.
type BulkAdjuster interface {
	BulkAdjustOnce(ctx context.Context, ref model.Reference, reqs []stock.AdjustRequest) ([]model.StockChange, error)
}

// Result is one purchase order of an import. AlreadyReceived is set, with no
// changes, when an earlier import had received it.
type Result struct {
	Source          string              `json:"source"`
	PONumber        string              `json:"poNumber"`
	Changes         []model.StockChange `json:"changes"`
	AlreadyReceived bool                `json:"alreadyReceived,omitempty"`
}

// Importer turns purchase order files into stock receipts.
type Importer struct {
	loader  Loader
	stock   BulkAdjuster
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewImporter creates an importer.
func NewImporter(loader Loader, adjuster BulkAdjuster, m *metrics.Metrics, logger zerolog.Logger) *Importer {
	return &Importer{
		loader:  loader,
		stock:   adjuster,
		metrics: m,
		logger:  logger.With().Str("component", "purchase-importer").Logger(),
	}
}

// Import loads one purchase order and receives it as a single batch. A
// purchase order already in the ledger is rejected with a validation error.
func (i *Importer) Import(ctx context.Context, source string, actorID *int64) (*Result, error) {
	po, err := i.loader.Load(ctx, source)
	if err != nil {
		i.metrics.PurchaseOrdersApplied.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, err
	}
	return i.apply(ctx, source, po, actorID)
}

// ImportAll loads every source concurrently. Nothing is applied unless all
// files load; each purchase order is then applied in its own batch, in the
// order given. On an apply failure the orders before it stay applied and the
// results so far are returned with the error. Purchase orders received by an
// earlier run are skipped, so a failed run can be retried with the same files.
func (i *Importer) ImportAll(ctx context.Context, sources []string, actorID *int64) ([]Result, error) {
	if len(sources) == 0 {
		return nil, model.Errorf(model.KindValidation, "no purchase order files given")
	}

	orders := make([]*Order, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLoads)
	for idx, source := range sources {
		g.Go(func() error {
			po, err := i.loader.Load(gctx, source)
			if err != nil {
				return errors.Wrapf(err, "purchase order file %s", source)
			}
			orders[idx] = po
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		i.logger.Error().Err(err).Int("files", len(sources)).Msg("failed to load purchase orders")
		i.metrics.PurchaseOrdersApplied.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, err
	}

	seen := make(map[string]string, len(orders))
	for idx, po := range orders {
		if prev, ok := seen[po.Number]; ok {
			return nil, model.Errorf(model.KindValidation, "purchase order %s appears in both %s and %s", po.Number, prev, sources[idx])
		}
		seen[po.Number] = sources[idx]
	}

	results := make([]Result, 0, len(orders))
	for idx, po := range orders {
		res, err := i.apply(ctx, sources[idx], po, actorID)
		if errors.Is(err, stock.ErrAlreadyRecorded) {
			i.metrics.PurchaseOrdersApplied.WithLabelValues(metrics.OutcomeSkipped).Inc()
			i.logger.Info().Str("po_number", po.Number).Msg("purchase order already received, skipping")
			results = append(results, Result{Source: sources[idx], PONumber: po.Number, AlreadyReceived: true})
			continue
		}
		if err != nil {
			return results, err
		}
		results = append(results, *res)
	}
	return results, nil
}

func (i *Importer) apply(ctx context.Context, source string, po *Order, actorID *int64) (*Result, error) {
	ref := model.AdminPurchaseRef{PONumber: po.Number}
	reason := fmt.Sprintf("purchase order %s", po.Number)

	reqs := make([]stock.AdjustRequest, len(po.Lines))
	for idx, line := range po.Lines {
		reqs[idx] = stock.AdjustRequest{
			ProductID: line.ProductID,
			Delta:     line.Quantity,
			Reason:    reason,
			Reference: ref,
			ActorID:   actorID,
		}
	}

	changes, err := i.stock.BulkAdjustOnce(ctx, ref, reqs)
	if errors.Is(err, stock.ErrAlreadyRecorded) {
		return nil, errors.Wrapf(err, "purchase order %s", po.Number)
	}
	if err != nil {
		i.logger.Error().Err(err).Str("po_number", po.Number).Msg("purchase order rejected")
		i.metrics.PurchaseOrdersApplied.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, err
	}

	i.metrics.PurchaseOrdersApplied.WithLabelValues(metrics.OutcomeSuccess).Inc()
	i.logger.Info().
		Str("po_number", po.Number).
		Int("lines", len(po.Lines)).
		Msg("purchase order received into stock")

	return &Result{Source: source, PONumber: po.Number, Changes: changes}, nil
}
