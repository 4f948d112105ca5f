package service

import (
	"context"

	"shopcore/internal/events"
	"shopcore/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Transition moves an order to target under the order row lock. Entering
// cancelled releases every reservation of the order in the same transaction.
// Two concurrent cancels serialize on the lock; the second one sees a
// cancelled order and fails without releasing again.
func (s *orderService) Transition(ctx context.Context, id uuid.UUID, target model.OrderStatus, actorID *int64) (*model.Order, error) {
	if !target.Valid() {
		return nil, model.Errorf(model.KindValidation, "unknown order status %q", target)
	}

	var (
		order    *model.Order
		previous model.OrderStatus
	)
	err := s.txm.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		o, err := s.lockOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		if !o.Status.CanTransitionTo(target) {
			return model.Errorf(model.KindInvalidTransition,
				"order %s cannot move from %s to %s", o.OrderNumber, o.Status, target)
		}

		if target == model.StatusCancelled {
			if _, err := s.stock.ReleaseOrder(ctx, tx, o, actorID); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		if err := s.orderRepo.UpdateStatus(ctx, tx, o.ID, target, now); err != nil {
			return err
		}

		previous = o.Status
		o.Status = target
		o.UpdatedAt = now
		order = o
		return nil
	})
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("order_id", id.String()).
			Str("target", string(target)).
			Msg("order transition rejected")
		return nil, err
	}

	s.metrics.OrderTransitions.WithLabelValues(string(previous), string(target)).Inc()
	s.publish(ctx, events.OrderStatusChanged, order, previous, actorID)

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("from", string(previous)).
		Str("to", string(target)).
		Msg("order status changed")

	return order, nil
}

// Cancel moves an order to cancelled.
func (s *orderService) Cancel(ctx context.Context, id uuid.UUID, actorID *int64) (*model.Order, error) {
	return s.Transition(ctx, id, model.StatusCancelled, actorID)
}

// Delete removes an order that has not been delivered. Stock of an order that
// was not already cancelled is released first.
func (s *orderService) Delete(ctx context.Context, id uuid.UUID, actorID *int64) error {
	var order *model.Order
	err := s.txm.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		o, err := s.lockOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		if o.Status == model.StatusDelivered {
			return model.Errorf(model.KindInvalidTransition, "delivered order %s cannot be deleted", o.OrderNumber)
		}

		if o.Status != model.StatusCancelled {
			if _, err := s.stock.ReleaseOrder(ctx, tx, o, actorID); err != nil {
				return err
			}
		}

		if err := s.orderRepo.Delete(ctx, tx, o.ID); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("order_id", id.String()).Msg("order deletion rejected")
		return err
	}

	s.publish(ctx, events.OrderDeleted, order, order.Status, actorID)

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("status", string(order.Status)).
		Msg("order deleted")

	return nil
}

func (s *orderService) lockOrder(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	o, err := s.orderRepo.LockByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, model.Errorf(model.KindNotFound, "order %s not found", id)
	}
	return o, nil
}
