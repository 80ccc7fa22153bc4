package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes order reads and post-checkout transitions.
type Service interface {
	Get(ctx context.Context, input GetInput) (*models.Order, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error)
}

// GetInput identifies the order and the caller asking for it.
type GetInput struct {
	OrderID   uuid.UUID
	SessionID string
	UserID    *string
}

// UpdateStatusInput moves an order along its lifecycle. TrackingNumber is
// accepted only when the target status is shipped.
type UpdateStatusInput struct {
	OrderID        uuid.UUID
	Status         enums.OrderStatus
	TrackingNumber *string
	ActorRole      string
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, tx: tx, outbox: outbox, logg: logg}, nil
}

// Get returns the order when the caller owns it. Orders belonging to someone
// else are reported as not found.
func (s *service) Get(ctx context.Context, input GetInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !ownsOrder(order, input.SessionID, input.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func ownsOrder(order *models.Order, sessionID string, userID *string) bool {
	if sessionID != "" && order.SessionID == sessionID {
		return true
	}
	return userID != nil && order.UserID != nil && *userID != "" && *order.UserID == *userID
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]any{"status": input.Status})
	}
	tracking := normalizeTracking(input.TrackingNumber)
	if tracking != nil && input.Status != enums.OrderStatusShipped {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number can only be set when shipping").
			WithDetails(map[string]any{"status": input.Status})
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		from := order.Status
		if !from.CanTransitionTo(input.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status transition not allowed").
				WithDetails(map[string]any{"from": from, "to": input.Status})
		}
		if err := repo.UpdateStatus(ctx, order.ID, from, input.Status, tracking); err != nil {
			if errors.Is(err, ErrStatusChanged) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed, reload and retry").
					WithDetails(map[string]any{"from": from, "to": input.Status})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = input.Status
		if tracking != nil {
			order.TrackingNumber = tracking
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{Role: input.ActorRole},
			Data: payloads.OrderStatusChangedEvent{
				OrderID:        order.ID,
				OrderNumber:    order.OrderNumber,
				From:           from,
				To:             input.Status,
				TrackingNumber: order.TrackingNumber,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order status event")
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, updated.ID.String())
	logCtx = s.logg.WithField(logCtx, "status", updated.Status)
	s.logg.Info(logCtx, "order.status_changed")
	return updated, nil
}

func normalizeTracking(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
