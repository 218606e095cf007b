// Package intake accepts orders synchronously. It rejects orders the worker
// could never process before they are stored and queued.
package intake

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"clinic-orders/internal/assignment"
	"clinic-orders/internal/catalog"
	"clinic-orders/internal/exceptions"
	"clinic-orders/internal/models"
	"clinic-orders/internal/parser"
	"clinic-orders/internal/queue"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type Request struct {
	HospitalID int64  `json:"hospital_id" validate:"required,gt=0"`
	OrderText  string `json:"order_text" validate:"required,max=1000"`
	UserID     int64  `json:"user_id" validate:"required,gt=0"`
}

type OrderStore interface {
	HospitalExists(ctx context.Context, hospitalID int64) (bool, error)
	CreateOrder(ctx context.Context, order *models.Order) (int64, error)
	DeleteOrder(ctx context.Context, orderID int64) error
}

type Publisher interface {
	Publish(ctx context.Context, msg queue.OrderMessage) error
}

type Service struct {
	store     OrderStore
	resolver  *catalog.Resolver
	publisher Publisher
	clock     assignment.Clock
	validate  *validator.Validate
	log       *zap.Logger
}

func NewService(store OrderStore, resolver *catalog.Resolver, publisher Publisher, clock assignment.Clock, log *zap.Logger) *Service {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Service{
		store:     store,
		resolver:  resolver,
		publisher: publisher,
		clock:     clock,
		validate:  validate,
		log:       log,
	}
}

// CreateOrder validates, stores and enqueues one order and returns its id.
// Parsing and catalog errors are returned before anything is stored.
func (s *Service) CreateOrder(ctx context.Context, req Request) (int64, error) {
	req.OrderText = strings.TrimSpace(req.OrderText)
	if err := s.validate.Struct(req); err != nil {
		return 0, exceptions.FromValidation(err)
	}

	exists, err := s.store.HospitalExists(ctx, req.HospitalID)
	if err != nil {
		return 0, fmt.Errorf("look up hospital %d: %w", req.HospitalID, err)
	}
	if !exists {
		return 0, exceptions.ErrHospitalNotFound(req.HospitalID)
	}

	parsed, err := parser.ParseOrder(req.OrderText)
	if err != nil {
		return 0, err
	}
	if _, err := s.resolver.ResolveStrict(ctx, req.HospitalID, parser.ParseClause(parsed.Treatment)); err != nil {
		return 0, err
	}

	order := &models.Order{
		HospitalID: req.HospitalID,
		RawText:    req.OrderText,
		CreatedBy:  req.UserID,
		CreatedAt:  s.clock.Now(),
	}
	orderID, err := s.store.CreateOrder(ctx, order)
	if err != nil {
		return 0, fmt.Errorf("store order: %w", err)
	}

	msg := queue.FromRawOrder(models.RawOrder{
		OrderID:    orderID,
		HospitalID: order.HospitalID,
		RawText:    order.RawText,
		CreatedBy:  order.CreatedBy,
		CreatedAt:  order.CreatedAt,
	})
	if err := s.publisher.Publish(ctx, msg); err != nil {
		if derr := s.store.DeleteOrder(ctx, orderID); derr != nil {
			s.log.Error("could not remove unqueued order",
				zap.Int64("order_id", orderID),
				zap.Error(derr),
			)
		}
		if exceptions.KindOf(err) != exceptions.QueuePublishFailure {
			err = exceptions.ErrQueuePublishFailure(err)
		}
		return 0, err
	}

	s.log.Info("order accepted",
		zap.Int64("order_id", orderID),
		zap.Int64("hospital_id", req.HospitalID),
		zap.Int64("created_by", req.UserID),
		zap.String("mode", string(parsed.Mode())),
	)
	return orderID, nil
}
