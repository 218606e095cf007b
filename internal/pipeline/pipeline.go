// Package pipeline turns one queued order into an assigned, persisted and
// announced order, or into a terminal failure.
package pipeline

import (
	"context"
	"fmt"

	"clinic-orders/internal/assignment"
	"clinic-orders/internal/catalog"
	"clinic-orders/internal/exceptions"
	"clinic-orders/internal/models"
	"clinic-orders/internal/notify"
	"clinic-orders/internal/parser"
	"clinic-orders/internal/queue"
	"clinic-orders/internal/store"

	"go.uber.org/zap"
)

type State string

const (
	Received     State = "received"
	Parsed       State = "parsed"
	ClauseParsed State = "clause_parsed"
	Resolved     State = "resolved"
	Assigned     State = "assigned"
	Persisted    State = "persisted"
	Notified     State = "notified"
	Done         State = "done"
	Failed       State = "failed"
	// Duplicate marks a redelivery of an order another delivery already claimed.
	Duplicate State = "duplicate"
)

// Outcome reports how far an order got. FailedAt is the last state reached
// before the failure.
type Outcome struct {
	OrderID   int64
	State     State
	FailedAt  State
	Err       error
	Decisions []models.AssignmentDecision
	Notified  bool
}

// Store is the persistence the pipeline writes through.
type Store interface {
	WithinTx(ctx context.Context, fn store.TxFunc) error
	UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus, stage, reason *string) error
	RecordAudit(ctx context.Context, entry *models.AuditLog) error
}

type NotificationSink interface {
	Send(ctx context.Context, hospitalID int64, text string) bool
}

// Guard deduplicates redelivered orders.
type Guard interface {
	Claim(ctx context.Context, orderID int64) (string, bool, error)
	Complete(ctx context.Context, orderID int64, token string) error
	Release(ctx context.Context, orderID int64, token string) error
}

type Deps struct {
	Resolver *catalog.Resolver
	Engine   *assignment.Engine
	Store    Store
	Notifier NotificationSink
	Guard    Guard
	Clock    assignment.Clock
	Log      *zap.Logger
}

type Pipeline struct {
	resolver *catalog.Resolver
	engine   *assignment.Engine
	store    Store
	notifier NotificationSink
	guard    Guard
	clock    assignment.Clock
	log      *zap.Logger
}

func New(deps Deps) *Pipeline {
	return &Pipeline{
		resolver: deps.Resolver,
		engine:   deps.Engine,
		store:    deps.Store,
		notifier: deps.Notifier,
		guard:    deps.Guard,
		clock:    deps.Clock,
		log:      deps.Log,
	}
}

// Handle decodes a queue message and processes it. It is the consumer's
// handler; the returned error is informational since every message is
// acknowledged.
func (p *Pipeline) Handle(ctx context.Context, body []byte) error {
	msg, err := queue.DecodeOrderMessage(body)
	if err != nil {
		p.log.Error("discarding undecodable message",
			zap.ByteString("body", body),
			zap.Error(err),
		)
		return err
	}
	out := p.Process(ctx, *msg)
	return out.Err
}

// Process runs one order through parse, clause parse, resolution, selection,
// the atomic workload commit and notification.
func (p *Pipeline) Process(ctx context.Context, msg queue.OrderMessage) Outcome {
	out := Outcome{OrderID: msg.OrderID, State: Received}
	log := p.log.With(
		zap.Int64("order_id", msg.OrderID),
		zap.Int64("hospital_id", msg.HospitalID),
	)

	token, claimed := p.claim(ctx, msg.OrderID, log)
	if !claimed {
		out.State = Duplicate
		return out
	}

	parsed, err := parser.ParseOrder(msg.RawText)
	if err != nil {
		return p.fail(ctx, log, msg, out, token, err)
	}
	out.State = Parsed

	items := parser.ParseClause(parsed.Treatment)
	out.State = ClauseParsed

	res, err := p.resolver.ResolveStrict(ctx, msg.HospitalID, items)
	if err != nil {
		return p.fail(ctx, log, msg, out, token, err)
	}
	if len(res.Unmatched) > 0 {
		log.Info("unmatched treatment items ignored", zap.Strings("items", res.Unmatched))
	}
	out.State = Resolved

	sel, err := p.engine.Select(ctx, msg.HospitalID, res.Resolved, parsed.DoctorName)
	if err != nil {
		return p.fail(ctx, log, msg, out, token, err)
	}
	out.State = Assigned

	assignedAt := p.clock.Now()
	err = p.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		decisions, err := p.engine.Commit(ctx, tx, sel, res.Resolved)
		if err != nil {
			return err
		}
		records := models.NewOrderTreatments(msg.OrderID, res.Resolved, decisions, assignedAt)
		if err := tx.SaveOrderTreatments(ctx, records); err != nil {
			return err
		}
		if err := tx.UpdateOrderStatus(ctx, msg.OrderID, models.OrderAssigned, nil, nil); err != nil {
			return err
		}
		out.Decisions = decisions
		return nil
	})
	if err != nil {
		out.Decisions = nil
		if exceptions.KindOf(err) == exceptions.Unknown {
			err = exceptions.ErrPersistenceUpdateFailure(err, sel.Doctor.ID)
		}
		return p.fail(ctx, log, msg, out, token, err)
	}
	out.State = Persisted
	p.complete(ctx, msg.OrderID, token, log)

	out.Notified = p.announce(ctx, msg, sel.Doctor, log)
	out.State = Notified

	log.Info("order processed",
		zap.Int64("doctor_id", sel.Doctor.ID),
		zap.String("mode", string(sel.Mode)),
		zap.Int("treatments", len(res.Resolved)),
		zap.Bool("notified", out.Notified),
	)
	out.State = Done
	return out
}

// announce sends the chat notification and records its result. Neither
// outcome affects the committed assignment.
func (p *Pipeline) announce(ctx context.Context, msg queue.OrderMessage, doctor *models.DoctorProfile, log *zap.Logger) bool {
	text := notify.FormatAssignedOrder(msg.RawText, doctor.Name)
	sent := p.notifier.Send(ctx, msg.HospitalID, text)

	orderID, doctorID, doctorName := msg.OrderID, doctor.ID, doctor.Name
	entry := &models.AuditLog{
		Type:       models.AuditSlackNotification,
		HospitalID: msg.HospitalID,
		CreatedBy:  &msg.CreatedBy,
		OrderID:    &orderID,
		DoctorID:   &doctorID,
		DoctorName: &doctorName,
		Message:    text,
		Success:    sent,
		CreatedAt:  p.clock.Now(),
	}
	if err := p.store.RecordAudit(ctx, entry); err != nil {
		log.Error("notification audit failed", zap.Error(err))
	}
	return sent
}

func (p *Pipeline) fail(ctx context.Context, log *zap.Logger, msg queue.OrderMessage, out Outcome, token string, err error) Outcome {
	out.FailedAt = out.State
	out.State = Failed
	out.Err = err

	kind := exceptions.KindOf(err)
	stage := string(out.FailedAt)
	reason := err.Error()
	log.Warn("order failed",
		zap.String("stage", stage),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)

	if uerr := p.store.UpdateOrderStatus(ctx, msg.OrderID, models.OrderFailed, &stage, &reason); uerr != nil {
		log.Error("mark order failed", zap.Error(uerr))
	}

	orderID := msg.OrderID
	entry := &models.AuditLog{
		Type:       models.AuditOrderFailed,
		HospitalID: msg.HospitalID,
		CreatedBy:  &msg.CreatedBy,
		OrderID:    &orderID,
		Message:    fmt.Sprintf("%s after %s: %s", kind, stage, reason),
		Success:    false,
		CreatedAt:  p.clock.Now(),
	}
	if aerr := p.store.RecordAudit(ctx, entry); aerr != nil {
		log.Error("failure audit failed", zap.Error(aerr))
	}

	// nothing was committed, so a later delivery may retry the order
	p.release(ctx, msg.OrderID, token, log)
	return out
}

func (p *Pipeline) claim(ctx context.Context, orderID int64, log *zap.Logger) (string, bool) {
	if p.guard == nil {
		return "", true
	}
	token, ok, err := p.guard.Claim(ctx, orderID)
	if err != nil {
		log.Warn("redelivery guard unavailable, processing unguarded", zap.Error(err))
		return "", true
	}
	if !ok {
		log.Info("duplicate delivery skipped")
	}
	return token, ok
}

func (p *Pipeline) complete(ctx context.Context, orderID int64, token string, log *zap.Logger) {
	if p.guard == nil || token == "" {
		return
	}
	if err := p.guard.Complete(ctx, orderID, token); err != nil {
		log.Warn("could not mark order complete in guard", zap.Error(err))
	}
}

func (p *Pipeline) release(ctx context.Context, orderID int64, token string, log *zap.Logger) {
	if p.guard == nil || token == "" {
		return
	}
	if err := p.guard.Release(ctx, orderID, token); err != nil {
		log.Warn("could not release order claim", zap.Error(err))
	}
}
