package flow

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/BaSui01/companion/types"
)

// Turn kinds, used as span names and metric labels.
const (
	TurnMessage    = "message"
	TurnActivity   = "activity"
	TurnButton     = "button"
	TurnPredefined = "predefined"
)

// HandleUserMessage answers free text from the user.
func (o *Orchestrator) HandleUserMessage(ctx context.Context, text string) error {
	return o.turn(ctx, TurnMessage, func(ctx context.Context) error {
		if strings.TrimSpace(text) == "" {
			return types.NewError(types.ErrInvalidInput, "message text is empty")
		}
		return o.agentTurn(ctx, types.NewUserMessage(text, o.scheduler.Now()))
	})
}

// HandleUserActivity answers a structured activity event. Missing anchor
// fields are filled before the event is stored.
func (o *Orchestrator) HandleUserActivity(ctx context.Context, md types.Metadata) error {
	return o.turn(ctx, TurnActivity, func(ctx context.Context) error {
		msg := types.NewActivityMessage(o.anchorMetadata(md), o.scheduler.Now())
		return o.agentTurn(ctx, msg)
	})
}

// HandleButtonClick records the click as an activity message and serves the
// scripted message the button points at. An unknown identifier fails before
// anything is stored.
func (o *Orchestrator) HandleButtonClick(ctx context.Context, identifier string) error {
	return o.turn(ctx, TurnButton, func(ctx context.Context) error {
		entry, ok := o.predefined.Lookup(identifier)
		if !ok {
			return types.NotFoundError("predefined message", identifier)
		}
		label := entry.ButtonDisplayName
		if label == "" {
			label = identifier
		}

		md := o.anchorMetadata(types.Metadata{
			types.MetaButtonID:   identifier,
			types.MetaButtonText: label,
		})
		click := types.NewActivityMessage(md, o.scheduler.Now())
		o.state.Append(click)
		if err := o.persist(ctx, click); err != nil {
			return err
		}
		return o.startPredefined(ctx, identifier)
	})
}

// StartPredefinedMessage serves a scripted message, falling back to the
// first cached entry and then the welcome literal.
func (o *Orchestrator) StartPredefinedMessage(ctx context.Context, identifier string) error {
	return o.turn(ctx, TurnPredefined, func(ctx context.Context) error {
		return o.startPredefined(ctx, identifier)
	})
}

// turn runs fn as one exclusive, traced and metered turn. Failures of fn are
// emitted as error events; a busy or not-ready orchestrator only returns
// the error.
func (o *Orchestrator) turn(ctx context.Context, kind string, fn func(ctx context.Context) error) error {
	if s := o.Status(); s != StatusReady {
		return errNotReady(s)
	}
	if !o.busy.CompareAndSwap(false, true) {
		return errTurnInProgress()
	}
	defer o.busy.Store(false)

	ctx, turnID := o.newTurnContext(ctx)
	ctx, span := o.tracer.Start(ctx, "flow."+kind, trace.WithAttributes(
		attribute.String("turn.id", turnID),
		attribute.String("conversation.id", o.state.ConversationID()),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	o.metrics.RecordTurn(kind, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.fail(ctx, err)
	}
	return err
}
