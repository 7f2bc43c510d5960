package flow

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/companion/api"
	"github.com/BaSui01/companion/catalog"
	"github.com/BaSui01/companion/conversation"
	"github.com/BaSui01/companion/internal/ctxkeys"
	"github.com/BaSui01/companion/internal/metrics"
	"github.com/BaSui01/companion/llm"
	"github.com/BaSui01/companion/rag"
	"github.com/BaSui01/companion/schedule"
	"github.com/BaSui01/companion/types"
	"github.com/BaSui01/companion/workflow"
)

const tracerName = "github.com/BaSui01/companion/flow"

// Status is the lifecycle state of an Orchestrator.
type Status int32

const (
	StatusUninitialized Status = iota
	StatusInitializing
	StatusReady
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusInitializing:
		return "initializing"
	case StatusReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Config holds the conversation-level settings of an Orchestrator.
type Config struct {
	// UserID owns the conversation.
	UserID string

	// BootstrapID is the first scripted message of a new conversation.
	BootstrapID string

	// OffTopicAgent is the agent name that short-circuits generation.
	OffTopicAgent string

	// OffTopicID is the scripted message served for off-topic turns.
	OffTopicID string

	// Anchor metadata defaults.
	CharacterName string
	UserName      string
	Organisation  string
}

// Defaults for Config.
const (
	DefaultBootstrapID   = "week1_day0"
	DefaultOffTopicAgent = "offtopic"
	DefaultOffTopicID    = "offtopic"
)

func (c Config) withDefaults() Config {
	if c.BootstrapID == "" {
		c.BootstrapID = DefaultBootstrapID
	}
	if c.OffTopicAgent == "" {
		c.OffTopicAgent = DefaultOffTopicAgent
	}
	if c.OffTopicID == "" {
		c.OffTopicID = DefaultOffTopicID
	}
	return c
}

// Dependencies are the collaborators of an Orchestrator. Client and AI are
// required; everything else has a default.
type Dependencies struct {
	Client    api.Client
	AI        llm.Service
	Retriever rag.Retriever

	// Predefined and Instructions default to catalogs loading from Client.
	Predefined   *catalog.Predefined
	Instructions *catalog.Instructions

	Scheduler *schedule.Scheduler
	Metrics   *metrics.Collector
	Logger    *zap.Logger
}

// InitOptions controls Initialize.
type InitOptions struct {
	// ForceNew discards the current conversation and starts a new one.
	ForceNew bool

	// Metadata seeds the activity message persisted on bootstrap.
	Metadata types.Metadata

	// ResumeMetadata, when set, is replayed as an activity turn on resume.
	ResumeMetadata types.Metadata
}

// Orchestrator drives a conversation: initialization, scripted and AI turns,
// and profile upkeep. At most one turn runs at a time.
type Orchestrator struct {
	cfg          Config
	client       api.Client
	ai           llm.Service
	retriever    rag.Retriever
	predefined   *catalog.Predefined
	instructions *catalog.Instructions
	scheduler    *schedule.Scheduler
	state        *conversation.State
	bus          *Bus
	metrics      *metrics.Collector
	logger       *zap.Logger
	tracer       trace.Tracer

	status atomic.Int32
	busy   atomic.Bool
}

// New creates an Orchestrator in the Uninitialized state.
func New(cfg Config, deps Dependencies) (*Orchestrator, error) {
	if deps.Client == nil {
		return nil, types.NewError(types.ErrInvalidInput, "flow: api client is required")
	}
	if deps.AI == nil {
		return nil, types.NewError(types.ErrInvalidInput, "flow: ai service is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Predefined == nil {
		deps.Predefined = catalog.NewPredefined(deps.Client, logger)
	}
	if deps.Instructions == nil {
		deps.Instructions = catalog.NewInstructions(deps.Client, logger)
	}
	if deps.Scheduler == nil {
		deps.Scheduler = schedule.New()
	}
	return &Orchestrator{
		cfg:          cfg.withDefaults(),
		client:       deps.Client,
		ai:           deps.AI,
		retriever:    deps.Retriever,
		predefined:   deps.Predefined,
		instructions: deps.Instructions,
		scheduler:    deps.Scheduler,
		state:        conversation.NewState(),
		bus:          NewBus(),
		metrics:      deps.Metrics,
		logger:       logger.With(zap.String("component", "flow")),
		tracer:       otel.Tracer(tracerName),
	}, nil
}

// Subscribe registers a listener for every emitted event.
func (o *Orchestrator) Subscribe(l Listener) (unsubscribe func()) {
	return o.bus.Subscribe(l)
}

// SubscribeObserver registers a typed observer.
func (o *Orchestrator) SubscribeObserver(obs Observer) (unsubscribe func()) {
	return o.bus.Subscribe(ObserverListener(obs))
}

// Status returns the lifecycle state.
func (o *Orchestrator) Status() Status {
	return Status(o.status.Load())
}

// Busy reports whether a turn is running.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// Snapshot returns a copy of the conversation state.
func (o *Orchestrator) Snapshot() conversation.Snapshot {
	return o.state.Snapshot()
}

// Catalog returns the predefined message catalog.
func (o *Orchestrator) Catalog() *catalog.Predefined {
	return o.predefined
}

// =============================================================================
// Initialization
// =============================================================================

// Initialize loads or creates the conversation and decides the opening
// move: bootstrap, the next scheduled message, or a resume.
func (o *Orchestrator) Initialize(ctx context.Context, opts InitOptions) error {
	if !o.busy.CompareAndSwap(false, true) {
		return errTurnInProgress()
	}
	defer o.busy.Store(false)
	return o.initialize(ctx, opts)
}

// ForceNewConversation discards the current conversation and initializes a
// new one.
func (o *Orchestrator) ForceNewConversation(ctx context.Context, opts InitOptions) error {
	if !o.busy.CompareAndSwap(false, true) {
		return errTurnInProgress()
	}
	defer o.busy.Store(false)

	opts.ForceNew = true
	return o.initialize(ctx, opts)
}

func (o *Orchestrator) initialize(ctx context.Context, opts InitOptions) error {
	ctx, span := o.tracer.Start(ctx, "flow.Initialize",
		trace.WithAttributes(attribute.Bool("force_new", opts.ForceNew)))
	defer span.End()

	start := time.Now()
	err := o.runInitialize(ctx, opts)
	o.metrics.RecordTurn("initialize", err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.fail(ctx, err)
	}
	return err
}

func (o *Orchestrator) runInitialize(ctx context.Context, opts InitOptions) error {
	o.status.Store(int32(StatusInitializing))
	if opts.ForceNew {
		o.state.Reset()
	}

	// Phase 1: conversation and predefined catalog.
	var conv types.Conversation
	phase1 := workflow.Join(ctx,
		o.call(api.OpGetOrCreateConversation, func(ctx context.Context) error {
			c, err := o.client.GetOrCreateConversation(ctx, o.cfg.UserID, opts.ForceNew)
			conv = c
			return err
		}),
		workflow.NewOp("load_predefined", o.predefined.Load),
	)
	if oc, _ := phase1.Get(api.OpGetOrCreateConversation); oc.Err != nil {
		o.status.Store(int32(StatusUninitialized))
		return oc.Err
	}
	if oc, _ := phase1.Get("load_predefined"); oc.Err != nil {
		o.logger.Warn("predefined catalog unavailable, fallbacks apply", zap.Error(oc.Err))
	}
	o.metrics.SetDegradedButtons(len(o.predefined.Degraded()))
	o.state.SetConversation(conv.ID)
	ctx = ctxkeys.WithConversationID(ctx, conv.ID)

	// Phase 2: profile, history and instruction catalog.
	var (
		profile types.Profile
		history []types.Message
	)
	phase2 := workflow.Join(ctx,
		o.call(api.OpGetOrCreateProfile, func(ctx context.Context) error {
			p, err := o.client.GetOrCreateProfile(ctx, conv.ID)
			profile = p
			return err
		}),
		o.call(api.OpListMessages, func(ctx context.Context) error {
			h, err := o.client.ListMessages(ctx, conv.ID)
			history = h
			return err
		}),
		workflow.NewOp("load_instructions", o.instructions.Load),
	)
	for _, op := range []string{api.OpGetOrCreateProfile, api.OpListMessages} {
		if oc, _ := phase2.Get(op); oc.Err != nil {
			o.status.Store(int32(StatusUninitialized))
			return oc.Err
		}
	}
	if oc, _ := phase2.Get("load_instructions"); oc.Err != nil {
		o.logger.Warn("instruction catalog unavailable", zap.Error(oc.Err))
	}
	o.state.SetProfile(profile.ID, profile.Summary)
	o.state.ReplaceHistory(history)

	o.logger.Info("conversation loaded",
		zap.String("conversation_id", conv.ID),
		zap.String("profile_id", profile.ID),
		zap.Int("history", len(history)),
	)

	// Phase 3: opening move.
	o.status.Store(int32(StatusReady))

	if opts.ForceNew || o.state.Len() == 0 {
		return o.bootstrap(ctx, opts.Metadata)
	}

	last, _ := o.state.Last()
	if o.scheduler.NewDay(last.Timestamp) {
		anchor, _ := o.state.AnchorDate(o.scheduler.Location())
		id, ok := o.scheduler.Next(anchor, o.predefined.Identifiers())
		switch {
		case ok && !o.state.HasScripted(id):
			o.logger.Info("new day, starting scheduled message", zap.String("identifier", id))
			o.emitInitialized(true)
			return o.startPredefined(ctx, id)
		case ok:
			o.logger.Info("scheduled message already delivered", zap.String("identifier", id))
		default:
			o.logger.Info("new day, no scheduled message available")
		}
		o.emitInitialized(false)
		return nil
	}
	return o.resume(ctx, opts.ResumeMetadata)
}

func (o *Orchestrator) bootstrap(ctx context.Context, md types.Metadata) error {
	now := o.scheduler.Now()
	md = md.Clone()
	md.SetDefault(types.MetaStartDate, now.Format(types.StartDateLayout))
	o.applyConfigDefaults(md)

	msg := types.NewActivityMessage(md, now)
	o.state.Append(msg)
	if err := o.persist(ctx, msg); err != nil {
		return err
	}
	o.emitInitialized(true)
	return o.startPredefined(ctx, o.cfg.BootstrapID)
}

func (o *Orchestrator) resume(ctx context.Context, md types.Metadata) error {
	if len(md) == 0 {
		o.emitInitialized(false)
		return nil
	}
	o.emitInitialized(true)
	msg := types.NewActivityMessage(o.anchorMetadata(md), o.scheduler.Now())
	return o.agentTurn(ctx, msg)
}

// =============================================================================
// Shared turn steps
// =============================================================================

// agentTurn appends the user-side message, routes it while persisting, and
// either serves the off-topic script or generates an agent reply.
func (o *Orchestrator) agentTurn(ctx context.Context, userMsg types.Message) error {
	convID := o.state.ConversationID()
	o.state.Append(userMsg)
	history := o.state.History()

	var (
		route     llm.Route
		retrieved rag.Context
	)
	outcomes := workflow.Join(ctx,
		o.call(api.OpAppendMessage, func(ctx context.Context) error {
			return o.client.AppendMessage(ctx, convID, userMsg)
		}),
		workflow.NewOp("route", func(ctx context.Context) error {
			r, err := o.selectAgent(ctx, history)
			if err != nil {
				return err
			}
			route = r
			if o.isOffTopic(r.Agent) || o.retriever == nil {
				return nil
			}
			retrieved, err = o.retrieve(ctx, r, history)
			return err
		}),
	)
	if err := o.firstFailure(outcomes); err != nil {
		return err
	}

	if o.isOffTopic(route.Agent) {
		o.logger.Info("off-topic turn, serving scripted reply")
		return o.startPredefined(ctx, o.cfg.OffTopicID)
	}

	req := llm.GenerateRequest{
		Agent:       route.Agent,
		Instruction: o.instructions.Compose(route.Agent),
		Examples:    retrieved.Examples,
		Knowledge:   retrieved.Knowledge,
		Profile:     o.state.ProfileSummary(),
		History:     history,
	}
	start := time.Now()
	reply, err := o.ai.GenerateResponse(ctx, req, func(chunk string) {
		o.bus.Emit(Event{Kind: EventAIMessageChunk, Chunk: chunk})
	})
	o.metrics.RecordCall(llm.OpGenerateResponse, err, time.Since(start))
	if err != nil {
		return err
	}

	msg := types.NewAgentMessage(route.Agent, reply, o.scheduler.Now())
	o.state.Append(msg)
	if err := o.persistAndRegenerate(ctx, msg); err != nil {
		return err
	}
	o.bus.Emit(Event{Kind: EventAIMessageReceived, Message: &msg})
	return nil
}

// startPredefined serves a scripted message with the catalog fallbacks. The
// message keeps the requested identifier even when fallback content is served.
func (o *Orchestrator) startPredefined(ctx context.Context, identifier string) error {
	r := o.predefined.ResolveWithFallback(identifier)
	msg := types.NewScriptedMessage(identifier, r.Content, r.Buttons, o.scheduler.Now())
	msg.ButtonDisplayName = r.ButtonDisplayName

	o.state.Append(msg)
	if err := o.persistAndRegenerate(ctx, msg); err != nil {
		return err
	}
	o.bus.Emit(Event{Kind: EventMessageReceived, Message: &msg})
	return nil
}

func (o *Orchestrator) selectAgent(ctx context.Context, history []types.Message) (llm.Route, error) {
	start := time.Now()
	route, err := o.ai.SelectAgentAndPrompts(ctx, history, o.instructions.Pipeline(catalog.InstructionRouter))
	o.metrics.RecordCall(llm.OpSelectAgent, err, time.Since(start))
	if err == nil {
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("agent", route.Agent))
	}
	return route, err
}

func (o *Orchestrator) retrieve(ctx context.Context, route llm.Route, history []types.Message) (rag.Context, error) {
	start := time.Now()
	rc, err := o.retriever.GetContext(ctx, rag.ContextRequest{
		Agent:           route.Agent,
		FewShotPrompt:   route.FewShotPrompt,
		KnowledgePrompt: route.KnowledgePrompt,
		History:         history,
	})
	o.metrics.RecordCall(rag.OpGetContext, err, time.Since(start))
	return rc, err
}

func (o *Orchestrator) isOffTopic(agent string) bool {
	return agent == o.cfg.OffTopicAgent
}

func (o *Orchestrator) persist(ctx context.Context, msg types.Message) error {
	start := time.Now()
	err := o.client.AppendMessage(ctx, o.state.ConversationID(), msg)
	o.metrics.RecordCall(api.OpAppendMessage, err, time.Since(start))
	return err
}

// persistAndRegenerate stores msg while the profile is regenerated. Only
// the persistence can fail the turn.
func (o *Orchestrator) persistAndRegenerate(ctx context.Context, msg types.Message) error {
	outcomes := workflow.Join(ctx,
		workflow.NewOp(api.OpAppendMessage, func(ctx context.Context) error {
			return o.persist(ctx, msg)
		}),
		workflow.NewOp("regenerate_profile", func(ctx context.Context) error {
			o.regenerateProfile(ctx)
			return nil
		}),
	)
	return o.firstFailure(outcomes)
}

// regenerateProfile rewrites the profile from the full history. Failures are
// logged and counted, never returned.
func (o *Orchestrator) regenerateProfile(ctx context.Context) {
	start := time.Now()
	summary, err := o.ai.GenerateProfile(ctx, o.state.ProfileSummary(), o.state.History(),
		o.instructions.Pipeline(catalog.InstructionMemory))
	o.metrics.RecordCall(llm.OpGenerateProfile, err, time.Since(start))

	if err == nil {
		o.state.UpdateProfileSummary(summary)
		if profileID := o.state.ProfileID(); profileID != "" {
			start = time.Now()
			_, err = o.client.UpdateProfile(ctx, profileID, summary)
			o.metrics.RecordCall(api.OpUpdateProfile, err, time.Since(start))
		}
	}

	o.metrics.RecordProfileRegeneration(err)
	if err != nil {
		o.logger.Warn("profile regeneration failed", zap.Error(err))
	}
}

// =============================================================================
// Helpers
// =============================================================================

// call wraps a collaborator call as a Join op that records its metrics.
func (o *Orchestrator) call(op string, fn workflow.OpFunc) workflow.Op {
	return workflow.NewOp(op, func(ctx context.Context) error {
		start := time.Now()
		err := fn(ctx)
		o.metrics.RecordCall(op, err, time.Since(start))
		return err
	})
}

// firstFailure logs every failed outcome and returns the first one.
func (o *Orchestrator) firstFailure(outcomes workflow.Outcomes) error {
	failed := outcomes.Failed()
	if len(failed) == 0 {
		return nil
	}
	for _, oc := range failed {
		o.logger.Warn("operation failed", zap.String("op", oc.Name), zap.Error(oc.Err))
	}
	return failed[0].Err
}

// anchorMetadata fills the anchor fields of md from the first activity
// message, the conversation anchor date and the configured defaults.
func (o *Orchestrator) anchorMetadata(md types.Metadata) types.Metadata {
	out := md.Clone()
	for _, m := range o.state.History() {
		if m.Kind != types.KindActivity {
			continue
		}
		for _, key := range []string{types.MetaStartDate, types.MetaCharacterName, types.MetaUserName, types.MetaOrganisation} {
			out.SetDefault(key, m.Metadata[key])
		}
		break
	}
	if anchor, ok := o.state.AnchorDate(o.scheduler.Location()); ok {
		out.SetDefault(types.MetaStartDate, anchor.Format(types.StartDateLayout))
	} else {
		out.SetDefault(types.MetaStartDate, o.scheduler.Now().Format(types.StartDateLayout))
	}
	o.applyConfigDefaults(out)
	return out
}

func (o *Orchestrator) applyConfigDefaults(md types.Metadata) {
	md.SetDefault(types.MetaCharacterName, o.cfg.CharacterName)
	md.SetDefault(types.MetaUserName, o.cfg.UserName)
	md.SetDefault(types.MetaOrganisation, o.cfg.Organisation)
}

func (o *Orchestrator) emitInitialized(expect bool) {
	o.bus.Emit(Event{Kind: EventInitialized, ExpectMessage: expect})
}

// fail logs err and emits it as a human-readable error event.
func (o *Orchestrator) fail(ctx context.Context, err error) {
	fields := []zap.Field{zap.Error(err)}
	if turnID, ok := ctxkeys.TurnID(ctx); ok {
		fields = append(fields, zap.String("turn_id", turnID))
	}
	o.logger.Error("turn failed", fields...)
	o.bus.Emit(Event{Kind: EventError, Error: UserMessage(err)})
}

// UserMessage renders err for display.
func UserMessage(err error) string {
	e, ok := types.AsError(err)
	if !ok {
		return err.Error()
	}
	switch e.Code {
	case types.ErrConnection:
		return "Could not reach the service. Check your connection and try again."
	case types.ErrProtocol:
		return "The service returned an error. Please try again later."
	case types.ErrProcessing:
		return "The service response could not be processed."
	default:
		return e.Message
	}
}

func errTurnInProgress() error {
	return types.NewError(types.ErrTurnInProgress, "another turn is in progress")
}

func errNotReady(s Status) error {
	return types.NewError(types.ErrNotReady, "orchestrator is "+s.String())
}

// newTurnContext tags ctx with a fresh turn id and the conversation id.
func (o *Orchestrator) newTurnContext(ctx context.Context) (context.Context, string) {
	turnID := uuid.NewString()
	ctx = ctxkeys.WithTurnID(ctx, turnID)
	if convID := o.state.ConversationID(); convID != "" {
		ctx = ctxkeys.WithConversationID(ctx, convID)
	}
	return ctx, turnID
}
