package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/companion/api"
	"github.com/BaSui01/companion/internal/database"
	"github.com/BaSui01/companion/internal/metrics"
	"github.com/BaSui01/companion/types"
)

// Store is a database-backed api.Client. It keeps the same error
// classification as the remote client: a missing record is a 404 protocol
// error and a database failure is a connection error.
type Store struct {
	pool    *database.PoolManager
	metrics *metrics.Collector
	logger  *zap.Logger
	now     func() time.Time
}

var _ api.Client = (*Store)(nil)

// New migrates the schema and returns a Store.
func New(ctx context.Context, pool *database.PoolManager, collector *metrics.Collector, logger *zap.Logger) (*Store, error) {
	if pool == nil {
		return nil, errors.New("sqlstore: pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		pool:    pool,
		metrics: collector,
		logger:  logger.With(zap.String("component", "sqlstore")),
		now:     time.Now,
	}
	if err := s.db(ctx).AutoMigrate(
		&conversationRow{},
		&profileRow{},
		&messageRow{},
		&predefinedRow{},
		&instructionRow{},
	); err != nil {
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return s, nil
}

// WithClock overrides the time source used for created/updated stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Store) db(ctx context.Context) *gorm.DB {
	return s.pool.DB().WithContext(ctx)
}

// observe records the query duration and classifies err for op.
func (s *Store) observe(op string, start time.Time, err error) error {
	s.metrics.RecordDBQuery(op, time.Since(start))
	if err == nil {
		return nil
	}
	var te *types.Error
	if errors.As(err, &te) {
		return te
	}
	s.logger.Warn("query failed", zap.String("op", op), zap.Error(err))
	return types.ConnectionError(op, err)
}

func notFound(op, kind, id string) error {
	return types.ProtocolError(op, http.StatusNotFound, fmt.Sprintf("%s %q not found", kind, id))
}

// =============================================================================
// Conversations
// =============================================================================

// GetOrCreateConversation returns the user's active conversation, creating
// one when none exists or forceNew is set. A forced conversation retires
// the previous one.
func (s *Store) GetOrCreateConversation(ctx context.Context, userID string, forceNew bool) (conv types.Conversation, err error) {
	defer func(start time.Time) { err = s.observe(api.OpGetOrCreateConversation, start, err) }(time.Now())

	err = s.pool.WithTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		var row conversationRow
		q := tx.Where("user_id = ? AND active = ?", userID, true).Order("created_at DESC").Limit(1).Find(&row)
		if q.Error != nil {
			return q.Error
		}
		if q.RowsAffected > 0 && !forceNew {
			conv = row.toType()
			return nil
		}
		if err := tx.Model(&conversationRow{}).
			Where("user_id = ? AND active = ?", userID, true).
			Update("active", false).Error; err != nil {
			return err
		}
		row = conversationRow{ID: uuid.NewString(), UserID: userID, Active: true, CreatedAt: s.now()}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		s.logger.Info("conversation created",
			zap.String("conversation_id", row.ID),
			zap.Bool("force_new", forceNew))
		conv = row.toType()
		return nil
	})
	return conv, err
}

// GetConversation loads a conversation by id.
func (s *Store) GetConversation(ctx context.Context, conversationID string) (conv types.Conversation, err error) {
	defer func(start time.Time) { err = s.observe(api.OpGetConversation, start, err) }(time.Now())

	var row conversationRow
	if err := s.db(ctx).Where("id = ?", conversationID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Conversation{}, notFound(api.OpGetConversation, "conversation", conversationID)
		}
		return types.Conversation{}, err
	}
	return row.toType(), nil
}

// ListConversations returns every conversation of userID, oldest first.
func (s *Store) ListConversations(ctx context.Context, userID string) (convs []types.Conversation, err error) {
	defer func(start time.Time) { err = s.observe(api.OpListConversations, start, err) }(time.Now())

	var rows []conversationRow
	if err := s.db(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	convs = make([]types.Conversation, 0, len(rows))
	for _, r := range rows {
		convs = append(convs, r.toType())
	}
	return convs, nil
}

// =============================================================================
// Profiles
// =============================================================================

// GetOrCreateProfile returns the conversation's profile, creating an empty one
// on first use.
func (s *Store) GetOrCreateProfile(ctx context.Context, conversationID string) (profile types.Profile, err error) {
	defer func(start time.Time) { err = s.observe(api.OpGetOrCreateProfile, start, err) }(time.Now())

	err = s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		var conv conversationRow
		if err := tx.Where("id = ?", conversationID).Take(&conv).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(api.OpGetOrCreateProfile, "conversation", conversationID)
			}
			return err
		}
		var row profileRow
		q := tx.Where("conversation_id = ?", conversationID).Limit(1).Find(&row)
		if q.Error != nil {
			return q.Error
		}
		if q.RowsAffected == 0 {
			row = profileRow{ID: uuid.NewString(), ConversationID: conversationID, UpdatedAt: s.now()}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		profile = row.toType()
		return nil
	})
	return profile, err
}

// GetProfile loads a profile by id.
func (s *Store) GetProfile(ctx context.Context, profileID string) (profile types.Profile, err error) {
	defer func(start time.Time) { err = s.observe(api.OpGetProfile, start, err) }(time.Now())

	var row profileRow
	if err := s.db(ctx).Where("id = ?", profileID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Profile{}, notFound(api.OpGetProfile, "profile", profileID)
		}
		return types.Profile{}, err
	}
	return row.toType(), nil
}

// UpdateProfile replaces the profile summary.
func (s *Store) UpdateProfile(ctx context.Context, profileID, summary string) (profile types.Profile, err error) {
	defer func(start time.Time) { err = s.observe(api.OpUpdateProfile, start, err) }(time.Now())

	err = s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		var row profileRow
		if err := tx.Where("id = ?", profileID).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(api.OpUpdateProfile, "profile", profileID)
			}
			return err
		}
		row.Summary = summary
		row.UpdatedAt = s.now()
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		profile = row.toType()
		return nil
	})
	return profile, err
}

// =============================================================================
// Messages
// =============================================================================

// ListMessages returns the conversation's messages by timestamp, then by
// insertion order.
func (s *Store) ListMessages(ctx context.Context, conversationID string) (msgs []types.Message, err error) {
	defer func(start time.Time) { err = s.observe(api.OpListMessages, start, err) }(time.Now())

	var rows []messageRow
	if err := s.db(ctx).
		Where("conversation_id = ?", conversationID).
		Order("sent_at ASC").Order("seq ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	msgs = make([]types.Message, 0, len(rows))
	for _, r := range rows {
		stored, err := r.toStored()
		if err != nil {
			return nil, types.ProcessingError(api.OpListMessages, fmt.Errorf("message %s: %w", r.MessageID, err))
		}
		msgs = append(msgs, stored.Decode())
	}
	return msgs, nil
}

// AppendMessage stores msg in its flat form. The conversation must exist.
func (s *Store) AppendMessage(ctx context.Context, conversationID string, msg types.Message) (err error) {
	defer func(start time.Time) { err = s.observe(api.OpAppendMessage, start, err) }(time.Now())

	stored := msg.Encode()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.Timestamp.IsZero() {
		stored.Timestamp = s.now()
	}
	row, err := newMessageRow(conversationID, stored)
	if err != nil {
		return types.ProcessingError(api.OpAppendMessage, err)
	}

	return s.pool.WithTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&conversationRow{}).Where("id = ?", conversationID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return notFound(api.OpAppendMessage, "conversation", conversationID)
		}
		return tx.Create(&row).Error
	})
}

// =============================================================================
// Catalogs
// =============================================================================

// ListPredefinedMessages returns the scripted catalog ordered by identifier.
func (s *Store) ListPredefinedMessages(ctx context.Context) (entries []types.PredefinedEntry, err error) {
	defer func(start time.Time) { err = s.observe(api.OpListPredefinedMessages, start, err) }(time.Now())

	var rows []predefinedRow
	if err := s.db(ctx).Order("identifier ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	entries = make([]types.PredefinedEntry, 0, len(rows))
	for _, r := range rows {
		buttons, err := decodeButtons(r.Buttons)
		if err != nil {
			return nil, types.ProcessingError(api.OpListPredefinedMessages, fmt.Errorf("entry %s: %w", r.Identifier, err))
		}
		entries = append(entries, types.PredefinedEntry{
			Identifier:        r.Identifier,
			Content:           r.Content,
			Buttons:           buttons,
			ButtonDisplayName: r.ButtonDisplayName,
		})
	}
	return entries, nil
}

// ListInstructions returns the instruction catalog ordered by identifier.
func (s *Store) ListInstructions(ctx context.Context) (entries []types.InstructionEntry, err error) {
	defer func(start time.Time) { err = s.observe(api.OpListInstructions, start, err) }(time.Now())

	var rows []instructionRow
	if err := s.db(ctx).Order("identifier ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	entries = make([]types.InstructionEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, types.InstructionEntry{Identifier: r.Identifier, Text: r.Text})
	}
	return entries, nil
}
