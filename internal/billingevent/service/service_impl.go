package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	billingeventdomain "github.com/smallbiznis/voltway/internal/billingevent/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func New(p Params) billingeventdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("billingevent.service"),
		genID: p.GenID,
	}
}

func (s *Service) Emit(ctx context.Context, tx *gorm.DB, eventType string, dedupeKey string, payload map[string]any) error {
	var key *string
	if trimmed := strings.TrimSpace(dedupeKey); trimmed != "" {
		key = &trimmed
	}

	event := billingeventdomain.BillingEvent{
		ID:        s.genID.Generate(),
		EventType: eventType,
		Payload:   datatypes.JSONMap(payload),
		DedupeKey: key,
		CreatedAt: time.Now().UTC(),
	}

	result := tx.WithContext(ctx).Exec(
		`INSERT INTO billing_events (id, event_type, payload, dedupe_key, published, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (dedupe_key) DO NOTHING`,
		event.ID,
		event.EventType,
		event.Payload,
		event.DedupeKey,
		false,
		event.CreatedAt,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		s.log.Debug("dropped duplicate billing event",
			zap.String("event_type", eventType),
			zap.Stringp("dedupe_key", key),
		)
	}
	return nil
}

func (s *Service) PublishPending(ctx context.Context, limit int) (int, error) {
	if limit < 1 {
		limit = 100
	}

	var events []billingeventdomain.BillingEvent
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, event_type, payload, dedupe_key, published, published_at, created_at
		 FROM billing_events WHERE published = ? ORDER BY created_at ASC, id ASC LIMIT ?`,
		false, limit,
	).Scan(&events).Error
	if err != nil {
		return 0, err
	}

	published := 0
	for _, event := range events {
		// The relay target is a structured log stream; downstream
		// consumers tail it. Marking published after the log write keeps
		// at-least-once semantics across crashes.
		s.log.Info("billing event",
			zap.String("event_id", event.ID.String()),
			zap.String("event_type", event.EventType),
			zap.Any("payload", map[string]any(event.Payload)),
		)

		now := time.Now().UTC()
		res := s.db.WithContext(ctx).Exec(
			`UPDATE billing_events SET published = ?, published_at = ? WHERE id = ? AND published = ?`,
			true, now, event.ID, false,
		)
		if res.Error != nil {
			return published, res.Error
		}
		if res.RowsAffected > 0 {
			published++
		}
	}
	return published, nil
}
