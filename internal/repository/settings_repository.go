package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/modkit/ticketing/internal/domain"
)

const settingsCacheTTL = 5 * time.Minute

// SettingsRepository encapsulates per-community ticketing configuration.
type SettingsRepository interface {
	// Get returns the community's settings, or ErrNotFound when the
	// community never configured ticketing.
	Get(ctx context.Context, communityID string) (*domain.TicketingSettings, error)
	Upsert(ctx context.Context, settings *domain.TicketingSettings) error
	Delete(ctx context.Context, communityID string) error
}

type settingsRepository struct {
	pool   *pgxpool.Pool
	cache  *redis.Client
	logger *zap.Logger
}

// NewSettingsRepository instantiates the repository. The redis client is
// optional; without it every read goes to postgres.
func NewSettingsRepository(pool *pgxpool.Pool, cache *redis.Client, logger *zap.Logger) SettingsRepository {
	return &settingsRepository{pool: pool, cache: cache, logger: logger}
}

func settingsCacheKey(communityID string) string {
	return "ticketing:settings:" + communityID
}

func (r *settingsRepository) Get(ctx context.Context, communityID string) (*domain.TicketingSettings, error) {
	if cached := r.fromCache(ctx, communityID); cached != nil {
		return cached, nil
	}

	const query = `
        SELECT community_id, default_thread_channel, ticketing_channels,
               alert_roles, alert_users, alert_channel
        FROM ticketing_settings WHERE community_id=$1`
	var settings domain.TicketingSettings
	err := r.pool.QueryRow(ctx, query, communityID).Scan(
		&settings.CommunityID,
		&settings.DefaultThreadChannel,
		&settings.TicketingChannels,
		&settings.AlertRoles,
		&settings.AlertUsers,
		&settings.AlertChannel,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	r.toCache(ctx, &settings)
	return &settings, nil
}

func (r *settingsRepository) Upsert(ctx context.Context, settings *domain.TicketingSettings) error {
	const query = `
        INSERT INTO ticketing_settings (community_id, default_thread_channel,
            ticketing_channels, alert_roles, alert_users, alert_channel)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (community_id) DO UPDATE SET
            default_thread_channel=EXCLUDED.default_thread_channel,
            ticketing_channels=EXCLUDED.ticketing_channels,
            alert_roles=EXCLUDED.alert_roles,
            alert_users=EXCLUDED.alert_users,
            alert_channel=EXCLUDED.alert_channel`
	_, err := r.pool.Exec(ctx, query,
		settings.CommunityID,
		settings.DefaultThreadChannel,
		settings.TicketingChannels,
		settings.AlertRoles,
		settings.AlertUsers,
		settings.AlertChannel,
	)
	if err != nil {
		return err
	}
	r.invalidate(ctx, settings.CommunityID)
	return nil
}

func (r *settingsRepository) Delete(ctx context.Context, communityID string) error {
	const query = `DELETE FROM ticketing_settings WHERE community_id=$1`
	cmd, err := r.pool.Exec(ctx, query, communityID)
	if err != nil {
		return err
	}
	r.invalidate(ctx, communityID)
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *settingsRepository) fromCache(ctx context.Context, communityID string) *domain.TicketingSettings {
	if r.cache == nil {
		return nil
	}
	raw, err := r.cache.Get(ctx, settingsCacheKey(communityID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("settings cache read failed", zap.String("community_id", communityID), zap.Error(err))
		}
		return nil
	}
	var settings domain.TicketingSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		r.logger.Warn("settings cache entry corrupt", zap.String("community_id", communityID), zap.Error(err))
		return nil
	}
	return &settings
}

func (r *settingsRepository) toCache(ctx context.Context, settings *domain.TicketingSettings) {
	if r.cache == nil {
		return
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, settingsCacheKey(settings.CommunityID), raw, settingsCacheTTL).Err(); err != nil {
		r.logger.Warn("settings cache write failed", zap.String("community_id", settings.CommunityID), zap.Error(err))
	}
}

func (r *settingsRepository) invalidate(ctx context.Context, communityID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Del(ctx, settingsCacheKey(communityID)).Err(); err != nil {
		r.logger.Warn("settings cache invalidation failed", zap.String("community_id", communityID), zap.Error(err))
	}
}
