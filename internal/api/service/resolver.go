package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/genjishimada/dispatch-core/internal/api/domain"
	"github.com/genjishimada/dispatch-core/internal/api/model"
	"github.com/genjishimada/dispatch-core/internal/notifications"
)

// PreferenceStore is the persistence surface the resolver needs.
type PreferenceStore interface {
	FetchPreferences(ctx context.Context, userID int64) ([]model.NotificationPreference, error)
	UpsertPreference(ctx context.Context, userID int64, eventType notifications.EventType, channel notifications.Channel, enabled bool) error
}

// PreferenceCache caches resolved enabled-channel sets. Implementations are
// best-effort: a miss or a cache failure falls through to the store.
type PreferenceCache interface {
	GetChannels(ctx context.Context, userID int64, eventType notifications.EventType) ([]notifications.Channel, bool)
	SetChannels(ctx context.Context, userID int64, eventType notifications.EventType, channels []notifications.Channel)
	Invalidate(ctx context.Context, userID int64)
}

// PreferenceUpdate is one entry of a bulk preference write.
type PreferenceUpdate struct {
	EventType notifications.EventType
	Channel   notifications.Channel
	Enabled   bool
}

// ResolvedPreferences is the resolved enabled/disabled state of every
// channel for one event type.
type ResolvedPreferences struct {
	EventType notifications.EventType
	Channels  map[notifications.Channel]bool
}

// Resolver answers per-user, per-event-type, per-channel delivery decisions.
// An explicit preference row always wins; otherwise membership in the event
// type's default channel set decides.
type Resolver struct {
	store    PreferenceStore
	cache    PreferenceCache
	defaults notifications.DefaultChannelSet
	logger   *slog.Logger
}

// NewResolver creates a Resolver. cache may be nil to disable caching.
func NewResolver(store PreferenceStore, cache PreferenceCache, defaults notifications.DefaultChannelSet, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:    store,
		cache:    cache,
		defaults: defaults,
		logger:   logger,
	}
}

// EnabledChannels returns the channels a notification of eventType would be
// delivered on for userID, in the fixed channel order.
func (r *Resolver) EnabledChannels(ctx context.Context, userID int64, eventType notifications.EventType) ([]notifications.Channel, error) {
	if !eventType.Valid() {
		return nil, domain.ErrInvalidEventType
	}

	if r.cache != nil {
		if channels, ok := r.cache.GetChannels(ctx, userID, eventType); ok {
			return channels, nil
		}
	}

	prefs, err := r.store.FetchPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	explicit := make(map[notifications.Channel]bool)
	for _, pref := range prefs {
		if pref.EventType == string(eventType) {
			explicit[notifications.Channel(pref.Channel)] = pref.Enabled
		}
	}

	enabled := make([]notifications.Channel, 0, len(notifications.Channels))
	for _, channel := range notifications.Channels {
		if set, ok := explicit[channel]; ok {
			if set {
				enabled = append(enabled, channel)
			}
		} else if r.defaults.Contains(eventType, channel) {
			enabled = append(enabled, channel)
		}
	}

	if r.cache != nil {
		r.cache.SetChannels(ctx, userID, eventType, enabled)
	}

	return enabled, nil
}

// ShouldDeliver reports whether a notification of eventType should reach
// userID on channel.
func (r *Resolver) ShouldDeliver(ctx context.Context, userID int64, eventType notifications.EventType, channel notifications.Channel) (bool, error) {
	if !channel.Valid() {
		return false, domain.ErrInvalidChannel
	}

	enabled, err := r.EnabledChannels(ctx, userID, eventType)
	if err != nil {
		return false, err
	}

	for _, c := range enabled {
		if c == channel {
			return true, nil
		}
	}
	return false, nil
}

// GetPreferences resolves every event type and channel for a user, grouped
// per event type in the fixed enumeration order.
func (r *Resolver) GetPreferences(ctx context.Context, userID int64) ([]ResolvedPreferences, error) {
	prefs, err := r.store.FetchPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	explicit := make(map[string]map[string]bool)
	for _, pref := range prefs {
		if explicit[pref.EventType] == nil {
			explicit[pref.EventType] = make(map[string]bool)
		}
		explicit[pref.EventType][pref.Channel] = pref.Enabled
	}

	result := make([]ResolvedPreferences, 0, len(notifications.EventTypes))
	for _, eventType := range notifications.EventTypes {
		channels := make(map[notifications.Channel]bool, len(notifications.Channels))
		for _, channel := range notifications.Channels {
			if set, ok := explicit[string(eventType)][string(channel)]; ok {
				channels[channel] = set
			} else {
				channels[channel] = r.defaults.Contains(eventType, channel)
			}
		}
		result = append(result, ResolvedPreferences{EventType: eventType, Channels: channels})
	}

	return result, nil
}

// UpdatePreference upserts one preference row and drops the user's cached
// resolutions.
func (r *Resolver) UpdatePreference(ctx context.Context, userID int64, eventType notifications.EventType, channel notifications.Channel, enabled bool) error {
	if !eventType.Valid() {
		return domain.ErrInvalidEventType
	}
	if !channel.Valid() {
		return domain.ErrInvalidChannel
	}

	if err := r.store.UpsertPreference(ctx, userID, eventType, channel, enabled); err != nil {
		return err
	}

	if r.cache != nil {
		r.cache.Invalidate(ctx, userID)
	}

	return nil
}

// BulkUpdate upserts each entry independently. The call is deliberately not
// transactional: entries already applied stay applied when a later one
// fails, and the returned error names the failing entry.
func (r *Resolver) BulkUpdate(ctx context.Context, userID int64, updates []PreferenceUpdate) error {
	for _, update := range updates {
		if !update.EventType.Valid() {
			return fmt.Errorf("preference %s/%s: %w", update.EventType, update.Channel, domain.ErrInvalidEventType)
		}
		if !update.Channel.Valid() {
			return fmt.Errorf("preference %s/%s: %w", update.EventType, update.Channel, domain.ErrInvalidChannel)
		}
	}

	for _, update := range updates {
		if err := r.store.UpsertPreference(ctx, userID, update.EventType, update.Channel, update.Enabled); err != nil {
			return fmt.Errorf("preference %s/%s: %w", update.EventType, update.Channel, err)
		}
	}

	if r.cache != nil {
		r.cache.Invalidate(ctx, userID)
	}

	return nil
}

// LegacyBitmask packs the resolved state of the eight legacy flag pairs into
// one integer for consumers that predate the preference table. The bit
// order is a frozen compatibility contract.
func (r *Resolver) LegacyBitmask(ctx context.Context, userID int64) (int, error) {
	prefs, err := r.store.FetchPreferences(ctx, userID)
	if err != nil {
		return 0, err
	}

	explicit := make(map[string]map[string]bool)
	for _, pref := range prefs {
		if explicit[pref.EventType] == nil {
			explicit[pref.EventType] = make(map[string]bool)
		}
		explicit[pref.EventType][pref.Channel] = pref.Enabled
	}

	bitmask := 0
	for _, mapping := range notifications.LegacyMappings {
		enabled, ok := explicit[string(mapping.EventType)][string(mapping.Channel)]
		if !ok {
			enabled = r.defaults.Contains(mapping.EventType, mapping.Channel)
		}
		if enabled {
			bitmask |= int(mapping.Flag)
		}
	}

	return bitmask, nil
}
