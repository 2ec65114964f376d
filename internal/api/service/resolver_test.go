package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genjishimada/dispatch-core/internal/api/domain"
	"github.com/genjishimada/dispatch-core/internal/api/model"
	"github.com/genjishimada/dispatch-core/internal/notifications"
)

type fakePreferenceStore struct {
	prefs     []model.NotificationPreference
	fetchErr  error
	upserts   []model.NotificationPreference
	upsertErr func(eventType notifications.EventType, channel notifications.Channel) error
}

func (f *fakePreferenceStore) FetchPreferences(ctx context.Context, userID int64) ([]model.NotificationPreference, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.prefs, nil
}

func (f *fakePreferenceStore) UpsertPreference(ctx context.Context, userID int64, eventType notifications.EventType, channel notifications.Channel, enabled bool) error {
	if f.upsertErr != nil {
		if err := f.upsertErr(eventType, channel); err != nil {
			return err
		}
	}
	f.upserts = append(f.upserts, model.NotificationPreference{
		UserID:    userID,
		EventType: string(eventType),
		Channel:   string(channel),
		Enabled:   enabled,
	})
	return nil
}

type fakePreferenceCache struct {
	entries     map[string][]notifications.Channel
	invalidated int
}

func newFakePreferenceCache() *fakePreferenceCache {
	return &fakePreferenceCache{entries: map[string][]notifications.Channel{}}
}

func (f *fakePreferenceCache) GetChannels(ctx context.Context, userID int64, eventType notifications.EventType) ([]notifications.Channel, bool) {
	channels, ok := f.entries[string(eventType)]
	return channels, ok
}

func (f *fakePreferenceCache) SetChannels(ctx context.Context, userID int64, eventType notifications.EventType, channels []notifications.Channel) {
	f.entries[string(eventType)] = channels
}

func (f *fakePreferenceCache) Invalidate(ctx context.Context, userID int64) {
	f.entries = map[string][]notifications.Channel{}
	f.invalidated++
}

func newTestResolver(store PreferenceStore, cache PreferenceCache) *Resolver {
	return NewResolver(store, cache, notifications.DefaultChannels(), slog.Default())
}

func TestResolver_EnabledChannels_Defaults(t *testing.T) {
	resolver := newTestResolver(&fakePreferenceStore{}, nil)

	t.Run("dm event without explicit rows", func(t *testing.T) {
		channels, err := resolver.EnabledChannels(context.Background(), 42, notifications.EventLootboxEarned)
		require.NoError(t, err)
		assert.Equal(t, []notifications.Channel{notifications.ChannelDiscordDM, notifications.ChannelWeb}, channels)
	})

	t.Run("ping event without explicit rows", func(t *testing.T) {
		channels, err := resolver.EnabledChannels(context.Background(), 42, notifications.EventXPGain)
		require.NoError(t, err)
		assert.Equal(t, []notifications.Channel{notifications.ChannelDiscordPing, notifications.ChannelWeb}, channels)
	})

	t.Run("record_edited resolves to nothing", func(t *testing.T) {
		channels, err := resolver.EnabledChannels(context.Background(), 42, notifications.EventRecordEdited)
		require.NoError(t, err)
		assert.Empty(t, channels)
	})

	t.Run("unknown event type rejected", func(t *testing.T) {
		_, err := resolver.EnabledChannels(context.Background(), 42, "friend_request")
		assert.ErrorIs(t, err, domain.ErrInvalidEventType)
	})
}

func TestResolver_EnabledChannels_ExplicitRowsWin(t *testing.T) {
	store := &fakePreferenceStore{
		prefs: []model.NotificationPreference{
			// opt out of the default dm, opt in to ping which is off by default
			{UserID: 42, EventType: "lootbox_earned", Channel: "discord_dm", Enabled: false},
			{UserID: 42, EventType: "lootbox_earned", Channel: "discord_ping", Enabled: true},
			// rows for other event types must not leak in
			{UserID: 42, EventType: "xp_gain", Channel: "web", Enabled: false},
		},
	}
	resolver := newTestResolver(store, nil)

	channels, err := resolver.EnabledChannels(context.Background(), 42, notifications.EventLootboxEarned)
	require.NoError(t, err)
	assert.Equal(t, []notifications.Channel{notifications.ChannelDiscordPing, notifications.ChannelWeb}, channels)

	channels, err = resolver.EnabledChannels(context.Background(), 42, notifications.EventXPGain)
	require.NoError(t, err)
	assert.Equal(t, []notifications.Channel{notifications.ChannelDiscordPing}, channels)
}

func TestResolver_EnabledChannels_Cache(t *testing.T) {
	store := &fakePreferenceStore{}
	cache := newFakePreferenceCache()
	resolver := newTestResolver(store, cache)

	channels, err := resolver.EnabledChannels(context.Background(), 42, notifications.EventRankUp)
	require.NoError(t, err)
	assert.Equal(t, []notifications.Channel{notifications.ChannelDiscordPing, notifications.ChannelWeb}, channels)

	// second call must come from the cache even if the store now fails
	store.fetchErr = errors.New("db down")
	channels, err = resolver.EnabledChannels(context.Background(), 42, notifications.EventRankUp)
	require.NoError(t, err)
	assert.Equal(t, []notifications.Channel{notifications.ChannelDiscordPing, notifications.ChannelWeb}, channels)
}

func TestResolver_ShouldDeliver(t *testing.T) {
	resolver := newTestResolver(&fakePreferenceStore{}, nil)

	should, err := resolver.ShouldDeliver(context.Background(), 42, notifications.EventRankUp, notifications.ChannelDiscordPing)
	require.NoError(t, err)
	assert.True(t, should)

	should, err = resolver.ShouldDeliver(context.Background(), 42, notifications.EventRankUp, notifications.ChannelDiscordDM)
	require.NoError(t, err)
	assert.False(t, should)

	_, err = resolver.ShouldDeliver(context.Background(), 42, notifications.EventRankUp, "email")
	assert.ErrorIs(t, err, domain.ErrInvalidChannel)
}

func TestResolver_GetPreferences(t *testing.T) {
	store := &fakePreferenceStore{
		prefs: []model.NotificationPreference{
			{UserID: 42, EventType: "xp_gain", Channel: "web", Enabled: false},
		},
	}
	resolver := newTestResolver(store, nil)

	resolved, err := resolver.GetPreferences(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, resolved, len(notifications.EventTypes))

	byEvent := map[notifications.EventType]map[notifications.Channel]bool{}
	for _, entry := range resolved {
		require.Len(t, entry.Channels, len(notifications.Channels))
		byEvent[entry.EventType] = entry.Channels
	}

	// explicit opt-out overrides the default
	assert.False(t, byEvent[notifications.EventXPGain][notifications.ChannelWeb])
	assert.True(t, byEvent[notifications.EventXPGain][notifications.ChannelDiscordPing])

	// untouched event types come straight from the defaults
	assert.True(t, byEvent[notifications.EventLootboxEarned][notifications.ChannelDiscordDM])
	assert.False(t, byEvent[notifications.EventLootboxEarned][notifications.ChannelDiscordPing])
	assert.False(t, byEvent[notifications.EventRecordEdited][notifications.ChannelWeb])
}

func TestResolver_UpdatePreference(t *testing.T) {
	store := &fakePreferenceStore{}
	cache := newFakePreferenceCache()
	resolver := newTestResolver(store, cache)

	err := resolver.UpdatePreference(context.Background(), 42, notifications.EventXPGain, notifications.ChannelWeb, false)
	require.NoError(t, err)
	require.Len(t, store.upserts, 1)
	assert.Equal(t, 1, cache.invalidated)

	err = resolver.UpdatePreference(context.Background(), 42, "bogus", notifications.ChannelWeb, false)
	assert.ErrorIs(t, err, domain.ErrInvalidEventType)

	err = resolver.UpdatePreference(context.Background(), 42, notifications.EventXPGain, "email", false)
	assert.ErrorIs(t, err, domain.ErrInvalidChannel)
}

func TestResolver_BulkUpdate(t *testing.T) {
	t.Run("applies all entries", func(t *testing.T) {
		store := &fakePreferenceStore{}
		cache := newFakePreferenceCache()
		resolver := newTestResolver(store, cache)

		err := resolver.BulkUpdate(context.Background(), 42, []PreferenceUpdate{
			{EventType: notifications.EventXPGain, Channel: notifications.ChannelWeb, Enabled: false},
			{EventType: notifications.EventRankUp, Channel: notifications.ChannelDiscordPing, Enabled: false},
		})
		require.NoError(t, err)
		assert.Len(t, store.upserts, 2)
		assert.Equal(t, 1, cache.invalidated)
	})

	t.Run("invalid entry rejected before any write", func(t *testing.T) {
		store := &fakePreferenceStore{}
		resolver := newTestResolver(store, nil)

		err := resolver.BulkUpdate(context.Background(), 42, []PreferenceUpdate{
			{EventType: notifications.EventXPGain, Channel: notifications.ChannelWeb, Enabled: false},
			{EventType: "bogus", Channel: notifications.ChannelWeb, Enabled: true},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidEventType)
		assert.Contains(t, err.Error(), "bogus")
		assert.Empty(t, store.upserts)
	})

	t.Run("store failure aborts the remainder and names the entry", func(t *testing.T) {
		boom := errors.New("constraint violation")
		store := &fakePreferenceStore{
			upsertErr: func(eventType notifications.EventType, channel notifications.Channel) error {
				if eventType == notifications.EventRankUp {
					return boom
				}
				return nil
			},
		}
		resolver := newTestResolver(store, nil)

		err := resolver.BulkUpdate(context.Background(), 42, []PreferenceUpdate{
			{EventType: notifications.EventXPGain, Channel: notifications.ChannelWeb, Enabled: false},
			{EventType: notifications.EventRankUp, Channel: notifications.ChannelDiscordPing, Enabled: false},
			{EventType: notifications.EventPrestige, Channel: notifications.ChannelWeb, Enabled: false},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "rank_up")

		// the first entry stays applied, the third is never reached
		require.Len(t, store.upserts, 1)
		assert.Equal(t, "xp_gain", store.upserts[0].EventType)
	})
}

func TestResolver_LegacyBitmask(t *testing.T) {
	t.Run("defaults pack every flag", func(t *testing.T) {
		resolver := newTestResolver(&fakePreferenceStore{}, nil)

		bitmask, err := resolver.LegacyBitmask(context.Background(), 42)
		require.NoError(t, err)
		// every mapped (event, channel) pair is on by default
		assert.Equal(t, 255, bitmask)
	})

	t.Run("explicit opt-outs clear their bits", func(t *testing.T) {
		store := &fakePreferenceStore{
			prefs: []model.NotificationPreference{
				{UserID: 42, EventType: "verification_approved", Channel: "discord_dm", Enabled: false},
				{UserID: 42, EventType: "rank_up", Channel: "discord_ping", Enabled: false},
			},
		}
		resolver := newTestResolver(store, nil)

		bitmask, err := resolver.LegacyBitmask(context.Background(), 42)
		require.NoError(t, err)
		expected := 255 &^ int(notifications.LegacyDMOnVerification) &^ int(notifications.LegacyPingOnRankUpdate)
		assert.Equal(t, expected, bitmask)
	})

	t.Run("each flag reacts to exactly its own pair", func(t *testing.T) {
		for _, mapping := range notifications.LegacyMappings {
			store := &fakePreferenceStore{
				prefs: []model.NotificationPreference{
					{UserID: 42, EventType: string(mapping.EventType), Channel: string(mapping.Channel), Enabled: false},
				},
			}
			resolver := newTestResolver(store, nil)

			bitmask, err := resolver.LegacyBitmask(context.Background(), 42)
			require.NoError(t, err)
			assert.Equal(t, 255&^int(mapping.Flag), bitmask,
				"disabling %s/%s should clear only flag %d", mapping.EventType, mapping.Channel, mapping.Flag)
		}
	})
}
