package notifications

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel_Valid(t *testing.T) {
	for _, channel := range Channels {
		assert.True(t, channel.Valid(), "channel %s should be valid", channel)
	}

	assert.False(t, Channel("email").Valid())
	assert.False(t, Channel("").Valid())
	assert.False(t, Channel("DISCORD_DM").Valid())
}

func TestChannel_IsDiscord(t *testing.T) {
	assert.True(t, ChannelDiscordDM.IsDiscord())
	assert.True(t, ChannelDiscordPing.IsDiscord())
	assert.False(t, ChannelWeb.IsDiscord())
}

func TestEventType_Valid(t *testing.T) {
	for _, eventType := range EventTypes {
		assert.True(t, eventType.Valid(), "event type %s should be valid", eventType)
	}

	assert.False(t, EventType("friend_request").Valid())
	assert.False(t, EventType("").Valid())
}

func TestDefaultChannels(t *testing.T) {
	defaults := DefaultChannels()

	t.Run("dm event types default to dm and web", func(t *testing.T) {
		dmEvents := []EventType{
			EventVerificationApproved,
			EventVerificationRejected,
			EventRecordRemoved,
			EventSkillRoleUpdate,
			EventLootboxEarned,
			EventPlaytestUpdate,
			EventMapEditApproved,
			EventMapEditRejected,
		}

		for _, eventType := range dmEvents {
			assert.Equal(t, []Channel{ChannelDiscordDM, ChannelWeb}, defaults[eventType],
				"defaults for %s", eventType)
		}
	})

	t.Run("ping event types default to ping and web", func(t *testing.T) {
		pingEvents := []EventType{
			EventXPGain,
			EventRankUp,
			EventPrestige,
			EventMasteryEarned,
		}

		for _, eventType := range pingEvents {
			assert.Equal(t, []Channel{ChannelDiscordPing, ChannelWeb}, defaults[eventType],
				"defaults for %s", eventType)
		}
	})

	t.Run("record_edited defaults to no channels", func(t *testing.T) {
		channels, ok := defaults[EventRecordEdited]
		assert.False(t, ok)
		assert.Empty(t, channels)

		for _, channel := range Channels {
			assert.False(t, defaults.Contains(EventRecordEdited, channel))
		}
	})

	t.Run("returned table is a copy", func(t *testing.T) {
		defaults[EventXPGain] = []Channel{ChannelWeb}

		fresh := DefaultChannels()
		assert.Equal(t, []Channel{ChannelDiscordPing, ChannelWeb}, fresh[EventXPGain])
	})
}

func TestJobStatus(t *testing.T) {
	t.Run("valid statuses", func(t *testing.T) {
		for _, status := range JobStatuses {
			assert.True(t, status.Valid())
		}
		assert.False(t, JobStatus("running").Valid())
		assert.False(t, JobStatus("").Valid())
	})

	t.Run("terminal statuses", func(t *testing.T) {
		assert.False(t, JobQueued.Terminal())
		assert.False(t, JobProcessing.Terminal())
		assert.True(t, JobSucceeded.Terminal())
		assert.True(t, JobFailed.Terminal())
		assert.True(t, JobTimeout.Terminal())
	})

	t.Run("statuses requiring error details", func(t *testing.T) {
		assert.True(t, JobFailed.RequiresError())
		assert.True(t, JobTimeout.RequiresError())
		assert.False(t, JobQueued.RequiresError())
		assert.False(t, JobProcessing.RequiresError())
		assert.False(t, JobSucceeded.RequiresError())
	})

	t.Run("terminal list matches the terminal predicate", func(t *testing.T) {
		require.Len(t, TerminalStatuses, 3)
		for _, status := range JobStatuses {
			assert.Equal(t, status.Terminal(), slices.Contains(TerminalStatuses, status),
				"status %s", status)
		}
	})
}

func TestJobStatus_CanTransitionTo(t *testing.T) {
	// terminal states are frozen, everything else is permissive
	for _, from := range JobStatuses {
		for _, to := range JobStatuses {
			assert.Equal(t, !from.Terminal(), from.CanTransitionTo(to),
				"%s -> %s", from, to)
		}
	}

	assert.False(t, JobQueued.CanTransitionTo(JobStatus("running")))
	assert.False(t, JobQueued.CanTransitionTo(JobStatus("")))
}

func TestDeliveryStatus_Valid(t *testing.T) {
	assert.True(t, DeliveryDelivered.Valid())
	assert.True(t, DeliveryFailed.Valid())
	assert.True(t, DeliverySkipped.Valid())
	assert.False(t, DeliveryStatus("pending").Valid())
}

func TestLegacyFlags_BitPositions(t *testing.T) {
	// These bit values are a frozen wire contract with older bot consumers.
	assert.Equal(t, 1, int(LegacyDMOnVerification))
	assert.Equal(t, 2, int(LegacyDMOnSkillRoleUpdate))
	assert.Equal(t, 4, int(LegacyDMOnLootboxGain))
	assert.Equal(t, 8, int(LegacyDMOnRecordsRemoval))
	assert.Equal(t, 16, int(LegacyDMOnPlaytestAlerts))
	assert.Equal(t, 32, int(LegacyPingOnXPGain))
	assert.Equal(t, 64, int(LegacyPingOnMastery))
	assert.Equal(t, 128, int(LegacyPingOnRankUpdate))
}

func TestLegacyMappings(t *testing.T) {
	require.Len(t, LegacyMappings, 8)

	t.Run("each flag appears exactly once", func(t *testing.T) {
		seen := 0
		for _, mapping := range LegacyMappings {
			assert.Zero(t, seen&int(mapping.Flag), "flag %d mapped twice", mapping.Flag)
			seen |= int(mapping.Flag)
		}
		assert.Equal(t, 255, seen)
	})

	t.Run("dm flags map to dm channel, ping flags to ping", func(t *testing.T) {
		expected := map[LegacyFlag]Channel{
			LegacyDMOnVerification:    ChannelDiscordDM,
			LegacyDMOnSkillRoleUpdate: ChannelDiscordDM,
			LegacyDMOnLootboxGain:     ChannelDiscordDM,
			LegacyDMOnRecordsRemoval:  ChannelDiscordDM,
			LegacyDMOnPlaytestAlerts:  ChannelDiscordDM,
			LegacyPingOnXPGain:        ChannelDiscordPing,
			LegacyPingOnMastery:       ChannelDiscordPing,
			LegacyPingOnRankUpdate:    ChannelDiscordPing,
		}

		for _, mapping := range LegacyMappings {
			assert.Equal(t, expected[mapping.Flag], mapping.Channel, "flag %d", mapping.Flag)
			assert.True(t, mapping.EventType.Valid())
		}
	})

	t.Run("mapped pairs match the new-system events", func(t *testing.T) {
		events := map[LegacyFlag]EventType{}
		for _, mapping := range LegacyMappings {
			events[mapping.Flag] = mapping.EventType
		}

		assert.Equal(t, EventVerificationApproved, events[LegacyDMOnVerification])
		assert.Equal(t, EventSkillRoleUpdate, events[LegacyDMOnSkillRoleUpdate])
		assert.Equal(t, EventLootboxEarned, events[LegacyDMOnLootboxGain])
		assert.Equal(t, EventRecordRemoved, events[LegacyDMOnRecordsRemoval])
		assert.Equal(t, EventPlaytestUpdate, events[LegacyDMOnPlaytestAlerts])
		assert.Equal(t, EventXPGain, events[LegacyPingOnXPGain])
		assert.Equal(t, EventMasteryEarned, events[LegacyPingOnMastery])
		assert.Equal(t, EventRankUp, events[LegacyPingOnRankUpdate])
	})
}
