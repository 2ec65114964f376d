// Package notifications holds the notification domain vocabulary shared by
// the API service and the delivery worker: channels, event types, the
// default-channel table, and the broker message format.
package notifications

// Channel is a delivery medium a notification can reach a user through.
type Channel string

const (
	ChannelDiscordDM   Channel = "discord_dm"
	ChannelDiscordPing Channel = "discord_ping"
	ChannelWeb         Channel = "web"
)

// Channels lists every channel in a fixed order. Preference views and the
// resolver iterate this slice so output ordering is stable.
var Channels = []Channel{
	ChannelDiscordDM,
	ChannelDiscordPing,
	ChannelWeb,
}

// Valid reports whether c is a recognized channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelDiscordDM, ChannelDiscordPing, ChannelWeb:
		return true
	}
	return false
}

// IsDiscord reports whether delivery on c happens through the Discord bot.
func (c Channel) IsDiscord() bool {
	return c == ChannelDiscordDM || c == ChannelDiscordPing
}

// EventType identifies a kind of notification event.
type EventType string

const (
	// Completion/record events
	EventVerificationApproved EventType = "verification_approved"
	EventVerificationRejected EventType = "verification_rejected"
	EventRecordRemoved        EventType = "record_removed"
	EventRecordEdited         EventType = "record_edited"

	// Progression events
	EventSkillRoleUpdate EventType = "skill_role_update"
	EventXPGain          EventType = "xp_gain"
	EventRankUp          EventType = "rank_up"
	EventPrestige        EventType = "prestige"
	EventMasteryEarned   EventType = "mastery_earned"

	// Reward events
	EventLootboxEarned EventType = "lootbox_earned"

	// Engagement events
	EventPlaytestUpdate EventType = "playtest_update"

	// Map edit events
	EventMapEditApproved EventType = "map_edit_approved"
	EventMapEditRejected EventType = "map_edit_rejected"
)

// EventTypes lists every event type in a fixed order.
var EventTypes = []EventType{
	EventVerificationApproved,
	EventVerificationRejected,
	EventRecordRemoved,
	EventRecordEdited,
	EventSkillRoleUpdate,
	EventXPGain,
	EventRankUp,
	EventPrestige,
	EventMasteryEarned,
	EventLootboxEarned,
	EventPlaytestUpdate,
	EventMapEditApproved,
	EventMapEditRejected,
}

// Valid reports whether t is a recognized event type.
func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// DefaultChannelSet maps each event type to the channels that receive it
// when the user has no explicit preference row.
type DefaultChannelSet map[EventType][]Channel

// defaultChannels is the built-in table. record_edited intentionally has no
// entry: it defaults to no channels at all.
var defaultChannels = DefaultChannelSet{
	EventVerificationApproved: {ChannelDiscordDM, ChannelWeb},
	EventVerificationRejected: {ChannelDiscordDM, ChannelWeb},
	EventRecordRemoved:        {ChannelDiscordDM, ChannelWeb},
	EventSkillRoleUpdate:      {ChannelDiscordDM, ChannelWeb},
	EventXPGain:               {ChannelDiscordPing, ChannelWeb},
	EventRankUp:               {ChannelDiscordPing, ChannelWeb},
	EventPrestige:             {ChannelDiscordPing, ChannelWeb},
	EventMasteryEarned:        {ChannelDiscordPing, ChannelWeb},
	EventLootboxEarned:        {ChannelDiscordDM, ChannelWeb},
	EventPlaytestUpdate:       {ChannelDiscordDM, ChannelWeb},
	EventMapEditApproved:      {ChannelDiscordDM, ChannelWeb},
	EventMapEditRejected:      {ChannelDiscordDM, ChannelWeb},
}

// DefaultChannels returns a copy of the default-channel table. Callers hold
// their own copy so the built-in table stays immutable.
func DefaultChannels() DefaultChannelSet {
	out := make(DefaultChannelSet, len(defaultChannels))
	for eventType, channels := range defaultChannels {
		out[eventType] = append([]Channel(nil), channels...)
	}
	return out
}

// Contains reports whether channel is in the default set for eventType.
func (d DefaultChannelSet) Contains(eventType EventType, channel Channel) bool {
	for _, c := range d[eventType] {
		if c == channel {
			return true
		}
	}
	return false
}

// DiscordUserIDLowerLimit is the smallest value a real Discord snowflake can
// take. User ids below it belong to accounts without a linked Discord user,
// so no broker message is published for them.
const DiscordUserIDLowerLimit = 1_000_000_000_000_000
