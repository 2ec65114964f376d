package notifications

// LegacyFlag is one bit in the pre-preference-table bitmask that older bot
// consumers still read. The bit positions are a frozen wire contract; do not
// reorder or renumber.
type LegacyFlag int

const (
	LegacyDMOnVerification    LegacyFlag = 1 << 0
	LegacyDMOnSkillRoleUpdate LegacyFlag = 1 << 1
	LegacyDMOnLootboxGain     LegacyFlag = 1 << 2
	LegacyDMOnRecordsRemoval  LegacyFlag = 1 << 3
	LegacyDMOnPlaytestAlerts  LegacyFlag = 1 << 4
	LegacyPingOnXPGain        LegacyFlag = 1 << 5
	LegacyPingOnMastery       LegacyFlag = 1 << 6
	LegacyPingOnRankUpdate    LegacyFlag = 1 << 7
)

// LegacyMapping ties one legacy flag to the (event type, channel) pair that
// replaced it.
type LegacyMapping struct {
	Flag      LegacyFlag
	EventType EventType
	Channel   Channel
}

// LegacyMappings enumerates every legacy flag with its new-system pair.
// Resolution order is irrelevant to the packed value but kept stable anyway.
var LegacyMappings = []LegacyMapping{
	{LegacyDMOnVerification, EventVerificationApproved, ChannelDiscordDM},
	{LegacyDMOnSkillRoleUpdate, EventSkillRoleUpdate, ChannelDiscordDM},
	{LegacyDMOnLootboxGain, EventLootboxEarned, ChannelDiscordDM},
	{LegacyDMOnRecordsRemoval, EventRecordRemoved, ChannelDiscordDM},
	{LegacyDMOnPlaytestAlerts, EventPlaytestUpdate, ChannelDiscordDM},
	{LegacyPingOnXPGain, EventXPGain, ChannelDiscordPing},
	{LegacyPingOnMastery, EventMasteryEarned, ChannelDiscordPing},
	{LegacyPingOnRankUpdate, EventRankUp, ChannelDiscordPing},
}
