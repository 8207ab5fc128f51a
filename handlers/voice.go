package handlers

import (
	"Musico/player"

	"github.com/bwmarrin/discordgo"
)

// VoiceStateHandler watches voice channel membership so each guild's player
// knows when the bot is sitting alone and should start its leave timer.
func VoiceStateHandler(reg *player.Registry) func(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	return func(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
		p, ok := reg.Get(v.GuildID)
		if !ok {
			return
		}

		vc, ok := s.VoiceConnections[v.GuildID]
		if !ok || vc == nil {
			return
		}

		p.SetAlone(botAloneInChannel(s, v.GuildID, vc.ChannelID))
	}
}

// botAloneInChannel reports whether no human is left in the bot's channel.
func botAloneInChannel(s *discordgo.Session, guildID, channelID string) bool {
	guild, err := s.State.Guild(guildID)
	if err != nil || guild == nil {
		return false
	}

	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID || vs.UserID == s.State.User.ID {
			continue
		}
		member, err := s.State.Member(guildID, vs.UserID)
		if err != nil || member == nil || !member.User.Bot {
			// Unknown members count as humans rather than risking an
			// early disconnect.
			return false
		}
	}
	return true
}
