package commands

import (
	"github.com/bwmarrin/discordgo"
)

// checkUserVoiceChannel checks whether the user is in a voice channel the
// bot can serve, returning the user's voice state when they are.
func checkUserVoiceChannel(s *discordgo.Session, i *discordgo.InteractionCreate) (*discordgo.VoiceState, bool) {
	// Get user's current voice channel
	vs, err := s.State.VoiceState(i.GuildID, i.Member.User.ID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		respondText(s, i, "Join a voice channel first 😉")
		return nil, false
	}

	// Check if bot is already in a different voice channel
	if vc, ok := s.VoiceConnections[i.GuildID]; ok && vc != nil && vc.ChannelID != vs.ChannelID {
		respondText(s, i, "I'm already in another voice channel 😅")
		return nil, false
	}

	return vs, true
}

func respondText(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
}

func respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
}
