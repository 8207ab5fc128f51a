package handlers

import (
	"Musico/player"

	"github.com/bwmarrin/discordgo"
)

// HandlerConfig handles configs for intents and handlers
func HandlerConfig(s *discordgo.Session, reg *player.Registry) {
	s.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	s.AddHandler(MessageHandler)
	s.AddHandler(VoiceStateHandler(reg))
}
