package handlers

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/viper"
)

// MessageHandler handles prefix message commands
func MessageHandler(s *discordgo.Session, m *discordgo.MessageCreate) {
	// If message is sent from the bot
	if m.Author.ID == s.State.User.ID {
		return
	}
	prefix := viper.GetString("prefix")

	if len(m.Content) == 0 || len(prefix) == 0 {
		return
	}

	// Checking for presence of prefix
	if !strings.HasPrefix(m.Content, prefix) {
		return
	}

	firstWord := m.Content
	if idx := strings.IndexByte(firstWord, ' '); idx >= 0 {
		firstWord = firstWord[:idx]
	}

	switch firstWord {
	case prefix:
		s.ChannelMessageSend(m.ChannelID, "type `"+prefix+"help` to open help menu.") // invalid prefix command
	case prefix + "help":
		HelpEmbedding(s, m)
	}
}
