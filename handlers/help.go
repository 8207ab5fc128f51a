package handlers

import (
	"github.com/bwmarrin/discordgo"
	"github.com/spf13/viper"
)

// HelpEmbedding creates the embedding for the help menu
func HelpEmbedding(s *discordgo.Session, m *discordgo.MessageCreate) {
	botAvatarURL := s.State.User.AvatarURL("64")
	helpEmbed := &discordgo.MessageEmbed{
		Title: "Musico Help",
		Thumbnail: &discordgo.MessageEmbedThumbnail{
			URL: botAvatarURL,
		},
		Color: viper.GetInt("theme"),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: "Playback",
				Value: "`/play` queue a link or search terms\n" +
					"`/pause` `/resume` `/skip` `/stop`\n" +
					"`/volume` set volume 0-100\n" +
					"`/loop` repeat the current song",
			},
			{
				Name: "Queue",
				Value: "`/queue` show the queue\n" +
					"`/np` show the playing song\n" +
					"`/shuffle` `/clear` `/remove`",
			},
			{
				Name:  "Voice",
				Value: "`/join` summon the bot\n`/leave` disconnect it",
			},
		},
	}
	s.ChannelMessageSendEmbed(m.ChannelID, helpEmbed)
}
