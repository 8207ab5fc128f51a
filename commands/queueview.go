package commands

import (
	"context"
	"errors"
	"fmt"

	"Musico/player"
	"Musico/queue"
	"Musico/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/viper"
)

// nowPlaying displays the current song as well as the next few queued ones
func nowPlaying(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) *interactionError {
	p, ok := players.Get(i.GuildID)
	if !ok {
		respondText(s, i, "🎶 Nothing is playing right now 😶")
		return nil
	}

	st := p.Status()
	if st.NowPlaying == nil {
		respondText(s, i, "🎶 Nothing is playing right now 😶")
		return nil
	}

	status := "▶️ Playing"
	if st.State == player.StatePaused {
		status = "⏸️ Paused"
	}

	track := st.NowPlaying
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🎵 Now Playing: %s", track.Title),
		URL:         track.PageURL,
		Description: fmt.Sprintf("Requested by: %s\nStatus: %s\nDuration: `%s`", track.RequestedBy, status, utils.FormatDuration(track.Duration)),
		Thumbnail:   &discordgo.MessageEmbedThumbnail{URL: track.Thumbnail},
		Color:       viper.GetInt("theme"),
	}

	pending := p.QueueSnapshot()
	if len(pending) > 0 {
		queueText := "**Up Next:**\n"
		queueLimit := len(pending)
		if queueLimit > 5 {
			queueLimit = 5
		}
		for idx, item := range pending[:queueLimit] {
			queueText += fmt.Sprintf("%d. `%s` (requested by %s)\n", idx+1, utils.Truncate(item.Display(), 60), item.RequestedBy)
		}
		if len(pending) > 5 {
			queueText += fmt.Sprintf("...and %d more", len(pending)-5)
		}
		looped := "🔁"
		if !st.Loop {
			looped = ""
		}
		embed.Fields = []*discordgo.MessageEmbedField{
			{
				Name:  fmt.Sprintf("Queue %s", looped),
				Value: queueText,
			},
		}
	}

	respondEmbed(s, i, embed)
	return nil
}

// currentQueue shows the list of songs in the queue using an embed
func currentQueue(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) *interactionError {
	p, ok := players.Get(i.GuildID)
	if !ok {
		respondText(s, i, "🎶 The queue is empty 😶")
		return nil
	}

	st := p.Status()
	pending := p.QueueSnapshot()
	if st.NowPlaying == nil && len(pending) == 0 {
		respondText(s, i, "🎶 The queue is empty 😶")
		return nil
	}

	guild, _ := s.Guild(i.GuildID)
	guildName := i.GuildID
	if guild != nil {
		guildName = guild.Name
	}
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("🎶 Queue for `%s`", guildName),
		Color: viper.GetInt("theme"),
	}

	queueText := ""
	offset := 0
	if st.NowPlaying != nil {
		queueText += fmt.Sprintf("1. `%s` (requested by %s) ▶️\n", utils.Truncate(st.NowPlaying.Title, 60), st.NowPlaying.RequestedBy)
		offset = 1
	}
	for idx, item := range pending {
		queueText += fmt.Sprintf("%d. `%s` (requested by %s)\n", idx+offset+1, utils.Truncate(item.Display(), 60), item.RequestedBy)
	}
	looped := "🔁"
	if !st.Loop {
		looped = ""
	}
	embed.Fields = []*discordgo.MessageEmbedField{
		{
			Name:  fmt.Sprintf("Queue %s", looped),
			Value: queueText,
		},
	}

	respondEmbed(s, i, embed)
	return nil
}

// shuffleQueue shuffles the songs waiting in the queue
func shuffleQueue(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) *interactionError {
	if _, ok := checkUserVoiceChannel(s, i); !ok {
		return nil
	}

	p, ok := players.Get(i.GuildID)
	if !ok {
		respondText(s, i, "🎶 The queue is empty 😶")
		return nil
	}

	if err := p.Shuffle(); err != nil {
		respondText(s, i, friendlyPlayerError(err))
		return nil
	}
	respondText(s, i, "🔀 Queue shuffled!")
	return nil
}

// clearQueue drops every waiting song, leaving the current one playing
func clearQueue(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) *interactionError {
	if _, ok := checkUserVoiceChannel(s, i); !ok {
		return nil
	}

	p, ok := players.Get(i.GuildID)
	if !ok {
		respondText(s, i, "🎶 The queue is empty 😶")
		return nil
	}

	p.Clear()
	respondText(s, i, "🗑️ Queue cleared")
	return nil
}

// removeTrack removes the waiting song at the given /queue position
func removeTrack(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) *interactionError {
	if _, ok := checkUserVoiceChannel(s, i); !ok {
		return nil
	}

	p, ok := players.Get(i.GuildID)
	if !ok {
		respondText(s, i, "🎶 The queue is empty 😶")
		return nil
	}

	// Positions in /queue are 1-based and include the playing song.
	position := int(i.ApplicationCommandData().Options[0].IntValue())
	idx := position - 1
	if p.Status().NowPlaying != nil {
		idx--
	}
	removed, err := p.RemoveAt(idx)
	if err != nil {
		if errors.Is(err, queue.ErrIndexOutOfRange) {
			respondText(s, i, "❌ No song waiting at that position")
			return nil
		}
		return &interactionError{err: err, message: "Failed to remove song"}
	}

	respondText(s, i, fmt.Sprintf("🗑️ Removed `%s` from the queue", utils.Truncate(removed.Display(), 60)))
	return nil
}
