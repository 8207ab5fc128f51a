package commands

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"Musico/player"
	"Musico/resolver"
	"Musico/utils"

	"github.com/Strum355/log"
	"github.com/bwmarrin/discordgo"
	"github.com/spf13/viper"
)

// Component custom IDs are routed on their first character.
const (
	componentPause = "p_toggle"
	componentSkip  = "s_skip"
	componentStop  = "x_stop"
)

// Announcer renders player events into the text channel each guild last
// issued a command from.
type Announcer struct {
	mu       sync.Mutex
	session  *discordgo.Session
	channels map[string]string
}

var announcer = &Announcer{channels: map[string]string{}}

// Bind remembers the text channel announcements for a guild should go to.
func (a *Announcer) Bind(guildID, channelID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.channels[guildID] = channelID
}

func (a *Announcer) channel(guildID string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ch, ok := a.channels[guildID]
	return ch, ok
}

// Notify is registered with the player registry and runs off the player's
// own goroutines, so it may call Discord freely.
func (a *Announcer) Notify(ev player.Event) {
	a.mu.Lock()
	s := a.session
	a.mu.Unlock()
	if s == nil {
		return
	}
	channelID, ok := a.channel(ev.GuildID)
	if !ok {
		return
	}

	switch ev.Type {
	case player.EventNowPlaying:
		a.announceNowPlaying(s, channelID, ev.Track)
	case player.EventResolveFailed:
		msg := fmt.Sprintf("❌ Couldn't play `%s`, moving on", utils.Truncate(ev.Query, 60))
		var resErr *resolver.ResolutionError
		if errors.As(ev.Err, &resErr) && resErr.Suggestion != "" {
			msg += "\n" + resErr.Suggestion
		}
		s.ChannelMessageSend(channelID, msg)
	case player.EventQueueEnd:
		s.ChannelMessageSend(channelID, "🎶 Queue finished")
	case player.EventPlaybackRetry:
		s.ChannelMessageSend(channelID, fmt.Sprintf("🔁 Stream dropped, retrying `%s`", utils.Truncate(ev.Track.Title, 60)))
	case player.EventAutoDisconnect:
		s.ChannelMessageSend(channelID, "👋 Left the voice channel, nobody was listening")
	}
}

func (a *Announcer) announceNowPlaying(s *discordgo.Session, channelID string, track *resolver.Track) {
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🎵 Now Playing: %s", track.Title),
		URL:         track.PageURL,
		Description: fmt.Sprintf("Requested by: %s\nDuration: `%s`", track.RequestedBy, utils.FormatDuration(track.Duration)),
		Thumbnail:   &discordgo.MessageEmbedThumbnail{URL: track.Thumbnail},
		Color:       viper.GetInt("theme"),
	}

	_, err := s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{Label: "⏯️", Style: discordgo.SecondaryButton, CustomID: componentPause},
					discordgo.Button{Label: "⏭️", Style: discordgo.SecondaryButton, CustomID: componentSkip},
					discordgo.Button{Label: "⏹️", Style: discordgo.DangerButton, CustomID: componentStop},
				},
			},
		},
	})
	if err != nil {
		log.WithError(err).Error("Failed to announce track")
	}
}

// pauseComponent toggles between paused and playing
func pauseComponent(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) *interactionError {
	p, ok := players.Get(i.GuildID)
	if !ok {
		respondText(s, i, "Nothing is playing right now 😶")
		return nil
	}
	if err := p.Pause(); err == nil {
		respondText(s, i, "⏸️ Paused")
		return nil
	}
	if err := p.Resume(); err != nil {
		respondText(s, i, friendlyPlayerError(err))
		return nil
	}
	respondText(s, i, "▶️ Resumed")
	return nil
}

func skipComponent(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) *interactionError {
	p, ok := players.Get(i.GuildID)
	if !ok {
		respondText(s, i, "Nothing is playing right now 😶")
		return nil
	}
	if err := p.Skip(); err != nil {
		respondText(s, i, friendlyPlayerError(err))
		return nil
	}
	respondText(s, i, "⏭️ Skipped")
	return nil
}

func stopComponent(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) *interactionError {
	p, ok := players.Get(i.GuildID)
	if !ok {
		respondText(s, i, "Nothing is playing right now 😶")
		return nil
	}
	if err := p.Stop(); err != nil {
		respondText(s, i, friendlyPlayerError(err))
		return nil
	}
	respondText(s, i, "⏹️ Playback stopped and queue cleared")
	return nil
}
