package commands

import (
	"context"
	"errors"
	"fmt"

	"Musico/player"

	"github.com/bwmarrin/discordgo"
)

// playMusic queues a track request and starts playback when the player is
// idle. The request is only resolved when it is about to play, so the
// response comes back as soon as the entry is queued.
func playMusic(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) *interactionError {
	// Check if user is in a voice channel and bot is not in a different one
	vs, ok := checkUserVoiceChannel(s, i)
	if !ok {
		return nil
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		return &interactionError{err: err, message: "Failed to respond"}
	}

	query := i.ApplicationCommandData().Options[0].StringValue()

	p := players.GetOrCreate(i.GuildID)
	announcer.Bind(i.GuildID, i.ChannelID)

	if err := p.Join(vs.ChannelID); err != nil {
		s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Content: "❌ Couldn't join your voice channel.",
		})
		return &interactionError{err: err, message: "Failed to join voice channel"}
	}

	pos, err := p.Play(query, i.Member.User.Username)
	if err != nil {
		s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Content: "❌ Couldn't queue that request.",
		})
		return &interactionError{err: err, message: "Failed to queue track"}
	}

	s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: fmt.Sprintf("🎵 Queued `%s` at position %d", query, pos),
	})
	return nil
}

// joinMusic summons the bot without queueing anything
func joinMusic(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) *interactionError {
	vs, ok := checkUserVoiceChannel(s, i)
	if !ok {
		return nil
	}

	p := players.GetOrCreate(i.GuildID)
	announcer.Bind(i.GuildID, i.ChannelID)

	if err := p.Join(vs.ChannelID); err != nil {
		respondText(s, i, "❌ Couldn't join your voice channel.")
		return &interactionError{err: err, message: "Failed to join voice channel"}
	}
	respondText(s, i, "👋 Joined your voice channel")
	return nil
}

// pauseMusic pauses the current song
func pauseMusic(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) *interactionError {
	return controlMusic(s, i, func(p *player.Player) error { return p.Pause() }, "⏸️ Paused")
}

// resumeMusic resumes the current song
func resumeMusic(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) *interactionError {
	return controlMusic(s, i, func(p *player.Player) error { return p.Resume() }, "▶️ Resumed")
}

// skipMusic skips the current song playing and moves on to the next
func skipMusic(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) *interactionError {
	return controlMusic(s, i, func(p *player.Player) error { return p.Skip() }, "⏭️ Skipped")
}

// stopMusic stops playback and empties the queue, staying in the channel
func stopMusic(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) *interactionError {
	return controlMusic(s, i, func(p *player.Player) error { return p.Stop() }, "⏹️ Playback stopped and queue cleared")
}

// leaveMusic stops playback and disconnects the bot from the voice channel
func leaveMusic(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) *interactionError {
	return controlMusic(s, i, func(p *player.Player) error { return p.Leave() }, "👋 Disconnected")
}

// controlMusic runs one player operation for the guild and reports the
// outcome, translating player errors into friendly replies.
func controlMusic(s *discordgo.Session, i *discordgo.InteractionCreate, op func(*player.Player) error, done string) *interactionError {
	if _, ok := checkUserVoiceChannel(s, i); !ok {
		return nil
	}

	p, ok := players.Get(i.GuildID)
	if !ok {
		respondText(s, i, "Nothing is playing right now 😶")
		return nil
	}

	if err := op(p); err != nil {
		respondText(s, i, friendlyPlayerError(err))
		return nil
	}
	respondText(s, i, done)
	return nil
}

// volumeMusic sets the playback volume, effective immediately
func volumeMusic(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) *interactionError {
	if _, ok := checkUserVoiceChannel(s, i); !ok {
		return nil
	}

	level := int(i.ApplicationCommandData().Options[0].IntValue())
	p := players.GetOrCreate(i.GuildID)
	if err := p.SetVolume(level); err != nil {
		respondText(s, i, "❌ Volume must be between 0 and 100")
		return nil
	}
	respondText(s, i, fmt.Sprintf("🔊 Volume set to %d%%", level))
	return nil
}

// loopMusic toggles looping the current song
func loopMusic(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) *interactionError {
	if _, ok := checkUserVoiceChannel(s, i); !ok {
		return nil
	}

	p := players.GetOrCreate(i.GuildID)
	looped, err := p.ToggleLoop()
	if err != nil {
		return &interactionError{err: err, message: "Failed to toggle loop"}
	}

	status := "enabled"
	if !looped {
		status = "disabled"
	}
	respondText(s, i, fmt.Sprintf("🔁 Loop %s", status))
	return nil
}

func friendlyPlayerError(err error) string {
	switch {
	case errors.Is(err, player.ErrNoVoiceConnection):
		return "I'm not in a voice channel 😶"
	case errors.Is(err, player.ErrQueueEmpty):
		return "Nothing is playing right now 😶"
	case errors.Is(err, player.ErrInvalidVolume):
		return "❌ Volume must be between 0 and 100"
	default:
		return "❌ Something went wrong, try again"
	}
}
