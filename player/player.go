package player

import (
	"context"
	"errors"
	"time"

	"Musico/db_client"
	"Musico/queue"
	"Musico/resolver"

	"github.com/Strum355/log"
	"github.com/bwmarrin/discordgo"
	"github.com/spf13/viper"
)

// State is the playback state of one guild's player.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StatePlaying
	StatePaused
	StateSkipping
	StateStopping
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateSkipping:
		return "skipping"
	case StateStopping:
		return "stopping"
	default:
		return "disconnecting"
	}
}

// TrackResolver is the extraction pipeline as the player sees it.
type TrackResolver interface {
	Resolve(ctx context.Context, query, requestedBy string) (*resolver.Track, error)
}

// voiceConn is the slice of discordgo.VoiceConnection the player itself
// needs. The streaming layer works with the concrete type.
type voiceConn interface {
	Speaking(b bool) error
	Disconnect() error
}

type EventType int

const (
	// EventNowPlaying fires when a track starts streaming.
	EventNowPlaying EventType = iota
	// EventResolveFailed fires when an entry fails to resolve during an
	// automatic advance; playback continues with the next entry.
	EventResolveFailed
	// EventQueueEnd fires when the queue runs out.
	EventQueueEnd
	// EventPlaybackRetry fires before the one bounded retry of a track
	// whose stream died.
	EventPlaybackRetry
	// EventAutoDisconnect fires when the grace period for sitting alone in
	// a voice channel expires.
	EventAutoDisconnect
)

type Event struct {
	Type    EventType
	GuildID string
	Track   *resolver.Track
	Query   string
	Err     error
}

// Notifier receives player events for rendering back to the guild. It is
// called from its own goroutine and may block freely.
type Notifier func(Event)

type cancelReason int

const (
	cancelNone cancelReason = iota
	cancelSkip
	cancelStop
)

// Player owns the voice connection and playback pipeline for one guild. All
// state lives inside a single goroutine; exported methods hand closures to
// that goroutine, so commands on the same guild apply one at a time in
// arrival order while different guilds never wait on each other.
type Player struct {
	guildID string
	queue   *queue.Queue

	cmds chan func()
	quit chan struct{}

	resolver TrackResolver
	notify   Notifier
	grace    time.Duration

	// joinVoice and stream are swapped out by tests; defaults talk to
	// Discord and ffmpeg.
	joinVoice func(channelID string) (voiceConn, error)
	stream    streamFunc

	// Everything below is owned by the run goroutine.
	state         State
	vc            voiceConn
	channelID     string
	volume        int
	sess          *StreamSession
	gen           int
	streamCancel  context.CancelFunc
	resolveCancel context.CancelFunc
	resolving     bool
	cancelWhy     cancelReason
	retried       bool
	alone         bool
	graceTimer    *time.Timer
}

func newPlayer(guildID string, s *discordgo.Session, res TrackResolver, notify Notifier) *Player {
	p := &Player{
		guildID:  guildID,
		queue:    queue.New(),
		cmds:     make(chan func()),
		quit:     make(chan struct{}),
		resolver: res,
		notify:   notify,
		grace:    time.Duration(viper.GetInt("player.grace.seconds")) * time.Second,
		volume:   viper.GetInt("player.volume.default"),
	}
	p.joinVoice = func(channelID string) (voiceConn, error) {
		vc, err := s.ChannelVoiceJoin(guildID, channelID, false, true)
		if err != nil {
			return nil, err
		}
		return vc, nil
	}
	p.stream = playStream

	if gs := db_client.GetSettings(guildID); gs != nil {
		p.volume = gs.Volume
		p.queue.SetLoop(gs.Loop)
	}

	go p.run()
	return p
}

func (p *Player) run() {
	for {
		select {
		case fn := <-p.cmds:
			fn()
		case <-p.quit:
			return
		}
	}
}

// post delivers fn to the run goroutine without waiting for it.
func (p *Player) post(fn func()) {
	select {
	case p.cmds <- fn:
	case <-p.quit:
	}
}

// do delivers fn and waits until the run goroutine has executed it. A false
// return means the player was shut down and fn never ran.
func (p *Player) do(fn func()) bool {
	done := make(chan struct{})
	select {
	case p.cmds <- func() {
		fn()
		close(done)
	}:
		<-done
		return true
	case <-p.quit:
		return false
	}
}

func (p *Player) emit(t EventType, track *resolver.Track, query string, err error) {
	if p.notify == nil {
		return
	}
	ev := Event{Type: t, GuildID: p.guildID, Track: track, Query: query, Err: err}
	go p.notify(ev)
}

// Join connects the player to a voice channel. Joining a channel the player
// already occupies is a no-op.
func (p *Player) Join(channelID string) error {
	errc := make(chan error, 1)
	p.post(func() {
		if p.vc != nil && p.channelID == channelID {
			errc <- nil
			return
		}
		p.state = StateConnecting
		go func() {
			vc, err := p.joinVoice(channelID)
			p.post(func() {
				if err != nil {
					if p.vc == nil {
						p.state = StateIdle
					}
					errc <- err
					return
				}
				p.vc = vc
				p.channelID = channelID
				if p.state == StateConnecting {
					p.state = StateIdle
					// Requests queued while connecting start now.
					if !p.resolving && p.queue.Len() > 0 {
						p.advance(false)
					}
				}
				errc <- nil
			})
		}()
	})
	select {
	case err := <-errc:
		return err
	case <-p.quit:
		return ErrNoVoiceConnection
	}
}

// Play appends a request to the queue and starts playback if the player is
// connected but idle. The entry is resolved lazily when it is about to
// play, so Play returns as soon as the request is queued.
func (p *Player) Play(query, requestedBy string) (int, error) {
	var pos int
	var err error
	ok := p.do(func() {
		if p.vc == nil {
			err = ErrNoVoiceConnection
			return
		}
		pos = p.queue.Append(&queue.Entry{Query: query, RequestedBy: requestedBy})
		if p.state == StateIdle && !p.resolving {
			p.advance(false)
		}
	})
	if !ok {
		return 0, ErrNoVoiceConnection
	}
	return pos, err
}

func (p *Player) Pause() error {
	var err error
	ok := p.do(func() {
		// The state can lag behind while the next entry resolves between
		// tracks; only a live stream session is pausable.
		if p.state != StatePlaying || p.sess == nil {
			err = ErrQueueEmpty
			return
		}
		p.state = StatePaused
		p.sess.Pause()
	})
	if !ok {
		return ErrNoVoiceConnection
	}
	return err
}

func (p *Player) Resume() error {
	var err error
	ok := p.do(func() {
		if p.state != StatePaused || p.sess == nil {
			err = ErrQueueEmpty
			return
		}
		p.state = StatePlaying
		p.sess.Resume()
	})
	if !ok {
		return ErrNoVoiceConnection
	}
	return err
}

// Skip advances past the current track. A skip arriving while a previous
// skip is still completing discards the next pending entry instead, so no
// playback slot is ever advanced twice.
func (p *Player) Skip() error {
	var err error
	ok := p.do(func() {
		switch {
		// An in-flight resolve is checked first: the state still reads
		// Playing/Paused between tracks while no stream exists.
		case p.resolving:
			p.cancelWhy = cancelSkip
			p.resolveCancel()
		case p.streamCancel != nil && (p.state == StatePlaying || p.state == StatePaused):
			p.state = StateSkipping
			p.retried = false
			p.streamCancel()
		case p.state == StateSkipping:
			p.queue.DropNext()
		default:
			err = ErrQueueEmpty
		}
	})
	if !ok {
		return ErrNoVoiceConnection
	}
	return err
}

// Stop halts playback and clears the queue, keeping the voice connection.
func (p *Player) Stop() error {
	var err error
	ok := p.do(func() {
		if p.vc == nil {
			err = ErrNoVoiceConnection
			return
		}
		p.queue.Clear()
		if p.resolving {
			p.cancelWhy = cancelStop
			p.resolveCancel()
		}
		// Without a running stream there is no completion event coming to
		// move the state along, so settle on idle right here.
		if p.streamCancel != nil {
			p.state = StateStopping
			p.streamCancel()
		} else {
			p.state = StateIdle
		}
	})
	if !ok {
		return ErrNoVoiceConnection
	}
	return err
}

// Leave stops everything and releases the voice connection.
func (p *Player) Leave() error {
	var err error
	if !p.do(func() {
		err = p.release()
	}) {
		return ErrNoVoiceConnection
	}
	return err
}

// release tears down playback and the voice connection. Run-goroutine only.
func (p *Player) release() error {
	if p.vc == nil {
		return ErrNoVoiceConnection
	}
	p.queue.Clear()
	if p.resolving {
		p.cancelWhy = cancelStop
		p.resolveCancel()
	}
	if p.streamCancel != nil {
		p.streamCancel()
		p.streamCancel = nil
	}
	p.stopGraceTimer()
	p.state = StateDisconnecting
	vc := p.vc
	p.vc = nil
	p.channelID = ""
	p.sess = nil
	go func() {
		vc.Disconnect()
		p.post(func() {
			if p.state == StateDisconnecting {
				p.state = StateIdle
			}
		})
	}()
	return nil
}

// Clear drops the waiting entries; the playing track is unaffected.
func (p *Player) Clear() error {
	if !p.do(func() {
		p.queue.ClearPending()
	}) {
		return ErrNoVoiceConnection
	}
	return nil
}

func (p *Player) Shuffle() error {
	var err error
	if !p.do(func() {
		if p.queue.Len() == 0 {
			err = ErrQueueEmpty
			return
		}
		p.queue.Shuffle()
	}) {
		return ErrNoVoiceConnection
	}
	return err
}

func (p *Player) RemoveAt(i int) (queue.Entry, error) {
	var removed queue.Entry
	var err error
	if !p.do(func() {
		var e *queue.Entry
		e, err = p.queue.RemoveAt(i)
		if e != nil {
			removed = *e
		}
	}) {
		return queue.Entry{}, ErrNoVoiceConnection
	}
	return removed, err
}

// SetVolume validates and applies a volume percentage, effective
// immediately on the running stream.
func (p *Player) SetVolume(percent int) error {
	var err error
	if !p.do(func() {
		if percent < 0 || percent > 100 {
			err = ErrInvalidVolume
			return
		}
		p.volume = percent
		if p.sess != nil {
			p.sess.SetVolume(percent)
		}
		p.persistSettings()
	}) {
		return ErrNoVoiceConnection
	}
	return err
}

// ToggleLoop flips track-loop mode, effective from the next completion.
func (p *Player) ToggleLoop() (bool, error) {
	var on bool
	if !p.do(func() {
		on = p.queue.ToggleLoop()
		p.persistSettings()
	}) {
		return false, ErrNoVoiceConnection
	}
	return on, nil
}

// SetAlone informs the player whether the bot is currently the sole
// occupant of its voice channel, driving the auto-disconnect grace timer.
func (p *Player) SetAlone(alone bool) {
	p.post(func() {
		p.alone = alone
		if p.vc == nil {
			return
		}
		if !alone {
			p.stopGraceTimer()
			return
		}
		if p.graceTimer == nil {
			p.graceTimer = time.AfterFunc(p.grace, func() {
				p.post(p.autoDisconnect)
			})
		}
	})
}

func (p *Player) stopGraceTimer() {
	if p.graceTimer != nil {
		p.graceTimer.Stop()
		p.graceTimer = nil
	}
}

// autoDisconnect runs when the grace timer fires. Run-goroutine only.
func (p *Player) autoDisconnect() {
	p.graceTimer = nil
	if !p.alone || p.vc == nil {
		return
	}
	log.WithFields(log.Fields{"guild_id": p.guildID}).Info("Alone past grace period, disconnecting")
	p.release()
	p.emit(EventAutoDisconnect, nil, "", nil)
}

// advance moves the playback slot forward. With skip set the loop mode is
// ignored; otherwise a looped track repeats. Run-goroutine only.
func (p *Player) advance(skip bool) {
	var e *queue.Entry
	if skip {
		e = p.queue.SkipNext()
	} else {
		e = p.queue.PopNext()
	}
	if e == nil {
		p.state = StateIdle
		p.sess = nil
		p.streamCancel = nil
		p.emit(EventQueueEnd, nil, "", nil)
		return
	}
	if e.Track != nil {
		p.startStream(e)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.resolveCancel = cancel
	p.resolving = true
	p.cancelWhy = cancelNone
	go func() {
		track, err := p.resolver.Resolve(ctx, e.Query, e.RequestedBy)
		p.post(func() {
			p.finishResolve(ctx, e, track, err)
		})
	}()
}

// finishResolve handles the outcome of a lazy resolution. Run-goroutine only.
func (p *Player) finishResolve(ctx context.Context, e *queue.Entry, track *resolver.Track, err error) {
	p.resolving = false
	p.resolveCancel = nil

	if ctx.Err() != nil {
		why := p.cancelWhy
		p.cancelWhy = cancelNone
		if why == cancelSkip {
			p.advance(true)
			return
		}
		// A stop or leave already cleared the queue; the cancelled resolve
		// must not touch the entries it left behind. Requests queued since
		// the stop still have to start, though.
		if p.state == StateIdle && p.vc != nil && p.queue.Len() > 0 {
			p.advance(false)
		}
		return
	}

	if err != nil {
		log.WithError(err).Error("Failed to resolve queued entry " + e.Query)
		p.emit(EventResolveFailed, nil, e.Query, err)
		p.queue.ClearCurrent()
		p.advance(false)
		return
	}

	e.Track = track
	p.startStream(e)
}

// startStream begins streaming a resolved entry. Run-goroutine only.
func (p *Player) startStream(e *queue.Entry) {
	p.state = StatePlaying
	p.gen++
	gen := p.gen

	ctx, cancel := context.WithCancel(context.Background())
	p.streamCancel = cancel
	sess := NewStreamSession(p.volume)
	p.sess = sess

	track := e.Track
	vc := p.vc
	p.emit(EventNowPlaying, track, e.Query, nil)

	go func() {
		err := p.stream(ctx, vc, track, sess)
		p.post(func() {
			p.finishTrack(gen, err)
		})
	}()
}

// finishTrack handles the end of a stream, whether natural, failed, or
// cancelled by a command. Run-goroutine only.
func (p *Player) finishTrack(gen int, err error) {
	if gen != p.gen {
		return
	}
	p.sess = nil
	p.streamCancel = nil

	switch p.state {
	case StateSkipping:
		p.retried = false
		p.advance(true)
	case StateStopping:
		p.queue.ClearCurrent()
		p.retried = false
		p.state = StateIdle
		// Anything queued after the stop starts now.
		if !p.resolving && p.queue.Len() > 0 {
			p.advance(false)
		}
	case StateDisconnecting, StateIdle:
		p.queue.ClearCurrent()
		p.retried = false
	default:
		cur := p.queue.Current()
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("Playback ended abnormally in guild " + p.guildID)
			if !p.retried && cur != nil && cur.Track != nil {
				p.retried = true
				p.emit(EventPlaybackRetry, cur.Track, cur.Query, err)
				p.startStream(cur)
				return
			}
		}
		p.retried = false
		p.advance(false)
	}
}

func (p *Player) persistSettings() {
	gs := &db_client.GuildSettings{
		GuildID: p.guildID,
		Volume:  p.volume,
		Loop:    p.queue.Loop(),
	}
	go db_client.SaveSettings(gs)
}

// Status is a read-only snapshot for display and the web surface.
type Status struct {
	State          State
	VoiceConnected bool
	Volume         int
	Loop           bool
	QueueLen       int
	NowPlaying     *resolver.Track
}

func (p *Player) Status() Status {
	var st Status
	p.do(func() {
		st = Status{
			State:          p.state,
			VoiceConnected: p.vc != nil,
			Volume:         p.volume,
			Loop:           p.queue.Loop(),
			QueueLen:       p.queue.Len(),
		}
		if p.state == StatePlaying || p.state == StatePaused {
			if cur := p.queue.Current(); cur != nil {
				st.NowPlaying = cur.Track
			}
		}
	})
	return st
}

// QueueSnapshot returns the pending entries in order, for display.
func (p *Player) QueueSnapshot() []queue.Entry {
	return p.queue.Snapshot()
}

// NowPlaying returns the track currently streaming, nil when idle.
func (p *Player) NowPlaying() *resolver.Track {
	return p.Status().NowPlaying
}

// idle reports whether the player can be removed from the registry.
func (p *Player) idle() bool {
	var ok bool
	p.do(func() {
		ok = p.state == StateIdle && p.vc == nil && p.queue.IsEmpty()
	})
	return ok
}

// shutdown releases everything and stops the run goroutine.
func (p *Player) shutdown() {
	if !p.do(func() {
		if p.vc != nil {
			p.release()
		}
	}) {
		return
	}
	close(p.quit)
}
