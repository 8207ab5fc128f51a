package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"Musico/resolver"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	viper.Set("player.volume.default", 50)
	viper.Set("player.grace.seconds", 1)
}

type fakeVoice struct {
	mu           sync.Mutex
	disconnected bool
}

func (f *fakeVoice) Speaking(b bool) error { return nil }

func (f *fakeVoice) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
	return nil
}

func (f *fakeVoice) isDisconnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnected
}

type fakeResolver struct {
	mu     sync.Mutex
	delays map[string]time.Duration
	errs   map[string]error
}

func (f *fakeResolver) Resolve(ctx context.Context, query, requestedBy string) (*resolver.Track, error) {
	f.mu.Lock()
	delay := f.delays[query]
	err := f.errs[query]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &resolver.Track{
		ID:          query,
		Title:       query,
		StreamURL:   "http://stream.test/" + query,
		RequestedBy: requestedBy,
		Query:       query,
	}, nil
}

// streamRecorder stands in for the ffmpeg pipeline: it records which tracks
// started and blocks until cancelled, finished, or told to fail.
type streamRecorder struct {
	mu      sync.Mutex
	started []string
	errs    []error
	finish  chan error
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{finish: make(chan error)}
}

func (r *streamRecorder) fn(ctx context.Context, vc voiceConn, track *resolver.Track, sess *StreamSession) error {
	r.mu.Lock()
	r.started = append(r.started, track.Title)
	var next error
	if len(r.errs) > 0 {
		next = r.errs[0]
		r.errs = r.errs[1:]
		r.mu.Unlock()
		return next
	}
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil
	case err := <-r.finish:
		return err
	}
}

func (r *streamRecorder) startedTracks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.started))
	copy(out, r.started)
	return out
}

func (r *streamRecorder) failNext(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

type eventSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *eventSink) notify(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *eventSink) count(t EventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func newTestPlayer(res *fakeResolver, sink *eventSink) (*Player, *fakeVoice, *streamRecorder) {
	if res == nil {
		res = &fakeResolver{}
	}
	var notify Notifier
	if sink != nil {
		notify = sink.notify
	}
	p := newPlayer("guild-test", nil, res, notify)
	fv := &fakeVoice{}
	rec := newStreamRecorder()
	p.joinVoice = func(channelID string) (voiceConn, error) { return fv, nil }
	p.stream = rec.fn
	return p, fv, rec
}

func playing(p *Player) func() bool {
	return func() bool { return p.Status().State == StatePlaying }
}

func TestPlay_RequiresVoiceConnection(t *testing.T) {
	p, _, _ := newTestPlayer(nil, nil)
	defer p.shutdown()

	_, err := p.Play("song", "user")
	assert.ErrorIs(t, err, ErrNoVoiceConnection)
}

func TestPlay_StartsPlayback(t *testing.T) {
	p, _, rec := newTestPlayer(nil, nil)
	defer p.shutdown()

	require.NoError(t, p.Join("vc-1"))
	pos, err := p.Play("songA", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	assert.Eventually(t, playing(p), time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"songA"}, rec.startedTracks())

	np := p.NowPlaying()
	require.NotNil(t, np)
	assert.Equal(t, "songA", np.Title)
	assert.Equal(t, "alice", np.RequestedBy)
	assert.Equal(t, 0, p.Status().QueueLen, "playing track must leave the queue")
}

func TestPlay_QueuesBehindCurrent(t *testing.T) {
	p, _, rec := newTestPlayer(nil, nil)
	defer p.shutdown()

	require.NoError(t, p.Join("vc-1"))
	p.Play("songA", "alice")
	assert.Eventually(t, playing(p), time.Second, 10*time.Millisecond)

	pos, err := p.Play("songB", "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	assert.Equal(t, []string{"songA"}, rec.startedTracks(), "queued track must not start while one plays")
	assert.Equal(t, 1, p.Status().QueueLen)
}

func TestNaturalCompletion_Advances(t *testing.T) {
	p, _, rec := newTestPlayer(nil, nil)
	defer p.shutdown()

	require.NoError(t, p.Join("vc-1"))
	p.Play("songA", "alice")
	p.Play("songB", "bob")
	assert.Eventually(t, playing(p), time.Second, 10*time.Millisecond)

	rec.finish <- nil

	assert.Eventually(t, func() bool {
		np := p.NowPlaying()
		return np != nil && np.Title == "songB"
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"songA", "songB"}, rec.startedTracks())
}

func TestPauseResume(t *testing.T) {
	p, _, _ := newTestPlayer(nil, nil)
	defer p.shutdown()

	require.NoError(t, p.Join("vc-1"))

	assert.ErrorIs(t, p.Pause(), ErrQueueEmpty)
	assert.ErrorIs(t, p.Resume(), ErrQueueEmpty)

	p.Play("songA", "alice")
	assert.Eventually(t, playing(p), time.Second, 10*time.Millisecond)

	require.NoError(t, p.Pause())
	assert.Equal(t, StatePaused, p.Status().State)
	assert.ErrorIs(t, p.Pause(), ErrQueueEmpty)

	require.NoError(t, p.Resume())
	assert.Equal(t, StatePlaying, p.Status().State)
}

func TestSkip_DoubleSkipNeverSkipsTwice(t *testing.T) {
	res := &fakeResolver{delays: map[string]time.Duration{
		"songB": 30 * time.Millisecond,
		"songC": 30 * time.Millisecond,
	}}
	p, _, rec := newTestPlayer(res, nil)
	defer p.shutdown()

	require.NoError(t, p.Join("vc-1"))
	p.Play("songA", "alice")
	assert.Eventually(t, playing(p), time.Second, 10*time.Millisecond)
	p.Play("songB", "bob")
	p.Play("songC", "carol")

	require.NoError(t, p.Skip())
	require.NoError(t, p.Skip())

	assert.Eventually(t, func() bool {
		np := p.NowPlaying()
		return np != nil && np.Title == "songC"
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, p.Status().QueueLen)
	assert.Equal(t, []string{"songA", "songC"}, rec.startedTracks(), "songB must be skipped without ever streaming")
}

func TestSkip_NothingPlaying(t *testing.T) {
	p, _, _ := newTestPlayer(nil, nil)
	defer p.shutdown()

	require.NoError(t, p.Join("vc-1"))
	assert.ErrorIs(t, p.Skip(), ErrQueueEmpty)
}

func TestStop_ClearsQueueAndKeepsConnection(t *testing.T) {
	p, fv, _ := newTestPlayer(nil, nil)
	defer p.shutdown()

	require.NoError(t, p.Join("vc-1"))
	p.Play("songA", "alice")
	p.Play("songB", "bob")
	assert.Eventually(t, playing(p), time.Second, 10*time.Millisecond)

	require.NoError(t, p.Stop())

	assert.Eventually(t, func() bool {
		st := p.Status()
		return st.State == StateIdle && st.QueueLen == 0
	}, time.Second, 10*time.Millisecond)
	assert.Nil(t, p.NowPlaying())
	assert.True(t, p.Status().VoiceConnected)
	assert.False(t, fv.isDisconnected())
}

func TestLeave_ReleasesConnection(t *testing.T) {
	p, fv, _ := newTestPlayer(nil, nil)
	defer p.shutdown()

	assert.ErrorIs(t, p.Leave(), ErrNoVoiceConnection)

	require.NoError(t, p.Join("vc-1"))
	p.Play("songA", "alice")
	assert.Eventually(t, playing(p), time.Second, 10*time.Millisecond)

	require.NoError(t, p.Leave())

	assert.Eventually(t, func() bool {
		st := p.Status()
		return st.State == StateIdle && !st.VoiceConnected && fv.isDisconnected()
	}, time.Second, 10*time.Millisecond)
}

func TestSetVolume(t *testing.T) {
	p, _, _ := newTestPlayer(nil, nil)
	defer p.shutdown()

	require.NoError(t, p.Join("vc-1"))

	assert.ErrorIs(t, p.SetVolume(150), ErrInvalidVolume)
	assert.ErrorIs(t, p.SetVolume(-1), ErrInvalidVolume)
	assert.Equal(t, 50, p.Status().Volume, "failed volume change must leave state untouched")

	require.NoError(t, p.SetVolume(70))
	assert.Equal(t, 70, p.Status().Volume)

	p.Play("songA", "alice")
	assert.Eventually(t, playing(p), time.Second, 10*time.Millisecond)

	require.NoError(t, p.SetVolume(30))
	var live int
	p.do(func() { live = p.sess.Volume() })
	assert.Equal(t, 30, live, "volume change must reach the running stream")
}

func TestToggleLoop_RepeatsTrack(t *testing.T) {
	p, _, rec := newTestPlayer(nil, nil)
	defer p.shutdown()

	require.NoError(t, p.Join("vc-1"))
	p.Play("songA", "alice")
	assert.Eventually(t, playing(p), time.Second, 10*time.Millisecond)

	on, err := p.ToggleLoop()
	require.NoError(t, err)
	assert.True(t, on)

	rec.finish <- nil

	assert.Eventually(t, func() bool {
		return len(rec.startedTracks()) >= 2
	}, time.Second, 10*time.Millisecond)
	for _, title := range rec.startedTracks() {
		assert.Equal(t, "songA", title)
	}

	on, _ = p.ToggleLoop()
	assert.False(t, on)
}

func TestResolveFailure_AdvancesToNextEntry(t *testing.T) {
	res := &fakeResolver{errs: map[string]error{
		"broken": &resolver.ResolutionError{Kind: resolver.KindNotFound},
	}}
	sink := &eventSink{}
	p, _, rec := newTestPlayer(res, sink)
	defer p.shutdown()

	require.NoError(t, p.Join("vc-1"))
	p.Play("broken", "alice")
	p.Play("songB", "bob")

	assert.Eventually(t, func() bool {
		np := p.NowPlaying()
		return np != nil && np.Title == "songB"
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"songB"}, rec.startedTracks())
	assert.Equal(t, 1, sink.count(EventResolveFailed))
}

func TestResolveFailure_QueueExhausted(t *testing.T) {
	res := &fakeResolver{errs: map[string]error{
		"broken1": errors.New("nope"),
		"broken2": errors.New("nope"),
	}}
	sink := &eventSink{}
	p, _, _ := newTestPlayer(res, sink)
	defer p.shutdown()

	require.NoError(t, p.Join("vc-1"))
	p.Play("broken1", "alice")
	p.Play("broken2", "bob")

	assert.Eventually(t, func() bool {
		return sink.count(EventResolveFailed) == 2 && sink.count(EventQueueEnd) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, StateIdle, p.Status().State)
	assert.True(t, p.Status().VoiceConnected)
}

func TestPlaybackError_RetriesOnceThenAdvances(t *testing.T) {
	sink := &eventSink{}
	p, _, rec := newTestPlayer(nil, sink)
	defer p.shutdown()

	require.NoError(t, p.Join("vc-1"))
	rec.failNext(ErrConnectionLost)
	p.Play("songA", "alice")
	p.Play("songB", "bob")

	// First attempt of songA dies, the retry sticks.
	assert.Eventually(t, func() bool {
		started := rec.startedTracks()
		return len(started) == 2 && started[0] == "songA" && started[1] == "songA"
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, sink.count(EventPlaybackRetry))

	// The retry dies too: no second retry, advance to songB.
	rec.finish <- ErrConnectionLost

	assert.Eventually(t, func() bool {
		started := rec.startedTracks()
		return len(started) == 3 && started[2] == "songB"
	}, time.Second, 10*time.Millisecond)
}

func TestAutoDisconnect_AfterGracePeriod(t *testing.T) {
	sink := &eventSink{}
	p, fv, _ := newTestPlayer(nil, sink)
	defer p.shutdown()
	p.grace = 30 * time.Millisecond

	require.NoError(t, p.Join("vc-1"))
	p.Play("songA", "alice")
	assert.Eventually(t, playing(p), time.Second, 10*time.Millisecond)

	p.SetAlone(true)

	assert.Eventually(t, func() bool {
		st := p.Status()
		return st.State == StateIdle && !st.VoiceConnected && fv.isDisconnected()
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, sink.count(EventAutoDisconnect))
	assert.Equal(t, 0, p.Status().QueueLen)
}

func TestAutoDisconnect_CancelledWhenUsersReturn(t *testing.T) {
	p, fv, _ := newTestPlayer(nil, nil)
	defer p.shutdown()
	p.grace = 40 * time.Millisecond

	require.NoError(t, p.Join("vc-1"))
	p.SetAlone(true)
	time.Sleep(15 * time.Millisecond)
	p.SetAlone(false)
	time.Sleep(60 * time.Millisecond)

	assert.True(t, p.Status().VoiceConnected)
	assert.False(t, fv.isDisconnected())
}

func TestShuffleAndRemove(t *testing.T) {
	p, _, _ := newTestPlayer(nil, nil)
	defer p.shutdown()

	require.NoError(t, p.Join("vc-1"))

	assert.ErrorIs(t, p.Shuffle(), ErrQueueEmpty)

	p.Play("songA", "alice")
	assert.Eventually(t, playing(p), time.Second, 10*time.Millisecond)
	p.Play("songB", "bob")
	p.Play("songC", "carol")

	require.NoError(t, p.Shuffle())
	assert.Equal(t, 2, p.Status().QueueLen)

	_, err := p.RemoveAt(5)
	assert.Error(t, err)

	removed, err := p.RemoveAt(0)
	require.NoError(t, err)
	assert.Contains(t, []string{"songB", "songC"}, removed.Query)
	assert.Equal(t, 1, p.Status().QueueLen)
}

// Between tracks the player briefly has no stream while the next entry
// resolves; commands landing in that window must neither crash nor wedge it.

func TestPauseDuringResolveWindow(t *testing.T) {
	res := &fakeResolver{delays: map[string]time.Duration{
		"songB": 200 * time.Millisecond,
	}}
	p, _, rec := newTestPlayer(res, nil)
	defer p.shutdown()

	require.NoError(t, p.Join("vc-1"))
	p.Play("songA", "alice")
	assert.Eventually(t, playing(p), time.Second, 10*time.Millisecond)
	p.Play("songB", "bob")

	rec.finish <- nil // songA ends, songB starts resolving
	time.Sleep(20 * time.Millisecond)

	assert.ErrorIs(t, p.Pause(), ErrQueueEmpty)
	assert.ErrorIs(t, p.Resume(), ErrQueueEmpty)

	// The rejected commands must not derail the pending track.
	assert.Eventually(t, func() bool {
		np := p.NowPlaying()
		return np != nil && np.Title == "songB"
	}, time.Second, 10*time.Millisecond)
}

func TestSkipDuringResolveWindow_DropsResolvingEntry(t *testing.T) {
	res := &fakeResolver{delays: map[string]time.Duration{
		"songB": 200 * time.Millisecond,
	}}
	p, _, rec := newTestPlayer(res, nil)
	defer p.shutdown()

	require.NoError(t, p.Join("vc-1"))
	p.Play("songA", "alice")
	assert.Eventually(t, playing(p), time.Second, 10*time.Millisecond)
	p.Play("songB", "bob")
	p.Play("songC", "carol")

	rec.finish <- nil
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, p.Skip())

	assert.Eventually(t, func() bool {
		np := p.NowPlaying()
		return np != nil && np.Title == "songC"
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"songA", "songC"}, rec.startedTracks(), "the resolving entry must be skipped, not streamed")
}

func TestStopDuringResolveWindow_ReturnsToConnectedIdle(t *testing.T) {
	res := &fakeResolver{delays: map[string]time.Duration{
		"songB": 200 * time.Millisecond,
	}}
	p, fv, rec := newTestPlayer(res, nil)
	defer p.shutdown()

	require.NoError(t, p.Join("vc-1"))
	p.Play("songA", "alice")
	assert.Eventually(t, playing(p), time.Second, 10*time.Millisecond)
	p.Play("songB", "bob")

	rec.finish <- nil
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, p.Stop())

	assert.Eventually(t, func() bool {
		st := p.Status()
		return st.State == StateIdle && st.QueueLen == 0
	}, time.Second, 10*time.Millisecond)
	assert.True(t, p.Status().VoiceConnected)
	assert.False(t, fv.isDisconnected())

	// The player accepts new work immediately, even if the cancelled
	// resolve has not reported back yet.
	_, err := p.Play("songC", "carol")
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		np := p.NowPlaying()
		return np != nil && np.Title == "songC"
	}, time.Second, 10*time.Millisecond)
}

func TestShutdownPlayer_RejectsCommands(t *testing.T) {
	p, _, _ := newTestPlayer(nil, nil)
	p.shutdown()

	_, err := p.Play("songA", "alice")
	assert.ErrorIs(t, err, ErrNoVoiceConnection)
	assert.ErrorIs(t, p.Pause(), ErrNoVoiceConnection)
	assert.ErrorIs(t, p.Skip(), ErrNoVoiceConnection)
	assert.ErrorIs(t, p.Stop(), ErrNoVoiceConnection)
	assert.ErrorIs(t, p.Clear(), ErrNoVoiceConnection)
	_, err = p.ToggleLoop()
	assert.ErrorIs(t, err, ErrNoVoiceConnection)
	_, err = p.RemoveAt(0)
	assert.ErrorIs(t, err, ErrNoVoiceConnection)
}
