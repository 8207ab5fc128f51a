package player

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"Musico/resolver"

	"github.com/bwmarrin/discordgo"
	"layeh.com/gopus"
)

const (
	sampleRate       = 48000
	channels         = 2
	frameSize        = 960
	maxOpusFrameSize = 4000
)

type streamFunc func(ctx context.Context, vc voiceConn, track *resolver.Track, sess *StreamSession) error

// StreamSession carries the controls the player can flip while a stream is
// running: pause and volume. The streaming goroutine polls it per read.
type StreamSession struct {
	mu     sync.Mutex
	paused bool
	volume int
}

func NewStreamSession(volume int) *StreamSession {
	return &StreamSession{volume: volume}
}

func (s *StreamSession) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

func (s *StreamSession) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

func (s *StreamSession) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *StreamSession) SetVolume(percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = percent
}

func (s *StreamSession) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// playStream pulls the track's remote stream through ffmpeg as raw PCM,
// scales it by the session volume, encodes Opus frames, and pushes them to
// the voice connection until EOF, error, or cancellation. A nil error means
// the track finished or was cancelled; anything else is a playback failure.
func playStream(ctx context.Context, conn voiceConn, track *resolver.Track, sess *StreamSession) error {
	vc, ok := conn.(*discordgo.VoiceConnection)
	if !ok {
		return fmt.Errorf("%w: unsupported voice connection", ErrConnectionLost)
	}

	if !vc.Ready {
		for i := 0; i < 20; i++ {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(250 * time.Millisecond):
			}
			if vc.Ready {
				break
			}
		}
		if !vc.Ready {
			return fmt.Errorf("%w: voice connection never became ready", ErrConnectionLost)
		}
	}

	vc.Speaking(true)
	defer vc.Speaking(false)

	// The reconnect flags ride out the brief drops YouTube CDN URLs are
	// prone to, matching how the stream URL was meant to be consumed.
	cmd := exec.Command("ffmpeg",
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", track.StreamURL,
		"-vn",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"pipe:1",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	defer func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		cmd.Wait()
	}()

	encoder, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}

	pcmBuffer := make([]byte, frameSize*channels*2)
	pcmCache := []int16{}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if sess.IsPaused() {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		n, err := stdout.Read(pcmBuffer)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrDecodeFailure, err)
		}

		volume := sess.Volume()
		for i := 0; i+1 < n; i += 2 {
			sample := int16(pcmBuffer[i]) | int16(pcmBuffer[i+1])<<8
			sample = int16(int32(sample) * int32(volume) / 100)
			pcmCache = append(pcmCache, sample)
		}

		for len(pcmCache) >= frameSize*channels {
			frame := pcmCache[:frameSize*channels]
			pcmCache = pcmCache[frameSize*channels:]

			opusFrame, err := encoder.Encode(frame, frameSize, maxOpusFrameSize)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrDecodeFailure, err)
			}
			if len(opusFrame) == 0 {
				continue
			}

			select {
			case vc.OpusSend <- opusFrame:
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
				return fmt.Errorf("%w: timeout sending opus frame", ErrConnectionLost)
			}
		}
	}
}
