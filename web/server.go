package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"Musico/player"

	"github.com/Strum355/log"
	"github.com/bwmarrin/discordgo"
	"github.com/spf13/viper"
)

// Status is the JSON document served to dashboards and uptime checks.
type Status struct {
	Connected      bool     `json:"connected"`
	Guilds         int      `json:"guilds"`
	VoiceConnected int      `json:"voice_connected"`
	CurrentSongs   []string `json:"current_songs"`
	QueueSize      int      `json:"queue_size"`
}

// Server exposes the bot's aggregate status over HTTP.
type Server struct {
	session  *discordgo.Session
	registry *player.Registry
	srv      *http.Server
}

func NewServer(s *discordgo.Session, reg *player.Registry) *Server {
	w := &Server{session: s, registry: reg}

	mux := http.NewServeMux()
	mux.HandleFunc("/", w.handleRoot)
	mux.HandleFunc("/health", w.handleHealth)
	mux.HandleFunc("/api/status", w.handleStatus)

	w.srv = &http.Server{
		Addr:         ":" + strconv.Itoa(viper.GetInt("web.port")),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return w
}

// Start serves in the background until Shutdown.
func (w *Server) Start() {
	go func() {
		log.WithFields(log.Fields{"addr": w.srv.Addr}).Info("Status server listening")
		if err := w.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Status server stopped")
		}
	}()
}

func (w *Server) Shutdown() {
	w.srv.Close()
}

func (w *Server) handleRoot(rw http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(rw, r)
		return
	}
	rw.Write([]byte("Musico is running"))
}

func (w *Server) handleHealth(rw http.ResponseWriter, r *http.Request) {
	rw.Write([]byte("ok"))
}

func (w *Server) handleStatus(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(w.snapshot())
}

func (w *Server) snapshot() Status {
	st := Status{CurrentSongs: []string{}}
	if w.session != nil && w.session.State != nil {
		st.Connected = w.session.State.User != nil
		st.Guilds = len(w.session.State.Guilds)
	}
	for _, ps := range w.registry.Statuses() {
		if ps.VoiceConnected {
			st.VoiceConnected++
		}
		if ps.NowPlaying != nil {
			st.CurrentSongs = append(st.CurrentSongs, ps.NowPlaying.Title)
		}
		st.QueueSize += ps.QueueLen
	}
	return st
}
