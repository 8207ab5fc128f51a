package player

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Registry is the process-wide map from guild ID to its player. It is the
// only structure shared across guilds; its lock covers map access only and
// is never held across a resolve or stream call.
type Registry struct {
	mu      sync.Mutex
	players map[string]*Player

	session  *discordgo.Session
	resolver TrackResolver
	notify   Notifier
}

func NewRegistry(s *discordgo.Session, res TrackResolver) *Registry {
	return &Registry{
		players:  make(map[string]*Player),
		session:  s,
		resolver: res,
	}
}

// SetNotifier installs the event sink handed to every player created from
// now on. Must be called before the first GetOrCreate.
func (r *Registry) SetNotifier(n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notify = n
}

// GetOrCreate returns the guild's player, creating it on first touch.
// Concurrent first touches for the same guild yield the same player.
func (r *Registry) GetOrCreate(guildID string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.players[guildID]; ok {
		return p
	}
	p := newPlayer(guildID, r.session, r.resolver, r.notify)
	r.players[guildID] = p
	return p
}

// Get returns the guild's player if one exists.
func (r *Registry) Get(guildID string) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[guildID]
	return p, ok
}

// Remove drops a player, but only once it is fully idle: disconnected and
// with an empty queue. The lock is held across the idle check so a
// concurrent GetOrCreate can never be handed a player this is about to shut
// down; idle() is a quick in-memory round trip, never a blocking call.
func (r *Registry) Remove(guildID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[guildID]
	if !ok || !p.idle() {
		return false
	}
	delete(r.players, guildID)
	p.shutdown()
	return true
}

// StopAll shuts every player down. Called on process shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	players := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p)
	}
	r.players = make(map[string]*Player)
	r.mu.Unlock()

	for _, p := range players {
		p.shutdown()
	}
}

// Statuses snapshots every player, for the status surface.
func (r *Registry) Statuses() map[string]Status {
	r.mu.Lock()
	players := make(map[string]*Player, len(r.players))
	for id, p := range r.players {
		players[id] = p
	}
	r.mu.Unlock()

	out := make(map[string]Status, len(players))
	for id, p := range players {
		out[id] = p.Status()
	}
	return out
}
