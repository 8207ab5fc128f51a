package web

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"Musico/player"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	viper.Set("web.port", 0)
	viper.Set("player.volume.default", 50)
	viper.Set("player.grace.seconds", 60)
}

func TestStatusEndpoint(t *testing.T) {
	reg := player.NewRegistry(nil, nil)
	defer reg.StopAll()
	reg.GetOrCreate("guild-1")
	reg.GetOrCreate("guild-2")

	srv := NewServer(nil, reg)

	rec := httptest.NewRecorder()
	srv.handleStatus(rec, httptest.NewRequest("GET", "/api/status", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var st Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.False(t, st.Connected)
	assert.Equal(t, 0, st.VoiceConnected)
	assert.Equal(t, 0, st.QueueSize)
	assert.Empty(t, st.CurrentSongs)
}

func TestHealthAndRoot(t *testing.T) {
	reg := player.NewRegistry(nil, nil)
	defer reg.StopAll()
	srv := NewServer(nil, reg)

	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.handleRoot(rec, httptest.NewRequest("GET", "/nope", nil))
	assert.Equal(t, 404, rec.Code)
}
