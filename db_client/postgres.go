package db_client

import (
	"time"

	"github.com/Strum355/log"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB *gorm.DB
)

// GuildSettings holds the per-guild playback preferences that survive restarts.
type GuildSettings struct {
	GuildID   string `gorm:"primaryKey"`
	Volume    int
	Loop      bool
	UpdatedAt time.Time
}

func Init() {
	dsn := viper.GetString("postgres.dsn")
	if dsn == "" {
		log.Info("No postgres DSN configured, guild settings will not persist")
		return
	}

	var err error
	for range 10 {
		DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err == nil {
			sqlDB, _ := DB.DB()
			if pingErr := sqlDB.Ping(); pingErr == nil {
				break
			}
		}
		log.Info("Waiting for Postgres to be ready...")
		time.Sleep(time.Second)
	}
	if err != nil {
		log.WithError(err).Error("Unable to connect to database")
		DB = nil
		return
	}

	if err := DB.AutoMigrate(&GuildSettings{}); err != nil {
		log.WithError(err).Error("Unable to migrate guild settings")
	}
}

// GetSettings returns the stored settings for a guild, or nil when the guild
// has none or no database is connected.
func GetSettings(guildID string) *GuildSettings {
	if DB == nil {
		return nil
	}
	var gs GuildSettings
	if err := DB.First(&gs, "guild_id = ?", guildID).Error; err != nil {
		return nil
	}
	return &gs
}

// SaveSettings upserts the settings for a guild. Best effort: playback never
// depends on the database being reachable.
func SaveSettings(gs *GuildSettings) {
	if DB == nil || gs == nil {
		return
	}
	if err := DB.Save(gs).Error; err != nil {
		log.WithError(err).Error("Failed to save settings for guild " + gs.GuildID)
	}
}
