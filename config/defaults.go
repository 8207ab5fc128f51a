package config

import (
	"os"

	"github.com/spf13/viper"
)

func initDefaults() {
	viper.SetDefault("discord.token", os.Getenv("discord_token"))
	viper.SetDefault("discord.app.id", os.Getenv("discord_app_id"))
	viper.SetDefault("prefix", "!")
	viper.SetDefault("theme", 0x5865F2)

	// Playback
	viper.SetDefault("player.volume.default", 50)
	viper.SetDefault("player.grace.seconds", 60)

	// Resolver
	viper.SetDefault("resolver.backoff.max.seconds", 10)
	viper.SetDefault("resolver.rate.limit", 4)
	viper.SetDefault("resolver.rate.burst", 8)
	viper.SetDefault("cache.resolve", 1800)

	// External services
	viper.SetDefault("redis.address", os.Getenv("redis_address"))
	viper.SetDefault("postgres.dsn", os.Getenv("postgres_dsn"))
	viper.SetDefault("web.port", 5000)
}
