package main

import (
	"Musico/commands"
	"Musico/config"
	"Musico/db_client"
	"Musico/handlers"
	"Musico/player"
	"Musico/redis_client"
	"Musico/resolver"
	"Musico/web"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Strum355/log"
	"github.com/bwmarrin/discordgo"
	"github.com/spf13/viper"
)

var production *bool

func main() {
	// Sets Flag to Debug Mode
	production = flag.Bool("p", false, "enables production with json logging")
	flag.Parse()
	if *production {
		log.InitJSONLogger(&log.Config{Output: os.Stdout})
	} else {
		log.InitSimpleLogger(&log.Config{Output: os.Stdout})
	}

	// Sets up Configurations for Viper
	config.InitConfig()

	// Creates Discord Bot Session
	s, err := discordgo.New("Bot " + viper.GetString("discord.token"))
	if err != nil {
		log.WithError(err).Error("Failed to create Discord session")
		return
	}

	s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Info("Bot has registered handlers")
	})

	redis_client.Init()
	db_client.Init()

	res := resolver.New(redis_client.RDB)
	registry := player.NewRegistry(s, res)

	// Configuring Intents and Adding Handlers
	handlers.HandlerConfig(s, registry)

	// Register Slash and Component Commands
	commands.RegisterSlashCommands(s, registry)

	// Connecting to Discord Server Gateway
	s.Open()
	log.Info("Bot is initialising")

	statusServer := web.NewServer(s, registry)
	statusServer.Start()

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	<-sc
	gracefulShutdown(s, registry, statusServer)
}

// gracefulShutdown handles cleaning up after the bot is shutdown
func gracefulShutdown(s *discordgo.Session, registry *player.Registry, statusServer *web.Server) {
	log.Info("Starting graceful shutdown...")

	statusServer.Shutdown()
	registry.StopAll()

	for _, vc := range s.VoiceConnections {
		if vc != nil {
			vc.Disconnect()
		}
	}

	time.Sleep(2 * time.Second)

	s.Close()

	log.Info("Cleanly exiting")
}
