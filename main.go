package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"community-chat/community"
	"community-chat/handlers"
	"community-chat/store"
	"community-chat/tui"
	"community-chat/utils"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	terminalUI := flag.Bool("tui", false, "run the terminal UI instead of the local server")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// .env is optional; real deployments set the variables directly.
	_ = godotenv.Load()

	config, err := utils.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Warn("config file not loaded, using defaults")
		config = &utils.Config{}
		config.API.BaseURL = "http://localhost:3000"
		config.Server.Port = 8080
	}
	utils.ApplyEnvOverrides(config)

	if config.API.Token == "" {
		log.Warn("no API token configured, session checks will fail")
	}

	client := community.NewClient(config.API.BaseURL, config.API.Token)
	state := store.New()

	if *terminalUI {
		if err := tui.New(client, state, log).Run(); err != nil {
			log.WithError(err).Fatal("terminal UI exited")
		}
		return
	}

	// Verify the session up front so the UI gets a clean 401 with a login
	// redirect instead of opaque proxy failures.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	user, err := client.VerifySession(ctx)
	cancel()
	if err != nil {
		log.WithError(err).Error("session verification failed, serving unauthenticated")
	} else {
		state.SetSession(user)
		log.WithFields(logrus.Fields{
			"user_id": user.ID,
			"name":    user.Name,
		}).Info("session verified")
	}

	router := gin.Default()
	handlers.SetupAPIRoutes(router, client, state, log)

	addr := fmt.Sprintf(":%d", config.Server.Port)
	go func() {
		log.WithField("addr", addr).Info("local UI server listening")
		if err := router.Run(addr); err != nil {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
}
