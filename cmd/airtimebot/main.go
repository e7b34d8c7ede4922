package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/airtimebot/internal/bot"
	"github.com/and161185/airtimebot/internal/config"
	"github.com/and161185/airtimebot/internal/deps"
	"github.com/and161185/airtimebot/internal/engine"
	"github.com/and161185/airtimebot/internal/server"
	"github.com/and161185/airtimebot/internal/storage"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config := config.NewConfig()
	storage, err := storage.NewPostgresStorage(ctx, config.DatabaseURI)
	if err != nil {
		config.Logger.Fatal(err)
	}

	api, err := tgbotapi.NewBotAPI(config.BotToken)
	if err != nil {
		config.Logger.Fatal(err)
	}

	if config.WebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(config.WebhookURL + "/webhook")
		if err != nil {
			config.Logger.Fatal(err)
		}
		if _, err := api.Request(wh); err != nil {
			config.Logger.Fatal(err)
		}
	}

	eng := engine.NewEngine(storage, config, config.Logger)
	handler := bot.NewHandler(api, eng, config, config.Logger, api.Self.UserName)

	d := deps.NewDependencies(config.Logger, config.Key)
	srv := server.NewServer(storage, handler, config, d)
	if err := srv.Run(ctx); err != nil {
		config.Logger.Fatal(err)
	}
}
