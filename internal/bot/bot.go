package bot

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-modbot/internal/config"
	"tg-modbot/internal/events"
	"tg-modbot/internal/handler"
	"tg-modbot/internal/logger"
)

// BotService represents the Telegram bot service
type BotService struct {
	Bot     *telego.Bot
	Handler *th.BotHandler
}

// Start starts the bot handler
func (b *BotService) Start() {
	b.Handler.Start()
}

// Stop stops the bot handler
func (b *BotService) Stop() {
	b.Handler.Stop()
}

// Connect creates the bot and fetches its own identity
func Connect(ctx context.Context, cfg *config.Config) (*telego.Bot, events.BotIdentity, error) {
	if cfg.Bot.Token == "" {
		return nil, events.BotIdentity{}, fmt.Errorf("bot token is required")
	}

	debug := strings.EqualFold(cfg.Logger.Level, "DEBUG")
	bot, err := telego.NewBot(cfg.Bot.Token, telego.WithDefaultLogger(debug, true))
	if err != nil {
		return nil, events.BotIdentity{}, fmt.Errorf("failed to initialize bot: %w", err)
	}

	botUser, err := bot.GetMe(ctx)
	if err != nil {
		return nil, events.BotIdentity{}, fmt.Errorf("failed to get bot info: %w", err)
	}
	logger.Infof("Authorized on account %s", botUser.Username)

	return bot, events.BotIdentity{ID: botUser.ID, Username: botUser.Username}, nil
}

// Initialize registers the command menu, replaces the webhook and routes
// updates to router. metrics is served on the metrics path when not nil.
func Initialize(ctx context.Context, cfg *config.Config, bot *telego.Bot, router *handler.Router, metrics http.Handler) (*BotService, *WebhookServer, error) {
	setCommands(ctx, bot)

	err := bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to delete existing webhook: %w", err)
	}

	secretToken := webhookSecret(cfg.Bot.Token)

	bh, server, err := SetupWebhook(ctx, bot, WebhookOptions{
		Config:      cfg.Bot.Webhook,
		SecretToken: secretToken,
		Identity:    router.Identity(),
		Status:      router.Stats().Detailed,
		Metrics:     metrics,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup webhook: %w", err)
	}

	handler.SetupMessageHandlers(bh, router)

	return &BotService{
		Bot:     bot,
		Handler: bh,
	}, server, nil
}

var commandMenu = []telego.BotCommand{
	{Command: events.CmdStart, Description: "Help on how to use this Bot"},
	{Command: events.CmdHelp, Description: "Help on how to use this Bot"},
	{Command: events.CmdDelete, Description: "Reply to a message with this command to initiate poll to delete"},
	{Command: events.CmdGetConfig, Description: "Get current threshold and expiry time for this group chat"},
	{Command: events.CmdSetThreshold, Description: "Set a threshold for this group chat"},
	{Command: events.CmdSetExpiry, Description: "Set a expiry time for the poll"},
	{Command: events.CmdSupport, Description: "Support me on github!"},
}

func setCommands(ctx context.Context, bot *telego.Bot) {
	err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
		Commands: commandMenu,
	})
	if err != nil {
		logger.Warningf("Failed to set bot commands: %v", err)
	}
}

// webhookSecret derives the webhook secret from the tail of the bot token
func webhookSecret(token string) string {
	const tail = 6
	if len(token) > tail {
		token = token[len(token)-tail:]
	}
	return "secure_webhook_token_" + token
}
