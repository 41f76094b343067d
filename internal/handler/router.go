// Package handler routes classified Telegram updates to the moderation services
package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/mymmrac/telego"

	"tg-modbot/internal/crash"
	"tg-modbot/internal/events"
	"tg-modbot/internal/logger"
	"tg-modbot/internal/metrics"
	"tg-modbot/internal/moderation"
)

type Options struct {
	Identity events.BotIdentity
	// OperatorChatID receives failures nobody in the chat should see; 0 disables it
	OperatorChatID int64
	Metrics        *metrics.Metrics
	// PendingJobs is shown on the status page when set
	PendingJobs func() int
}

// Router dispatches every inbound event. It never fails towards the transport.
type Router struct {
	lc    *moderation.Lifecycle
	chats *moderation.Chats
	gw    moderation.Gateway
	opts  Options
	stats *Stats
}

func NewRouter(lc *moderation.Lifecycle, chats *moderation.Chats, gw moderation.Gateway, opts Options) *Router {
	return &Router{
		lc:    lc,
		chats: chats,
		gw:    gw,
		opts:  opts,
		stats: newStats(opts.PendingJobs),
	}
}

func (r *Router) Stats() *Stats {
	return r.stats
}

func (r *Router) Identity() events.BotIdentity {
	return r.opts.Identity
}

// HandleUpdate classifies a raw update and handles it
func (r *Router) HandleUpdate(ctx context.Context, update telego.Update) {
	r.HandleEvent(ctx, events.Parse(update, r.opts.Identity))
}

// HandleEvent processes ev. Errors and panics are logged and forwarded to the
// operator chat.
func (r *Router) HandleEvent(ctx context.Context, ev events.Event) {
	kind := ev.Kind()
	r.opts.Metrics.Event(string(kind))
	r.stats.countEvent(kind)

	var err error
	if perr := crash.Capture("handler."+string(kind), func() { err = r.dispatch(ctx, ev) }); perr != nil {
		r.stats.panics.Add(1)
		err = perr
	}
	if err == nil {
		return
	}

	r.stats.errors.Add(1)
	r.opts.Metrics.HandlerFailure()
	logger.Errorf("Failed to handle %s event: %v", kind, err)
	r.notifyOperator(ctx, fmt.Sprintf("Error while handling %s update: %v", kind, err))
}

func (r *Router) dispatch(ctx context.Context, ev events.Event) error {
	switch e := ev.(type) {
	case events.Migrated:
		logger.Infof("Chat %d migrated to %d", e.ChatID, e.NewChatID)
		return r.chats.Migrate(ctx, e.ChatID, e.NewChatID)
	case events.TextMessage:
		if e.IsPrivate() {
			return r.handlePrivate(ctx, e)
		}
		if e.IsGroup() {
			return r.handleGroup(ctx, e)
		}
		return nil
	case events.PollUpdate:
		if e.IsClosed {
			return nil
		}
		return r.lc.MaybeSettleEarly(ctx, e.PollID, e.Count(moderation.OptionDelete))
	case events.BotAdded:
		return r.handleBotAdded(ctx, e)
	case events.BotRemoved:
		logger.Infof("Removed from chat %d, dropping its state", e.ChatID)
		return r.chats.Remove(ctx, e.ChatID)
	default:
		return nil
	}
}

func (r *Router) handlePrivate(ctx context.Context, msg events.TextMessage) error {
	cmd, ok := events.ParseCommand(msg.Text, r.opts.Identity.Username, false)
	if !ok {
		return nil
	}

	switch cmd.Name {
	case events.CmdStart, events.CmdHelp:
		return r.send(ctx, msg.ChatID, startMessage(r.opts.Identity.Username), 0)
	default:
		return r.send(ctx, msg.ChatID, msgGroupOnly, 0)
	}
}

func (r *Router) handleGroup(ctx context.Context, msg events.TextMessage) error {
	cmd, ok := events.ParseCommand(msg.Text, r.opts.Identity.Username, true)
	if !ok {
		return nil
	}
	r.stats.commands.Add(1)
	r.opts.Metrics.Command(cmd.Name)

	cfg, created, err := r.chats.Ensure(ctx, msg.ChatID)
	if err != nil {
		return fmt.Errorf("failed to load config of chat %d: %w", msg.ChatID, err)
	}
	if created {
		if err := r.send(ctx, msg.ChatID, initialiseConfigMessage(cfg, r.opts.Identity.Username), 0); err != nil {
			return err
		}
	}

	switch cmd.Name {
	case events.CmdStart, events.CmdHelp:
		return r.send(ctx, msg.ChatID, startMessage(r.opts.Identity.Username), msg.MessageID)
	case events.CmdSupport:
		return r.send(ctx, msg.ChatID, msgSupport, msg.MessageID)
	case events.CmdDelete:
		return r.handleDelete(ctx, msg)
	case events.CmdGetConfig:
		return r.handleGetConfig(ctx, msg)
	case events.CmdSetThreshold:
		return r.handleSetThreshold(ctx, msg, cmd)
	case events.CmdSetExpiry:
		return r.handleSetExpiry(ctx, msg, cmd)
	}
	return nil
}

func (r *Router) handleBotAdded(ctx context.Context, ev events.BotAdded) error {
	cfg, err := r.chats.Init(ctx, ev.ChatID)
	if err != nil {
		return fmt.Errorf("failed to initialise chat %d: %w", ev.ChatID, err)
	}
	logger.Infof("Added to chat %d: threshold=%d expiry=%d", ev.ChatID, cfg.Threshold, cfg.ExpirySeconds)
	return r.send(ctx, ev.ChatID, groupFirstMessage(cfg, r.opts.Identity.Username), 0)
}

func (r *Router) send(ctx context.Context, chatID int64, text string, replyTo int) error {
	if _, err := r.gw.SendMessage(ctx, chatID, text, replyTo); err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	return nil
}

func (r *Router) notifyOperator(ctx context.Context, text string) {
	if r.opts.OperatorChatID == 0 {
		return
	}
	if _, err := r.gw.SendMessage(ctx, r.opts.OperatorChatID, text, 0); err != nil {
		logger.Warningf("Failed to notify operator chat %d: %v", r.opts.OperatorChatID, err)
	}
}

// replyGatewayError shows a platform failure in the chat it happened in.
// Any other error is returned for the operator.
func (r *Router) replyGatewayError(ctx context.Context, msg events.TextMessage, err error) error {
	var ge *moderation.GatewayError
	if !errors.As(err, &ge) {
		return err
	}
	logger.Warningf("Platform rejected %s in chat %d: %v", ge.Op, msg.ChatID, err)
	return r.send(ctx, msg.ChatID, ge.Error(), msg.MessageID)
}
