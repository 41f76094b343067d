package handler

import (
	"context"
	"errors"
	"fmt"

	"tg-modbot/internal/events"
	"tg-modbot/internal/logger"
	"tg-modbot/internal/moderation"
)

func (r *Router) handleDelete(ctx context.Context, msg events.TextMessage) error {
	if msg.ReplyToMessageID == 0 {
		return r.send(ctx, msg.ChatID, msgReplyRequired, msg.MessageID)
	}

	res, err := r.lc.Open(ctx, moderation.OpenRequest{
		ChatID:             msg.ChatID,
		OffendingMessageID: msg.ReplyToMessageID,
		RequesterID:        msg.FromID,
	})
	switch {
	case errors.Is(err, moderation.ErrConfigMissing):
		logger.Warningf("Delete requested in chat %d without config", msg.ChatID)
		r.notifyOperator(ctx, fmt.Sprintf("Can't find config for group chat id: %d", msg.ChatID))
		return nil
	case err != nil:
		return r.replyGatewayError(ctx, msg, err)
	}

	if res.AlreadyExists {
		return r.send(ctx, msg.ChatID, msgPollAlreadyExists, res.Record.PollMessageID)
	}
	return nil
}

func (r *Router) handleGetConfig(ctx context.Context, msg events.TextMessage) error {
	cfg, err := r.chats.Get(ctx, msg.ChatID)
	if err != nil {
		return fmt.Errorf("failed to read config of chat %d: %w", msg.ChatID, err)
	}
	return r.send(ctx, msg.ChatID, configMessage(cfg), msg.MessageID)
}

func (r *Router) handleSetThreshold(ctx context.Context, msg events.TextMessage, cmd events.Command) error {
	if err := r.chats.RequireAdmin(ctx, msg.ChatID, msg.FromID); err != nil {
		return r.replyConfigError(ctx, msg, err)
	}
	n, ok := cmd.IntArg()
	if !ok {
		return nil
	}
	cfg, err := r.chats.SetThreshold(ctx, msg.ChatID, msg.FromID, n)
	if err != nil {
		return r.replyConfigError(ctx, msg, err)
	}
	return r.send(ctx, msg.ChatID, fmt.Sprintf("threshold set as %d", cfg.Threshold), msg.MessageID)
}

func (r *Router) handleSetExpiry(ctx context.Context, msg events.TextMessage, cmd events.Command) error {
	if err := r.chats.RequireAdmin(ctx, msg.ChatID, msg.FromID); err != nil {
		return r.replyConfigError(ctx, msg, err)
	}
	n, ok := cmd.IntArg()
	if !ok {
		return nil
	}
	cfg, err := r.chats.SetExpiry(ctx, msg.ChatID, msg.FromID, n)
	if err != nil {
		return r.replyConfigError(ctx, msg, err)
	}
	return r.send(ctx, msg.ChatID, fmt.Sprintf("expiry set as %d", cfg.ExpirySeconds), msg.MessageID)
}

// replyConfigError tells the requester why a config change was refused
func (r *Router) replyConfigError(ctx context.Context, msg events.TextMessage, err error) error {
	var pe *moderation.ParamError
	switch {
	case errors.Is(err, moderation.ErrPermissionDenied):
		return r.send(ctx, msg.ChatID, msgAdminOnly, msg.MessageID)
	case errors.As(err, &pe):
		return r.send(ctx, msg.ChatID, pe.Reason, msg.MessageID)
	default:
		return r.replyGatewayError(ctx, msg, err)
	}
}
