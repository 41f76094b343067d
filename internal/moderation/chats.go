package moderation

import (
	"context"
	"errors"
	"fmt"

	"tg-modbot/internal/logger"
	"tg-modbot/internal/models"
)

// ChatsOptions are the expiry defaults and bounds, in seconds
type ChatsOptions struct {
	DefaultExpiry int
	MinExpiry     int
	MaxExpiry     int
}

// Chats manages per-chat configuration
type Chats struct {
	store Store
	gw    Gateway
	sched Scheduler
	opts  ChatsOptions
}

func NewChats(store Store, gw Gateway, sched Scheduler, opts ChatsOptions) *Chats {
	return &Chats{store: store, gw: gw, sched: sched, opts: opts}
}

// Ensure returns the chat's configuration, creating the default one if missing.
// created reports whether a new configuration was written.
func (c *Chats) Ensure(ctx context.Context, chatID int64) (cfg *models.ChatConfig, created bool, err error) {
	cfg, err = c.store.GetConfig(ctx, chatID)
	if err == nil {
		return cfg, false, nil
	}
	if !errors.Is(err, ErrConfigMissing) {
		return nil, false, err
	}

	cfg, err = c.Init(ctx, chatID)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// Init writes the default configuration, replacing any existing one.
// The default threshold is half the member count, at least 1.
func (c *Chats) Init(ctx context.Context, chatID int64) (*models.ChatConfig, error) {
	members, err := c.gw.GetChatMemberCount(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to count members of chat %d: %w", chatID, err)
	}
	threshold := members / 2
	if threshold < 1 {
		threshold = 1
	}

	cfg := &models.ChatConfig{
		ChatID:        chatID,
		Threshold:     threshold,
		ExpirySeconds: c.opts.DefaultExpiry,
	}
	if err := c.store.SetConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config for chat %d: %w", chatID, err)
	}
	logger.Infof("Initialised chat %d: threshold=%d expiry=%ds", chatID, cfg.Threshold, cfg.ExpirySeconds)
	return cfg, nil
}

func (c *Chats) Get(ctx context.Context, chatID int64) (*models.ChatConfig, error) {
	return c.store.GetConfig(ctx, chatID)
}

// SetThreshold changes the Delete votes needed. n must be within [1, member count].
func (c *Chats) SetThreshold(ctx context.Context, chatID, userID int64, n int) (*models.ChatConfig, error) {
	if err := c.RequireAdmin(ctx, chatID, userID); err != nil {
		return nil, err
	}

	members, err := c.gw.GetChatMemberCount(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to count members of chat %d: %w", chatID, err)
	}
	switch {
	case n > members:
		return nil, &ParamError{Param: "threshold", Value: n,
			Reason: fmt.Sprintf("Invalid threshold %d more than members in the group.", n)}
	case n < 1:
		return nil, &ParamError{Param: "threshold", Value: n,
			Reason: "Invalid threshold cannot be less than 1."}
	}

	return c.update(ctx, chatID, func(cfg *models.ChatConfig) { cfg.Threshold = n })
}

// SetExpiry changes the poll duration in seconds
func (c *Chats) SetExpiry(ctx context.Context, chatID, userID int64, seconds int) (*models.ChatConfig, error) {
	if err := c.RequireAdmin(ctx, chatID, userID); err != nil {
		return nil, err
	}

	switch {
	case seconds > c.opts.MaxExpiry:
		return nil, &ParamError{Param: "expiry", Value: seconds,
			Reason: fmt.Sprintf("Expiry cannot be more than %d seconds.", c.opts.MaxExpiry)}
	case seconds < c.opts.MinExpiry:
		return nil, &ParamError{Param: "expiry", Value: seconds,
			Reason: fmt.Sprintf("Invalid expiry cannot be less than %d seconds.", c.opts.MinExpiry)}
	}

	return c.update(ctx, chatID, func(cfg *models.ChatConfig) { cfg.ExpirySeconds = seconds })
}

// Remove forgets the chat: its open polls' jobs are canceled, then config and polls deleted
func (c *Chats) Remove(ctx context.Context, chatID int64) error {
	polls, err := c.store.ListPolls(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to list polls of chat %d: %w", chatID, err)
	}
	for _, p := range polls {
		if err := c.sched.Cancel(ctx, p.JobID); err != nil {
			logger.Warningf("Error canceling job %s of removed chat %d: %v", p.JobID, chatID, err)
		}
	}
	if err := c.store.DeleteChat(ctx, chatID); err != nil {
		return fmt.Errorf("failed to delete chat %d: %w", chatID, err)
	}
	logger.Infof("Removed chat %d (%d open polls dropped)", chatID, len(polls))
	return nil
}

// Migrate moves config and polls to the supergroup id
func (c *Chats) Migrate(ctx context.Context, oldID, newID int64) error {
	if err := c.store.RemapChatID(ctx, oldID, newID); err != nil {
		return fmt.Errorf("failed to migrate chat %d to %d: %w", oldID, newID, err)
	}
	logger.Infof("Migrated chat %d to supergroup %d", oldID, newID)
	return nil
}

// RequireAdmin returns ErrPermissionDenied unless userID administers chatID
func (c *Chats) RequireAdmin(ctx context.Context, chatID, userID int64) error {
	ok, err := c.gw.IsAdmin(ctx, chatID, userID)
	if err != nil {
		return fmt.Errorf("failed to check admin rights: %w", err)
	}
	if !ok {
		return ErrPermissionDenied
	}
	return nil
}

func (c *Chats) update(ctx context.Context, chatID int64, apply func(*models.ChatConfig)) (*models.ChatConfig, error) {
	current, err := c.store.GetConfig(ctx, chatID)
	if err != nil {
		return nil, err
	}
	next := *current
	apply(&next)
	if err := c.store.SetConfig(ctx, &next); err != nil {
		return nil, fmt.Errorf("failed to save config for chat %d: %w", chatID, err)
	}
	return &next, nil
}
