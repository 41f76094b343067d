// Package gateway sends the bot's outbound calls through telego
package gateway

import (
	"context"
	"strings"

	"github.com/mymmrac/telego"

	"tg-modbot/internal/logger"
	"tg-modbot/internal/moderation"
)

// botAPI is the subset of *telego.Bot used here
type botAPI interface {
	SendPoll(ctx context.Context, params *telego.SendPollParams) (*telego.Message, error)
	StopPoll(ctx context.Context, params *telego.StopPollParams) (*telego.Poll, error)
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	EditMessageText(ctx context.Context, params *telego.EditMessageTextParams) (*telego.Message, error)
	DeleteMessage(ctx context.Context, params *telego.DeleteMessageParams) error
	GetChatMemberCount(ctx context.Context, params *telego.GetChatMemberCountParams) (*int, error)
	GetChatAdministrators(ctx context.Context, params *telego.GetChatAdministratorsParams) ([]telego.ChatMember, error)
}

var (
	_ botAPI             = (*telego.Bot)(nil)
	_ moderation.Gateway = (*Telegram)(nil)
)

// Telegram implements moderation.Gateway
type Telegram struct {
	bot botAPI
}

func New(bot *telego.Bot) *Telegram {
	return &Telegram{bot: bot}
}

func (t *Telegram) CreatePoll(ctx context.Context, chatID int64, question string, options []string, replyTo int) (string, int, error) {
	params := &telego.SendPollParams{
		ChatID:   telego.ChatID{ID: chatID},
		Question: question,
	}
	for _, o := range options {
		params.Options = append(params.Options, telego.InputPollOption{Text: o})
	}
	if replyTo != 0 {
		params.ReplyParameters = &telego.ReplyParameters{MessageID: replyTo}
	}

	msg, err := t.bot.SendPoll(ctx, params)
	if err != nil {
		return "", 0, classify("sendPoll", err)
	}
	if msg.Poll == nil {
		return "", 0, &moderation.GatewayError{Op: "sendPoll", Kind: moderation.GatewayOther}
	}
	return msg.Poll.ID, msg.MessageID, nil
}

func (t *Telegram) ClosePoll(ctx context.Context, chatID int64, pollMessageID int) (moderation.Tally, error) {
	poll, err := t.bot.StopPoll(ctx, &telego.StopPollParams{
		ChatID:    telego.ChatID{ID: chatID},
		MessageID: pollMessageID,
	})
	if err != nil {
		return nil, classify("stopPoll", err)
	}

	tally := make(moderation.Tally, len(poll.Options))
	for _, o := range poll.Options {
		tally[o.Text] = o.VoterCount
	}
	return tally, nil
}

func (t *Telegram) SendMessage(ctx context.Context, chatID int64, text string, replyTo int) (int, error) {
	params := &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: chatID},
		Text:   text,
	}
	if replyTo != 0 {
		params.ReplyParameters = &telego.ReplyParameters{MessageID: replyTo, AllowSendingWithoutReply: true}
	}

	msg, err := t.bot.SendMessage(ctx, params)
	if err != nil {
		return 0, classify("sendMessage", err)
	}
	return msg.MessageID, nil
}

func (t *Telegram) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	_, err := t.bot.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:    telego.ChatID{ID: chatID},
		MessageID: messageID,
		Text:      text,
	})
	if err != nil {
		return classify("editMessageText", err)
	}
	return nil
}

func (t *Telegram) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	err := t.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    telego.ChatID{ID: chatID},
		MessageID: messageID,
	})
	if err != nil {
		return classify("deleteMessage", err)
	}
	return nil
}

func (t *Telegram) GetChatMemberCount(ctx context.Context, chatID int64) (int, error) {
	n, err := t.bot.GetChatMemberCount(ctx, &telego.GetChatMemberCountParams{
		ChatID: telego.ChatID{ID: chatID},
	})
	if err != nil {
		return 0, classify("getChatMemberCount", err)
	}
	if n == nil {
		return 0, nil
	}
	return *n, nil
}

func (t *Telegram) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	admins, err := t.bot.GetChatAdministrators(ctx, &telego.GetChatAdministratorsParams{
		ChatID: telego.ChatID{ID: chatID},
	})
	if err != nil {
		return false, classify("getChatAdministrators", err)
	}

	for _, admin := range admins {
		if admin.MemberUser().ID == userID {
			return true, nil
		}
	}
	logger.Debugf("User %d is not an administrator of chat %d", userID, chatID)
	return false, nil
}

// classify maps the Bot API error description onto a GatewayKind
func classify(op string, err error) error {
	msg := strings.ToLower(err.Error())
	kind := moderation.GatewayOther
	switch {
	case strings.Contains(msg, "message can't be deleted"):
		kind = moderation.GatewayCannotDelete
	case strings.Contains(msg, "poll has already been closed"):
		kind = moderation.GatewayPollClosed
	case strings.Contains(msg, "message to delete not found"),
		strings.Contains(msg, "message to edit not found"),
		strings.Contains(msg, "message to stop poll not found"),
		strings.Contains(msg, "message not found"):
		kind = moderation.GatewayMessageNotFound
	}
	return &moderation.GatewayError{Op: op, Kind: kind, Err: err}
}
