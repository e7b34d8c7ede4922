// Package bot adapts Telegram updates to engine calls and sends the
// replies back. Everything Telegram-specific lives here.
package bot

import (
	"context"
	"strconv"
	"strings"

	"github.com/and161185/airtimebot/internal/config"
	"github.com/and161185/airtimebot/internal/engine"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetChatMember(cfg tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

type Handler struct {
	api     API
	engine  *engine.Engine
	config  *config.Config
	logger  *zap.SugaredLogger
	botName string
}

func NewHandler(api API, eng *engine.Engine, cfg *config.Config, logger *zap.SugaredLogger, botName string) *Handler {
	return &Handler{
		api:     api,
		engine:  eng,
		config:  cfg,
		logger:  logger,
		botName: botName,
	}
}

// HandleUpdate dispatches one inbound update and sends at most one reply.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	userID := strconv.FormatInt(msg.From.ID, 10)

	var reply string
	var err error

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			refCode := strings.TrimSpace(msg.CommandArguments())
			reply, err = h.engine.Register(ctx, userID, msg.From.FirstName, refCode, h.isMember(msg.From.ID))
		case "balance":
			reply, err = h.engine.Balance(ctx, userID)
		case "refer":
			reply = "🔗 Your referral link:\n" + engine.ReferralLink(h.botName, userID)
		case "history":
			reply, err = h.engine.History(ctx, userID)
		case "withdraw":
			reply, err = h.engine.Withdraw(ctx, userID)
		default:
			return
		}
	} else {
		var handled bool
		reply, handled, err = h.engine.Text(ctx, userID, msg.Text)
		if !handled {
			return
		}
	}

	if err != nil {
		h.logger.Errorf("handle update from %s: %v", userID, err)
		return
	}
	if reply == "" {
		return
	}

	if _, err := h.api.Send(tgbotapi.NewMessage(msg.Chat.ID, reply)); err != nil {
		h.logger.Errorf("send reply to %s: %v", userID, err)
	}
}

// isMember checks the group membership precondition. Any transport failure
// counts as a member (fail-open, kept from the original product behavior).
func (h *Handler) isMember(userID int64) bool {
	member, err := h.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: h.config.GroupUsername,
			UserID:             userID,
		},
	})
	if err != nil {
		return true
	}

	switch member.Status {
	case "member", "administrator", "creator":
		return true
	}
	return false
}

// Notify pushes a plain message to a user outside of any inbound event,
// used for settlement notifications.
func (h *Handler) Notify(userID, text string) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return err
	}

	_, err = h.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
