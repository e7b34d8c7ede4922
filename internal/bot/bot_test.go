package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/and161185/airtimebot/internal/config"
	"github.com/and161185/airtimebot/internal/engine"
	"github.com/and161185/airtimebot/internal/storage"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap/zaptest"
)

type fakeAPI struct {
	sent         []tgbotapi.MessageConfig
	memberStatus string
	memberErr    error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetChatMember(_ tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	if f.memberErr != nil {
		return tgbotapi.ChatMember{}, f.memberErr
	}
	return tgbotapi.ChatMember{Status: f.memberStatus}, nil
}

func setup(t *testing.T) (*Handler, *fakeAPI, *storage.MemoryStorage) {
	t.Helper()

	store := storage.NewMemoryStorage()
	cfg := &config.Config{
		GroupUsername: "@airtimecommunity",
		WhatsAppLink:  "https://chat.whatsapp.com/test",
		SignupBonus:   50,
		ReferralBonus: 50,
		MinWithdraw:   350,
	}
	logger := zaptest.NewLogger(t).Sugar()
	eng := engine.NewEngine(store, cfg, logger)
	api := &fakeAPI{memberStatus: "member"}

	return NewHandler(api, eng, cfg, logger, "airtime_bot"), api, store
}

func command(userID int64, text string) tgbotapi.Update {
	entities := []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(strings.Fields(text)[0])}}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: userID, FirstName: "Ada"},
		Chat:     &tgbotapi.Chat{ID: userID},
		Text:     text,
		Entities: entities,
	}}
}

func plainText(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID, FirstName: "Ada"},
		Chat: &tgbotapi.Chat{ID: userID},
		Text: text,
	}}
}

func lastReply(t *testing.T, api *fakeAPI) string {
	t.Helper()
	if len(api.sent) == 0 {
		t.Fatal("expected a reply to be sent")
	}
	return api.sent[len(api.sent)-1].Text
}

func TestHandleStart(t *testing.T) {
	h, api, store := setup(t)

	h.HandleUpdate(context.Background(), command(7, "/start"))

	if !strings.Contains(lastReply(t, api), "signup bonus") {
		t.Errorf("expected welcome reply, got %q", lastReply(t, api))
	}
	if _, err := store.Get(context.Background(), "7"); err != nil {
		t.Errorf("account not created: %v", err)
	}
}

func TestHandleStartWithReferralCode(t *testing.T) {
	h, _, store := setup(t)
	ctx := context.Background()

	h.HandleUpdate(ctx, command(7, "/start"))
	h.HandleUpdate(ctx, command(8, "/start 7"))

	referrer, _ := store.Get(ctx, "7")
	if referrer.Balance != 100 || len(referrer.Referrals) != 1 {
		t.Errorf("referrer not credited: %+v", referrer)
	}
}

func TestHandleStartNotMember(t *testing.T) {
	h, api, store := setup(t)
	api.memberStatus = "left"

	h.HandleUpdate(context.Background(), command(7, "/start"))

	if !strings.Contains(lastReply(t, api), "join our group") {
		t.Errorf("expected join-first reply, got %q", lastReply(t, api))
	}
	if _, err := store.Get(context.Background(), "7"); err == nil {
		t.Error("account must not be created for a non-member")
	}
}

func TestMembershipCheckFailsOpen(t *testing.T) {
	h, api, _ := setup(t)
	api.memberErr = errors.New("chat not found")

	h.HandleUpdate(context.Background(), command(7, "/start"))

	if !strings.Contains(lastReply(t, api), "signup bonus") {
		t.Errorf("membership errors must count as member, got %q", lastReply(t, api))
	}
}

func TestHandleRefer(t *testing.T) {
	h, api, _ := setup(t)

	h.HandleUpdate(context.Background(), command(7, "/refer"))

	if !strings.Contains(lastReply(t, api), "https://t.me/airtime_bot?start=7") {
		t.Errorf("expected referral link, got %q", lastReply(t, api))
	}
}

func TestWithdrawDialogueOverUpdates(t *testing.T) {
	h, api, store := setup(t)
	ctx := context.Background()

	h.HandleUpdate(ctx, command(7, "/start"))
	// top the account up past the minimum
	referrals := []int64{8, 9, 10, 11, 12, 13, 14}
	for _, id := range referrals {
		h.HandleUpdate(ctx, command(id, "/start 7"))
	}

	h.HandleUpdate(ctx, command(7, "/withdraw"))
	if !strings.Contains(lastReply(t, api), "phone number") {
		t.Fatalf("expected phone prompt, got %q", lastReply(t, api))
	}

	h.HandleUpdate(ctx, plainText(7, "0800000000"))
	if !strings.Contains(lastReply(t, api), "network") {
		t.Fatalf("expected network prompt, got %q", lastReply(t, api))
	}

	h.HandleUpdate(ctx, plainText(7, "MTN"))
	if !strings.Contains(lastReply(t, api), "submitted") {
		t.Fatalf("expected confirmation, got %q", lastReply(t, api))
	}

	acc, _ := store.Get(ctx, "7")
	if acc.Balance != 50 || len(acc.Withdrawals) != 1 {
		t.Errorf("unexpected account after withdrawal: %+v", acc)
	}
}

func TestPlainTextOutsideDialogueIsIgnored(t *testing.T) {
	h, api, _ := setup(t)

	h.HandleUpdate(context.Background(), plainText(7, "hello there"))

	if len(api.sent) != 0 {
		t.Errorf("expected no reply, got %v", api.sent)
	}
}

func TestUnknownCommandIsIgnored(t *testing.T) {
	h, api, _ := setup(t)

	h.HandleUpdate(context.Background(), command(7, "/unknown"))

	if len(api.sent) != 0 {
		t.Errorf("expected no reply, got %v", api.sent)
	}
}

func TestNotify(t *testing.T) {
	h, api, _ := setup(t)

	if err := h.Notify("7", "paid"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(api.sent) != 1 || api.sent[0].ChatID != 7 || api.sent[0].Text != "paid" {
		t.Errorf("unexpected notification: %v", api.sent)
	}

	if err := h.Notify("not-an-id", "paid"); err == nil {
		t.Error("expected error for a non-numeric user id")
	}
}
