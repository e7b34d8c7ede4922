// Package engine holds the ledger and withdrawal dialogue logic. It is
// transport-free: the Telegram layer feeds it commands and text and sends
// whatever reply it returns.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/and161185/airtimebot/internal/config"
	"github.com/and161185/airtimebot/internal/errs"
	"github.com/and161185/airtimebot/internal/model"
	"github.com/and161185/airtimebot/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// commitRetries bounds the re-read/retry loop on a concurrent balance change.
const commitRetries = 3

type Store interface {
	Get(ctx context.Context, id string) (model.Account, error)
	Create(ctx context.Context, acc model.Account) error
	CreditReferral(ctx context.Context, referrerID, refereeID string, amount int64) error
	CommitWithdrawal(ctx context.Context, accountID string, expectedBalance int64, w model.Withdrawal) error
}

type dialogueStep int

const (
	stepIdle dialogueStep = iota
	stepAwaitingPhone
	stepAwaitingNetwork
)

// session carries the in-flight withdrawal dialogue for one user. It lives
// only in memory: a restart drops it and the user starts the flow over.
type session struct {
	step  dialogueStep
	phone string
}

type Engine struct {
	store  Store
	config *config.Config
	logger *zap.SugaredLogger

	mu       sync.Mutex
	sessions map[string]session
}

func NewEngine(store Store, cfg *config.Config, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		store:    store,
		config:   cfg,
		logger:   logger,
		sessions: make(map[string]session),
	}
}

// ReferralLink formats the deep link that encodes userID as the start code.
func ReferralLink(botName, userID string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", botName, userID)
}

func groupLink(groupUsername string) string {
	return "https://t.me/" + strings.TrimPrefix(groupUsername, "@")
}

// Register creates the account with the signup bonus and credits the
// referrer when the code resolves. A self-referral or an unknown code is
// silently treated as no referrer.
func (e *Engine) Register(ctx context.Context, userID, displayName, refCode string, isMember bool) (string, error) {
	_, err := e.store.Get(ctx, userID)
	if err == nil {
		return "✅ You are already registered.", nil
	}
	if !errors.Is(err, errs.ErrAccountNotFound) {
		return "", fmt.Errorf("check account %s: %w", userID, err)
	}

	if !isMember {
		return fmt.Sprintf("❌ Please join our group first: %s", groupLink(e.config.GroupUsername)), nil
	}

	referrer, err := e.resolveReferrer(ctx, userID, refCode)
	if err != nil {
		return "", err
	}

	acc := model.Account{
		ID:          userID,
		DisplayName: displayName,
		Balance:     e.config.SignupBonus,
		ReferredBy:  referrer,
		CreatedAt:   time.Now(),
	}

	if err := e.store.Create(ctx, acc); err != nil {
		if errors.Is(err, errs.ErrAlreadyRegistered) {
			// duplicate delivery of the same /start
			return "✅ You are already registered.", nil
		}
		return "", fmt.Errorf("create account %s: %w", userID, err)
	}

	if referrer != "" {
		if err := e.store.CreditReferral(ctx, referrer, userID, e.config.ReferralBonus); err != nil {
			e.logger.Errorf("credit referral %s -> %s: %v", referrer, userID, err)
		}
	}

	return fmt.Sprintf("🎉 Welcome %s! You've received ₦%d signup bonus.\n\n👥 Join Telegram Group: %s\n📱 WhatsApp Group (optional): %s",
		displayName, e.config.SignupBonus, groupLink(e.config.GroupUsername), e.config.WhatsAppLink), nil
}

func (e *Engine) resolveReferrer(ctx context.Context, userID, refCode string) (string, error) {
	if refCode == "" || refCode == userID {
		return "", nil
	}

	_, err := e.store.Get(ctx, refCode)
	if err != nil {
		if errors.Is(err, errs.ErrAccountNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("resolve referrer %s: %w", refCode, err)
	}

	return refCode, nil
}

// Balance reports the current balance; an unregistered user reads as 0.
func (e *Engine) Balance(ctx context.Context, userID string) (string, error) {
	acc, err := e.store.Get(ctx, userID)
	if err != nil && !errors.Is(err, errs.ErrAccountNotFound) {
		return "", fmt.Errorf("get balance %s: %w", userID, err)
	}

	return fmt.Sprintf("💰 Your current balance is ₦%d", acc.Balance), nil
}

// History lists the referral count and every withdrawal request.
func (e *Engine) History(ctx context.Context, userID string) (string, error) {
	acc, err := e.store.Get(ctx, userID)
	if err != nil && !errors.Is(err, errs.ErrAccountNotFound) {
		return "", fmt.Errorf("get history %s: %w", userID, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "👥 Referrals: %d\n📜 Withdrawal History:\n", len(acc.Referrals))

	if len(acc.Withdrawals) == 0 {
		b.WriteString("❌ No withdrawals yet.")
		return b.String(), nil
	}

	for _, w := range acc.Withdrawals {
		fmt.Fprintf(&b, "• ₦%d to %s (%s) - %s\n", w.Amount, w.Phone, w.Network, w.Status)
	}

	return b.String(), nil
}

// Withdraw starts the dialogue. The balance is checked against a fresh read
// and no dialogue state is created unless the check passes.
func (e *Engine) Withdraw(ctx context.Context, userID string) (string, error) {
	acc, err := e.store.Get(ctx, userID)
	if err != nil && !errors.Is(err, errs.ErrAccountNotFound) {
		return "", fmt.Errorf("get account %s: %w", userID, err)
	}

	if acc.Balance < e.config.MinWithdraw {
		return fmt.Sprintf("❌ You need at least ₦%d to withdraw.", e.config.MinWithdraw), nil
	}

	e.setSession(userID, session{step: stepAwaitingPhone})

	return "📱 Please enter your phone number for airtime:", nil
}

// Text advances the withdrawal dialogue. The second return value is false
// when the user has no dialogue in flight and the message is none of our
// business.
func (e *Engine) Text(ctx context.Context, userID, text string) (string, bool, error) {
	sess, ok := e.session(userID)
	if !ok || sess.step == stepIdle {
		return "", false, nil
	}

	text = strings.TrimSpace(text)

	switch sess.step {
	case stepAwaitingPhone:
		if !utils.IsValidPhone(text) {
			return "❌ That doesn't look like a phone number, try again:", true, nil
		}
		e.setSession(userID, session{step: stepAwaitingNetwork, phone: text})
		return "📶 Enter your network (MTN, Airtel, Glo, 9mobile):", true, nil

	case stepAwaitingNetwork:
		reply, err := e.commitWithdrawal(ctx, userID, sess.phone, text)
		return reply, true, err
	}

	return "", false, nil
}

// commitWithdrawal re-reads the account so the debit runs against a fresh
// balance, then applies the conditional update, retrying when somebody got
// in between.
func (e *Engine) commitWithdrawal(ctx context.Context, userID, phone, network string) (string, error) {
	amount := e.config.MinWithdraw

	for attempt := 0; attempt < commitRetries; attempt++ {
		acc, err := e.store.Get(ctx, userID)
		if err != nil {
			if errors.Is(err, errs.ErrAccountNotFound) {
				// account vanished mid-dialogue: fail closed, no debit
				e.clearSession(userID)
				return "⚠️ Something went wrong, please start over with /withdraw.", nil
			}
			return "", fmt.Errorf("get account %s: %w", userID, err)
		}

		if acc.Balance < amount {
			e.clearSession(userID)
			return fmt.Sprintf("❌ You need at least ₦%d to withdraw.", amount), nil
		}

		w := model.Withdrawal{
			ID:        uuid.NewString(),
			AccountID: userID,
			Amount:    amount,
			Phone:     phone,
			Network:   network,
			Status:    model.StatusPending,
			CreatedAt: time.Now(),
		}

		err = e.store.CommitWithdrawal(ctx, userID, acc.Balance, w)
		switch {
		case err == nil:
			e.clearSession(userID)
			return fmt.Sprintf("✅ Withdrawal request of ₦%d submitted!\n📱 Airtime will be sent to %s (%s)", amount, phone, network), nil
		case errors.Is(err, errs.ErrBalanceConflict):
			continue
		case errors.Is(err, errs.ErrAccountNotFound):
			e.clearSession(userID)
			return "⚠️ Something went wrong, please start over with /withdraw.", nil
		case errors.Is(err, errs.ErrInsufficientFunds):
			e.clearSession(userID)
			return fmt.Sprintf("❌ You need at least ₦%d to withdraw.", amount), nil
		default:
			return "", fmt.Errorf("commit withdrawal %s: %w", userID, err)
		}
	}

	e.logger.Warnf("withdrawal for %s gave up after %d conflicts", userID, commitRetries)
	return "⚠️ Something went wrong, please try again.", nil
}

func (e *Engine) session(userID string) (session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.sessions[userID]
	return sess, ok
}

func (e *Engine) setSession(userID string, sess session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions[userID] = sess
}

func (e *Engine) clearSession(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, userID)
}
