package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/and161185/airtimebot/internal/config"
	"github.com/and161185/airtimebot/internal/deps"
	"github.com/and161185/airtimebot/internal/errs"
	"github.com/and161185/airtimebot/internal/middleware"
	"github.com/and161185/airtimebot/internal/model"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/crypto/bcrypt"
)

//go:generate mockgen -destination=../mocks/mock_storage.go -package=mocks github.com/and161185/airtimebot/internal/server Storage

type Storage interface {
	PendingWithdrawals(ctx context.Context) ([]model.Withdrawal, error)
	MarkWithdrawalPaid(ctx context.Context, id string) (model.Withdrawal, error)
}

type BotHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
	Notify(userID, text string) error
}

type Server struct {
	storage       Storage
	bot           BotHandler
	config        *config.Config
	deps          *deps.Deps
	notifications chan notification
}

func NewServer(storage Storage, bot BotHandler, config *config.Config, deps *deps.Deps) *Server {
	return &Server{
		storage:       storage,
		bot:           bot,
		config:        config,
		deps:          deps,
		notifications: make(chan notification, notificationQueueSize),
	}
}

func (srv *Server) buildRouter() http.Handler {
	router := chi.NewRouter()
	router.Use(chiMiddleware.StripSlashes)
	router.Use(middleware.LogMiddleware(srv.deps.Logger))
	router.Use(middleware.DecompressMiddleware)
	router.Use(middleware.CompressMiddleware(srv.deps.Logger))

	router.Post("/webhook", srv.WebhookHandler)
	router.Post("/api/admin/login", srv.LoginHandler)

	// settlement endpoints for the admin operator
	router.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(srv.deps.TokenManager))

		r.Get("/api/admin/withdrawals", srv.PendingWithdrawalsHandler)
		r.Post("/api/admin/withdrawals/{id}/pay", srv.MarkPaidHandler)
	})

	return router
}

func (srv *Server) Run(ctx context.Context) error {
	router := srv.buildRouter()

	server := &http.Server{
		Addr:    srv.config.RunAddress,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srv.deps.Logger.Fatalf("server error: %v", err)
		}
	}()

	go srv.NotifyControl(ctx)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (s *Server) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.bot.HandleUpdate(r.Context(), update)

	w.WriteHeader(http.StatusOK)
}

func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var creds model.AdminCredentials

	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if creds.Login == "" || creds.Password == "" {
		http.Error(w, "login and password required", http.StatusBadRequest)
		return
	}

	if creds.Login != s.config.AdminLogin ||
		bcrypt.CompareHashAndPassword([]byte(s.config.AdminPassHash), []byte(creds.Password)) != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := s.deps.TokenManager.GenerateToken(creds.Login)
	if err != nil {
		http.Error(w, "token error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Authorization", "Bearer "+token)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) PendingWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	withdrawals, err := s.storage.PendingWithdrawals(r.Context())
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}

	if len(withdrawals) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(withdrawals); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
	}
}

func (s *Server) MarkPaidHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "withdrawal id required", http.StatusBadRequest)
		return
	}

	withdrawal, err := s.storage.MarkWithdrawalPaid(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrWithdrawalNotFound):
			http.Error(w, "withdrawal not found", http.StatusNotFound)
		case errors.Is(err, errs.ErrWithdrawalNotPending):
			http.Error(w, "withdrawal is not pending", http.StatusConflict)
		default:
			http.Error(w, "db error", http.StatusInternalServerError)
		}
		return
	}

	s.queueNotification(notification{
		userID: withdrawal.AccountID,
		text:   fmt.Sprintf("✅ Your withdrawal of ₦%d has been approved and marked as PAID.", withdrawal.Amount),
	})

	w.WriteHeader(http.StatusOK)
}
