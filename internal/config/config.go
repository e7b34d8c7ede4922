package config

import (
	"flag"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	RunAddress    string
	DatabaseURI   string
	BotToken      string
	WebhookURL    string
	GroupUsername string
	WhatsAppLink  string
	AdminLogin    string
	AdminPassHash string
	Key           string
	SignupBonus   int64
	ReferralBonus int64
	MinWithdraw   int64
	Logger        *zap.SugaredLogger
}

func NewConfig() *Config {
	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = []string{"stdout", "server.log"}

	logger := zap.Must(logCfg.Build())

	cfg := &Config{
		SignupBonus:   50,
		ReferralBonus: 50,
		MinWithdraw:   350,
	}
	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "HTTP server address")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "DB connection string")
	flag.Parse()

	cfg.Logger = logger.Sugar()

	// .env is optional, real environment always wins
	_ = godotenv.Load()

	ReadServerEnvironment(cfg)

	return cfg
}

func ReadServerEnvironment(cfg *Config) {
	if runAddress := os.Getenv("RUN_ADDRESS"); runAddress != "" {
		cfg.RunAddress = runAddress
	}

	if databaseURI := os.Getenv("DATABASE_URI"); databaseURI != "" {
		cfg.DatabaseURI = databaseURI
	}

	if botToken := os.Getenv("BOT_TOKEN"); botToken != "" {
		cfg.BotToken = botToken
	}

	if webhookURL := os.Getenv("WEBHOOK_URL"); webhookURL != "" {
		cfg.WebhookURL = webhookURL
	}

	if group := os.Getenv("GROUP_USERNAME"); group != "" {
		cfg.GroupUsername = group
	}

	if whatsApp := os.Getenv("WHATSAPP_LINK"); whatsApp != "" {
		cfg.WhatsAppLink = whatsApp
	}

	if adminLogin := os.Getenv("ADMIN_LOGIN"); adminLogin != "" {
		cfg.AdminLogin = adminLogin
	}

	if adminPassHash := os.Getenv("ADMIN_PASSWORD_HASH"); adminPassHash != "" {
		cfg.AdminPassHash = adminPassHash
	}

	if key := os.Getenv("AIRTIME_KEY"); key != "" {
		cfg.Key = key
	}

	if bonus, ok := readAmount("SIGNUP_BONUS"); ok {
		cfg.SignupBonus = bonus
	}

	if bonus, ok := readAmount("REFERRAL_BONUS"); ok {
		cfg.ReferralBonus = bonus
	}

	if min, ok := readAmount("MIN_WITHDRAW"); ok {
		cfg.MinWithdraw = min
	}
}

func readAmount(name string) (int64, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}

	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || amount <= 0 {
		return 0, false
	}

	return amount, true
}
