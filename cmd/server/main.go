package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"

	"github.com/quorumhq/quorum/internal/api"
	"github.com/quorumhq/quorum/internal/config"
	"github.com/quorumhq/quorum/internal/db"
	"github.com/quorumhq/quorum/internal/mail"
	"github.com/quorumhq/quorum/internal/middleware"
	"github.com/quorumhq/quorum/internal/obs"
	"github.com/quorumhq/quorum/internal/services"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	store, sqliteDB, err := openStore(cfg)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer func() {
		if cerr := sqliteDB.Close(); cerr != nil {
			log.Printf("warning: failed to close sqlite db: %v", cerr)
		}
	}()

	if len(os.Args) > 1 && os.Args[1] == "seed" {
		if err := runSeed(store, os.Args[2:]); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
		return
	}

	if cfg.JWTSecret == "" {
		log.Printf("QUORUM_JWT_SECRET not set, sessions use the development secret")
	}

	obs.Init()

	var limiter services.Limiter
	if cfg.RedisAddr != "" {
		limiter = services.NewRedisLimiter(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
		log.Printf("rate limiter: shared redis counters at %s", cfg.RedisAddr)
	} else {
		limiter = services.NewFixedWindowLimiter()
	}

	var mailer services.CodeMailer
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	} else {
		log.Printf("no SMTP host configured, codes are written to the log")
		mailer = mail.LogMailer{}
	}

	policy := services.NewPolicyService(store, cfg.TestDomainSuffix)
	router := &api.Router{
		OTP: services.NewOTPService(store, policy, limiter, mailer, middleware.SignParticipantToken, services.OTPConfig{
			EmailLimit:  cfg.CodeEmailLimit,
			EmailWindow: cfg.CodeEmailWindow,
			IPLimit:     cfg.CodeIPLimit,
			IPWindow:    cfg.CodeIPWindow,
		}),
		Admin:       services.NewAdminService(store, middleware.SignAdminToken),
		Questions:   services.NewQuestionService(store),
		Submissions: services.NewSubmissionService(store, policy),
		Export:      services.NewExportService(store, cfg.ExportSalt),
		Mode:        services.NewModeService(store),
	}

	mux := http.NewServeMux()
	router.Register(mux)
	mux.Handle("/metrics", obs.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "name": "Quorum API"})
	})

	handler := middleware.CORS(middleware.SecureHeaders(middleware.WithAuth(obs.Instrument(mux))))

	log.Printf("Quorum server listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func openStore(cfg config.Config) (*db.SQLiteStore, *sql.DB, error) {
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	dsn := "file:" + filepath.ToSlash(cfg.SQLitePath) + "?cache=shared&_busy_timeout=5000"
	sqliteDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := db.RunMigrations(sqliteDB, os.Getenv("QUORUM_MIGRATIONS_DIR")); err != nil {
		sqliteDB.Close()
		return nil, nil, err
	}
	store, err := db.NewSQLiteStore(sqliteDB)
	if err != nil {
		sqliteDB.Close()
		return nil, nil, err
	}
	return store, sqliteDB, nil
}
