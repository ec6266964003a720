package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ovialab/cliniguard-server/internal/api/http/router"
	httpServer "github.com/ovialab/cliniguard-server/internal/api/http/server"
	"github.com/ovialab/cliniguard-server/internal/config"
	"github.com/ovialab/cliniguard-server/internal/fieldcode"
	"github.com/ovialab/cliniguard-server/internal/logger"
	"github.com/ovialab/cliniguard-server/internal/mailer"
	"github.com/ovialab/cliniguard-server/internal/model"
	"github.com/ovialab/cliniguard-server/internal/repository/postgres"
	"github.com/ovialab/cliniguard-server/internal/server"
	"github.com/ovialab/cliniguard-server/internal/service"
	storage "github.com/ovialab/cliniguard-server/internal/storage/minio"
	"github.com/ovialab/cliniguard-server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	accountRepo := postgres.NewAccountRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	consultationRepo := postgres.NewConsultationRepository(db)
	examRepo := postgres.NewExamRepository(db)
	messageRepo := postgres.NewMessageRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	txManager := postgres.NewTxManager(db)

	tokenManager := token.NewJWT(cfg.JWT.Secret)

	codec, err := fieldcode.New(cfg.Crypto.Key, logger)
	if err != nil {
		logger.Fatal("failed to initialize field codec", "error", err)
	}

	attachments, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to initialize attachment storage", "error", err)
	}

	otpMailer := mailer.New(cfg.SMTP)

	auditService := service.NewAudit(auditRepo, logger)
	authService := service.NewAuth(accountRepo, auditService, tokenManager, otpMailer, logger)
	clinicalService := service.NewClinical(consultationRepo, examRepo, patientRepo, attachments, codec, auditService, txManager, logger)
	purgeService := service.NewPurge(accountRepo, patientRepo, consultationRepo, examRepo, messageRepo, attachments, codec, auditService, txManager, logger)

	r := router.New(authService, auditService, clinicalService, purgeService, tokenManager, cfg.HTTP.AllowedOrigins, logger)
	srv := httpServer.NewHTTPServer(r.Register(), fmt.Sprintf(":%s", cfg.HTTP.Port))

	var sl model.SecurityLayer
	if cfg.HTTP.EnableHTTPS {
		sl = server.NewTLSListener(cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address())
		if err := s.Start(sl); err != nil {
			logger.Error("failed to start server", "error", err)
		}
	}(srv)

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", srv.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
