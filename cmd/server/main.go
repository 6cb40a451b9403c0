package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ecommerce-auth/internal/auth"
	"github.com/iliyamo/ecommerce-auth/internal/bus"
	"github.com/iliyamo/ecommerce-auth/internal/config"
	"github.com/iliyamo/ecommerce-auth/internal/crypto"
	"github.com/iliyamo/ecommerce-auth/internal/database"
	"github.com/iliyamo/ecommerce-auth/internal/handler"
	"github.com/iliyamo/ecommerce-auth/internal/mailer"
	"github.com/iliyamo/ecommerce-auth/internal/repository"
	"github.com/iliyamo/ecommerce-auth/internal/router"
	"github.com/iliyamo/ecommerce-auth/internal/tasks"
	"github.com/iliyamo/ecommerce-auth/internal/token"
	"github.com/iliyamo/ecommerce-auth/internal/vault"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database: %v", err)
	}

	rdb := config.NewRedisClient()

	codec := crypto.NewCodec(envelopeKeys(cfg))

	users := repository.NewUserRepo(db)
	sessions := repository.NewSessionRepo(db)
	revoked := repository.NewRevokedTokenRepo(db, rdb, cfg.RevokedRetention)

	tokens := token.New(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)

	mail := mailer.New(mailer.Config{
		Host:    cfg.SMTPHost,
		Port:    cfg.SMTPPort,
		User:    cfg.SMTPUser,
		Pass:    cfg.SMTPPass,
		From:    cfg.MailFrom,
		BaseURL: cfg.PublicBaseURL,
	})

	svc := auth.NewService(auth.Options{
		BcryptCost:         cfg.BcryptCost,
		LoginMaxAttempts:   cfg.LoginMaxAttempts,
		LockoutDuration:    cfg.LockoutDuration,
		VerifyTokenTTL:     cfg.VerifyTokenTTL,
		ResetTokenTTL:      cfg.ResetTokenTTL,
		EnforceFingerprint: cfg.EnforceFingerprint,
	}, users, sessions, revoked, mail, tokens)

	go bus.NewServer(cfg.AMQPURL, cfg.AuthQueue, codec, svc).Run(ctx)

	sweeper := &tasks.Cleanup{
		Sessions:  sessions,
		Ledger:    revoked,
		Interval:  cfg.SweepInterval,
		Retention: cfg.RevokedRetention,
	}
	go sweeper.Run(ctx)

	e := echo.New()
	e.HideBanner = true
	a := handler.NewAuthHandler(svc)
	router.Register(e, a, tokens, revoked, rdb)

	go func() {
		<-ctx.Done()
		if err := e.Shutdown(context.Background()); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Printf("server stopped: %v", err)
	}
}

// envelopeKeys picks the AES key source. Vault wins when configured;
// the hex env key keeps local development working without a Vault.
func envelopeKeys(cfg config.Config) crypto.KeyProvider {
	if cfg.VaultAddr != "" {
		v, err := vault.New(vault.Config{
			Address:  cfg.VaultAddr,
			RoleID:   cfg.VaultRoleID,
			SecretID: cfg.VaultSecretID,
			KeyPath:  cfg.VaultKeyPath,
			KeyField: cfg.VaultKeyField,
			TLSSkip:  cfg.VaultTLSSkip,
		})
		if err != nil {
			log.Fatalf("vault: %v", err)
		}
		return v
	}
	key, err := crypto.StaticKeyFromHex(cfg.AESKeyHex)
	if err != nil {
		log.Fatalf("envelope key: %v", err)
	}
	return key
}
