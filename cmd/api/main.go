package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-identity-api/internal/application/admin"
	"github.com/go-identity-api/internal/application/auth"
	"github.com/go-identity-api/internal/application/notification"
	"github.com/go-identity-api/internal/application/profile"
	"github.com/go-identity-api/internal/application/secret"
	"github.com/go-identity-api/internal/config"
	"github.com/go-identity-api/internal/domain"
	"github.com/go-identity-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-identity-api/internal/infrastructure/jwt"
	"github.com/go-identity-api/internal/infrastructure/memory"
	redisinfra "github.com/go-identity-api/internal/infrastructure/redis"
	s3infra "github.com/go-identity-api/internal/infrastructure/s3"
	"github.com/go-identity-api/internal/infrastructure/smtp"
	"github.com/go-identity-api/internal/infrastructure/sns"
	"github.com/go-identity-api/internal/pkg/metrics"
	"github.com/go-identity-api/internal/pkg/password"
	transporthttp "github.com/go-identity-api/internal/transport/http"
	appmiddleware "github.com/go-identity-api/internal/transport/http/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// accountRepository is satisfied by both the DynamoDB and the in-memory store.
type accountRepository interface {
	Create(ctx context.Context, a *domain.Account) error
	GetByID(ctx context.Context, accountID string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	PutSecret(ctx context.Context, accountID string, s *domain.OneTimeSecret) error
	ConsumeSecret(ctx context.Context, accountID string, purpose domain.Purpose, valueHash string, now time.Time, effect domain.AccountPatch) error
	SetCredential(ctx context.Context, accountID, oldHash, newHash string) error
	Patch(ctx context.Context, accountID string, p domain.AccountPatch) error
	UpdateProfile(ctx context.Context, accountID string, p domain.ProfilePatch) (*domain.Account, error)
	Delete(ctx context.Context, accountID string) error
	List(ctx context.Context, f domain.ListFilter) ([]domain.Account, error)
}

type revocationRepository interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	RevokeOnce(ctx context.Context, jti string, expiresAt time.Time) (bool, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg := config.Load()
	slog.SetDefault(newLogger(cfg))

	if err := run(cfg); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.Production() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	accounts, revocations, cleanup, err := buildStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	tokens, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	var smsSender sns.SMSSender
	if cfg.SMSEnabled {
		if smsSender, err = sns.NewSender(cfg); err != nil {
			slog.Warn("SNS sender not available", "err", err)
			smsSender = nil
		}
	}
	dispatcher := notification.NewDispatcher(smtp.NewMailer(cfg), smsSender, cfg.NotifyTimeout)

	reg := prometheus.DefaultRegisterer
	authMetrics, err := metrics.NewAuthOutcomes(reg)
	if err != nil {
		return err
	}
	httpMetrics, err := appmiddleware.NewHTTPMetrics(appmiddleware.HTTPMetricsOptions{Registerer: reg})
	if err != nil {
		return err
	}

	hasher := password.NewHasher(cfg.BcryptCost)
	policy := password.Policy{MinLength: 8, Strict: cfg.PasswordStrict, MinScore: cfg.PasswordMinScore}

	authSvc := auth.NewService(auth.ServiceDeps{
		Accounts: accounts,
		Secrets:  secret.NewStore(accounts, secret.TTLs{Verification: cfg.VerificationTTL, Reset: cfg.ResetTTL}),
		Hasher:   hasher,
		Policy:   policy,
		Tokens:   tokens,
		Revoker:  revocations,
		Notifier: dispatcher,
		Metrics:  authMetrics,
	})
	adminSvc := admin.NewService(admin.ServiceDeps{Accounts: accounts, Hasher: hasher, Policy: policy})

	var profileSvc profile.Service
	if cfg.S3BucketName != "" {
		profileSvc = profile.NewService(accounts, s3infra.NewAvatarStore(s3infra.NewClient(cfg), cfg.S3BucketName))
	} else {
		profileSvc = profile.NewService(accounts, nil)
	}

	if cfg.AdminEmail != "" {
		if err := adminSvc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	}

	limiter := appmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	defer limiter.Close()

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		Auth:     authSvc,
		Profile:  profileSvc,
		Admin:    adminSvc,
		Metrics:  httpMetrics,
		Gatherer: prometheus.DefaultGatherer,
		Limiter:  limiter,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.StoreBackend, "revocations", cfg.RevocationBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-quit:
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		slog.Warn("notifications still in flight at shutdown", "err", err)
	}
	slog.Info("server stopped")
	return nil
}

// buildStores selects the account store and the token denylist from config.
// The returned cleanup releases any connections that were opened.
func buildStores(ctx context.Context, cfg *config.Config) (accountRepository, revocationRepository, func(), error) {
	cleanup := func() {}

	// One DynamoDB client serves both stores; tables are bootstrapped once.
	var dynamoClient *dynamodb.Client
	dynamoDB := func() (*dynamodb.Client, error) {
		if dynamoClient != nil {
			return dynamoClient, nil
		}
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		dynamoClient = client
		return client, nil
	}

	var accounts accountRepository
	switch cfg.StoreBackend {
	case "memory":
		slog.Warn("using in-memory account store; data is lost on restart")
		accounts = memory.NewAccountRepo()
	case "dynamo":
		client, err := dynamoDB()
		if err != nil {
			return nil, nil, cleanup, err
		}
		accounts = dynamo.NewAccountRepo(client, dynamo.TableNames{
			Accounts:      cfg.DynamoTables.Accounts,
			AccountEmails: cfg.DynamoTables.AccountEmails,
		})
	default:
		return nil, nil, cleanup, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	var revocations revocationRepository
	switch cfg.RevocationBackend {
	case "memory":
		revocations = memory.NewRevocationRepo()
	case "redis":
		client, err := redisinfra.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, cleanup, err
		}
		cleanup = func() { _ = client.Close() }
		revocations = redisinfra.NewRevocationRepo(client, "")
	case "dynamo":
		client, err := dynamoDB()
		if err != nil {
			return nil, nil, cleanup, err
		}
		revocations = dynamo.NewRevocationRepo(client, cfg.DynamoTables.RevokedTokens)
	default:
		return nil, nil, cleanup, fmt.Errorf("unknown REVOCATION_BACKEND %q", cfg.RevocationBackend)
	}
	return accounts, revocations, cleanup, nil
}
