// Command create-superadmin seeds the first superAdmin account. It does
// nothing when one already exists.
package main

import (
	"context"
	"errors"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/observability"
	"github.com/spec-kit/account-service/internal/persistence"
	"github.com/spec-kit/account-service/internal/repository"
	"github.com/spec-kit/account-service/internal/service"
	"github.com/spec-kit/account-service/pkg/util/maskutil"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.IsProduction())
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("create super admin", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if cfg.Mongo.Driver == "memory" {
		return errors.New("USER_STORE_DRIVER=memory has nothing to seed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	mg, err := persistence.NewMongo(ctx, cfg.Mongo, cfg.App.Name+"-seed", logger)
	if err != nil {
		return err
	}
	defer mg.Close(context.Background())

	users := repository.NewMongoUserRepository(mg.DB)
	if err := users.EnsureIndexes(ctx); err != nil {
		return err
	}

	userService := service.NewUserService(cfg.Auth, service.UserDependencies{
		UserRepo: users,
		Logger:   logger,
	})
	user, created, err := userService.EnsureSuperAdmin(ctx, service.SuperAdminSeed{
		Username: cfg.Seed.Username,
		Nickname: cfg.Seed.Nickname,
		Email:    cfg.Seed.Email,
		Mobile:   cfg.Seed.Mobile,
		Password: cfg.Seed.Password,
	})
	if err != nil {
		return err
	}

	fields := []zap.Field{
		zap.String("id", user.ID),
		zap.String("username", user.Username),
		zap.String("email", maskutil.Email(user.Email)),
	}
	if !created {
		logger.Info("super admin already exists", fields...)
		return nil
	}
	logger.Info("super admin created", fields...)
	return nil
}
