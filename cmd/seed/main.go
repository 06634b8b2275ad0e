// Package main provides a CLI tool for seeding the database with demo
// products and counterparties, and for minting operator tokens.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"stockflow/internal/app"
	"stockflow/internal/core/apperror"
	appctx "stockflow/internal/core/context"
	"stockflow/internal/core/id"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/auth"
	"stockflow/internal/domain/catalogs/counterparty"
	"stockflow/internal/domain/fulfillment"
	"stockflow/internal/domain/registers/stock"
	"stockflow/pkg/logger"
)

type productSeed struct {
	code     string
	name     string
	physical int64
	reorder  int64
}

var demoProducts = []productSeed{
	{"CEM-50", "Cement 50kg bag", 400, 50},
	{"RBR-12", "Rebar 12mm x 6m", 1200, 200},
	{"SND-T", "Sand, tonne", 60, 10},
	{"BRK-R", "Red brick", 20000, 2000},
	{"PNT-W5", "White paint 5L", 80, 0},
}

type counterpartySeed struct {
	code string
	name string
	kind counterparty.Kind
}

var demoCounterparties = []counterpartySeed{
	{"C-0001", "Walk-in customer", counterparty.KindCustomer},
	{"C-0002", "Northside Builders Ltd", counterparty.KindCustomer},
	{"C-0003", "Harbor Hardware", counterparty.KindBoth},
}

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "seed", Name: "Seed"})

	a, err := app.New(ctx, app.Config{
		Driver:       app.DriverPostgres,
		DatabaseURL:  mustEnv("DATABASE_URL"),
		MaxConns:     2,
		BaseCurrency: os.Getenv("BASE_CURRENCY"),
	})
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer a.Close()

	log.Info("connected to database")

	created, err := seedProducts(ctx, a.Service, log)
	if err != nil {
		log.Fatalw("failed to seed products", "error", err)
	}
	log.Infow("products seeded", "created", created, "total", len(demoProducts))

	created, err = seedCounterparties(ctx, a.Service, log)
	if err != nil {
		log.Fatalw("failed to seed counterparties", "error", err)
	}
	log.Infow("counterparties seeded", "created", created, "total", len(demoCounterparties))

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		if err := printToken(secret); err != nil {
			log.Fatalw("failed to mint token", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

// seedProducts creates missing products. Existing codes are left untouched.
func seedProducts(ctx context.Context, svc *fulfillment.Service, log *logger.Logger) (int, error) {
	created := 0
	for _, s := range demoProducts {
		p := &stock.Product{
			ID:            id.New(),
			Code:          s.code,
			Name:          s.name,
			PhysicalStock: types.NewQuantity(s.physical),
			ReorderLevel:  types.NewQuantity(s.reorder),
		}
		err := svc.CreateProduct(ctx, p)
		switch {
		case apperror.HasCode(err, apperror.CodeConflict):
			log.Debugw("product exists", "code", s.code)
		case err != nil:
			return created, fmt.Errorf("product %s: %w", s.code, err)
		default:
			created++
			log.Infow("product created", "code", s.code, "id", p.ID)
		}
	}
	return created, nil
}

func seedCounterparties(ctx context.Context, svc *fulfillment.Service, log *logger.Logger) (int, error) {
	created := 0
	for _, s := range demoCounterparties {
		c := counterparty.New(s.code, s.name)
		c.Kind = s.kind
		err := svc.CreateCounterparty(ctx, c)
		switch {
		case apperror.HasCode(err, apperror.CodeConflict):
			log.Debugw("counterparty exists", "code", s.code)
		case err != nil:
			return created, fmt.Errorf("counterparty %s: %w", s.code, err)
		default:
			created++
			log.Infow("counterparty created", "code", s.code, "id", c.ID)
		}
	}
	return created, nil
}

// printToken writes an admin token for SEED_TOKEN_USER to stdout.
func printToken(secret string) error {
	user := os.Getenv("SEED_TOKEN_USER")
	if user == "" {
		return nil
	}
	svc, err := auth.NewJWTService(auth.DefaultJWTConfig(secret))
	if err != nil {
		return err
	}

	roles := strings.Split(getEnv("SEED_TOKEN_ROLES", "admin"), ",")
	token, expiresAt, err := svc.GenerateAccessToken(user, user, roles)
	if err != nil {
		return err
	}
	if token == "" {
		return errors.New("empty token")
	}
	fmt.Printf("token for %s (roles %s, expires %s):\n%s\n", user, strings.Join(roles, ","), expiresAt.Format("2006-01-02 15:04"), token)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}
