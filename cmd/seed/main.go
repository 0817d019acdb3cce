package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"

	"habit-ai-billing/internal/config"
	"habit-ai-billing/internal/domain/model"
	"habit-ai-billing/internal/domain/ports/repository"
	pg "habit-ai-billing/internal/infra/db/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS payments (
  id                  TEXT PRIMARY KEY,
  user_id             TEXT NOT NULL,
  imp_uid             TEXT NOT NULL DEFAULT '',
  payment_id          TEXT NOT NULL DEFAULT '',
  merchant_uid        TEXT NOT NULL DEFAULT '',
  plan_type           TEXT NOT NULL DEFAULT 'all_monthly',
  status              TEXT NOT NULL DEFAULT 'unknown',
  coverage_start_date TIMESTAMPTZ NOT NULL,
  cancelled_at        TIMESTAMPTZ,
  created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_payments_imp_uid ON payments (imp_uid);
CREATE INDEX IF NOT EXISTS idx_payments_payment_id ON payments (payment_id);
CREATE INDEX IF NOT EXISTS idx_payments_merchant_uid ON payments (merchant_uid);

CREATE TABLE IF NOT EXISTS subscriptions (
  id         TEXT PRIMARY KEY,
  user_id    TEXT NOT NULL,
  type       TEXT NOT NULL DEFAULT 'all',
  status     TEXT NOT NULL DEFAULT 'active',
  start_date TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_user_type ON subscriptions (user_id, type, status);

CREATE TABLE IF NOT EXISTS profiles (
  user_id           TEXT PRIMARY KEY,
  subscription_tier TEXT NOT NULL DEFAULT 'free',
  updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, schema); err != nil {
		log.Fatalf("apply schema: %v", err)
	}
	fmt.Println("schema applied")

	paymentRepo := pg.NewPaymentRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	tm := pg.NewTxManager(pool)

	// One demo user with a verified payment and the subscription it granted,
	// for exercising the cancel flow end to end.
	userID := uuid.NewString()
	now := time.Now()

	err = tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p := &model.PaymentRecord{
			ID:                uuid.NewString(),
			UserID:            userID,
			ImpUID:            "imp_" + ulid.Make().String(),
			MerchantUID:       "order_" + ulid.Make().String(),
			PlanType:          "all_monthly",
			Status:            model.PaymentStatusPaid,
			CoverageStartDate: now,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := paymentRepo.Save(ctx, tx, p); err != nil {
			return err
		}

		s, err := model.NewSubscriptionRecord(uuid.NewString(), userID, "all", now)
		if err != nil {
			return err
		}
		if err := subRepo.Save(ctx, tx, s); err != nil {
			return err
		}

		const q = `INSERT INTO profiles (user_id, subscription_tier) VALUES ($1, 'all') ON CONFLICT (user_id) DO UPDATE SET subscription_tier='all', updated_at=NOW();`
		if _, err := tx.(pgx.Tx).Exec(ctx, q, userID); err != nil {
			return err
		}

		fmt.Printf("seeded: user=%s payment imp_uid=%s merchant_uid=%s\n", userID, p.ImpUID, p.MerchantUID)
		return nil
	})
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	fmt.Println("seeding complete")
}
