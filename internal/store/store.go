package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/bondvault/pkg/model"
)

// Store defines the contract for caching and persisting vault state.
type Store interface {
	RecordLedgerEvent(ctx context.Context, evt model.LedgerEvent) error
	UpsertProductSnapshot(ctx context.Context, p model.Product) error
	LoadProducts(ctx context.Context) ([]model.Product, error)
	GetCachedProduct(ctx context.Context, id uint64) (*model.Product, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) error
	HealthCheck(ctx context.Context) error
	Close() error
}

type HybridStore struct {
	redis       *redis.Client
	PG          *pgxpool.Pool
	logger      *zap.Logger
	snapshotTTL time.Duration
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewHybrid creates a Redis-first, Postgres-backed store.
func NewHybrid(redisAddr, redisPass string, redisDB int, pgURL string, pgPoolConfig PGPoolConfig, snapshotTTL time.Duration, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPass,
		DB:       redisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	var pgPool *pgxpool.Pool
	if pgURL != "" {
		cfg, err := pgxpool.ParseConfig(pgURL)
		if err != nil {
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		if pgPoolConfig.MaxConns > 0 {
			cfg.MaxConns = pgPoolConfig.MaxConns
		}
		if pgPoolConfig.MinConns > 0 {
			cfg.MinConns = pgPoolConfig.MinConns
		}
		if pgPoolConfig.MaxConnLifetime > 0 {
			cfg.MaxConnLifetime = pgPoolConfig.MaxConnLifetime
		}
		if pgPoolConfig.MaxConnIdleTime > 0 {
			cfg.MaxConnIdleTime = pgPoolConfig.MaxConnIdleTime
		}
		if pgPoolConfig.HealthCheckPeriod > 0 {
			cfg.HealthCheckPeriod = pgPoolConfig.HealthCheckPeriod
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	return &HybridStore{redis: rdb, PG: pgPool, logger: logger, snapshotTTL: snapshotTTL}, nil
}

// RecordLedgerEvent inserts an immutable event into vault.ledger_event.
func (s *HybridStore) RecordLedgerEvent(ctx context.Context, evt model.LedgerEvent) error {
	if s.PG == nil {
		return nil
	}
	_, err := s.PG.Exec(ctx, `
		INSERT INTO vault.ledger_event (
			event_type, product_id, actor, ledger_time,
			amount, shares, quote, account, recorded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`, evt.Type, evt.ProductID, string(evt.Actor), evt.LedgerTime,
		evt.Amount.String(), evt.Shares.String(), evt.Quote.String(), string(evt.Account))
	if err != nil {
		s.logger.Error("store.pg.insert_event_failed", zap.Error(err))
	}
	return err
}

// UpsertProductSnapshot updates the projection table and refreshes the Redis
// copy read by the API's hot path.
func (s *HybridStore) UpsertProductSnapshot(ctx context.Context, p model.Product) error {
	if s.PG != nil {
		_, err := s.PG.Exec(ctx, `
			INSERT INTO vault.product_snapshot (
				product_id, underlying_asset, share_account, admin_account, treasury_account,
				start_time, end_time, total_shares, total_deposits, available_redemption,
				current_quote, quote_expiration, quote_period, min_deposit,
				token_decimals, initialized, stopped, as_of
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW())
			ON CONFLICT (product_id)
			DO UPDATE SET
				admin_account = EXCLUDED.admin_account,
				treasury_account = EXCLUDED.treasury_account,
				total_shares = EXCLUDED.total_shares,
				total_deposits = EXCLUDED.total_deposits,
				available_redemption = EXCLUDED.available_redemption,
				current_quote = EXCLUDED.current_quote,
				quote_expiration = EXCLUDED.quote_expiration,
				stopped = EXCLUDED.stopped,
				as_of = EXCLUDED.as_of;
		`, p.ID, string(p.UnderlyingAsset), string(p.ShareAccount), string(p.Admin), string(p.Treasury),
			p.StartTime, p.EndTime, p.TotalShares.String(), p.TotalDeposits.String(), p.AvailableRedemption.String(),
			p.CurrentQuote.String(), p.QuoteExpiration, p.QuotePeriod, p.MinDeposit.String(),
			p.TokenDecimals, p.Initialized, p.Stopped)
		if err != nil {
			s.logger.Error("store.pg.snapshot_upsert_failed", zap.Error(err))
			return err
		}
	}

	return s.SetJSON(ctx, productKey(p.ID), p, s.snapshotTTL)
}

// LoadProducts reads all product snapshots in id order, for rehydrating the
// in-memory registry on boot.
func (s *HybridStore) LoadProducts(ctx context.Context) ([]model.Product, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	rows, err := s.PG.Query(ctx, `
		SELECT product_id, underlying_asset, share_account, admin_account, treasury_account,
		       start_time, end_time, total_shares, total_deposits, available_redemption,
		       current_quote, quote_expiration, quote_period, min_deposit,
		       token_decimals, initialized, stopped
		FROM vault.product_snapshot
		ORDER BY product_id;
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var (
			p                                                       model.Product
			asset, shareAcct, adminAcct, treasuryAcct               string
			totalShares, totalDeposits, availRedemption, quote, min string
		)
		if err := rows.Scan(&p.ID, &asset, &shareAcct, &adminAcct, &treasuryAcct,
			&p.StartTime, &p.EndTime, &totalShares, &totalDeposits, &availRedemption,
			&quote, &p.QuoteExpiration, &p.QuotePeriod, &min,
			&p.TokenDecimals, &p.Initialized, &p.Stopped); err != nil {
			return nil, err
		}
		p.UnderlyingAsset = model.Account(asset)
		p.ShareAccount = model.Account(shareAcct)
		p.Admin = model.Account(adminAcct)
		p.Treasury = model.Account(treasuryAcct)
		if p.TotalShares, err = decimal.NewFromString(totalShares); err != nil {
			return nil, fmt.Errorf("bad total_shares for product %d: %w", p.ID, err)
		}
		if p.TotalDeposits, err = decimal.NewFromString(totalDeposits); err != nil {
			return nil, fmt.Errorf("bad total_deposits for product %d: %w", p.ID, err)
		}
		if p.AvailableRedemption, err = decimal.NewFromString(availRedemption); err != nil {
			return nil, fmt.Errorf("bad available_redemption for product %d: %w", p.ID, err)
		}
		if p.CurrentQuote, err = decimal.NewFromString(quote); err != nil {
			return nil, fmt.Errorf("bad current_quote for product %d: %w", p.ID, err)
		}
		if p.MinDeposit, err = decimal.NewFromString(min); err != nil {
			return nil, fmt.Errorf("bad min_deposit for product %d: %w", p.ID, err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// GetCachedProduct returns the Redis snapshot for a product, or nil when the
// key is absent or expired.
func (s *HybridStore) GetCachedProduct(ctx context.Context, id uint64) (*model.Product, error) {
	data, err := s.redis.Get(ctx, productKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var p model.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *HybridStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, ttl).Err()
}

func (s *HybridStore) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}

func productKey(id uint64) string {
	return fmt.Sprintf("product:%d", id)
}
