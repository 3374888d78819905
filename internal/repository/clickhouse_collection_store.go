package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"NFTAppraiser/internal/domain/models"
	pkgch "NFTAppraiser/pkg/clickhouse"
	applogger "NFTAppraiser/pkg/logger"
)

var ErrNotFound = errors.New("not found")

// Schema statements for Client.InitSchema.
var SchemaStatements = []string{
	`CREATE DATABASE IF NOT EXISTS appraiser`,
	`CREATE TABLE IF NOT EXISTS appraiser.collections (
        id String,
        name String,
        floor_price Float64,
        avg_rarity Float64,
        volatility Float64,
        trending UInt8
    ) ENGINE = ReplacingMergeTree ORDER BY id`,
	`CREATE TABLE IF NOT EXISTS appraiser.assets (
        collection_id String,
        token_id String,
        rarity_score Float64,
        category String,
        last_sale_price Float64,
        last_sale_at DateTime64(3)
    ) ENGINE = ReplacingMergeTree ORDER BY (collection_id, token_id)`,
	`CREATE TABLE IF NOT EXISTS appraiser.asset_traits (
        collection_id String,
        token_id String,
        trait_type String,
        trait_value String
    ) ENGINE = MergeTree ORDER BY (collection_id, token_id, trait_type)`,
	`CREATE TABLE IF NOT EXISTS appraiser.sales (
        collection_id String,
        token_id String,
        price Float64,
        ts DateTime64(3),
        buyer String,
        seller String
    ) ENGINE = MergeTree ORDER BY (collection_id, ts)`,
}

// CHCollectionStore implements CollectionStore backed by ClickHouse.
type CHCollectionStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHCollectionStore(ch *pkgch.Client) *CHCollectionStore {
	return &CHCollectionStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHCollectionStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHCollectionStore) GetCollection(ctx context.Context, collectionID string) (*models.Collection, error) {
	start := time.Now()
	const q = `
        SELECT id, name, floor_price, avg_rarity, volatility, trending
        FROM appraiser.collections FINAL
        WHERE id = ?
    `
	var (
		col      models.Collection
		trending uint8
	)
	err := s.db.QueryRowContext(ctx, q, collectionID).Scan(
		&col.ID, &col.Name, &col.FloorPrice, &col.AvgRarity, &col.Volatility, &trending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection %s: %w", collectionID, ErrNotFound)
	}
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_collection query error",
				applogger.String("collection_id", collectionID),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get collection: %w", err)
	}
	col.Trending = trending != 0

	col.Sales, err = s.salesQuery(ctx, `
        SELECT collection_id, token_id, price, ts, buyer, seller
        FROM appraiser.sales
        WHERE collection_id = ?
        ORDER BY ts ASC
    `, collectionID)
	if err != nil {
		return nil, err
	}

	if s.l != nil {
		s.l.Debug("clickhouse get_collection ok",
			applogger.String("collection_id", collectionID),
			applogger.Int("sales", len(col.Sales)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return &col, nil
}

func (s *CHCollectionStore) GetAsset(ctx context.Context, collectionID, tokenID string) (*models.Asset, error) {
	const q = `
        SELECT collection_id, token_id, rarity_score, category, last_sale_price, last_sale_at
        FROM appraiser.assets FINAL
        WHERE collection_id = ? AND token_id = ?
    `
	var a models.Asset
	err := s.db.QueryRowContext(ctx, q, collectionID, tokenID).Scan(
		&a.CollectionID, &a.TokenID, &a.RarityScore, &a.Category, &a.LastSalePrice, &a.LastSaleAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s/%s: %w", collectionID, tokenID, ErrNotFound)
	}
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_asset query error",
				applogger.String("collection_id", collectionID),
				applogger.String("token_id", tokenID),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get asset: %w", err)
	}

	a.Traits, err = s.traitsQuery(ctx, collectionID, tokenID)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *CHCollectionStore) GetSales(ctx context.Context, collectionID string, from, to time.Time) ([]models.SaleRecord, error) {
	return s.salesQuery(ctx, `
        SELECT collection_id, token_id, price, ts, buyer, seller
        FROM appraiser.sales
        WHERE collection_id = ? AND ts >= ? AND ts < ?
        ORDER BY ts ASC
    `, collectionID, from, to)
}

func (s *CHCollectionStore) salesQuery(ctx context.Context, q string, args ...any) ([]models.SaleRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse sales query error", applogger.Error(err))
		}
		return nil, fmt.Errorf("get sales: %w", err)
	}
	defer rows.Close()

	out := make([]models.SaleRecord, 0, 256)
	for rows.Next() {
		var r models.SaleRecord
		if err := rows.Scan(&r.CollectionID, &r.TokenID, &r.Price, &r.Timestamp, &r.Buyer, &r.Seller); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHCollectionStore) traitsQuery(ctx context.Context, collectionID, tokenID string) ([]models.Trait, error) {
	const q = `
        SELECT trait_type, trait_value
        FROM appraiser.asset_traits
        WHERE collection_id = ? AND token_id = ?
        ORDER BY trait_type ASC
    `
	rows, err := s.db.QueryContext(ctx, q, collectionID, tokenID)
	if err != nil {
		return nil, fmt.Errorf("get traits: %w", err)
	}
	defer rows.Close()

	var out []models.Trait
	for rows.Next() {
		var t models.Trait
		if err := rows.Scan(&t.Type, &t.Value); err != nil {
			return nil, fmt.Errorf("scan trait: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// RecordSale appends one settled sale and refreshes the asset's last-sale
// columns. Used by the live marketplace ingest path.
func (s *CHCollectionStore) RecordSale(ctx context.Context, sale *models.SaleRecord) error {
	const ins = `
        INSERT INTO appraiser.sales (collection_id, token_id, price, ts, buyer, seller)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	if _, err := s.db.ExecContext(ctx, ins,
		sale.CollectionID, sale.TokenID, sale.Price, sale.Timestamp, sale.Buyer, sale.Seller); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse record_sale insert error",
				applogger.String("collection_id", sale.CollectionID),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("record sale: %w", err)
	}
	return nil
}
