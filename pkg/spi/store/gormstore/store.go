// Package gormstore implements spi.Backend on any gorm dialect.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/username/mapsync/pkg/core"
	"github.com/username/mapsync/pkg/spi"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SyncedBlock marks a primary block as indexed
type SyncedBlock struct {
	BlockHash         string `gorm:"primaryKey;size:66"`
	HasCommitment     bool   `gorm:"not null"`
	EthereumBlockHash string `gorm:"size:66"`
	SyncedAt          time.Time
}

// EthereumBlockMapping links a secondary block to each primary block committing to it
type EthereumBlockMapping struct {
	EthereumBlockHash string `gorm:"primaryKey;size:66"`
	BlockHash         string `gorm:"primaryKey;size:66"`
}

// TransactionMetadataModel locates a secondary transaction in a primary block
type TransactionMetadataModel struct {
	EthereumTransactionHash string `gorm:"primaryKey;size:66"`
	BlockHash               string `gorm:"primaryKey;size:66"`
	EthereumBlockHash       string `gorm:"size:66;not null"`
	EthereumIndex           uint32
}

func (TransactionMetadataModel) TableName() string { return "transaction_metadata" }

// MetaModel is a small key/value table for sync progress
type MetaModel struct {
	Name  string `gorm:"primaryKey;size:64"`
	Value string `gorm:"type:text"`
}

func (MetaModel) TableName() string { return "meta" }

const metaTips = "current_syncing_tips"

// Store implements spi.Backend using gorm
type Store struct {
	db *gorm.DB
}

var _ spi.Backend = (*Store)(nil)

// Open opens the database through the given dialector and migrates the schema
func Open(dialector gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn), // Warn level for production
	})
	if err != nil {
		return nil, err
	}
	return New(db)
}

// New wraps an open gorm handle
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&SyncedBlock{}, &EthereumBlockMapping{}, &TransactionMetadataModel{}, &MetaModel{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) IsSynced(ctx context.Context, hash core.Hash) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&SyncedBlock{}).Where("block_hash = ?", string(hash)).Count(&count).Error
	return count > 0, err
}

func (s *Store) WriteHashes(ctx context.Context, c *core.MappingCommitment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ignore := tx.Clauses(clause.OnConflict{DoNothing: true})

		if err := ignore.Create(&EthereumBlockMapping{
			EthereumBlockHash: string(c.EthereumBlockHash),
			BlockHash:         string(c.BlockHash),
		}).Error; err != nil {
			return err
		}

		if len(c.EthereumTransactionHashes) > 0 {
			metas := make([]TransactionMetadataModel, len(c.EthereumTransactionHashes))
			for i, h := range c.EthereumTransactionHashes {
				metas[i] = TransactionMetadataModel{
					EthereumTransactionHash: string(h),
					BlockHash:               string(c.BlockHash),
					EthereumBlockHash:       string(c.EthereumBlockHash),
					EthereumIndex:           uint32(i),
				}
			}
			if err := ignore.Create(&metas).Error; err != nil {
				return err
			}
		}

		return ignore.Create(&SyncedBlock{
			BlockHash:         string(c.BlockHash),
			HasCommitment:     true,
			EthereumBlockHash: string(c.EthereumBlockHash),
			SyncedAt:          time.Now(),
		}).Error
	})
}

func (s *Store) WriteNone(ctx context.Context, hash core.Hash) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&SyncedBlock{
		BlockHash: string(hash),
		SyncedAt:  time.Now(),
	}).Error
}

func (s *Store) BlockHashes(ctx context.Context, ethereumBlockHash core.Hash) ([]core.Hash, error) {
	var rows []EthereumBlockMapping
	err := s.db.WithContext(ctx).Where("ethereum_block_hash = ?", string(ethereumBlockHash)).
		Order("block_hash").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	hashes := make([]core.Hash, len(rows))
	for i, r := range rows {
		hashes[i] = core.Hash(r.BlockHash)
	}
	return hashes, nil
}

func (s *Store) TransactionMetadata(ctx context.Context, txHash core.Hash) ([]core.TransactionMetadata, error) {
	var rows []TransactionMetadataModel
	err := s.db.WithContext(ctx).Where("ethereum_transaction_hash = ?", string(txHash)).
		Order("block_hash").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	metas := make([]core.TransactionMetadata, len(rows))
	for i, r := range rows {
		metas[i] = core.TransactionMetadata{
			BlockHash:         core.Hash(r.BlockHash),
			EthereumBlockHash: core.Hash(r.EthereumBlockHash),
			EthereumIndex:     r.EthereumIndex,
		}
	}
	return metas, nil
}

func (s *Store) CurrentSyncingTips(ctx context.Context) ([]core.Hash, error) {
	var m MetaModel
	result := s.db.WithContext(ctx).Where("name = ?", metaTips).First(&m)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	var tips []core.Hash
	if err := json.Unmarshal([]byte(m.Value), &tips); err != nil {
		return nil, err
	}
	return tips, nil
}

func (s *Store) WriteCurrentSyncingTips(ctx context.Context, tips []core.Hash) error {
	if tips == nil {
		tips = []core.Hash{}
	}
	data, err := json.Marshal(tips)
	if err != nil {
		return err
	}
	// Use Save to upsert (primary key is Name)
	return s.db.WithContext(ctx).Save(&MetaModel{Name: metaTips, Value: string(data)}).Error
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
