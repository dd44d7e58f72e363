package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oxygenesis/signing-node/internal/domain"
)

type CounterStateModel struct {
	Module      string    `gorm:"primaryKey"`
	Value       int64     `gorm:"not null"`
	Initialized bool      `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (CounterStateModel) TableName() string { return "counter_state" }

// PostgresStore serializes updates with row locks.
type PostgresStore struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewPostgresStore(gdb)
}

func NewPostgresStore(gdb *gorm.DB) (*PostgresStore, error) {
	if err := gdb.AutoMigrate(&CounterStateModel{}); err != nil {
		return nil, fmt.Errorf("migrate counter state: %w", err)
	}
	return &PostgresStore{db: gdb}, nil
}

func (s *PostgresStore) Get(ctx context.Context, module string) (domain.CounterState, error) {
	var model CounterStateModel
	err := s.db.WithContext(ctx).Where("module = ?", module).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.CounterState{}, nil
	}
	if err != nil {
		return domain.CounterState{}, err
	}
	return stateFromModel(model), nil
}

func (s *PostgresStore) Update(ctx context.Context, module string, fn func(st *domain.CounterState) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := CounterStateModel{Module: module, UpdatedAt: time.Now().UTC()}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}
		var model CounterStateModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("module = ?", module).
			First(&model).Error; err != nil {
			return err
		}
		state := stateFromModel(model)
		if err := fn(&state); err != nil {
			return err
		}
		model.Value = int64(state.Value)
		model.Initialized = state.Initialized
		model.UpdatedAt = time.Now().UTC()
		return tx.Save(&model).Error
	})
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func stateFromModel(m CounterStateModel) domain.CounterState {
	if !m.Initialized {
		return domain.CounterState{}
	}
	return domain.CounterState{Value: uint32(m.Value), Initialized: true}
}

var _ Repository = (*PostgresStore)(nil)
