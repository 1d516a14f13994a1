// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-json-experiment/json"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/go-a2a/agentd/a2a"
)

// DefaultTableName is the table used when no name is configured.
const DefaultTableName = "tasks"

// TaskRecord is the persisted form of a task.
//
// State is the lowercase task state and Data holds the full task serialization.
// CreatedAt and UpdatedAt are epoch seconds.
type TaskRecord struct {
	ID        string `gorm:"primaryKey;type:varchar(64)"`
	ContextID string `gorm:"type:varchar(64);index"`
	State     string `gorm:"type:varchar(16);index;not null"`
	Data      string `gorm:"type:text;not null"`
	CreatedAt int64  `gorm:"not null"`
	UpdatedAt int64  `gorm:"not null"`
}

// TableName returns the default table name for [TaskRecord].
func (TaskRecord) TableName() string {
	return DefaultTableName
}

// NewTaskRecord serializes t into a record stamped with now.
func NewTaskRecord(t *a2a.Task, now time.Time) (*TaskRecord, error) {
	if t == nil {
		return nil, fmt.Errorf("task cannot be nil")
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}
	return &TaskRecord{
		ID:        t.ID,
		ContextID: t.ContextID,
		State:     string(t.Status.State),
		Data:      string(data),
		CreatedAt: now.Unix(),
		UpdatedAt: now.Unix(),
	}, nil
}

// ToTask decodes the record's data column.
func (r *TaskRecord) ToTask() (*a2a.Task, error) {
	var t a2a.Task
	if err := json.Unmarshal([]byte(r.Data), &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &t, nil
}

// DatabaseGateway is a [Gateway] backed by GORM.
type DatabaseGateway struct {
	db        *gorm.DB
	tableName string
	owned     bool
	now       func() time.Time
}

var _ Gateway = (*DatabaseGateway)(nil)

// DatabaseGatewayConfig holds configuration for [DatabaseGateway].
type DatabaseGatewayConfig struct {
	DB          *gorm.DB
	TableName   string // Optional, defaults to "tasks"
	CreateTable bool   // Whether to create the table if it doesn't exist
}

// NewDatabaseGateway creates a new [DatabaseGateway] over an existing connection.
func NewDatabaseGateway(ctx context.Context, config DatabaseGatewayConfig) (*DatabaseGateway, error) {
	if config.DB == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}

	tableName := config.TableName
	if tableName == "" {
		tableName = DefaultTableName
	}

	g := &DatabaseGateway{
		db:        config.DB,
		tableName: tableName,
		now:       time.Now,
	}
	if config.CreateTable {
		if err := g.table(ctx).AutoMigrate(&TaskRecord{}); err != nil {
			return nil, NewTaskStoreError("initialize", "", err)
		}
	}

	return g, nil
}

// OpenSQLite opens (creating if needed) the SQLite database at path and returns a
// gateway owning the connection. Use ":memory:" for a process-local database.
func OpenSQLite(ctx context.Context, path string) (*DatabaseGateway, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, NewTaskStoreError("open", "", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, NewTaskStoreError("open", "", err)
	}
	// SQLite allows a single writer; one connection also keeps ":memory:" databases shared.
	sqlDB.SetMaxOpenConns(1)

	g, err := NewDatabaseGateway(ctx, DatabaseGatewayConfig{DB: db, CreateTable: true})
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	g.owned = true

	return g, nil
}

func (g *DatabaseGateway) table(ctx context.Context) *gorm.DB {
	db := g.db.WithContext(ctx)
	if g.tableName != DefaultTableName {
		db = db.Table(g.tableName)
	}
	return db
}

// Upsert implements [Gateway]. The created_at of an existing record is preserved.
func (g *DatabaseGateway) Upsert(ctx context.Context, t *a2a.Task) error {
	rec, err := NewTaskRecord(t, g.now())
	if err != nil {
		return NewTaskStoreError("upsert", taskID(t), err)
	}

	err = g.table(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"context_id", "state", "data", "updated_at"}),
	}).Create(rec).Error
	if err != nil {
		return NewTaskStoreError("upsert", t.ID, err)
	}

	return nil
}

// LoadActive implements [Gateway].
func (g *DatabaseGateway) LoadActive(ctx context.Context) ([]*a2a.Task, error) {
	terminal := make([]string, len(a2a.TerminalStates))
	for i, s := range a2a.TerminalStates {
		terminal[i] = string(s)
	}

	var recs []TaskRecord
	if err := g.table(ctx).Where("state NOT IN ?", terminal).Order("created_at, id").Find(&recs).Error; err != nil {
		return nil, NewTaskStoreError("load_active", "", err)
	}

	tasks := make([]*a2a.Task, 0, len(recs))
	for _, rec := range recs {
		t, err := rec.ToTask()
		if err != nil {
			return nil, NewTaskStoreError("load_active", rec.ID, err)
		}
		tasks = append(tasks, t)
	}

	return tasks, nil
}

// Get returns the raw record for id.
func (g *DatabaseGateway) Get(ctx context.Context, id string) (*TaskRecord, error) {
	var rec TaskRecord
	if err := g.table(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
		return nil, NewTaskStoreError("get", id, err)
	}
	return &rec, nil
}

// Close implements [Gateway]. Connections passed in by the caller are left open.
func (g *DatabaseGateway) Close(ctx context.Context) error {
	if !g.owned {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return NewTaskStoreError("close", "", err)
	}
	return sqlDB.Close()
}

func taskID(t *a2a.Task) string {
	if t == nil {
		return ""
	}
	return t.ID
}
