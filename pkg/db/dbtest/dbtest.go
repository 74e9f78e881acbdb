// Package dbtest opens throwaway sqlite databases carrying the marketplace
// schema, for repository and workflow tests.
package dbtest

import (
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/minelance/minelance-backend/pkg/db"
	"github.com/minelance/minelance-backend/pkg/db/models"
	"github.com/minelance/minelance-backend/pkg/enums"
)

// schema mirrors pkg/migrate/migrations in sqlite syntax. Unique and partial
// indexes are kept since workflows rely on them.
var schema = []string{
	`CREATE TABLE users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL,
  discord_id TEXT UNIQUE,
  role TEXT NOT NULL DEFAULT 'user',
  is_banned INTEGER NOT NULL DEFAULT 0,
  ban_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT NOT NULL,
  category TEXT NOT NULL,
  budget TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'open',
  accepted_offer_id TEXT,
  paid_amount TEXT,
  paid_at DATETIME,
  payer_card TEXT,
  payment_operation_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE offers (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  price TEXT NOT NULL,
  delivery_days INTEGER NOT NULL,
  message TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE UNIQUE INDEX offers_one_accepted_per_order ON offers (order_id) WHERE status = 'accepted'`,
	`CREATE UNIQUE INDEX offers_one_pending_per_seller ON offers (order_id, seller_id) WHERE status = 'pending'`,
	`CREATE TABLE reviews (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  reviewer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  rating INTEGER NOT NULL,
  comment TEXT,
  created_at DATETIME,
  CONSTRAINT reviews_order_reviewer_key UNIQUE (order_id, reviewer_id)
)`,
	`CREATE TABLE reports (
  id TEXT PRIMARY KEY,
  reporter_id TEXT NOT NULL,
  reported_user_id TEXT NOT NULL,
  order_id TEXT,
  message_id TEXT,
  reason TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  admin_comment TEXT,
  resolved_by TEXT,
  resolved_at DATETIME,
  created_at DATETIME
)`,
	`CREATE TABLE notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  link TEXT,
  read_at DATETIME,
  created_at DATETIME
)`,
	`CREATE TABLE payment_events (
  id TEXT PRIMARY KEY,
  operation_id TEXT NOT NULL UNIQUE,
  order_id TEXT NOT NULL,
  amount TEXT NOT NULL,
  payer_card TEXT NOT NULL,
  applied INTEGER NOT NULL,
  received_at DATETIME
)`,
}

// Open returns a fresh in-memory database with the schema applied. A single
// pooled connection keeps every statement on the same in-memory database and
// serializes concurrent transactions.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.New(log.New(io.Discard, "", 0), gormlogger.Config{LogLevel: gormlogger.Silent}),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}

// Client wraps Open in a *db.Client for services that need a tx runner.
func Client(t testing.TB) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.Wrap(conn), conn
}

// SeedUser inserts a user with role.
func SeedUser(t testing.TB, conn *gorm.DB, role enums.UserRole) models.User {
	t.Helper()
	user := models.User{Username: "player-" + uuid.NewString()[:6], Role: role}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}
