package health

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/whitecard/whitecard-backend/internal/domain"
)

var errSchemaMissing = errors.New("cards table missing; run migrate up")

// Pinger is satisfied by the QR object storage.
type Pinger interface {
	Ping(ctx context.Context) error
}

// pingChecker turns any dependency probe into a named Checker.
type pingChecker struct {
	name  string
	probe func(ctx context.Context) error
}

func (c pingChecker) Check(ctx context.Context) CheckResult {
	if err := c.probe(ctx); err != nil {
		return CheckResult{Name: c.name, Error: err.Error()}
	}
	return CheckResult{Name: c.name, Healthy: true}
}

// NewDBChecker reports ready once the database answers and the card schema
// has been migrated. A nil db yields no checker.
func NewDBChecker(db *gorm.DB) Checker {
	if db == nil {
		return nil
	}
	return pingChecker{name: "db", probe: func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
		if !db.WithContext(ctx).Migrator().HasTable(&domain.Card{}) {
			return errSchemaMissing
		}
		return nil
	}}
}

func NewRedisChecker(client redis.UniversalClient) Checker {
	if client == nil {
		return nil
	}
	return pingChecker{name: "redis", probe: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}

func NewStorageChecker(name string, target Pinger) Checker {
	if target == nil {
		return nil
	}
	return pingChecker{name: name, probe: target.Ping}
}
