// Package backend opens the storage driver selected by STORAGE_DRIVER.
package backend

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"peer-review-api/config"
	"peer-review-api/storage"
	"peer-review-api/storage/gormdb"
	"peer-review-api/storage/inmem"
	"peer-review-api/storage/mongodb"
)

// Open connects the configured backend and prepares its schema. The returned
// close func releases the connection.
func Open(ctx context.Context, s *config.Settings) (storage.Store, func(), error) {
	switch s.StorageDriver {
	case config.DriverMemory:
		logrus.Warn("using in-memory storage, data is lost on exit")
		return inmem.New(), func() {}, nil

	case config.DriverMongo:
		client, db, err := config.OpenMongo(ctx, s)
		if err != nil {
			return nil, nil, err
		}
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		closeFn := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logrus.WithError(err).Warn("mongo disconnect failed")
			}
		}
		return mongodb.New(db), closeFn, nil

	case config.DriverMySQL, "":
		db, err := config.OpenMySQL(s)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("mysql handle: %w", err)
		}
		if err := gormdb.Migrate(db); err != nil {
			_ = sqlDB.Close()
			return nil, nil, fmt.Errorf("migrate mysql schema: %w", err)
		}
		closeFn := func() {
			if err := sqlDB.Close(); err != nil {
				logrus.WithError(err).Warn("mysql close failed")
			}
		}
		return gormdb.New(db), closeFn, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", s.StorageDriver)
	}
}
