package pg

import (
	"github.com/username/mapsync/pkg/spi/store/gormstore"
	"gorm.io/driver/postgres"
)

// NewStore creates a new PostgreSQL store
func NewStore(dsn string) (*gormstore.Store, error) {
	return gormstore.Open(postgres.Open(dsn))
}
