package sqlite

import (
	"github.com/username/mapsync/pkg/spi/store/gormstore"
	"gorm.io/driver/sqlite"
)

// NewStore creates a new SQLite store at path
func NewStore(path string) (*gormstore.Store, error) {
	return gormstore.Open(sqlite.Open(path))
}
