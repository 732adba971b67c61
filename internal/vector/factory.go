package vector

import (
	"fmt"
	"os"
)

// StoreType selects how the index is persisted.
type StoreType string

const (
	// StoreTypeFile keeps the index in a single binary file.
	StoreTypeFile StoreType = "file"
	// StoreTypeSQLite keeps the index in the passages table of a SQLite database.
	StoreTypeSQLite StoreType = "sqlite"
)

// NewStore creates a store of the given type at path.
// Supported types: "file" (default), "sqlite".
func NewStore(storeType, path string) (Store, error) {
	switch StoreType(storeType) {
	case StoreTypeFile, "":
		return NewFileStore(path), nil
	case StoreTypeSQLite:
		return OpenSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: file, sqlite)", storeType)
	}
}

// OpenExistingStore is NewStore for serving: the artifact must already exist, so a
// missing SQLite database is reported instead of silently created.
func OpenExistingStore(storeType, path string) (Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, path)
	}
	return NewStore(storeType, path)
}
