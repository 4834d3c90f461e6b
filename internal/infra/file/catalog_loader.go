package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"exam-session-service/internal/domain"
)

// CatalogLoader reads the block/lecture catalog from a JSON document on disk.
// The catalog is reference data maintained outside this service; it is read
// fresh on every load so edits show up without a restart.
type CatalogLoader struct {
	path string
}

func NewCatalogLoader(path string) *CatalogLoader {
	return &CatalogLoader{path: path}
}

func (l *CatalogLoader) LoadCatalog(_ context.Context) (domain.Catalog, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	var catalog domain.Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return domain.Catalog{}, fmt.Errorf("unmarshal catalog: %w", err)
	}
	if catalog.LectureLists == nil {
		catalog.LectureLists = map[string][]domain.Lecture{}
	}
	return catalog, nil
}
