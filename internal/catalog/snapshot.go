package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	skerrors "github.com/skuseek/skuseek/internal/errors"
)

// LoadSnapshot reads a catalog snapshot file: a JSON array of products.
// Products that fail validation are skipped and reported; an empty
// snapshot is valid and yields an empty catalog.
func LoadSnapshot(path string) ([]Product, []error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, skerrors.New(skerrors.ErrCodeSnapshotNotFound,
				fmt.Sprintf("catalog snapshot not found: %s", path), err)
		}
		return nil, nil, skerrors.New(skerrors.ErrCodeCatalogStore,
			fmt.Sprintf("failed to read catalog snapshot %s", path), err)
	}

	var raw []Product
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, skerrors.New(skerrors.ErrCodeCatalogStore,
			fmt.Sprintf("failed to parse catalog snapshot %s", path), err)
	}

	products := make([]Product, 0, len(raw))
	var skipped []error
	seen := make(map[string]struct{}, len(raw))
	for _, p := range raw {
		if err := p.Validate(); err != nil {
			skipped = append(skipped, err)
			continue
		}
		// Last write wins on duplicate codes, matching upsert semantics
		if _, dup := seen[p.Code]; dup {
			for i := range products {
				if products[i].Code == p.Code {
					products[i] = p
					break
				}
			}
			continue
		}
		seen[p.Code] = struct{}{}
		products = append(products, p)
	}

	return products, skipped, nil
}
