package review

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// WriteSnapshot exports all reviews to a timestamped JSON file under dir.
// Returns the file path, or "" when the store holds no reviews. A failed
// export does not leave a partial file behind.
func WriteSnapshot(ctx context.Context, store Store, dir string) (string, error) {
	count, err := store.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("counting reviews for snapshot: %w", err)
	}
	if count == 0 {
		return "", nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("reviews-%s.json", time.Now().UTC().Format("20060102-150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating snapshot file: %w", err)
	}

	if err := store.ExportJSON(ctx, f); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing snapshot file: %w", err)
	}

	return path, nil
}
