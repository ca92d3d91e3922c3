package review

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protocol-evidence-server/internal/domain"
)

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "review-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := NewSQLiteStore(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err)
	return store
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "review-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)

	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
}

func TestSQLiteStore_Save(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	review := &Review{
		SynthesisID:    "2f0d4a3e-1b6c-4f58-9c7d-0aa413f2b981",
		Condition:      "knee osteoarthritis",
		SystemGrade:    domain.GRADE_MODERATE,
		ReviewerGrade:  domain.GRADE_LOW,
		ReviewerID:     "dr-chen",
		ReviewerAgreed: false,
		Notes:          "Cohort heterogeneity understated",
	}

	err := store.Save(ctx, review)

	require.NoError(t, err)
	assert.NotZero(t, review.ID, "ID should be assigned")
	assert.False(t, review.CreatedAt.IsZero(), "CreatedAt should be set")
	assert.False(t, review.UpdatedAt.IsZero(), "UpdatedAt should be set")
}

func TestSQLiteStore_Save_Update(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	review := &Review{
		SynthesisID:    "2f0d4a3e-1b6c-4f58-9c7d-0aa413f2b981",
		Condition:      "knee osteoarthritis",
		SystemGrade:    domain.GRADE_MODERATE,
		ReviewerGrade:  domain.GRADE_MODERATE,
		ReviewerID:     "dr-chen",
		ReviewerAgreed: true,
	}
	err := store.Save(ctx, review)
	require.NoError(t, err)
	originalID := review.ID

	// Update with same synthesis + reviewer
	review.ReviewerGrade = domain.GRADE_LOW
	review.ReviewerAgreed = false
	review.Notes = "Revised after journal club"

	err = store.Save(ctx, review)
	require.NoError(t, err)

	assert.Equal(t, originalID, review.ID, "Should update existing record")

	retrieved, err := store.Get(ctx, review.SynthesisID, "dr-chen")
	require.NoError(t, err)
	assert.Equal(t, domain.GRADE_LOW, retrieved.ReviewerGrade)
	assert.False(t, retrieved.ReviewerAgreed)
	assert.Equal(t, "Revised after journal club", retrieved.Notes)
}

func TestSQLiteStore_Get_NotFound(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	retrieved, err := store.Get(context.Background(), "missing-synthesis", "dr-chen")
	require.NoError(t, err)
	assert.Nil(t, retrieved)
}

func TestSQLiteStore_ListAndCount(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	for i, reviewer := range []string{"dr-chen", "dr-okafor", "dr-ruiz"} {
		review := &Review{
			SynthesisID:    "2f0d4a3e-1b6c-4f58-9c7d-0aa413f2b981",
			SystemGrade:    domain.GRADE_MODERATE,
			ReviewerGrade:  domain.GRADE_MODERATE,
			ReviewerID:     reviewer,
			ReviewerAgreed: i != 2,
		}
		require.NoError(t, store.Save(ctx, review))
	}

	reviews, err := store.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, reviews, 3)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// Pagination
	page, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	review := &Review{
		SynthesisID:   "2f0d4a3e-1b6c-4f58-9c7d-0aa413f2b981",
		SystemGrade:   domain.GRADE_HIGH,
		ReviewerGrade: domain.GRADE_HIGH,
		ReviewerID:    "dr-chen",
	}
	require.NoError(t, store.Save(ctx, review))

	require.NoError(t, store.Delete(ctx, review.ID))

	retrieved, err := store.Get(ctx, review.SynthesisID, "dr-chen")
	require.NoError(t, err)
	assert.Nil(t, retrieved)
}

func TestSQLiteStore_ExportImport(t *testing.T) {
	source := createTestStore(t)
	defer source.Close()

	ctx := context.Background()

	reviews := []*Review{
		{
			SynthesisID:    "2f0d4a3e-1b6c-4f58-9c7d-0aa413f2b981",
			SystemGrade:    domain.GRADE_MODERATE,
			ReviewerGrade:  domain.GRADE_LOW,
			ReviewerID:     "dr-chen",
			ReviewerAgreed: false,
		},
		{
			SynthesisID:    "8c1f9ab2-3d47-4e60-b1a5-6c2ee8f0d372",
			SystemGrade:    domain.GRADE_HIGH,
			ReviewerGrade:  domain.GRADE_HIGH,
			ReviewerID:     "dr-okafor",
			ReviewerAgreed: true,
		},
	}
	for _, rv := range reviews {
		require.NoError(t, source.Save(ctx, rv))
	}

	var buf bytes.Buffer
	require.NoError(t, source.ExportJSON(ctx, &buf))

	target := createTestStore(t)
	defer target.Close()

	imported, skipped, err := target.ImportJSON(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, imported)
	assert.Equal(t, 0, skipped)

	// Re-import skips existing entries
	var again bytes.Buffer
	require.NoError(t, source.ExportJSON(ctx, &again))

	imported, skipped, err = target.ImportJSON(ctx, &again)
	require.NoError(t, err)
	assert.Equal(t, 0, imported)
	assert.Equal(t, 2, skipped)

	retrieved, err := target.Get(ctx, "2f0d4a3e-1b6c-4f58-9c7d-0aa413f2b981", "dr-chen")
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, domain.GRADE_LOW, retrieved.ReviewerGrade)
}
