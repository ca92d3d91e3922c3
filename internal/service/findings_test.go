package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protocol-evidence-server/internal/domain"
)

func TestExtractKeyFindings(t *testing.T) {
	t.Run("percentage outcome", func(t *testing.T) {
		findings := extractKeyFindings([]domain.StudyRecord{
			{Abstract: "Patients showed 70% improvement in WOMAC scores at 6 months."},
		})
		require.Len(t, findings, 1)
		assert.Contains(t, findings[0], "70% improvement")
	})

	t.Run("p-value", func(t *testing.T) {
		findings := extractKeyFindings([]domain.StudyRecord{
			{Abstract: "Pain reduction was significant versus placebo (p < 0.05)."},
		})
		require.NotEmpty(t, findings)
		assert.Contains(t, findings[0], "p < 0.05")
	})

	t.Run("negative outcome", func(t *testing.T) {
		findings := extractKeyFindings([]domain.StudyRecord{
			{Abstract: "There was no significant improvement over sham injection."},
		})
		require.NotEmpty(t, findings)
		assert.Equal(t, "negative outcome reported: no significant improvement", findings[0])
	})

	t.Run("safety statement", func(t *testing.T) {
		findings := extractKeyFindings([]domain.StudyRecord{
			{Abstract: "The injection was well tolerated with minor bruising only."},
		})
		require.NotEmpty(t, findings)
		assert.Contains(t, findings[0], "well tolerated")
	})

	t.Run("generic fallback when nothing matches", func(t *testing.T) {
		findings := extractKeyFindings([]domain.StudyRecord{
			{Abstract: "A narrative review of regenerative approaches."},
			{Abstract: "Historical perspective on autologous therapies."},
		})
		require.Len(t, findings, 1)
		assert.Equal(t, "evidence available from 2 studies", findings[0])
	})

	t.Run("caps at three findings", func(t *testing.T) {
		studies := []domain.StudyRecord{
			{Abstract: "showed 70% improvement in pain"},
			{Abstract: "showed 55% reduction in stiffness"},
			{Abstract: "showed 40% improvement in function"},
			{Abstract: "showed 30% improvement in mobility"},
		}
		assert.Len(t, extractKeyFindings(studies), 3)
	})

	t.Run("no studies yields no findings", func(t *testing.T) {
		assert.Empty(t, extractKeyFindings(nil))
	})
}
