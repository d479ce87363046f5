package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcrm/internal/models"
)

func ptr[T any](v T) *T { return &v }

func TestLeadDossier(t *testing.T) {
	g := NewDossierGenerator("")
	d := &models.LeadDetail{
		Lead: &models.Lead{
			ID:             1,
			LeadID:         "CS0000000042",
			LeadDate:       "2024-04-01",
			CompanyName:    "Acme Ltd",
			LeadStatus:     "Proposal",
			LeadPercentage: 60,
			CustomerName:   ptr("Jane Roe"),
			ApproxValue:    ptr(125000.5),
			City:           ptr("Pune"),
			State:          ptr("MH"),
		},
		StatusHistory: []models.LeadStatusChange{
			{NewStatus: "Proposal", OldStatus: ptr("New"), ChangedAt: time.Now(), ChangedByName: ptr("Ann")},
			{NewStatus: "New", ChangedAt: time.Now()},
		},
	}

	out, err := g.LeadDossier(d, "admin", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Equal(t, "Helvetica", g.fontName)
}

func TestLeadDossierNil(t *testing.T) {
	_, err := NewDossierGenerator("").LeadDossier(nil, "x", time.Now())
	assert.Error(t, err)
}

func TestJoinNonEmpty(t *testing.T) {
	assert.Equal(t, "Pune, MH", joinNonEmpty(", ", "Pune", "", "MH"))
	assert.Equal(t, "", joinNonEmpty(", ", "", ""))
	assert.Equal(t, "10.50", money(ptr(10.5)))
	assert.Equal(t, "", money(nil))
}
