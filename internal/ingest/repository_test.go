package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRepositoryValidatesIdentifier(t *testing.T) {
	for _, table := range []string{"opening_balance", "ob_2025", "_staging"} {
		repo, err := NewRepository(nil, table)
		require.NoError(t, err, "table %q", table)
		require.NotNil(t, repo)
	}

	for _, table := range []string{
		"",
		"Opening_Balance",
		"ob;drop table vouchers",
		"ob balance",
		`ob"`,
		"1balance",
	} {
		repo, err := NewRepository(nil, table)
		require.Error(t, err, "table %q", table)
		assert.Nil(t, repo)
	}
}

func TestInsertQueryParameterizesValues(t *testing.T) {
	repo, err := NewRepository(nil, "opening_balance")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(repo.insertQuery, "INSERT INTO opening_balance"))
	for _, placeholder := range []string{"$1", "NULLIF($2, '')", "$3", "NULLIF($4, '')"} {
		assert.Contains(t, repo.insertQuery, placeholder)
	}
}
