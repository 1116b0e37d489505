package database

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/doctorhouse/internal/config"
)

func TestMigrations_Embedded(t *testing.T) {
	names, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "migrations/001_extraction_logs.sql", names[0])

	sql, err := migrationFiles.ReadFile(names[0])
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(sql), "CREATE TABLE IF NOT EXISTS extraction_logs"))
}

func TestNewPool_InvalidURL(t *testing.T) {
	_, err := NewPool(context.Background(), config.DatabaseConfig{URL: "://bad", MaxConns: 1})
	assert.ErrorContains(t, err, "parse database URL")
}
