package repository

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantheon/duel-server-go/migrations"
)

func TestMigrationFilesOrdered(t *testing.T) {
	fsys := fstest.MapFS{
		"010_decks.sql": {Data: []byte("SELECT 1")},
		"002_users.sql": {Data: []byte("SELECT 1")},
		"README.md":     {Data: []byte("notes")},
		"001_init.sql":  {Data: []byte("SELECT 1")},
	}
	names, err := migrationFiles(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.sql", "002_users.sql", "010_decks.sql"}, names)
}

func TestEmbeddedSchema(t *testing.T) {
	names, err := migrationFiles(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_init.sql", names[0])
}
