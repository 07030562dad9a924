package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/bcrypt"

	"github.com/pantheon/duel-server-go/internal/auth"
	"github.com/pantheon/duel-server-go/internal/config"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"migrate", "import-cards", "grant-card", "hash-token"})

	flag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "config/config.yaml", flag.DefValue)
}

func TestHashTokenCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"hash-token", "--cost", "4", "olympus"})
	require.NoError(t, root.Execute())

	hash := strings.TrimSpace(out.String())
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("olympus")))

	v, err := auth.NewVerifier(hash)
	require.NoError(t, err)
	assert.NoError(t, v.Verify("olympus"))
}

func TestGrantCardRejectsBadID(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"grant-card", "alice", "zeus"})
	assert.Error(t, root.Execute())
}

func TestInitLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := initLogger(config.LoggingConfig{Level: "debug", Format: format})
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel), "debug enabled for %s", format)
	}

	logger, err := initLogger(config.LoggingConfig{Level: "error"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
}
