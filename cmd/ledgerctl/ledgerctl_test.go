package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"hoa-ledger/config"
	ledgerredis "hoa-ledger/internal/redis"
	"hoa-ledger/internal/services"
	"hoa-ledger/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv(t *testing.T) *env {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Driver = config.DriverSQLite
	cfg.Database.Path = filepath.Join(t.TempDir(), "ledger.db")
	return &env{cfg: cfg, log: logger.NewNop()}
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrateSeedAudit(t *testing.T) {
	e := testEnv(t)
	getEnv := func() *env { return e }

	out, err := run(t, migrateCommand(getEnv))
	require.NoError(t, err)
	assert.Contains(t, out, "migrated 4 tables on sqlite")

	out, err = run(t, seedCommand(getEnv))
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "\n"))

	out, err = run(t, statusCommand(getEnv))
	require.NoError(t, err)
	assert.Regexp(t, `polls\s+3`, out)

	out, err = run(t, auditCommand(getEnv))
	require.NoError(t, err)
	assert.Contains(t, out, "3 polls audited, 0 broken")
}

func TestTokenCommand(t *testing.T) {
	e := testEnv(t)

	out, err := run(t, tokenCommand(func() *env { return e }), "unit-7", "--admin")
	require.NoError(t, err)

	claims, err := services.NewAuthService(e.cfg.Auth).ParseAccessToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "unit-7", claims.VoterID)
	assert.Equal(t, services.RoleAdmin, claims.Role)

	_, err = run(t, tokenCommand(func() *env { return e }))
	assert.Error(t, err)
}

func TestRateLimitResetCommand(t *testing.T) {
	mr := miniredis.RunT(t)
	e := testEnv(t)
	e.cfg.Redis.Host = mr.Host()
	e.cfg.Redis.Port = mr.Port()
	e.cfg.Ledger.VoteRateLimit = 1
	getEnv := func() *env { return e }

	rdb := ledgerredis.NewClient(e.cfg.Redis)
	t.Cleanup(func() { _ = rdb.Close() })
	limiter := ledgerredis.NewRateLimiter(rdb, ledgerredis.RateLimitConfig{
		VoteLimit:  1,
		VoteWindow: e.cfg.Ledger.VoteRateWindow,
	})
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := limiter.AllowVote(ctx, ledgerredis.VoterKey("unit-3"))
		require.NoError(t, err)
	}

	out, err := run(t, rateLimitCommand(getEnv), "reset", "--voter", "unit-3")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared rate limit for voter unit-3")

	res, err := limiter.AllowVote(ctx, ledgerredis.VoterKey("unit-3"))
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	out, err = run(t, rateLimitCommand(getEnv), "reset", "--ip", "10.1.1.1")
	require.NoError(t, err)
	assert.Contains(t, out, "no active window for address 10.1.1.1")

	_, err = run(t, rateLimitCommand(getEnv), "reset")
	assert.Error(t, err)
	_, err = run(t, rateLimitCommand(getEnv), "reset", "--voter", "a", "--ip", "b")
	assert.Error(t, err)
}
