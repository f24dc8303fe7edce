package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, int64(1000), cfg.StartingAirdrop)
	assert.Equal(t, time.Hour, cfg.SlotDuration)
	assert.Equal(t, 100, cfg.RoomCapacity)
	assert.Equal(t, int64(10), cfg.CommissionPct)
	assert.Equal(t, 1500, cfg.HistoryTruncateThreshold)
	assert.Equal(t, 1000, cfg.HistoryRetainCount)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 15*time.Minute, cfg.ResolveGracePeriod)
	assert.Equal(t, 10*time.Second, cfg.NodeCallTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("STARTING_AIRDROP", "500")
	t.Setenv("SLOT_DURATION", "30m")
	t.Setenv("ROOM_CAPACITY", "25")
	t.Setenv("COMMISSION_PCT", "5")
	t.Setenv("NODE_CALL_TIMEOUT", "3s")
	t.Setenv("SWEEP_INTERVAL", "1m")
	t.Setenv("RESOLVE_GRACE_PERIOD", "45m")
	t.Setenv("HISTORY_TRUNCATE_THRESHOLD", "200")
	t.Setenv("HISTORY_RETAIN_COUNT", "150")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, int64(500), cfg.StartingAirdrop)
	assert.Equal(t, 30*time.Minute, cfg.SlotDuration)
	assert.Equal(t, 25, cfg.RoomCapacity)
	assert.Equal(t, int64(5), cfg.CommissionPct)
	assert.Equal(t, 3*time.Second, cfg.NodeCallTimeout)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 45*time.Minute, cfg.ResolveGracePeriod)
	assert.Equal(t, 200, cfg.HistoryTruncateThreshold)
	assert.Equal(t, 150, cfg.HistoryRetainCount)
}

func TestLoad_RequiredVarsOutsideTestEnv(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("NODE_ID", "")
	t.Setenv("OWNER_PRINCIPAL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("NATS_URL", "")

	_, err := load()
	assert.Error(t, err)
}
