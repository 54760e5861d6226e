package forge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnvironment() *Environment {
	env := &Environment{Ordinal: 42, Timestamp: 1_700_000_000, CapacityHint: 30_000_000, FeeHint: 7}
	for i := range env.HistoryDigest {
		env.HistoryDigest[i] = byte(i)
	}
	return env
}

func TestKeccakDeriver_Deterministic(t *testing.T) {
	d := KeccakDeriver{}
	env := testEnvironment()

	a := d.Derive(env, "alice", 1, 0)
	b := d.Derive(env, "alice", 1, 0)
	assert.Equal(t, a, b)
	assert.Less(t, a.Base, uint64(BaseRollRange))
	assert.Less(t, a.Upgrade, uint64(UpgradeRollRange))
}

func TestKeccakDeriver_InputsChangeRolls(t *testing.T) {
	d := KeccakDeriver{}
	env := testEnvironment()
	base := d.Derive(env, "alice", 1, 0)

	assert.NotEqual(t, base, d.Derive(env, "bob", 1, 0))
	assert.NotEqual(t, base, d.Derive(env, "alice", 2, 0))
	assert.NotEqual(t, base.Base, d.Derive(env, "alice", 1, 1).Base)

	other := testEnvironment()
	other.Ordinal++
	assert.NotEqual(t, base, d.Derive(other, "alice", 1, 0))

	other = testEnvironment()
	other.HistoryDigest[0] ^= 0xff
	assert.NotEqual(t, base, d.Derive(other, "alice", 1, 0))
}

func TestKeccakDeriver_UpgradeRollIgnoresGlobalCounter(t *testing.T) {
	d := KeccakDeriver{}
	env := testEnvironment()
	assert.Equal(t, d.Derive(env, "alice", 1, 0).Upgrade, d.Derive(env, "alice", 1, 99).Upgrade)
}

func TestKeccakDeriver_TierDistribution(t *testing.T) {
	d := KeccakDeriver{}
	source := &SeededEnvironmentSource{Seed: 99}

	const samples = 20_000
	tierZero := 0
	for i := uint64(0); i < samples; i++ {
		env, err := source.Sample(context.Background(), i)
		require.NoError(t, err)
		if RollTier(d.Derive(env, "alice", i+1, i).Base) == 0 {
			tierZero++
		}
	}
	ratio := float64(tierZero) / samples
	assert.InDelta(t, 0.9, ratio, 0.01)
}

func TestSeededEnvironmentSource(t *testing.T) {
	source := &SeededEnvironmentSource{Seed: 3, Epoch: 1000, CapacityHint: 1, FeeHint: 2}
	a, err := source.Sample(context.Background(), 5)
	require.NoError(t, err)
	b, err := source.Sample(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, int64(1005), a.Timestamp)
	assert.Equal(t, uint64(1), a.CapacityHint)
	assert.Equal(t, uint64(2), a.FeeHint)

	c, err := source.Sample(context.Background(), 6)
	require.NoError(t, err)
	assert.NotEqual(t, a.HistoryDigest, c.HistoryDigest)
}

func TestCryptoEnvironmentSource(t *testing.T) {
	source := NewCryptoEnvironmentSource(10, 20)
	source.now = func() time.Time { return time.Unix(1234, 0) }

	a, err := source.Sample(context.Background(), 1)
	require.NoError(t, err)
	b, err := source.Sample(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, int64(1234), a.Timestamp)
	assert.Equal(t, uint64(1), a.Ordinal)
	assert.Equal(t, uint64(10), a.CapacityHint)
	assert.Equal(t, uint64(20), a.FeeHint)
	assert.NotEqual(t, a.HistoryDigest, b.HistoryDigest)

	literal := &CryptoEnvironmentSource{}
	_, err = literal.Sample(context.Background(), 0)
	assert.NoError(t, err)
}
