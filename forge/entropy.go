package forge

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/sha3"
)

// Environment carries the unpredictable values the host supplies for each kill. The
// deriver treats every field as opaque input.
type Environment struct {
	HistoryDigest [32]byte `json:"history_digest"`
	Ordinal       uint64   `json:"ordinal"`
	Timestamp     int64    `json:"timestamp"`
	CapacityHint  uint64   `json:"capacity_hint"`
	FeeHint       uint64   `json:"fee_hint"`
}

// The EnvironmentSource supplies a fresh Environment for every kill. The ordinal is the
// ledger's commit sequence at the time of the call.
type EnvironmentSource interface {
	Sample(ctx context.Context, ordinal uint64) (*Environment, error)
}

// Rolls are the two independent draws produced for one kill.
type Rolls struct {
	// Base is uniform in [0, BaseRollRange).
	Base uint64 `json:"base"`
	// Upgrade is uniform in [0, UpgradeRollRange).
	Upgrade uint64 `json:"upgrade"`
}

// The Deriver turns an environment sample, an account, its nonce and the global kill counter
// into a pair of rolls.
type Deriver interface {
	Derive(env *Environment, account string, nonce, globalKills uint64) Rolls
}

var upgradeDomain = []byte("upgrade")

var (
	baseRollModulus    = new(big.Int).SetUint64(BaseRollRange)
	upgradeRollModulus = new(big.Int).SetUint64(UpgradeRollRange)
)

// KeccakDeriver derives rolls with three rounds of keccak-256 over the packed inputs.
// The upgrade roll hashes a domain tag first so its pre-image never overlaps a base
// roll round.
type KeccakDeriver struct{}

func (KeccakDeriver) Derive(env *Environment, account string, nonce, globalKills uint64) Rolls {
	round1 := keccak(env.HistoryDigest[:], u64(env.Ordinal), i64(env.Timestamp), []byte(account), u64(nonce))
	round2 := keccak(round1, u64(env.CapacityHint), u64(env.FeeHint), []byte(account), u64(nonce), u64(globalKills))

	mixed := make([]byte, len(round1))
	for i := range round1 {
		mixed[i] = round1[i] ^ round2[i]
	}
	final := keccak(mixed, u64(env.Ordinal), i64(env.Timestamp), []byte(account), u64(nonce), u64(globalKills))
	upgrade := keccak(upgradeDomain, round1, []byte(account), u64(nonce))

	return Rolls{
		Base:    reduce(final, baseRollModulus),
		Upgrade: reduce(upgrade, upgradeRollModulus),
	}
}

func keccak(parts ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func reduce(digest []byte, modulus *big.Int) uint64 {
	return new(big.Int).Mod(new(big.Int).SetBytes(digest), modulus).Uint64()
}

func u64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func i64(v int64) []byte {
	return u64(uint64(v))
}

// CryptoEnvironmentSource fills the history digest from crypto/rand, so every sample is
// unpredictable even though derivation itself is deterministic.
type CryptoEnvironmentSource struct {
	CapacityHint uint64
	FeeHint      uint64

	now func() time.Time
}

// NewCryptoEnvironmentSource creates a source reporting the given capacity and fee hints.
func NewCryptoEnvironmentSource(capacityHint, feeHint uint64) *CryptoEnvironmentSource {
	return &CryptoEnvironmentSource{
		CapacityHint: capacityHint,
		FeeHint:      feeHint,
		now:          time.Now,
	}
}

func (s *CryptoEnvironmentSource) Sample(ctx context.Context, ordinal uint64) (*Environment, error) {
	now := s.now
	if now == nil {
		now = time.Now
	}
	env := &Environment{
		Ordinal:      ordinal,
		Timestamp:    now().Unix(),
		CapacityHint: s.CapacityHint,
		FeeHint:      s.FeeHint,
	}
	if _, err := crand.Read(env.HistoryDigest[:]); err != nil {
		return nil, fmt.Errorf("read history digest: %w", err)
	}
	return env, nil
}

// SeededEnvironmentSource produces a reproducible sequence of samples from a seed. It is
// meant for simulations and replays, never for live play.
type SeededEnvironmentSource struct {
	Seed         uint64
	Epoch        int64
	CapacityHint uint64
	FeeHint      uint64
}

func (s *SeededEnvironmentSource) Sample(ctx context.Context, ordinal uint64) (*Environment, error) {
	env := &Environment{
		Ordinal:      ordinal,
		Timestamp:    s.Epoch + int64(ordinal),
		CapacityHint: s.CapacityHint,
		FeeHint:      s.FeeHint,
	}
	copy(env.HistoryDigest[:], keccak([]byte("seed"), u64(s.Seed), u64(ordinal)))
	return env, nil
}
