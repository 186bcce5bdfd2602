// Command authcore-loadtest measures the hot-path throughput of an Engine:
// the per-request Validate gate and the Refresh mint. It seeds N logged-in
// sessions, then drives the two phases concurrently and reports latency
// percentiles.
//
// By default it runs fully self-contained against miniredis and an in-memory
// store; point --redis-addr at a real instance to measure network costs.
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	authcore "github.com/valtrade/authcore"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	var (
		sessions    = flag.Int("sessions", 10000, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (validate + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	engine, provider, err := buildEngine(client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	pairs := make([]authcore.TokenPair, *sessions)
	for i := 0; i < *sessions; i++ {
		userID := fmt.Sprintf("user-%d", i)
		provider.put(userID)
		pair, err := engine.Login(ctx, userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
		pairs[i] = *pair
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		_, err := engine.Validate(ctx, pairs[r.Intn(len(pairs))].AccessToken)
		return err
	})
	refreshStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		_, err := engine.Refresh(ctx, pairs[r.Intn(len(pairs))].RefreshToken)
		return err
	})

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)
}

func buildEngine(client redis.UniversalClient) (*authcore.Engine, *loadProvider, error) {
	cfg := authcore.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("loadtest-signing-secret")
	cfg.Encryption.KeyBase64 = base64.StdEncoding.EncodeToString(
		[]byte("0123456789abcdef0123456789abcdef"))
	cfg.Audit.Enabled = false

	provider := newLoadProvider()

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithStore(newLoadStore()).
		WithUserProvider(provider).
		Build()
	if err != nil {
		return nil, nil, err
	}
	return engine, provider, nil
}

func runPhase(ops, concurrency int, op func(*rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

// loadProvider serves synthetic active users. A single shared bcrypt hash
// keeps seeding fast; the password gate is not on the measured paths.
type loadProvider struct {
	mu    sync.RWMutex
	users map[string]authcore.UserRecord
	hash  string
}

func newLoadProvider() *loadProvider {
	hash, err := bcrypt.GenerateFromPassword([]byte("loadtest"), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return &loadProvider{
		users: make(map[string]authcore.UserRecord),
		hash:  string(hash),
	}
}

func (p *loadProvider) put(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[userID] = authcore.UserRecord{
		ID:           userID,
		Email:        userID + "@loadtest.local",
		PasswordHash: p.hash,
		Status:       authcore.UserActive,
	}
}

func (p *loadProvider) GetUserByID(_ context.Context, userID string) (authcore.UserRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.users[userID]
	if !ok {
		return authcore.UserRecord{}, authcore.ErrUserNotFound
	}
	return u, nil
}

// loadStore is an in-memory Store tuned for the two measured paths: session
// reads are indexed by token hash instead of scanning.
type loadStore struct {
	mu     sync.RWMutex
	byHash map[string]*authcore.SessionRecord
	byID   map[string]*authcore.SessionRecord
}

func newLoadStore() *loadStore {
	return &loadStore{
		byHash: make(map[string]*authcore.SessionRecord),
		byID:   make(map[string]*authcore.SessionRecord),
	}
}

func (s *loadStore) CreateSession(_ context.Context, session authcore.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := session
	s.byHash[session.RefreshTokenHash] = &copied
	s.byID[session.ID] = &copied
	return nil
}

func (s *loadStore) GetSessionByTokenHash(_ context.Context, tokenHash string) (*authcore.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byHash[tokenHash]
	if !ok {
		return nil, nil
	}
	copied := *sess
	return &copied, nil
}

func (s *loadStore) RevokeSession(_ context.Context, sessionID string, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[sessionID]
	if !ok || sess.IsRevoked {
		return authcore.ErrSessionNotFound
	}
	sess.IsRevoked = true
	sess.RevokedAt = &revokedAt
	return nil
}

func (s *loadStore) RevokeUserSessions(_ context.Context, userID string, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.byID {
		if sess.UserID == userID && !sess.IsRevoked {
			sess.IsRevoked = true
			at := revokedAt
			sess.RevokedAt = &at
		}
	}
	return nil
}

func (s *loadStore) GetTwoFactor(_ context.Context, _ string) (*authcore.TwoFactorRecord, error) {
	return nil, nil
}

func (s *loadStore) EnableTwoFactor(_ context.Context, _ authcore.TwoFactorRecord, _ []authcore.BackupCodeRecord) error {
	return nil
}

func (s *loadStore) DisableTwoFactor(_ context.Context, _ string) error { return nil }

func (s *loadStore) ReplaceBackupCodes(_ context.Context, _ string, _ []authcore.BackupCodeRecord) error {
	return nil
}

func (s *loadStore) GetUnusedBackupCodes(_ context.Context, _ string) ([]authcore.BackupCodeRecord, error) {
	return nil, nil
}

func (s *loadStore) ConsumeBackupCode(_ context.Context, _ string, _ time.Time) error {
	return authcore.ErrCodeInvalid
}

func (s *loadStore) CountUnusedBackupCodes(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func (s *loadStore) AppendAudit(_ context.Context, _ authcore.AuditRecord) error { return nil }
