package wallet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const testDest = "UQAWzEKcdnykvXfUNouqdS62tvrp32bCxuKS6eQrS6ISgcLo"

// scriptedSeqno replays a fixed sequence of answers, repeating the last one.
type scriptedSeqno struct {
	answers []uint32
	calls   int
}

func (s *scriptedSeqno) Seqno(ctx context.Context, address string) (uint32, bool) {
	if len(s.answers) == 0 {
		return 0, false
	}
	i := s.calls
	if i >= len(s.answers) {
		i = len(s.answers) - 1
	}
	s.calls++
	return s.answers[i], true
}

type fakeSubmitter struct {
	hash  string
	err   error
	calls int
}

func (f *fakeSubmitter) Submit(ctx context.Context, destination string, amountNano int64, memo string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.hash, nil
}

func testConfig() Config {
	return Config{TTL: 50 * time.Millisecond, PollInterval: time.Millisecond, MaxRetries: 2}
}

func TestTransfer_ConfirmsOnSeqnoAdvance(t *testing.T) {
	// Baseline read sees 5, the first confirmation polls see 5 then 6.
	seqno := &scriptedSeqno{answers: []uint32{5, 5, 6}}
	sub := &fakeSubmitter{hash: "deadbeef"}
	client := NewFromParts(sub, seqno, "wallet-addr", testConfig())

	attempt := client.Transfer(context.Background(), testDest, 1_000_000_000, "hello")

	assert.True(t, attempt.Succeeded)
	assert.Empty(t, attempt.Error)
	assert.Equal(t, 1, attempt.Attempts)
	assert.Equal(t, 1, sub.calls)
	assert.Equal(t, "deadbeef", attempt.TxHash)
	// Baseline + two confirmation polls.
	assert.Equal(t, 3, seqno.calls)
}

func TestTransfer_RetriesSubmissionFailure(t *testing.T) {
	seqno := &scriptedSeqno{answers: []uint32{5}}
	sub := &fakeSubmitter{err: errors.New("liteserver unavailable")}
	cfg := testConfig()
	client := NewFromParts(sub, seqno, "wallet-addr", cfg)

	start := time.Now()
	attempt := client.Transfer(context.Background(), testDest, 100, "")

	assert.False(t, attempt.Succeeded)
	assert.Equal(t, 3, attempt.Attempts)
	assert.Equal(t, 3, sub.calls)
	assert.Contains(t, attempt.Error, "liteserver unavailable")
	// Two inter-attempt pauses of 1s each.
	assert.GreaterOrEqual(t, time.Since(start), 2*time.Second)
}

func TestTransfer_SeqnoNeverAdvances(t *testing.T) {
	seqno := &scriptedSeqno{answers: []uint32{5}}
	sub := &fakeSubmitter{hash: "cafe"}
	client := NewFromParts(sub, seqno, "wallet-addr", testConfig())

	attempt := client.Transfer(context.Background(), testDest, 100, "")

	assert.False(t, attempt.Succeeded)
	assert.Equal(t, 3, attempt.Attempts)
	assert.Equal(t, errSeqnoNotIncreased, attempt.Error)
	assert.Equal(t, "cafe", attempt.TxHash)
}

func TestTransfer_AbsentBaselineAssumesZero(t *testing.T) {
	// No indexer answers until after submission, when 1 proves inclusion
	// against the assumed zero baseline.
	seqno := &scriptedSeqno{}
	sub := &fakeSubmitter{hash: "beef"}
	client := NewFromParts(sub, seqno, "wallet-addr", testConfig())

	attempt := client.Transfer(context.Background(), testDest, 100, "")
	assert.False(t, attempt.Succeeded) // nothing ever answers

	seqno.answers = []uint32{1}
	attempt = client.Transfer(context.Background(), testDest, 100, "")
	assert.True(t, attempt.Succeeded)
}

func TestTransfer_RejectsNonPositiveAmount(t *testing.T) {
	sub := &fakeSubmitter{hash: "x"}
	client := NewFromParts(sub, &scriptedSeqno{answers: []uint32{1}}, "wallet-addr", testConfig())

	attempt := client.Transfer(context.Background(), testDest, 0, "")

	assert.False(t, attempt.Succeeded)
	assert.Equal(t, 0, attempt.Attempts)
	assert.Equal(t, 0, sub.calls)
	assert.Contains(t, attempt.Error, "non-positive")
}

func TestTransfer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sub := &fakeSubmitter{hash: "x"}
	client := NewFromParts(sub, &scriptedSeqno{answers: []uint32{1}}, "wallet-addr", testConfig())

	attempt := client.Transfer(ctx, testDest, 100, "")
	assert.False(t, attempt.Succeeded)
	assert.Equal(t, 0, sub.calls)
}
