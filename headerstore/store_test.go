package headerstore_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/omni/bridge-node/headerstore"
	"github.com/omni/bridge-node/logging"
)

var errRPC = errors.New("rpc failure")

type fakeSource struct {
	height  uint64
	failAt  uint64
	block   chan struct{}
	entered chan struct{}
	once    sync.Once
}

func testHeader(n uint64) *types.Header {
	return &types.Header{
		Number:      new(big.Int).SetUint64(n),
		Time:        1600000000 + n*5,
		TxHash:      crypto.Keccak256Hash([]byte(fmt.Sprintf("tx%d", n))),
		ReceiptHash: crypto.Keccak256Hash([]byte(fmt.Sprintf("receipts%d", n))),
	}
}

func (s *fakeSource) HeaderByNumber(_ context.Context, n uint64) (*types.Header, error) {
	if s.block != nil {
		s.once.Do(func() { close(s.entered) })
		<-s.block
	}
	if s.failAt != 0 && n == s.failAt {
		return nil, errRPC
	}
	if n > s.height {
		return nil, ethereum.NotFound
	}
	return testHeader(n), nil
}

func expectedHashes(start, end uint64) []common.Hash {
	var prev common.Hash
	var res []common.Hash
	for n := uint64(1); n <= end; n++ {
		rec := headerstore.NewRecord(prev, testHeader(n))
		prev = rec.Hash
		if n >= start {
			res = append(res, rec.Hash)
		}
	}
	return res
}

func openStore(t *testing.T, path string, batch uint64) *headerstore.Store {
	t.Helper()
	s, err := headerstore.Open("test", path, batch, logging.Nop())
	require.NoError(t, err)
	return s
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	blob, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.SplitAfter(strings.TrimSuffix(string(blob), "\n"), "\n")
}

func TestStore_SyncAndReplay(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "headers.csv")
	s := openStore(t, path, 1000)
	require.Zero(t, s.Height())

	require.NoError(t, s.Sync(ctx, 250, &fakeSource{height: 250}))
	require.Equal(t, uint64(250), s.Height())

	lines := readLines(t, path)
	require.Len(t, lines, 3)
	require.Equal(t, 100*5, strings.Count(lines[0], ","))
	require.Equal(t, 100*5, strings.Count(lines[1], ","))
	require.Equal(t, 50*5, strings.Count(lines[2], ","))
	require.True(t, strings.HasPrefix(lines[1], ",101,"))
	require.True(t, strings.HasPrefix(lines[2], ",201,"))

	hashes, seen, err := s.LoadRange(1, 250)
	require.NoError(t, err)
	require.Equal(t, uint64(250), seen)
	require.Equal(t, expectedHashes(1, 250), hashes)
	require.NoError(t, s.Close())

	before, err := os.ReadFile(path)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		s = openStore(t, path, 1000)
		require.Equal(t, uint64(250), s.Height())
		hashes, seen, err = s.LoadRange(1, 250)
		require.NoError(t, err)
		require.Equal(t, uint64(250), seen)
		require.Equal(t, expectedHashes(1, 250), hashes)
		require.NoError(t, s.Close())

		after, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, before, after)
	}

	s = openStore(t, path, 1000)
	require.NoError(t, s.Sync(ctx, 420, &fakeSource{height: 420}))
	hashes, seen, err = s.LoadRange(1, 420)
	require.NoError(t, err)
	require.Equal(t, uint64(420), seen)
	require.Equal(t, expectedHashes(1, 420), hashes)
	require.NoError(t, s.Close())
	require.Len(t, readLines(t, path), 5)
}

func TestStore_LoadRangeChunkBoundaries(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "headers.csv")
	s := openStore(t, path, 1000)
	defer s.Close()
	require.NoError(t, s.Sync(context.Background(), 305, &fakeSource{height: 305}))

	for _, r := range [][2]uint64{{1, 1}, {95, 105}, {100, 101}, {200, 201}, {199, 305}, {301, 305}, {50, 250}} {
		hashes, seen, err := s.LoadRange(r[0], r[1])
		require.NoError(t, err)
		require.Equal(t, r[1], seen)
		require.Equal(t, expectedHashes(r[0], r[1]), hashes, "range %d-%d", r[0], r[1])
	}

	hashes, seen, err := s.LoadRange(300, 400)
	require.NoError(t, err)
	require.Equal(t, uint64(305), seen)
	require.Len(t, hashes, 6)

	_, err = s.LoadSyncedRange(300, 400)
	require.ErrorIs(t, err, headerstore.ErrNotSyncedYet)
	hashes, err = s.LoadSyncedRange(1, 256)
	require.NoError(t, err)
	require.Len(t, hashes, 256)
}

func TestStore_ExactChunk(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "headers.csv")
	s := openStore(t, path, 1000)
	require.NoError(t, s.Sync(ctx, 100, &fakeSource{height: 100}))
	require.NoError(t, s.Close())
	require.Len(t, readLines(t, path), 1)

	s = openStore(t, path, 1000)
	require.NoError(t, s.Sync(ctx, 101, &fakeSource{height: 101}))
	require.NoError(t, s.Close())
	lines := readLines(t, path)
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[1], ",101,"))

	s = openStore(t, path, 1000)
	defer s.Close()
	hashes, err := s.LoadSyncedRange(1, 101)
	require.NoError(t, err)
	require.Equal(t, expectedHashes(1, 101), hashes)
}

func TestStore_SyncLimits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("batch size", func(t *testing.T) {
		t.Parallel()
		s := openStore(t, filepath.Join(t.TempDir(), "headers.csv"), 30)
		defer s.Close()
		require.NoError(t, s.Sync(ctx, 100, &fakeSource{height: 100}))
		require.Equal(t, uint64(30), s.Height())
		require.NoError(t, s.Sync(ctx, 100, &fakeSource{height: 100}))
		require.Equal(t, uint64(60), s.Height())
	})

	t.Run("absent block", func(t *testing.T) {
		t.Parallel()
		s := openStore(t, filepath.Join(t.TempDir(), "headers.csv"), 1000)
		defer s.Close()
		require.NoError(t, s.Sync(ctx, 100, &fakeSource{height: 50}))
		require.Equal(t, uint64(50), s.Height())
	})

	t.Run("rpc error keeps progress", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "headers.csv")
		s := openStore(t, path, 1000)
		err := s.Sync(ctx, 100, &fakeSource{height: 100, failAt: 20})
		require.ErrorIs(t, err, errRPC)
		require.Equal(t, uint64(19), s.Height())

		// checkpoint after the failed pass persisted the progress
		reopened := openStore(t, path, 1000)
		require.Equal(t, uint64(19), reopened.Height())
		require.NoError(t, reopened.Close())
		require.NoError(t, s.Close())
	})
}

func TestStore_ConcurrentSyncIsSkipped(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "headers.csv"), 1000)
	defer s.Close()

	src := &fakeSource{height: 10, block: make(chan struct{}), entered: make(chan struct{})}
	done := make(chan error)
	go func() {
		done <- s.Sync(ctx, 10, src)
	}()
	<-src.entered

	require.NoError(t, s.Sync(ctx, 10, &fakeSource{height: 10}))
	require.Zero(t, s.Height())

	close(src.block)
	require.NoError(t, <-done)
	require.Equal(t, uint64(10), s.Height())
}

func TestStore_Corruption(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	valid := filepath.Join(t.TempDir(), "headers.csv")
	s := openStore(t, valid, 1000)
	require.NoError(t, s.Sync(ctx, 150, &fakeSource{height: 150}))
	require.NoError(t, s.Close())
	blob, err := os.ReadFile(valid)
	require.NoError(t, err)

	write := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "headers.csv")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("gap in block numbers", func(t *testing.T) {
		t.Parallel()
		lines := strings.SplitAfter(string(blob), "\n")
		path := write(t, lines[1])
		_, err := headerstore.Open("test", path, 1000, logging.Nop())
		require.ErrorIs(t, err, headerstore.ErrChainDiscontinuity)
	})

	t.Run("tampered hash", func(t *testing.T) {
		t.Parallel()
		wrong := expectedHashes(7, 7)[0].Hex()
		right := expectedHashes(8, 8)[0].Hex()
		path := write(t, strings.Replace(string(blob), right, wrong, 1))
		_, err := headerstore.Open("test", path, 1000, logging.Nop())
		require.ErrorIs(t, err, headerstore.ErrChainDiscontinuity)
	})

	t.Run("malformed line", func(t *testing.T) {
		t.Parallel()
		path := write(t, ",1,2,3\n")
		_, err := headerstore.Open("test", path, 1000, logging.Nop())
		require.ErrorIs(t, err, headerstore.ErrChainDiscontinuity)
	})

	t.Run("torn last line is dropped", func(t *testing.T) {
		t.Parallel()
		lines := strings.SplitAfter(string(blob), "\n")
		path := write(t, lines[0]+lines[1][:len(lines[1])/2])
		s, err := headerstore.Open("test", path, 1000, logging.Nop())
		require.NoError(t, err)
		require.Equal(t, uint64(100), s.Height())
		require.NoError(t, s.Sync(ctx, 150, &fakeSource{height: 150}))
		require.NoError(t, s.Close())

		repaired, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, blob, repaired)
	})
}

func TestResync(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "headers.csv")
	s := openStore(t, path, 1000)
	require.NoError(t, s.Sync(context.Background(), 10, &fakeSource{height: 10}))
	require.NoError(t, s.Close())

	require.NoError(t, headerstore.Resync(path))
	_, err := os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.NoError(t, headerstore.Resync(path))

	s = openStore(t, path, 1000)
	defer s.Close()
	require.Zero(t, s.Height())
}
