package headerstore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/omni/bridge-node/entity"
	"github.com/omni/bridge-node/logging"
)

const (
	// ChunkSize is the number of records in every complete line of the log.
	ChunkSize = 100

	chunkCacheSize = 64
)

var (
	ErrChainDiscontinuity = errors.New("header chain discontinuity")
	ErrNotSyncedYet       = errors.New("headers are not synced yet")
	ErrClosed             = errors.New("header store is closed")
)

type HeaderSource interface {
	HeaderByNumber(ctx context.Context, n uint64) (*types.Header, error)
}

type chunk struct {
	first  uint64
	last   uint64
	offset int64
	length int64
}

// Store is an append-only log of chained block headers of a single chain.
// Complete chunks are immutable lines of the file, the newest records are kept in
// memory and persisted as the final partial line on every checkpoint.
type Store struct {
	chain     string
	path      string
	batchSize uint64
	logger    logging.Logger

	syncMu sync.Mutex

	mu         sync.RWMutex
	file       *os.File
	chunks     []chunk
	tail       []entity.HeaderRecord
	tailOffset int64
	dirty      bool
	height     uint64
	lastHash   common.Hash

	cache *lru.Cache[int, []entity.HeaderRecord]
}

// Open replays the log at path, verifying block continuity and the hash chain.
// A missing file results in an empty store.
func Open(chain, path string, batchSize uint64, logger logging.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("can't create header log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("can't open header log: %w", err)
	}
	cache, err := lru.New[int, []entity.HeaderRecord](chunkCacheSize)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("can't create chunk cache: %w", err)
	}
	s := &Store{
		chain:     chain,
		path:      path,
		batchSize: batchSize,
		logger:    logger.WithField("chain", chain),
		file:      f,
		cache:     cache,
	}
	if err = s.replay(); err != nil {
		f.Close()
		return nil, err
	}
	SyncedBlock.WithLabelValues(chain).Set(float64(s.height))
	s.logger.WithField("height", s.height).Info("header log loaded")
	return s, nil
}

// Resync removes the header log, the next Open starts from block 1.
func Resync(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("can't remove header log: %w", err)
	}
	return nil
}

func (s *Store) replay() error {
	r := bufio.NewReader(s.file)
	var offset int64
	var lines [][]entity.HeaderRecord
	var offsets []int64
	for {
		line, err := r.ReadString('\n')
		if errors.Is(err, io.EOF) {
			if line != "" {
				// a torn write of the final partial line, previous checkpoint is lost
				s.logger.WithField("offset", offset).Warn("dropping incomplete last line of header log")
				if err = s.file.Truncate(offset); err != nil {
					return fmt.Errorf("can't truncate header log: %w", err)
				}
			}
			break
		}
		if err != nil {
			return fmt.Errorf("can't read header log: %w", err)
		}
		recs, err := decodeLine(line)
		if err != nil {
			return fmt.Errorf("line at offset %d: %v: %w", offset, err, ErrChainDiscontinuity)
		}
		for i := range recs {
			rec := &recs[i]
			if rec.Number != s.height+1 {
				return fmt.Errorf("expected block %d, got %d: %w", s.height+1, rec.Number, ErrChainDiscontinuity)
			}
			if HashRecord(s.lastHash, rec) != rec.Hash {
				return fmt.Errorf("hash mismatch at block %d: %w", rec.Number, ErrChainDiscontinuity)
			}
			s.height = rec.Number
			s.lastHash = rec.Hash
		}
		lines = append(lines, recs)
		offsets = append(offsets, offset)
		offset += int64(len(line))
	}

	s.tailOffset = offset
	if n := len(lines); n > 0 {
		for i := 0; i < n-1; i++ {
			s.chunks = append(s.chunks, chunk{
				first:  lines[i][0].Number,
				last:   lines[i][len(lines[i])-1].Number,
				offset: offsets[i],
				length: offsets[i+1] - offsets[i],
			})
		}
		s.tail = lines[n-1]
		s.tailOffset = offsets[n-1]
	}
	return nil
}

func (s *Store) Chain() string {
	return s.chain
}

// Height returns the number of the newest stored block, 0 for an empty log.
func (s *Store) Height() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height
}

// Last returns the newest stored record.
func (s *Store) Last() (entity.HeaderRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.tail) == 0 {
		return entity.HeaderRecord{}, false
	}
	return s.tail[len(s.tail)-1], true
}

// Sync appends headers after the stored height up to remoteHeight, at most batchSize per call.
// A block unknown to the source stops the pass without an error. Concurrent calls are skipped.
func (s *Store) Sync(ctx context.Context, remoteHeight uint64, src HeaderSource) error {
	if !s.syncMu.TryLock() {
		s.logger.Debug("sync pass is already running, skipping")
		return nil
	}
	defer s.syncMu.Unlock()

	s.mu.RLock()
	closed := s.file == nil
	next, prevHash := s.height+1, s.lastHash
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	err := s.syncRange(ctx, next, remoteHeight, prevHash, src)
	if cpErr := s.Checkpoint(); cpErr != nil && err == nil {
		err = cpErr
	}
	return err
}

func (s *Store) syncRange(ctx context.Context, next, remoteHeight uint64, prevHash common.Hash, src HeaderSource) error {
	limit := remoteHeight
	if s.batchSize > 0 && next+s.batchSize-1 < limit {
		limit = next + s.batchSize - 1
	}
	for n := next; n <= limit; n++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		header, err := src.HeaderByNumber(ctx, n)
		if errors.Is(err, ethereum.NotFound) || (err == nil && header == nil) {
			s.logger.WithField("block", n).Debug("block is not available yet")
			return nil
		}
		if err != nil {
			return fmt.Errorf("can't get header %d: %w", n, err)
		}
		if header.Number == nil || header.Number.Uint64() != n {
			return fmt.Errorf("requested header %d, got %v: %w", n, header.Number, ErrChainDiscontinuity)
		}
		rec := NewRecord(prevHash, header)
		if err = s.append(rec); err != nil {
			return err
		}
		prevHash = rec.Hash
	}
	return nil
}

func (s *Store) append(rec entity.HeaderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return ErrClosed
	}
	if rec.Number != s.height+1 {
		return fmt.Errorf("expected block %d, got %d: %w", s.height+1, rec.Number, ErrChainDiscontinuity)
	}
	s.tail = append(s.tail, rec)
	s.height = rec.Number
	s.lastHash = rec.Hash
	s.dirty = true
	SyncedBlock.WithLabelValues(s.chain).Set(float64(rec.Number))
	if len(s.tail) > ChunkSize {
		return s.flush()
	}
	return nil
}

// flush writes all tail records except the newest as a complete line.
func (s *Store) flush() error {
	recs := s.tail[:len(s.tail)-1]
	line := encodeLine(recs)
	if err := s.writeAt(s.tailOffset, line); err != nil {
		return err
	}
	s.chunks = append(s.chunks, chunk{
		first:  recs[0].Number,
		last:   recs[len(recs)-1].Number,
		offset: s.tailOffset,
		length: int64(len(line)),
	})
	s.cache.Add(len(s.chunks)-1, append([]entity.HeaderRecord(nil), recs...))
	s.tailOffset += int64(len(line))
	s.tail = []entity.HeaderRecord{s.tail[len(s.tail)-1]}
	FlushedChunks.WithLabelValues(s.chain).Inc()
	return nil
}

func (s *Store) writeAt(offset int64, line []byte) error {
	if err := s.file.Truncate(offset); err != nil {
		return fmt.Errorf("can't truncate header log: %w", err)
	}
	if len(line) > 0 {
		if _, err := s.file.WriteAt(line, offset); err != nil {
			return fmt.Errorf("can't write header log: %w", err)
		}
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("can't sync header log: %w", err)
	}
	return nil
}

// Checkpoint persists in-memory records as the final partial line of the log.
func (s *Store) Checkpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoint()
}

func (s *Store) checkpoint() error {
	if s.file == nil || !s.dirty {
		return nil
	}
	var line []byte
	if len(s.tail) > 0 {
		line = encodeLine(s.tail)
	}
	if err := s.writeAt(s.tailOffset, line); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

func (s *Store) readChunk(i int) ([]entity.HeaderRecord, error) {
	if recs, ok := s.cache.Get(i); ok {
		ChunkCacheRequests.WithLabelValues(s.chain, "hit").Inc()
		return recs, nil
	}
	ChunkCacheRequests.WithLabelValues(s.chain, "miss").Inc()
	c := s.chunks[i]
	buf := make([]byte, c.length)
	if _, err := s.file.ReadAt(buf, c.offset); err != nil {
		return nil, fmt.Errorf("can't read header chunk %d: %w", i, err)
	}
	recs, err := decodeLine(string(buf))
	if err != nil {
		return nil, fmt.Errorf("can't decode header chunk %d: %w", i, err)
	}
	s.cache.Add(i, recs)
	return recs, nil
}

// LoadRange returns ordered hashes of blocks in [start, end] and the highest block seen
// inside the range. seen < end means the store is not synced up to end yet.
func (s *Store) LoadRange(start, end uint64) ([]common.Hash, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.file == nil {
		return nil, 0, ErrClosed
	}
	if start == 0 {
		start = 1
	}
	var hashes []common.Hash
	var seen uint64
	collect := func(recs []entity.HeaderRecord) {
		for i := range recs {
			if recs[i].Number >= start && recs[i].Number <= end {
				hashes = append(hashes, recs[i].Hash)
				seen = recs[i].Number
			}
		}
	}
	for i, c := range s.chunks {
		if c.last < start {
			continue
		}
		if c.first > end {
			break
		}
		recs, err := s.readChunk(i)
		if err != nil {
			return nil, 0, err
		}
		collect(recs)
	}
	collect(s.tail)
	return hashes, seen, nil
}

// LoadSyncedRange is LoadRange that fails with ErrNotSyncedYet unless every block of the range is stored.
func (s *Store) LoadSyncedRange(start, end uint64) ([]common.Hash, error) {
	hashes, seen, err := s.LoadRange(start, end)
	if err != nil {
		return nil, err
	}
	if seen < end {
		return nil, fmt.Errorf("stored up to %d, requested %d: %w", seen, end, ErrNotSyncedYet)
	}
	return hashes, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.checkpoint()
	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("can't close header log: %w", closeErr)
	}
	s.file = nil
	return err
}
