package xbdata

import "github.com/mkfoss/xbase/internal/xbformat"

// StreamOptions configures Stream. ChunkSize is a hint for how many records
// worth of bytes a single positioned read should cover; it is clamped to at
// least 1.
type StreamOptions struct {
	IncludeDeleted bool
	ChunkSize      int
}

// Stream is a restartable, demand-driven iterator over an engine's records,
// ascending by record index. It borrows the engine for its lifetime; each
// buffer refill performs a single positioned read of up to ChunkSize records
// worth of bytes. A fresh call to the engine's Stream method starts over from
// index 0.
type Stream struct {
	engine *Engine
	opts   StreamOptions
	cursor uint32
	buf    []*Record
	bufAt  int
}

// Stream returns a new restartable iterator. Calling Stream again at any
// time starts a fresh cursor at index 0; existing Streams are unaffected.
func (e *Engine) Stream(opts StreamOptions) *Stream {
	if opts.ChunkSize < 1 {
		opts.ChunkSize = 1
	}
	return &Stream{engine: e, opts: opts}
}

// Next advances the cursor and returns the next matching record, or ok=false
// once the engine's record_count has been exhausted.
func (s *Stream) Next() (rec *Record, ok bool, err error) {
	for {
		if s.bufAt < len(s.buf) {
			r := s.buf[s.bufAt]
			s.bufAt++
			return r, true, nil
		}
		if s.cursor >= s.engine.header.RecordCount {
			return nil, false, nil
		}
		if err := s.fill(); err != nil {
			return nil, false, err
		}
	}
}

// Reset rewinds the cursor to the start, the same state a brand-new call to
// Engine.Stream would produce.
func (s *Stream) Reset() {
	s.cursor = 0
	s.buf = nil
	s.bufAt = 0
}

func (s *Stream) fill() error {
	end := s.cursor + uint32(s.opts.ChunkSize)
	if end > s.engine.header.RecordCount {
		end = s.engine.header.RecordCount
	}
	rl := uint32(s.engine.header.RecordLength)
	block := make([]byte, (end-s.cursor)*rl)
	if err := xbformat.PositionedRead(s.engine.file, s.engine.recordOffset(s.cursor), block); err != nil {
		return err
	}
	chunk := make([]*Record, 0, end-s.cursor)
	for i := s.cursor; i < end; i++ {
		off := (i - s.cursor) * rl
		raw := block[off : off+rl : off+rl]
		if !s.opts.IncludeDeleted && raw[0] == xbformat.DeletionDeleted {
			continue
		}
		rec, err := s.engine.decodeRecord(i, raw)
		if err != nil {
			return err
		}
		chunk = append(chunk, rec)
	}
	s.cursor = end
	s.buf = chunk
	s.bufAt = 0
	return nil
}
