// Package xbmemo implements the memo block store: block-allocated
// variable-length text storage in the DBT layout, with 0x1A-0x1A
// termination-marker framing, free-block reuse, and compaction. Unlike
// FPT memo files there is no length prefix; payload extent is found by
// scanning for the terminator.
package xbmemo

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/mkfoss/xbase/internal/xbformat"
)

// Format distinguishes the two historical memo conventions this store
// recognizes: III (decimal-ASCII references in the companion record file)
// and IV (4-byte LE references). Both write the same block-0 header layout;
// the format byte in it is the only difference.
type Format int

const (
	FormatIII Format = iota
	FormatIV
)

const (
	// Block 0 is reserved for the header; block k begins at byte offset
	// k*BlockSize, so the header occupies exactly one block.
	minBlockSize  = 64
	headerPayload = 8 // next-free(4) + format(1) + reserved(1) + blocksize(2)
	terminatorLen = 2
)

var terminator = []byte{0x1A, 0x1A}

// Store is a single-owner handle on an open DBT-layout memo file.
type Store struct {
	path      string
	file      *os.File
	blockSize uint16
	format    Format
	nextFree  uint32
	readOnly  bool
	free      *freeList
}

// Open opens an existing memo file, parsing its header.
func Open(path string) (*Store, error) {
	const op = "xbmemo.Open"
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xbformat.Wrap(xbformat.KindNotFound, op, path, err)
		}
		return nil, xbformat.Wrap(xbformat.KindIO, op, path, err)
	}

	hbuf := make([]byte, headerPayload)
	if err := xbformat.PositionedRead(f, 0, hbuf); err != nil {
		f.Close()
		return nil, err
	}
	nextFree := binary.LittleEndian.Uint32(hbuf[0:4])
	format := Format(hbuf[4])
	blockSize := binary.LittleEndian.Uint16(hbuf[6:8])
	if blockSize == 0 {
		blockSize = 512
	}
	if nextFree < 1 {
		f.Close()
		return nil, xbformat.New(xbformat.KindInvalidHeader, op, "memo header next-free-block index must be >= 1")
	}

	s := &Store{path: path, file: f, blockSize: blockSize, format: format, nextFree: nextFree, free: newFreeList()}
	if err := s.rebuildFreeListFromScan(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// Create makes a new memo file with the given block size and format.
func Create(path string, blockSize uint16, format Format) (*Store, error) {
	const op = "xbmemo.Create"
	if blockSize < minBlockSize {
		return nil, xbformat.New(xbformat.KindInvalidHeader, op, fmt.Sprintf("block size %d below minimum %d", blockSize, minBlockSize))
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, xbformat.Wrap(xbformat.KindIO, op, path, err)
	}
	s := &Store{path: path, file: f, blockSize: blockSize, format: format, nextFree: 1, free: newFreeList()}
	if err := s.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) writeHeader() error {
	buf := make([]byte, s.blockSize)
	binary.LittleEndian.PutUint32(buf[0:4], s.nextFree)
	buf[4] = byte(s.format)
	binary.LittleEndian.PutUint16(buf[6:8], s.blockSize)
	return xbformat.PositionedWrite(s.file, 0, buf)
}

// rebuildFreeListFromScan walks every allocated run from block 1 to
// nextFree-1 on open, registering each run it can parse (terminator found)
// as used so AnalyzeFragmentation/Compact work after a reopen.
func (s *Store) rebuildFreeListFromScan() error {
	buf := make([]byte, s.blockSize)
	block := uint32(1)
	for block < s.nextFree {
		if err := xbformat.PositionedRead(s.file, s.blockOffset(block), buf); err != nil {
			break
		}
		zero := true
		for _, b := range buf {
			if b != 0 {
				zero = false
				break
			}
		}
		if zero {
			// Zero-filled by Delete: leave the block free.
			block++
			continue
		}
		payload, blocks, err := s.scanRun(block)
		if err != nil {
			// Orphaned/corrupt run: treat remaining space as free and stop.
			break
		}
		_ = payload
		s.free.markUsed(block, blocks)
		block += uint32(blocks)
	}
	return nil
}

// Reload re-reads the header and rebuilds the in-memory free list from the
// (possibly just-restored) on-disk bytes. Exported so a coordinator
// binding this store can resynchronize it after restoring a cross-file
// transaction's shadow backup.
func (s *Store) Reload() error {
	hbuf := make([]byte, headerPayload)
	if err := xbformat.PositionedRead(s.file, 0, hbuf); err != nil {
		return err
	}
	s.nextFree = binary.LittleEndian.Uint32(hbuf[0:4])
	s.format = Format(hbuf[4])
	if bs := binary.LittleEndian.Uint16(hbuf[6:8]); bs != 0 {
		s.blockSize = bs
	}
	s.free = newFreeList()
	return s.rebuildFreeListFromScan()
}

// Close releases the file handle.
func (s *Store) Close() error {
	const op = "xbmemo.Close"
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return xbformat.Wrap(xbformat.KindIO, op, s.path, err)
	}
	if err := s.file.Close(); err != nil {
		return xbformat.Wrap(xbformat.KindIO, op, s.path, err)
	}
	return nil
}

// Path returns the file path this store was opened/created from.
func (s *Store) Path() string { return s.path }

func (s *Store) blockOffset(block uint32) int64 { return int64(block) * int64(s.blockSize) }

func (s *Store) allocatedBlockCount() uint32 {
	fi, err := s.file.Stat()
	if err != nil {
		return s.nextFree - 1
	}
	total := uint32(fi.Size() / int64(s.blockSize))
	if total == 0 {
		return 0
	}
	return total - 1
}

// scanRun reads the payload starting at block, scanning forward across
// contiguous blocks until the 0x1A 0x1A terminator is found, and returns
// the payload text plus the number of blocks it spans.
func (s *Store) scanRun(block uint32) (string, int, error) {
	const op = "xbmemo.Read"
	total := s.allocatedBlockCount()
	if block < 1 || block > total {
		return "", 0, xbformat.New(xbformat.KindInvalidMemoReference, op, fmt.Sprintf("block %d out of range (1..%d)", block, total))
	}

	var data []byte
	cur := block
	for {
		buf := make([]byte, s.blockSize)
		if err := xbformat.PositionedRead(s.file, s.blockOffset(cur), buf); err != nil {
			return "", 0, err
		}
		data = append(data, buf...)
		if idx := indexTerminator(data); idx >= 0 {
			blocks := int(cur-block) + 1
			return string(data[:idx]), blocks, nil
		}
		cur++
		if cur > total {
			return "", 0, xbformat.New(xbformat.KindInvalidMemoReference, op, fmt.Sprintf("block %d: no terminator found before end of file", block))
		}
	}
}

func indexTerminator(data []byte) int {
	for i := 0; i+1 < len(data); i++ {
		if data[i] == terminator[0] && data[i+1] == terminator[1] {
			return i
		}
	}
	return -1
}

// Read returns the payload string starting at blockIndex.
func (s *Store) Read(blockIndex uint32) (string, error) {
	const op = "xbmemo.Read"
	if blockIndex == 0 {
		return "", xbformat.New(xbformat.KindInvalidMemoReference, op, "block index 0 is the empty sentinel")
	}
	payload, _, err := s.scanRun(blockIndex)
	return payload, err
}

func blocksNeeded(payloadLen int, blockSize uint16) int {
	n := (payloadLen + terminatorLen + int(blockSize) - 1) / int(blockSize)
	if n < 1 {
		n = 1
	}
	return n
}

func (s *Store) checkWritable(op string) error {
	if s.readOnly {
		return xbformat.New(xbformat.KindNotWritable, op, s.path)
	}
	return nil
}

// Write allocates ceil((len(payload)+2)/block_size) contiguous blocks at
// the next-free cursor, writes payload+0x1A0x1A, and advances the cursor.
func (s *Store) Write(payload string) (uint32, error) {
	const op = "xbmemo.Write"
	if err := s.checkWritable(op); err != nil {
		return 0, err
	}
	blocks := blocksNeeded(len(payload), s.blockSize)
	start := s.nextFree
	if err := s.writeRun(start, blocks, payload); err != nil {
		return 0, err
	}
	s.free.markUsed(start, blocks)
	s.nextFree = start + uint32(blocks)
	if err := s.writeHeader(); err != nil {
		return 0, err
	}
	return start, nil
}

func (s *Store) writeRun(start uint32, blocks int, payload string) error {
	buf := make([]byte, blocks*int(s.blockSize))
	copy(buf, payload)
	copy(buf[len(payload):], terminator)
	return xbformat.PositionedWrite(s.file, s.blockOffset(start), buf)
}

// Update rewrites the run at existingBlockIndex in place if newPayload's
// required block count fits within the run already allocated there;
// otherwise it frees the old run and allocates a fresh one, so the
// returned block index may differ from the one passed in.
func (s *Store) Update(existingBlockIndex uint32, newPayload string) (uint32, error) {
	const op = "xbmemo.Update"
	if err := s.checkWritable(op); err != nil {
		return 0, err
	}
	if existingBlockIndex == 0 {
		return s.Write(newPayload)
	}

	oldBlocks, ok := s.free.runLength(existingBlockIndex)
	if !ok {
		_, scanned, err := s.scanRun(existingBlockIndex)
		if err != nil {
			return 0, err
		}
		oldBlocks = scanned
	}

	needed := blocksNeeded(len(newPayload), s.blockSize)
	if needed <= oldBlocks {
		if err := s.writeRun(existingBlockIndex, oldBlocks, newPayload); err != nil {
			return 0, err
		}
		s.free.markUsed(existingBlockIndex, oldBlocks)
		return existingBlockIndex, nil
	}

	if err := s.Delete(existingBlockIndex); err != nil {
		return 0, err
	}
	return s.Write(newPayload)
}

// Delete marks the run at blockIndex free. The freed space is zero-filled
// immediately and left orphaned for Compact to reclaim.
func (s *Store) Delete(blockIndex uint32) error {
	const op = "xbmemo.Delete"
	if err := s.checkWritable(op); err != nil {
		return err
	}
	if blockIndex == 0 {
		return nil
	}
	blocks, ok := s.free.runLength(blockIndex)
	if !ok {
		_, scanned, err := s.scanRun(blockIndex)
		if err != nil {
			return err
		}
		blocks = scanned
	}
	zero := make([]byte, blocks*int(s.blockSize))
	if err := xbformat.PositionedWrite(s.file, s.blockOffset(blockIndex), zero); err != nil {
		return err
	}
	s.free.markFree(blockIndex)
	return nil
}

// Fragmentation reports the memo file's block usage.
type Fragmentation struct {
	TotalBlocks        uint32
	UsedBlocks         uint32
	FreeBlocks         uint32
	FragmentationRatio float64
}

// AnalyzeFragmentation reports total/used/free block counts and the
// fraction of allocated space that is free (orphaned by Delete but not yet
// reclaimed by Compact).
func (s *Store) AnalyzeFragmentation() (Fragmentation, error) {
	total := s.allocatedBlockCount()
	used := s.free.usedCount()
	free := uint32(0)
	if total > used {
		free = total - used
	}
	ratio := 0.0
	if total > 0 {
		ratio = float64(free) / float64(total)
	}
	return Fragmentation{TotalBlocks: total, UsedBlocks: used, FreeBlocks: free, FragmentationRatio: ratio}, nil
}

// Compact rewrites every referenced (non-orphaned) run to a new file in
// ascending block order, eliminating gaps left by Delete. It returns the
// new store and a mapping from each run's old starting block index to its
// new one; rewriting record references that point at those blocks is the
// coordinator's responsibility, not this component's.
func (s *Store) Compact(outputPath string) (*Store, map[uint32]uint32, error) {
	out, err := Create(outputPath, s.blockSize, s.format)
	if err != nil {
		return nil, nil, err
	}
	mapping := make(map[uint32]uint32)
	for _, start := range s.free.activeStarts() {
		payload, _, err := s.scanRun(start)
		if err != nil {
			out.Close()
			return nil, nil, err
		}
		newStart, err := out.Write(payload)
		if err != nil {
			out.Close()
			return nil, nil, err
		}
		mapping[start] = newStart
	}
	return out, mapping, nil
}
