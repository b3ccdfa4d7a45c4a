// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bitidx

import (
	"encoding/binary"
	"io"

	"github.com/ozbcdb/bitidx/internal/chunkcache"
	"github.com/ozbcdb/bitidx/internal/ratelimit"
	"github.com/ozbcdb/bitidx/internal/subindex"
	"github.com/ozbcdb/bitidx/internal/vfs"
)

// footerTrailerLen is the size of the fixed-size record written at the very
// end of a file, the same role sstable/table.go's footer trailer plays:
// a small anchor a reader can always find by seeking from EOF, which in
// turn points back at the real (variable-length) footer.
const footerTrailerLen = 8 + 8 + 8 + 8 // footerOffset, footerLen, footerChecksum, magic

type footer struct {
	offsets []uint64 // byte offset of each flushed chunk's prefix, in order
}

func encodeFooter(f footer) []byte {
	buf := make([]byte, 4+len(f.offsets)*8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(f.offsets)))
	for i, off := range f.offsets {
		binary.LittleEndian.PutUint64(buf[4+i*8:], off)
	}
	return buf
}

func decodeFooter(buf []byte) (footer, error) {
	if len(buf) < 4 {
		return footer{}, formatErrorf("footer too short")
	}
	m := binary.LittleEndian.Uint32(buf[0:4])
	if uint64(len(buf)) != 4+uint64(m)*8 {
		return footer{}, formatErrorf("footer length mismatch")
	}
	f := footer{offsets: make([]uint64, m)}
	for i := range f.offsets {
		f.offsets[i] = binary.LittleEndian.Uint64(buf[4+i*8:])
	}
	return f, nil
}

func encodeTrailer(footerOffset, footerLen, footerChecksum uint64) []byte {
	buf := make([]byte, footerTrailerLen)
	binary.LittleEndian.PutUint64(buf[0:8], footerOffset)
	binary.LittleEndian.PutUint64(buf[8:16], footerLen)
	binary.LittleEndian.PutUint64(buf[16:24], footerChecksum)
	copy(buf[24:32], fileMagic[:])
	return buf
}

// storage is the chunked, file-backed (or in-memory) persistence layer
// underneath an Index, grounded on how sstable/table.go couples a single
// vfs.File to a footer-anchored sequence of self-describing blocks.
type storage struct {
	fs       vfs.FS
	path     string
	file     vfs.File
	lock     io.Closer
	limiter  *ratelimit.Limiter
	cache    *chunkcache.Cache
	hdr      header
	offsets  []uint64 // offsets of chunks flushed so far
	writeOff int64    // current end-of-file write offset
}

func createStorage(fs vfs.FS, path string, hdr header, flushBytesPerSecond, chunkCacheBytes int64) (*storage, error) {
	f, err := fs.Create(path)
	if err != nil {
		return nil, storageErrorf(err, "creating %s", path)
	}
	lock, err := fs.Lock(path)
	if err != nil {
		_ = f.Close()
		return nil, storageErrorf(err, "locking %s", path)
	}
	buf := encodeHeader(hdr)
	if _, err := f.Write(buf); err != nil {
		_ = lock.Close()
		_ = f.Close()
		return nil, storageErrorf(err, "writing header to %s", path)
	}
	return &storage{
		fs:       fs,
		path:     path,
		file:     f,
		lock:     lock,
		limiter:  ratelimit.NewLimiter(float64(flushBytesPerSecond), float64(hdr.chunkLen)*2),
		cache:    chunkcache.New(chunkCacheBytes),
		hdr:      hdr,
		writeOff: int64(len(buf)),
	}, nil
}

// openStorage opens an existing file, reading its header and, if present,
// its footer. If the footer/trailer is missing or corrupt and recoverByScan
// is true, it falls back to RecoverByScan; otherwise it returns
// ErrFormatError.
func openStorage(fs vfs.FS, path string, recoverByScan bool, chunkCacheBytes int64) (*storage, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, storageErrorf(err, "opening %s", path)
	}
	lock, err := fs.Lock(path)
	if err != nil {
		_ = f.Close()
		return nil, storageErrorf(err, "locking %s", path)
	}
	s := &storage{fs: fs, path: path, file: f, lock: lock, cache: chunkcache.New(chunkCacheBytes)}

	info, err := f.Stat()
	if err != nil {
		_ = lock.Close()
		_ = f.Close()
		return nil, storageErrorf(err, "stat %s", path)
	}
	size := info.Size()

	hdr, err := decodeHeader(io.NewSectionReader(f, 0, size))
	if err != nil {
		_ = lock.Close()
		_ = f.Close()
		return nil, err
	}
	s.hdr = hdr
	s.limiter = ratelimit.NewLimiter(0, 0)

	if size >= int64(footerTrailerLen) {
		var trailer [footerTrailerLen]byte
		if _, err := f.ReadAt(trailer[:], size-footerTrailerLen); err == nil {
			var magic [8]byte
			copy(magic[:], trailer[24:32])
			if magic == fileMagic {
				footerOffset := binary.LittleEndian.Uint64(trailer[0:8])
				footerLen := binary.LittleEndian.Uint64(trailer[8:16])
				footerChecksum := binary.LittleEndian.Uint64(trailer[16:24])
				payload := make([]byte, footerLen)
				if _, err := f.ReadAt(payload, int64(footerOffset)); err == nil && checksum(payload) == footerChecksum {
					ft, err := decodeFooter(payload)
					if err == nil {
						s.offsets = ft.offsets
						s.writeOff = int64(footerOffset)
						return s, nil
					}
				}
			}
		}
	}

	if !recoverByScan {
		_ = lock.Close()
		_ = f.Close()
		return nil, formatErrorf("%s: missing or corrupt footer", path)
	}
	offsets, endOff, err := recoverByScanChunks(f, int64(hdr.byteLen()), size)
	if err != nil {
		_ = lock.Close()
		_ = f.Close()
		return nil, err
	}
	s.offsets = offsets
	s.writeOff = endOff
	return s, nil
}

// recoverByScanChunks sequentially walks chunks from startOff, validating
// each one's checksum (bodies are not decoded), and stops at the first
// chunk whose prefix, body, or checksum cannot be read in full or whose
// checksum does not match (a torn write from a crash mid-flush). It never
// returns an error: the chunks before the stopping point are the result.
func recoverByScanChunks(f vfs.File, startOff, size int64) ([]uint64, int64, error) {
	var offsets []uint64
	off := startOff
	for off+int64(chunkPrefixLen) <= size {
		var prefixBuf [chunkPrefixLen]byte
		if _, err := f.ReadAt(prefixBuf[:], off); err != nil {
			break
		}
		p := decodeChunkPrefix(prefixBuf[:])
		bodyStart := off + int64(chunkPrefixLen)
		bodyEnd := bodyStart + int64(p.bodyLen)
		checksumEnd := bodyEnd + checksumLen
		if checksumEnd > size {
			break
		}
		body := make([]byte, p.bodyLen)
		if _, err := f.ReadAt(body, bodyStart); err != nil {
			break
		}
		var sumBuf [checksumLen]byte
		if _, err := f.ReadAt(sumBuf[:], bodyEnd); err != nil {
			break
		}
		if binary.LittleEndian.Uint64(sumBuf[:]) != checksum(body) {
			break
		}
		offsets = append(offsets, uint64(off))
		off = checksumEnd
	}
	return offsets, off, nil
}

// appendChunk writes one flushed chunk (groups serialized and compressed
// per s.hdr.compression) at the current end of file and records its
// offset for the eventual footer.
func (s *storage) appendChunk(groups []*subindex.Array, logicalLen uint32) error {
	body, err := encodeChunkBody(groups, s.hdr.compression)
	if err != nil {
		return formatErrorf("encoding chunk body: %v", err)
	}
	prefix := encodeChunkPrefix(chunkPrefix{bodyLen: uint64(len(body)), logicalLen: logicalLen})
	sum := checksum(body)
	var sumBuf [checksumLen]byte
	binary.LittleEndian.PutUint64(sumBuf[:], sum)

	s.limiter.WaitN(len(prefix) + len(body) + len(sumBuf))

	off := s.writeOff
	if _, err := s.file.Seek(off, io.SeekStart); err != nil {
		return storageErrorf(err, "seeking to chunk offset")
	}
	if _, err := s.file.Write(prefix); err != nil {
		return storageErrorf(err, "writing chunk prefix")
	}
	if len(body) > 0 {
		if _, err := s.file.Write(body); err != nil {
			return storageErrorf(err, "writing chunk body")
		}
	}
	if _, err := s.file.Write(sumBuf[:]); err != nil {
		return storageErrorf(err, "writing chunk checksum")
	}
	s.writeOff = off + int64(len(prefix)+len(body)+len(sumBuf))
	s.offsets = append(s.offsets, uint64(off))
	return nil
}

// readChunk loads and decodes the i'th flushed chunk, consulting the
// decoded-chunk cache first.
func (s *storage) readChunk(i int) ([]*subindex.Array, uint32, error) {
	if i < 0 || i >= len(s.offsets) {
		return nil, 0, invalidRangef("chunk index %d out of range [0, %d)", i, len(s.offsets))
	}
	if groups, ok := s.cache.Get(i); ok {
		logicalLen, err := s.chunkLogicalLen(i)
		if err != nil {
			return nil, 0, err
		}
		return groups, logicalLen, nil
	}
	off := int64(s.offsets[i])
	var prefixBuf [chunkPrefixLen]byte
	if _, err := s.file.ReadAt(prefixBuf[:], off); err != nil {
		return nil, 0, storageErrorf(err, "reading chunk %d prefix", i)
	}
	p := decodeChunkPrefix(prefixBuf[:])
	body := make([]byte, p.bodyLen)
	if p.bodyLen > 0 {
		if _, err := s.file.ReadAt(body, off+int64(chunkPrefixLen)); err != nil {
			return nil, 0, storageErrorf(err, "reading chunk %d body", i)
		}
	}
	var sumBuf [checksumLen]byte
	if _, err := s.file.ReadAt(sumBuf[:], off+int64(chunkPrefixLen)+int64(p.bodyLen)); err != nil {
		return nil, 0, storageErrorf(err, "reading chunk %d checksum", i)
	}
	if binary.LittleEndian.Uint64(sumBuf[:]) != checksum(body) {
		return nil, 0, formatErrorf("chunk %d: checksum mismatch", i)
	}
	groups, err := decodeChunkBody(body, s.hdr.compression, s.hdr.groupBits)
	if err != nil {
		return nil, 0, err
	}
	s.cache.Insert(i, groups, int64(len(body)))
	return groups, p.logicalLen, nil
}

// writeFooter appends the footer payload and trailer describing every
// chunk flushed so far, making the file independently openable without a
// scan.
func (s *storage) writeFooter() error {
	payload := encodeFooter(footer{offsets: s.offsets})
	footerOff := s.writeOff
	if _, err := s.file.Seek(footerOff, io.SeekStart); err != nil {
		return storageErrorf(err, "seeking to footer offset")
	}
	if _, err := s.file.Write(payload); err != nil {
		return storageErrorf(err, "writing footer")
	}
	trailer := encodeTrailer(uint64(footerOff), uint64(len(payload)), checksum(payload))
	if _, err := s.file.Write(trailer); err != nil {
		return storageErrorf(err, "writing trailer")
	}
	s.writeOff += int64(len(payload) + len(trailer))
	if err := s.file.Sync(); err != nil {
		return storageErrorf(err, "syncing %s", s.path)
	}
	return nil
}

func (s *storage) numChunks() int { return len(s.offsets) }

// chunkLogicalLen reads just the i'th chunk's prefix to learn its logical
// length without decoding or checksumming its body, used by Open to
// recompute the total pushed-value count cheaply.
func (s *storage) chunkLogicalLen(i int) (uint32, error) {
	if i < 0 || i >= len(s.offsets) {
		return 0, invalidRangef("chunk index %d out of range [0, %d)", i, len(s.offsets))
	}
	var prefixBuf [chunkPrefixLen]byte
	if _, err := s.file.ReadAt(prefixBuf[:], int64(s.offsets[i])); err != nil {
		return 0, storageErrorf(err, "reading chunk %d prefix", i)
	}
	return decodeChunkPrefix(prefixBuf[:]).logicalLen, nil
}

func (s *storage) close() error {
	err := s.file.Close()
	if lerr := s.lock.Close(); err == nil {
		err = lerr
	}
	return err
}
