// Package wal implements the append-only write-ahead log the pipeline uses
// to make accepted transactions durable before they are folded into a
// snapshot. Each record is one line: a JSON payload, a tab, and the hex
// CRC32 checksum of that payload, so a reader can detect and skip a torn or
// corrupt record without losing the rest of the stream.
package wal

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

const writerBufferSize = 64 * 1024

// Type discriminates the two WAL record variants.
type Type string

const (
	TypeTransaction Type = "tx"
	TypeCheckpoint  Type = "checkpoint"
)

// Record is one durable WAL entry. UserID/Timestamp/USDValue are populated
// for TypeTransaction; SnapshotID is populated for TypeCheckpoint.
type Record struct {
	Type       Type            `json:"type"`
	UserID     string          `json:"user_id,omitempty"`
	Timestamp  time.Time       `json:"timestamp,omitempty"`
	USDValue   decimal.Decimal `json:"usd_value,omitempty"`
	SnapshotID string          `json:"snapshot_id,omitempty"`
}

// Transaction builds a durable record for an admitted transaction.
func Transaction(userID string, timestamp time.Time, usdValue decimal.Decimal) Record {
	return Record{Type: TypeTransaction, UserID: userID, Timestamp: timestamp, USDValue: usdValue}
}

// Checkpoint builds a marker record noting the position at which the named
// snapshot was taken. Recovery uses it to know where WAL replay should
// start counting again.
func Checkpoint(snapshotID string) Record {
	return Record{Type: TypeCheckpoint, SnapshotID: snapshotID}
}

// Writer appends records to a single log file. Safe for concurrent use; a
// mutex serializes writes so interleaved goroutines never tear a line.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	writes atomic.Uint64
	errors atomic.Uint64
}

// Open opens (creating if necessary) the log file at path for appending.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}
	return &Writer{file: f, buf: bufio.NewWriterSize(f, writerBufferSize)}, nil
}

// Append encodes rec as JSON, computes its checksum, and buffers the line.
// A failure here is intentionally non-fatal to the caller's decision
// pipeline: the in-memory actor state is already updated, and losing one
// WAL append only narrows the recovery window, it does not corrupt a
// decision already returned to the client.
func (w *Writer) Append(rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		w.errors.Add(1)
		return fmt.Errorf("wal: marshal record: %w", err)
	}
	sum := crc32.ChecksumIEEE(payload)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.buf.Write(payload); err != nil {
		w.errors.Add(1)
		return fmt.Errorf("wal: write record: %w", err)
	}
	if _, err := fmt.Fprintf(w.buf, "\t%08x\n", sum); err != nil {
		w.errors.Add(1)
		return fmt.Errorf("wal: write checksum: %w", err)
	}
	w.writes.Add(1)
	return nil
}

// Sync flushes buffered data and fsyncs the underlying file.
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("wal: flush: %w", err)
	}
	return w.file.Sync()
}

// Close flushes and closes the log file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("wal: flush on close: %w", err)
	}
	return w.file.Close()
}

// Writes reports the number of records successfully appended.
func (w *Writer) Writes() uint64 { return w.writes.Load() }

// Errors reports the number of append failures observed.
func (w *Writer) Errors() uint64 { return w.errors.Load() }

// ReadResult carries the decoded records plus a count of lines skipped for
// being torn, malformed, or checksum-corrupt. Blank lines are skipped without
// being counted.
type ReadResult struct {
	Records []Record
	Skipped int
}

// ReadAll replays every well-formed record in the log at path, in order.
// A line that fails the tab split, hex decode, checksum, or JSON decode is
// counted and skipped; it never aborts the rest of the stream, so a single
// torn or corrupted record never costs more than itself.
func ReadAll(path string) (ReadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ReadResult{}, nil
		}
		return ReadResult{}, fmt.Errorf("wal: read %s: %w", path, err)
	}

	var result ReadResult
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		rec, ok := decodeLine(line)
		if !ok {
			result.Skipped++
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

func decodeLine(line []byte) (Record, bool) {
	idx := bytes.LastIndexByte(line, '\t')
	if idx < 0 {
		return Record{}, false
	}
	payload, checksumHex := line[:idx], line[idx+1:]
	want, err := hex.DecodeString(string(checksumHex))
	if err != nil || len(want) != 4 {
		return Record{}, false
	}
	got := crc32.ChecksumIEEE(payload)
	if got != uint32(want[0])<<24|uint32(want[1])<<16|uint32(want[2])<<8|uint32(want[3]) {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, false
	}
	return rec, true
}
