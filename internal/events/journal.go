package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxJournalSize is the size at which the journal is rotated.
	DefaultMaxJournalSize = 16 * 1024 * 1024
	JournalExtension      = ".jsonl"
	// ArchiveDir holds rotated journals, next to the live one.
	ArchiveDir = "archive"
)

// JournalEntry is one line of the event journal.
type JournalEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Event     EventType       `json:"event"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Checksum  string          `json:"checksum,omitempty"`
}

// Journal appends bus events to a JSONL file, rotating it into ArchiveDir
// once it grows past its size limit.
type Journal struct {
	mu        sync.Mutex
	file      *os.File
	size      int64
	maxSize   int64
	path      string
	checksum  bool
	rotations int
	logger    *zap.Logger
}

// OpenJournal opens or creates the journal at path.
func OpenJournal(path string, maxSize int64, logger *zap.Logger) (*Journal, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxJournalSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	j := &Journal{path: path, maxSize: maxSize, logger: logger}
	if err := j.open(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Journal) open() error {
	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat journal: %w", err)
	}
	j.file = file
	j.size = stat.Size()
	return nil
}

// EnableChecksum adds an integrity checksum to entries written afterwards.
func (j *Journal) EnableChecksum(enable bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.checksum = enable
}

// Record appends e.
func (j *Journal) Record(e Event) error {
	entry := JournalEntry{Timestamp: e.Timestamp, Event: e.Type}
	if e.Payload != nil {
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", e.Type, err)
		}
		entry.Payload = raw
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return os.ErrClosed
	}
	if j.checksum {
		entry.Checksum = checksum(entry)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	data = append(data, '\n')

	if j.size > 0 && j.size+int64(len(data)) > j.maxSize {
		if err := j.rotate(); err != nil {
			return fmt.Errorf("rotate journal: %w", err)
		}
	}
	n, err := j.file.Write(data)
	if err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	j.size += int64(n)
	return nil
}

// Attach records every event of the given types published on bus. The
// returned function detaches the journal.
func (j *Journal) Attach(bus *Bus, types ...EventType) func() {
	unsubs := make([]func(), 0, len(types))
	for _, t := range types {
		unsubs = append(unsubs, bus.Subscribe(t, func(e Event) {
			if err := j.Record(e); err != nil {
				j.logger.Warn("journal write failed", zap.String("event", string(e.Type)), zap.Error(err))
			}
		}))
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

func (j *Journal) rotate() error {
	if err := j.file.Close(); err != nil {
		return fmt.Errorf("close journal: %w", err)
	}
	archive := filepath.Join(filepath.Dir(j.path), ArchiveDir)
	if err := os.MkdirAll(archive, 0o755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	j.rotations++
	base := strings.TrimSuffix(filepath.Base(j.path), JournalExtension)
	name := fmt.Sprintf("%s.%s.%d%s", base, time.Now().Format("20060102_150405"), j.rotations, JournalExtension)
	if err := os.Rename(j.path, filepath.Join(archive, name)); err != nil {
		return fmt.Errorf("archive journal: %w", err)
	}
	return j.open()
}

func checksum(entry JournalEntry) string {
	entry.Checksum = ""
	data, err := json.Marshal(entry)
	if err != nil {
		return ""
	}
	h := fnv.New64a()
	h.Write(data)
	return fmt.Sprintf("%016x", h.Sum64())
}

// VerifyJournal counts the entries in a journal file and how many of them pass
// their checksum. Entries without a checksum count as valid; malformed lines
// end the scan.
func VerifyJournal(path string) (total, valid int, err error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	dec := json.NewDecoder(file)
	for {
		var entry JournalEntry
		if err := dec.Decode(&entry); err != nil {
			if errors.Is(err, io.EOF) {
				return total, valid, nil
			}
			return total, valid, fmt.Errorf("decode journal entry %d: %w", total+1, err)
		}
		total++
		if entry.Checksum == "" || entry.Checksum == checksum(entry) {
			valid++
		}
	}
}

func (j *Journal) Path() string {
	return j.path
}

// Size returns the live file's size in bytes.
func (j *Journal) Size() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.size
}

// Close flushes and closes the journal. Later writes fail with os.ErrClosed.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Sync()
	if cerr := j.file.Close(); err == nil {
		err = cerr
	}
	j.file = nil
	return err
}
