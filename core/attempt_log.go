package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/titanops/titan/log"
)

// AttemptJournal appends every bypass attempt to a JSON-lines file, one file
// per day. The learner's memory is bounded and volatile; the journal is the
// durable record for offline analysis.
type AttemptJournal struct {
	logDir string
	mu     sync.Mutex
}

// JournalEntry is one line of the journal.
type JournalEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Domain     string    `json:"domain"`
	Protection string    `json:"protection"`
	Strategy   string    `json:"strategy"`
	Identity   string    `json:"identity"`
	Success    bool      `json:"success"`
	StatusCode int       `json:"status_code"`
	DurationMs int64     `json:"duration_ms"`
}

// JournalStats summarizes one domain's journal entries.
type JournalStats struct {
	Domain      string         `json:"domain"`
	Attempts    int            `json:"attempts"`
	Successes   int            `json:"successes"`
	Protections map[string]int `json:"protections"`
	LastAttempt time.Time      `json:"last_attempt"`
}

func NewAttemptJournal(log_dir string) *AttemptJournal {
	if log_dir == "" {
		log_dir = "./attempts"
	}
	os.MkdirAll(log_dir, 0700)
	return &AttemptJournal{logDir: log_dir}
}

// Append writes one entry. Journal failures are logged and swallowed; the
// engine never fails a bypass over bookkeeping.
func (j *AttemptJournal) Append(entry *JournalEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		log.Error("[journal] marshal failed: %v", err)
		return
	}

	path := j.currentPath(entry.Timestamp)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		log.Error("[journal] open failed: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Error("[journal] write failed: %v", err)
	}
}

func (j *AttemptJournal) currentPath(ts time.Time) string {
	return filepath.Join(j.logDir, fmt.Sprintf("attempts_%s.jsonl", ts.Format("20060102")))
}

// Stats aggregates the named domain's entries across all journal files.
func (j *AttemptJournal) Stats(domain string) (*JournalStats, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	stats := &JournalStats{
		Domain:      domain,
		Protections: make(map[string]int),
	}

	files, err := filepath.Glob(filepath.Join(j.logDir, "attempts_*.jsonl"))
	if err != nil {
		return nil, err
	}
	for _, path := range files {
		if err := j.scanFile(path, domain, stats); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func (j *AttemptJournal) scanFile(path string, domain string, stats *JournalStats) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry JournalEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		if entry.Domain != domain {
			continue
		}
		stats.Attempts++
		if entry.Success {
			stats.Successes++
		}
		stats.Protections[entry.Protection]++
		if entry.Timestamp.After(stats.LastAttempt) {
			stats.LastAttempt = entry.Timestamp
		}
	}
	return nil
}
