package forge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/klauspost/compress/zstd"
)

// FactRecord is one line of the fact log.
type FactRecord struct {
	UserID    string            `json:"user_id"`
	Name      string            `json:"name"`
	Id        string            `json:"id"`
	Timestamp int64             `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Value     string            `json:"value,omitempty"`
}

// FactLogPublisher appends every event as a JSON line to zstd-compressed files, one file
// per UTC hour: <dir>/<prefix>-YYYY-MM-DD-HH.jsonl.zst.
type FactLogPublisher struct {
	dir    string
	prefix string
	now    func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// NewFactLogPublisher creates a fact log writing under dir.
func NewFactLogPublisher(dir, prefix string) *FactLogPublisher {
	return &FactLogPublisher{
		dir:    dir,
		prefix: prefix,
		now:    time.Now,
	}
}

func (p *FactLogPublisher) Send(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, events []*PublisherEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ev := range events {
		if err := p.writeLocked(FactRecord{
			UserID:    userID,
			Name:      ev.Name,
			Id:        ev.Id,
			Timestamp: ev.Timestamp,
			Metadata:  ev.Metadata,
			Value:     ev.Value,
		}); err != nil {
			logger.Warn("Failed to write %s fact %s: %v", ev.Name, ev.Id, err)
		}
	}
}

// Close flushes and closes the current file.
func (p *FactLogPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *FactLogPublisher) writeLocked(rec FactRecord) error {
	hour := p.now().UTC().Format("2006-01-02-15")
	if hour != p.curHour || p.w == nil {
		if err := p.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := p.w.Write(b); err != nil {
		return err
	}
	if err := p.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := p.w.Flush(); err != nil {
		return err
	}
	return p.enc.Flush()
}

func (p *FactLogPublisher) rotateLocked(hour string) error {
	if err := p.closeLocked(); err != nil {
		return err
	}
	path := p.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	p.f = f
	p.enc = enc
	p.w = bufio.NewWriterSize(enc, 64*1024)
	p.curHour = hour
	return nil
}

func (p *FactLogPublisher) closeLocked() error {
	var err error
	if p.w != nil {
		err = p.w.Flush()
		p.w = nil
	}
	if p.enc != nil {
		if closeErr := p.enc.Close(); err == nil {
			err = closeErr
		}
		p.enc = nil
	}
	if p.f != nil {
		if closeErr := p.f.Close(); err == nil {
			err = closeErr
		}
		p.f = nil
	}
	return err
}

func (p *FactLogPublisher) pathForHour(hour string) string {
	return filepath.Join(p.dir, fmt.Sprintf("%s-%s.jsonl.zst", p.prefix, hour))
}

// ReadFactLog decodes every record of one fact log file.
func ReadFactLog(path string) ([]FactRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []FactRecord
	scanner := bufio.NewScanner(dec)
	for scanner.Scan() {
		var rec FactRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, scanner.Err()
}
