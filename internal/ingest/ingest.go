// Package ingest loads scraped samples from JSON or JSONL files and URLs.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/triggerscope/internal/model"
	"github.com/ppiankov/triggerscope/internal/registry"
	"github.com/ppiankov/triggerscope/internal/util"
	"go.uber.org/zap"
)

// maxLineBytes bounds one JSONL record
const maxLineBytes = 8 << 20

// Report counts what happened while loading
type Report struct {
	Records      int `json:"records"`
	Loaded       int `json:"loaded"`
	Empty        int `json:"empty"`
	Duplicates   int `json:"duplicates"`
	Malformed    int `json:"malformed"`
	HTMLStripped int `json:"html_stripped"`
}

// record is the on-disk shape. Scrapers disagree on the content key.
type record struct {
	model.RawSample
	Text string `json:"text"`
	Body string `json:"body"`
}

func (r record) sample() model.RawSample {
	s := r.RawSample
	if s.Content == "" {
		s.Content = r.Text
	}
	if s.Content == "" {
		s.Content = r.Body
	}
	return s
}

// Loader normalizes raw records into samples
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a new Loader
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// Read decodes a JSON array or JSONL stream. A malformed array fails the
// whole read; malformed JSONL lines are skipped and counted.
func (l *Loader) Read(r io.Reader) ([]model.RawSample, Report, error) {
	br := bufio.NewReader(r)
	first, err := firstByte(br)
	if err == io.EOF {
		return nil, Report{}, nil
	}
	if err != nil {
		return nil, Report{}, fmt.Errorf("read samples: %w", err)
	}

	var records []record
	var report Report

	if first == '[' {
		if err := json.NewDecoder(br).Decode(&records); err != nil {
			return nil, Report{}, fmt.Errorf("decode sample array: %w", err)
		}
	} else {
		scanner := bufio.NewScanner(br)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		line := 0
		for scanner.Scan() {
			line++
			raw := bytes.TrimSpace(scanner.Bytes())
			if len(raw) == 0 {
				continue
			}
			var rec record
			if err := json.Unmarshal(raw, &rec); err != nil {
				report.Malformed++
				l.logger.Warn("skipping malformed sample line", zap.Int("line", line), zap.Error(err))
				continue
			}
			records = append(records, rec)
		}
		if err := scanner.Err(); err != nil {
			return nil, Report{}, fmt.Errorf("read sample lines: %w", err)
		}
	}

	samples := l.normalize(records, &report)
	report.Records += len(records)
	return samples, report, nil
}

// normalize strips markup, drops empty content and collapses samples whose
// normalized content is identical
func (l *Loader) normalize(records []record, report *Report) []model.RawSample {
	seen := make(map[string]bool, len(records))
	out := make([]model.RawSample, 0, len(records))

	for _, rec := range records {
		s := rec.sample()

		if LooksLikeHTML(s.Content) {
			text, err := VisibleText(s.Content)
			if err != nil {
				l.logger.Debug("html strip failed, keeping raw content", zap.String("id", s.ID), zap.Error(err))
			} else {
				s.Content = text
				report.HTMLStripped++
			}
		}
		s.Content = strings.TrimSpace(s.Content)
		s.Platform = strings.ToLower(strings.TrimSpace(s.Platform))

		if util.NormalizeText(s.Content) == "" {
			report.Empty++
			continue
		}

		hash := registry.ContentHash(s.Content)
		if seen[hash] {
			report.Duplicates++
			continue
		}
		seen[hash] = true

		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		out = append(out, s)
	}

	report.Loaded = len(out)
	return out
}

// LoadFile reads samples from path
func (l *Loader) LoadFile(path string) ([]model.RawSample, Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Report{}, fmt.Errorf("open samples: %w", err)
	}
	defer func() { _ = f.Close() }()

	return l.Read(f)
}

// Load reads from a local path or, for http(s) locations, from the network
func (l *Loader) Load(ctx context.Context, location string, fetcher *Fetcher) ([]model.RawSample, Report, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		return l.LoadFile(location)
	}
	if fetcher == nil {
		fetcher = NewFetcher(30*time.Second, "", 0)
	}

	body, err := fetcher.Fetch(ctx, location)
	if err != nil {
		return nil, Report{}, err
	}
	return l.Read(bytes.NewReader(body))
}

func firstByte(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n', 0xEF, 0xBB, 0xBF: // whitespace and UTF-8 BOM
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return 0, err
		}
		return b, nil
	}
}
