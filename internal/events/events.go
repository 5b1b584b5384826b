// Package events publishes synthesis progress to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/ppiankov/triggerscope/internal/model"
	"github.com/ppiankov/triggerscope/internal/pipeline"
	"go.uber.org/zap"
)

// Subject suffixes under the configured prefix
const (
	SubjectBatchCompleted = "batch.completed"
	SubjectCompleted      = "completed"
)

// maxTitles bounds the trigger titles carried in a batch event
const maxTitles = 5

// Publisher sends one JSON-encodable payload to a subject
type Publisher interface {
	Publish(subject string, data any) error
}

// BatchEvent is emitted as each batch settles
type BatchEvent struct {
	RunID      string                 `json:"run_id"`
	Batch      int                    `json:"batch"` // 1-based
	Total      int                    `json:"total"`
	Triggers   int                    `json:"triggers"`
	Categories map[model.Category]int `json:"categories"`
	Titles     []string               `json:"titles,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// CompletedEvent is emitted once per run
type CompletedEvent struct {
	RunID           string                 `json:"run_id"`
	Model           string                 `json:"model"`
	Triggers        int                    `json:"triggers"`
	RawTriggerCount int                    `json:"raw_trigger_count"`
	FilteredCount   int                    `json:"filtered_count"`
	FailedBatches   int                    `json:"failed_batches"`
	DurationMS      int64                  `json:"duration_ms"`
	CategoryCounts  map[model.Category]int `json:"category_counts"`
	Timestamp       time.Time              `json:"timestamp"`
}

// Notifier turns pipeline callbacks into events. Publish failures are
// logged and never reach the pipeline.
type Notifier struct {
	pub     Publisher
	prefix  string
	runID   string
	logger  *zap.Logger
	nowFunc func() time.Time
}

// NewNotifier creates a notifier for one run
func NewNotifier(pub Publisher, prefix, runID string, logger *zap.Logger) *Notifier {
	if prefix == "" {
		prefix = model.DefaultConfig().Events.SubjectPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{pub: pub, prefix: prefix, runID: runID, logger: logger, nowFunc: time.Now}
}

// Subject joins the prefix and suffix
func (n *Notifier) Subject(suffix string) string {
	return n.prefix + "." + suffix
}

// BatchCompleted matches pipeline.BatchCallback
func (n *Notifier) BatchCompleted(triggers []model.ConsolidatedTrigger, batchIndex, totalBatches int) {
	ev := BatchEvent{
		RunID:      n.runID,
		Batch:      batchIndex + 1,
		Total:      totalBatches,
		Triggers:   len(triggers),
		Categories: make(map[model.Category]int),
		Timestamp:  n.nowFunc().UTC(),
	}
	for i, t := range triggers {
		ev.Categories[t.Category]++
		if i < maxTitles {
			ev.Titles = append(ev.Titles, t.Title)
		}
	}
	n.publish(n.Subject(SubjectBatchCompleted), ev)
}

// Completed publishes the run summary
func (n *Notifier) Completed(out *pipeline.Output) {
	if out == nil {
		return
	}
	ev := CompletedEvent{
		RunID:           out.RunID,
		Model:           out.Model,
		Triggers:        len(out.Triggers),
		RawTriggerCount: out.RawTriggerCount,
		FilteredCount:   out.FilteredCount,
		DurationMS:      out.SynthesisTime.Milliseconds(),
		CategoryCounts:  out.CategoryCounts,
		Timestamp:       n.nowFunc().UTC(),
	}
	for _, b := range out.Batches {
		if b.Status != pipeline.BatchOK {
			ev.FailedBatches++
		}
	}
	n.publish(n.Subject(SubjectCompleted), ev)
}

func (n *Notifier) publish(subject string, data any) {
	if n.pub == nil {
		return
	}
	if err := n.pub.Publish(subject, data); err != nil {
		n.logger.Warn("event publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

// NATSClient publishes over a NATS connection
type NATSClient struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// Connect dials url with reconnect handling
func Connect(ctx context.Context, url string, logger *zap.Logger) (*NATSClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []nats.Option{
		nats.Name("triggerscope"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSClient{conn: nc, logger: logger}, nil
}

// Publish marshals data to JSON and publishes it
func (c *NATSClient) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

// Close flushes pending messages and closes the connection
func (c *NATSClient) Close() {
	if err := c.conn.Flush(); err != nil {
		c.logger.Debug("nats flush failed", zap.Error(err))
	}
	c.conn.Close()
}
