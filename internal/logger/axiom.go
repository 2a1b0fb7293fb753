package logger

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
)

const (
	axiomBuffer   = 1000
	axiomMaxBatch = 200
	axiomService  = "pdfnotes"
)

// axiomSink is an io.Writer that forwards zerolog JSON lines to an Axiom
// dataset in batches. Debug lines are not forwarded. When the buffer is
// full new events are dropped and counted.
type axiomSink struct {
	ingest  func(ctx context.Context, events []axiom.Event) error
	ch      chan axiom.Event
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Int64
}

func newAxiomSink(token, orgID, dataset string, flushEvery time.Duration) (*axiomSink, error) {
	if dataset == "" {
		dataset = "dev_pdfnotes"
	}
	opts := []axiom.Option{axiom.SetToken(token)}
	if orgID != "" {
		opts = append(opts, axiom.SetOrganizationID(orgID))
	}
	c, err := axiom.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return startAxiomSink(func(ctx context.Context, events []axiom.Event) error {
		_, err := c.IngestEvents(ctx, dataset, events)
		return err
	}, flushEvery), nil
}

func startAxiomSink(ingestFn func(context.Context, []axiom.Event) error, flushEvery time.Duration) *axiomSink {
	if flushEvery <= 0 {
		flushEvery = 10 * time.Second
	}
	s := &axiomSink{
		ingest: ingestFn,
		ch:     make(chan axiom.Event, axiomBuffer),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop(flushEvery)
	return s
}

func (s *axiomSink) Write(p []byte) (int, error) {
	var ev map[string]interface{}
	if err := json.Unmarshal(p, &ev); err != nil {
		ev = map[string]interface{}{"message": string(p), "level": "info"}
	}
	if lvl, _ := ev["level"].(string); lvl == "debug" || lvl == "trace" {
		return len(p), nil
	}
	ev["service"] = axiomService
	if _, ok := ev[ingest.TimestampField]; !ok {
		ev[ingest.TimestampField] = time.Now()
	}
	select {
	case s.ch <- axiom.Event(ev):
	default:
		s.dropped.Add(1)
	}
	return len(p), nil
}

func (s *axiomSink) loop(flushEvery time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	batch := make([]axiom.Event, 0, axiomMaxBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		_ = s.ingest(ctx, batch)
		cancel()
		batch = make([]axiom.Event, 0, axiomMaxBatch)
	}
	add := func(ev axiom.Event) {
		batch = append(batch, ev)
		if len(batch) >= axiomMaxBatch {
			flush()
		}
	}

	for {
		select {
		case ev := <-s.ch:
			add(ev)
		case <-ticker.C:
			flush()
		case <-s.done:
			for {
				select {
				case ev := <-s.ch:
					add(ev)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close sends what is buffered and stops the sink. Writes after Close are
// dropped.
func (s *axiomSink) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// Dropped reports how many events were lost to a full buffer.
func (s *axiomSink) Dropped() int64 { return s.dropped.Load() }
