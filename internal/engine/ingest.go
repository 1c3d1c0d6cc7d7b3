package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/verticald/internal/corpus"
	"github.com/fyrsmithlabs/verticald/internal/events"
	"github.com/fyrsmithlabs/verticald/internal/logging"
	"github.com/fyrsmithlabs/verticald/internal/segmenter"
)

// State is a step in a document's ingest lifecycle.
type State string

// Ingest states. A document moves received → segmented → chunked → indexed,
// or to failed from any step.
const (
	StateReceived  State = "received"
	StateSegmented State = "segmented"
	StateChunked   State = "chunked"
	StateIndexed   State = "indexed"
	StateFailed    State = "failed"
)

var transitions = map[State][]State{
	StateReceived:  {StateSegmented, StateFailed},
	StateSegmented: {StateChunked, StateFailed},
	StateChunked:   {StateIndexed, StateFailed},
}

// CanTransition reports whether from → to is a legal lifecycle step.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IngestOptions qualifies a single ingest call.
type IngestOptions struct {
	// DocumentID scopes entry ids so pages of different documents do not
	// overwrite each other. Empty ids derive entries from the vertical,
	// page number and chunk position alone.
	DocumentID string
}

// VerticalReport is one vertical's ingest outcome.
type VerticalReport struct {
	State      State  `json:"state"`
	Stored     bool   `json:"stored"`
	ChunkCount int    `json:"chunk_count"`
	Error      string `json:"error,omitempty"`
}

// IngestReport describes one ingest run. Verticals fail independently: a
// failed vertical does not undo another vertical's stored chunks.
type IngestReport struct {
	DocumentID string                    `json:"document_id,omitempty"`
	State      State                     `json:"state"`
	Pages      int                       `json:"pages"`
	Verticals  map[string]VerticalReport `json:"verticals"`
	Duration   time.Duration             `json:"duration"`
	Error      string                    `json:"error,omitempty"`

	// Err carries the failing step's error when State is failed.
	Err error `json:"-"`
}

func (r *IngestReport) advance(next State) {
	if !CanTransition(r.State, next) {
		panic(fmt.Sprintf("engine: illegal ingest transition %s -> %s", r.State, next))
	}
	r.State = next
}

func (r *IngestReport) fail(err error) {
	r.advance(StateFailed)
	r.Err = err
	r.Error = err.Error()
}

// Stored returns the total number of chunks written.
func (r *IngestReport) Stored() int {
	n := 0
	for _, v := range r.Verticals {
		if v.Stored {
			n += v.ChunkCount
		}
	}
	return n
}

// Ingest segments text into vertical sections, chunks each section and
// upserts every vertical's chunks into its index. Verticals are indexed in
// parallel.
//
// The returned error is non-nil only when the call itself is invalid or ctx
// is already done; indexing failures are reported in the IngestReport.
// Empty text yields zero chunks.
func (e *Engine) Ingest(ctx context.Context, text string, opts IngestOptions) (report *IngestReport, err error) {
	ctx, span := tracer.Start(ctx, "Engine.Ingest")
	defer span.End()

	if opts.DocumentID != "" {
		if err := corpus.ValidateDocumentID(opts.DocumentID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		ctx = logging.WithDocumentID(ctx, opts.DocumentID)
		span.SetAttributes(attribute.String("document_id", opts.DocumentID))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	report = &IngestReport{
		DocumentID: opts.DocumentID,
		State:      StateReceived,
		Verticals:  make(map[string]VerticalReport),
	}
	defer func() {
		report.Duration = time.Since(start)
		IngestDuration.Observe(report.Duration.Seconds())
		DocumentsIngested.WithLabelValues(string(report.State)).Inc()
		span.SetAttributes(
			attribute.String("state", string(report.State)),
			attribute.Int("chunks_stored", report.Stored()),
		)
		if report.Err != nil {
			span.RecordError(report.Err)
			span.SetStatus(codes.Error, report.Err.Error())
		} else {
			span.SetStatus(codes.Ok, "success")
		}
	}()

	pages := e.segmenter.Pages(text)
	sections := e.segmenter.Classify(pages)
	report.Pages = len(pages)
	report.advance(StateSegmented)

	e.logger.Debug(ctx, "document segmented",
		zap.Int("pages", len(pages)),
		zap.Int("verticals", len(sections)),
	)

	batches := e.chunkSections(ctx, sections, opts.DocumentID, report)
	report.advance(StateChunked)

	e.indexBatches(ctx, batches, report)

	if err := docError(report); err != nil {
		report.fail(err)
	} else {
		report.advance(StateIndexed)
	}

	e.logger.Info(ctx, "document ingested",
		zap.String("state", string(report.State)),
		zap.Int("pages", report.Pages),
		zap.Int("chunks_stored", report.Stored()),
		zap.Duration("duration", time.Since(start)),
	)
	e.publishIngest(ctx, report)
	return report, nil
}

// chunkSections turns each vertical's sections into chunks, recording
// verticals that produce none or cannot be chunked as failed.
func (e *Engine) chunkSections(ctx context.Context, sections map[string][]segmenter.Section, documentID string, report *IngestReport) map[string][]corpus.Chunk {
	batches := make(map[string][]corpus.Chunk, len(sections))
	for vertical, secs := range sections {
		var chunks []corpus.Chunk
		var chunkErr error
		for _, sec := range secs {
			cs, err := e.chunker.Chunk(sec.Text, sec.PageNumber)
			if err != nil {
				chunkErr = err
				break
			}
			for i := range cs {
				cs[i].Vertical = vertical
				cs[i].Confidence = sec.Confidence
				if documentID != "" {
					cs[i].Extra[corpus.ExtraDocumentID] = documentID
				}
			}
			chunks = append(chunks, cs...)
		}

		switch {
		case chunkErr != nil:
			report.Verticals[vertical] = VerticalReport{State: StateFailed, Error: chunkErr.Error()}
		case len(chunks) == 0:
			report.Verticals[vertical] = VerticalReport{State: StateFailed, Error: "no chunks extracted"}
		default:
			report.Verticals[vertical] = VerticalReport{State: StateChunked, ChunkCount: len(chunks)}
			batches[vertical] = chunks
			continue
		}
		e.logger.Warn(ctx, "vertical produced no chunks",
			zap.String("vertical", vertical),
			zap.String("reason", report.Verticals[vertical].Error),
		)
	}
	return batches
}

// indexBatches upserts every vertical's chunks in parallel.
func (e *Engine) indexBatches(ctx context.Context, batches map[string][]corpus.Chunk, report *IngestReport) {
	var mu sync.Mutex
	var g errgroup.Group
	for vertical, chunks := range batches {
		g.Go(func() error {
			vr := VerticalReport{ChunkCount: len(chunks)}
			err := e.upsert(ctx, vertical, chunks)
			if err != nil {
				vr.State = StateFailed
				vr.Error = err.Error()
				VerticalOutcomes.WithLabelValues(vertical, "failed").Inc()
				e.logger.Error(ctx, "indexing vertical failed",
					zap.String("vertical", vertical),
					zap.Int("chunks", len(chunks)),
					zap.Error(err),
				)
			} else {
				vr.State = StateIndexed
				vr.Stored = true
				VerticalOutcomes.WithLabelValues(vertical, "stored").Inc()
				ChunksStored.WithLabelValues(vertical).Add(float64(len(chunks)))
			}

			mu.Lock()
			report.Verticals[vertical] = vr
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) upsert(ctx context.Context, vertical string, chunks []corpus.Chunk) error {
	ix, err := e.index(vertical)
	if err != nil {
		return err
	}
	return ix.Upsert(ctx, chunks)
}

// docError returns the joined vertical errors when no vertical that had
// sections was stored. A document without sections is not a failure.
func docError(report *IngestReport) error {
	if len(report.Verticals) == 0 {
		return nil
	}
	names := make([]string, 0, len(report.Verticals))
	for name, vr := range report.Verticals {
		if vr.Stored {
			return nil
		}
		names = append(names, name)
	}
	sort.Strings(names)
	errs := make([]error, 0, len(names))
	for _, name := range names {
		errs = append(errs, fmt.Errorf("%s: %s", name, report.Verticals[name].Error))
	}
	return fmt.Errorf("no vertical indexed: %w", errors.Join(errs...))
}

func (e *Engine) publishIngest(ctx context.Context, report *IngestReport) {
	ev := events.New(events.TypeIngestCompleted)
	ev.DocumentID = report.DocumentID
	ev.Results = make(map[string]events.VerticalResult, len(report.Verticals))
	for name, vr := range report.Verticals {
		ev.Verticals = append(ev.Verticals, name)
		ev.Results[name] = events.VerticalResult{
			Stored:     vr.Stored,
			ChunkCount: vr.ChunkCount,
			Error:      vr.Error,
		}
	}
	sort.Strings(ev.Verticals)
	e.publish(ctx, ev)
}

// publish sends ev, logging failures without returning them.
func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.logger.Warn(ctx, "event publish failed",
			zap.String("event_type", ev.Type),
			zap.String("verticals", strings.Join(ev.Verticals, ",")),
			zap.Error(err),
		)
	}
}

// PreviewReport summarises how a document would be segmented.
type PreviewReport struct {
	Pages       int            `json:"pages"`
	TextPresent bool           `json:"text_present"`
	Threshold   float64        `json:"threshold"`
	Verticals   []string       `json:"verticals_found"`
	PageCounts  map[string]int `json:"page_counts"`
}

// Preview classifies text without indexing it.
func (e *Engine) Preview(ctx context.Context, text string) *PreviewReport {
	_, span := tracer.Start(ctx, "Engine.Preview")
	defer span.End()

	pages := e.segmenter.Pages(text)
	sections := e.segmenter.Classify(pages)

	report := &PreviewReport{
		Pages:       len(pages),
		TextPresent: len(pages) > 0,
		Threshold:   e.segmenter.Threshold(),
		Verticals:   make([]string, 0, len(sections)),
		PageCounts:  make(map[string]int, len(sections)),
	}
	for vertical, secs := range sections {
		report.Verticals = append(report.Verticals, vertical)
		report.PageCounts[vertical] = len(secs)
	}
	sort.Strings(report.Verticals)
	span.SetAttributes(attribute.StringSlice("verticals", report.Verticals))
	return report
}
