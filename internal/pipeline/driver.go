package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"libconv/internal/catalog"
	"libconv/internal/formats"
	"libconv/internal/logging"
	"libconv/internal/planner"
	"libconv/internal/services"
)

// Catalog is the read side of the catalog client.
type Catalog interface {
	ListDocuments(ctx context.Context) (catalog.Listing, error)
	ResolveSourcePath(ctx context.Context, id string, format formats.Format) (catalog.Resolution, error)
}

// Converter produces a target-format file next to the source.
type Converter interface {
	Convert(ctx context.Context, sourcePath string, target formats.Format) (string, error)
}

// Registrar appends an output to the catalog and disposes of the scratch file.
type Registrar interface {
	Register(ctx context.Context, id, outputPath string) error
}

// PlanEntry pairs a document with the planner's decision.
type PlanEntry struct {
	Document catalog.Document
	Decision planner.Decision
}

// Driver runs conversion passes.
type Driver struct {
	opts      Options
	catalog   Catalog
	converter Converter
	registrar Registrar
	planner   *planner.Planner
	logger    *slog.Logger
	now       func() time.Time
}

// NewDriver validates opts and wires the collaborators.
func NewDriver(opts Options, cat Catalog, conv Converter, reg Registrar, logger *slog.Logger) (*Driver, error) {
	if cat == nil {
		return nil, errors.New("catalog required")
	}
	if conv == nil {
		return nil, errors.New("converter required")
	}
	if reg == nil {
		return nil, errors.New("registrar required")
	}
	if opts.Limit < 0 {
		return nil, fmt.Errorf("limit must be >= 0, got %d", opts.Limit)
	}
	plan, err := planner.New(planner.Policy{Eligible: opts.EligibleSourceFormats, Target: opts.TargetFormat})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "planning", "", "invalid format policy", err)
	}
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	return &Driver{
		opts:      opts,
		catalog:   cat,
		converter: conv,
		registrar: reg,
		planner:   plan,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		now:       time.Now,
	}, nil
}

// Plan lists the catalog and returns each selected document's decision
// without converting or mutating anything.
func (d *Driver) Plan(ctx context.Context) ([]PlanEntry, catalog.Listing, error) {
	listing, err := d.catalog.ListDocuments(ctx)
	if err != nil {
		return nil, catalog.Listing{}, err
	}
	docs := d.selectDocuments(listing.Documents)
	entries := make([]PlanEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, PlanEntry{Document: doc, Decision: d.planner.Plan(doc)})
	}
	return entries, listing, nil
}

// Run performs one pass. The returned error is non-nil only when the catalog
// cannot be listed; every per-document problem is reported in the Summary.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	start := d.now()
	summary := Summary{RunID: uuid.NewString()}
	ctx = services.WithRunID(ctx, summary.RunID)
	logger := logging.WithContext(ctx, d.logger)

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("library", d.opts.LibraryPath),
		logging.String("target_format", d.opts.TargetFormat.String()),
		logging.Int("source_formats", len(d.opts.EligibleSourceFormats)),
	)

	listing, err := d.catalog.ListDocuments(ctx)
	if err != nil && ctx.Err() != nil {
		summary.Interrupted = true
		summary.Duration = d.now().Sub(start)
		logger.Info("run interrupted before listing completed", logging.String(logging.FieldEventType, "run_interrupted"))
		return summary, nil
	}
	if err != nil {
		summary.Duration = d.now().Sub(start)
		logging.ErrorWithContext(logger, "catalog listing failed", "run_aborted",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify the library path and that calibredb can open it"),
		)
		if !errors.Is(err, services.ErrCatalogUnavailable) {
			err = services.Wrap(services.ErrCatalogUnavailable, "listing", "", "", err)
		}
		return summary, err
	}
	summary.Rejected = len(listing.Rejected)
	docs := d.selectDocuments(listing.Documents)

	attempts := 0
	for idx, doc := range docs {
		if ctx.Err() != nil {
			summary.Interrupted = true
			logger.Info("run interrupted",
				logging.String(logging.FieldEventType, "run_interrupted"),
				logging.Int("remaining", len(docs)-idx),
			)
			break
		}
		decision := d.planner.Plan(doc)
		if decision.Action == planner.Convert && d.opts.Limit > 0 && attempts >= d.opts.Limit {
			summary.LimitReached = true
			logger.Info("conversion limit reached",
				logging.String(logging.FieldEventType, "run_limit_reached"),
				logging.Int("limit", d.opts.Limit),
			)
			break
		}
		if decision.Action == planner.Convert {
			attempts++
		}
		// The document in flight finishes even if the run is interrupted
		// meanwhile; the converter's timeout still bounds it.
		docCtx := services.WithDocumentID(context.WithoutCancel(ctx), doc.ID)
		state, job, docErr := d.processDocument(docCtx, doc, decision)
		d.record(docCtx, &summary, doc, state, job, docErr)
		d.progress(idx+1, len(docs), doc, decision, state, job, docErr)
	}

	summary.Duration = d.now().Sub(start)
	logger.Info("run finished",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("converted", summary.Converted),
		logging.Int("skipped", summary.Skipped()),
		logging.Int("errored", summary.Errored),
		logging.Int("rejected", summary.Rejected),
		logging.Bool("interrupted", summary.Interrupted),
		logging.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// processDocument walks one document through the state machine and returns
// its terminal state.
func (d *Driver) processDocument(ctx context.Context, doc catalog.Document, decision planner.Decision) (State, *ConversionJob, error) {
	logger := logging.WithContext(ctx, d.logger)
	switch decision.Action {
	case planner.SkipAlreadyPresent:
		logger.Debug("document skipped", logging.Args(logging.DecisionAttrs("plan", "skip", "target format already stored")...)...)
		return StateSkippedAlreadyPresent, nil, nil
	case planner.SkipNoEligibleSource:
		logger.Debug("document skipped",
			append(logging.Args(logging.DecisionAttrs("plan", "skip", "no eligible source format")...),
				logging.String("stored_formats", doc.Formats.String()))...,
		)
		return StateSkippedNoSource, nil, nil
	}

	job := &ConversionJob{
		DocumentID: doc.ID,
		Source:     decision.Source,
		Target:     decision.Target,
		State:      StatePlanned,
		Outcome:    OutcomePending,
	}
	logger.Debug("document planned", logging.Args(logging.DecisionAttrs("plan", "convert", "source "+decision.Source.String())...)...)

	resolveCtx := services.WithStage(ctx, StageResolving)
	resolution, err := d.catalog.ResolveSourcePath(resolveCtx, doc.ID, decision.Source)
	if err != nil {
		job.fail(err.Error())
		return StateError, job, stageError(StageResolving, err)
	}
	job.SourcePath = resolution.Path
	job.Resolution = resolution.Method
	job.State = StateConverting

	convertCtx := services.WithStage(ctx, StageConverting)
	output, err := d.converter.Convert(convertCtx, resolution.Path, decision.Target)
	if err != nil {
		job.fail(err.Error())
		return StateError, job, stageError(StageConverting, err)
	}
	job.OutputPath = output
	job.State = StateConverted
	logger.Debug("document converted",
		logging.String("source_path", job.SourcePath),
		logging.String("resolution", job.Resolution.String()),
		logging.String("output", output),
	)

	job.State = StateRegistering

	registerCtx := services.WithStage(ctx, StageRegistering)
	if err := d.registrar.Register(registerCtx, doc.ID, output); err != nil {
		job.fail(err.Error())
		return StateError, job, stageError(StageRegistering, err)
	}
	job.State = StateRegistered
	job.Outcome = OutcomeSucceeded
	return StateRegistered, job, nil
}

type stagedError struct {
	stage string
	err   error
}

func (e *stagedError) Error() string { return e.err.Error() }
func (e *stagedError) Unwrap() error { return e.err }

func stageError(stage string, err error) error {
	return &stagedError{stage: stage, err: err}
}

func (d *Driver) record(ctx context.Context, summary *Summary, doc catalog.Document, state State, job *ConversionJob, err error) {
	switch state {
	case StateRegistered:
		summary.Converted++
	case StateSkippedAlreadyPresent:
		summary.SkippedAlreadyPresent++
	case StateSkippedNoSource:
		summary.SkippedNoSource++
	default:
		summary.Errored++
		failure := Failure{DocumentID: doc.ID, Title: doc.Title}
		var staged *stagedError
		if errors.As(err, &staged) {
			failure.Stage = staged.stage
		}
		details := services.Details(err)
		failure.Kind = details.Kind
		failure.Message = details.Message
		summary.Failures = append(summary.Failures, failure)

		attrs := []logging.Attr{
			logging.String(logging.FieldStage, failure.Stage),
			logging.String("error_kind", failure.Kind),
			logging.Error(err),
			logging.String(logging.FieldImpact, "document left unchanged; run continues"),
		}
		if job != nil {
			attrs = append(attrs,
				logging.String("source_format", job.Source.String()),
				logging.String("source_path", job.SourcePath),
			)
		}
		attrs = append(attrs, logging.String(logging.FieldErrorHint, failureHint(failure.Kind)))
		logging.WarnWithContext(logging.WithContext(ctx, d.logger), "document failed", "document_failed", attrs...)
	}
}

func failureHint(kind string) string {
	switch kind {
	case services.KindSourceNotFound:
		return "the catalog lists a format whose file is missing; run calibre's library check"
	case services.KindConversionTimeout:
		return "raise conversion.timeout_seconds or convert this document by hand"
	case services.KindConversionFailed:
		return "run ebook-convert on the source file to see the full diagnostic"
	case services.KindRegistrationFailed:
		return "make sure calibre is not holding the library open"
	default:
		return "check logs for details"
	}
}

func (d *Driver) progress(n, total int, doc catalog.Document, decision planner.Decision, state State, job *ConversionJob, err error) {
	label := "#" + doc.ID
	if title := strings.TrimSpace(doc.Title); title != "" {
		label += " " + title
	}
	var line string
	switch state {
	case StateRegistered:
		line = fmt.Sprintf("converted %s -> %s (%s)", decision.Source, decision.Target, job.Resolution)
	case StateSkippedAlreadyPresent:
		line = "skipped: " + decision.Target.String() + " already present"
	case StateSkippedNoSource:
		line = "skipped: no eligible source format"
	default:
		details := services.Details(err)
		line = fmt.Sprintf("error: %s: %s", details.Kind, details.Message)
	}
	fmt.Fprintf(d.opts.Progress, "[%d/%d] %s: %s\n", n, total, label, line)
}

// selectDocuments applies the ID filter while keeping catalog order.
func (d *Driver) selectDocuments(docs []catalog.Document) []catalog.Document {
	if len(d.opts.IDs) == 0 {
		return docs
	}
	out := make([]catalog.Document, 0, len(d.opts.IDs))
	for _, doc := range docs {
		if slices.Contains(d.opts.IDs, doc.ID) {
			out = append(out, doc)
		}
	}
	return out
}
