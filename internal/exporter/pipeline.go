package exporter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"eduplus-export/internal/artifact"
	"eduplus-export/internal/components/assert"
	"eduplus-export/internal/components/chrono"
	"eduplus-export/internal/components/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Options struct {
	CourseId string
	JsonDir  string
	TextDir  string
	// file name prefix of artifacts, defaults to DefaultPrefix
	Prefix string
	// pause after every question detail request
	DetailPause time.Duration
	// pause between two homeworks
	HomeworkPause time.Duration
	Filter        Filter
}

// DefaultOptions returns the options with the default directories and pauses.
func DefaultOptions(courseId string) Options {
	return Options{
		CourseId:      courseId,
		JsonDir:       "homework_json",
		TextDir:       "homework_text",
		Prefix:        DefaultPrefix,
		DetailPause:   DefaultDetailPause,
		HomeworkPause: DefaultHomeworkPause,
	}
}

// Summary is the outcome of a pipeline run.
type Summary struct {
	// homeworks selected for export
	Homeworks int
	// artifacts written during the run
	Exported int
	// reports rendered from the artifacts written during the run
	Rendered int
	// reports rendered from artifacts of earlier runs
	Reprocessed int
	// homeworks or artifacts that failed, homeworks without questions are not counted
	Failed int
	// homeworks skipped because they have no questions
	Empty int
	// paths of the artifacts written during the run
	Artifacts []string
}

// Pipeline runs a whole export: list homeworks, export each of them, then render every
// artifact in the json directory.
type Pipeline struct {
	source    Source
	processor Processor
	renderer  Renderer
	opts      Options
	time      chrono.TimeAPI
	tel       telemetry.API
}

func NewPipeline(source Source, opts Options, time chrono.TimeAPI, tel telemetry.API) Pipeline {
	assert.NotNil(source, "source")
	assert.NotNil(time, "time")
	assert.NotNil(tel, "telemetry")
	assert.NotEmptyStr(opts.JsonDir, "json dir")
	assert.NotEmptyStr(opts.TextDir, "text dir")
	assert.NotNegative(opts.HomeworkPause, "homework pause")

	tel = telemetry.NewScopedAPI("exporter", tel)

	return Pipeline{
		source:    source,
		processor: NewProcessor(source, opts.Prefix, opts.DetailPause, time, tel),
		renderer:  newRenderer(opts.JsonDir, opts.TextDir, tel),
		opts:      opts,
		time:      time,
		tel:       tel,
	}
}

// Run performs the export. Failures of single homeworks or reports are reported and
// counted in the summary, the returned error is only set when the output directories
// cannot be created or the context is cancelled.
func (p Pipeline) Run(ctx context.Context) (Summary, error) {
	ctx, span := tracer.Start(ctx, "pipeline:Run")
	defer span.End()
	span.SetAttributes(attribute.String("course_id", p.opts.CourseId))

	err := ensureDirs(p.tel, report_pipeline_run, p.opts.JsonDir, p.opts.TextDir)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Summary{}, err
	}

	homeworks, err := p.source.Homeworks(ctx, p.opts.CourseId)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Summary{}, ctxErr
		}
		// already reported by the client
		homeworks = nil
	}
	homeworks = p.opts.Filter.Apply(homeworks)
	if len(homeworks) == 0 {
		p.tel.ReportWarning(report_pipeline_run, "no homeworks found", p.opts.CourseId)
		return Summary{}, nil
	}

	summary := Summary{Homeworks: len(homeworks)}
	p.tel.ReportInfo("found homeworks", len(homeworks))

	exported := make(map[string]struct{})
	for i, hw := range homeworks {
		if i > 0 {
			if err := p.time.Sleep(ctx, p.opts.HomeworkPause); err != nil {
				return summary, err
			}
		}

		p.tel.ReportInfo("processing homework", fmt.Sprintf("%d/%d", i+1, len(homeworks)), hw.Name)
		path, err := p.processor.ProcessHomework(ctx, hw, p.opts.JsonDir)
		switch {
		case err == nil:
			summary.Exported++
			summary.Artifacts = append(summary.Artifacts, path)
			exported[path] = struct{}{}
		case errors.Is(err, ErrNoQuestions):
			summary.Empty++
		case ctx.Err() != nil:
			return summary, ctx.Err()
		default:
			summary.Failed++
		}
	}

	for _, path := range summary.Artifacts {
		if p.renderer.render(path) {
			summary.Rendered++
		} else {
			summary.Failed++
		}
	}

	existing, err := artifact.List(p.opts.JsonDir)
	if err != nil {
		p.tel.ReportBroken(report_pipeline_render, fmt.Errorf("list artifacts: %w", err), p.opts.JsonDir)
	}
	for _, path := range existing {
		if _, ok := exported[path]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		p.tel.ReportInfo("reprocessing earlier artifact", filepath.Base(path))
		if p.renderer.render(path) {
			summary.Reprocessed++
		} else {
			summary.Failed++
		}
	}

	p.tel.ReportCount(report_pipeline_run, int64(summary.Exported))
	span.SetAttributes(
		attribute.Int("exported", summary.Exported),
		attribute.Int("failed", summary.Failed),
	)
	return summary, nil
}

// RenderExisting renders every artifact already in the json directory, nothing is
// fetched.
func (p Pipeline) RenderExisting(ctx context.Context) (Summary, error) {
	return p.renderer.RenderAll(ctx)
}
