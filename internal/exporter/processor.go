package exporter

import (
	"context"
	"errors"
	"time"

	"eduplus-export/internal/artifact"
	"eduplus-export/internal/components/assert"
	"eduplus-export/internal/components/chrono"
	"eduplus-export/internal/components/telemetry"
	"eduplus-export/internal/scrapers/eduplus"
	"eduplus-export/pkg/htmlutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("eduplus-export/exporter")

const (
	report_processor_process_homework = "processor.process-homework"
	report_pipeline_run               = "pipeline.run"
	report_pipeline_render            = "pipeline.render"
)

const (
	DefaultPrefix        = "homework"
	DefaultDetailPause   = 300 * time.Millisecond
	DefaultHomeworkPause = time.Second
)

// ErrNoQuestions is returned when a homework has no question with a detail, no artifact
// is written for it.
var ErrNoQuestions = errors.New("no questions")

// Source is the part of the eduplus client the exporter depends on.
//
// note: fault injection point
type Source interface {
	Homeworks(ctx context.Context, courseId string) ([]eduplus.Homework, error)
	DetailedQuestions(ctx context.Context, homeworkId eduplus.ID, pause time.Duration, clock chrono.TimeAPI) ([]eduplus.Question, error)
}

// Processor exports a single homework into an artifact.
type Processor struct {
	source      Source
	prefix      string
	detailPause time.Duration
	time        chrono.TimeAPI
	tel         telemetry.API
}

func NewProcessor(
	source Source,
	prefix string,
	detailPause time.Duration,
	time chrono.TimeAPI,
	tel telemetry.API,
) Processor {
	assert.NotNil(source, "source")
	assert.NotNil(time, "time")
	assert.NotNil(tel, "telemetry")
	assert.NotNegative(detailPause, "detail pause")

	if prefix == "" {
		prefix = DefaultPrefix
	}

	return Processor{
		source:      source,
		prefix:      prefix,
		detailPause: detailPause,
		time:        time,
		tel:         tel,
	}
}

// ProcessHomework fetches the questions of a homework along with their details and writes
// them into outputDir. It returns the path of the artifact.
func (p Processor) ProcessHomework(ctx context.Context, homework eduplus.Homework, outputDir string) (string, error) {
	ctx, span := tracer.Start(ctx, "processor:ProcessHomework")
	defer span.End()
	span.SetAttributes(
		attribute.String("homework_id", string(homework.Id)),
		attribute.String("homework_name", homework.Name),
	)

	safeName := htmlutil.SafeFilename(homework.Name)

	questions, err := p.source.DetailedQuestions(ctx, homework.Id, p.detailPause, p.time)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		// already reported by the client, a homework that cannot be listed has no questions
		questions = nil
	}
	if len(questions) == 0 {
		p.tel.ReportWarning(report_processor_process_homework, ErrNoQuestions, homework.Id, homework.Name)
		span.SetStatus(codes.Error, ErrNoQuestions.Error())
		return "", ErrNoQuestions
	}

	now := p.time.Now()
	a := artifact.New(homework, questions, now)
	path, err := artifact.Write(outputDir, artifact.FileName(p.prefix, safeName, now), a)
	if err != nil {
		p.tel.ReportBroken(report_processor_process_homework, err, homework.Id, homework.Name)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	p.tel.ReportInfo("saved artifact", homework.Name, path)
	span.SetAttributes(attribute.Int("question_count", len(questions)))
	return path, nil
}
