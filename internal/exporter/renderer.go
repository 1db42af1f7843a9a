package exporter

import (
	"context"
	"fmt"
	"os"

	"eduplus-export/internal/artifact"
	"eduplus-export/internal/components/assert"
	"eduplus-export/internal/components/telemetry"
	"eduplus-export/internal/render"

	"go.opentelemetry.io/otel/codes"
)

// Renderer writes the text reports of the artifacts in a json directory, it never talks
// to eduplus.
type Renderer struct {
	jsonDir string
	textDir string
	tel     telemetry.API
}

func NewRenderer(jsonDir, textDir string, tel telemetry.API) Renderer {
	assert.NotNil(tel, "telemetry")
	return newRenderer(jsonDir, textDir, telemetry.NewScopedAPI("exporter", tel))
}

// newRenderer expects tel to be scoped already.
func newRenderer(jsonDir, textDir string, tel telemetry.API) Renderer {
	assert.NotEmptyStr(jsonDir, "json dir")
	assert.NotEmptyStr(textDir, "text dir")
	return Renderer{jsonDir: jsonDir, textDir: textDir, tel: tel}
}

func ensureDirs(tel telemetry.API, reportId string, dirs ...string) error {
	for _, dir := range dirs {
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			tel.ReportBroken(reportId, fmt.Errorf("create directory: %w", err), dir)
			return err
		}
	}
	return nil
}

// RenderAll renders every artifact in the json directory, reports that fail are counted
// in Summary.Failed.
func (r Renderer) RenderAll(ctx context.Context) (Summary, error) {
	_, span := tracer.Start(ctx, "renderer:RenderAll")
	defer span.End()

	err := ensureDirs(r.tel, report_pipeline_render, r.jsonDir, r.textDir)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Summary{}, err
	}

	paths, err := artifact.List(r.jsonDir)
	if err != nil {
		r.tel.ReportBroken(report_pipeline_render, fmt.Errorf("list artifacts: %w", err), r.jsonDir)
		return Summary{}, err
	}
	if len(paths) == 0 {
		r.tel.ReportWarning(report_pipeline_render, "no artifacts found", r.jsonDir)
	}

	var summary Summary
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if r.render(path) {
			summary.Reprocessed++
		} else {
			summary.Failed++
		}
	}
	return summary, nil
}

func (r Renderer) render(jsonPath string) bool {
	textPath, err := render.ConvertToText(jsonPath, r.textDir)
	if err != nil {
		r.tel.ReportBroken(report_pipeline_render, err, jsonPath)
		return false
	}
	r.tel.ReportInfo("rendered report", textPath)
	return true
}
