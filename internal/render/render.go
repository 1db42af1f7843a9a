// Package render turns homework artifacts into plain text reports.
package render

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"eduplus-export/internal/artifact"
	"eduplus-export/internal/scrapers/eduplus"
	"eduplus-export/pkg/htmlutil"
)

const (
	Extension = ".txt"
	separator = "============================================================"
)

// Render writes the text report of an artifact to w. Questions are written in the
// order they are stored in.
func Render(w io.Writer, a artifact.Artifact) error {
	out := bufio.NewWriter(w)

	fmt.Fprintf(out, "Homework: %s\n", a.HomeworkName)
	fmt.Fprintf(out, "Questions: %d\n", a.QuestionCount)
	fmt.Fprintf(out, "Exported: %s\n", a.Timestamp)
	fmt.Fprintf(out, "%s\n\n", separator)

	for i, q := range a.Questions {
		renderQuestion(out, i+1, q)
		out.WriteString("\n")
	}

	return out.Flush()
}

func renderQuestion(out *bufio.Writer, number int, q eduplus.Question) {
	detail := eduplus.Detail{}
	if q.Detail != nil {
		detail = *q.Detail
	}

	fmt.Fprintf(out, "Question %d: %s\n", number, htmlutil.Sanitize(detail.TitleText))

	switch KindOf(detail.QsnType) {
	case KindChoice:
		for i, opt := range detail.Options {
			fmt.Fprintf(out, "  %s. %s\n", OptionLabel(i), htmlutil.Sanitize(opt.OptionContent))
		}
	case KindFillBlank:
		if len(detail.Blanks) > 0 {
			out.WriteString("  (fill in the blank)\n")
		}
	case KindTrueFalse:
		out.WriteString("  (true/false)\n")
	default:
		fmt.Fprintf(out, "  (unknown question type: %s)\n", typeCode(detail.QsnType))
	}
}

// TextPath returns the path of the report of the artifact at jsonPath: the same base
// name in outputDir with the text extension.
func TextPath(jsonPath, outputDir string) string {
	base := strings.TrimSuffix(filepath.Base(jsonPath), filepath.Ext(jsonPath))
	return filepath.Join(outputDir, base+Extension)
}

// ConvertToText reads the artifact at jsonPath and writes its report into outputDir,
// replacing any previous report of the same artifact. The path of the report is returned.
func ConvertToText(jsonPath, outputDir string) (string, error) {
	a, err := artifact.Read(jsonPath)
	if err != nil {
		return "", err
	}

	var buffer strings.Builder
	err = Render(&buffer, a)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", filepath.Base(jsonPath), err)
	}

	textPath := TextPath(jsonPath, outputDir)
	err = os.WriteFile(textPath, []byte(buffer.String()), 0644)
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return textPath, nil
}
