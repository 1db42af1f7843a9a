// Package artifact is the on-disk record of one exported homework. An artifact is written
// once and never modified, it is the only state that survives between runs.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"eduplus-export/internal/scrapers/eduplus"
)

const (
	Extension = ".json"
	// the layout of the timestamp embedded in file names
	FileTimeLayout = "20060102_150405"
	// give up on finding a free file name after this many suffixes
	maxSuffix = 1000
)

type Artifact struct {
	HomeworkName  string             `json:"homework_name"`
	HomeworkId    eduplus.ID         `json:"homework_id"`
	Timestamp     string             `json:"timestamp"`
	QuestionCount int                `json:"question_count"`
	Questions     []eduplus.Question `json:"questions"`

	// the homework id as eduplus sent it
	rawHomeworkId json.RawMessage
}

// record is the layout written to disk.
type record struct {
	HomeworkName  string             `json:"homework_name"`
	HomeworkId    json.RawMessage    `json:"homework_id"`
	Timestamp     string             `json:"timestamp"`
	QuestionCount int                `json:"question_count"`
	Questions     []eduplus.Question `json:"questions"`
}

// New creates the artifact of a homework, questions are kept in the order given.
func New(homework eduplus.Homework, questions []eduplus.Question, now time.Time) Artifact {
	return Artifact{
		HomeworkName:  homework.Name,
		HomeworkId:    homework.Id,
		Timestamp:     now.Format(time.RFC3339),
		QuestionCount: len(questions),
		Questions:     questions,
		rawHomeworkId: homework.RawId(),
	}
}

// homeworkIdJSON returns the received form of the homework id unless HomeworkId was
// changed since.
func (a Artifact) homeworkIdJSON() (json.RawMessage, error) {
	if len(a.rawHomeworkId) > 0 {
		var id eduplus.ID
		if json.Unmarshal(a.rawHomeworkId, &id) == nil && id == a.HomeworkId {
			return a.rawHomeworkId, nil
		}
	}
	return json.Marshal(a.HomeworkId)
}

// FileName returns `<prefix>_<safeName>_<YYYYMMDD_HHMMSS>.json`.
func FileName(prefix, safeName string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s%s", prefix, safeName, now.Format(FileTimeLayout), Extension)
}

// Write writes the artifact as indented JSON into dir under the given file name. If the
// name is taken, `_2`, `_3`, ... is appended before the extension. The path written to is
// returned.
func Write(dir, name string, a Artifact) (string, error) {
	if a.QuestionCount != len(a.Questions) {
		return "", fmt.Errorf("write artifact: question count %d does not match %d questions", a.QuestionCount, len(a.Questions))
	}

	homeworkId, err := a.homeworkIdJSON()
	if err != nil {
		return "", fmt.Errorf("write artifact: encode homework id: %w", err)
	}

	var buffer strings.Builder
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	err = encoder.Encode(record{
		HomeworkName:  a.HomeworkName,
		HomeworkId:    homeworkId,
		Timestamp:     a.Timestamp,
		QuestionCount: a.QuestionCount,
		Questions:     a.Questions,
	})
	if err != nil {
		return "", fmt.Errorf("write artifact: encode: %w", err)
	}

	base := strings.TrimSuffix(name, Extension)
	for i := 1; i <= maxSuffix; i++ {
		path := filepath.Join(dir, base+Extension)
		if i > 1 {
			path = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, Extension))
		}

		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("write artifact: %w", err)
		}

		_, err = file.WriteString(buffer.String())
		closeErr := file.Close()
		if err == nil {
			err = closeErr
		}
		if err != nil {
			return "", fmt.Errorf("write artifact: %w", err)
		}
		return path, nil
	}

	return "", fmt.Errorf("write artifact: no free file name for %s in %s", name, dir)
}

// Read parses the artifact at path.
func Read(path string) (Artifact, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("read artifact: %w", err)
	}
	var a Artifact
	err = json.Unmarshal(contents, &a)
	if err != nil {
		return Artifact{}, fmt.Errorf("read artifact %s: %w", filepath.Base(path), err)
	}
	return a, nil
}

// List returns the paths of every artifact in dir, sorted by name.
func List(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"+Extension))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}
