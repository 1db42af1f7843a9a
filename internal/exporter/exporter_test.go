package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"eduplus-export/internal/artifact"
	"eduplus-export/internal/components/chrono"
	"eduplus-export/internal/components/telemetry"
	"eduplus-export/internal/scrapers/eduplus"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.November, 2, 9, 0, 0, 0, time.UTC)

type detailedCall struct {
	homeworkId eduplus.ID
	pause      time.Duration
}

type fakeSource struct {
	homeworks    []eduplus.Homework
	homeworksErr error
	questions    map[eduplus.ID][]eduplus.Question
	questionsErr map[eduplus.ID]error
	calls        []detailedCall
}

func (f *fakeSource) Homeworks(ctx context.Context, courseId string) ([]eduplus.Homework, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.homeworksErr != nil {
		return nil, f.homeworksErr
	}
	return f.homeworks, nil
}

func (f *fakeSource) DetailedQuestions(ctx context.Context, homeworkId eduplus.ID, pause time.Duration, clock chrono.TimeAPI) ([]eduplus.Question, error) {
	f.calls = append(f.calls, detailedCall{homeworkId: homeworkId, pause: pause})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.questionsErr[homeworkId]; err != nil {
		return nil, err
	}
	return f.questions[homeworkId], nil
}

func qsnType(n int) *eduplus.FlexInt {
	v := eduplus.FlexInt(n)
	return &v
}

func choice(id eduplus.ID, title string, options ...string) eduplus.Question {
	order := eduplus.FlexInt(1)
	detail := &eduplus.Detail{QsnType: qsnType(1), TitleText: title}
	for i, o := range options {
		detail.Options = append(detail.Options, eduplus.Option{Id: eduplus.ID(rune('a' + i)), OptionContent: o})
	}
	return eduplus.Question{Id: id, OrderNumber: &order, Detail: detail}
}

type testEnv struct {
	source   *fakeSource
	clock    *chrono.FakeTime
	recorder *telemetry.Recorder
	opts     Options
}

func newTestEnv(t testing.TB, source *fakeSource) testEnv {
	dir := t.TempDir()
	opts := DefaultOptions("course-1")
	opts.JsonDir = filepath.Join(dir, "json")
	opts.TextDir = filepath.Join(dir, "text")
	return testEnv{
		source:   source,
		clock:    chrono.NewFakeTime(testNow),
		recorder: telemetry.NewRecorder(),
		opts:     opts,
	}
}

func (e testEnv) pipeline() Pipeline {
	return NewPipeline(e.source, e.opts, e.clock, e.recorder)
}

func listDir(t testing.TB, dir string) []string {
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func TestRunEmptyHomeworkList(t *testing.T) {
	env := newTestEnv(t, &fakeSource{})

	summary, err := env.pipeline().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{}, summary)

	require.Empty(t, listDir(t, env.opts.JsonDir))
	require.Empty(t, listDir(t, env.opts.TextDir))
	require.Contains(t, env.recorder.Ids(telemetry.LevelWarning), "exporter: pipeline.run")
	require.Empty(t, env.source.calls)
}

func TestRunHomeworkListError(t *testing.T) {
	env := newTestEnv(t, &fakeSource{homeworksErr: eduplus.ErrUnsuccessful})

	summary, err := env.pipeline().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{}, summary)
	require.Empty(t, listDir(t, env.opts.JsonDir))
}

func TestRunExportsAndRenders(t *testing.T) {
	source := &fakeSource{
		homeworks: []eduplus.Homework{
			{Name: "Week 1", Id: "1"},
			{Name: "Week 2", Id: "2"},
			{Name: "Week 3", Id: "3"},
		},
		questions: map[eduplus.ID][]eduplus.Question{
			"1": {choice("q1", "Colors", "Red", "Green", "Blue")},
		},
		questionsErr: map[eduplus.ID]error{
			"3": errors.New("connection reset"),
		},
	}
	env := newTestEnv(t, source)

	summary, err := env.pipeline().Run(context.Background())
	require.NoError(t, err)

	expectedPath := filepath.Join(env.opts.JsonDir, "homework_Week 1_20241102_090000.json")
	require.Equal(t, Summary{
		Homeworks: 3,
		Exported:  1,
		Rendered:  1,
		Empty:     2,
		Artifacts: []string{expectedPath},
	}, summary)

	require.Equal(t, []time.Duration{time.Second, time.Second}, env.clock.Sleeps())
	require.Equal(t, []detailedCall{
		{homeworkId: "1", pause: DefaultDetailPause},
		{homeworkId: "2", pause: DefaultDetailPause},
		{homeworkId: "3", pause: DefaultDetailPause},
	}, source.calls)

	a, err := artifact.Read(expectedPath)
	require.NoError(t, err)
	require.Equal(t, "Week 1", a.HomeworkName)
	require.Equal(t, eduplus.ID("1"), a.HomeworkId)
	require.Equal(t, 1, a.QuestionCount)
	if diff := cmp.Diff(source.questions["1"], a.Questions, cmpopts.IgnoreUnexported(eduplus.Question{}, eduplus.Detail{}, eduplus.Option{})); diff != "" {
		t.Fatal(diff)
	}

	report, err := os.ReadFile(filepath.Join(env.opts.TextDir, "homework_Week 1_20241102_090000.txt"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(report), "Homework: Week 1\nQuestions: 1\nExported: 2024-11-02T09:00:00Z\n"))
	require.Contains(t, string(report), "  A. Red\n  B. Green\n  C. Blue\n")

	require.Equal(t, []string{
		"exporter: processor.process-homework",
		"exporter: processor.process-homework",
	}, env.recorder.Ids(telemetry.LevelWarning))
	require.Empty(t, env.recorder.Ids(telemetry.LevelBroken))

	// progress is reported without needing verbose output
	require.Equal(t, []string{
		"exporter: found homeworks",
		"exporter: processing homework",
		"exporter: saved artifact",
		"exporter: processing homework",
		"exporter: processing homework",
		"exporter: rendered report",
	}, env.recorder.Ids(telemetry.LevelInfo))
	progress := env.recorder.Reports(telemetry.LevelInfo)
	require.Equal(t, []any{"1/3", "Week 1"}, progress[1].Params)
	require.Equal(t, []any{"Week 1", expectedPath}, progress[2].Params)
}

func TestRunReprocessesExistingArtifacts(t *testing.T) {
	source := &fakeSource{
		homeworks: []eduplus.Homework{{Name: "Week 2", Id: "2"}},
		questions: map[eduplus.ID][]eduplus.Question{
			"2": {choice("q", "Shapes", "Circle")},
		},
	}
	env := newTestEnv(t, source)
	require.NoError(t, os.MkdirAll(env.opts.JsonDir, 0755))

	old := artifact.New(
		eduplus.Homework{Name: "Week 1", Id: "1"},
		[]eduplus.Question{choice("q", "Old", "Yes")},
		testNow.Add(-24*time.Hour),
	)
	_, err := artifact.Write(env.opts.JsonDir, "homework_Week 1_20241101_090000.json", old)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(env.opts.JsonDir, "broken.json"), []byte("{"), 0644))

	summary, err := env.pipeline().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Exported)
	require.Equal(t, 1, summary.Rendered)
	require.Equal(t, 1, summary.Reprocessed)
	require.Equal(t, 1, summary.Failed)

	require.ElementsMatch(t, []string{
		"homework_Week 1_20241101_090000.txt",
		"homework_Week 2_20241102_090000.txt",
	}, listDir(t, env.opts.TextDir))
	require.Equal(t, []string{"exporter: pipeline.render"}, env.recorder.Ids(telemetry.LevelBroken))
}

func TestRunSameNameSameSecond(t *testing.T) {
	source := &fakeSource{
		homeworks: []eduplus.Homework{
			{Name: "Quiz/1", Id: "1"},
			{Name: "Quiz1", Id: "2"},
		},
		questions: map[eduplus.ID][]eduplus.Question{
			"1": {choice("a", "A", "x")},
			"2": {choice("b", "B", "y")},
		},
	}
	env := newTestEnv(t, source)
	env.opts.HomeworkPause = 0

	summary, err := env.pipeline().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(env.opts.JsonDir, "homework_Quiz1_20241102_090000.json"),
		filepath.Join(env.opts.JsonDir, "homework_Quiz1_20241102_090000_2.json"),
	}, summary.Artifacts)
	require.Equal(t, 2, summary.Rendered)
	require.Len(t, listDir(t, env.opts.TextDir), 2)
}

func TestRunFilter(t *testing.T) {
	source := &fakeSource{
		homeworks: []eduplus.Homework{
			{Name: "Chapter 1 Homework", Id: "1"},
			{Name: "Chapter 2 Homework", Id: "2"},
			{Name: "Final Review", Id: "3"},
		},
		questions: map[eduplus.ID][]eduplus.Question{
			"3": {choice("q", "Review", "ok")},
		},
	}
	env := newTestEnv(t, source)
	env.opts.Filter = Filter{Query: "final review"}

	summary, err := env.pipeline().Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Homeworks)
	require.Equal(t, 1, summary.Exported)
	require.Equal(t, []detailedCall{{homeworkId: "3", pause: DefaultDetailPause}}, source.calls)
	require.Empty(t, env.clock.Sleeps())
}

func TestRunCancelled(t *testing.T) {
	env := newTestEnv(t, &fakeSource{
		homeworks: []eduplus.Homework{{Name: "Week 1", Id: "1"}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.pipeline().Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, env.source.calls)
}

func TestRunDirectoryError(t *testing.T) {
	env := newTestEnv(t, &fakeSource{})
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	env.opts.JsonDir = filepath.Join(file, "json")

	_, err := env.pipeline().Run(context.Background())
	require.Error(t, err)
	require.Equal(t, []string{"exporter: pipeline.run"}, env.recorder.Ids(telemetry.LevelBroken))
}

func TestRenderExisting(t *testing.T) {
	env := newTestEnv(t, &fakeSource{})
	require.NoError(t, os.MkdirAll(env.opts.JsonDir, 0755))

	for _, name := range []string{"Week 1", "Week 2"} {
		a := artifact.New(eduplus.Homework{Name: name, Id: eduplus.ID(name)}, nil, testNow)
		_, err := artifact.Write(env.opts.JsonDir, artifact.FileName(DefaultPrefix, name, testNow), a)
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(env.opts.JsonDir, "broken.json"), []byte("[]"), 0644))

	summary, err := env.pipeline().RenderExisting(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{Reprocessed: 2, Failed: 1}, summary)
	require.Empty(t, env.source.calls)

	report, err := os.ReadFile(filepath.Join(env.opts.TextDir, "homework_Week 2_20241102_090000.txt"))
	require.NoError(t, err)
	require.Equal(t, "Homework: Week 2\nQuestions: 0\nExported: 2024-11-02T09:00:00Z\n"+strings.Repeat("=", 60)+"\n\n", string(report))
}

func TestRenderExistingEmpty(t *testing.T) {
	env := newTestEnv(t, &fakeSource{})

	summary, err := env.pipeline().RenderExisting(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{}, summary)
	require.Equal(t, []string{"exporter: pipeline.render"}, env.recorder.Ids(telemetry.LevelWarning))
}

func TestProcessHomework(t *testing.T) {
	source := &fakeSource{
		questions: map[eduplus.ID][]eduplus.Question{
			"7": {choice("q", "<b>Title</b>", "<i>one</i>")},
		},
	}
	clock := chrono.NewFakeTime(testNow)
	recorder := telemetry.NewRecorder()
	processor := NewProcessor(source, "hw", 50*time.Millisecond, clock, recorder)
	dir := t.TempDir()

	path, err := processor.ProcessHomework(context.Background(), eduplus.Homework{Name: `a:b*c`, Id: "7"}, dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "hw_abc_20241102_090000.json"), path)
	require.Equal(t, []detailedCall{{homeworkId: "7", pause: 50 * time.Millisecond}}, source.calls)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	// stored verbatim, no html escaping
	require.Contains(t, string(contents), `"titleText": "<b>Title</b>"`)
	require.Contains(t, string(contents), `"homework_name": "a:b*c"`)

	_, err = processor.ProcessHomework(context.Background(), eduplus.Homework{Name: "empty", Id: "8"}, dir)
	require.ErrorIs(t, err, ErrNoQuestions)
	require.Equal(t, []string{"processor.process-homework"}, recorder.Ids(telemetry.LevelWarning))
	require.Empty(t, recorder.Ids(telemetry.LevelBroken))
	require.Len(t, listDir(t, dir), 1)
}

func TestProcessHomeworkKeepsPayload(t *testing.T) {
	var question eduplus.Question
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 11,
		"orderNumber": 1,
		"score": 5,
		"homeworkId": 7,
		"detail": {"qsnType": 3, "titleText": "T", "analysis": "because", "isAnswer": true}
	}`), &question))

	var homework eduplus.Homework
	require.NoError(t, json.Unmarshal([]byte(`{"id": 7, "name": "Week 7"}`), &homework))

	source := &fakeSource{
		questions: map[eduplus.ID][]eduplus.Question{"7": {question}},
	}
	processor := NewProcessor(source, "", 0, chrono.NewFakeTime(testNow), telemetry.NewRecorder())

	path, err := processor.ProcessHomework(context.Background(), homework, t.TempDir())
	require.NoError(t, err)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)

	var written struct {
		HomeworkId json.RawMessage `json:"homework_id"`
		Questions  []struct {
			Score      int `json:"score"`
			HomeworkId int `json:"homeworkId"`
			Detail     struct {
				Analysis string `json:"analysis"`
				IsAnswer bool   `json:"isAnswer"`
			} `json:"detail"`
		} `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(contents, &written))
	require.Equal(t, "7", string(written.HomeworkId))
	require.Len(t, written.Questions, 1)
	require.Equal(t, 5, written.Questions[0].Score)
	require.Equal(t, 7, written.Questions[0].HomeworkId)
	require.Equal(t, "because", written.Questions[0].Detail.Analysis)
	require.True(t, written.Questions[0].Detail.IsAnswer)
}

func TestProcessHomeworkWriteError(t *testing.T) {
	source := &fakeSource{
		questions: map[eduplus.ID][]eduplus.Question{
			"1": {choice("q", "T", "x")},
		},
	}
	recorder := telemetry.NewRecorder()
	processor := NewProcessor(source, "", 0, chrono.NewFakeTime(testNow), recorder)

	_, err := processor.ProcessHomework(context.Background(), eduplus.Homework{Name: "x", Id: "1"}, filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNoQuestions)
	require.Equal(t, []string{"processor.process-homework"}, recorder.Ids(telemetry.LevelBroken))
}

func TestFilter(t *testing.T) {
	table := []struct {
		query    string
		name     string
		expected bool
	}{
		{query: "", name: "anything", expected: true},
		{query: "  ", name: "anything", expected: true},
		{query: "chapter 2", name: "Chapter 2 Homework", expected: true},
		{query: "CHAPTER   2", name: "chapter 2 homework", expected: true},
		{query: "Chapter 2 Homwork", name: "Chapter 2 Homework", expected: true},
		{query: "midterm", name: "Chapter 2 Homework", expected: false},
		{query: "第二章", name: "第二章 作业", expected: true},
	}

	for _, row := range table {
		require.Equal(t, row.expected, Filter{Query: row.query}.Match(row.name), "%q ~ %q", row.query, row.name)
	}

	homeworks := []eduplus.Homework{{Name: "a1", Id: "1"}, {Name: "b", Id: "2"}, {Name: "a2", Id: "3"}}
	require.Equal(t, homeworks, Filter{}.Apply(homeworks))
	require.Equal(t, []eduplus.Homework{{Name: "a1", Id: "1"}, {Name: "a2", Id: "3"}}, Filter{Query: "a"}.Apply(homeworks))
}

func TestRendererStandalone(t *testing.T) {
	dir := t.TempDir()
	jsonDir := filepath.Join(dir, "json")
	textDir := filepath.Join(dir, "text")
	require.NoError(t, os.MkdirAll(jsonDir, 0755))

	a := artifact.New(eduplus.Homework{Name: "Week 5", Id: "5"}, []eduplus.Question{choice("q", "T", "x")}, testNow)
	_, err := artifact.Write(jsonDir, artifact.FileName(DefaultPrefix, "Week 5", testNow), a)
	require.NoError(t, err)

	recorder := telemetry.NewRecorder()
	summary, err := NewRenderer(jsonDir, textDir, recorder).RenderAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{Reprocessed: 1}, summary)
	require.Equal(t, []string{"homework_Week 5_20241102_090000.txt"}, listDir(t, textDir))
	require.Equal(t, []string{"exporter: rendered report"}, recorder.Ids(telemetry.LevelInfo))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewRenderer(jsonDir, textDir, recorder).RenderAll(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
