// client.go contains the calls made against the eduplus.net student API. Every call is a
// single GET, there are no retries: a failed call is returned as an error and it is up to
// the caller to treat it as "no data".

package eduplus

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"eduplus-export/internal/components/assert"
	"eduplus-export/internal/components/chrono"
	"eduplus-export/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("eduplus-export/scrapers/eduplus")

const (
	report_client_homeworks          = "client.homeworks"
	report_client_questions          = "client.questions"
	report_client_question_detail    = "client.question-detail"
	report_client_detailed_questions = "client.detailed-questions"
)

const (
	DefaultBaseUrl = "https://www.eduplus.net"
	DefaultTimeout = 15 * time.Second

	SessionCookie  = "SESSION"
	TrackingCookie = "Hm_lvt_bc32be924d31063c4e643e095e69926a"
)

var (
	// ErrUnsuccessful is returned when the envelope of a response does not indicate success.
	ErrUnsuccessful = errors.New("unsuccessful response")
	// ErrStatus is returned when the server responds with a non-2xx HTTP status.
	ErrStatus = errors.New("unexpected http status")
)

type ClientOptions struct {
	// defaults to DefaultBaseUrl
	BaseUrl string
	// the SESSION cookie of a logged in student
	Session string
	// the baidu analytics cookie eduplus expects next to the session
	Tracking string
	// timeout of a single request, defaults to DefaultTimeout
	Timeout time.Duration
	// 0 means requests are not capped
	MaxRequestsPerSecond float64
	CloudflareBypass     bool
	// if not nil, every request/response pair is dumped here
	Dump telemetry.MessageOutput
}

// Client calls the eduplus student API with a fixed set of credentials.
type Client struct {
	http *resty.Client
	tel  telemetry.API
}

func NewClient(opts ClientOptions, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel, "telemetry")

	tel = telemetry.NewScopedAPI("eduplus", tel)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseUrl)
	httpClient.SetTimeout(opts.Timeout)
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	httpClient.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/97.0.4692.99 Safari/537.36")
	httpClient.SetHeader("referer", fmt.Sprintf("%s/student/courses", httpClient.BaseURL))
	httpClient.SetHeader("accept", "application/json, text/plain, */*")
	httpClient.SetCookies([]*http.Cookie{
		{Name: SessionCookie, Value: opts.Session},
		{Name: TrackingCookie, Value: opts.Tracking},
	})

	if opts.MaxRequestsPerSecond > 0 {
		// burst of 1 so that requests are spread out evenly
		rateLimiter := rate.NewLimiter(rate.Limit(opts.MaxRequestsPerSecond), 1)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel, opts.Dump)

	return &Client{http: httpClient, tel: tel}, nil
}

// getJSON performs a GET and decodes the JSON body into out.
func (c *Client) getJSON(req *resty.Request, endpoint string, out any) error {
	res, err := req.Get(endpoint)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("%w: %s", ErrStatus, res.Status())
	}
	err = json.Unmarshal(res.Body(), out)
	if err != nil {
		return fmt.Errorf("unmarshal json: %w", err)
	}
	return nil
}

// Homeworks returns the published homeworks of a course ordered by their sequence.
// Homeworks without an id or a name are left out.
func (c *Client) Homeworks(ctx context.Context, courseId string) ([]Homework, error) {
	ctx, span := tracer.Start(ctx, "client:Homeworks")
	defer span.End()
	span.SetAttributes(attribute.String("course_id", courseId))

	c.tel.ReportDebug(report_client_homeworks, courseId)

	var envelope homeworkEnvelope
	err := c.getJSON(
		c.http.R().
			SetContext(ctx).
			SetQueryParam("courseId", courseId),
		"/api/course/homeworks/published/student",
		&envelope,
	)
	if err != nil {
		c.tel.ReportBroken(report_client_homeworks, err, courseId)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !envelope.Success || envelope.Data == nil {
		err := fmt.Errorf("%w: invalid homework list envelope (success=%t)", ErrUnsuccessful, envelope.Success)
		c.tel.ReportBroken(report_client_homeworks, err, courseId)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	type sequenced struct {
		sequence int
		homework Homework
	}
	var items []sequenced
	for _, item := range *envelope.Data {
		rawId := item.Homework.Id
		if len(rawId) == 0 || string(rawId) == "null" || item.Homework.Name == nil {
			c.tel.ReportWarning(report_client_homeworks, "homework without id or name", item.Sequence.Int(0))
			continue
		}
		var id ID
		err := json.Unmarshal(rawId, &id)
		if err != nil {
			c.tel.ReportWarning(report_client_homeworks, "homework with invalid id", string(rawId), err)
			continue
		}
		items = append(items, sequenced{
			sequence: item.Sequence.Int(0),
			homework: Homework{
				Name:  *item.Homework.Name,
				Id:    id,
				rawId: rawId,
			},
		})
	}
	slices.SortStableFunc(items, func(a, b sequenced) int {
		return cmp.Compare(a.sequence, b.sequence)
	})

	homeworks := make([]Homework, len(items))
	for i, item := range items {
		homeworks[i] = item.homework
	}

	c.tel.ReportCount(report_client_homeworks, int64(len(homeworks)))
	return homeworks, nil
}

// Questions returns the questions of a homework sorted by order number, questions without
// an order number come last. Questions without an id are left out.
func (c *Client) Questions(ctx context.Context, homeworkId ID) ([]Question, error) {
	ctx, span := tracer.Start(ctx, "client:Questions")
	defer span.End()
	span.SetAttributes(attribute.String("homework_id", string(homeworkId)))

	c.tel.ReportDebug(report_client_questions, homeworkId)

	var envelope codeEnvelope[[]Question]
	err := c.getJSON(
		c.http.R().
			SetContext(ctx).
			SetQueryParam("homeworkId", string(homeworkId)),
		"/api/course/homeworkQuestions/student",
		&envelope,
	)
	if err != nil {
		c.tel.ReportBroken(report_client_questions, err, homeworkId)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !status(envelope.Code).ok() {
		err := fmt.Errorf("%w: code %s: %s", ErrUnsuccessful, status(envelope.Code), envelope.Message)
		c.tel.ReportBroken(report_client_questions, err, homeworkId)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	questions := make([]Question, 0, len(envelope.Data))
	for _, q := range envelope.Data {
		if q.Id == "" {
			c.tel.ReportWarning(report_client_questions, "question without id", homeworkId)
			continue
		}
		questions = append(questions, q)
	}
	slices.SortStableFunc(questions, func(a, b Question) int {
		return cmp.Compare(a.SortKey(), b.SortKey())
	})

	return questions, nil
}

// QuestionDetail returns the rich content of a single question.
func (c *Client) QuestionDetail(ctx context.Context, questionId ID) (Detail, error) {
	ctx, span := tracer.Start(ctx, "client:QuestionDetail")
	defer span.End()
	span.SetAttributes(attribute.String("question_id", string(questionId)))

	c.tel.ReportDebug(report_client_question_detail, questionId)

	var envelope codeEnvelope[*Detail]
	err := c.getJSON(
		c.http.R().
			SetContext(ctx).
			SetPathParam("questionId", string(questionId)),
		"/api/course/homeworkQuestions/{questionId}/student/detail",
		&envelope,
	)
	if err != nil {
		c.tel.ReportBroken(report_client_question_detail, err, questionId)
		span.SetStatus(codes.Error, err.Error())
		return Detail{}, err
	}
	if !status(envelope.Code).ok() {
		err := fmt.Errorf("%w: code %s: %s", ErrUnsuccessful, status(envelope.Code), envelope.Message)
		c.tel.ReportBroken(report_client_question_detail, err, questionId)
		span.SetStatus(codes.Error, err.Error())
		return Detail{}, err
	}
	if envelope.Data == nil {
		err := fmt.Errorf("%w: detail has no data", ErrUnsuccessful)
		c.tel.ReportBroken(report_client_question_detail, err, questionId)
		span.SetStatus(codes.Error, err.Error())
		return Detail{}, err
	}

	return *envelope.Data, nil
}

// DetailedQuestions returns the sorted questions of a homework with their details attached.
// Every detail request is followed by `pause`, questions whose detail could not be fetched
// are skipped.
func (c *Client) DetailedQuestions(ctx context.Context, homeworkId ID, pause time.Duration, clock chrono.TimeAPI) ([]Question, error) {
	assert.NotNil(clock, "clock")
	assert.NotNegative(pause, "pause")

	questions, err := c.Questions(ctx, homeworkId)
	if err != nil {
		return nil, err
	}

	detailed := make([]Question, 0, len(questions))
	for _, q := range questions {
		detail, err := c.QuestionDetail(ctx, q.Id)
		if err == nil {
			q.Detail = &detail
			detailed = append(detailed, q)
		} else {
			c.tel.ReportWarning(report_client_detailed_questions, "skipping question without detail", homeworkId, q.Id)
		}

		err = clock.Sleep(ctx, pause)
		if err != nil {
			return nil, err
		}
	}

	return detailed, nil
}
