package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"

	"github.com/fakeyudi/worklog/internal/config"
)

const (
	defaultPageSize    = 50
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultBackoff     = 2 * time.Second
)

var searchFields = []string{"summary", "status"}

// Client talks to one JIRA server using the credentials of a ServerProfile.
type Client struct {
	profile     config.ServerProfile
	jira        *jira.Client
	timeout     time.Duration
	transport   http.RoundTripper
	log         *slog.Logger
	pageSize    int
	maxAttempts int
	backoff     time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	bearer      bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithRetry bounds the number of attempts for retryable failures and the
// base delay between them. The delay grows linearly with the attempt number.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
		c.backoff = backoff
	}
}

// WithSleeper replaces the wait between retries (tests use a no-op).
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithTransport sets the base transport under the auth transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// WithPageSize sets maxResults for search pages.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// New returns a Client for p. It does not contact the server; call Connect to
// verify the credentials.
func New(p config.ServerProfile, opts ...Option) (*Client, error) {
	c := &Client{
		profile:     p,
		timeout:     defaultTimeout,
		log:         slog.Default(),
		pageSize:    defaultPageSize,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.rebuild(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) rebuild() error {
	var rt http.RoundTripper
	switch c.profile.AuthType {
	case config.AuthPAT:
		rt = &jira.PATAuthTransport{Token: c.profile.PAT, Transport: c.transport}
	case config.AuthCloudToken:
		if c.bearer {
			rt = &jira.BearerAuthTransport{Token: c.profile.APIToken, Transport: c.transport}
		} else {
			rt = &jira.BasicAuthTransport{Username: c.profile.Email, Password: c.profile.APIToken, Transport: c.transport}
		}
	default:
		return fmt.Errorf("unsupported authentication type %q for server %q", c.profile.AuthType, c.profile.Name)
	}
	jc, err := jira.NewClient(&http.Client{Transport: rt, Timeout: c.timeout}, c.profile.URL)
	if err != nil {
		return fmt.Errorf("creating JIRA client for %s: %w", c.profile.URL, err)
	}
	c.jira = jc
	return nil
}

// Connect verifies the credentials. For Jira Cloud profiles a rejected
// email + API token pair is retried once as a bearer token.
func (c *Client) Connect(ctx context.Context) (User, error) {
	u, err := c.Myself(ctx)
	if err == nil || c.profile.AuthType != config.AuthCloudToken || c.bearer || !IsUnauthorized(err) {
		return u, err
	}
	c.log.Debug("basic authentication rejected, trying bearer token", slog.String("server", c.profile.Name))
	c.bearer = true
	if rerr := c.rebuild(); rerr != nil {
		return User{}, rerr
	}
	return c.Myself(ctx)
}

// Myself returns the authenticated user.
func (c *Client) Myself(ctx context.Context) (User, error) {
	var u User
	err := c.do(ctx, "authenticate", true, func(ctx context.Context) (*jira.Response, error) {
		ju, resp, err := c.jira.User.GetSelfWithContext(ctx)
		if err != nil {
			return resp, err
		}
		u = User{Name: ju.Name, DisplayName: ju.DisplayName, Email: ju.EmailAddress}
		return resp, nil
	})
	return u, err
}

// SearchIssues runs jql and returns up to limit issues, or every matching
// issue when limit is zero.
func (c *Client) SearchIssues(ctx context.Context, jql string, limit int) ([]Issue, error) {
	var out []Issue
	err := c.do(ctx, "search issues", true, func(ctx context.Context) (*jira.Response, error) {
		out = out[:0]
		start := 0
		for {
			size := c.pageSize
			if limit > 0 && limit-len(out) < size {
				size = limit - len(out)
			}
			c.log.Debug("searching", slog.String("jql", jql), slog.Int("start_at", start), slog.Int("max_results", size))
			page, resp, err := c.jira.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{
				StartAt:    start,
				MaxResults: size,
				Fields:     searchFields,
			})
			if err != nil {
				return resp, err
			}
			for _, ji := range page {
				out = append(out, fromJira(ji))
			}
			if len(page) == 0 || (limit > 0 && len(out) >= limit) || resp.StartAt+len(page) >= resp.Total {
				return resp, nil
			}
			start = resp.StartAt + len(page)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetIssue fetches a single issue by key.
func (c *Client) GetIssue(ctx context.Context, key string) (Issue, error) {
	var is Issue
	err := c.do(ctx, "get issue "+key, true, func(ctx context.Context) (*jira.Response, error) {
		ji, resp, err := c.jira.Issue.GetWithContext(ctx, key, &jira.GetQueryOptions{Fields: strings.Join(searchFields, ",")})
		if err != nil {
			return resp, err
		}
		is = fromJira(*ji)
		return resp, nil
	})
	return is, err
}

// PostWorklog creates a worklog on entry.IssueKey and lets JIRA adjust the
// remaining estimate.
func (c *Client) PostWorklog(ctx context.Context, entry WorklogEntry) (Worklog, error) {
	if entry.Duration < time.Second {
		return Worklog{}, fmt.Errorf("worklog for %s: duration must be positive", entry.IssueKey)
	}
	started := jira.Time(entry.Started)
	if entry.Started.IsZero() {
		started = jira.Time(time.Now())
	}
	rec := &jira.WorklogRecord{
		Comment:          entry.Comment,
		TimeSpentSeconds: int(entry.Duration / time.Second),
		Started:          &started,
	}

	var wl Worklog
	err := c.do(ctx, "add worklog to "+entry.IssueKey, false, func(ctx context.Context) (*jira.Response, error) {
		created, resp, err := c.jira.Issue.AddWorklogRecordWithContext(ctx, entry.IssueKey, rec,
			jira.WithQueryOptions(&jira.AddWorklogQueryOptions{AdjustEstimate: "auto"}))
		if err != nil {
			return resp, err
		}
		wl = Worklog{ID: created.ID, IssueKey: entry.IssueKey, TimeSpentSeconds: created.TimeSpentSeconds}
		return resp, nil
	})
	return wl, err
}

// do runs call with the bounded retry policy. Requests that are not idempotent
// are only retried when the server said it did not process them (429, 503).
func (c *Client) do(ctx context.Context, op string, idempotent bool, call func(context.Context) (*jira.Response, error)) error {
	for attempt := 1; ; attempt++ {
		resp, err := call(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		status := statusCode(resp)
		if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
			return &RejectedError{Op: op, StatusCode: status, Message: trackerMessage(err)}
		}

		retryable := idempotent || status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
		if !retryable || attempt >= c.maxAttempts {
			return &UnavailableError{Op: op, Attempts: attempt, Err: err}
		}
		c.log.Warn("tracker request failed, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Int("status", status),
			slog.Any("error", err))
		if err := c.sleep(ctx, c.backoff*time.Duration(attempt)); err != nil {
			return err
		}
	}
}

func statusCode(resp *jira.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}

// trackerMessage extracts the tracker's own error text from a go-jira error.
func trackerMessage(err error) string {
	var jerr *jira.Error
	if errors.As(err, &jerr) {
		msgs := append([]string(nil), jerr.ErrorMessages...)
		fields := make([]string, 0, len(jerr.Errors))
		for field := range jerr.Errors {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			msgs = append(msgs, field+": "+jerr.Errors[field])
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return err.Error()
}

func fromJira(ji jira.Issue) Issue {
	is := Issue{Key: ji.Key}
	if ji.Fields != nil {
		is.Summary = ji.Fields.Summary
		if ji.Fields.Status != nil {
			is.Status = ji.Fields.Status.Name
			is.StatusCategory = ji.Fields.Status.StatusCategory.Name
		}
	}
	return is
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
