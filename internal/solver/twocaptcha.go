package solver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTwoCaptchaBaseURL = "http://2captcha.com"

// TwoCaptcha solves challenges through the 2captcha.com HTTP API
// (in.php submit, res.php poll).
type TwoCaptcha struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger

	pollEvery time.Duration
	maxWait   time.Duration
}

// NewTwoCaptcha creates a 2captcha client. baseURL overrides the service
// endpoint; pass "" for the production API.
func NewTwoCaptcha(apiKey, baseURL string, logger *slog.Logger) *TwoCaptcha {
	if baseURL == "" {
		baseURL = defaultTwoCaptchaBaseURL
	}
	return &TwoCaptcha{
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
		pollEvery: 5 * time.Second,
		maxWait:   120 * time.Second,
	}
}

// Name implements Solver.
func (t *TwoCaptcha) Name() string { return "2captcha" }

// CanSolve implements Solver.
func (t *TwoCaptcha) CanSolve(method string) bool {
	return method == MethodFunCaptcha || method == MethodImage
}

// apiResponse is the json=1 envelope used by both in.php and res.php.
type apiResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

// Solve implements Solver.
func (t *TwoCaptcha) Solve(ctx context.Context, p Params) (*Result, error) {
	start := time.Now()

	var (
		taskID string
		err    error
	)
	switch p.Method {
	case MethodFunCaptcha:
		taskID, err = t.submitFunCaptcha(ctx, p)
	case MethodImage:
		taskID, err = t.submitImage(ctx, p)
	default:
		return nil, &Error{Message: fmt.Sprintf("unsupported method %q", p.Method)}
	}
	if err != nil {
		return nil, err
	}

	t.logger.Info("challenge submitted to solver",
		"provider", t.Name(),
		"method", p.Method,
		"task_id", taskID,
	)

	token, err := t.poll(ctx, taskID)
	if err != nil {
		return nil, err
	}

	return &Result{Token: token, Elapsed: time.Since(start)}, nil
}

// submitFunCaptcha posts a FunCaptcha task and returns the task id.
func (t *TwoCaptcha) submitFunCaptcha(ctx context.Context, p Params) (string, error) {
	form := url.Values{}
	form.Set("key", t.apiKey)
	form.Set("method", "funcaptcha")
	form.Set("publickey", p.SiteKey)
	form.Set("pageurl", p.PageURL)
	form.Set("json", "1")
	return t.submit(ctx, form)
}

// submitImage downloads the challenge image and posts it base64-encoded.
func (t *TwoCaptcha) submitImage(ctx context.Context, p Params) (string, error) {
	img, err := t.fetchImage(ctx, p.ImageURL)
	if err != nil {
		return "", &Error{Message: "fetch challenge image", Cause: err}
	}

	form := url.Values{}
	form.Set("key", t.apiKey)
	form.Set("method", "base64")
	form.Set("body", base64.StdEncoding.EncodeToString(img))
	form.Set("json", "1")
	return t.submit(ctx, form)
}

func (t *TwoCaptcha) fetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch returned %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

// submit posts a form to in.php and returns the accepted task id.
func (t *TwoCaptcha) submit(ctx context.Context, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.baseURL+"/in.php", strings.NewReader(form.Encode()))
	if err != nil {
		return "", &Error{Message: "build submit request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", &Error{Message: "submit task", Cause: err}
	}
	defer resp.Body.Close()

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &Error{Message: "decode submit response", Cause: err}
	}
	if body.Status != 1 {
		return "", &Error{Message: "task rejected: " + body.Request}
	}
	return body.Request, nil
}

// poll queries res.php until the task resolves or maxWait elapses.
func (t *TwoCaptcha) poll(ctx context.Context, taskID string) (string, error) {
	deadline := time.Now().Add(t.maxWait)
	ticker := time.NewTicker(t.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			return "", ErrTimeout
		}

		q := url.Values{}
		q.Set("key", t.apiKey)
		q.Set("action", "get")
		q.Set("id", taskID)
		q.Set("json", "1")

		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			t.baseURL+"/res.php?"+q.Encode(), nil)
		if err != nil {
			return "", &Error{Message: "build poll request", Cause: err}
		}

		resp, err := t.client.Do(req)
		if err != nil {
			return "", &Error{Message: "poll task", Cause: err}
		}

		var body apiResponse
		decErr := json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if decErr != nil {
			return "", &Error{Message: "decode poll response", Cause: decErr}
		}

		switch {
		case body.Status == 1:
			return body.Request, nil
		case body.Request == "CAPCHA_NOT_READY":
			continue
		default:
			return "", &Error{Message: "task failed: " + body.Request}
		}
	}
}

// Balance implements Solver via res.php action=getbalance.
func (t *TwoCaptcha) Balance(ctx context.Context) (float64, error) {
	q := url.Values{}
	q.Set("key", t.apiKey)
	q.Set("action", "getbalance")
	q.Set("json", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		t.baseURL+"/res.php?"+q.Encode(), nil)
	if err != nil {
		return 0, &Error{Message: "build balance request", Cause: err}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, &Error{Message: "fetch balance", Cause: err}
	}
	defer resp.Body.Close()

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, &Error{Message: "decode balance response", Cause: err}
	}
	if body.Status != 1 {
		return 0, &Error{Message: "balance lookup failed: " + body.Request}
	}

	bal, err := strconv.ParseFloat(body.Request, 64)
	if err != nil {
		return 0, &Error{Message: "parse balance " + body.Request, Cause: err}
	}
	return bal, nil
}
