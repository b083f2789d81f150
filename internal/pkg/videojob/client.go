package videojob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clearmarkhq/clearmark/internal/pkg/env"
)

// Client talks to the watermark-removal job API. Jobs run asynchronously:
// submission returns a task id, completion arrives via callback or polling.
const (
	defaultAPIBaseURL = "https://api.kie.ai"
	modelName         = "sora-watermark-remover"
)

type Client struct {
	APIKey     string
	APIBaseURL string

	HTTPClient *http.Client
}

// TaskStatus is the polled state of a submitted job. ResultURL is set once
// the job reaches the success state.
type TaskStatus struct {
	TaskID    string
	State     string
	ResultURL string
}

// CallbackPayload is what the job API posts to our callback endpoint when a
// task finishes.
type CallbackPayload struct {
	Code int          `json:"code"`
	Msg  string       `json:"msg"`
	Data CallbackData `json:"data"`
}

type CallbackData struct {
	TaskID    string `json:"taskId"`
	Status    string `json:"status"`
	OutputURL string `json:"outputUrl"`
}

// Succeeded reports whether the callback describes a completed task.
func (p *CallbackPayload) Succeeded() bool {
	return p.Code == http.StatusOK && p.Data.Status == "success"
}

func NewClientFromEnv() *Client {
	return &Client{
		APIKey:     strings.TrimSpace(env.GetEnv("VIDEOJOB_API_KEY", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("VIDEOJOB_API_BASE_URL", defaultAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type createTaskRequest struct {
	Model       string          `json:"model"`
	Input       createTaskInput `json:"input"`
	CallBackURL string          `json:"callBackUrl"`
}

type createTaskInput struct {
	VideoURL string `json:"video_url"`
}

type apiEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// SubmitRemoveWatermark starts a watermark-removal job for the given video
// URL and returns the provider task id.
func (c *Client) SubmitRemoveWatermark(ctx context.Context, videoURL, callbackURL string) (string, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return "", errors.New("VIDEOJOB_API_KEY is not configured")
	}
	if strings.TrimSpace(videoURL) == "" {
		return "", errors.New("video url is required")
	}

	payload, err := json.Marshal(createTaskRequest{
		Model:       modelName,
		Input:       createTaskInput{VideoURL: videoURL},
		CallBackURL: callbackURL,
	})
	if err != nil {
		return "", err
	}

	body, err := c.do(ctx, http.MethodPost, "/api/v1/jobs/createTask", payload)
	if err != nil {
		return "", err
	}

	var data struct {
		TaskID string `json:"taskId"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("invalid task response: %w", err)
	}
	if data.TaskID == "" {
		return "", errors.New("task response missing task id")
	}
	return data.TaskID, nil
}

// FetchTaskStatus polls the record endpoint for one task. The result URL is
// buried in a JSON-encoded string field; the first entry wins.
func (c *Client) FetchTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, errors.New("task id is required")
	}

	q := url.Values{}
	q.Set("taskId", taskID)
	body, err := c.do(ctx, http.MethodGet, "/api/v1/jobs/recordInfo?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		TaskID     string `json:"taskId"`
		State      string `json:"state"`
		ResultJSON string `json:"resultJson"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("invalid status response: %w", err)
	}

	status := &TaskStatus{TaskID: data.TaskID, State: data.State}
	if data.ResultJSON != "" {
		var result struct {
			ResultURLs []string `json:"resultUrls"`
		}
		if err := json.Unmarshal([]byte(data.ResultJSON), &result); err == nil && len(result.ResultURLs) > 0 {
			status.ResultURL = result.ResultURLs[0]
		}
	}
	return status, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) (json.RawMessage, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("job api error: status=%d body=%s", resp.StatusCode, string(body))
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("invalid job api response: %w; body=%s", err, string(body))
	}
	if envelope.Code != http.StatusOK {
		return nil, fmt.Errorf("job api error: code=%d msg=%s", envelope.Code, envelope.Msg)
	}
	if envelope.Data == nil {
		return nil, errors.New("job api response missing data")
	}
	return envelope.Data, nil
}
