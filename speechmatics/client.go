package speechmatics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

const (
	BaseURL             = "https://asr.api.speechmatics.com/v2"
	DefaultPollInterval = 5 * time.Second
)

// ErrJobFailed is returned when a batch job ends in a non-done state.
var ErrJobFailed = errors.New("speechmatics job failed")

type Client struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *log.Logger
}

func NewClient(apiKey string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		APIKey:     apiKey,
		BaseURL:    BaseURL,
		HTTPClient: &http.Client{},
		Logger:     logger,
	}
}

type OperatingPoint string

const (
	OperatingPointStandard OperatingPoint = "standard"
	OperatingPointEnhanced OperatingPoint = "enhanced"
)

type TranscriptionConfig struct {
	Language       string         `json:"language"`
	OperatingPoint OperatingPoint `json:"operating_point,omitempty"`
	Diarization    string         `json:"diarization,omitempty"`
}

type JobConfig struct {
	Type                string               `json:"type"`
	TranscriptionConfig *TranscriptionConfig `json:"transcription_config,omitempty"`
}

type JobResponse struct {
	ID string `json:"id"`
}

type JobDetails struct {
	CreatedAt time.Time `json:"created_at"`
	DataName  string    `json:"data_name"`
	Duration  int       `json:"duration"`
	ID        string    `json:"id"`
	Status    string    `json:"status"`
}

func (c *Client) CreateJob(
	ctx context.Context,
	audioFilePath string,
	config JobConfig,
) (*JobResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	file, err := os.Open(audioFilePath)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer file.Close()

	part, err := writer.CreateFormFile("data_file", filepath.Base(audioFilePath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy audio: %w", err)
	}

	configJSON, err := json.Marshal(config)
	if err != nil {
		return nil, err
	}
	if err := writer.WriteField("config", string(configJSON)); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, "/jobs", body, writer.FormDataContentType(), http.StatusCreated)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var jobResponse JobResponse
	if err := json.NewDecoder(resp.Body).Decode(&jobResponse); err != nil {
		return nil, fmt.Errorf("decode job response: %w", err)
	}
	return &jobResponse, nil
}

func (c *Client) GetJobDetails(
	ctx context.Context,
	jobID string,
) (*JobDetails, error) {
	resp, err := c.do(ctx, http.MethodGet, "/jobs/"+jobID, nil, "", http.StatusOK)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var wrappedResponse struct {
		Job JobDetails `json:"job"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrappedResponse); err != nil {
		return nil, fmt.Errorf("decode job details: %w", err)
	}
	return &wrappedResponse.Job, nil
}

// GetTranscript fetches a finished job's transcript as plain text.
func (c *Client) GetTranscript(ctx context.Context, jobID string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/jobs/"+jobID+"/transcript?format=txt", nil, "", http.StatusOK)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	transcript, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(transcript), nil
}

func (c *Client) DeleteJob(ctx context.Context, jobID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/jobs/"+jobID, nil, "", http.StatusOK)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (c *Client) WaitForJobCompletion(
	ctx context.Context,
	jobID string,
	pollInterval time.Duration,
) (*JobDetails, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			jobDetails, err := c.GetJobDetails(ctx, jobID)
			if err != nil {
				return nil, err
			}

			c.Logger.Debug("speechmatics", "job", jobID, "status", jobDetails.Status)
			switch jobDetails.Status {
			case "done":
				return jobDetails, nil
			case "rejected", "deleted", "expired":
				return nil, fmt.Errorf("%w: %s", ErrJobFailed, jobDetails.Status)
			}
		}
	}
}

// SubmitAndWaitForTranscript runs one batch job end to end. The job is
// deleted on the provider side once the transcript has been read, or when
// anything after creation fails.
func (c *Client) SubmitAndWaitForTranscript(
	ctx context.Context,
	audioFilePath string,
	transcriptionConfig TranscriptionConfig,
	pollInterval time.Duration,
) (string, error) {
	config := JobConfig{
		Type:                "transcription",
		TranscriptionConfig: &transcriptionConfig,
	}
	jobResponse, err := c.CreateJob(ctx, audioFilePath, config)
	if err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}
	defer func() {
		if err := c.DeleteJob(context.WithoutCancel(ctx), jobResponse.ID); err != nil {
			c.Logger.Warn("delete job", "job", jobResponse.ID, "error", err)
		}
	}()

	if _, err := c.WaitForJobCompletion(ctx, jobResponse.ID, pollInterval); err != nil {
		return "", fmt.Errorf("failed while waiting for job completion: %w", err)
	}

	transcript, err := c.GetTranscript(ctx, jobResponse.ID)
	if err != nil {
		return "", fmt.Errorf("failed to get transcript: %w", err)
	}
	return transcript, nil
}

func (c *Client) do(
	ctx context.Context,
	method, path string,
	body io.Reader,
	contentType string,
	wantStatus int,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != wantStatus {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf(
			"unexpected status code: %d, response body: %s",
			resp.StatusCode,
			string(msg),
		)
	}
	return resp, nil
}
