package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"node.town/callsense/task"
)

var submitCmd = &cobra.Command{
	Use:   "submit <file>",
	Short: "Upload a recording to a running server and wait for the analysis",
	Args:  cobra.ExactArgs(1),
	Run:   runSubmit,
}

func init() {
	submitCmd.Flags().
		String("server", "http://localhost:8000", "Base URL of the callsense server")
	submitCmd.Flags().
		Duration("interval", 2*time.Second, "How often to poll for the result")
}

func runSubmit(cmd *cobra.Command, args []string) {
	l := createLoggers()
	server, _ := cmd.Flags().GetString("server")
	interval, _ := cmd.Flags().GetDuration("interval")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client := &http.Client{Timeout: 5 * time.Minute}

	id, err := uploadCall(ctx, client, server, args[0])
	if err != nil {
		l.main.Fatal("upload", "file", args[0], "error", err)
	}
	l.main.Info("uploaded", "task", id)

	result, err := waitForResult(ctx, client, server, id, interval)
	if err != nil {
		l.main.Fatal("poll", "task", id, "error", err)
	}

	printTask(os.Stdout, result)
	if result.Status != task.StatusCompleted {
		os.Exit(1)
	}
}

type apiError struct {
	Error string `json:"error"`
}

func uploadCall(
	ctx context.Context,
	client *http.Client,
	server, path string,
) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = writer.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		strings.TrimSuffix(server, "/")+"/api/analyze-call",
		pr,
	)
	if err != nil {
		pr.Close()
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", responseError(resp)
	}

	var accepted struct {
		Message string `json:"message"`
		TaskID  string `json:"task_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if accepted.TaskID == "" {
		return "", fmt.Errorf("upload response has no task_id")
	}
	return accepted.TaskID, nil
}

func fetchResult(
	ctx context.Context,
	client *http.Client,
	server, id string,
) (task.Task, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		strings.TrimSuffix(server, "/")+"/api/results/"+url.PathEscape(id),
		nil,
	)
	if err != nil {
		return task.Task{}, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return task.Task{}, fmt.Errorf("get result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return task.Task{}, responseError(resp)
	}

	var t task.Task
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return task.Task{}, fmt.Errorf("decode result: %w", err)
	}
	return t, nil
}

// waitForResult polls until the task leaves processing. A not_found
// answer ends the wait as well, since the server has forgotten the task.
func waitForResult(
	ctx context.Context,
	client *http.Client,
	server, id string,
	interval time.Duration,
) (task.Task, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		t, err := fetchResult(ctx, client, server, id)
		if err != nil {
			return task.Task{}, err
		}
		if t.Status != task.StatusProcessing {
			return t, nil
		}

		select {
		case <-ctx.Done():
			return task.Task{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf(
		"server returned %d: %s",
		resp.StatusCode,
		strings.TrimSpace(string(body)),
	)
}

func printTask(w io.Writer, t task.Task) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Field", "Value"})
	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetAutoWrapText(true)
	table.SetColWidth(80)
	table.SetAutoFormatHeaders(true)

	table.Append([]string{"Task", t.ID})
	table.Append([]string{"Status", string(t.Status)})
	if t.Sentiment != "" {
		table.Append([]string{"Sentiment", t.Sentiment})
	}
	if t.SentimentScore != nil {
		table.Append([]string{"Score", fmt.Sprintf("%.2f", *t.SentimentScore)})
	}
	if t.Summary != "" {
		table.Append([]string{"Summary", t.Summary})
	}
	if t.Transcript != "" {
		table.Append([]string{"Transcript", t.Transcript})
	}
	if t.Error != "" {
		table.Append([]string{"Error", t.Error})
	}

	table.Render()
}
