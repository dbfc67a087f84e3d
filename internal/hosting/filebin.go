package hosting

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultAPIURL = "https://filebin.net"

	uploadTimeout = 10 * time.Minute
)

var unsafeFilenameRe = regexp.MustCompile(`[^\w.\-]+`)

// HostedFile describes an uploaded file and where to get it
type HostedFile struct {
	URL       string
	Filename  string
	SizeLabel string // human readable size as reported by the host
	Expiry    string // relative expiry, e.g. "in 6 days"
}

// Client talks to the file-hosting API
type Client struct {
	apiURL     string
	clientID   string
	httpClient *http.Client
}

// NewClient creates a hosting client. An empty apiURL falls back to the
// public filebin endpoint.
func NewClient(apiURL, clientID string) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		apiURL:     apiURL,
		clientID:   clientID,
		httpClient: &http.Client{Timeout: uploadTimeout},
	}
}

// Upload posts the file into a fresh bin and returns its link description
func (c *Client) Upload(ctx context.Context, path string) (*HostedFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	bin := uuid.New().String()
	filename := SafeFilename(filepath.Base(path))
	url := fmt.Sprintf("%s/%s/%s", c.apiURL, bin, filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, file)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/octet-stream")
	if c.clientID != "" {
		req.Header.Set("cid", c.clientID)
	}
	if info, err := file.Stat(); err == nil {
		req.ContentLength = info.Size()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("upload %s: unexpected status %d", filename, resp.StatusCode)
	}

	var body struct {
		File struct {
			Filename      string `json:"filename"`
			BytesReadable string `json:"bytes_readable"`
		} `json:"file"`
		Bin struct {
			ExpiredAtRelative string `json:"expired_at_relative"`
		} `json:"bin"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}

	return &HostedFile{
		URL:       fmt.Sprintf("%s/%s", c.apiURL, bin),
		Filename:  body.File.Filename,
		SizeLabel: body.File.BytesReadable,
		Expiry:    body.Bin.ExpiredAtRelative,
	}, nil
}

// SafeFilename strips characters the hosting API rejects
func SafeFilename(name string) string {
	cleaned := unsafeFilenameRe.ReplaceAllString(name, "-")
	if cleaned == "" {
		return "download"
	}
	return cleaned
}
