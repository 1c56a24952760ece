package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"reelnotes/internal/services"
)

// fileInfo describes an uploaded file as reported by the Files API.
type fileInfo struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType"`
	State    string `json:"state"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type fileEnvelope struct {
	File fileInfo `json:"file"`
}

// uploadFile pushes the media file through the resumable upload protocol and
// returns the created file resource. The file may still be PROCESSING on
// return; callers poll with waitForActive before referencing it.
func (c *Client) uploadFile(ctx context.Context, path string) (fileInfo, error) {
	var empty fileInfo
	data, err := os.ReadFile(path)
	if err != nil {
		return empty, services.Wrap(services.ErrStorage, "enhance", "upload", "read media file", err)
	}
	mimeType := videoMIMEType(path)

	metadata, err := json.Marshal(map[string]map[string]string{
		"file": {"display_name": filepath.Base(path)},
	})
	if err != nil {
		return empty, fmt.Errorf("gemini upload: encode metadata: %w", err)
	}
	startURL := c.cfg.BaseURL + "/upload/v1beta/files"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, startURL, bytes.NewReader(metadata))
	if err != nil {
		return empty, fmt.Errorf("gemini upload: new request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Upload-Protocol", "resumable")
	req.Header.Set("X-Goog-Upload-Command", "start")
	req.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.Itoa(len(data)))
	req.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, c.classify("upload", fmt.Errorf("gemini upload: start session: %w", err))
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return empty, c.classify("upload", &httpStatusError{StatusCode: resp.StatusCode})
	}
	sessionURL := resp.Header.Get("X-Goog-Upload-URL")
	if sessionURL == "" {
		return empty, errors.New("gemini upload: no upload url in start response")
	}

	body, err := c.doJSON(ctx, http.MethodPost, sessionURL, data, map[string]string{
		"Content-Type":          mimeType,
		"X-Goog-Upload-Command": "upload, finalize",
		"X-Goog-Upload-Offset":  "0",
	})
	if err != nil {
		return empty, c.classify("upload", err)
	}
	var envelope fileEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return empty, fmt.Errorf("gemini upload: decode response: %w", err)
	}
	if envelope.File.Name == "" {
		return empty, errors.New("gemini upload: response carries no file name")
	}
	envelope.File.MIMEType = mimeType
	return envelope.File, nil
}

// waitForActive polls the file resource until it leaves the PROCESSING state.
func (c *Client) waitForActive(ctx context.Context, name string) (fileInfo, error) {
	var empty fileInfo
	endpoint := c.fileEndpoint(name)
	for {
		body, err := c.doJSON(ctx, http.MethodGet, endpoint, nil, nil)
		if err != nil {
			return empty, c.classify("upload", err)
		}
		var info fileInfo
		if err := json.Unmarshal(body, &info); err != nil {
			return empty, fmt.Errorf("gemini upload: decode file state: %w", err)
		}
		switch info.State {
		case "ACTIVE":
			return info, nil
		case "FAILED":
			message := "file processing failed"
			if info.Error != nil && info.Error.Message != "" {
				message = info.Error.Message
			}
			return empty, services.Wrap(services.ErrExternalTool, "enhance", "upload", message, nil)
		}
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return empty, c.classify("upload", err)
		}
	}
}

// deleteFile removes an uploaded file resource.
func (c *Client) deleteFile(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	_, err := c.doJSON(ctx, http.MethodDelete, c.fileEndpoint(name), nil, nil)
	return err
}

// fileEndpoint resolves a file resource name ("files/abc123") to its URL.
func (c *Client) fileEndpoint(name string) string {
	return c.cfg.BaseURL + "/v1beta/" + strings.TrimPrefix(name, "/")
}

func videoMIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".mov":
		return "video/quicktime"
	default:
		return "video/mp4"
	}
}
