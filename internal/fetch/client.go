package fetch

import (
	"archive/zip"
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/ampline/ampline/internal/config"
	apperrors "github.com/ampline/ampline/internal/errors"
	"github.com/ampline/ampline/pkg/types"
)

// exportPath is the export endpoint relative to the API base URL. Exports
// are served at hourly granularity as a ZIP of gzipped JSON-lines files.
const exportPath = "/api/2/export"

// Client downloads hourly export archives and extracts the events matching
// one user. It implements EventSource.
type Client struct {
	httpClient *retryablehttp.Client
	baseURL    string
	authHeader string
}

// NewClient creates an export API client from the given configuration.
func NewClient(cfg config.ExportConfig) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.MaxRetries
	rc.HTTPClient.Timeout = cfg.RequestTimeout
	rc.Logger = nil // progress is reported per hour, not per attempt

	credentials := cfg.APIKey + ":" + cfg.SecretKey
	encoded := base64.StdEncoding.EncodeToString([]byte(credentials))

	return &Client{
		httpClient: rc,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		authHeader: "Basic " + encoded,
	}
}

// Events downloads every hourly export in [start, end] and returns the
// events matching userID, in download order. Individual hours that fail are
// logged and skipped; only context cancellation aborts the range.
func (c *Client) Events(ctx context.Context, userID string, start, end time.Time) ([]types.RawEvent, error) {
	var all []types.RawEvent

	startDay := start.Truncate(24 * time.Hour)
	endDay := end.Truncate(24 * time.Hour)
	for day := startDay; !day.After(endDay); day = day.AddDate(0, 0, 1) {
		for hour := 0; hour < 24; hour++ {
			if err := ctx.Err(); err != nil {
				return all, err
			}

			events, err := c.downloadHour(ctx, day, hour)
			if err != nil {
				log.Printf("fetch: %s hour %02d: %v", day.Format("20060102"), hour, err)
				continue
			}
			for _, event := range events {
				if event.MatchesUser(userID) {
					all = append(all, event)
				}
			}
		}
	}

	return all, nil
}

// downloadHour fetches one hourly archive. A 404 means no data for that
// hour and yields no events and no error.
func (c *Client) downloadHour(ctx context.Context, day time.Time, hour int) ([]types.RawEvent, error) {
	stamp := fmt.Sprintf("%sT%02d", day.Format("20060102"), hour)
	url := fmt.Sprintf("%s%s?start=%s&end=%s", c.baseURL, exportPath, stamp, stamp)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewFetchError(apperrors.CodeExportRequestFailed,
			"failed to build export request", err)
	}
	req.Header.Set("Authorization", c.authHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewFetchError(apperrors.CodeExportRequestFailed,
			fmt.Sprintf("export request for %s failed", stamp), err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to extraction
	case http.StatusNotFound:
		return nil, nil
	default:
		io.Copy(io.Discard, resp.Body)
		return nil, apperrors.NewFetchError(apperrors.CodeExportRequestFailed,
			fmt.Sprintf("export request for %s returned status %d", stamp, resp.StatusCode), nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewFetchError(apperrors.CodeExportRequestFailed,
			fmt.Sprintf("failed to read export body for %s", stamp), err)
	}

	return extractArchive(data)
}

// extractArchive unpacks a ZIP of JSON-lines files, transparently gunzipping
// .gz members. Undecodable lines are logged and skipped so one corrupt line
// never discards an hour of data.
func extractArchive(data []byte) ([]types.RawEvent, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperrors.NewFetchError(apperrors.CodeBadArchive,
			"export response is not a valid ZIP archive", err)
	}

	var events []types.RawEvent
	for _, member := range zr.File {
		f, err := member.Open()
		if err != nil {
			return nil, apperrors.NewFetchError(apperrors.CodeBadArchive,
				fmt.Sprintf("cannot open archive member %s", member.Name), err)
		}

		var reader io.Reader = f
		var gz *gzip.Reader
		if strings.HasSuffix(member.Name, ".gz") {
			gz, err = gzip.NewReader(f)
			if err != nil {
				f.Close()
				return nil, apperrors.NewFetchError(apperrors.CodeBadArchive,
					fmt.Sprintf("cannot gunzip archive member %s", member.Name), err)
			}
			reader = gz
		}

		scanner := bufio.NewScanner(reader)
		scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var event types.RawEvent
			if err := json.Unmarshal(line, &event); err != nil {
				log.Printf("fetch: skipping undecodable line %d in %s: %v", lineNum, member.Name, err)
				continue
			}
			events = append(events, event)
		}
		scanErr := scanner.Err()

		if gz != nil {
			gz.Close()
		}
		f.Close()

		if scanErr != nil {
			return nil, apperrors.NewFetchError(apperrors.CodeBadArchive,
				fmt.Sprintf("failed reading archive member %s", member.Name), scanErr)
		}
	}

	return events, nil
}
