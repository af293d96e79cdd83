// Package nomads downloads OFS NetCDF fields files from the NCEP NOMADS
// HTTP archive, one file per forecast lead hour.
package nomads

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/couchcryptid/ofs-s111/internal/domain"
)

// DefaultBaseURL is the production NOMADS server.
const DefaultBaseURL = "https://nomads.ncep.noaa.gov"

// remotePathFormat is the archive path of one fields file. Arguments: model,
// cycle date (YYYYMMDD), model, lead hour, cycle date, cycle hour of day.
const remotePathFormat = "/pub/data/nccf/com/nos/prod/%s.%s/nos.%s.fields.f%03d.%s.t%02dz.nc"

// Client fetches forecast cycles from the archive. Downloads for distinct
// lead hours run concurrently; results are always returned in ascending hour
// order with per-hour failures carried as gaps.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	workers  int
	attempts int
}

// Option adjusts Client construction.
type Option func(*Client)

// WithWorkers sets the number of concurrent downloads (default 4).
func WithWorkers(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithAttempts sets the per-hour attempt count (default 3).
func WithAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithBaseURL overrides the archive base URL, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// NewClient creates an archive client. timeout bounds each single-file
// request; a fields file can run to hundreds of megabytes, so callers should
// allow minutes rather than seconds.
func NewClient(timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:   logger,
		workers:  4,
		attempts: 3,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// URL returns the remote URL of one fields file.
func (c *Client) URL(m domain.Model, cycle domain.Cycle, hour int) string {
	date := cycle.Time().Format("20060102")
	return c.baseURL + fmt.Sprintf(remotePathFormat, m.ID, date, m.ID, hour, date, cycle.Time().Hour())
}

// LocalName returns the file name a fields file is stored under.
func LocalName(m domain.Model, cycle domain.Cycle, hour int) string {
	date := cycle.Time().Format("20060102")
	return fmt.Sprintf("nos.%s.fields.f%03d.%s.t%02dz.nc", m.ID, hour, date, cycle.Time().Hour())
}

// FetchCycle downloads every configured lead hour of the cycle into
// dir/<model>/, reusing files already present and valid. The returned slice
// has one entry per configured hour in ascending order; hours that could not
// be retrieved carry their error. FetchCycle itself only fails when the
// download directory cannot be prepared or the context is cancelled.
func (c *Client) FetchCycle(ctx context.Context, m domain.Model, cycle domain.Cycle, dir string) ([]domain.HourFile, error) {
	modelDir := filepath.Join(dir, m.ID)
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}

	hours := m.ForecastHours()
	results := make([]domain.HourFile, len(hours))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < c.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				hour := hours[i]
				path := filepath.Join(modelDir, LocalName(m, cycle, hour))
				err := c.fetchHour(ctx, m, cycle, hour, path)
				if err != nil {
					results[i] = domain.HourFile{Hour: hour, Err: err}
					c.logger.Warn("forecast hour unavailable",
						"model", m.ID, "cycle", cycle.String(), "hour", hour, "error", err)
					continue
				}
				results[i] = domain.HourFile{Hour: hour, Path: path}
			}
		}()
	}

	for i := range hours {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.logger.Info("cycle download finished",
		"model", m.ID, "cycle", cycle.String(),
		"available", domain.Available(results), "gaps", len(domain.GapHours(results)))
	return results, nil
}

// fetchHour downloads a single fields file, retrying transient failures.
// An existing valid local file short-circuits the download.
func (c *Client) fetchHour(ctx context.Context, m domain.Model, cycle domain.Cycle, hour int, path string) error {
	if isNetCDF(path) {
		c.logger.Debug("reusing cached file", "path", path)
		return nil
	}

	url := c.URL(m, cycle, hour)
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt-1) * 2 * time.Second):
			}
		}
		lastErr = c.download(ctx, url, path)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}

func (c *Client) download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	tmp := path + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	_, err = io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}

	if !isNetCDF(tmp) {
		// The archive serves HTML error pages with status 200 for some
		// missing files; treat anything without a NetCDF signature as absent.
		_ = os.Remove(tmp)
		return fmt.Errorf("fetch %s: response is not a NetCDF file", url)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("finalize %s: %w", path, err)
	}
	return nil
}

// NetCDF file signatures: classic ("CDF\x01"/"CDF\x02") and netCDF-4, which
// is HDF5 underneath ("\x89HDF").
var netcdfMagics = [][]byte{
	{'C', 'D', 'F', 0x01},
	{'C', 'D', 'F', 0x02},
	{0x89, 'H', 'D', 'F'},
}

func isNetCDF(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	header := make([]byte, 4)
	if _, err := io.ReadFull(f, header); err != nil {
		return false
	}
	for _, magic := range netcdfMagics {
		if bytes.Equal(header, magic) {
			return true
		}
	}
	return false
}
