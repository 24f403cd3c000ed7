package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Default viewport of a landscape 13.3" e-paper panel.
const (
	DefaultWidth   = 1304
	DefaultHeight  = 984
	DefaultTimeout = 45 * time.Second
)

// ReadySelector matches the dashboard root once every section has loaded.
const ReadySelector = `body[data-ready="true"]`

// Options defines one headless screenshot.
type Options struct {
	// URL of the dashboard, e.g. "http://127.0.0.1:3000/".
	URL string

	// OutputPath receives the PNG.
	OutputPath string

	// Width and Height are the viewport in pixels; zero means default.
	Width  int
	Height int

	// Username and Password are sent as basic auth when set.
	Username string
	Password string

	Timeout time.Duration
}

func (o *Options) normalize() error {
	if o.URL == "" {
		return fmt.Errorf("capture: URL is required")
	}
	if o.OutputPath == "" {
		return fmt.Errorf("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return nil
}

// DashboardPNG navigates headless Chromium to opts.URL, waits for the page
// to mark itself ready and writes a full-page PNG to opts.OutputPath.
//
// The page sets data-ready="true" on <body> after the first load of every
// section, so the screenshot never shows loading placeholders.
func DashboardPNG(parent context.Context, opts Options) error {
	if err := opts.normalize(); err != nil {
		return err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.WindowSize(opts.Width, opts.Height),
		)...,
	)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
	}
	if opts.Username != "" {
		// Credentials in the URL would break the page's relative fetches.
		tasks = append(tasks,
			network.Enable(),
			network.SetExtraHTTPHeaders(network.Headers{"Authorization": basicAuth(opts.Username, opts.Password)}),
		)
	}
	tasks = append(tasks,
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		// let webfonts and icons paint
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	)
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	return writeAtomic(opts.OutputPath, png)
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

// writeAtomic replaces path so /preview.png never serves a half-written file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".preview-*.png")
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
