package enrich

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ErrNoChrome indicates no Chrome binary was found on PATH.
var ErrNoChrome = errors.New("no chrome binary found")

var chromeNames = []string{"google-chrome", "chromium-browser", "chromium", "chrome"}

// Renderer re-fetches script-gated pages through headless Chrome.
type Renderer struct {
	allocator   context.Context
	allocCancel context.CancelFunc
	userAgent   string
	timeout     time.Duration
}

// NewRenderer probes PATH for a Chrome binary and prepares an exec
// allocator. The browser itself starts lazily on the first render.
func NewRenderer(userAgent string, timeout time.Duration) (*Renderer, error) {
	if _, err := chromeBinary(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 25 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Renderer{
		allocator:   allocCtx,
		allocCancel: allocCancel,
		userAgent:   userAgent,
		timeout:     timeout,
	}, nil
}

// Close cancels the allocator context.
func (r *Renderer) Close() {
	if r == nil {
		return
	}
	r.allocCancel()
}

// Render navigates to url and returns the rendered outer HTML.
func (r *Renderer) Render(ctx context.Context, url string) ([]byte, error) {
	taskCtx, cancelTab := chromedp.NewContext(r.allocator)
	defer cancelTab()

	taskCtx, cancel := context.WithTimeout(taskCtx, r.timeout)
	defer cancel()

	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	var html string
	actions := []chromedp.Action{network.Enable()}
	if r.userAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(r.userAgent))
	}
	actions = append(actions,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return nil, fmt.Errorf("chromedp run: %w", err)
	}
	return []byte(html), nil
}

func chromeBinary() (string, error) {
	for _, name := range chromeNames {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrNoChrome
}

// forwardCancel propagates cancellation from the caller's context into
// the chromedp task context.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
