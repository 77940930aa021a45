// Package browser drives a Chrome session to capture X API credentials.
package browser

import (
	"context"
	"errors"
	"sync"

	"github.com/chromedp/chromedp"

	"tweet-cleaner/pkg/log"
)

// PoolConfig selects how Chrome is started.
type PoolConfig struct {
	// RemoteURL attaches to an already running Chrome DevTools endpoint
	// (ws://...). When set, the exec options below are ignored.
	RemoteURL string

	ChromePath string
	// ProfileDir is a user-data-dir holding a logged-in X session.
	ProfileDir string
	Headless   bool
}

// Pool owns one Chrome process and hands out one tab at a time.
type Pool struct {
	cfg  PoolConfig
	opts []chromedp.ExecAllocatorOption

	mu          sync.Mutex
	ctx         context.Context
	cancelAlloc context.CancelFunc
	cancelCtx   context.CancelFunc

	tabs gate
}

// ErrPoolClosed is returned by WithTab after Close.
var ErrPoolClosed = errors.New("browser pool closed")

// NewPool starts Chrome and verifies it responds.
func NewPool(cfg PoolConfig) (*Pool, error) {
	p := &Pool{
		cfg:  cfg,
		opts: execOptions(cfg),
		tabs: newGate(1),
	}
	if err := p.start(); err != nil {
		return nil, err
	}
	return p, nil
}

func execOptions(cfg PoolConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-features", "Translate,BackForwardCache"),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-first-run", true),
	)
	if cfg.ProfileDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.ProfileDir))
	}
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}
	return opts
}

// start launches (or relaunches) Chrome.
func (p *Pool) start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	var allocCtx context.Context
	var cancelAlloc context.CancelFunc
	if p.cfg.RemoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(context.Background(), p.cfg.RemoteURL)
	} else {
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(context.Background(), p.opts...)
	}
	ctx, cancelCtx := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(ctx); err != nil {
		cancelCtx()
		cancelAlloc()
		return err
	}

	p.ctx = ctx
	p.cancelAlloc = cancelAlloc
	p.cancelCtx = cancelCtx
	log.GlobalInfo("chrome started", "remote", p.cfg.RemoteURL != "", "headless", p.cfg.Headless)
	return nil
}

func (p *Pool) stopLocked() {
	if p.cancelCtx != nil {
		p.cancelCtx()
	}
	if p.cancelAlloc != nil {
		p.cancelAlloc()
	}
	p.ctx, p.cancelCtx, p.cancelAlloc = nil, nil, nil
}

// WithTab runs fn in a fresh tab. Only one tab exists at a time; callers
// queue until the previous tab is closed or ctx is done. The tab is closed
// when fn returns or ctx is canceled.
func (p *Pool) WithTab(ctx context.Context, fn func(tabCtx context.Context) error) error {
	if err := p.tabs.acquire(ctx); err != nil {
		return err
	}
	defer p.tabs.release()

	tabCtx, cancel, err := p.newTab()
	if err != nil {
		return err
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return fn(tabCtx)
}

// newTab opens a tab, restarting Chrome once if the browser is gone.
func (p *Pool) newTab() (context.Context, context.CancelFunc, error) {
	p.mu.Lock()
	parent := p.ctx
	p.mu.Unlock()
	if parent == nil {
		return nil, nil, ErrPoolClosed
	}

	tabCtx, cancel := chromedp.NewContext(parent)
	err := chromedp.Run(tabCtx)
	if err == nil {
		return tabCtx, cancel, nil
	}
	cancel()
	log.GlobalWarn("chrome tab failed, restarting browser", "error", err)

	if err := p.start(); err != nil {
		return nil, nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx == nil {
		return nil, nil, ErrPoolClosed
	}
	tabCtx, cancel = chromedp.NewContext(p.ctx)
	return tabCtx, cancel, nil
}

// Close shuts Chrome down.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx != nil {
		p.stopLocked()
		log.GlobalInfo("chrome stopped")
	}
}

// gate is a counting semaphore whose acquire honors ctx.
type gate chan struct{}

func newGate(n int) gate {
	return make(gate, n)
}

func (g gate) acquire(ctx context.Context) error {
	select {
	case g <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g gate) release() {
	<-g
}
