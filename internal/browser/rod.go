package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AlfredBerg/docs-table-scraper/internal/js"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

const consentXPath = `//a[@class='call' and contains(text(), 'Accept all')]`

// Options configures how sessions are started.
type Options struct {
	StartURL string
	// Bin is the browser binary. Empty lets rod find or download one.
	Bin      string
	Headless bool
	Width    int
	Height   int
	Zoom     string

	LoadTimeout    time.Duration
	ConsentTimeout time.Duration
	InitialWait    time.Duration
	ReloadWait     time.Duration

	Trace bool
	Log   *zap.Logger
}

// RodLauncher starts one Chromium process per session.
type RodLauncher struct {
	Options Options
}

func (l *RodLauncher) Launch(ctx context.Context) (Session, error) {
	o := l.Options
	if o.Log == nil {
		o.Log = zap.NewNop()
	}

	ln := launcher.New().
		Context(ctx).
		Headless(o.Headless).
		NoSandbox(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("window-size", fmt.Sprintf("%d,%d", o.Width, o.Height))
	if o.Bin != "" {
		ln = ln.Bin(o.Bin)
	}

	url, err := ln.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	b := rod.New().ControlURL(url).Trace(o.Trace).Context(ctx)
	if err := b.Connect(); err != nil {
		ln.Kill()
		ln.Cleanup()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	//Don't download files in the browser, e.g. pdf files
	_ = proto.BrowserSetDownloadBehavior{
		Behavior:         proto.BrowserSetDownloadBehaviorBehaviorDeny,
		BrowserContextID: b.BrowserContextID,
	}.Call(b)

	return &rodSession{opts: o, launcher: ln, browser: b}, nil
}

type rodSession struct {
	opts     Options
	launcher *launcher.Launcher
	browser  *rod.Browser

	page  *rod.Page
	frame *rod.Page

	closeOnce sync.Once
	closeErr  error
}

func (s *rodSession) Open(ctx context.Context) error {
	log := s.opts.Log

	page, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("creating page: %w", err)
	}
	s.page = page

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.opts.Width,
		Height:            s.opts.Height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		return fmt.Errorf("setting viewport: %w", err)
	}

	if err := s.load(ctx, func(p *rod.Page) error { return p.Navigate(s.opts.StartURL) }); err != nil {
		return fmt.Errorf("loading %s: %w", s.opts.StartURL, err)
	}
	if err := Sleep(ctx, s.opts.InitialWait); err != nil {
		return err
	}

	if err := s.selectFrame(ctx); err != nil {
		return err
	}
	s.acceptConsent(ctx)

	if err := s.load(ctx, (*rod.Page).Reload); err != nil {
		return fmt.Errorf("reloading: %w", err)
	}
	if err := Sleep(ctx, s.opts.ReloadWait); err != nil {
		return err
	}
	// the reload detached the previous frame
	if err := s.selectFrame(ctx); err != nil {
		return err
	}

	if _, err := s.frame.Context(ctx).Eval(js.SET_ZOOM, s.opts.Zoom); err != nil {
		log.Warn("failed setting zoom", zap.String("zoom", s.opts.Zoom), zap.Error(err))
	}
	return nil
}

func (s *rodSession) load(ctx context.Context, action func(*rod.Page) error) error {
	tctx, cancel := context.WithTimeout(ctx, s.opts.LoadTimeout)
	defer cancel()

	p := s.page.Context(tctx)
	if err := action(p); err != nil {
		return err
	}
	return p.WaitLoad()
}

// selectFrame picks the content iframe: the second one when the page has
// several, the only one otherwise.
func (s *rodSession) selectFrame(ctx context.Context) error {
	tctx, cancel := context.WithTimeout(ctx, s.opts.LoadTimeout)
	defer cancel()

	if _, err := s.page.Context(tctx).Element("iframe"); err != nil {
		return fmt.Errorf("%w: %w", ErrNoFrame, err)
	}
	frames, err := s.page.Context(ctx).Elements("iframe")
	if err != nil {
		return fmt.Errorf("listing frames: %w", err)
	}
	if frames.Empty() {
		return ErrNoFrame
	}
	el := frames.First()
	if len(frames) > 1 {
		el = frames[1]
	}

	frame, err := el.Context(tctx).Frame()
	if err != nil {
		return fmt.Errorf("entering frame: %w", err)
	}
	if err := frame.Wait(rod.Eval(js.CONTENT_READY)); err != nil {
		return fmt.Errorf("waiting for frame: %w", err)
	}
	s.frame = frame.Context(ctx)
	return nil
}

// acceptConsent dismisses the cookie banner. A missing banner is normal.
func (s *rodSession) acceptConsent(ctx context.Context) {
	tctx, cancel := context.WithTimeout(ctx, s.opts.ConsentTimeout)
	defer cancel()

	el, err := s.frame.Context(tctx).ElementX(consentXPath)
	if err != nil {
		s.opts.Log.Debug("no cookie consent prompt", zap.Error(err))
		return
	}
	if _, err := el.Eval(js.CLICK_CONSENT); err != nil {
		s.opts.Log.Debug("failed accepting cookie consent", zap.Error(err))
		return
	}
	s.opts.Log.Debug("accepted cookie consent")
}

func (s *rodSession) Close() error {
	s.closeOnce.Do(func() {
		if s.browser != nil {
			s.closeErr = s.browser.Context(context.Background()).Close()
		}
		s.launcher.Kill()
		s.launcher.Cleanup()
	})
	return s.closeErr
}

func (s *rodSession) content() (*rod.Page, error) {
	if s.frame == nil {
		return nil, ErrNoFrame
	}
	return s.frame, nil
}

func (s *rodSession) WaitElement(ctx context.Context, xpath string, timeout time.Duration) (Element, error) {
	f, err := s.content()
	if err != nil {
		return nil, err
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := f.Context(tctx).ElementX(xpath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", xpath, classify(err))
	}
	return &rodElement{el: el.Context(ctx), timeout: timeout}, nil
}

func (s *rodSession) WaitElements(ctx context.Context, xpath string, timeout time.Duration) ([]Element, error) {
	if _, err := s.WaitElement(ctx, xpath, timeout); err != nil {
		return nil, err
	}
	els, err := s.frame.Context(ctx).ElementsX(xpath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", xpath, classify(err))
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el, timeout: timeout})
	}
	return out, nil
}

func (s *rodSession) WaitClickable(ctx context.Context, xpath string, timeout time.Duration) (Element, error) {
	f, err := s.content()
	if err != nil {
		return nil, err
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := f.Context(tctx).ElementX(xpath)
	if err == nil {
		err = el.WaitVisible()
	}
	if err == nil {
		err = el.WaitEnabled()
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", xpath, classify(err))
	}
	return &rodElement{el: el.Context(ctx), timeout: timeout}, nil
}

func (s *rodSession) Has(ctx context.Context, xpath string) (bool, error) {
	f, err := s.content()
	if err != nil {
		return false, err
	}
	has, _, err := f.Context(ctx).HasX(xpath)
	return has, classify(err)
}

func (s *rodSession) HTML(ctx context.Context) (string, error) {
	f, err := s.content()
	if err != nil {
		return "", err
	}
	html, err := f.Context(ctx).HTML()
	return html, classify(err)
}

type rodElement struct {
	el      *rod.Element
	timeout time.Duration
}

func (e *rodElement) Text() (string, error) {
	t, err := e.el.Timeout(e.timeout).Text()
	return t, classify(err)
}

func (e *rodElement) ScrollIntoView() error {
	_, err := e.el.Timeout(e.timeout).Eval(js.SCROLL_CENTER)
	return classify(err)
}

func (e *rodElement) Click() error {
	return classify(e.el.Timeout(e.timeout).Click(proto.InputMouseButtonLeft, 1))
}

// classify maps rod and CDP failures onto the package sentinels while
// keeping the original error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var notFound *rod.ErrObjectNotFound
	var covered *rod.ErrCovered
	var notInteractable *rod.ErrNotInteractable
	var noPointer *rod.ErrNoPointerEvents
	var invisible *rod.ErrInvisibleShape
	switch {
	case errors.As(err, &notFound),
		errors.Is(err, cdp.ErrObjNotFound),
		errors.Is(err, cdp.ErrCtxNotFound),
		errors.Is(err, cdp.ErrCtxDestroyed):
		return fmt.Errorf("%w: %w", ErrStale, err)
	case errors.As(err, &covered),
		errors.As(err, &notInteractable),
		errors.As(err, &noPointer),
		errors.As(err, &invisible):
		return fmt.Errorf("%w: %w", ErrIntercepted, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
