package browser

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// rodEngine wraps one launched Chrome process controlled via go-rod.
type rodEngine struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func startChrome(cfg Config) (engine, error) {
	l := launcher.New().Headless(cfg.Headless)
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, err
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, err
	}

	return &rodEngine{browser: b, launcher: l}, nil
}

func (e *rodEngine) NewContext() (renderContext, error) {
	incognito, err := e.browser.Incognito()
	if err != nil {
		return nil, err
	}
	return &rodContext{browser: incognito}, nil
}

func (e *rodEngine) Close() error {
	err := e.browser.Close()
	e.launcher.Cleanup()
	return err
}

// rodContext is one incognito browsing context. It holds at most one page.
type rodContext struct {
	browser *rod.Browser
	page    *rod.Page
}

func (c *rodContext) Render(ctx context.Context, url string, cfg Config) (string, error) {
	page, err := c.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", err
	}
	c.page = page

	page = page.Context(ctx).Timeout(cfg.NavigationTimeout)

	var networkIdle func()
	if cfg.WaitStrategy == WaitNetworkIdle {
		networkIdle = page.WaitRequestIdle(500*time.Millisecond, nil, nil, nil)
	}

	if err := page.Navigate(url); err != nil {
		return "", err
	}

	switch cfg.WaitStrategy {
	case WaitNetworkIdle:
		if err := page.WaitLoad(); err != nil {
			return "", err
		}
		networkIdle()
	case WaitDOMContentLoaded:
		if err := page.WaitDOMStable(300*time.Millisecond, 0); err != nil {
			return "", err
		}
	default:
		if err := page.WaitLoad(); err != nil {
			return "", err
		}
	}

	return page.HTML()
}

func (c *rodContext) Close() error {
	if c.page != nil {
		return c.page.Close()
	}
	return nil
}
