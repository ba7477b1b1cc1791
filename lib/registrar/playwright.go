package registrar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/playwright-community/playwright-go"
)

type PlaywrightOptions struct {
	Headless bool
	// how long each action may wait for its element, defaults to 30 seconds
	Timeout time.Duration
}

func runOptions() *playwright.RunOptions {
	return &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
}

// InstallBrowser downloads the playwright driver and browsers.
func InstallBrowser() error {
	err := playwright.Install(runOptions())
	if err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}
	return nil
}

type playwrightDriver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

// PlaywrightLauncher starts a fresh chromium for every call, nothing is
// shared between sessions.
func PlaywrightLauncher(opts PlaywrightOptions) Launcher {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second * 30
	}

	return func(ctx context.Context) (Driver, error) {
		pw, err := playwright.Run(runOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to start playwright: %w", err)
		}

		browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(opts.Headless),
		})
		if err != nil {
			pw.Stop()
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}

		bctx, err := browser.NewContext()
		if err != nil {
			browser.Close()
			pw.Stop()
			return nil, fmt.Errorf("failed to create context: %w", err)
		}

		page, err := bctx.NewPage()
		if err != nil {
			bctx.Close()
			browser.Close()
			pw.Stop()
			return nil, fmt.Errorf("failed to create page: %w", err)
		}
		page.SetDefaultTimeout(float64(opts.Timeout.Milliseconds()))

		return &playwrightDriver{
			pw:      pw,
			browser: browser,
			context: bctx,
			page:    page,
		}, nil
	}
}

func (d *playwrightDriver) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := d.page.Goto(url)
	return err
}

func (d *playwrightDriver) Fill(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.page.Fill(selector, value)
}

func (d *playwrightDriver) SelectValue(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	values := []string{value}
	_, err := d.page.SelectOption(selector, playwright.SelectOptionValues{
		Values: &values,
	})
	return err
}

func (d *playwrightDriver) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.page.Click(selector)
}

func (d *playwrightDriver) Close() error {
	var errs []error
	if err := d.page.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := d.context.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := d.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := d.pw.Stop(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
