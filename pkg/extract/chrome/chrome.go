// Package chrome implements extract.Extractor by driving a headless Chrome
// via chromedp against a web audio-converter site: open the converter, type
// the video URL, click convert, then collect the produced MP3 from the
// download directory.
//
// One Chrome process is spawned per extraction with its own profile and
// download directory; both are removed on every exit path.
package chrome

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/Leo328/basic-youtube-voice-cloning-app/pkg/extract"
)

const (
	defaultConverterURL    = "https://cnvmp3.com/"
	defaultURLInputSel     = ".input-field-url"
	defaultConvertBtnSel   = "#convert-button-1"
	defaultPageLoadTimeout = 30 * time.Second
	defaultDownloadTimeout = 60 * time.Second
	downloadPollInterval   = 1 * time.Second
)

// challengeMarkers are body-text fragments that indicate the converter served
// an anti-bot challenge instead of its normal page.
var challengeMarkers = []string{
	"captcha",
	"verify you are human",
	"unusual traffic",
	"access denied",
}

// Compile-time interface check.
var _ extract.Extractor = (*Extractor)(nil)

// Config holds the tunables for a chrome [Extractor]. Zero-value fields are
// replaced with defaults by [New].
type Config struct {
	// ConverterURL is the audio converter site the browser drives.
	ConverterURL string

	// TempDir is where finished audio files are placed. Per-extraction
	// download and profile directories are created beneath it.
	TempDir string

	// Stealth applies the fingerprint evasion table (see stealth.go).
	Stealth bool

	// PageLoadTimeout bounds navigation and element waits.
	PageLoadTimeout time.Duration

	// DownloadTimeout bounds the wait for the converted file to appear.
	DownloadTimeout time.Duration

	// MaxDownloadBytes rejects produced files larger than this. Zero means
	// no limit.
	MaxDownloadBytes int64

	// URLInputSelector and ConvertButtonSelector identify the converter's
	// form elements. Overridable because converter sites change markup.
	URLInputSelector      string
	ConvertButtonSelector string
}

// Extractor drives one headless Chrome per Extract call.
type Extractor struct {
	cfg Config
}

// New creates a chrome Extractor, applying defaults for zero-value config
// fields. TempDir is created if it does not exist.
func New(cfg Config) (*Extractor, error) {
	if cfg.ConverterURL == "" {
		cfg.ConverterURL = defaultConverterURL
	}
	if cfg.URLInputSelector == "" {
		cfg.URLInputSelector = defaultURLInputSel
	}
	if cfg.ConvertButtonSelector == "" {
		cfg.ConvertButtonSelector = defaultConvertBtnSel
	}
	if cfg.PageLoadTimeout <= 0 {
		cfg.PageLoadTimeout = defaultPageLoadTimeout
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = defaultDownloadTimeout
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("chrome: create temp dir: %w", err)
	}
	return &Extractor{cfg: cfg}, nil
}

// Extract drives the converter site and returns the path of the produced
// audio file. The returned file lives directly under cfg.TempDir and belongs
// to the caller; every browser resource is torn down before returning.
func (e *Extractor) Extract(ctx context.Context, url string) (string, error) {
	videoID, ok := extract.VideoID(url)
	if !ok {
		return "", &extract.Error{Kind: extract.KindInvalidURL, Detail: "not a recognisable video URL"}
	}

	downloadDir, err := os.MkdirTemp(e.cfg.TempDir, "dl-"+videoID+"-")
	if err != nil {
		return "", fmt.Errorf("chrome: create download dir: %w", err)
	}
	defer os.RemoveAll(downloadDir)

	profileDir, err := os.MkdirTemp(e.cfg.TempDir, "profile-")
	if err != nil {
		return "", fmt.Errorf("chrome: create profile dir: %w", err)
	}
	defer os.RemoveAll(profileDir)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, e.allocatorOptions(profileDir)...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	if err := e.preparePage(tabCtx, downloadDir); err != nil {
		return "", err
	}
	if err := e.driveConverter(tabCtx, url); err != nil {
		return "", err
	}

	audioPath, err := waitForDownload(tabCtx, downloadDir, e.cfg.DownloadTimeout, downloadPollInterval)
	if err != nil {
		return "", err
	}
	return e.finishDownload(audioPath, videoID)
}

// allocatorOptions builds the Chrome launch flags, layering the stealth
// evasions on top of the base headless setup when enabled.
func (e *Extractor) allocatorOptions(profileDir string) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.UserDataDir(profileDir),
		chromedp.Flag("headless", "new"),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("lang", "en-US,en;q=0.9"),
	)
	if e.cfg.Stealth {
		opts = append(opts, stealthAllocatorOptions()...)
	}
	return opts
}

// preparePage routes downloads into downloadDir and, in stealth mode,
// installs the fingerprint override script before any document loads.
func (e *Extractor) preparePage(ctx context.Context, downloadDir string) error {
	actions := []chromedp.Action{
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(downloadDir),
	}
	if e.cfg.Stealth {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}))
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return classifyRunError(ctx, err, extract.KindBrowserCrashed)
	}
	return nil
}

// driveConverter loads the converter page, fills in the video URL, and
// clicks convert. Each phase is bounded by PageLoadTimeout.
func (e *Extractor) driveConverter(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, e.cfg.PageLoadTimeout)
	defer cancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(e.cfg.ConverterURL)); err != nil {
		return classifyRunError(ctx, err, extract.KindPageLoadTimeout)
	}

	formCtx, cancelForm := context.WithTimeout(ctx, e.cfg.PageLoadTimeout)
	defer cancelForm()
	err := chromedp.Run(formCtx,
		chromedp.WaitVisible(e.cfg.URLInputSelector, chromedp.ByQuery),
		chromedp.SendKeys(e.cfg.URLInputSelector, url, chromedp.ByQuery),
		chromedp.Click(e.cfg.ConvertButtonSelector, chromedp.ByQuery),
	)
	if err != nil {
		// A timeout here usually means the page loaded but the form never
		// appeared — check whether we were served a bot challenge instead.
		if errors.Is(err, context.DeadlineExceeded) && e.challengeServed(ctx) {
			return &extract.Error{Kind: extract.KindAutomationDetected, Detail: "converter served a bot challenge"}
		}
		return classifyRunError(ctx, err, extract.KindPageLoadTimeout)
	}
	return nil
}

// challengeServed reports whether the current page body looks like an
// anti-bot challenge. Best-effort: errors reading the body mean false.
func (e *Extractor) challengeServed(ctx context.Context) bool {
	readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var body string
	if err := chromedp.Run(readCtx, chromedp.Text("body", &body, chromedp.ByQuery)); err != nil {
		return false
	}
	return pageLooksLikeChallenge(body)
}

// pageLooksLikeChallenge checks body text against the challenge marker list.
func pageLooksLikeChallenge(body string) bool {
	lower := strings.ToLower(body)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// finishDownload validates the produced file and moves it out of the
// per-extraction download dir into TempDir, where the caller owns it.
func (e *Extractor) finishDownload(audioPath, videoID string) (string, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return "", &extract.Error{Kind: extract.KindNoAudioStream, Detail: "produced file vanished"}
	}
	if info.Size() == 0 {
		return "", &extract.Error{Kind: extract.KindNoAudioStream, Detail: "produced file is empty"}
	}
	if e.cfg.MaxDownloadBytes > 0 && info.Size() > e.cfg.MaxDownloadBytes {
		return "", &extract.Error{
			Kind:   extract.KindDownloadTooLarge,
			Detail: fmt.Sprintf("audio is %d bytes, limit %d", info.Size(), e.cfg.MaxDownloadBytes),
		}
	}

	dst := filepath.Join(e.cfg.TempDir, fmt.Sprintf("%s-%d.mp3", videoID, time.Now().UnixNano()))
	if err := os.Rename(audioPath, dst); err != nil {
		return "", fmt.Errorf("chrome: move download: %w", err)
	}
	return dst, nil
}

// waitForDownload polls dir until an .mp3 appears (ignoring in-progress
// .crdownload files) or the timeout elapses.
func waitForDownload(ctx context.Context, dir string, timeout, interval time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if path := newestMP3(dir); path != "" {
			return path, nil
		}
		if time.Now().After(deadline) {
			return "", &extract.Error{
				Kind:   extract.KindNoAudioStream,
				Detail: fmt.Sprintf("no audio file produced within %s", timeout),
			}
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// newestMP3 returns the most recently modified complete .mp3 in dir, or ""
// when none exists.
func newestMP3(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var newest string
	var newestMod time.Time
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".mp3") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = filepath.Join(dir, name)
			newestMod = info.ModTime()
		}
	}
	return newest
}

// classifyRunError maps a chromedp.Run failure to an extract.Error. The
// caller's ctx distinguishes external cancellation (passed through raw) from
// step deadlines (mapped to timeoutKind).
func classifyRunError(ctx context.Context, err error, timeoutKind extract.Kind) error {
	if ctx.Err() != nil {
		// The whole extraction was cancelled from outside.
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &extract.Error{Kind: timeoutKind, Detail: err.Error()}
	}
	// Anything else from the automation layer means the session is gone:
	// the browser failed to start, crashed, or dropped its DevTools socket.
	return &extract.Error{Kind: extract.KindBrowserCrashed, Detail: err.Error()}
}
