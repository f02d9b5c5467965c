package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/loader/markup"
)

// Separators used when concatenating discovered resources. Each joined
// script starts on a new line after a semicolon.
const (
	StyleSeparator  = "\n"
	ScriptSeparator = "\n;"
)

const (
	stylesheetSelector = `link[rel~="stylesheet"][href]`
	styleSelector      = "style"
	scriptSelector     = "script"
)

// Fetcher resolves entry-based bundles through injected read and join
// capabilities.
type Fetcher struct {
	reader Reader
	joiner Joiner
	logger *zap.Logger
}

// New creates a fetcher. A nil logger disables logging.
func New(reader Reader, joiner Joiner, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		reader: reader,
		joiner: joiner,
		logger: logger.Named("fetch"),
	}
}

// NewFromFS creates a fetcher whose reader and joiner are the same value.
func NewFromFS(fs FS, logger *zap.Logger) *Fetcher {
	return New(fs, fs, logger)
}

// Entry reads the entry file, discovers its stylesheets and scripts, reads
// the referenced files relative to the entry's directory and returns the
// stripped markup with the concatenated style and script text.
//
// Only an unreadable entry or a cancelled context is an error. Referenced
// files that cannot be read are skipped and reported as warnings.
func (f *Fetcher) Entry(ctx context.Context, entryPath string) (*Result, error) {
	start := time.Now()

	entryPath = strings.TrimSpace(entryPath)
	if entryPath == "" {
		return nil, ErrNoEntry
	}

	raw, err := f.reader.ReadText(ctx, entryPath)
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", entryPath, err)
	}

	res := &Result{}

	doc, err := markup.ParseDocument(raw)
	if err != nil {
		f.logger.Warn("Entry markup not parseable, using raw text",
			zap.String("entry", entryPath), zap.Error(err))
		res.warn(WarnMarkup, entryPath, err)
		res.Markup = raw
		return res, nil
	}

	base, err := f.baseDir(ctx, entryPath)
	if err != nil {
		return nil, err
	}

	// Selections are taken up front so removals cannot change what is
	// discovered. Head and body are both scanned because the HTML parser
	// hoists leading link and style elements into head.
	page := goquery.NewDocumentFromNode(doc)
	links := page.Find(stylesheetSelector)
	styles := page.Find(styleSelector)
	scripts := page.Find(scriptSelector)

	var css, js []string

	for i := range links.Nodes {
		link := links.Eq(i)
		href, _ := link.Attr("href")
		text, ok, err := f.readRef(ctx, base, href, res)
		if err != nil {
			return nil, err
		}
		if ok {
			css = append(css, text)
		}
		link.Remove()
	}

	for i := range styles.Nodes {
		style := styles.Eq(i)
		if text := style.Text(); strings.TrimSpace(text) != "" {
			css = append(css, text)
		}
		style.Remove()
	}

	for i := range scripts.Nodes {
		script := scripts.Eq(i)
		if src, has := script.Attr("src"); has {
			text, ok, err := f.readRef(ctx, base, src, res)
			if err != nil {
				return nil, err
			}
			if ok {
				js = append(js, text)
			}
		} else if text := script.Text(); strings.TrimSpace(text) != "" {
			js = append(js, text)
		}
		script.Remove()
	}

	res.Markup = f.bodyMarkup(doc, raw, entryPath, res)
	res.Style = strings.Join(css, StyleSeparator)
	res.Script = strings.Join(js, ScriptSeparator)

	f.logger.Debug("Entry resolved",
		zap.String("entry", entryPath),
		zap.Int("styles", len(css)),
		zap.Int("scripts", len(js)),
		zap.Int("warnings", len(res.Warnings)),
		zap.Duration("duration", time.Since(start)),
	)

	return res, nil
}

// readRef joins ref onto base and reads it. Read failures are recorded on res
// and reported as ok=false; only cancellation is returned as an error.
func (f *Fetcher) readRef(ctx context.Context, base, ref string, res *Result) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	if remoteRef(ref) {
		f.logger.Debug("Skipping remote resource", zap.String("ref", ref))
		return "", false, nil
	}
	ref = localRef(ref)
	if ref == "" {
		return "", false, nil
	}

	p, err := f.joiner.Join(ctx, base, ref)
	if err == nil {
		var text string
		text, err = f.reader.ReadText(ctx, p)
		if err == nil {
			return text, true, nil
		}
	} else {
		p = ref
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", false, ctxErr
	}

	err = fmt.Errorf("%w: %v", ErrResourceReadFailed, err)
	f.logger.Warn("Skipping unreadable resource", zap.String("path", p), zap.Error(err))
	res.warn(WarnResource, p, err)
	return "", false, nil
}

// baseDir joins every segment of entryPath except the last.
func (f *Fetcher) baseDir(ctx context.Context, entryPath string) (string, error) {
	parts := strings.FieldsFunc(entryPath, func(r rune) bool { return r == '/' || r == '\\' })
	if len(parts) > 0 {
		parts = parts[:len(parts)-1]
	}
	if strings.HasPrefix(entryPath, "/") && len(parts) > 0 {
		parts[0] = "/" + parts[0]
	}
	base, err := f.joiner.Join(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("resolve base of %s: %w", entryPath, err)
	}
	return base, nil
}

// bodyMarkup serialises what is left of body, falling back to raw.
func (f *Fetcher) bodyMarkup(doc *html.Node, raw, entryPath string, res *Result) string {
	body := markup.Body(doc)
	if body == nil {
		err := fmt.Errorf("%w: no body", markup.ErrParseFailed)
		res.warn(WarnMarkup, entryPath, err)
		return raw
	}
	out, err := markup.RenderChildren(body)
	if err != nil {
		f.logger.Warn("Entry markup not serialisable, using raw text",
			zap.String("entry", entryPath), zap.Error(err))
		res.warn(WarnMarkup, entryPath, err)
		return raw
	}
	return out
}

// remoteRef reports whether ref names a URL with a scheme or a
// protocol-relative host. Those never resolve against the bundle.
func remoteRef(ref string) bool {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "//") {
		return true
	}
	u, err := url.Parse(ref)
	// A one-letter scheme is a drive letter, not a URL.
	return err == nil && len(u.Scheme) > 1
}

// localRef strips a query string or fragment from a reference.
func localRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	return ref
}
