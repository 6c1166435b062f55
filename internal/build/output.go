package build

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/pagemill/internal/canonical"
	"github.com/conneroisu/pagemill/internal/collection"
	pmerrors "github.com/conneroisu/pagemill/internal/errors"
	"github.com/conneroisu/pagemill/internal/feed"
)

// OutputPath maps a page URL to the file it is exported to. URLs ending in
// .html are written as is; every other URL gets an index.html.
func OutputPath(outDir, pageURL string) (string, error) {
	decoded, err := url.PathUnescape(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}
	clean := path.Clean("/" + decoded)
	if path.Ext(clean) != ".html" {
		clean = path.Join(clean, "index.html")
	}
	return filepath.Join(outDir, filepath.FromSlash(clean)), nil
}

// FeedName derives the feed file name from a collection page URL:
// "/blog" is "blog", "/tags/go" is "tags-go" and "/" is "index".
func FeedName(pageURL string) string {
	key := strings.Trim(canonical.TrimIndex(pageURL), "/")
	if decoded, err := url.PathUnescape(key); err == nil {
		key = decoded
	}
	if key == "" {
		return "index"
	}
	return strings.NewReplacer("/", "-", " ", "-").Replace(key)
}

func (e *Exporter) writeFeed(pageURL string, info *collection.Info) (string, error) {
	name := FeedName(pageURL)
	var buf bytes.Buffer
	if err := feed.WriteRSS(&buf, info.RSS, e.Site, canonical.TrimIndex(pageURL)); err != nil {
		return "", err
	}
	rel := path.Join("feed", name+".xml")
	if err := writeFile(filepath.Join(e.OutDir, filepath.FromSlash(rel)), buf.Bytes()); err != nil {
		return "", err
	}
	return "/" + rel, nil
}

func (e *Exporter) writeSitemap(rendered []string) (string, error) {
	var buf bytes.Buffer
	if err := feed.WriteSitemap(&buf, e.Site, rendered, time.Now().UTC().Format("2006-01-02")); err != nil {
		return "", fmt.Errorf("sitemap: %w", err)
	}
	if err := writeFile(filepath.Join(e.OutDir, "sitemap.xml"), buf.Bytes()); err != nil {
		return "", fmt.Errorf("sitemap: %w", err)
	}

	robots := filepath.Join(e.OutDir, "robots.txt")
	if _, err := os.Stat(robots); os.IsNotExist(err) {
		content := fmt.Sprintf("User-agent: *\nAllow: /\n\nSitemap: %s\n", feed.Absolute(e.Site, "/sitemap.xml"))
		if err := writeFile(robots, []byte(content)); err != nil {
			return "", fmt.Errorf("robots.txt: %w", err)
		}
	}
	return "/sitemap.xml", nil
}

func writeFile(file string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return pmerrors.NewIOError("WRITE", "cannot create output directory", err).WithFile(file)
	}
	if err := os.WriteFile(file, content, 0o644); err != nil {
		return pmerrors.NewIOError("WRITE", "cannot write output file", err).
			WithFile(file).
			WithContext("bytes", len(content))
	}
	return nil
}

// copyDir copies src into dst. A missing src is not an error.
func copyDir(src, dst string) error {
	info, err := os.Stat(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}

	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(p, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
