// Package site turns user input into capture targets.
//
// A target is a bare domain or a URL. Each target gets a filesystem-safe
// domain slug that names every file produced for it:
//
//	t, _ := site.ParseTarget("www.Example.com/pricing")
//	t.URL    // https://www.Example.com/pricing
//	t.Domain // example_com
package site

import (
	"bufio"
	"io"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/matzehuels/shotframe/pkg/errors"
)

// Target is one page to process.
type Target struct {
	Input  string // as given by the user
	URL    string // normalized, with scheme
	Domain string // slug used in output file names
}

// ParseTarget validates and normalizes input.
func ParseTarget(input string) (Target, error) {
	if err := errors.ValidateTarget(input); err != nil {
		return Target{}, err
	}
	u := NormalizeURL(input)
	return Target{Input: input, URL: u, Domain: SanitizeDomain(u)}, nil
}

// NormalizeURL trims s and prefixes https:// when no scheme is present.
func NormalizeURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		return "https://" + s
	}
	return s
}

var (
	unsafeRun     = regexp.MustCompile(`[^a-z0-9.\-]+`)
	underscoreRun = regexp.MustCompile(`_+`)
)

// SanitizeDomain derives a slug from rawURL's host: lowercased, without a
// leading "www.", with dots and any other unsafe characters replaced by
// single underscores. It never returns an empty string.
func SanitizeDomain(rawURL string) string {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	if host == "" {
		return "site"
	}

	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	host = unsafeRun.ReplaceAllString(host, "_")
	host = strings.ReplaceAll(host, ".", "_")
	host = underscoreRun.ReplaceAllString(host, "_")
	host = strings.Trim(host, "_")
	if host == "" {
		return "site"
	}
	return host
}

// ReadDomains reads one target per line, skipping blank lines and lines
// starting with '#'. An input without targets is an error.
func ReadDomains(r io.Reader) ([]string, error) {
	var items []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		items = append(items, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no targets (file is empty or only comments)")
	}
	return items, nil
}

// ReadDomainsFile reads targets from path.
func ReadDomainsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "targets file %s", path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	items, err := ReadDomains(f)
	if err != nil {
		code := errors.GetCode(err)
		if code == "" {
			code = errors.ErrCodeInternal
		}
		return nil, errors.Wrap(code, err, "read %s", path)
	}
	return items, nil
}
