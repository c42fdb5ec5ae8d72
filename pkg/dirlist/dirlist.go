// Package dirlist extracts image URLs from an HTML directory listing
// (nginx autoindex, Apache mod_autoindex and similar).
//
// Some listings carry no image array; the API only points at a directory
// on the media host, and the gallery is whatever image files that
// directory lists.
package dirlist

import (
	"bytes"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".avif": true,
	".gif":  true,
}

// Parse returns absolute image URLs linked from body, resolved against
// dirURL, de-duplicated and in natural file-name order (2.jpg before 10.jpg).
func Parse(dirURL string, body []byte) ([]string, error) {
	base, err := url.Parse(dirURL)
	if err != nil {
		return nil, err
	}
	// Relative links resolve against the directory itself.
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	seen := make(map[string]bool)
	var urls []string

	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				sortNatural(urls)
				return urls, nil
			}
			return nil, z.Err()

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}

			for {
				key, val, more := z.TagAttr()
				if string(key) == "href" {
					if u, ok := resolve(base, string(val)); ok && !seen[u] {
						seen[u] = true
						urls = append(urls, u)
					}
				}
				if !more {
					break
				}
			}
		}
	}
}

// resolve turns an href into an absolute image URL, or reports false for
// parent links, query-only links and non-image files.
func resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "?") || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "../") {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	if !imageExtensions[strings.ToLower(path.Ext(ref.Path))] {
		return "", false
	}

	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	abs.Fragment = ""
	return abs.String(), true
}

func sortNatural(urls []string) {
	sort.SliceStable(urls, func(i, j int) bool {
		return naturalLess(path.Base(urls[i]), path.Base(urls[j]))
	})
}

// naturalLess compares strings treating digit runs as numbers.
func naturalLess(a, b string) bool {
	ra, rb := []rune(strings.ToLower(a)), []rune(strings.ToLower(b))
	i, j := 0, 0

	for i < len(ra) && j < len(rb) {
		if unicode.IsDigit(ra[i]) && unicode.IsDigit(rb[j]) {
			si := i
			for i < len(ra) && unicode.IsDigit(ra[i]) {
				i++
			}
			sj := j
			for j < len(rb) && unicode.IsDigit(rb[j]) {
				j++
			}

			na := strings.TrimLeft(string(ra[si:i]), "0")
			nb := strings.TrimLeft(string(rb[sj:j]), "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			continue
		}

		if ra[i] != rb[j] {
			return ra[i] < rb[j]
		}
		i++
		j++
	}

	return len(ra)-i < len(rb)-j
}
