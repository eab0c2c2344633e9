package source

import (
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobtracker/internal/storage"
)

// Rules selects which anchors on the page are postings.
type Rules struct {
	Base    *url.URL
	Pattern *regexp.Regexp
	Exclude []string
}

// Parse extracts candidates from an HTML document.
//
// An anchor is a candidate when its raw href matches Pattern. The href is
// resolved against Base, and resolved URLs containing any Exclude substring
// are dropped. Repeated URLs collapse into one candidate named after the
// first anchor with visible text. Document order is preserved.
func Parse(r io.Reader, rules Rules) ([]storage.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	out := make([]storage.Candidate, 0, 16)
	index := map[string]int{}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || (rules.Pattern != nil && !rules.Pattern.MatchString(href)) {
			return
		}
		abs := resolve(rules.Base, href)
		if abs == "" || excluded(abs, rules.Exclude) {
			return
		}
		name := strings.Join(strings.Fields(a.Text()), " ")
		if i, ok := index[abs]; ok {
			if out[i].Name == "" && name != "" {
				out[i].Name = name
			}
			return
		}
		index[abs] = len(out)
		out = append(out, storage.Candidate{Name: name, URL: abs})
	})

	for i := range out {
		if out[i].Name == "" {
			out[i].Name = slugName(out[i].URL)
		}
	}
	return out, nil
}

func resolve(base *url.URL, href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	u.Fragment = ""
	return u.String()
}

// excluded reports whether s contains any of subs, ignoring case.
func excluded(s string, subs []string) bool {
	s = strings.ToLower(s)
	for _, x := range subs {
		if x = strings.ToLower(strings.TrimSpace(x)); x != "" && strings.Contains(s, x) {
			return true
		}
	}
	return false
}

// slugName derives a label from the last path segment ("senior-engineer"
// becomes "senior engineer").
func slugName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	seg := path.Base(strings.TrimSuffix(u.Path, "/"))
	if seg == "." || seg == "/" || seg == "" {
		return raw
	}
	return strings.ReplaceAll(seg, "-", " ")
}
