package graph

import (
	"fmt"
	"net/url"
	"strings"
)

// RootRef locates a document library within a SharePoint tenancy.
// LibraryPath is empty when the URL points at the whole site.
type RootRef struct {
	Hostname    string
	SitePath    string
	LibraryPath string
}

// ResolveRoot parses a SharePoint URL into the hostname, site path and
// optional library path needed to seed a crawl. Library view URLs hide the
// real folder path in a query parameter ("id" or "RootFolder"), and direct
// links often end in a Forms/AllItems.aspx style view page; both conventions
// are handled before locating the sites/teams segment.
func ResolveRoot(sourceURL string) (RootRef, error) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return RootRef{}, fmt.Errorf("parse source url: %w", err)
	}
	if u.Hostname() == "" {
		return RootRef{}, fmt.Errorf("source url %q has no hostname", sourceURL)
	}

	path := u.Path
	q := u.Query()
	if v := q.Get("id"); v != "" {
		path = v
	} else if v := q.Get("RootFolder"); v != "" {
		path = v
	}
	if decoded, err := url.PathUnescape(path); err == nil {
		path = decoded
	}
	path = stripViewSuffix(path)

	segments := splitPath(path)
	idx := -1
	for i, seg := range segments {
		if strings.EqualFold(seg, "sites") || strings.EqualFold(seg, "teams") {
			idx = i
			break
		}
	}
	if idx == -1 || idx+1 >= len(segments) {
		return RootRef{}, fmt.Errorf("url path %q does not contain a /sites/ or /teams/ segment", path)
	}

	ref := RootRef{
		Hostname: u.Hostname(),
		SitePath: "/" + segments[idx] + "/" + segments[idx+1],
	}
	if rest := segments[idx+2:]; len(rest) > 0 {
		ref.LibraryPath = strings.Join(rest, "/")
	}
	return ref, nil
}

// LibraryName returns the first segment of the library path, which is the
// document library's display name as it appears among the site's drives.
func (r RootRef) LibraryName() string {
	if r.LibraryPath == "" {
		return ""
	}
	return splitPath(r.LibraryPath)[0]
}

func stripViewSuffix(path string) string {
	lower := strings.ToLower(path)
	if i := strings.LastIndex(lower, "/forms/"); i >= 0 && strings.HasSuffix(lower, ".aspx") {
		return path[:i]
	}
	if strings.HasSuffix(lower, ".aspx") {
		if i := strings.LastIndex(path, "/"); i >= 0 {
			return path[:i]
		}
	}
	return path
}

func splitPath(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
