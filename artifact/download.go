package artifact

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Markers understood in a download template.
var downloadMarkers = []string{"{crate}", "{version}", "{prefix}", "{lowerprefix}", "{sha256-checksum}"}

// Download resolves artifacts through the index's dl template. file:// URLs
// are read from disk, http(s) URLs through the fetcher.
type Download struct {
	Template string
	fetcher  *BreakerFetcher
}

// NewDownload returns a provider for template. fetcher may be nil when the
// template only uses file:// URLs.
func NewDownload(template string, fetcher *BreakerFetcher) *Download {
	return &Download{Template: template, fetcher: fetcher}
}

// Location expands the template for ref. A template without markers gets
// "/{crate}/{version}/download" appended.
func (d *Download) Location(ref Ref) string {
	tmpl := d.Template
	hasMarker := false
	for _, m := range downloadMarkers {
		if strings.Contains(tmpl, m) {
			hasMarker = true
			break
		}
	}
	if !hasMarker {
		tmpl = strings.TrimRight(tmpl, "/") + "/{crate}/{version}/download"
	}
	prefix := namePrefix(ref.Name)
	return strings.NewReplacer(
		"{crate}", ref.Name,
		"{version}", ref.Version,
		"{prefix}", prefix,
		"{lowerprefix}", strings.ToLower(prefix),
		"{sha256-checksum}", ref.Checksum,
	).Replace(tmpl)
}

func (d *Download) Open(ctx context.Context, ref Ref) (io.ReadCloser, error) {
	loc := d.Location(ref)
	u, err := url.Parse(loc)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid download URL `%s`", loc)
	}
	switch u.Scheme {
	case "file":
		f, err := os.Open(u.Path)
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "Could not find crate file: %s", u.Path)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to open `%s`.", u.Path)
		}
		return f, nil
	case "http", "https":
		if d.fetcher == nil {
			return nil, errors.Errorf("no HTTP fetcher configured for `%s`", loc)
		}
		return d.fetcher.Fetch(ctx, loc)
	default:
		return nil, errors.Errorf("unsupported download URL scheme `%s` in `%s`", u.Scheme, loc)
	}
}

// namePrefix is the directory prefix of a name as used by the {prefix} marker.
func namePrefix(name string) string {
	switch len(name) {
	case 0:
		return ""
	case 1:
		return "1"
	case 2:
		return "2"
	case 3:
		return "3/" + name[:1]
	default:
		return name[0:2] + "/" + name[2:4]
	}
}
