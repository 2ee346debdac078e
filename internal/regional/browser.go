
package regional

import "context"

// ResourceKind names a sub-resource class that a page may refuse to load.
type ResourceKind string

const (
	ResourceImage ResourceKind = "image"
	ResourceFont  ResourceKind = "font"
	ResourceMedia ResourceKind = "media"
)

type PageOptions struct {
	UserAgent string
	// Block lists resource kinds aborted before they hit the network.
	// Scripts and stylesheets always load since the page fills prices in JS.
	Block []ResourceKind
}

// Browser is the page-automation capability the fetcher needs.
type Browser interface {
	Open(ctx context.Context, opts PageOptions) (Page, error)
}

type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitPopulated blocks until the element with id has non-blank text.
	WaitPopulated(ctx context.Context, id string) error
	// TextByID returns trimmed text per id, "" for missing elements.
	TextByID(ctx context.Context, ids []string) (map[string]string, error)
	Close() error
}
