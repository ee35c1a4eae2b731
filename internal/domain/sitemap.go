package domain

// Link is a navigational entry such as a site route or call to action.
type Link struct {
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	URL   string `json:"url" yaml:"url"`
}

// Name returns the display name of the link.
func (l Link) Name() string {
	if l.Title != "" {
		return l.Title
	}
	return l.Label
}

// DocumentInfo describes one indexed document.
type DocumentInfo struct {
	Source  string `json:"source"`
	Path    string `json:"path"`
	Chunks  int    `json:"chunks"`
	Preview string `json:"preview"`
}

// Sitemap is descriptive metadata used to enrich prompt context.
// It never affects retrieval ranking.
type Sitemap struct {
	Routes    []Link                  `json:"routes" yaml:"routes"`
	CTAs      []Link                  `json:"ctas" yaml:"ctas"`
	Documents map[string]DocumentInfo `json:"documents" yaml:"-"`
}

// EmptySitemap returns a sitemap with no entries.
func EmptySitemap() Sitemap {
	return Sitemap{Documents: map[string]DocumentInfo{}}
}
