package content

// MediaVariant describes one generated derivative of a media source.
type MediaVariant struct {
	Profile string `json:"profile"`
	// Path is relative to the derivative output root, in slash form.
	Path    string `json:"path"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Format  string `json:"format,omitempty"`
	Quality int    `json:"quality,omitempty"`
}

// MediaReference points a document at a media file by mount-relative path
// (e.g. "media/posts/cover.jpg"). Variants are attached after processing.
type MediaReference struct {
	Path     string         `json:"path"`
	Alt      string         `json:"alt,omitempty"`
	Variants []MediaVariant `json:"variants,omitempty"`
}

// Document is the slice of a content item the media pipeline needs: a slug,
// an optional hero reference, and any number of asset references.
type Document struct {
	Slug   string
	Hero   *MediaReference
	Assets []MediaReference
}

// References yields the document's media references paired with the role
// under which each is used.
func (d *Document) References() []RoleReference {
	refs := make([]RoleReference, 0, len(d.Assets)+1)
	if d.Hero != nil && d.Hero.Path != "" {
		refs = append(refs, RoleReference{Role: RoleHero, Reference: d.Hero})
	}
	for i := range d.Assets {
		if d.Assets[i].Path == "" {
			continue
		}
		refs = append(refs, RoleReference{Role: RoleAsset, Reference: &d.Assets[i]})
	}
	return refs
}

// RoleReference pairs a media reference with how the document uses it.
type RoleReference struct {
	Role      string
	Reference *MediaReference
}

// Roles a media reference can be used under.
const (
	RoleHero  = "hero"
	RoleAsset = "asset"
)
