package gallery

import (
	"fmt"
	"sort"
	"strings"

	"lantern/internal/content"
)

// Documents converts loaded collections into content documents so gallery
// images flow through the same planning and processing as article media.
// The hero reference prefers the configured hero image, then the cover, then
// the first image.
func Documents(workspace *Workspace) []content.Document {
	collections := append([]*Collection{}, workspace.Collections...)
	sort.SliceStable(collections, func(i, j int) bool {
		if collections[i].Metadata.SortOrder != collections[j].Metadata.SortOrder {
			return collections[i].Metadata.SortOrder < collections[j].Metadata.SortOrder
		}
		return strings.ToLower(collections[i].Metadata.Title) <
			strings.ToLower(collections[j].Metadata.Title)
	})

	documents := make([]content.Document, 0, len(collections))
	for _, collection := range collections {
		document := content.Document{
			Slug: strings.ToLower(strings.TrimSpace(collection.Metadata.ID)),
		}

		hero := heroImage(collection)
		if hero != nil {
			ref := imageReference(collection, hero)
			document.Hero = &ref
		}
		for _, image := range collection.Images {
			if hero != nil && image.Metadata.ID == hero.Metadata.ID {
				continue
			}
			document.Assets = append(document.Assets, imageReference(collection, image))
		}
		documents = append(documents, document)
	}
	return documents
}

func heroImage(collection *Collection) *Image {
	if len(collection.Images) == 0 {
		return nil
	}
	target := collection.Metadata.HeroImageID
	if target == "" {
		target = collection.Metadata.CoverImageID
	}
	if target != "" {
		for _, image := range collection.Images {
			if image.Metadata.ID == target {
				return image
			}
		}
	}
	return collection.Images[0]
}

func imageReference(collection *Collection, image *Image) content.MediaReference {
	return content.MediaReference{
		Path: fmt.Sprintf("gallery/%s/%s", collection.ID, image.Metadata.Filename),
		Alt:  image.Metadata.AltText,
	}
}
