package gallery

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"lantern/internal/content"
)

// ApplyDerivatives attaches generated variant paths to image sidecars through
// the role-to-profile map. It returns the number of images whose sidecars
// were updated and persisted; in-memory derived paths update for every image
// so dataset export always sees current values.
func (m *Manager) ApplyDerivatives(workspace *Workspace, variants map[string][]content.MediaVariant, refresh bool) (int, error) {
	updated := 0
	for _, image := range workspace.Images() {
		key := fmt.Sprintf("gallery/%s/%s", image.CollectionID, image.Metadata.Filename)
		matched := variants[key]
		if len(matched) == 0 {
			continue
		}

		derived := image.Metadata.Derived
		if derived == nil {
			derived = make(map[string]string)
			image.Metadata.Derived = derived
		}
		if derived[DerivedOriginal] == "" {
			derived[DerivedOriginal] = key
		}

		changed := false
		for role, profile := range m.profileMap {
			variant := findVariant(matched, profile)
			if variant == nil {
				continue
			}
			webPath := m.variantWebPath(variant.Path)
			if derived[role] != webPath {
				derived[role] = webPath
				changed = true
			}
		}
		if derived[DerivedDownload] == "" {
			derived[DerivedDownload] = derived[DerivedOriginal]
			changed = true
		}

		if changed && (refresh || !image.SidecarExisted) {
			image.Changed = true
			updated++
		}
	}

	if updated > 0 {
		if err := m.Persist(workspace, refresh); err != nil {
			return updated, err
		}
	}
	return updated, nil
}

func findVariant(variants []content.MediaVariant, profile string) *content.MediaVariant {
	for i := range variants {
		if variants[i].Profile == profile {
			return &variants[i]
		}
	}
	return nil
}

// variantWebPath converts a derivative-root-relative path into the
// site-relative path where staging publishes the file. A derived root inside
// the output root maps directly; one outside mirrors under its
// project-relative base, matching the staging layout.
func (m *Manager) variantWebPath(variantRel string) string {
	variant := strings.TrimLeft(path.Clean(variantRel), "/")

	if rel, err := filepath.Rel(m.outputRoot, m.derivedRoot); err == nil &&
		rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path.Join(filepath.ToSlash(rel), variant)
	}

	projectRoot := filepath.Dir(m.outputRoot)
	base := filepath.Base(m.derivedRoot)
	if rel, err := filepath.Rel(projectRoot, m.derivedRoot); err == nil &&
		rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		base = filepath.ToSlash(rel)
	}
	return path.Join(base, variant)
}
