package overlay

import "github.com/joeblew999/plat-marine/internal/registry"

// anchorFor returns the layer a new group of e is inserted beneath. A group
// goes under the lowest layer of any active overlay in its class requested
// after it, so same-class order follows request order whichever fetch
// finishes first. Otherwise TOP groups sit directly beneath the vessel
// anchor and BOTTOM groups beneath the lowest active TOP layer.
func (m *Manager) anchorFor(e *entry) string {
	class := e.desc.Stacking
	lowestTop := ""
	for _, lid := range m.surf.LayerIDs() {
		owner, ok := m.owners[lid]
		if !ok {
			continue
		}
		o := m.entries[owner]
		if o == e || o.state != Active {
			continue
		}
		if o.desc.Stacking == class && o.seq > e.seq {
			return lid
		}
		if lowestTop == "" && o.desc.Stacking == registry.Top {
			lowestTop = lid
		}
	}
	if class == registry.Bottom && lowestTop != "" {
		return lowestTop
	}
	return registry.Anchor
}
