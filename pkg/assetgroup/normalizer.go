package assetgroup

import "strings"

// Normalize trims vendor whitespace. The impact keeps its case so a value
// Qualys reports as "minor" is still rewritten to "Minor".
func Normalize(g AssetGroup) AssetGroup {
	g.ID = strings.TrimSpace(g.ID)
	g.Title = strings.TrimSpace(g.Title)
	g.BusinessImpact = strings.TrimSpace(g.BusinessImpact)
	return g
}

// NeedsUpdate reports whether the group's impact is anything other than
// exactly target. Groups without an impact always need one.
func (g AssetGroup) NeedsUpdate(target Impact) bool {
	return g.BusinessImpact != string(target)
}

// DisplayName falls back to the ID for untitled groups.
func (g AssetGroup) DisplayName() string {
	if g.Title != "" {
		return g.Title
	}
	return g.ID
}
