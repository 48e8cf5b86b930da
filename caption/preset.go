package caption

// Preset is a fixed (font, size, fill, outline) style tuple.
type Preset struct {
	Name         string     `json:"name"`
	FontFamily   FontFamily `json:"fontFamily"`
	FontSize     int        `json:"fontSize"`
	Color        string     `json:"color"`
	OutlineColor string     `json:"outlineColor"`
}

// Presets is the fixed list offered by the editor.
var Presets = []Preset{
	{Name: "Classic", FontFamily: FontImpact, FontSize: 36, Color: "#ffffff", OutlineColor: "#000000"},
	{Name: "Bold Pop", FontFamily: FontAnton, FontSize: 42, Color: "#facc15", OutlineColor: "#1f2937"},
	{Name: "Neon", FontFamily: FontArial, FontSize: 34, Color: "#22d3ee", OutlineColor: "#7c3aed"},
	{Name: "Retro", FontFamily: FontGeorgia, FontSize: 30, Color: "#fb923c", OutlineColor: "#451a03"},
	{Name: "Minimal", FontFamily: FontArial, FontSize: 24, Color: "#111827", OutlineColor: "#ffffff"},
	{Name: "Comic", FontFamily: FontComicSans, FontSize: 32, Color: "#ffffff", OutlineColor: "#dc2626"},
}

// PresetByName returns the preset with the given name.
func PresetByName(name string) (Preset, bool) {
	for _, p := range Presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// Apply returns c with exactly the preset's four style fields overwritten.
// Text and effect are preserved.
func (p Preset) Apply(c Caption) Caption {
	c.FontFamily = p.FontFamily
	c.FontSize = ClampFontSize(p.FontSize)
	c.Color = p.Color
	c.OutlineColor = p.OutlineColor
	return c
}
