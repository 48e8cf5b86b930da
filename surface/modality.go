package surface

// Modality is the class of pointing device driving the surface.
type Modality int

const (
	// Precise is a mouse, trackpad or pen.
	Precise Modality = iota
	// Touch is a finger on a touch screen.
	Touch
)

func (m Modality) String() string {
	if m == Touch {
		return "touch"
	}
	return "precise"
}

// ParseModality maps "touch" and "precise" to a Modality.
func ParseModality(s string) (Modality, bool) {
	switch s {
	case "touch":
		return Touch, true
	case "precise", "":
		return Precise, true
	}
	return Precise, false
}

// Capabilities describes the input hardware reported by the client.
type Capabilities struct {
	// CoarsePointer is true when the primary pointer has low accuracy.
	CoarsePointer bool `json:"coarsePointer"`
	// AnyHover is true when some pointer can hover.
	AnyHover bool `json:"anyHover"`
	// MaxTouchPoints is the number of simultaneous touches supported.
	MaxTouchPoints int `json:"maxTouchPoints"`
}

// DetectModality picks Touch for coarse primary pointers and for
// touch-capable devices without any hovering pointer.
func DetectModality(c Capabilities) Modality {
	if c.CoarsePointer || (c.MaxTouchPoints > 0 && !c.AnyHover) {
		return Touch
	}
	return Precise
}

// HandleSize is the edge length of the resize handle and its hit target.
func (m Modality) HandleSize() float64 {
	if m == Touch {
		return 28
	}
	return 20
}

// MinTextSize is the smallest text box a resize may produce.
func (m Modality) MinTextSize() (w, h float64) {
	if m == Touch {
		return 80, 44
	}
	return 60, 30
}

// MinStickerSize is the smallest sticker edge a resize may produce.
func (m Modality) MinStickerSize() float64 {
	if m == Touch {
		return 48
	}
	return 32
}
