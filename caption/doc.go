// Package caption defines per-caption styling and the pure render descriptor
// that the compositor turns into pixels.
//
// A [Caption] is the content and style of one text layer. [RenderDescriptor]
// maps it to a [Descriptor] without side effects: resolved colours, the
// eight-direction outline offsets used in place of a native stroke, the
// four-stop gradient for the gradient effect, and per-glyph placement for
// the arc effect.
//
// Presets overwrite exactly the font family, font size, fill colour and
// outline colour of a caption; text and effect are left untouched.
package caption
