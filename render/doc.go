// Package render rasterizes meme compositions to bitmaps.
//
// Two export paths are provided. Export draws a full composition (base
// image, captions and stickers) in paint order from a retained Scene built
// out of a composition.Snapshot. ExportAdjusted re-renders a single image
// onto a fixed-size template with brightness, contrast, saturation,
// rotation, zoom, pan and flip applied through one affine transform.
//
// Glyph outlines come from golang.org/x/image/font/sfnt and are filled by
// gg into coverage masks, which are then composited with image/draw. Both
// paths are deterministic: the same input produces the same PNG bytes.
//
// Quick start:
//
//	fonts := render.NewFontBook()
//	cmp := render.NewCompositor(fonts, render.FileLoader{Root: "memes"})
//	name, err := cmp.Export(ctx, comp.Snapshot(), out)
package render
