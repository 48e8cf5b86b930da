// Package ggmeme is a meme composition toolkit built on gg.
//
// # Overview
//
// A meme is a [composition.Composition]: a base image plus z-ordered text
// captions and stickers. The sub-packages split the work:
//
//   - caption: caption styles, presets and the pure render descriptor
//     (outline offsets, gradient fill, arc glyph placement)
//   - composition: the authoritative layer model and its invariants
//   - surface: pointer-driven selection, drag, resize and grid snapping
//   - render: deterministic rasterization and the single-image exporter
//   - ledger: local engagement streaks, levels and the daily challenge
//   - remix: URL-safe share tokens that rebuild a composition
//   - storage, api, studio, server: persistence, backend client,
//     session orchestration and the HTTP surface
//
// # Quick Start
//
//	comp := composition.New(composition.Image{Ref: "cat.png", Name: "cat", Width: 800, Height: 600})
//	id := comp.AddTextLayer()
//	c := caption.Default()
//	c.Text = "HELLO"
//	comp.UpdateCaption(id, c)
//
//	fonts := render.NewFontBook()
//	cmp := render.NewCompositor(fonts, render.FileLoader{})
//	name, err := cmp.Export(ctx, comp.Snapshot(), out)
//
// # Coordinate System
//
// Layer geometry is expressed in image pixels with the origin at the
// top-left corner of the base image, X increasing right and Y increasing
// down. Rotations are in degrees, clockwise positive.
//
// # Logging
//
// ggmeme is silent by default. See [SetLogger].
package ggmeme

// Version information
const (
	// Version is the current version of the module
	Version = "0.3.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 3

	// VersionPatch is the patch version
	VersionPatch = 0
)
