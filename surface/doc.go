// Package surface turns pointer gestures into composition mutations.
//
// A Surface sits between an input source (mouse, pen or finger) and a
// composition.Composition. It hit-tests layers in paint order, selects
// them, drags them inside the canvas bounds with optional grid snapping,
// and resizes them while honouring the minimum sizes of the active input
// modality. It never changes caption indices or z-order.
//
// While exporting, the surface ignores all input and reports no editor
// chrome, so a captured frame contains only the composition itself.
//
// A Surface is driven from a single event loop and is not safe for
// concurrent use.
package surface
