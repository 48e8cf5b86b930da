package render

import (
	"fmt"

	"github.com/gogpu/ggmeme/caption"
	"github.com/gogpu/ggmeme/composition"
)

// NodeKind tells the compositor how to draw a Node.
type NodeKind int

const (
	NodeText NodeKind = iota
	NodeEmoji
	NodeImage
)

func (k NodeKind) String() string {
	switch k {
	case NodeText:
		return "text"
	case NodeEmoji:
		return "emoji"
	case NodeImage:
		return "image"
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

// Node is one drawable layer of a Scene.
type Node struct {
	Ref    composition.Ref
	Kind   NodeKind
	Bounds composition.Rect

	Text   caption.Descriptor // NodeText
	Emoji  string             // NodeEmoji
	Source string             // NodeImage
}

// Scene is a retained description of everything an export draws: the
// base image and the layers in paint order, bottom first. It never carries
// editor chrome such as selection outlines or handles.
type Scene struct {
	Base   string
	Width  int // zero takes the decoded base image size
	Height int
	Nodes  []Node
}

// BuildScene resolves a snapshot into a scene. Caption styles are turned
// into render descriptions; an invalid style fails the whole scene.
func BuildScene(snap composition.Snapshot) (Scene, error) {
	sc := Scene{
		Base:   snap.Image.Ref,
		Width:  snap.Image.Width,
		Height: snap.Image.Height,
	}
	for _, ref := range snap.PaintOrder() {
		switch ref.Kind {
		case composition.KindText:
			t, _ := snap.Text(ref.ID)
			desc, err := caption.RenderDescriptor(t.Caption)
			if err != nil {
				return Scene{}, fmt.Errorf("render: text layer %s: %w", ref.ID, err)
			}
			sc.Nodes = append(sc.Nodes, Node{Ref: ref, Kind: NodeText, Bounds: t.Rect, Text: desc})
		case composition.KindSticker:
			s, _ := snap.Sticker(ref.ID)
			n := Node{Ref: ref, Bounds: s.Bounds()}
			if s.Kind == composition.StickerImage {
				n.Kind, n.Source = NodeImage, s.ImageSource
			} else {
				n.Kind, n.Emoji = NodeEmoji, s.Emoji
			}
			sc.Nodes = append(sc.Nodes, n)
		}
	}
	return sc, nil
}
