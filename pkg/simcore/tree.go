package simcore

import (
	"strconv"

	"github.com/zoneremote/zoneremote-go/pkg/browse"
)

// Node is an entry of the simulated browse hierarchy. Nodes with children
// open a list when browsed; leaves are actions that start playback.
type Node struct {
	Key      string
	Title    string
	Subtitle string
	Children []*Node
}

// Dir returns a node with children.
func Dir(title string, children ...*Node) *Node {
	return &Node{Title: title, Children: children}
}

// Leaf returns an action node.
func Leaf(title, subtitle string) *Node {
	return &Node{Title: title, Subtitle: subtitle}
}

func (n *Node) isList() bool {
	return len(n.Children) > 0
}

func (n *Node) item() browse.Item {
	hint := "action"
	if n.isList() {
		hint = "list"
	}
	return browse.Item{ItemKey: n.Key, Title: n.Title, Subtitle: n.Subtitle, Hint: hint}
}

func (n *Node) child(key string) *Node {
	for _, c := range n.Children {
		if c.Key == key {
			return c
		}
	}
	return nil
}

// assignKeys numbers nodes breadth-first starting at 1, so the entries of
// the root list get keys "1", "2", ...
func assignKeys(root *Node) {
	next := 1
	queue := []*Node{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, c := range n.Children {
			c.Key = strconv.Itoa(next)
			next++
			queue = append(queue, c)
		}
	}
}

// DefaultTree returns a small hierarchy with live radio first.
func DefaultTree() *Node {
	return Dir("Explore",
		Dir("My Live Radio",
			Leaf("Radio Paradise", "Eclectic"),
			Leaf("BBC Radio 3", "Classical"),
			Leaf("FIP", "Jazz and more"),
		),
		Dir("Library",
			Dir("Artists",
				Leaf("Nina Simone", "12 albums"),
				Leaf("Miles Davis", "9 albums"),
			),
			Dir("Albums",
				Leaf("Kind of Blue", "Miles Davis"),
				Leaf("Pastel Blues", "Nina Simone"),
			),
		),
		Dir("Playlists",
			Leaf("Morning", "24 tracks"),
		),
	)
}

// browser is the browse position of one connected remote.
type browser struct {
	stack   []*Node
	offsets map[*Node]int
}

func newBrowser(root *Node) *browser {
	return &browser{stack: []*Node{root}, offsets: make(map[*Node]int)}
}

func (b *browser) top() *Node {
	return b.stack[len(b.stack)-1]
}

func (b *browser) pop(levels int) {
	for levels > 0 && len(b.stack) > 1 {
		b.stack = b.stack[:len(b.stack)-1]
		levels--
	}
}

func (b *browser) list() *browse.List {
	n := b.top()
	offset, ok := b.offsets[n]
	if !ok {
		offset = -1
	}
	return &browse.List{
		Title:         n.Title,
		Count:         len(n.Children),
		Level:         len(b.stack) - 1,
		DisplayOffset: offset,
	}
}

func (b *browser) load(opts browse.LoadOptions) *browse.LoadResult {
	n := b.top()
	b.offsets[n] = opts.SetDisplayOffset

	count := opts.Count
	if count <= 0 {
		count = DefaultPageSize
	}
	start := min(max(opts.Offset, 0), len(n.Children))
	end := min(start+count, len(n.Children))

	items := make([]browse.Item, 0, end-start)
	for _, c := range n.Children[start:end] {
		items = append(items, c.item())
	}
	return &browse.LoadResult{Items: items, Offset: start, List: b.list()}
}
