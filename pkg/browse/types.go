package browse

// DefaultHierarchy is the hierarchy used when none is configured.
const DefaultHierarchy = "browse"

// Action is the kind of result returned by a browse request.
type Action string

// Browse result actions.
const (
	ActionList        Action = "list"
	ActionMessage     Action = "message"
	ActionReplaceItem Action = "replace_item"
	ActionRemoveItem  Action = "remove_item"
	ActionNone        Action = "none"
)

// IsValid returns true if the action is one the session understands.
func (a Action) IsValid() bool {
	switch a {
	case ActionList, ActionMessage, ActionReplaceItem, ActionRemoveItem, ActionNone:
		return true
	}
	return false
}

// Options are the parameters of a browse request.
type Options struct {
	Hierarchy      string `cbor:"1,keyasint" json:"hierarchy"`
	ZoneOrOutputID string `cbor:"2,keyasint,omitempty" json:"zone_or_output_id,omitempty"`

	// ItemKey selects an item of the current list. Empty means the
	// request refers to the current level itself.
	ItemKey string `cbor:"3,keyasint,omitempty" json:"item_key,omitempty"`

	// Input is the text entered for input-prompt items (search fields).
	Input string `cbor:"4,keyasint,omitempty" json:"input,omitempty"`

	// PopAll returns to the root of the hierarchy.
	PopAll bool `cbor:"5,keyasint,omitempty" json:"pop_all,omitempty"`

	// PopLevels pops that many levels before applying ItemKey.
	PopLevels int `cbor:"6,keyasint,omitempty" json:"pop_levels,omitempty"`

	RefreshList bool `cbor:"7,keyasint,omitempty" json:"refresh_list,omitempty"`
}

// Result is the core's answer to a browse request.
type Result struct {
	Action Action `cbor:"1,keyasint" json:"action"`

	// List is set for ActionList.
	List *List `cbor:"2,keyasint,omitempty" json:"list,omitempty"`

	// Item is set for ActionReplaceItem.
	Item *Item `cbor:"3,keyasint,omitempty" json:"item,omitempty"`

	// Message and IsError are set for ActionMessage.
	Message string `cbor:"4,keyasint,omitempty" json:"message,omitempty"`
	IsError bool   `cbor:"5,keyasint,omitempty" json:"is_error,omitempty"`
}

// List describes the list currently presented by the core.
type List struct {
	Title    string `cbor:"1,keyasint" json:"title"`
	Subtitle string `cbor:"2,keyasint,omitempty" json:"subtitle,omitempty"`
	Count    int    `cbor:"3,keyasint" json:"count"`
	Level    int    `cbor:"4,keyasint" json:"level"`

	// DisplayOffset is the offset the core suggests showing first. The
	// core reports -1 when it has no preference.
	DisplayOffset int    `cbor:"5,keyasint" json:"display_offset"`
	ImageKey      string `cbor:"6,keyasint,omitempty" json:"image_key,omitempty"`
	Hint          string `cbor:"7,keyasint,omitempty" json:"hint,omitempty"`
}

// Item is an entry of a browse list.
type Item struct {
	ItemKey  string `cbor:"1,keyasint,omitempty" json:"item_key,omitempty"`
	Title    string `cbor:"2,keyasint" json:"title"`
	Subtitle string `cbor:"3,keyasint,omitempty" json:"subtitle,omitempty"`
	ImageKey string `cbor:"4,keyasint,omitempty" json:"image_key,omitempty"`

	// Hint is one of action, action_list, list or header.
	Hint string `cbor:"5,keyasint,omitempty" json:"hint,omitempty"`
}

// LoadOptions are the parameters of a load request.
type LoadOptions struct {
	Hierarchy        string `cbor:"1,keyasint" json:"hierarchy"`
	Offset           int    `cbor:"2,keyasint" json:"offset"`
	SetDisplayOffset int    `cbor:"3,keyasint" json:"set_display_offset"`

	// Count limits the page size. Zero lets the core decide.
	Count int `cbor:"4,keyasint,omitempty" json:"count,omitempty"`
}

// LoadResult is a page of items returned by a load request.
type LoadResult struct {
	Items  []Item `cbor:"1,keyasint" json:"items"`
	Offset int    `cbor:"2,keyasint" json:"offset"`
	List   *List  `cbor:"3,keyasint,omitempty" json:"list,omitempty"`
}

// State is the locally cached view of the browse session.
type State struct {
	List       *List  `json:"list"`
	Items      []Item `json:"items"`
	ListOffset int    `json:"list_offset"`
}

func (s State) clone() State {
	c := State{ListOffset: s.ListOffset}
	if s.List != nil {
		l := *s.List
		c.List = &l
	}
	if s.Items != nil {
		c.Items = make([]Item, len(s.Items))
		copy(c.Items, s.Items)
	}
	return c
}
