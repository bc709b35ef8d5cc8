package domain

// Category is a node of the category forest. Nodes without sub-categories
// (absent or empty) are leaves; only leaves can be picked for a draft.
type Category struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	SubCategories []Category `json:"subCategories,omitempty"`
}

// IsLeaf reports whether the node has no children.
func (c Category) IsLeaf() bool {
	return len(c.SubCategories) == 0
}

// Oracle resolves markets. The address is an EVM account.
type Oracle struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}
