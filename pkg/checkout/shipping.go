package checkout

import (
	"fmt"

	"github.com/hostedpay-rs/hostedpay-go/pkg/types"
)

// ShippingRegistry holds the ordered shipping options attached to a session
// and records which one the buyer ultimately chose.
//
// The id set is fixed at construction. At most one option may be selected at
// any time; construction rejects option lists that violate either rule.
type ShippingRegistry struct {
	options []types.ShippingOption
	byID    map[string]int
}

// NewShippingRegistry validates and registers a session's shipping options.
func NewShippingRegistry(options []types.ShippingOption) (*ShippingRegistry, error) {
	r := &ShippingRegistry{
		options: make([]types.ShippingOption, len(options)),
		byID:    make(map[string]int, len(options)),
	}
	copy(r.options, options)

	selected := 0
	for i, opt := range r.options {
		if opt.ID == "" {
			return nil, types.NewShippingOptionConflictError("shipping options must have a non-empty id")
		}
		if opt.Type != "" && !opt.Type.IsValid() {
			return nil, types.NewShippingOptionConflictError(
				fmt.Sprintf("shipping option %q has unknown type %q", opt.ID, opt.Type))
		}
		if _, dup := r.byID[opt.ID]; dup {
			return nil, types.NewShippingOptionConflictError(
				fmt.Sprintf("duplicate shipping option id %q", opt.ID))
		}
		if opt.Selected {
			selected++
			if selected > 1 {
				return nil, types.NewShippingOptionConflictError("at most one shipping option may be selected")
			}
		}
		r.byID[opt.ID] = i
	}
	return r, nil
}

// Contains reports whether id was registered for this session.
func (r *ShippingRegistry) Contains(id string) bool {
	if r == nil {
		return false
	}
	_, ok := r.byID[id]
	return ok
}

// Select records the option the hosted flow reported chosen, clearing any
// previous selection. Unknown ids fail with UnknownShippingOption.
func (r *ShippingRegistry) Select(id string) error {
	if r == nil || !r.Contains(id) {
		return types.NewUnknownShippingOptionError(id)
	}
	for i := range r.options {
		r.options[i].Selected = r.options[i].ID == id
	}
	return nil
}

// Selected returns the currently selected option, or nil if none is selected.
func (r *ShippingRegistry) Selected() *types.ShippingOption {
	if r == nil {
		return nil
	}
	for i := range r.options {
		if r.options[i].Selected {
			opt := r.options[i]
			return &opt
		}
	}
	return nil
}

// Options returns a copy of the registered options in registration order.
func (r *ShippingRegistry) Options() []types.ShippingOption {
	if r == nil {
		return nil
	}
	out := make([]types.ShippingOption, len(r.options))
	copy(out, r.options)
	return out
}
