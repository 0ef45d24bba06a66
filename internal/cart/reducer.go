package cart

// Action is a cart transition. The set of actions is closed: AddItem,
// RemoveItem, SetQuantity, Clear and LoadFromStorage.
type Action interface {
	action()
}

// AddItem adds one unit of Candidate, appending a new line when the product
// is not yet in the cart. A line already at MaxQuantity is left unchanged.
type AddItem struct{ Candidate Candidate }

// RemoveItem deletes the line for ID, if any.
type RemoveItem struct{ ID int64 }

// SetQuantity sets the line's quantity, clamped to MaxQuantity. A quantity
// of zero or less removes the line.
type SetQuantity struct {
	ID       int64
	Quantity int
}

// Clear empties the cart.
type Clear struct{}

// LoadFromStorage replaces the cart with items that already passed slot
// validation.
type LoadFromStorage struct{ Items []LineItem }

func (AddItem) action()         {}
func (RemoveItem) action()      {}
func (SetQuantity) action()     {}
func (Clear) action()           {}
func (LoadFromStorage) action() {}

// Reduce returns the cart that results from applying a to state. state is
// never modified.
func Reduce(state Cart, a Action) Cart {
	switch a := a.(type) {
	case AddItem:
		next := state.clone()
		if i := next.indexOf(a.Candidate.ID); i >= 0 {
			if next.Items[i].Quantity >= MaxQuantity {
				return state
			}
			next.Items[i].Quantity++
			return next
		}
		next.Items = append(next.Items, LineItem{
			ID:        a.Candidate.ID,
			Name:      a.Candidate.Name,
			UnitPrice: a.Candidate.UnitPrice,
			Quantity:  1,
			Image:     a.Candidate.Image,
		})
		return next

	case RemoveItem:
		i := state.indexOf(a.ID)
		if i < 0 {
			return state
		}
		return without(state, i)

	case SetQuantity:
		i := state.indexOf(a.ID)
		if i < 0 {
			return state
		}
		if a.Quantity <= 0 {
			return without(state, i)
		}
		next := state.clone()
		next.Items[i].Quantity = min(a.Quantity, MaxQuantity)
		return next

	case Clear:
		return Cart{}

	case LoadFromStorage:
		return Cart{Items: append([]LineItem(nil), a.Items...)}

	default:
		return state
	}
}

func without(state Cart, i int) Cart {
	items := make([]LineItem, 0, len(state.Items)-1)
	items = append(items, state.Items[:i]...)
	items = append(items, state.Items[i+1:]...)
	return Cart{Items: items}
}
