package cart

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Reasons an entry read from a slot can be dropped.
const (
	DropMalformed      = "malformed"
	DropNonPositiveQty = "non_positive_quantity"
	DropDuplicateID    = "duplicate_id"
)

// slotEntry is the on-slot form of a LineItem. UnitPrice is written as a
// JSON number.
type slotEntry struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	UnitPrice json.Number `json:"unitPrice"`
	Quantity  int         `json:"quantity"`
	Image     string      `json:"image"`
}

// Encode serializes items in slot format. An empty cart encodes as [].
func Encode(items []LineItem) ([]byte, error) {
	entries := make([]slotEntry, len(items))
	for i, it := range items {
		entries[i] = slotEntry{
			ID:        it.ID,
			Name:      it.Name,
			UnitPrice: json.Number(it.UnitPrice.String()),
			Quantity:  it.Quantity,
			Image:     it.Image,
		}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode cart: %w", err)
	}
	return data, nil
}

// Drop describes one slot entry that Decode discarded.
type Drop struct {
	Index  int
	Reason string
	Detail string
}

// Decode parses slot contents entry by entry. Entries that fail the
// structural check are dropped and reported; the rest are returned in
// order. An error is returned only when data is not a JSON array at all.
func Decode(data []byte) ([]LineItem, []Drop, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("slot is not a JSON array: %w", err)
	}

	var (
		items []LineItem
		drops []Drop
		seen  = make(map[int64]struct{}, len(raw))
	)
	for i, entry := range raw {
		it, err := decodeEntry(entry)
		if err != nil {
			drops = append(drops, Drop{Index: i, Reason: DropMalformed, Detail: err.Error()})
			continue
		}
		if it.Quantity <= 0 {
			drops = append(drops, Drop{Index: i, Reason: DropNonPositiveQty, Detail: fmt.Sprintf("quantity %d", it.Quantity)})
			continue
		}
		if _, dup := seen[it.ID]; dup {
			drops = append(drops, Drop{Index: i, Reason: DropDuplicateID, Detail: fmt.Sprintf("id %d", it.ID)})
			continue
		}
		seen[it.ID] = struct{}{}
		items = append(items, it)
	}
	return items, drops, nil
}

func decodeEntry(entry json.RawMessage) (LineItem, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil || fields == nil {
		return LineItem{}, fmt.Errorf("entry is not an object")
	}

	id, err := intField(fields, "id")
	if err != nil {
		return LineItem{}, err
	}
	if id <= 0 {
		return LineItem{}, fmt.Errorf("id must be positive")
	}

	var name string
	if err := stringField(fields, "name", &name, true); err != nil {
		return LineItem{}, err
	}

	price, err := numberField(fields, "unitPrice")
	if err != nil {
		return LineItem{}, err
	}
	unitPrice, err := decimal.NewFromString(price.String())
	if err != nil {
		return LineItem{}, fmt.Errorf("unitPrice: %w", err)
	}
	if err := CheckUnitPrice(unitPrice); err != nil {
		return LineItem{}, err
	}

	qty, err := intField(fields, "quantity")
	if err != nil {
		return LineItem{}, err
	}
	if qty > MaxQuantity {
		return LineItem{}, fmt.Errorf("quantity exceeds %d", MaxQuantity)
	}

	var image string
	if err := stringField(fields, "image", &image, false); err != nil {
		image = ""
	}

	return LineItem{
		ID:        id,
		Name:      name,
		UnitPrice: unitPrice,
		Quantity:  int(qty),
		Image:     image,
	}, nil
}

// numberField returns fields[key] when it is a JSON number literal.
func numberField(fields map[string]json.RawMessage, key string) (json.Number, error) {
	raw, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("%s missing", key)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	n, ok := v.(json.Number)
	if !ok {
		return "", fmt.Errorf("%s is not a number", key)
	}
	return n, nil
}

func intField(fields map[string]json.RawMessage, key string) (int64, error) {
	n, err := numberField(fields, key)
	if err != nil {
		return 0, err
	}
	v, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("%s is not an integer", key)
	}
	return v, nil
}

func stringField(fields map[string]json.RawMessage, key string, dst *string, required bool) error {
	raw, ok := fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if required {
			return fmt.Errorf("%s missing", key)
		}
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%s is not a string", key)
	}
	return nil
}
