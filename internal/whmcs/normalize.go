package whmcs

import (
	"encoding/json"
	"strconv"
)

// The upstream represents its product collection in three shapes: an
// object wrapping a "product" key (holding either one object or a list),
// a bare list, or nothing at all. normalizeProducts resolves the shape
// once at the deserialization boundary and always returns a flat slice;
// nothing downstream branches on shape again. Malformed (non-object)
// entries are skipped rather than failing the batch.
func normalizeProducts(raw json.RawMessage) []Product {
	items := productItems(raw)

	products := make([]Product, 0, len(items))
	for _, item := range items {
		var fields map[string]interface{}
		if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
			continue
		}
		products = append(products, normalizeProduct(fields))
	}
	return products
}

func productItems(raw json.RawMessage) []json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	// Object shape: {"product": <object or list>} or a bare keyed map.
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err == nil {
		if inner, ok := wrapper["product"]; ok {
			return listOrSingle(inner)
		}
		items := make([]json.RawMessage, 0, len(wrapper))
		for _, v := range wrapper {
			items = append(items, v)
		}
		return items
	}

	return listOrSingle(raw)
}

func listOrSingle(raw json.RawMessage) []json.RawMessage {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	return []json.RawMessage{raw}
}

func normalizeProduct(fields map[string]interface{}) Product {
	return Product{
		ID:           asInt64(fields["pid"]),
		Name:         asString(fields["name"]),
		Description:  asString(fields["description"]),
		GroupID:      asInt64(fields["gid"]),
		Module:       asString(fields["module"]),
		StockControl: asString(fields["stockcontrol"]) == "1",
		Quantity:     int(asInt64(fields["qty"])),
		Available:    asStringDefault(fields["retired"], "0") == "0",
		Pricing:      normalizePricing(fields["pricing"]),
		Order:        int(asInt64(fields["order"])),
	}
}

func normalizePricing(raw interface{}) map[string]map[string]Price {
	byCurrency, ok := raw.(map[string]interface{})
	if !ok || len(byCurrency) == 0 {
		return map[string]map[string]Price{}
	}

	normalized := make(map[string]map[string]Price, len(byCurrency))
	for currency, periodsRaw := range byCurrency {
		periods, ok := periodsRaw.(map[string]interface{})
		if !ok {
			continue
		}
		normalized[currency] = make(map[string]Price, len(periods))
		for period, infoRaw := range periods {
			info, ok := infoRaw.(map[string]interface{})
			if !ok {
				continue
			}
			normalized[currency][period] = Price{
				Price: asFloat64(info["price"]),
				Setup: asFloat64(info["setup"]),
			}
		}
	}
	return normalized
}

// The upstream encodes numbers and booleans as strings ("1", "0", "5.00")
// about as often as native JSON types. These coercions accept both.

func asString(v interface{}) string {
	return asStringDefault(v, "")
}

func asStringDefault(v interface{}, def string) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "1"
		}
		return "0"
	default:
		return def
	}
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return int64(f)
		}
	}
	return 0
}

func asFloat64(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f
		}
	}
	return 0
}
