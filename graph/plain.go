// ABOUTME: Plain-data boundary for node data: strips non-serializable values and decodes loose maps.
// ABOUTME: Anything entering a snapshot, the clipboard, or persisted state passes through here.
package graph

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// shadowKeys are never accepted from outside the propagation engine.
var shadowKeys = map[string]bool{
	"sourceNodeContent": true,
	"sourceImageUrl":    true,
	"sourceVideoUrl":    true,
	"generation":        true,
}

// Plain returns v restricted to JSON-plain values. Maps and slices are copied
// recursively with offending entries dropped; the bool is false when v itself
// cannot be represented.
func Plain(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case string, bool, float64, float32, json.Number:
		return t, true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			if p, ok := Plain(e); ok {
				out = append(out, p)
			}
		}
		return out, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			if p, ok := Plain(e); ok {
				out[k] = p
			}
		}
		return out, true
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out, true
	}
	return nil, false
}

// Sanitized returns a deep copy of d whose Extra holds only plain values.
func (d NodeData) Sanitized() NodeData {
	out := d
	if d.Extra != nil {
		p, _ := Plain(d.Extra)
		out.Extra = p.(map[string]any)
	}
	if d.Generation != nil {
		rec := *d.Generation
		out.Generation = &rec
	}
	return out
}

// cloneValue deep-copies a value already known to be plain.
func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	}
	return v
}

// DecodeData builds authored NodeData from a loose map such as a JSON body or
// a clipboard payload. Shadow keys are dropped; unknown keys land in Extra.
func DecodeData(raw map[string]any) (NodeData, error) {
	var out NodeData
	extra, err := decodeInto(raw, &out)
	if err != nil {
		return NodeData{}, err
	}
	if nested, ok := raw["extra"].(map[string]any); ok {
		for k, v := range nested {
			if p, ok := Plain(v); ok {
				extra[k] = p
			}
		}
	}
	if len(extra) > 0 {
		out.Extra = extra
	}
	return out, nil
}

// DecodePatch builds a DataPatch from a loose map. Absent keys stay nil;
// unknown keys become Extra updates.
func DecodePatch(raw map[string]any) (DataPatch, error) {
	var out DataPatch
	extra, err := decodeInto(raw, &out)
	if err != nil {
		return DataPatch{}, err
	}
	if nested, ok := raw["extra"].(map[string]any); ok {
		for k, v := range nested {
			if v == nil {
				extra[k] = nil
				continue
			}
			if p, ok := Plain(v); ok {
				extra[k] = p
			}
		}
	}
	if len(extra) > 0 {
		out.Extra = extra
	}
	return out, nil
}

func decodeInto(raw map[string]any, result any) (map[string]any, error) {
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         &md,
		Result:           result,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode node data: %w", err)
	}

	extra := make(map[string]any)
	sort.Strings(md.Unused)
	for _, k := range md.Unused {
		if shadowKeys[k] || k == "extra" {
			continue
		}
		if p, ok := Plain(raw[k]); ok {
			extra[k] = p
		}
	}
	return extra, nil
}
