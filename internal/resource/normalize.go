package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/tphummel/lab_inventory/internal/models"
)

var (
	idKeys        = []string{"_id", "id"}
	referenceKeys = []string{"reference_id", "referenceID", "referenceId"}
	createdKeys   = []string{"createdAt", "created_at"}
	updatedKeys   = []string{"updatedAt", "updated_at"}
)

// Normalize maps one decoded backend object onto the kind's canonical
// item. Later keys in each list win, and a canonical field name always
// beats an alias. Every canonical field is present, defaulting to "".
func Normalize(k models.Kind, raw map[string]any) models.Item {
	it := models.Item{Fields: make(map[string]string, len(k.Fields))}
	for _, f := range k.Fields {
		it.Fields[f] = ""
	}

	for _, key := range slices.Sorted(maps.Keys(raw)) {
		v := raw[key]
		if canonical, ok := k.Aliases[key]; ok && !k.HasField(key) {
			if _, shadowed := raw[canonical]; !shadowed {
				it.Fields[canonical] = strings.TrimSpace(models.FormatValue(v))
			}
		}
	}
	for _, f := range k.Fields {
		if v, ok := raw[f]; ok {
			it.Fields[f] = strings.TrimSpace(models.FormatValue(v))
		}
	}

	it.ID = firstString(raw, idKeys)
	it.ReferenceID = firstString(raw, referenceKeys)
	it.CreatedAt = firstTime(raw, createdKeys)
	it.UpdatedAt = firstTime(raw, updatedKeys)
	return it
}

func firstString(raw map[string]any, keys []string) string {
	var out string
	for _, key := range keys {
		if v, ok := raw[key]; ok && v != nil {
			if s := models.FormatValue(v); s != "" {
				out = s
			}
		}
	}
	return out
}

func firstTime(raw map[string]any, keys []string) time.Time {
	s := firstString(raw, keys)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// payload renders it as the request body for a create or update.
func payload(k models.Kind, it models.Item) map[string]any {
	out := make(map[string]any, len(k.Fields)+1)
	for _, f := range k.Fields {
		out[f] = it.Get(f)
	}
	if it.ReferenceID != "" {
		out["referenceId"] = it.ReferenceID
	}
	return out
}

func decodeObjects(body []byte) ([]map[string]any, error) {
	body = bytes.TrimSpace(body)
	dec := func(b []byte, v any) error {
		d := json.NewDecoder(bytes.NewReader(b))
		d.UseNumber()
		return d.Decode(v)
	}

	if len(body) > 0 && body[0] == '[' {
		var list []map[string]any
		if err := dec(body, &list); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return list, nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := dec(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil, fmt.Errorf("decode list: response is neither an array nor a {\"data\": [...]} envelope")
	}
	var list []map[string]any
	if err := dec(envelope.Data, &list); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return list, nil
}

func decodeObject(body []byte) (map[string]any, error) {
	var obj map[string]any
	d := json.NewDecoder(bytes.NewReader(body))
	d.UseNumber()
	if err := d.Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	if inner, ok := obj["data"].(map[string]any); ok {
		return inner, nil
	}
	return obj, nil
}
