package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// HandsetDocument is one read-only corpus row. Position is the row's index in the
// original corpus and breaks launch-date ties.
type HandsetDocument struct {
	Position   int            `json:"position"`
	Attributes map[string]any `json:"attributes"`
	LaunchDate time.Time      `json:"launch_date"`
}

var (
	modelKeys  = []string{"model", "name", "phone_model"}
	brandKeys  = []string{"brand", "manufacturer"}
	colourKeys = []string{"colours", "colors", "colour", "color"}
	screenKeys = []string{"screen_size", "screen_size_inches", "display_size"}
)

func (d HandsetDocument) Model() string {
	return d.firstString(modelKeys)
}

func (d HandsetDocument) Brand() string {
	if b := d.firstString(brandKeys); b != "" {
		return b
	}
	if fields := strings.Fields(d.Model()); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// DisplayName is brand + model unless the model already starts with the brand.
func (d HandsetDocument) DisplayName() string {
	model := d.Model()
	brand := d.firstString(brandKeys)
	if brand == "" || strings.HasPrefix(strings.ToLower(model), strings.ToLower(brand)) {
		return model
	}
	return brand + " " + model
}

func (d HandsetDocument) Colours() []string {
	for _, key := range colourKeys {
		raw, ok := d.Attributes[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return v
		default:
			parts := strings.FieldsFunc(fmt.Sprint(v), func(r rune) bool { return r == ',' || r == '/' || r == ';' })
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if s := strings.TrimSpace(p); s != "" {
					out = append(out, s)
				}
			}
			return out
		}
	}
	return nil
}

func (d HandsetDocument) ScreenSize() (float64, bool) {
	for _, key := range screenKeys {
		raw, ok := d.Attributes[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		default:
			s := strings.TrimSpace(strings.TrimRight(fmt.Sprint(v), "\" inchesINCHES"))
			f, err := strconv.ParseFloat(s, 64)
			if err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func (d HandsetDocument) Attr(key string) string {
	raw, ok := d.Attributes[key]
	if !ok || raw == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(raw))
}

// Content is the JSON text the document is embedded and shown to models as.
func (d HandsetDocument) Content() string {
	raw, err := json.Marshal(d.Attributes)
	if err != nil {
		return d.Model()
	}
	return string(raw)
}

// Summary renders the attributes other than identity fields as "key: value" pairs.
func (d HandsetDocument) Summary() string {
	skip := map[string]bool{"url": true}
	for _, k := range append(append([]string{}, modelKeys...), brandKeys...) {
		skip[k] = true
	}
	keys := make([]string, 0, len(d.Attributes))
	for k := range d.Attributes {
		if !skip[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := d.Attr(k)
		if v == "" {
			continue
		}
		parts = append(parts, strings.ReplaceAll(k, "_", " ")+": "+v)
	}
	return strings.Join(parts, ", ")
}

func (d HandsetDocument) firstString(keys []string) string {
	for _, key := range keys {
		if v := d.Attr(key); v != "" {
			return v
		}
	}
	return ""
}

// SortByRecency orders documents by launch date, newest first, keeping corpus order on ties.
func SortByRecency(docs []HandsetDocument) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].LaunchDate.Equal(docs[j].LaunchDate) {
			return docs[i].LaunchDate.After(docs[j].LaunchDate)
		}
		return docs[i].Position < docs[j].Position
	})
}

// ParseLaunchDate accepts time values and the date layouts seen in catalog exports.
func ParseLaunchDate(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range []string{DateLayout, time.RFC3339, "2006/01/02", "02/01/2006", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognised launch_date %q", s)
	case nil:
		return time.Time{}, fmt.Errorf("launch_date is missing")
	default:
		return ParseLaunchDate(fmt.Sprint(v))
	}
}
