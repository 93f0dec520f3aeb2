package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mesh-intelligence/metafields/pkg/types"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return sysError("encode output: %w", err)
	}
	return nil
}

// printValues writes a value tree as "key: value" lines in schema order, or
// as one JSON object in JSON mode.
func (a *app) printValues(w io.Writer, vals *types.Values) error {
	if a.jsonMode {
		return printJSON(w, vals)
	}
	for _, key := range vals.Keys() {
		v, _ := vals.Get(key)
		text, err := compact(v)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %s\n", key, text)
	}
	return nil
}

// printValue writes a single field value.
func (a *app) printValue(w io.Writer, name string, v types.Value) error {
	if a.jsonMode {
		return printJSON(w, map[string]types.Value{"name": name, "value": v})
	}
	if s, ok := v.(string); ok {
		fmt.Fprintln(w, s)
		return nil
	}
	text, err := compact(v)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, text)
	return nil
}

// printSchemas lists schemas one per line with their field names.
func (a *app) printSchemas(w io.Writer, schemas []*types.Schema) error {
	if a.jsonMode {
		return printJSON(w, schemas)
	}
	if len(schemas) == 0 {
		fmt.Fprintln(w, "no schemas apply")
		return nil
	}
	for _, s := range schemas {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.Title, strings.Join(s.AllFieldNames(), ","))
	}
	return nil
}

func compact(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", sysError("encode value: %w", err)
	}
	return string(data), nil
}
