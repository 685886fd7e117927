package document

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
)

// scriptBudget bounds how long inline scripts may run while reading a variable island
const scriptBudget = 2 * time.Second

// Island names a place in the page where JSON data is embedded.
//
// A plain island is a script body that is itself JSON (e.g. a
// script#__NEXT_DATA__ or an ld+json block). A variable island is an inline
// script that assigns a global (window.__myx = {...}); the script runs in an
// isolated JS VM and the named global is read back.
type Island struct {
	Name     string `yaml:"name" json:"name,omitempty"`
	Selector string `yaml:"selector" json:"selector"`
	Variable string `yaml:"variable" json:"variable,omitempty"`
}

// readIslands merges every island found into one value. Named islands nest
// under their name; unnamed object islands merge key by key, first wins.
func readIslands(root *goquery.Selection, pageURL string, islands []Island) any {
	if len(islands) == 0 {
		return nil
	}

	merged := make(map[string]any)
	found := false
	for _, is := range islands {
		v, ok := is.read(root, pageURL)
		if !ok {
			continue
		}
		found = true

		if is.Name != "" {
			if _, exists := merged[is.Name]; !exists {
				merged[is.Name] = v
			}
			continue
		}

		obj, isObj := v.(map[string]any)
		if !isObj {
			if _, exists := merged["_"]; !exists {
				merged["_"] = v
			}
			continue
		}
		for k, val := range obj {
			if _, exists := merged[k]; !exists {
				merged[k] = val
			}
		}
	}

	if !found {
		return nil
	}
	return merged
}

func (is Island) read(root *goquery.Selection, pageURL string) (any, bool) {
	sel := is.Selector
	if sel == "" {
		sel = "script:not([src])"
	}

	var values []any
	root.Find(sel).Each(func(_ int, s *goquery.Selection) {
		body := strings.TrimSpace(s.Text())
		if body == "" {
			return
		}

		if is.Variable == "" {
			var v any
			if err := json.Unmarshal([]byte(body), &v); err == nil {
				values = append(values, v)
			}
			return
		}

		if !strings.Contains(body, is.Variable) {
			return
		}
		if v, ok := evalVariable(body, is.Variable, pageURL); ok {
			values = append(values, v)
		}
	})

	switch len(values) {
	case 0:
		return nil, false
	case 1:
		return values[0], true
	}
	return values, true
}

// evalVariable runs script in a bare VM with window aliased to the global
// object and returns the named global decoded through JSON.
func evalVariable(script, name, pageURL string) (any, bool) {
	vm := goja.New()
	global := vm.GlobalObject()
	_ = vm.Set("window", global)
	_ = vm.Set("self", global)
	_ = vm.Set("location", map[string]any{"href": pageURL})
	_ = vm.Set("document", map[string]any{"location": map[string]any{"href": pageURL}})
	_ = vm.Set("console", map[string]any{
		"log":   func(goja.FunctionCall) goja.Value { return goja.Undefined() },
		"error": func(goja.FunctionCall) goja.Value { return goja.Undefined() },
	})

	timer := time.AfterFunc(scriptBudget, func() {
		vm.Interrupt("script budget exceeded")
	})
	defer timer.Stop()

	// Most page scripts fail on missing DOM APIs after the assignment we want.
	_, _ = vm.RunString(script)

	val := global.Get(name)
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, false
	}

	stringify, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
	if !ok {
		return nil, false
	}
	encoded, err := stringify(goja.Undefined(), val)
	if err != nil || goja.IsUndefined(encoded) {
		return nil, false
	}

	var v any
	if err := json.Unmarshal([]byte(encoded.String()), &v); err != nil {
		return nil, false
	}
	return v, true
}
