package prompt

import (
	"encoding/json"
	"strings"

	"github.com/vk/tfconvert/internal/cfn"
)

// serializeTemplate renders the parsed template as canonical indented JSON.
// Section entries follow source declaration order; everything else is fixed
// by the writer itself, so equal templates serialize to equal bytes.
func serializeTemplate(tpl *cfn.Template) string {
	var b strings.Builder
	w := &jsonWriter{b: &b}

	w.openObject()
	if tpl.Description != "" {
		w.key("Description")
		w.scalar(tpl.Description)
	}

	if len(tpl.ParameterOrder) > 0 {
		w.key("Parameters")
		w.openObject()
		for _, name := range tpl.ParameterOrder {
			param := tpl.Parameters[name]
			w.key(name)
			w.openObject()
			w.key("Type")
			w.scalar(param.Type)
			if param.Description != "" {
				w.key("Description")
				w.scalar(param.Description)
			}
			if param.Default != nil {
				w.key("Default")
				w.expr(param.Default)
			}
			if len(param.AllowedValues) > 0 {
				w.key("AllowedValues")
				w.expr(&cfn.Sequence{Items: param.AllowedValues})
			}
			if param.NoEcho {
				w.key("NoEcho")
				w.scalar(true)
			}
			w.closeObject()
		}
		w.closeObject()
	}

	if len(tpl.MappingOrder) > 0 {
		w.key("Mappings")
		w.openObject()
		for _, name := range tpl.MappingOrder {
			w.key(name)
			w.expr(tpl.Mappings[name])
		}
		w.closeObject()
	}

	if len(tpl.ConditionOrder) > 0 {
		w.key("Conditions")
		w.openObject()
		for _, name := range tpl.ConditionOrder {
			w.key(name)
			w.expr(tpl.Conditions[name])
		}
		w.closeObject()
	}

	w.key("Resources")
	w.openObject()
	for _, id := range tpl.ResourceOrder {
		res := tpl.Resources[id]
		w.key(id)
		w.openObject()
		w.key("Type")
		w.scalar(res.Type)
		if res.Condition != "" {
			w.key("Condition")
			w.scalar(res.Condition)
		}
		if len(res.ExplicitDeps) > 0 {
			w.key("DependsOn")
			items := make([]cfn.Expr, 0, len(res.ExplicitDeps))
			for _, dep := range res.ExplicitDeps {
				items = append(items, &cfn.Scalar{Value: dep})
			}
			w.expr(&cfn.Sequence{Items: items})
		}
		if res.Properties != nil {
			w.key("Properties")
			w.expr(res.Properties)
		}
		w.closeObject()
	}
	w.closeObject()

	if len(tpl.OutputOrder) > 0 {
		w.key("Outputs")
		w.openObject()
		for _, name := range tpl.OutputOrder {
			out := tpl.Outputs[name]
			w.key(name)
			w.openObject()
			if out.Description != "" {
				w.key("Description")
				w.scalar(out.Description)
			}
			if out.Condition != "" {
				w.key("Condition")
				w.scalar(out.Condition)
			}
			w.key("Value")
			w.expr(out.Value)
			if out.ExportName != nil {
				w.key("Export")
				w.openObject()
				w.key("Name")
				w.expr(out.ExportName)
				w.closeObject()
			}
			w.closeObject()
		}
		w.closeObject()
	}

	w.closeObject()
	return b.String()
}

// jsonWriter emits indented JSON with caller-controlled key order.
type jsonWriter struct {
	b          *strings.Builder
	depth      int
	counts     []int // values written at each open object/array level
	pendingKey bool  // the next value completes a "key": pair
}

func (w *jsonWriter) indent() {
	w.b.WriteByte('\n')
	for i := 0; i < w.depth; i++ {
		w.b.WriteString("  ")
	}
}

// beforeValue positions the writer for the next value: inline after a key,
// or on a fresh comma-separated line as a collection element.
func (w *jsonWriter) beforeValue() {
	if w.pendingKey {
		w.pendingKey = false
		return
	}
	if len(w.counts) == 0 {
		return
	}
	if w.counts[len(w.counts)-1] > 0 {
		w.b.WriteByte(',')
	}
	w.counts[len(w.counts)-1]++
	w.indent()
}

func (w *jsonWriter) openObject() {
	w.beforeValue()
	w.b.WriteByte('{')
	w.depth++
	w.counts = append(w.counts, 0)
}

func (w *jsonWriter) closeObject() {
	w.depth--
	if w.counts[len(w.counts)-1] > 0 {
		w.indent()
	}
	w.counts = w.counts[:len(w.counts)-1]
	w.b.WriteByte('}')
}

func (w *jsonWriter) openArray() {
	w.beforeValue()
	w.b.WriteByte('[')
	w.depth++
	w.counts = append(w.counts, 0)
}

func (w *jsonWriter) closeArray() {
	w.depth--
	if w.counts[len(w.counts)-1] > 0 {
		w.indent()
	}
	w.counts = w.counts[:len(w.counts)-1]
	w.b.WriteByte(']')
}

// key writes the next object key; the following value lands on the same line.
func (w *jsonWriter) key(name string) {
	if w.counts[len(w.counts)-1] > 0 {
		w.b.WriteByte(',')
	}
	w.counts[len(w.counts)-1]++
	w.indent()
	encoded, _ := json.Marshal(name)
	w.b.Write(encoded)
	w.b.WriteString(": ")
	w.pendingKey = true
}

func (w *jsonWriter) scalar(v any) {
	w.beforeValue()
	encoded, _ := json.Marshal(v)
	w.b.Write(encoded)
}

func (w *jsonWriter) expr(expr cfn.Expr) {
	switch e := expr.(type) {
	case *cfn.Scalar:
		w.scalar(e.Value)
	case *cfn.Sequence:
		w.openArray()
		for _, item := range e.Items {
			w.expr(item)
		}
		w.closeArray()
	case *cfn.Mapping:
		w.openObject()
		for _, key := range e.Keys {
			w.key(key)
			w.expr(e.Values[key])
		}
		w.closeObject()
	case *cfn.Ref:
		w.openObject()
		w.key("Ref")
		w.scalar(e.Target)
		w.closeObject()
	case *cfn.Call:
		w.openObject()
		w.key(e.Name)
		if len(e.Args) == 1 {
			w.expr(e.Args[0])
		} else {
			w.openArray()
			for _, arg := range e.Args {
				w.expr(arg)
			}
			w.closeArray()
		}
		w.closeObject()
	default:
		w.scalar(nil)
	}
}
