package command

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// RenderDocs renders the registry's commands as markdown: one "###" section
// per command (ordered by realm, namespace, name), each followed by a
// table of its arguments and the command's doc string.
func RenderDocs(r *Registry) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]Key, 0, len(r.commands))
	for k := range r.commands {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Realm != keys[j].Realm {
			return keys[i].Realm < keys[j].Realm
		}
		if keys[i].Namespace != keys[j].Namespace {
			return keys[i].Namespace < keys[j].Namespace
		}
		return keys[i].Name < keys[j].Name
	})

	var b strings.Builder
	for _, k := range keys {
		m := r.commands[k]
		fmt.Fprintf(&b, "### `%s`\n\n", m.Name)
		if m.Label != "" {
			fmt.Fprintf(&b, "_%s_\n\n", m.Label)
		}
		if len(m.Arguments) > 0 {
			b.WriteString("| label | name | multiple | type | default |\n")
			b.WriteString("|---|---|---|---|---|\n")
			for _, a := range m.Arguments {
				arity := "single"
				if a.Multiple {
					arity = "multiple"
				}
				label := a.Label
				if label == "" {
					label = a.Name
				}
				b.WriteString("| " + label + " | `" + a.Name + "` | " + arity + " | " + string(a.ArgumentType) + " | " + renderDefault(a.Default) + " |\n")
			}
			b.WriteString("\n")
		}
		if m.Doc != "" {
			b.WriteString(m.Doc)
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func renderDefault(d ArgumentDefault) string {
	if !d.HasValue {
		return ""
	}
	if d.Query != nil {
		return "query"
	}
	raw, err := json.Marshal(d.Value)
	if err != nil {
		return ""
	}
	return string(raw)
}
