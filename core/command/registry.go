package command

import (
	"sync"

	"github.com/liquers/liquers-go/core/lqerror"
	"github.com/liquers/liquers-go/core/query"
)

// Registry stores CommandMetadata addressable by (realm, namespace, name)
// and is read-only from the interpreter's perspective once evaluation
// begins; all mutation happens during environment construction.
type Registry struct {
	mu                sync.RWMutex
	commands          map[Key]*Metadata
	defaultNamespaces []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[Key]*Metadata)}
}

// SetDefaultNamespaces sets the ordered list of namespaces consulted when a
// query omits namespace selection via ns-<name>.
func (r *Registry) SetDefaultNamespaces(namespaces ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultNamespaces = append([]string(nil), namespaces...)
}

// DefaultNamespaces returns the registry's default namespace search order.
func (r *Registry) DefaultNamespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.defaultNamespaces...)
}

// Add registers m. It fails with CommandAlreadyRegistered if (Realm,
// Namespace, Name) is already taken, and rejects metadata whose argument
// declarations are malformed (invalid GUI info, enums without values,
// presets without an action).
func (r *Registry) Add(m Metadata) error {
	if err := validateMetadata(&m); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := Key{Realm: m.Realm, Namespace: m.Namespace, Name: m.Name}
	if _, exists := r.commands[k]; exists {
		return lqerror.Errorf(lqerror.KindCommandAlreadyRegistered, "command %s/%s/%s already registered", m.Realm, m.Namespace, m.Name)
	}
	mCopy := m
	r.commands[k] = &mCopy
	return nil
}

// validateMetadata checks a command's declarations at registration time so
// plan building and dispatch never meet a malformed schema.
func validateMetadata(m *Metadata) error {
	for _, a := range m.Arguments {
		if err := ValidateGUIInfo(a.GUIInfo); err != nil {
			return lqerror.NewWithCause(lqerror.KindConversionError, "argument "+a.Name+" of command "+m.Name+" has invalid gui_info", err)
		}
		switch a.ArgumentType {
		case ArgumentTypeEnum:
			if len(a.EnumValues) == 0 && a.EnumName == "" {
				return lqerror.Errorf(lqerror.KindConversionError, "enum argument %q of command %q declares neither values nor an enum name", a.Name, m.Name)
			}
		case ArgumentTypeGlobalEnum:
			if a.EnumName == "" {
				return lqerror.Errorf(lqerror.KindConversionError, "global enum argument %q of command %q declares no enum name", a.Name, m.Name)
			}
		}
	}
	for _, p := range m.Next {
		if p.Action == "" {
			return lqerror.Errorf(lqerror.KindConversionError, "command %q declares a preset without an action", m.Name)
		}
	}
	return nil
}

// Find looks up a command by its exact key.
func (r *Registry) Find(realm, namespace, name string) (*Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.commands[Key{Realm: realm, Namespace: namespace, Name: name}]
	return m, ok
}

// FindInNamespaces searches namespaces in order, returning the first match
// and the namespace it was found in.
func (r *Registry) FindInNamespaces(realm string, namespaces []string, name string) (*Metadata, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ns := range namespaces {
		if m, ok := r.commands[Key{Realm: realm, Namespace: ns, Name: name}]; ok {
			return m, ns, true
		}
	}
	return nil, "", false
}

// ResolveAlias follows Definition.IsAlias chains, returning the terminal
// (non-alias) Metadata, its namespace and name, and the accumulated head
// parameters to prepend to caller-supplied parameters. Each hop's head
// parameters are prepended as the chain is followed, so for alias A → B →
// target the result is B's head parameters followed by A's, exactly as if
// the caller had invoked each alias in turn.
func (r *Registry) ResolveAlias(realm, namespace, name string) (*Metadata, string, string, []query.ActionParameter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[Key]bool)
	curRealm, curNS, curName := realm, namespace, name
	var head []query.ActionParameter
	for {
		k := Key{Realm: curRealm, Namespace: curNS, Name: curName}
		if seen[k] {
			return nil, "", "", nil, lqerror.Errorf(lqerror.KindGeneral, "alias cycle detected resolving %s/%s/%s", realm, namespace, name)
		}
		seen[k] = true
		m, ok := r.commands[k]
		if !ok {
			return nil, "", "", nil, lqerror.Errorf(lqerror.KindActionNotRegistered, "command %s/%s/%s not registered", curRealm, curNS, curName)
		}
		if !m.Definition.IsAlias {
			return m, curNS, curName, head, nil
		}
		head = append(append([]query.ActionParameter(nil), m.Definition.HeadParameters...), head...)
		ns, nm := splitAliasTarget(m.Definition.AliasTarget)
		if ns == "" {
			ns = curNS
		}
		curNS, curName = ns, nm
	}
}

func splitAliasTarget(target string) (namespace, name string) {
	for i := len(target) - 1; i >= 0; i-- {
		if target[i] == '/' {
			return target[:i], target[i+1:]
		}
	}
	return "", target
}
