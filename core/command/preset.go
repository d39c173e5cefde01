package command

import "strings"

// PresetToQuery converts a Preset's Action text into a fully-qualified
// follow-up query: when presetNamespace differs from activeNamespace, the
// action is prefixed with "ns-<presetNamespace>/" so evaluating the result
// resolves against the preset command's namespace regardless of what
// namespace was active when the preset was offered.
func PresetToQuery(p Preset, presetNamespace, activeNamespace string) string {
	action := strings.TrimPrefix(p.Action, "/")
	if presetNamespace == "" || presetNamespace == activeNamespace {
		return action
	}
	return "ns-" + presetNamespace + "/" + action
}
