package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// resolveID matches input against ids: exact match first, then a unique
// prefix, then a unique case-insensitive name.
func resolveID(kind, input string, ids []string, names map[string]string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("%s ID is required", kind)
	}
	for _, id := range ids {
		if id == input {
			return id, nil
		}
	}

	var matches []string
	for _, id := range ids {
		if strings.HasPrefix(id, input) {
			matches = append(matches, id)
		}
	}
	if len(matches) == 0 {
		for _, id := range ids {
			if strings.EqualFold(names[id], input) {
				matches = append(matches, id)
			}
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%s not found: %q", kind, input)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%s %q is ambiguous (%d matches)", kind, input, len(matches))
	}
}

func indexNames[T any](rows []T, id, name func(T) string) ([]string, map[string]string) {
	ids := make([]string, 0, len(rows))
	names := make(map[string]string, len(rows))
	for _, r := range rows {
		ids = append(ids, id(r))
		names[id(r)] = name(r)
	}
	return ids, names
}

// organisationFlag registers --org. Values are resolved with resolveID.
func organisationFlag(fs *pflag.FlagSet, dst *string, usage string) {
	fs.StringVar(dst, "org", "", usage+" (ID, prefix or name)")
}
