package pagebuilder

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

const (
	OperationAdd     = "add"
	OperationRemove  = "remove"
	OperationReplace = "replace"
	OperationMove    = "move"
)

// Operation is one RFC 6902 edit against a Page document.
type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	From  string `json:"from,omitempty"`
	Value any    `json:"value,omitempty"`
}

// Apply runs the edits against the page and returns the edited copy. The
// original page is left untouched; a failed patch returns it unchanged along
// with the error.
func Apply(page Page, ops []Operation) (Page, error) {
	if len(ops) == 0 {
		return page, nil
	}

	currentJSON, err := json.Marshal(page)
	if err != nil {
		return page, fmt.Errorf("failed to marshal page: %w", err)
	}

	ops = FixOperations(currentJSON, ops)

	patchJSON, err := json.Marshal(ops)
	if err != nil {
		return page, fmt.Errorf("failed to marshal patch operations: %w", err)
	}

	patch, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return page, fmt.Errorf("failed to decode patch: %w", err)
	}

	modifiedJSON, err := patch.Apply(currentJSON)
	if err != nil {
		return page, fmt.Errorf("failed to apply patch: %w", err)
	}

	var result Page
	if err := json.Unmarshal(modifiedJSON, &result); err != nil {
		return page, fmt.Errorf("patch would produce an invalid page: %w", err)
	}
	if problems := result.Validate(); len(problems) > 0 {
		return page, fmt.Errorf("patch breaks row invariants: %s", strings.Join(problems, "; "))
	}
	return result, nil
}

// FixOperations reconciles edits against the current document: a replace of a
// missing path becomes an add, and a remove of a missing path is dropped.
// Builder surfaces echo edits against possibly-stale trees; these two cases
// are safe to repair rather than reject.
func FixOperations(currentJSON []byte, ops []Operation) []Operation {
	var doc any
	if err := json.Unmarshal(currentJSON, &doc); err != nil {
		return ops
	}

	fixed := make([]Operation, 0, len(ops))
	for _, op := range ops {
		switch op.Op {
		case OperationReplace:
			if !pathExists(doc, op.Path) {
				op.Op = OperationAdd
			}
			fixed = append(fixed, op)
		case OperationRemove:
			if pathExists(doc, op.Path) {
				fixed = append(fixed, op)
			}
		default:
			fixed = append(fixed, op)
		}
	}

	return fixed
}

// ValidateOperations rejects edits outside the allowed path set. Allowed
// paths use "*" for any array index and "-" for append positions, e.g.
// "/sections/*/rows/*".
func ValidateOperations(ops []Operation, allowedPaths map[string]bool) error {
	if len(allowedPaths) == 0 {
		return nil
	}
	for i, op := range ops {
		if err := validatePathAllowed(op.Path, allowedPaths); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
		if op.From != "" {
			if err := validatePathAllowed(op.From, allowedPaths); err != nil {
				return fmt.Errorf("operation %d: %w", i, err)
			}
		}
	}
	return nil
}

func validatePathAllowed(path string, allowedPaths map[string]bool) error {
	if allowedPaths[path] || allowedPaths[wildcardPattern(path)] {
		return nil
	}
	return fmt.Errorf("path %q is not in the allowed paths set", path)
}

// wildcardPattern rewrites numeric and append index segments to "*" so a
// concrete path can be matched against a wildcard allow-list entry.
func wildcardPattern(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if segment == "-" {
			segments[i] = "*"
			continue
		}
		if _, err := strconv.Atoi(segment); err == nil {
			segments[i] = "*"
		}
	}
	return strings.Join(segments, "/")
}

func pathExists(doc any, path string) bool {
	if path == "" {
		return true
	}
	if !strings.HasPrefix(path, "/") {
		return false
	}

	tokens := strings.Split(path[1:], "/")
	cur := doc
	for _, token := range tokens {
		token = strings.ReplaceAll(token, "~1", "/")
		token = strings.ReplaceAll(token, "~0", "~")
		switch node := cur.(type) {
		case map[string]any:
			value, ok := node[token]
			if !ok {
				return false
			}
			cur = value
		case []any:
			index, err := strconv.Atoi(token)
			if err != nil || index < 0 || index >= len(node) {
				return false
			}
			cur = node[index]
		default:
			return false
		}
	}

	return true
}
