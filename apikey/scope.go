package apikey

import "fmt"

// Requirement selects how a list of required scopes is matched.
type Requirement string

const (
	// RequireAll means every required scope must be granted.
	RequireAll Requirement = "all"
	// RequireAny means at least one required scope must be granted.
	RequireAny Requirement = "any"
)

// HasScope reports whether required is present in granted. Matching is an
// exact, case-sensitive string comparison with no wildcard handling.
func HasScope(granted []string, required string) bool {
	for _, scope := range granted {
		if scope == required {
			return true
		}
	}
	return false
}

// HasScopes reports whether granted satisfies required under the given
// requirement. An empty required list is vacuously satisfied under both
// requirements. Any requirement other than RequireAny is treated as
// RequireAll.
func HasScopes(granted []string, required []string, requirement Requirement) bool {
	if len(required) == 0 {
		return true
	}
	if requirement == RequireAny {
		for _, scope := range required {
			if HasScope(granted, scope) {
				return true
			}
		}
		return false
	}
	for _, scope := range required {
		if !HasScope(granted, scope) {
			return false
		}
	}
	return true
}

// Hierarchy declares that holding a scope implies holding others. The
// implication is transitive: with "admin" -> {"users"} and
// "users" -> {"users:read"}, a key holding "admin" also holds "users:read".
type Hierarchy map[string][]string

// Validate checks the hierarchy for cycles. User-supplied maps may contain
// arbitrary edges, so this must run before the hierarchy is trusted.
func (h Hierarchy) Validate() error {
	visited := make(map[string]bool, len(h))
	onStack := make(map[string]bool, len(h))

	var walk func(scope string) error
	walk = func(scope string) error {
		if onStack[scope] {
			return fmt.Errorf("%w: involving scope %q", ErrScopeCycle, scope)
		}
		if visited[scope] {
			return nil
		}
		visited[scope] = true
		onStack[scope] = true
		for _, implied := range h[scope] {
			if err := walk(implied); err != nil {
				return err
			}
		}
		onStack[scope] = false
		return nil
	}

	for scope := range h {
		if err := walk(scope); err != nil {
			return err
		}
	}
	return nil
}

// Expand returns granted plus every scope it transitively implies. It fails
// with ErrScopeCycle when the hierarchy contains a cycle reachable from
// granted.
func (h Hierarchy) Expand(granted []string) ([]string, error) {
	if len(h) == 0 {
		return granted, nil
	}

	seen := make(map[string]bool, len(granted))
	out := make([]string, 0, len(granted))
	onStack := make(map[string]bool)

	var walk func(scope string) error
	walk = func(scope string) error {
		if onStack[scope] {
			return fmt.Errorf("%w: involving scope %q", ErrScopeCycle, scope)
		}
		if seen[scope] {
			return nil
		}
		seen[scope] = true
		out = append(out, scope)
		onStack[scope] = true
		for _, implied := range h[scope] {
			if err := walk(implied); err != nil {
				return err
			}
		}
		onStack[scope] = false
		return nil
	}

	for _, scope := range granted {
		if err := walk(scope); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Checker evaluates scope requirements against an optional hierarchy that
// has been validated up front, so request-time checks cannot fail.
type Checker struct {
	hierarchy Hierarchy
}

// NewChecker builds a Checker. A nil hierarchy disables expansion. A cyclic
// hierarchy is a configuration fault and is rejected here rather than at
// request time.
func NewChecker(hierarchy Hierarchy) (*Checker, error) {
	if err := hierarchy.Validate(); err != nil {
		return nil, err
	}
	return &Checker{hierarchy: hierarchy}, nil
}

// HasScope reports whether granted, after hierarchy expansion, contains
// required.
func (c *Checker) HasScope(granted []string, required string) bool {
	return HasScope(c.expand(granted), required)
}

// HasScopes reports whether granted, after hierarchy expansion, satisfies
// required under the given requirement.
func (c *Checker) HasScopes(granted []string, required []string, requirement Requirement) bool {
	return HasScopes(c.expand(granted), required, requirement)
}

// Missing returns the required scopes absent from granted after expansion.
func (c *Checker) Missing(granted []string, required []string) []string {
	expanded := c.expand(granted)
	var missing []string
	for _, scope := range required {
		if !HasScope(expanded, scope) {
			missing = append(missing, scope)
		}
	}
	return missing
}

// expand applies the validated hierarchy. The hierarchy was checked for
// cycles at construction, so expansion cannot fail here.
func (c *Checker) expand(granted []string) []string {
	if c == nil || len(c.hierarchy) == 0 {
		return granted
	}
	expanded, err := c.hierarchy.Expand(granted)
	if err != nil {
		return granted
	}
	return expanded
}
