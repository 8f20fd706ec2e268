package validation

import (
	"fmt"
	"regexp"

	"github.com/botflowhq/botflow/pkg/schema"
)

// identifierPattern matches a valid variable name: leading letter or
// underscore, then letters, digits, or underscores.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// knownVariableTypes are the declared types the engine understands.
// Unknown types are warned on, not rejected.
var knownVariableTypes = map[string]bool{
	"string": true, "number": true, "boolean": true, "array": true, "object": true,
}

// validateVariables checks variable declarations: presence of names,
// duplicates, identifier pattern, and declared types.
func validateVariables(decls []schema.VariableDecl) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	seen := make(map[string]bool, len(decls))
	for i, decl := range decls {
		path := fmt.Sprintf("variables[%d]", i)

		if decl.Name == "" {
			result.AddError(path+".name", "variable declaration is missing a name")
			continue
		}
		path = fmt.Sprintf("variables[%s]", decl.Name)

		if seen[decl.Name] {
			result.AddError(path+".name", fmt.Sprintf("duplicate variable name %q", decl.Name))
		}
		seen[decl.Name] = true

		if !identifierPattern.MatchString(decl.Name) {
			result.AddError(path+".name",
				fmt.Sprintf("variable name %q is not a valid identifier", decl.Name))
		}

		if decl.Type != "" && !knownVariableTypes[decl.Type] {
			result.AddWarning(path+".type",
				fmt.Sprintf("unrecognized variable type %q", decl.Type))
		}
	}

	return result
}
