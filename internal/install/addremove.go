package install

import (
	"context"

	"github.com/wapm-community/wapm/internal/layout"
	"github.com/wapm-community/wapm/internal/manifest"
)

// Add edits the project manifest to declare each spec as a dependency,
// saves it, then installs it into scope (spec section 4.F).
func (e *Engine) Add(ctx context.Context, m *manifest.Manifest, manifestPath string, specs []string, scope layout.Scope, flags Flags) error {
	for _, spec := range specs {
		name, constraint := splitSpec(spec)
		if constraint == "" {
			constraint = "*"
		}
		m.AddDependency(name, constraint)
	}
	if err := m.Save(manifestPath); err != nil {
		return err
	}
	return e.Install(ctx, specs, scope, flags)
}

// Remove edits the project manifest to drop each spec's dependency
// declaration, saves it, then uninstalls it from scope.
func (e *Engine) Remove(ctx context.Context, m *manifest.Manifest, manifestPath string, specs []string, scope layout.Scope) error {
	for _, spec := range specs {
		name, _ := splitSpec(spec)
		m.RemoveDependency(name)
	}
	if err := m.Save(manifestPath); err != nil {
		return err
	}
	return e.Uninstall(ctx, specs, scope)
}
