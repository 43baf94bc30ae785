package federation

import (
	"context"
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/specialistvlad/fedcompose/internal/ctxlog"
	"github.com/specialistvlad/fedcompose/internal/sdl"
)

// LinkExpander resolves @link imports into the definitions they refer to.
//
// After expansion every federation directive is applied under its canonical
// name (@key, @shareable, ...), whatever alias or namespace the author used,
// and the document declares every federation definition it uses.
type LinkExpander struct{}

// NewLinkExpander returns the default link expander.
func NewLinkExpander() *LinkExpander { return &LinkExpander{} }

// ExpandLinks expands doc in place and returns it.
func (e *LinkExpander) ExpandLinks(ctx context.Context, name string, doc *ast.SchemaDocument) (*ast.SchemaDocument, error) {
	logger := ctxlog.FromContext(ctx)

	version, link, err := DetectVersion(doc)
	if err != nil {
		return nil, err
	}
	if !version.IsV2() {
		addMissing(doc, v1Definitions())
		logger.Debug("Expand: federation 1 definitions added.", "subgraph", name)
		return doc, nil
	}

	if err := expandV2(doc, version, link); err != nil {
		return nil, err
	}
	logger.Debug("Expand: links resolved.", "subgraph", name, "version", version.String(), "imports", len(link.Imports))
	return doc, nil
}

// expandV2 rewrites aliased and namespaced federation directives of doc to
// their canonical names and declares the definitions doc needs.
func expandV2(doc *ast.SchemaDocument, version Version, link *Link) error {
	spec := v2Definitions(version)

	aliases := map[string]string{}
	available := map[string]bool{}
	for _, imp := range link.Imports {
		canonical := strings.TrimPrefix(imp.Name, "@")
		if strings.HasPrefix(imp.Name, "@") {
			if spec.Directives.ForName(canonical) == nil {
				return fmt.Errorf("cannot find %s in federation %s", imp.Name, version)
			}
			aliases[strings.TrimPrefix(imp.Local(), "@")] = canonical
			available[canonical] = true
			continue
		}
		if spec.Definitions.ForName(canonical) == nil {
			return fmt.Errorf("cannot find %s in federation %s", imp.Name, version)
		}
	}

	prefix := link.Namespace + "__"
	var rewriteErr error
	sdl.Walk(doc, func(d *ast.Directive) {
		if canonical, ok := aliases[d.Name]; ok {
			d.Name = canonical
			return
		}
		if !strings.HasPrefix(d.Name, prefix) {
			return
		}
		canonical := strings.TrimPrefix(d.Name, prefix)
		if spec.Directives.ForName(canonical) == nil {
			if rewriteErr == nil {
				rewriteErr = fmt.Errorf("cannot find @%s in federation %s", canonical, version)
			}
			return
		}
		d.Name = canonical
		available[canonical] = true
	})
	if rewriteErr != nil {
		return rewriteErr
	}

	// Directives stay undefined unless imported, so that an unimported
	// @shareable fails validation like any unknown directive.
	needed := &ast.SchemaDocument{Definitions: spec.Definitions}
	for _, d := range spec.Directives {
		if available[d.Name] {
			needed.Directives = append(needed.Directives, d)
		}
	}
	addMissing(doc, needed)
	addMissing(doc, linkSpecDefinitions())
	return nil
}
