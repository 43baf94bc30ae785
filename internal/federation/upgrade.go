package federation

import (
	"context"
	"fmt"
	"sort"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/specialistvlad/fedcompose/internal/ctxlog"
	"github.com/specialistvlad/fedcompose/internal/sdl"
)

// Upgrader rewrites federation 1 subgraphs into equivalent federation 2
// subgraphs. Federation 2 documents pass through unchanged.
type Upgrader struct{}

// NewUpgrader returns the default upgrader.
func NewUpgrader() *Upgrader { return &Upgrader{} }

// Upgrade upgrades doc in place and returns it.
func (u *Upgrader) Upgrade(ctx context.Context, name string, doc *ast.SchemaDocument) (*ast.SchemaDocument, error) {
	logger := ctxlog.FromContext(ctx)

	version, _, err := DetectVersion(doc)
	if err != nil {
		return nil, err
	}
	if version.IsV2() {
		logger.Debug("Upgrade: subgraph already on federation 2.", "subgraph", name, "version", version.String())
		return doc, nil
	}

	if err := promoteExtensions(doc); err != nil {
		return nil, err
	}
	dropKeyExternals(doc)
	shared := markShareable(doc)
	if err := replaceDefinitions(doc); err != nil {
		return nil, err
	}

	logger.Debug("Upgrade: federation 1 subgraph upgraded.",
		"subgraph", name,
		"target", UpgradeTarget.String(),
		"shareable_fields", shared,
	)
	return doc, nil
}

// promoteExtensions turns "extend type T" without a local base definition
// into "type T @extends".
func promoteExtensions(doc *ast.SchemaDocument) error {
	original := map[string]*ast.Definition{}
	for _, def := range doc.Definitions {
		original[def.Name] = def
	}
	promoted := map[string]*ast.Definition{}

	var kept ast.DefinitionList
	for _, ext := range doc.Extensions {
		if base, ok := original[ext.Name]; ok {
			if base.Kind != ext.Kind {
				return fmt.Errorf("ambiguous upgrade of type %s: it is defined as %s but extended as %s", ext.Name, base.Kind, ext.Kind)
			}
			kept = append(kept, ext)
			continue
		}
		if p, ok := promoted[ext.Name]; ok {
			if p.Kind != ext.Kind {
				return fmt.Errorf("ambiguous upgrade of type %s: it is extended as both %s and %s", ext.Name, p.Kind, ext.Kind)
			}
			p.Fields = append(p.Fields, ext.Fields...)
			p.Directives = append(p.Directives, ext.Directives...)
			p.Interfaces = append(p.Interfaces, ext.Interfaces...)
			continue
		}
		if (ext.Kind == ast.Object || ext.Kind == ast.Interface) && ext.Directives.ForName(DirectiveExtends) == nil {
			ext.Directives = append(ext.Directives, sdl.NewDirective(DirectiveExtends))
		}
		promoted[ext.Name] = ext
		doc.Definitions = append(doc.Definitions, ext)
	}
	doc.Extensions = kept
	return nil
}

// dropKeyExternals removes @external from the key fields of types marked
// @extends. Federation 2 treats those fields as owned by every subgraph that
// declares the key.
func dropKeyExternals(doc *ast.SchemaDocument) {
	for _, def := range doc.Definitions {
		if def.Directives.ForName(DirectiveExtends) == nil {
			continue
		}
		keyFields := map[string]bool{}
		for _, key := range def.Directives.ForNames(DirectiveKey) {
			raw, _ := sdl.StringArg(key, "fields")
			sel, err := ParseFieldSet(raw)
			if err != nil {
				continue
			}
			for _, f := range TopLevelFields(sel) {
				keyFields[f] = true
			}
		}
		for _, f := range def.Fields {
			if keyFields[f.Name] {
				f.Directives = removeDirective(f.Directives, DirectiveExternal)
			}
		}
	}
}

// markShareable adds @shareable to every object field that is not
// @external. Federation 1 let any subgraph resolve any field.
func markShareable(doc *ast.SchemaDocument) int {
	count := 0
	for _, defs := range []ast.DefinitionList{doc.Definitions, doc.Extensions} {
		for _, def := range defs {
			if def.Kind != ast.Object {
				continue
			}
			for _, f := range def.Fields {
				if f.Directives.ForName(DirectiveExternal) != nil || f.Directives.ForName(DirectiveShareable) != nil {
					continue
				}
				f.Directives = append(f.Directives, sdl.NewDirective(DirectiveShareable))
				count++
			}
		}
	}
	return count
}

// replaceDefinitions swaps the federation 1 definitions for federation 2
// ones and links the document to the upgrade target version.
func replaceDefinitions(doc *ast.SchemaDocument) error {
	v1 := v1Definitions()
	var directives ast.DirectiveDefinitionList
	for _, d := range doc.Directives {
		if v1.Directives.ForName(d.Name) == nil {
			directives = append(directives, d)
		}
	}
	doc.Directives = directives

	var defs ast.DefinitionList
	for _, d := range doc.Definitions {
		if d.Name != "_FieldSet" {
			defs = append(defs, d)
		}
	}
	doc.Definitions = defs

	used := map[string]bool{}
	sdl.Walk(doc, func(d *ast.Directive) {
		if IsFederationDirective(d.Name) && d.Name != DirectiveLink {
			used[d.Name] = true
		}
	})
	names := make([]string, 0, len(used))
	for n := range used {
		names = append(names, n)
	}
	sort.Strings(names)

	imports := &ast.Value{Kind: ast.ListValue}
	link := &Link{URL: UpgradeTarget.URL(), Namespace: "federation"}
	for _, n := range names {
		imports.Children = append(imports.Children, &ast.ChildValue{Value: &ast.Value{Kind: ast.StringValue, Raw: "@" + n}})
		link.Imports = append(link.Imports, Import{Name: "@" + n})
	}
	d := sdl.NewDirective(DirectiveLink, "url", link.URL)
	d.Arguments = append(d.Arguments, &ast.Argument{Name: "import", Value: imports})
	doc.SchemaExtension = append(doc.SchemaExtension, &ast.SchemaDefinition{Directives: ast.DirectiveList{d}})

	return expandV2(doc, UpgradeTarget, link)
}

func removeDirective(list ast.DirectiveList, name string) ast.DirectiveList {
	var out ast.DirectiveList
	for _, d := range list {
		if d.Name != name {
			out = append(out, d)
		}
	}
	return out
}
