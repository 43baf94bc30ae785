package federation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/specialistvlad/fedcompose/internal/sdl"
)

// Version is a federation specification version.
type Version struct {
	Major int
	Minor int
}

var (
	// V1 is federation 1, selected when a subgraph does not link the
	// federation specification.
	V1 = Version{Major: 1}
	// UpgradeTarget is the version legacy subgraphs are upgraded to.
	UpgradeTarget = Version{Major: 2, Minor: 3}
	// Latest is the newest supported version.
	Latest = Version{Major: 2, Minor: 9}
)

// ErrUnsupportedVersion is returned for federation versions this package
// cannot process.
var ErrUnsupportedVersion = errors.New("unsupported federation version")

func (v Version) String() string {
	return fmt.Sprintf("v%d.%d", v.Major, v.Minor)
}

// IsV2 reports whether v is a federation 2 version.
func (v Version) IsV2() bool { return v.Major == 2 }

// URL returns the specification URL of v.
func (v Version) URL() string { return federationSpecPrefix + v.String() }

// ParseVersion parses "v2.3", "2.3" or "2". The result must be a supported
// version.
func ParseVersion(s string) (Version, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "v")
	majorStr, minorStr, hasMinor := strings.Cut(raw, ".")
	major, err := strconv.Atoi(majorStr)
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q", ErrUnsupportedVersion, s)
	}
	minor := 0
	if hasMinor {
		if minor, err = strconv.Atoi(minorStr); err != nil {
			return Version{}, fmt.Errorf("%w: %q", ErrUnsupportedVersion, s)
		}
	}
	v := Version{Major: major, Minor: minor}
	switch {
	case v.Major == 1 && v.Minor == 0:
		return v, nil
	case v.Major == 2 && v.Minor >= 0 && v.Minor <= Latest.Minor:
		return v, nil
	}
	return Version{}, fmt.Errorf("%w: %q", ErrUnsupportedVersion, s)
}

// Import is one entry of a @link import list. Directive names keep their
// leading "@".
type Import struct {
	Name string
	As   string
}

// Local returns the name the import is known by inside the document.
func (i Import) Local() string {
	if i.As != "" {
		return i.As
	}
	return i.Name
}

// Link is a parsed @link application.
type Link struct {
	URL       string
	Namespace string
	Imports   []Import
	directive *ast.Directive
}

// Links returns every @link applied to the schema definitions and schema
// extensions of doc, in document order.
func Links(doc *ast.SchemaDocument) ([]Link, error) {
	var out []Link
	for _, list := range []ast.SchemaDefinitionList{doc.Schema, doc.SchemaExtension} {
		for _, s := range list {
			for _, d := range s.Directives.ForNames(DirectiveLink) {
				l, err := parseLink(d)
				if err != nil {
					return nil, err
				}
				out = append(out, l)
			}
		}
	}
	return out, nil
}

func parseLink(d *ast.Directive) (Link, error) {
	url, ok := sdl.StringArg(d, "url")
	if !ok {
		return Link{}, errors.New("@link is missing its url argument")
	}
	l := Link{URL: url, directive: d}
	l.Namespace, _ = sdl.StringArg(d, "as")
	if l.Namespace == "" {
		l.Namespace = defaultNamespace(url)
	}

	arg := d.Arguments.ForName("import")
	if arg == nil || arg.Value == nil {
		return l, nil
	}
	if arg.Value.Kind != ast.ListValue {
		return Link{}, fmt.Errorf("@link(url: %q): import must be a list", url)
	}
	for _, child := range arg.Value.Children {
		v := child.Value
		switch v.Kind {
		case ast.StringValue, ast.BlockValue:
			l.Imports = append(l.Imports, Import{Name: v.Raw})
		case ast.ObjectValue:
			imp := Import{}
			if n := v.Children.ForName("name"); n != nil {
				imp.Name = n.Raw
			}
			if as := v.Children.ForName("as"); as != nil {
				imp.As = as.Raw
			}
			if imp.Name == "" {
				return Link{}, fmt.Errorf("@link(url: %q): import entry %s has no name", url, v.String())
			}
			if strings.HasPrefix(imp.Name, "@") != strings.HasPrefix(imp.Local(), "@") {
				return Link{}, fmt.Errorf("@link(url: %q): cannot import %s as %s", url, imp.Name, imp.As)
			}
			l.Imports = append(l.Imports, imp)
		default:
			return Link{}, fmt.Errorf("@link(url: %q): invalid import entry %s", url, v.String())
		}
	}
	return l, nil
}

// defaultNamespace derives the namespace of a link from the name segment of
// its URL: ".../federation/v2.3" gives "federation".
func defaultNamespace(url string) string {
	parts := strings.Split(strings.TrimSuffix(url, "/"), "/")
	if len(parts) < 2 {
		return url
	}
	return parts[len(parts)-2]
}

// DetectVersion returns the federation version doc declares and the link
// that declares it. Documents without a federation link are federation 1.
func DetectVersion(doc *ast.SchemaDocument) (Version, *Link, error) {
	links, err := Links(doc)
	if err != nil {
		return Version{}, nil, err
	}
	for i := range links {
		if !strings.HasPrefix(links[i].URL, federationSpecPrefix) {
			continue
		}
		v, err := ParseVersion(strings.TrimPrefix(links[i].URL, federationSpecPrefix))
		if err != nil {
			return Version{}, nil, err
		}
		if !v.IsV2() {
			return Version{}, nil, fmt.Errorf("%w: %s cannot be linked", ErrUnsupportedVersion, v)
		}
		return v, &links[i], nil
	}
	return V1, nil, nil
}
