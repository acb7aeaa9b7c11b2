// Package manifest reads package manifests and turns them into index records.
package manifest

import (
	"os"
	"sort"
	"strings"

	"regindex/types"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// CratesIOIndex is the registry a dependency comes from when it names none.
const CratesIOIndex = "https://github.com/rust-lang/crates.io-index"

// Manifest is the part of a package manifest that ends up in the index.
type Manifest struct {
	Package      Package
	Dependencies []Dependency
	Features     map[string][]string
}

// Package is the [package] table.
type Package struct {
	Name    string  `toml:"name"`
	Version string  `toml:"version"`
	Links   *string `toml:"links"`
}

// Dependency is one entry of a dependency table, with its section applied.
type Dependency struct {
	Name            string
	Version         string
	Features        []string
	Optional        bool
	DefaultFeatures bool
	Package         string
	Registry        string
	RegistryIndex   string
	Target          string
	Kind            types.DependencyKind
}

type rawManifest struct {
	Package            Package                `toml:"package"`
	Dependencies       map[string]interface{} `toml:"dependencies"`
	DevDependencies    map[string]interface{} `toml:"dev-dependencies"`
	DevDependencies2   map[string]interface{} `toml:"dev_dependencies"`
	BuildDependencies  map[string]interface{} `toml:"build-dependencies"`
	BuildDependencies2 map[string]interface{} `toml:"build_dependencies"`
	Target             map[string]rawTarget   `toml:"target"`
	Features           map[string][]string    `toml:"features"`
}

type section struct {
	deps   map[string]interface{}
	kind   types.DependencyKind
	target string
}

type rawTarget struct {
	Dependencies      map[string]interface{} `toml:"dependencies"`
	DevDependencies   map[string]interface{} `toml:"dev-dependencies"`
	BuildDependencies map[string]interface{} `toml:"build-dependencies"`
}

// Load reads the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read manifest `%s`.", path)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to parse manifest `%s`.", path)
	}
	return m, nil
}

// Parse decodes manifest TOML.
func Parse(data []byte) (*Manifest, error) {
	var raw rawManifest
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw.Package.Name == "" {
		return nil, errors.New("missing [package] name")
	}
	if raw.Package.Version == "" {
		return nil, errors.Errorf("package `%s` has no version", raw.Package.Name)
	}

	m := &Manifest{Package: raw.Package, Features: raw.Features}
	sections := []section{
		{raw.Dependencies, types.KindNormal, ""},
		{raw.DevDependencies, types.KindDev, ""},
		{raw.DevDependencies2, types.KindDev, ""},
		{raw.BuildDependencies, types.KindBuild, ""},
		{raw.BuildDependencies2, types.KindBuild, ""},
	}
	for target, t := range raw.Target {
		sections = append(sections,
			section{t.Dependencies, types.KindNormal, target},
			section{t.DevDependencies, types.KindDev, target},
			section{t.BuildDependencies, types.KindBuild, target},
		)
	}
	for _, sec := range sections {
		for name, value := range sec.deps {
			dep, err := parseDependency(name, value)
			if err != nil {
				return nil, err
			}
			dep.Kind = sec.kind
			dep.Target = sec.target
			m.Dependencies = append(m.Dependencies, dep)
		}
	}
	sortDependencies(m.Dependencies)
	return m, nil
}

// parseDependency accepts both `name = "1.0"` and `name = { version = "1.0", ... }`.
func parseDependency(name string, value interface{}) (Dependency, error) {
	dep := Dependency{Name: name, DefaultFeatures: true}
	switch v := value.(type) {
	case string:
		dep.Version = v
		return dep, nil
	case map[string]interface{}:
		for key, field := range v {
			var err error
			switch key {
			case "version":
				dep.Version, err = stringField(name, key, field)
			case "package":
				dep.Package, err = stringField(name, key, field)
			case "registry":
				dep.Registry, err = stringField(name, key, field)
			case "registry-index":
				dep.RegistryIndex, err = stringField(name, key, field)
			case "optional":
				dep.Optional, err = boolField(name, key, field)
			case "default-features", "default_features":
				dep.DefaultFeatures, err = boolField(name, key, field)
			case "features":
				dep.Features, err = stringsField(name, key, field)
			}
			if err != nil {
				return Dependency{}, err
			}
		}
		return dep, nil
	default:
		return Dependency{}, errors.Errorf("dependency `%s` must be a string or a table", name)
	}
}

func stringField(dep, key string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.Errorf("dependency `%s`: `%s` must be a string", dep, key)
	}
	return s, nil
}

func boolField(dep, key string, v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, errors.Errorf("dependency `%s`: `%s` must be a boolean", dep, key)
	}
	return b, nil
}

func stringsField(dep, key string, v interface{}) ([]string, error) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, errors.Errorf("dependency `%s`: `%s` must be an array of strings", dep, key)
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, errors.Errorf("dependency `%s`: `%s` must be an array of strings", dep, key)
		}
		out = append(out, s)
	}
	return out, nil
}

var kindOrder = map[types.DependencyKind]int{types.KindNormal: 0, types.KindDev: 1, types.KindBuild: 2}

func sortDependencies(deps []Dependency) {
	sort.SliceStable(deps, func(i, j int) bool {
		a, b := deps[i], deps[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Kind != b.Kind {
			return kindOrder[a.Kind] < kindOrder[b.Kind]
		}
		return a.Target < b.Target
	})
}

// RecordOptions says how registries named by dependencies map to index URLs.
type RecordOptions struct {
	// IndexURL is the index being published to. Dependencies from it get a null registry.
	IndexURL string
	// Registries maps `registry = "name"` to an index URL.
	Registries map[string]string
}

// Record builds the index record for the package described by m.
func Record(m *Manifest, checksum string, opts RecordOptions) (types.PackageRecord, error) {
	vers, err := types.ParseVersion(m.Package.Version)
	if err != nil {
		return types.PackageRecord{}, err
	}
	rec := types.PackageRecord{
		Name:     m.Package.Name,
		Vers:     vers,
		Deps:     make([]types.DependencyRecord, 0, len(m.Dependencies)),
		Features: map[string][]string{},
		Cksum:    checksum,
		Links:    m.Package.Links,
	}

	for _, dep := range m.Dependencies {
		if dep.Version == "" {
			return types.PackageRecord{}, errors.Errorf("dependency `%s` of `%s` has no version requirement", dep.Name, m.Package.Name)
		}
		req, err := types.ParseRequirement(types.NormalizeRequirement(dep.Version))
		if err != nil {
			return types.PackageRecord{}, errors.Wrapf(err, "dependency `%s`", dep.Name)
		}
		registry, err := dependencyRegistry(dep, opts)
		if err != nil {
			return types.PackageRecord{}, err
		}
		out := types.DependencyRecord{
			Name:            dep.Name,
			Req:             req,
			Features:        dep.Features,
			Optional:        dep.Optional,
			DefaultFeatures: dep.DefaultFeatures,
			Kind:            dep.Kind,
			Registry:        registry,
		}
		if dep.Target != "" {
			target := dep.Target
			out.Target = &target
		}
		if dep.Package != "" {
			pkg := dep.Package
			out.Package = &pkg
		}
		rec.Deps = append(rec.Deps, out)
	}

	for name, refs := range m.Features {
		if usesNewFeatureSyntax(refs) {
			if rec.Features2 == nil {
				rec.Features2 = map[string][]string{}
			}
			rec.Features2[name] = refs
			rec.V = 2
			continue
		}
		rec.Features[name] = refs
	}
	rec.Normalize()
	return rec, nil
}

// usesNewFeatureSyntax reports "dep:" and "?/" references, which older
// resolvers cannot read from the features map.
func usesNewFeatureSyntax(refs []string) bool {
	for _, ref := range refs {
		if strings.HasPrefix(ref, "dep:") || strings.Contains(ref, "?/") {
			return true
		}
	}
	return false
}

// dependencyRegistry returns nil for the index being published to.
func dependencyRegistry(dep Dependency, opts RecordOptions) (*string, error) {
	url := dep.RegistryIndex
	if url == "" && dep.Registry != "" {
		var ok bool
		url, ok = opts.Registries[dep.Registry]
		if !ok {
			return nil, errors.Errorf("dependency `%s` uses unknown registry `%s`", dep.Name, dep.Registry)
		}
	}
	if url == "" {
		url = CratesIOIndex
	}
	if opts.IndexURL != "" && strings.TrimRight(url, "/") == strings.TrimRight(opts.IndexURL, "/") {
		return nil, nil
	}
	return &url, nil
}
