package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DependencyKind is the section a dependency was declared in.
type DependencyKind string

const (
	KindNormal DependencyKind = "normal"
	KindDev    DependencyKind = "dev"
	KindBuild  DependencyKind = "build"
)

// UnmarshalJSON accepts null as the normal kind.
func (k *DependencyKind) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*k = KindNormal
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid dependency kind %s: %v", data, err)
	}
	switch DependencyKind(s) {
	case KindNormal, KindDev, KindBuild:
		*k = DependencyKind(s)
	default:
		return fmt.Errorf("unknown dependency kind '%s'", s)
	}
	return nil
}

// PackageRecord is one line of a shard file: a single published version of a package.
// Field order is the on-disk order.
type PackageRecord struct {
	Name      string              `json:"name"`
	Vers      Version             `json:"vers"`
	Deps      []DependencyRecord  `json:"deps"`
	Features  map[string][]string `json:"features"`
	Features2 map[string][]string `json:"features2,omitempty"`
	Cksum     string              `json:"cksum"`
	Yanked    bool                `json:"yanked"`
	Links     *string             `json:"links"`
	V         uint32              `json:"v,omitempty"`
}

// DependencyRecord describes one dependency of a PackageRecord.
type DependencyRecord struct {
	Name            string         `json:"name"`
	Req             Requirement    `json:"req"`
	Features        []string       `json:"features"`
	Optional        bool           `json:"optional"`
	DefaultFeatures bool           `json:"default_features"`
	Target          *string        `json:"target"`
	Kind            DependencyKind `json:"kind"`
	Registry        *string        `json:"registry"`
	Package         *string        `json:"package"`
}

// ResolveName returns the name the dependency resolves against: the original
// package name for renamed dependencies, the declared name otherwise.
func (d DependencyRecord) ResolveName() string {
	if d.Package != nil && *d.Package != "" {
		return *d.Package
	}
	return d.Name
}

// Local reports whether the dependency resolves within the same index.
func (d DependencyRecord) Local() bool {
	return d.Registry == nil
}

// ID returns the "name:vers" form used in messages.
func (p PackageRecord) ID() string {
	return fmt.Sprintf("%s:%s", p.Name, p.Vers)
}

// Normalize replaces nil collections with empty ones so the record encodes as [] and {}.
func (p *PackageRecord) Normalize() {
	if p.Deps == nil {
		p.Deps = []DependencyRecord{}
	}
	if p.Features == nil {
		p.Features = map[string][]string{}
	}
	for name, refs := range p.Features {
		if refs == nil {
			p.Features[name] = []string{}
		}
	}
	for i := range p.Deps {
		if p.Deps[i].Features == nil {
			p.Deps[i].Features = []string{}
		}
		if p.Deps[i].Kind == "" {
			p.Deps[i].Kind = KindNormal
		}
	}
}

// IndexConfig is the content of config.json at the index root.
type IndexConfig struct {
	DL  string `json:"dl"`
	API string `json:"api,omitempty"`
}

// NewIndexConfig builds a config, trimming the trailing slash of the API URL.
func NewIndexConfig(dl, api string) IndexConfig {
	return IndexConfig{DL: dl, API: strings.TrimRight(api, "/")}
}
