package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is a strict semantic version that keeps its original text.
type Version struct {
	v *semver.Version
}

// ParseVersion parses major.minor.patch[-pre][+build]; partial versions and a leading 'v' are rejected.
func ParseVersion(s string) (Version, error) {
	v, err := semver.StrictNewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("invalid version '%s': %v", s, err)
	}
	return Version{v: v}, nil
}

// MustParseVersion is ParseVersion for literals.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.Original()
}

// IsZero reports whether the version was never set.
func (v Version) IsZero() bool {
	return v.v == nil
}

// Semver exposes the parsed version.
func (v Version) Semver() *semver.Version {
	return v.v
}

// Same is version equality including build metadata. Plain semver
// equality treats 1.0.0+a and 1.0.0+b as equal; the index does not.
func (v Version) Same(o Version) bool {
	if v.v == nil || o.v == nil {
		return v.v == o.v
	}
	return v.v.Equal(o.v) && v.v.Metadata() == o.v.Metadata()
}

func (v Version) MarshalJSON() ([]byte, error) {
	return marshalString(v.String())
}

func (v *Version) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("version must be a string: %v", err)
	}
	parsed, err := ParseVersion(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Requirement is a version requirement in Cargo syntax. A bare version
// means caret ("1.2" is "^1.2"), commas join comparators.
type Requirement struct {
	raw string
	c   *semver.Constraints
	// pre holds major.minor.patch of every comparator naming a pre-release.
	pre map[string]bool
}

// ParseRequirement parses a requirement expression.
func ParseRequirement(s string) (Requirement, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Requirement{}, fmt.Errorf("empty version requirement")
	}
	c, err := semver.NewConstraint(NormalizeRequirement(raw))
	if err != nil {
		return Requirement{}, fmt.Errorf("invalid version requirement '%s': %v", s, err)
	}
	return Requirement{raw: s, c: c, pre: prereleaseTriples(raw)}, nil
}

// prereleaseTriples collects the version triples of the comparators in raw
// that carry a pre-release.
func prereleaseTriples(raw string) map[string]bool {
	triples := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimLeft(strings.TrimSpace(part), "^~=<>* ")
		v, err := semver.NewVersion(part)
		if err != nil || v.Prerelease() == "" {
			continue
		}
		triples[triple(v)] = true
	}
	return triples
}

func triple(v *semver.Version) string {
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}

// MustParseRequirement is ParseRequirement for literals.
func MustParseRequirement(s string) Requirement {
	r, err := ParseRequirement(s)
	if err != nil {
		panic(err)
	}
	return r
}

// NormalizeRequirement rewrites bare comparators to caret form, so "0.1" is
// written to the index as "^0.1".
func NormalizeRequirement(raw string) string {
	parts := strings.Split(raw, ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" && part[0] >= '0' && part[0] <= '9' {
			part = "^" + part
		}
		parts[i] = part
	}
	return strings.Join(parts, ", ")
}

// Matches reports whether v satisfies the requirement. A pre-release only
// matches when a comparator names a pre-release of the same major.minor.patch,
// so ">=1.0.0-alpha" accepts 1.0.0-beta but not 2.0.0-beta.
func (r Requirement) Matches(v Version) bool {
	if r.c == nil || v.v == nil {
		return false
	}
	if v.v.Prerelease() != "" && !r.pre[triple(v.v)] {
		return false
	}
	return r.c.Check(v.v)
}

func (r Requirement) String() string {
	return r.raw
}

func (r Requirement) IsZero() bool {
	return r.c == nil
}

func (r Requirement) MarshalJSON() ([]byte, error) {
	return marshalString(r.raw)
}

// marshalString encodes s without HTML escaping so "<1.0" stays readable.
func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (r *Requirement) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("requirement must be a string: %v", err)
	}
	parsed, err := ParseRequirement(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
