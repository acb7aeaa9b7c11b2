package index

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"regindex/artifact"
	"regindex/types"

	"github.com/pkg/errors"
)

// ValidateOptions configures a validation run.
type ValidateOptions struct {
	// Artifacts, when set, is used to verify each record's checksum.
	Artifacts artifact.Provider
	// Reporter receives every problem. Defaults to a reporter that only collects.
	Reporter Reporter
}

// Validate checks the whole index under the exclusive lock. Problems are
// reported one by one and do not stop the run; if any was found the returned
// error matches ErrValidationFailed. Only an unreadable index or config
// aborts the run early.
func Validate(ctx context.Context, root string, opts ValidateOptions) (*Summary, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, errors.Errorf("Index does not exist at `%s`.", root)
	}
	v := &validator{
		root:      root,
		artifacts: opts.Artifacts,
		summary:   newSummary(),
		crates:    make(map[string][]types.PackageRecord),
	}
	v.reporter = opts.Reporter
	if v.reporter == nil {
		v.reporter = &Collector{}
	}

	lock, err := LockExclusive(root)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	if _, err := LoadConfig(root); err != nil {
		return nil, err
	}

	if err := walkShards(root, func(rel string) error {
		return v.checkFile(ctx, rel)
	}); err != nil {
		return v.summary, err
	}
	v.checkDependencies()

	if v.summary.Failed() {
		return v.summary, newError(ErrValidationFailed, "Found at least one error in the index.")
	}
	return v.summary, nil
}

type validator struct {
	root      string
	artifacts artifact.Provider
	reporter  Reporter
	summary   *Summary
	crates    map[string][]types.PackageRecord
	order     []string
}

func (v *validator) report(kind error, pkg, rel string, format string, args ...interface{}) {
	p := Problem{Kind: kind, Package: pkg, Path: rel, Msg: fmt.Sprintf(format, args...)}
	v.summary.add(p)
	v.reporter.Report(p)
}

func (v *validator) checkFile(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.summary.Files++
	fileName := path.Base(rel)
	filePath := filepath.Join(v.root, filepath.FromSlash(rel))

	if ShardPath(fileName) != rel {
		v.report(ErrMisplacedFile, "", rel, "File `%s` is not in the correct location.", filePath)
		return nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		v.report(ErrCorruptRecord, "", rel, "Failed to read `%s`: %v", filePath, err)
		return nil
	}

	seen := make([]types.Version, 0)
	for i, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		rec, err := DecodeRecord(line)
		if err != nil {
			v.report(ErrCorruptRecord, "", rel, "Could not deserialize `%s` line %d:\n%s\n%v", filePath, i+1, line, err)
			continue
		}
		v.summary.Records++
		if _, ok := v.crates[rec.Name]; !ok {
			v.order = append(v.order, rec.Name)
		}
		v.crates[rec.Name] = append(v.crates[rec.Name], rec)

		duplicate := false
		for _, s := range seen {
			if s.Same(rec.Vers) {
				duplicate = true
				break
			}
		}
		if duplicate {
			v.report(ErrDuplicateVersion, rec.ID(), rel, "Version `%s` appears multiple times in `%s`.", rec.Vers, rec.Name)
		} else {
			seen = append(seen, rec.Vers)
		}

		if err := ValidateName(rec.Name, "package name"); err != nil {
			v.report(ErrInvalidName, rec.ID(), rel, "%s", err)
		}
		if strings.ToLower(rec.Name) != fileName {
			v.report(ErrMisplacedFile, rec.ID(), rel, "Package `%s` does not match file name `%s`.", rec.ID(), filePath)
		}
		for _, dep := range rec.Deps {
			if err := ValidateName(dep.Name, fmt.Sprintf("dependency of `%s`", rec.ID())); err != nil {
				v.report(ErrInvalidName, rec.ID(), rel, "%s", err)
			}
		}

		if v.artifacts != nil {
			v.checkArtifact(ctx, rec, rel)
		}
	}
	return nil
}

func (v *validator) checkArtifact(ctx context.Context, rec types.PackageRecord, rel string) {
	ref := artifact.Ref{Name: rec.Name, Version: rec.Vers.String(), Checksum: rec.Cksum}
	rc, err := v.artifacts.Open(ctx, ref)
	if errors.Is(err, artifact.ErrNotFound) {
		v.report(ErrMissingArtifact, rec.ID(), rel, "Could not find crate file: %s", v.artifacts.Location(ref))
		return
	}
	if err != nil {
		v.report(ErrMissingArtifact, rec.ID(), rel, "Could not read crate file %s: %v", v.artifacts.Location(ref), err)
		return
	}
	defer rc.Close()
	sum, err := artifact.Checksum(rc)
	if err != nil {
		v.report(ErrMissingArtifact, rec.ID(), rel, "Could not read crate file %s: %v", v.artifacts.Location(ref), err)
		return
	}
	if sum != rec.Cksum {
		v.report(ErrChecksumMismatch, rec.ID(), rel, "Checksum did not match for package `%s`:\nindex: %s\nactual:%s", rec.ID(), rec.Cksum, sum)
	}
}

// checkDependencies is the cross-package pass over every record collected by checkFile.
func (v *validator) checkDependencies() {
	for _, name := range v.order {
		for _, rec := range v.crates[name] {
			for _, dep := range rec.Deps {
				if !dep.Local() {
					continue
				}
				depName := dep.ResolveName()
				candidates, ok := v.crates[depName]
				if !ok {
					v.report(ErrMissingDependency, rec.ID(), ShardPath(rec.Name),
						"Could not find dependency name `%s` from package `%s`.", depName, rec.ID())
					continue
				}
				satisfied := false
				for _, c := range candidates {
					if dep.Req.Matches(c.Vers) {
						satisfied = true
						break
					}
				}
				if !satisfied {
					v.report(ErrUnsatisfiedRequirement, rec.ID(), ShardPath(rec.Name),
						"Could not find dependency `%s` matching requirement `%s` from package `%s`.", depName, dep.Req, rec.ID())
				}
			}
		}
	}
}
