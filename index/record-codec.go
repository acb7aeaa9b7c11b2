package index

import (
	"bytes"
	"encoding/json"
	"io"

	"regindex/types"

	"github.com/pkg/errors"
)

// EncodeRecord serializes a record to a single JSON line without the
// trailing newline. Nil collections are written as [] and {}.
func EncodeRecord(rec types.PackageRecord) ([]byte, error) {
	rec.Deps = append([]types.DependencyRecord(nil), rec.Deps...)
	rec.Normalize()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s", rec.ID())
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DecodeRecord parses one JSON line. Unknown fields are rejected so records
// written by a newer schema are not silently truncated on rewrite.
func DecodeRecord(line []byte) (types.PackageRecord, error) {
	var rec types.PackageRecord
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return types.PackageRecord{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return types.PackageRecord{}, errors.New("unexpected data after record")
	}
	if rec.Vers.IsZero() {
		return types.PackageRecord{}, errors.New("missing field `vers`")
	}
	rec.Normalize()
	return rec, nil
}
