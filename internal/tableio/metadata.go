package tableio

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Metadata is the key/value store attached to a table.
type Metadata map[string]string

// Reserved metadata keys.
const (
	MetaSchema          = "schema"
	MetaContainerType   = "container_type"
	MetaColumnSeparator = "column_separator"

	columnPrefix = "column."
	attrPrefix   = "attr."
)

// Clone returns a copy of md.
func (md Metadata) Clone() Metadata {
	out := make(Metadata, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

// Keys returns the keys in sorted order.
func (md Metadata) Keys() []string {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Attributes returns the caller attributes with their prefix removed.
func (md Metadata) Attributes() map[string]string {
	out := map[string]string{}
	for k, v := range md {
		if a, ok := strings.CutPrefix(k, attrPrefix); ok {
			out[a] = v
		}
	}
	return out
}

// SetAttributes stores attrs under the attribute prefix.
func (md Metadata) SetAttributes(attrs map[string]string) {
	for k, v := range attrs {
		md[attrPrefix+k] = v
	}
}

// EncodeSchema renders s as table metadata: the full column list as JSON
// plus per-column unit and description keys for tools that only look at
// flat key/value pairs.
func EncodeSchema(s Schema) (Metadata, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	md := Metadata{
		MetaSchema:          string(raw),
		MetaColumnSeparator: s.Separator,
	}
	if s.Container != "" {
		md[MetaContainerType] = s.Container
	}
	for _, c := range s.Columns {
		if c.Unit != "" {
			md[columnPrefix+c.Name+".unit"] = string(c.Unit)
		}
		if c.Description != "" {
			md[columnPrefix+c.Name+".description"] = c.Description
		}
	}
	return md, nil
}

// DecodeSchema extracts the schema stored in md. The boolean is false when
// md carries no schema.
func DecodeSchema(md Metadata) (Schema, bool, error) {
	raw, ok := md[MetaSchema]
	if !ok {
		return Schema{}, false, nil
	}
	var s Schema
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Schema{}, true, fmt.Errorf("failed to decode stored schema: %w", err)
	}
	if s.Separator == "" {
		s.Separator = md[MetaColumnSeparator]
	}
	if s.Separator == "" {
		s.Separator = DefaultSeparator
	}
	if s.Container == "" {
		s.Container = md[MetaContainerType]
	}
	return s, true, nil
}
