package criteria

import "strings"

// IsSelectAll reports whether the template has no projection, meaning the
// executor selects every column.
func (c *Criteria) IsSelectAll() bool {
	return len(c.tmpl.selects) == 0
}

// Selects returns the projection entries.
func (c *Criteria) Selects() []Select {
	return append([]Select(nil), c.tmpl.selects...)
}

// SelectFields returns the logical field of each projection entry ("" for
// entries targeting "*").
func (c *Criteria) SelectFields() []string {
	fields := make([]string, len(c.tmpl.selects))
	for i, s := range c.tmpl.selects {
		fields[i] = s.Field
	}
	return fields
}

// Projection renders the select list, e.g. "users.status, COUNT(*)". It is
// empty when IsSelectAll.
func (c *Criteria) Projection() string {
	var parts []string
	for _, s := range c.tmpl.selects {
		parts = append(parts, s.Func.Apply(s.Attr))
		if s.Attr == nil {
			break
		}
	}
	return strings.Join(parts, ", ")
}

// InsertProjection inserts the rendered select list into dst at byte offset
// at and returns the result. dst is returned unchanged when IsSelectAll.
func (c *Criteria) InsertProjection(dst string, at int) (string, error) {
	if at < 0 || at > len(dst) {
		return "", newError(ErrCodeInvalidOffset, "", "offset %d outside [0, %d]", at, len(dst))
	}
	proj := c.Projection()
	if proj == "" {
		return dst, nil
	}
	return dst[:at] + proj + dst[at:], nil
}
