package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/criteria/internal/ir"
)

// CompileTemplate parses a CUE value into a TemplateSpec.
//
//	template: ActiveUsers: {
//		schema: "User"
//		conditions: [
//			{name: "status", field: "status", op: "EQ"},
//			{name: "created", conj: "AND", field: "createdDate", op: "GTEQ"},
//		]
//		joins: [{name: "account", template: "Accounts", local: "accountId", remote: "id"}]
//	}
//
// Names are not resolved here; see ValidateCatalog.
func CompileTemplate(v cue.Value) (*ir.TemplateSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.TemplateSpec{Name: labelOf(v)}

	var err error
	if spec.Schema, err = requiredString(v, "schema"); err != nil {
		return nil, err
	}
	if spec.SelectType, err = optionalString(v, "select_type"); err != nil {
		return nil, err
	}

	err = eachListItem(v, "select", func(item cue.Value) error {
		var sel ir.SelectSpec
		var err error
		if sel.Func, err = optionalString(item, "func"); err != nil {
			return err
		}
		if sel.Field, err = optionalString(item, "field"); err != nil {
			return err
		}
		spec.Select = append(spec.Select, sel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachListItem(v, "conditions", func(item cue.Value) error {
		cond, err := parseCondition(item)
		if err != nil {
			return err
		}
		spec.Conditions = append(spec.Conditions, cond)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachListItem(v, "joins", func(item cue.Value) error {
		join, err := parseJoin(item)
		if err != nil {
			return err
		}
		spec.Joins = append(spec.Joins, join)
		return nil
	})
	if err != nil {
		return nil, err
	}

	groupVal := v.LookupPath(cue.ParsePath("group_by"))
	if groupVal.Exists() {
		gb, err := parseGroupBy(groupVal)
		if err != nil {
			return nil, err
		}
		spec.GroupBy = gb
	}

	err = eachListItem(v, "order_by", func(item cue.Value) error {
		field, err := requiredString(item, "field")
		if err != nil {
			return err
		}
		order := ir.OrderSpec{Field: field}
		if descVal := item.LookupPath(cue.ParsePath("desc")); descVal.Exists() {
			if order.Desc, err = descVal.Bool(); err != nil {
				return formatCUEError(err)
			}
		}
		spec.OrderBy = append(spec.OrderBy, order)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if limitVal := v.LookupPath(cue.ParsePath("limit")); limitVal.Exists() {
		if spec.Limit, err = limitVal.Int64(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	return spec, nil
}

func parseCondition(item cue.Value) (ir.ConditionSpec, error) {
	var cond ir.ConditionSpec
	var err error
	if cond.Name, err = requiredString(item, "name"); err != nil {
		return cond, err
	}
	if cond.Op, err = requiredString(item, "op"); err != nil {
		return cond, err
	}
	if cond.Conj, err = optionalString(item, "conj"); err != nil {
		return cond, err
	}
	if cond.Field, err = optionalString(item, "field"); err != nil {
		return cond, err
	}
	return cond, nil
}

func parseJoin(item cue.Value) (ir.JoinSpec, error) {
	var join ir.JoinSpec
	var err error
	for _, f := range []struct {
		path string
		dst  *string
	}{
		{"name", &join.Name},
		{"template", &join.Template},
		{"local", &join.Local},
		{"remote", &join.Remote},
	} {
		if *f.dst, err = requiredString(item, f.path); err != nil {
			return join, err
		}
	}
	if join.Type, err = optionalString(item, "type"); err != nil {
		return join, err
	}
	return join, nil
}

func parseGroupBy(v cue.Value) (*ir.GroupBySpec, error) {
	gb := &ir.GroupBySpec{}
	err := eachListItem(v, "fields", func(item cue.Value) error {
		s, err := item.String()
		if err != nil {
			return formatCUEError(err)
		}
		gb.Fields = append(gb.Fields, s)
		return nil
	})
	if err != nil {
		return nil, err
	}

	havingVal := v.LookupPath(cue.ParsePath("having"))
	if havingVal.Exists() {
		h := &ir.HavingSpec{}
		if h.Func, err = requiredString(havingVal, "func"); err != nil {
			return nil, err
		}
		if h.Op, err = requiredString(havingVal, "op"); err != nil {
			return nil, err
		}
		if h.Field, err = optionalString(havingVal, "field"); err != nil {
			return nil, err
		}
		gb.Having = h
	}
	return gb, nil
}

// eachListItem calls fn for every element of the optional list at path.
func eachListItem(v cue.Value, path string, fn func(cue.Value) error) error {
	listVal := v.LookupPath(cue.ParsePath(path))
	if !listVal.Exists() {
		return nil
	}
	iter, err := listVal.List()
	if err != nil {
		return &CompileError{
			Field:   path,
			Message: fmt.Sprintf("must be a list: %v", err),
			Pos:     listVal.Pos(),
		}
	}
	for iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return nil
}
