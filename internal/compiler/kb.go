package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/tactline/internal/ir"
)

// Top-level sections of a knowledge base document.
const (
	sectionWorld    = "world"
	sectionInterval = "interval"
	sectionEvent    = "event"
	sectionRule     = "rule"
)

// LoadKB loads every CUE file of the package in dir and compiles the result.
// The returned knowledge base is not validated; call ValidateKB before
// handing it to a solver.
func LoadKB(dir string) (*ir.KnowledgeBase, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("knowledge base directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("knowledge base path is not a directory: %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", cueError("cue", inst.Err))
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, cueError("cue", err)
	}
	return CompileKB(value)
}

// CompileKBSource compiles a knowledge base held in memory.
// filename is only used for error positions.
func CompileKBSource(filename, src string) (*ir.KnowledgeBase, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, cueError("cue", err)
	}
	return CompileKB(v)
}

// CompileKB parses a CUE value into a KnowledgeBase.
// Uses the CUE SDK's Go API directly.
//
// The value is the whole document:
//
//	world: sensor: attr1: {type: "number"}
//	interval: I: {open: {...}, close: {...}}
//	event: E: occurs: {...}
//	rule: R1: condition: {allen: "b", left: {event: "E"}, right: {interval: "I"}}
//
// Declaration order of every section is preserved.
func CompileKB(v cue.Value) (*ir.KnowledgeBase, error) {
	if err := v.Err(); err != nil {
		return nil, cueError("cue", err)
	}

	kb := &ir.KnowledgeBase{}
	var err error

	if kb.World, err = parseProperties(v.LookupPath(cue.ParsePath(sectionWorld)), sectionWorld); err != nil {
		return nil, err
	}

	err = eachField(v, sectionInterval, func(id string, def cue.Value) error {
		field := sectionInterval + "." + id
		open, err := parseRequiredExpr(def, "open", field)
		if err != nil {
			return err
		}
		closeExpr, err := parseRequiredExpr(def, "close", field)
		if err != nil {
			return err
		}
		if err := onlyFields(def, field, "open", "close"); err != nil {
			return err
		}
		kb.Intervals = append(kb.Intervals, &ir.IntervalDef{ID: id, Open: open, Close: closeExpr})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachField(v, sectionEvent, func(id string, def cue.Value) error {
		field := sectionEvent + "." + id
		occurs, err := parseRequiredExpr(def, "occurs", field)
		if err != nil {
			return err
		}
		if err := onlyFields(def, field, "occurs"); err != nil {
			return err
		}
		kb.Events = append(kb.Events, &ir.EventDef{ID: id, Occurs: occurs})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachField(v, sectionRule, func(id string, def cue.Value) error {
		field := sectionRule + "." + id
		cond, err := parseRequiredExpr(def, "condition", field)
		if err != nil {
			return err
		}
		if err := onlyFields(def, field, "condition"); err != nil {
			return err
		}
		kb.Rules = append(kb.Rules, &ir.Rule{ID: id, Condition: cond})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(kb.Intervals) == 0 && len(kb.Events) == 0 && len(kb.Rules) == 0 && len(kb.World) == 0 {
		return nil, &CompileError{
			Field:   "kb",
			Message: "no world, interval, event or rule definitions found",
			Pos:     v.Pos(),
		}
	}
	return kb, nil
}

// eachField calls fn for every field of the named section, in order.
// A missing section is not an error.
func eachField(v cue.Value, section string, fn func(label string, def cue.Value) error) error {
	sv := v.LookupPath(cue.ParsePath(section))
	if !sv.Exists() {
		return nil
	}
	if sv.IncompleteKind() != cue.StructKind {
		return &CompileError{Field: section, Message: "must be a struct", Pos: sv.Pos()}
	}
	iter, err := sv.Fields()
	if err != nil {
		return cueError(section, err)
	}
	for iter.Next() {
		if err := fn(iter.Selector().Unquoted(), iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

func onlyFields(v cue.Value, field string, allowed ...string) error {
	iter, err := v.Fields()
	if err != nil {
		return cueError(field, err)
	}
	for iter.Next() {
		label := iter.Selector().Unquoted()
		ok := false
		for _, a := range allowed {
			if label == a {
				ok = true
				break
			}
		}
		if !ok {
			return &CompileError{
				Field:   field + "." + label,
				Message: "unexpected field",
				Pos:     iter.Value().Pos(),
			}
		}
	}
	return nil
}

func parseRequiredExpr(def cue.Value, name, field string) (ir.Expr, error) {
	ev := def.LookupPath(cue.MakePath(cue.Str(name)))
	if !ev.Exists() {
		return nil, &CompileError{
			Field:   field + "." + name,
			Message: name + " is required",
			Pos:     def.Pos(),
		}
	}
	return parseExpr(ev, field+"."+name)
}

func parseExpr(v cue.Value, field string) (ir.Expr, error) {
	raw, err := cueToAny(v, field)
	if err != nil {
		return nil, err
	}
	e, err := ir.ParseExpr(raw)
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return e, nil
}

// parseProperties compiles a world struct into the working-memory schema.
// A struct whose "type" field is a string is a leaf; any other struct is an
// object whose fields are child properties.
func parseProperties(v cue.Value, field string) ([]ir.Property, error) {
	if !v.Exists() {
		return nil, nil
	}
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{Field: field, Message: "must be a struct", Pos: v.Pos()}
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, cueError(field, err)
	}

	var props []ir.Property
	for iter.Next() {
		name := iter.Selector().Unquoted()
		pv := iter.Value()
		pfield := field + "." + name
		if pv.IncompleteKind() != cue.StructKind {
			return nil, &CompileError{
				Field:   pfield,
				Message: "property must be a struct with a type or child properties",
				Pos:     pv.Pos(),
			}
		}

		typeVal := pv.LookupPath(cue.MakePath(cue.Str("type")))
		if typeVal.Exists() && typeVal.Kind() == cue.StringKind {
			prop, err := parseLeaf(name, pv, pfield)
			if err != nil {
				return nil, err
			}
			props = append(props, prop)
			continue
		}

		children, err := parseProperties(pv, pfield)
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			return nil, &CompileError{Field: pfield, Message: "object property has no children", Pos: pv.Pos()}
		}
		props = append(props, ir.Property{Name: name, Children: children})
	}
	return props, nil
}

func parseLeaf(name string, v cue.Value, field string) (ir.Property, error) {
	prop := ir.Property{Name: name}
	typ, err := v.LookupPath(cue.MakePath(cue.Str("type"))).String()
	if err != nil {
		return prop, cueError(field+".type", err)
	}
	prop.Type = typ

	if dv := v.LookupPath(cue.MakePath(cue.Str("default"))); dv.Exists() {
		prop.Default, err = parseExpr(dv, field+".default")
		if err != nil {
			return prop, err
		}
	}
	return prop, onlyFields(v, field, "type", "default")
}

// cueToAny converts a concrete CUE value into the generic form accepted by
// ir.ParseExpr. Integers stay int64.
func cueToAny(v cue.Value, field string) (any, error) {
	if err := v.Err(); err != nil {
		return nil, cueError(field, err)
	}
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		return v.Bool()
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
		}
		return n, nil
	case cue.FloatKind:
		return v.Float64()
	case cue.StringKind:
		return v.String()
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, cueError(field, err)
		}
		m := make(map[string]any)
		for iter.Next() {
			label := iter.Selector().Unquoted()
			elem, err := cueToAny(iter.Value(), field+"."+label)
			if err != nil {
				return nil, err
			}
			m[label] = elem
		}
		return m, nil
	case cue.ListKind:
		return nil, &CompileError{Field: field, Message: "lists are not valid expressions", Pos: v.Pos()}
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("value must be concrete, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}
