package ir

import (
	"errors"
	"fmt"
)

// Verify checks the structural well-formedness every backend relies on:
// each block ends in exactly one terminator, branch targets and callees
// exist, and each temporary is defined once before it can be used.
func Verify(prog *Program) error {
	var errs []error
	for _, fn := range prog.Funcs {
		errs = append(errs, verifyFunc(prog, fn)...)
	}
	return errors.Join(errs...)
}

func verifyFunc(prog *Program, fn *Func) []error {
	var errs []error
	fail := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("function $%s: "+format, append([]interface{}{fn.Name}, args...)...))
	}

	if len(fn.Blocks) == 0 {
		fail("has no basic blocks")
		return errs
	}

	labels := make(map[string]bool)
	for _, b := range fn.Blocks {
		if labels[b.Label.Name] {
			fail("duplicate block label @%s", b.Label.Name)
		}
		labels[b.Label.Name] = true
	}

	defined := make(map[string]bool)
	for _, p := range fn.Params {
		defined[p.Val.Key()] = true
	}
	for _, b := range fn.Blocks {
		for _, instr := range b.Instructions {
			t, ok := instr.Result.(*Temporary)
			if !ok {
				continue
			}
			if defined[t.Key()] {
				fail("temporary %%%s is defined more than once", t.Key())
			}
			defined[t.Key()] = true
		}
	}

	for _, b := range fn.Blocks {
		if len(b.Instructions) == 0 {
			fail("block @%s is empty", b.Label.Name)
			continue
		}
		for i, instr := range b.Instructions {
			last := i == len(b.Instructions)-1
			if instr.Op.IsTerminator() && !last {
				fail("block @%s has %s before its end", b.Label.Name, instr.Op)
			}
			if last && !instr.Op.IsTerminator() {
				fail("block @%s does not end in a terminator", b.Label.Name)
			}

			for j, arg := range instr.Args {
				switch v := arg.(type) {
				case nil:
					if instr.Op != OpRet {
						fail("block @%s: %s has a missing operand", b.Label.Name, instr.Op)
					}
				case *Temporary:
					if !defined[v.Key()] {
						fail("block @%s: %s uses undefined temporary %%%s", b.Label.Name, instr.Op, v.Key())
					}
				case *Label:
					if !labels[v.Name] {
						fail("block @%s: %s targets unknown block @%s", b.Label.Name, instr.Op, v.Name)
					}
				case *Global:
					if instr.Op == OpCall && j == 0 && prog.FindFunc(v.Name) == nil && prog.FindExtrn(v.Name) == nil {
						fail("block @%s: call to unknown function $%s", b.Label.Name, v.Name)
					}
				}
			}

			if instr.Op == OpRet {
				hasValue := len(instr.Args) > 0 && instr.Args[0] != nil
				if hasValue != (fn.ReturnType != TypeNone) {
					fail("block @%s: return does not match the function's return type", b.Label.Name)
				}
			}
		}
	}
	return errs
}
