package codegen

import (
	"bytes"
	"fmt"

	"github.com/matouskozak/pascal-frontend/pkg/config"
	"github.com/matouskozak/pascal-frontend/pkg/ir"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	Name() string
	// GenerateIR renders the program in the backend's textual IR.
	GenerateIR(prog *ir.Program, cfg *config.Config) (string, error)
	// Generate produces the input of the system assembler or compiler
	// driver that turns the program into an object file.
	Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error)
	// objectCommand returns the argv that compiles the output of Generate,
	// stored at input, into an object file at output.
	objectCommand(cfg *config.Config, input, output string) []string
	sourceExt() string
}

// SelectBackend returns the backend named by cfg.Backend.
func SelectBackend(cfg *config.Config) (Backend, error) {
	switch cfg.Backend {
	case "qbe":
		return NewQBEBackend(), nil
	case "llvm":
		return NewLLVMBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported backend '%s'", cfg.Backend)
	}
}
