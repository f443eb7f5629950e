package codegen

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/matouskozak/pascal-frontend/pkg/config"
	"github.com/matouskozak/pascal-frontend/pkg/ir"
	"github.com/matouskozak/pascal-frontend/pkg/util"
)

// EmitObject runs the backend and compiles its output into the object file
// cfg.OutFile using the system assembler (QBE) or clang (LLVM).
func EmitObject(backend Backend, prog *ir.Program, cfg *config.Config) error {
	buf, err := backend.Generate(prog, cfg)
	if err != nil {
		return err
	}

	src, err := os.CreateTemp("", "pasc-*"+backend.sourceExt())
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(src.Name())
	if _, err := buf.WriteTo(src); err != nil {
		src.Close()
		return fmt.Errorf("failed to write %s: %w", src.Name(), err)
	}
	if err := src.Close(); err != nil {
		return err
	}

	argv := backend.objectCommand(cfg, src.Name(), cfg.OutFile)
	util.Info(cfg, "running %s", strings.Join(argv, " "))
	return run(argv)
}

// Link links object files against the C library into an executable.
func Link(cfg *config.Config, exe string, objects ...string) error {
	argv := append([]string{"cc", "-o", exe}, objects...)
	util.Info(cfg, "running %s", strings.Join(argv, " "))
	return run(argv)
}

func run(argv []string) error {
	if _, err := exec.LookPath(argv[0]); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", argv[0], err)
	}
	var stderr bytes.Buffer
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w\n%s", argv[0], err, stderr.String())
	}
	return nil
}
