// Command ptest compiles every program of the test suite with pasc, runs
// the resulting executables and compares their output with golden files.
//
// For tests/foo.pas the golden output is tests/foo.expected and the
// optional standard input is tests/foo.in. A golden file starting with
// "Error while compiling" expects the compilation itself to fail and is
// compared against the compiler's output instead.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
)

const compileErrorPrefix = "Error while compiling"

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

type FileTestResult struct {
	File    string     `json:"file"`
	Hash    string     `json:"hash"`
	Status  string     `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message string     `json:"message,omitempty"`
	Diff    string     `json:"diff,omitempty"`
	Compile *Execution `json:"compile,omitempty"`
	Run     *Execution `json:"run,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

var (
	compiler       = flag.String("compiler", "./pasc", "Path to the compiler under test.")
	compilerArgs   = flag.String("compiler-args", "", "Extra compiler arguments (space-separated).")
	testFiles      = flag.String("test-files", "tests/*.pas", "Glob pattern(s) for files to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each command execution.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
	useCache       = flag.Bool("cached", false, "Skip tests whose inputs are unchanged since they last passed.")
	generateGolden = flag.Bool("update", false, "Rewrite the golden files from the current output.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	tempDir, err := os.MkdirTemp("", "ptest-*")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to create temp directory: %v\n", cRed, cNone, err)
	}
	defer os.RemoveAll(tempDir)
	setupInterruptHandler(tempDir)

	if !handleRunTestSuite(tempDir) {
		os.RemoveAll(tempDir)
		os.Exit(1)
	}
}

// setupInterruptHandler cleans up on CTRL+C
func setupInterruptHandler(tempDir string) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		os.RemoveAll(tempDir)
		fmt.Printf("\n%s[INTERRUPT]%s Test run cancelled. Cleaning up...\n", cYellow, cNone)
		os.Exit(1)
	}()
}

func siblingPath(sourceFile, ext string) string {
	return strings.TrimSuffix(sourceFile, filepath.Ext(sourceFile)) + ext
}

// inputsHash identifies everything a test result depends on: the program,
// its golden output and input, and the compiler binary.
func inputsHash(paths ...string) (string, error) {
	h := xxhash.New()
	for _, path := range paths {
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(h, "\x00missing:%s\x00", filepath.Base(path))
			continue
		}
		if err != nil {
			return "", err
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

func compilerPath() string {
	if path, err := exec.LookPath(*compiler); err == nil {
		return path
	}
	return *compiler
}

func handleRunTestSuite(tempDir string) bool {
	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return true
	}

	previousResults := make(TestSuiteResults)
	if prevData, err := os.ReadFile(*outputJSON); err == nil {
		if json.Unmarshal(prevData, &previousResults) != nil {
			log.Printf("%s[WARN]%s Could not parse previous results file %s. Cache will not be used.\n", cYellow, cNone, *outputJSON)
			previousResults = make(TestSuiteResults)
		}
	}

	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		skipList[f] = true
	}

	tasks := make(chan string, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				resultsChan <- testFile(file, tempDir, previousResults)
			}
		}()
	}

	for _, file := range files {
		if skipList[file] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		tasks <- file
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var allResults []*FileTestResult
	for result := range resultsChan {
		allResults = append(allResults, result)
	}
	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].File < allResults[j].File
	})

	printSummary(allResults)
	return !hasFailures(writeJSONReport(allResults))
}

func testFile(file, tempDir string, previousResults TestSuiteResults) *FileTestResult {
	goldenFile := siblingPath(file, ".expected")
	inputFile := siblingPath(file, ".in")

	hash, err := inputsHash(file, goldenFile, inputFile, compilerPath())
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to hash test inputs: %v", err)}
	}
	if prev, ok := previousResults[file]; *useCache && ok && prev.Hash == hash && prev.Status == "PASS" {
		if *verbose {
			log.Printf("[%s] inputs unchanged, reusing cached result", file)
		}
		cached := *prev
		cached.Message += " (cached)"
		return &cached
	}

	var input string
	if data, err := os.ReadFile(inputFile); err == nil {
		input = string(data)
	}

	result := &FileTestResult{File: file, Hash: hash}
	compileRes, runRes := compileAndRun(file, tempDir, hash, input)
	result.Compile, result.Run = &compileRes, runRes

	actual := compileRes.Stdout
	if runRes != nil {
		actual = runRes.Stdout
	}

	if *generateGolden {
		if err := os.WriteFile(goldenFile, []byte(actual), 0644); err != nil {
			result.Status, result.Message = "ERROR", fmt.Sprintf("Failed to write golden file: %v", err)
			return result
		}
		result.Status, result.Message = "PASS", "Golden file updated"
		return result
	}

	goldenData, err := os.ReadFile(goldenFile)
	if err != nil {
		result.Status, result.Message = "SKIP", "Cannot test without a corresponding .expected golden file"
		return result
	}
	expected := string(goldenData)
	expectsCompileError := strings.HasPrefix(expected, compileErrorPrefix)

	switch {
	case compileRes.TimedOut:
		result.Status, result.Message = "FAIL", "Compiler timed out"
	case expectsCompileError && compileRes.ExitCode != 2:
		result.Status, result.Message = "FAIL", fmt.Sprintf("Expected a compile error, compiler exited with %d", compileRes.ExitCode)
	case !expectsCompileError && compileRes.ExitCode != 0:
		result.Status, result.Message = "FAIL", "Compiler failed, but the golden file expects success"
		result.Diff = fmt.Sprintf("Compiler STDOUT:\n%s\nCompiler STDERR:\n%s", compileRes.Stdout, compileRes.Stderr)
	case runRes != nil && runRes.TimedOut:
		result.Status, result.Message = "FAIL", "Program timed out"
	case actual != expected:
		result.Status, result.Message = "FAIL", "Output mismatch"
		result.Diff = cmp.Diff(expected, actual)
	default:
		result.Status, result.Message = "PASS", "Output matches"
	}
	return result
}

// compileAndRun builds an executable from sourceFile and runs it once.
// The run is nil when compilation fails.
func compileAndRun(sourceFile, tempDir, hash, input string) (Execution, *Execution) {
	binaryPath := filepath.Join(tempDir, hash)
	args := []string{"-q", "-o", binaryPath + ".o", "--link", binaryPath}
	args = append(args, strings.Fields(*compilerArgs)...)
	args = append(args, sourceFile)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	compileRes := executeCommand(ctx, *compiler, "", args...)
	if compileRes.ExitCode != 0 || compileRes.TimedOut {
		return compileRes, nil
	}

	runCtx, runCancel := context.WithTimeout(context.Background(), *timeout)
	defer runCancel()
	runRes := executeCommand(runCtx, binaryPath, input)
	return compileRes, &runRes
}

// executeCommand runs a command with a timeout and captures its output, optionally piping data to stdin
func executeCommand(ctx context.Context, command string, stdinData string, args ...string) Execution {
	startTime := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdinData != "" {
		cmd.Stdin = strings.NewReader(stdinData)
	}

	err := cmd.Run()
	execResult := Execution{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(startTime),
	}

	var exitErr *exec.ExitError
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		execResult.TimedOut = true
		execResult.ExitCode = -1
	case errors.As(err, &exitErr):
		execResult.ExitCode = exitErr.ExitCode()
	case err != nil:
		execResult.ExitCode = -2
		execResult.Stderr += "\nExecution error: " + err.Error()
	}
	return execResult
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%6dus", d.Microseconds())
	}
	return fmt.Sprintf("%6dms", d.Milliseconds())
}

func printSummary(results []*FileTestResult) {
	var passed, failed, skipped, errored int
	var totalCompile time.Duration

	for _, result := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s%s%s...\n", cCyan, result.File, cNone)
		switch result.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s\n", cGreen, cNone, result.Message)
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, result.Message)
			fmt.Println(formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s\n", cYellow, cNone, result.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, result.Message)
		}
		if result.Compile != nil {
			totalCompile += result.Compile.Duration
			if *verbose {
				line := "  compile: " + formatDuration(result.Compile.Duration)
				if result.Run != nil {
					line += ", run: " + formatDuration(result.Run.Duration)
				}
				fmt.Println(line)
			}
		}
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results))
	if *verbose {
		fmt.Printf("Total compile time: %s\n", totalCompile)
	}
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var sb strings.Builder
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "-"):
			sb.WriteString("    " + cRed + line + cNone + "\n")
		case strings.HasPrefix(trimmed, "+"):
			sb.WriteString("    " + cGreen + line + cNone + "\n")
		default:
			sb.WriteString("    " + line + "\n")
		}
	}
	return sb.String()
}

func writeJSONReport(results []*FileTestResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}
	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return resultsMap
	}
	if err := os.WriteFile(*outputJSON, jsonData, 0644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, *outputJSON, err)
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}
