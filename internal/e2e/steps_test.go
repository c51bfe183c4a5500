package e2e

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/SAMI-Medical-Physics/spider/internal/nifti"
	"github.com/SAMI-Medical-Physics/spider/internal/spect"
	"github.com/cucumber/godog"
)

var tools = []string{"spider_make_phantom", "spider_dicom_dump", "spider_tia"}

// binDir holds the compiled tools (set once in TestMain)
var binDir string

// testContext holds state for a single scenario
type testContext struct {
	tmpDir   string
	exitCode int
	output   string
}

// buildBinaries compiles every tool once
func buildBinaries() (string, error) {
	dir, err := os.MkdirTemp("", "spider-bin-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}

	// Get the directory of this test file to find the project root
	_, thisFile, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(thisFile), "..", "..")

	for _, tool := range tools {
		cmd := exec.Command("go", "build", "-o", filepath.Join(dir, tool), "./cmd/"+tool)
		cmd.Dir = projectRoot
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			os.RemoveAll(dir)
			return "", fmt.Errorf("build %s failed: %w\n%s", tool, err, stderr.String())
		}
	}
	return dir, nil
}

// TestMain compiles the tools once before running all tests
func TestMain(m *testing.M) {
	var err error
	binDir, err = buildBinaries()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build binaries: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(binDir)
	os.Exit(code)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

func InitializeScenario(sc *godog.ScenarioContext) {
	tc := &testContext{}

	sc.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tmpDir, err := os.MkdirTemp("", "spider-e2e-*")
		if err != nil {
			return ctx, err
		}
		tc.tmpDir = tmpDir
		return ctx, nil
	})

	sc.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if tc.tmpDir != "" {
			os.RemoveAll(tc.tmpDir)
		}
		return ctx, nil
	})

	sc.Step(`^the spider tools are built$`, tc.theToolsAreBuilt)
	sc.Step(`^I run (spider_\w+) with "([^"]*)"$`, tc.iRunWith)
	sc.Step(`^I run (spider_\w+) with "([^"]*)" writing "([^"]*)"$`, tc.iRunWithWriting)
	sc.Step(`^I run (spider_\w+) with "([^"]*)" reading "([^"]*)"$`, tc.iRunWithReading)
	sc.Step(`^the exit code should be (\d+)$`, tc.theExitCodeShouldBe)
	sc.Step(`^the output should contain "([^"]*)"$`, tc.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, tc.theOutputShouldNotContain)
	sc.Step(`^"([^"]*)" should exist$`, tc.shouldExist)
	sc.Step(`^"([^"]*)" should not exist$`, tc.shouldNotExist)
	sc.Step(`^"([^"]*)" should contain (\d+) DICOM files$`, tc.shouldContainDICOMFiles)
	sc.Step(`^"([^"]*)" should contain (\d+) SPECT records$`, tc.shouldContainRecords)
	sc.Step(`^the maximum of "([^"]*)" should be ([0-9.e+]+) within ([0-9.]+) percent$`, tc.theMaximumShouldBe)
}

func (tc *testContext) theToolsAreBuilt() error {
	for _, tool := range tools {
		if _, err := os.Stat(filepath.Join(binDir, tool)); err != nil {
			return fmt.Errorf("binary %s not built: %w", tool, err)
		}
	}
	return nil
}

func (tc *testContext) path(p string) string {
	return filepath.Join(tc.tmpDir, p)
}

// execute runs tool in the scenario directory. stdout goes to the output
// unless a file is given.
func (tc *testContext) execute(tool, args, stdinFile, stdoutFile string) error {
	args = strings.ReplaceAll(args, "{tmpdir}", tc.tmpDir)
	cmd := exec.Command(filepath.Join(binDir, tool), splitArgs(args)...)
	cmd.Dir = tc.tmpDir
	cmd.Env = append(os.Environ(), "SPIDER_CONFIG="+filepath.Join(tc.tmpDir, "no-such-config.yaml"))

	var output bytes.Buffer
	cmd.Stderr = &output
	cmd.Stdout = &output
	if stdoutFile != "" {
		f, err := os.Create(tc.path(stdoutFile))
		if err != nil {
			return err
		}
		defer f.Close()
		cmd.Stdout = f
	}
	if stdinFile != "" {
		f, err := os.Open(tc.path(stdinFile))
		if err != nil {
			return err
		}
		defer f.Close()
		cmd.Stdin = f
	}

	err := cmd.Run()
	tc.output = output.String()

	if exitErr, ok := err.(*exec.ExitError); ok {
		tc.exitCode = exitErr.ExitCode()
	} else if err != nil {
		return fmt.Errorf("failed to run command: %w", err)
	} else {
		tc.exitCode = 0
	}
	return nil
}

func (tc *testContext) iRunWith(tool, args string) error {
	return tc.execute(tool, args, "", "")
}

func (tc *testContext) iRunWithWriting(tool, args, file string) error {
	return tc.execute(tool, args, "", file)
}

func (tc *testContext) iRunWithReading(tool, args, file string) error {
	return tc.execute(tool, args, file, "")
}

func (tc *testContext) theExitCodeShouldBe(expected int) error {
	if tc.exitCode != expected {
		return fmt.Errorf("expected exit code %d, got %d\nOutput:\n%s", expected, tc.exitCode, tc.output)
	}
	return nil
}

func (tc *testContext) theOutputShouldContain(expected string) error {
	if !strings.Contains(tc.output, expected) {
		return fmt.Errorf("output does not contain %q\nOutput:\n%s", expected, tc.output)
	}
	return nil
}

func (tc *testContext) theOutputShouldNotContain(unexpected string) error {
	if strings.Contains(tc.output, unexpected) {
		return fmt.Errorf("output contains %q\nOutput:\n%s", unexpected, tc.output)
	}
	return nil
}

func (tc *testContext) shouldExist(path string) error {
	if _, err := os.Stat(tc.path(path)); os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", path)
	}
	return nil
}

func (tc *testContext) shouldNotExist(path string) error {
	if _, err := os.Stat(tc.path(path)); err == nil {
		return fmt.Errorf("path exists: %s", path)
	}
	return nil
}

func (tc *testContext) shouldContainDICOMFiles(path string, count int) error {
	files, err := filepath.Glob(filepath.Join(tc.path(path), "IM*.dcm"))
	if err != nil {
		return err
	}
	if len(files) != count {
		return fmt.Errorf("expected %d DICOM files, found %d", count, len(files))
	}
	return nil
}

func (tc *testContext) shouldContainRecords(path string, count int) error {
	f, err := os.Open(tc.path(path))
	if err != nil {
		return err
	}
	defer f.Close()
	records, err := spect.ReadSpects(f)
	if err != nil {
		return err
	}
	if len(records) != count {
		return fmt.Errorf("expected %d SPECT records, found %d", count, len(records))
	}
	return nil
}

func (tc *testContext) theMaximumShouldBe(path, value, percent string) error {
	want, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	tol, err := strconv.ParseFloat(percent, 64)
	if err != nil {
		return err
	}
	img, err := nifti.ReadFile(tc.path(path))
	if err != nil {
		return err
	}
	var got float64
	for _, v := range img.Data {
		got = math.Max(got, float64(v))
	}
	if math.Abs(got-want) > want*tol/100 {
		return fmt.Errorf("maximum of %s is %g, want %g within %g%%", path, got, want, tol)
	}
	return nil
}

// splitArgs splits a command line string into arguments
func splitArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false

	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		args = append(args, current.String())
	}
	return args
}
