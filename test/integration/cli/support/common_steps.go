package support

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MeKo-Tech/dmscan/cmd/dmscan/cmd"
	"github.com/cucumber/godog"
)

// substituteCommandVariables replaces {source}, {output} and {tmp} with the
// scenario's folders.
func (testCtx *TestContext) substituteCommandVariables(command string) string {
	return strings.NewReplacer(
		"{source}", testCtx.SourceDir,
		"{output}", testCtx.OutputDir,
		"{tmp}", testCtx.TempDir,
	).Replace(command)
}

// iRunCommand executes a dmscan command line in-process.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)
	testCtx.LastCommand = command

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] != "dmscan" {
		return fmt.Errorf("only dmscan commands can be run, got %q", parts[0])
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	root := cmd.NewRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(parts[1:])

	start := time.Now()
	err := root.ExecuteContext(ctx)
	testCtx.LastDuration = time.Since(start)

	testCtx.LastStdout = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastOutput = testCtx.LastStdout + testCtx.LastStderr
	testCtx.LastError = err
	testCtx.LastExitCode = 0
	if err != nil {
		testCtx.LastExitCode = 1
		testCtx.LastOutput += "Error: " + err.Error() + "\n"
	}
	return nil
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies the output contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldNotContain verifies the output lacks specific text.
func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output unexpectedly contains '%s'\nActual output: %s", text, testCtx.LastOutput)
	}
	return nil
}

// theStdoutShouldBe compares the standard output exactly.
func (testCtx *TestContext) theStdoutShouldBe(expected *godog.DocString) error {
	want := strings.TrimSpace(testCtx.substituteCommandVariables(expected.Content))
	if got := strings.TrimSpace(testCtx.LastStdout); got != want {
		return fmt.Errorf("stdout mismatch\nwant: %q\ngot:  %q", want, got)
	}
	return nil
}

// theOutputShouldBeValidJSON verifies the standard output is a JSON document.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	var doc any
	if err := json.Unmarshal([]byte(testCtx.LastStdout), &doc); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, testCtx.LastStdout)
	}
	return nil
}

// theJSONFieldShouldBe checks a dotted path in the JSON output, e.g.
// "summary.matrices_extracted" = "2".
func (testCtx *TestContext) theJSONFieldShouldBe(path, expected string) error {
	var doc any
	if err := json.Unmarshal([]byte(testCtx.LastStdout), &doc); err != nil {
		return fmt.Errorf("output is not valid JSON: %w", err)
	}
	cur := doc
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: %v is not an object", path, cur)
		}
		if cur, ok = obj[key]; !ok {
			return fmt.Errorf("%s: key %q missing", path, key)
		}
	}
	if got := fmt.Sprint(cur); got != expected {
		return fmt.Errorf("%s = %s, want %s", path, got, expected)
	}
	return nil
}

// theOutputShouldBeCSVWithRows verifies the standard output parses as CSV with
// the given number of data rows.
func (testCtx *TestContext) theOutputShouldBeCSVWithRows(rows int) error {
	records, err := csv.NewReader(strings.NewReader(testCtx.LastStdout)).ReadAll()
	if err != nil {
		return fmt.Errorf("output is not valid CSV: %w", err)
	}
	if len(records)-1 != rows {
		return fmt.Errorf("expected %d CSV rows, got %d\nOutput: %s", rows, len(records)-1, testCtx.LastStdout)
	}
	return nil
}

// theErrorShouldMention checks the returned error message.
func (testCtx *TestContext) theErrorShouldMention(text string) error {
	if testCtx.LastError == nil {
		return errors.New("no error was returned")
	}
	if !strings.Contains(testCtx.LastError.Error(), text) {
		return fmt.Errorf("error %q does not mention %q", testCtx.LastError, text)
	}
	return nil
}

// theFileShouldExist checks a file relative to the scenario temp dir.
func (testCtx *TestContext) theFileShouldExist(rel string) error {
	path := testCtx.Path(rel)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file %s does not exist: %w", path, err)
	}
	testCtx.LastFile = path
	return nil
}

// theFileShouldContain checks the content of the last checked file.
func (testCtx *TestContext) theFileShouldContain(content string) error {
	if testCtx.LastFile == "" {
		return errors.New("no file has been checked yet")
	}
	data, err := os.ReadFile(testCtx.LastFile)
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), content) {
		return fmt.Errorf("file %s does not contain %q\nContent: %s", testCtx.LastFile, content, data)
	}
	return nil
}

// theEnvironmentVariableIsSetTo sets an environment variable for the scenario.
func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	testCtx.SetEnv(name, value)
	return nil
}

// aFileWithContent writes a text file, e.g. a configuration file.
func (testCtx *TestContext) aFileWithContent(rel string, content *godog.DocString) error {
	path := testCtx.Path(rel)
	if err := os.WriteFile(path, []byte(content.Content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// RegisterCommonSteps registers command execution and output steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)

	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the standard output should be:$`, testCtx.theStdoutShouldBe)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONFieldShouldBe)
	sc.Step(`^the output should be CSV with (\d+) rows?$`, testCtx.theOutputShouldBeCSVWithRows)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)

	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^a file "([^"]*)" with content:$`, testCtx.aFileWithContent)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)
}
