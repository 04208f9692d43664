package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testScriptPath returns the path to a script under testdata
func testScriptPath(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join("testdata", name)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("test file not found: %s", path)
	}
	return path
}

// writeScript writes a throwaway script and returns its path
func writeScript(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.trace")
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

// resetFlags restores every flag to its default
func resetFlags() {
	verbose = false
	quiet = false
	jsonOut = false
	heapMaxPages = 256
	heapStrategy = strategyFirstFit
	heapSpace = spaceSlice
	runVerify = false
	runDump = ""
	inspectHead = 0
	inspectStrict = false
	inspectLimit = 0
	mapWidth = 64
	stressOps = 500
	stressSeed = 1
	stressMaxSize = 2048
	stressVerify = true
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	// Drain concurrently so large outputs cannot fill the pipe.
	done := make(chan struct{})
	var buf bytes.Buffer
	go func() {
		_, _ = buf.ReadFrom(r)
		close(done)
	}()

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout
	<-done

	return buf.String(), fnErr
}

// decodeJSON unmarshals output into v
func decodeJSON(t *testing.T, output string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(output), v); err != nil {
		t.Fatalf("invalid JSON output: %v\nOutput: %s", err, output)
	}
}

// stringsReader wraps s for parsers
func stringsReader(s string) *strings.Reader {
	return strings.NewReader(s)
}
