package main

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"
)

// captureOutput captures stdout while running a function.
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	var buf bytes.Buffer
	copied := make(chan struct{})
	go func() {
		buf.ReadFrom(r)
		close(copied)
	}()

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout
	<-copied
	return buf.String(), fnErr
}

// runCLI runs the CLI with args, logs silenced.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return captureOutput(t, func() error {
		cmd := newRootCmd()
		cmd.SetArgs(append(args, "--quiet"))
		return cmd.Execute()
	})
}

func writeInput(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flows.txt")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}
	return path
}
