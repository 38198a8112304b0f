package executor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o700))
	return path
}

func TestSplit(t *testing.T) {
	name, args, err := Split("  firefox   https://example.com  --new-tab ")
	require.NoError(t, err)
	require.Equal(t, "firefox", name)
	require.Equal(t, []string{"https://example.com", "--new-tab"}, args)

	_, _, err = Split("   ")
	require.ErrorIs(t, err, ErrSpawnFailure)
}

func TestRunReturnsExitCode(t *testing.T) {
	path := writeScript(t, `echo "$1"; exit 3`)
	var stdout bytes.Buffer

	code, err := Executor{Stdout: &stdout}.Run(context.Background(), path+" hello")
	require.NoError(t, err)
	require.Equal(t, 3, code)
	require.Equal(t, "hello\n", stdout.String())
}

func TestRunSuccess(t *testing.T) {
	code, err := Executor{}.Run(context.Background(), "true")
	require.NoError(t, err)
	require.Equal(t, 0, code)
}

func TestRunSignalledProcessReportsZero(t *testing.T) {
	path := writeScript(t, `kill -9 $$`)

	code, err := Executor{}.Run(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 0, code)
}

func TestRunUnknownProgram(t *testing.T) {
	_, err := Executor{}.Run(context.Background(), "definitely-not-a-real-binary --flag")
	require.ErrorIs(t, err, ErrSpawnFailure)
	require.Contains(t, err.Error(), "definitely-not-a-real-binary")
}

func TestStartReapsInBackground(t *testing.T) {
	path := writeScript(t, `exit 4`)

	proc, err := Executor{}.Start(path)
	require.NoError(t, err)
	require.NotZero(t, proc.Pid)

	select {
	case <-proc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process was not reaped")
	}
	require.Equal(t, 4, proc.ExitCode())
}

func TestStartUnknownProgram(t *testing.T) {
	_, err := Executor{}.Start("definitely-not-a-real-binary")
	require.ErrorIs(t, err, ErrSpawnFailure)
}
