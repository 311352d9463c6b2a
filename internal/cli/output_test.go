package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSON(t *testing.T) {
	tests := []struct {
		name   string
		write  func(f *OutputFormatter) error
		status string
		code   string
	}{
		{
			name:   "success",
			write:  func(f *OutputFormatter) error { return f.Success(map[string]string{"result": "ok"}) },
			status: "ok",
		},
		{
			name:   "error",
			write:  func(f *OutputFormatter) error { return f.Error("E005", "not found", nil) },
			status: "error",
			code:   "E005",
		},
		{
			name:   "error with details",
			write:  func(f *OutputFormatter) error { return f.Error("E006", "syntax error", map[string]int{"line": 3}) },
			status: "error",
			code:   "E006",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			require.NoError(t, tt.write(&OutputFormatter{Format: "json", Writer: buf}))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Status)
			if tt.code != "" {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.code, resp.Error.Code)
			} else {
				assert.Nil(t, resp.Error)
				assert.NotNil(t, resp.Data)
			}
		})
	}
}

func TestOutputFormatter_Text(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, f.Success("Knowledge base valid"))
	require.NoError(t, f.Error("E001", "failed", map[string]string{"file": "kb.cue"}))

	out := buf.String()
	assert.Contains(t, out, "Knowledge base valid")
	assert.Contains(t, out, "Error [E001]: failed")
	assert.NotContains(t, out, "Details:")

	f.Verbose = true
	require.NoError(t, f.Error("E001", "failed", map[string]string{"file": "kb.cue"}))
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	err := f.Fail(ExitCommandError, "E005", "missing", nil)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "E005: missing", err.Error())
	assert.Contains(t, buf.String(), "Error [E005]: missing")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
			f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: tt.verbose}

			f.VerboseLog("loading %s", "kb")
			assert.Empty(t, out.String())
			if tt.wantLog {
				assert.Equal(t, "loading kb\n", errOut.String())
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}
