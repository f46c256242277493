package procmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutputMode(t *testing.T) {
	tests := []struct {
		in   string
		want OutputMode
	}{
		{"", OutputDiscard},
		{"discard", OutputDiscard},
		{"console", OutputConsole},
		{"FILE", OutputFile},
		{" both ", OutputBoth},
	}
	for _, tt := range tests {
		got, err := ParseOutputMode(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseOutputMode("syslog")
	assert.ErrorIs(t, err, ErrUnknownOutputMode)
}

func TestOutputModeRouting(t *testing.T) {
	tests := []struct {
		mode     OutputMode
		console  bool
		file     bool
		queue    bool
		truncate bool
	}{
		{OutputDiscard, false, false, false, false},
		{OutputConsole, true, false, false, false},
		{OutputFile, false, true, false, true},
		{OutputBoth, true, false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			r := tt.mode.Routing("/tmp/out.log")
			assert.Equal(t, tt.console, r.Console)
			assert.Equal(t, tt.file, r.File)
			assert.Equal(t, tt.queue, r.Queue)
			assert.Equal(t, tt.truncate, r.truncatesFile())
			assert.Equal(t, tt.mode == OutputDiscard, r.Discards())
		})
	}
}

func TestRoutingValidate(t *testing.T) {
	assert.ErrorIs(t, OutputFile.Routing("").validate(), ErrNoFilePath)
	assert.ErrorIs(t, Routing{File: true}.validate(), ErrNoFilePath)

	assert.NoError(t, OutputBoth.Routing("").validate())
	assert.False(t, OutputBoth.Routing("").truncatesFile())
	assert.NoError(t, Routing{Console: true, Queue: true}.validate())
}

func TestRoutingString(t *testing.T) {
	assert.Equal(t, "discard", OutputDiscard.Routing("").String())
	assert.Equal(t, "file:/var/log/x", OutputFile.Routing("/var/log/x").String())
	assert.Equal(t, "console+file:/a+queue", Routing{Console: true, File: true, Queue: true, Path: "/a"}.String())
	assert.Equal(t, "discard", Routing{}.String())
}

func TestTargetString(t *testing.T) {
	assert.Equal(t, "pid 12", ByPID(12).String())
	assert.Equal(t, "name mdk4", ByName("mdk4").String())
}

func TestGetVersion(t *testing.T) {
	info := GetVersion()
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.Platform)
}
