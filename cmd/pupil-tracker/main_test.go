package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	o, err := parseFlags([]string{"-video", "eye.mp4", "-roi", "0:100,0:200", "-smooth", "-prefetch", "0"})
	require.NoError(t, err)
	assert.Equal(t, "eye.mp4", o.video)
	assert.Equal(t, "trace.jsonl", o.out)
	assert.True(t, o.smooth)
	assert.Zero(t, o.prefetch)
	assert.Equal(t, "info", o.logLevel)

	_, err = parseFlags([]string{"-roi", "0:100,0:200"})
	assert.Error(t, err)

	_, err = parseFlags([]string{"-video", "eye.mp4", "-roi", "0:1,0:1", "-prefetch", "-1"})
	assert.Error(t, err)
}

func TestLoadRegion(t *testing.T) {
	roi, err := loadRegion("10:20,30:60")
	require.NoError(t, err)
	assert.Equal(t, [2]int{30, 60}, roi.Cols)

	path := filepath.Join(t.TempDir(), "roi.JSON")
	require.NoError(t, os.WriteFile(path, []byte(`{"rows":[1,5],"cols":[2,9]}`), 0o644))
	roi, err = loadRegion(path)
	require.NoError(t, err)
	assert.Equal(t, [2]int{1, 5}, roi.Rows)
}

func TestNewApplicationRejectsBadInputs(t *testing.T) {
	_, err := NewApplication(t.Context(), options{roi: "1:0,0:5", logLevel: "info"})
	assert.Error(t, err)

	_, err = NewApplication(t.Context(), options{roi: "0:5,0:5", logLevel: "loud"})
	assert.Error(t, err)

	_, err = NewApplication(t.Context(), options{roi: "0:5,0:5", logLevel: "info", params: "tuning.yaml"})
	assert.Error(t, err)
}
