package wire

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePstatShape(t *testing.T) {
	store := buildSampleStore(t)
	var buf bytes.Buffer
	require.NoError(t, WritePstat(&buf, store))

	var report pstatReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))

	assert.Equal(t, "WALL", report.ClockMode)
	require.Len(t, report.Functions, 2)

	byName := map[string]pstatFunction{}
	for _, f := range report.Functions {
		byName[f.Key.Name] = f
	}

	a := byName["a"]
	assert.Equal(t, int64(3), a.NCall)
	assert.Equal(t, int64(1), a.NActualCall)
	assert.Equal(t, int64(100), a.CumulativeTime)
	assert.Equal(t, int64(40), a.TotalTime)
	assert.Empty(t, a.Callers, "a is never called, so it has no callers")

	b := byName["b"]
	require.Len(t, b.Callers, 1)
	assert.Equal(t, "a", b.Callers[0].Key.Name)
	assert.Equal(t, int64(5), b.Callers[0].NCall)
	assert.Equal(t, int64(60), b.Callers[0].CumulativeTime)
}
