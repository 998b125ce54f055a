package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBuffer_SplitsLinesAcrossWrites(t *testing.T) {
	b := NewLogBuffer(10)
	_, _ = b.Write([]byte("one\ntw"))
	_, _ = b.Write([]byte("o\n\nthree"))

	lines, dropped := b.Snapshot(0)
	assert.Equal(t, []string{"one", "two"}, lines)
	assert.Zero(t, dropped)

	_, _ = b.Write([]byte("\n"))
	lines, _ = b.Snapshot(0)
	assert.Equal(t, []string{"one", "two", "three"}, lines)
}

func TestLogBuffer_DropsOldest(t *testing.T) {
	b := NewLogBuffer(3)
	for i := 0; i < 5; i++ {
		fmt.Fprintf(b, "line %d\n", i)
	}
	lines, dropped := b.Snapshot(10)
	assert.Equal(t, []string{"line 2", "line 3", "line 4"}, lines)
	assert.Equal(t, uint64(2), dropped)

	lines, _ = b.Snapshot(1)
	assert.Equal(t, []string{"line 4"}, lines)
}

func TestLogsRoute(t *testing.T) {
	b := NewLogBuffer(10)
	fmt.Fprintln(b, `{"level":"info","msg":"receiver started"}`)
	h := Handler(Deps{Logs: b})

	rr := get(t, h, "/api/logs?tail=5")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp LogsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp.Lines, 1)

	rr = get(t, h, "/api/logs?format=text")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "receiver started")

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/logs?tail=0").Code)
}
