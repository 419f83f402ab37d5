package echoapi_test

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/royalacademy/backoffice/core/pricing"
)

func Test_eventsApi_stream(t *testing.T) {
	d := setup(t)
	srv := httptest.NewServer(d.app)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/events", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	// headers are flushed once subscribed, so this change is streamed
	_, err = d.prices.Reset(context.Background())
	require.NoError(t, err)

	lines := make([]string, 0, 3)
	scanner := bufio.NewScanner(res.Body)
	for len(lines) < 3 && scanner.Scan() {
		if line := scanner.Text(); line != "" && !strings.HasPrefix(line, ":") {
			lines = append(lines, line)
		}
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{
		"id: " + pricing.SlotName + ":1",
		"event: change",
		`data: {"name":"` + pricing.SlotName + `","version":1}`,
	}, lines)
}
