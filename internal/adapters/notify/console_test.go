package notify_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/alejandrodnm/mirrorcore/internal/adapters/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsole_Send_WritesTimestampedLine(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	require.NoError(t, c.Send(context.Background(), "FILLED order=1"))

	assert.Contains(t, buf.String(), "FILLED order=1")
}
