package stream_test

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nhle/puttnotify/internal/stream"
)

func TestDecoder(t *testing.T) {
	t.Parallel()

	body := strings.Join([]string{
		`data: {"type":"connected","playerId":42}`,
		``,
		`:heartbeat`,
		``,
		`event: message`,
		`id: 7`,
		`data: {"type":"notification",`,
		`data: "notification":{"id":1}}`,
		``,
		`data:no-space`,
		"\r",
		`data: dangling`,
	}, "\n")

	decoder := stream.NewDecoder(strings.NewReader(body))

	first, err := decoder.Next()
	require.NoError(t, err)
	require.Equal(t, `{"type":"connected","playerId":42}`, first.Data)
	require.Empty(t, first.Name)

	second, err := decoder.Next()
	require.NoError(t, err)
	require.Equal(t, "message", second.Name)
	require.Equal(t, "7", second.ID)
	require.Equal(t, "{\"type\":\"notification\",\n\"notification\":{\"id\":1}}", second.Data)

	third, err := decoder.Next()
	require.NoError(t, err)
	require.Equal(t, "no-space", third.Data)

	_, err = decoder.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestDecoderOnlyComments(t *testing.T) {
	t.Parallel()

	decoder := stream.NewDecoder(strings.NewReader(":heartbeat\n\n:heartbeat\n\n"))

	_, err := decoder.Next()
	require.ErrorIs(t, err, io.EOF)
}
