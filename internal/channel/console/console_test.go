package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/soyeahso/attendant/internal/domain"
	"github.com/soyeahso/attendant/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_DispatchesLines(t *testing.T) {
	var out bytes.Buffer
	ch := New(strings.NewReader("oi\n\n  1  \nAlice\n"), &out, "", logging.New(nil, "silent"))

	var got []domain.InboundMessage
	ch.OnMessage(func(m domain.InboundMessage) { got = append(got, m) })
	require.NoError(t, ch.Start(context.Background()))

	require.Len(t, got, 3)
	assert.Equal(t, "1", got[1].Body)
	assert.Equal(t, "local", got[0].From)
	assert.Equal(t, "console", got[0].ChannelID)
	assert.Equal(t, 3, ch.Lines())
	assert.False(t, ch.Status().Running)
}

func TestStart_CancelledContext(t *testing.T) {
	ch := New(strings.NewReader("a\nb\n"), &bytes.Buffer{}, "tester", logging.New(nil, "silent"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ch.Start(ctx), context.Canceled)
}

func TestSend_PrefixesLines(t *testing.T) {
	var out bytes.Buffer
	ch := New(strings.NewReader(""), &out, "tester", logging.New(nil, "silent"))
	require.NoError(t, ch.Send(context.Background(), domain.OutboundMessage{To: "tester", Body: "Bom dia!\n1 - Iniciar"}))
	assert.Equal(t, "bot> Bom dia!\nbot> 1 - Iniciar\n\n", out.String())
	assert.Equal(t, "tester", ch.From())
}
