package lotteryd

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"blocklotto/native/lottery"
)

func TestLogEmitterRendersEventAttributes(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(slog.New(slog.NewJSONHandler(&buf, nil)))

	emitter.Emit(lottery.TicketsPurchased{
		Asset:     "SOL",
		RoundID:   3,
		Buyer:     [20]byte{0x01},
		Count:     2,
		UnitPrice: big.NewInt(1000),
		Total:     big.NewInt(2000),
		Timestamp: 999_900,
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, lottery.TypeTicketsPurchased, line["event"])
	require.Equal(t, "SOL", line["asset"])
	require.Equal(t, "3", line["roundId"])
	require.Equal(t, "2000", line["total"])
}

func TestLogEmitterObservesEngineTransitions(t *testing.T) {
	var buf bytes.Buffer
	h := newHarness(t)
	h.engine.SetEmitter(NewLogEmitter(slog.New(slog.NewJSONHandler(&buf, nil))))
	fund(t, h, testPlayer, 10_000_000_000)

	_, err := h.service.BuyTickets("SOL", testPlayer, 1)
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, lottery.TypeTicketsPurchased)
	require.Contains(t, out, lottery.TypeBonusTicketAwarded)
}
