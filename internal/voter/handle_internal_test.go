package voter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ocx/agentbus/internal/agentbuserr"
	"github.com/ocx/agentbus/internal/bus/busmem"
	"github.com/ocx/agentbus/internal/payload"
)

// handle's default case only fires for a payload type that somehow
// reaches the Voter despite its own poll filter (a backend that ignores
// filters, or a future variant added to the union without updating
// voterPollFilter). Exercised directly here since busmem.Poll itself
// would never surface a Control entry under {Intention, VoterPolicy}.
func TestHandleReportsUnknownPayloadType(t *testing.T) {
	log := busmem.New()
	v := New(log, nil, "b", "gpt", nil)

	err := v.handle(context.Background(), payload.BusEntry{
		Header:  payload.Header{LogPosition: 7},
		Payload: payload.NewCommit(1, "whatever"),
	})

	var unknown *agentbuserr.UnknownPayloadType
	require.True(t, errors.As(err, &unknown))
	require.Equal(t, uint64(7), unknown.Position)
}
