package payload

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := []Payload{
		NewIntention("transfer $5 to agent-42"),
		NewVote(7, true, nil),
		NewVote(7, false, &ExternalLlmVoteInfo{Reason: "looks risky", Model: "gpt-test"}),
		NewDeciderPolicy(OffByDefault),
		NewDeciderPolicy(OnByDefault),
		NewDeciderPolicy(FirstBooleanWins),
		NewVoterPolicy("be extra cautious"),
		NewCommit(3, "ON_BY_DEFAULT policy"),
		NewAbort(4, "first boolean vote: false"),
		NewControlAgentInput("hello"),
		NewControlAgentOutput("world"),
		NewControlInferenceInput("prompt"),
		NewControlInferenceOutput("completion"),
		NewControlActionOutput(9, "did the thing"),
	}

	for _, want := range cases {
		encoded := Encode(want)
		got, ok := Decode(encoded)
		require.True(t, ok, "decode of %+v failed", want)
		require.Equal(t, want, got)
	}
}

func TestDecodeUnknownTypeSkipped(t *testing.T) {
	_, ok := Decode([]byte{0xFF})
	require.False(t, ok)
}

func TestDecodeTruncatedSkipped(t *testing.T) {
	full := Encode(NewIntention("x"))
	for n := 0; n < len(full); n++ {
		_, ok := Decode(full[:n])
		require.False(t, ok, "truncation to %d bytes should fail to decode", n)
	}
}

func TestParseDeciderPolicyKind(t *testing.T) {
	k, err := ParseDeciderPolicyKind("FIRST_BOOLEAN_WINS")
	require.NoError(t, err)
	require.Equal(t, FirstBooleanWins, k)

	_, err = ParseDeciderPolicyKind("NOT_A_POLICY")
	require.Error(t, err)
}
