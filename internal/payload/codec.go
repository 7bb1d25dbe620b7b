package payload

import "encoding/binary"

// Encode renders a Payload into its durable byte form (spec.md §4.2).
// The encoding is a fixed field order per Type so that bytes written by
// one binary version stay decodable by any later binary of the same major
// version — durable WOAS backends outlive any single process.
func Encode(p Payload) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, byte(p.Type))

	switch p.Type {
	case TypeIntention:
		buf = appendString(buf, p.Intention.Body)
	case TypeVote:
		buf = appendUint64(buf, p.Vote.IntentionID)
		buf = appendBool(buf, p.Vote.VoteType)
		if p.Vote.Info != nil {
			buf = append(buf, 1)
			buf = appendString(buf, p.Vote.Info.Reason)
			buf = appendString(buf, p.Vote.Info.Model)
		} else {
			buf = append(buf, 0)
		}
	case TypeDeciderPolicy:
		buf = append(buf, byte(p.DeciderPolicy))
	case TypeVoterPolicy:
		buf = appendString(buf, p.VoterPolicy.PromptOverride)
	case TypeCommit:
		buf = appendUint64(buf, p.Commit.IntentionID)
		buf = appendString(buf, p.Commit.Reason)
	case TypeAbort:
		buf = appendUint64(buf, p.Abort.IntentionID)
		buf = appendString(buf, p.Abort.Reason)
	case TypeControl:
		buf = append(buf, byte(p.Control.Kind))
		switch p.Control.Kind {
		case ControlActionOutput:
			buf = appendUint64(buf, p.Control.IntentionID)
			buf = appendString(buf, p.Control.Body)
		default:
			buf = appendString(buf, p.Control.Text)
		}
	}
	return buf
}

// Decode parses bytes produced by Encode. Unknown type tags, truncated
// buffers, or otherwise malformed payloads yield (Payload{}, false);
// callers must skip such entries and keep scanning (spec.md §4.2/§4.3).
func Decode(b []byte) (Payload, bool) {
	if len(b) < 1 {
		return Payload{}, false
	}
	typ := Type(b[0])
	rest := b[1:]

	switch typ {
	case TypeIntention:
		body, _, ok := readString(rest)
		if !ok {
			return Payload{}, false
		}
		return Payload{Type: typ, Intention: Intention{Body: body}}, true

	case TypeVote:
		intentionID, rest, ok := readUint64(rest)
		if !ok {
			return Payload{}, false
		}
		voteType, rest, ok := readBool(rest)
		if !ok {
			return Payload{}, false
		}
		if len(rest) < 1 {
			return Payload{}, false
		}
		hasInfo := rest[0] == 1
		rest = rest[1:]
		v := Vote{IntentionID: intentionID, VoteType: voteType}
		if hasInfo {
			reason, r2, ok := readString(rest)
			if !ok {
				return Payload{}, false
			}
			model, _, ok := readString(r2)
			if !ok {
				return Payload{}, false
			}
			v.Info = &ExternalLlmVoteInfo{Reason: reason, Model: model}
		}
		return Payload{Type: typ, Vote: v}, true

	case TypeDeciderPolicy:
		if len(rest) < 1 {
			return Payload{}, false
		}
		return Payload{Type: typ, DeciderPolicy: DeciderPolicyKind(rest[0])}, true

	case TypeVoterPolicy:
		prompt, _, ok := readString(rest)
		if !ok {
			return Payload{}, false
		}
		return Payload{Type: typ, VoterPolicy: VoterPolicy{PromptOverride: prompt}}, true

	case TypeCommit:
		id, rest, ok := readUint64(rest)
		if !ok {
			return Payload{}, false
		}
		reason, _, ok := readString(rest)
		if !ok {
			return Payload{}, false
		}
		return Payload{Type: typ, Commit: Commit{IntentionID: id, Reason: reason}}, true

	case TypeAbort:
		id, rest, ok := readUint64(rest)
		if !ok {
			return Payload{}, false
		}
		reason, _, ok := readString(rest)
		if !ok {
			return Payload{}, false
		}
		return Payload{Type: typ, Abort: Abort{IntentionID: id, Reason: reason}}, true

	case TypeControl:
		if len(rest) < 1 {
			return Payload{}, false
		}
		kind := ControlKind(rest[0])
		rest = rest[1:]
		switch kind {
		case ControlActionOutput:
			id, rest, ok := readUint64(rest)
			if !ok {
				return Payload{}, false
			}
			body, _, ok := readString(rest)
			if !ok {
				return Payload{}, false
			}
			return Payload{Type: typ, Control: Control{Kind: kind, IntentionID: id, Body: body}}, true
		case ControlAgentInput, ControlInferenceInput, ControlInferenceOutput, ControlAgentOutput:
			text, _, ok := readString(rest)
			if !ok {
				return Payload{}, false
			}
			return Payload{Type: typ, Control: Control{Kind: kind, Text: text}}, true
		default:
			return Payload{}, false
		}

	default:
		return Payload{}, false
	}
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func appendString(buf []byte, s string) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(s)))
	buf = append(buf, tmp[:]...)
	return append(buf, s...)
}

func readUint64(b []byte) (uint64, []byte, bool) {
	if len(b) < 8 {
		return 0, nil, false
	}
	return binary.LittleEndian.Uint64(b[:8]), b[8:], true
}

func readBool(b []byte) (bool, []byte, bool) {
	if len(b) < 1 {
		return false, nil, false
	}
	return b[0] != 0, b[1:], true
}

func readString(b []byte) (string, []byte, bool) {
	if len(b) < 4 {
		return "", nil, false
	}
	n := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]
	if uint64(len(b)) < uint64(n) {
		return "", nil, false
	}
	return string(b[:n]), b[n:], true
}
