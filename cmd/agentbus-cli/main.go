// Command agentbus-cli is an operator tool for an agentbusd instance:
// propose intentions/policies/control entries, poll the log, and tail
// verdicts. Adapted from the teacher's cmd/ocx-cli/main.go: a manual
// os.Args switch dispatch, env-var-defaulted connection settings, and a
// per-command flag loop, rather than a flag-package-based CLI.
//
// The teacher's gateway REPL additionally offered readline-style tab
// completion; no terminal/readline library appears anywhere in the
// example pack, so the REPL here is a plain bufio.Scanner loop instead.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ocx/agentbus/pb"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	addr := os.Getenv("AGENTBUS_ADDR")
	if addr == "" {
		addr = "localhost:9090"
	}
	busID := os.Getenv("AGENTBUS_ID")
	if busID == "" {
		busID = "default"
	}

	switch os.Args[1] {
	case "intention":
		cmdIntention(addr, busID, os.Args[2:])
	case "decider-policy":
		cmdDeciderPolicy(addr, busID, os.Args[2:])
	case "voter-policy":
		cmdVoterPolicy(addr, busID, os.Args[2:])
	case "control":
		cmdControl(addr, busID, os.Args[2:])
	case "poll":
		cmdPoll(addr, busID, os.Args[2:])
	case "tail":
		cmdTail(addr, busID, os.Args[2:])
	case "repl":
		cmdRepl(addr, busID)
	case "version":
		fmt.Printf("agentbus-cli v%s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`AgentBus CLI v` + version + `

Usage: agentbus-cli <command> [flags]

Commands:
  intention       Propose an intention     --body <text>
  decider-policy  Set the decider policy   --kind OFF_BY_DEFAULT|ON_BY_DEFAULT|FIRST_VOTE_WINS
  voter-policy    Override the voter prompt --prompt <text>
  control         Append a control entry    --kind agent-input|agent-output|inference-input|inference-output --text <text>
  poll            Poll entries              --start <n> --max <n>
  tail            Poll once; every 500ms with -f  --start <n> [-f]
  repl            Interactive prompt
  version         Print version
  help            Show this help

Environment:
  AGENTBUS_ADDR   gRPC server address (default: localhost:9090)
  AGENTBUS_ID     Bus id to target (default: "default")

Examples:
  agentbus-cli intention --body '{"action":"transfer"}'
  agentbus-cli decider-policy --kind ON_BY_DEFAULT
  agentbus-cli poll --start 0 --max 50`)
}

func dial(addr string) (pb.AgentBusServiceClient, func(), error) {
	cc, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(pb.CodecName)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return pb.NewAgentBusServiceClient(cc), func() { _ = cc.Close() }, nil
}

// replMode suppresses fail's os.Exit while the interactive prompt is
// running, so one bad command reports an error instead of killing the
// session.
var replMode bool

func fail(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	if replMode {
		panic(replError{})
	}
	os.Exit(1)
}

type replError struct{}

func (replError) Error() string { return "command failed" }

func runRepl(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(replError); !ok {
				panic(r)
			}
		}
	}()
	fn()
}

// ----------------------------------------------------------------
// intention command
// ----------------------------------------------------------------

func cmdIntention(addr, busID string, args []string) {
	var body string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--body", "-b":
			i++
			if i < len(args) {
				body = args[i]
			}
		}
	}
	if body == "" {
		fail("intention requires --body")
	}

	propose(addr, busID, &pb.Payload{Type: pb.PayloadType_INTENTION, IntentionBody: body})
}

// ----------------------------------------------------------------
// decider-policy command
// ----------------------------------------------------------------

func cmdDeciderPolicy(addr, busID string, args []string) {
	var kind string
	for i := 0; i < len(args); i++ {
		if args[i] == "--kind" || args[i] == "-k" {
			i++
			if i < len(args) {
				kind = args[i]
			}
		}
	}

	var k int32
	switch strings.ToUpper(kind) {
	case "OFF_BY_DEFAULT":
		k = 0
	case "ON_BY_DEFAULT":
		k = 1
	case "FIRST_VOTE_WINS":
		k = 2
	default:
		fail("decider-policy requires --kind OFF_BY_DEFAULT|ON_BY_DEFAULT|FIRST_VOTE_WINS")
	}

	propose(addr, busID, &pb.Payload{Type: pb.PayloadType_DECIDER_POLICY, DeciderPolicy: k})
}

// ----------------------------------------------------------------
// voter-policy command
// ----------------------------------------------------------------

func cmdVoterPolicy(addr, busID string, args []string) {
	var prompt string
	for i := 0; i < len(args); i++ {
		if args[i] == "--prompt" || args[i] == "-p" {
			i++
			if i < len(args) {
				prompt = args[i]
			}
		}
	}
	propose(addr, busID, &pb.Payload{Type: pb.PayloadType_VOTER_POLICY, VoterPolicyPromptOverride: prompt})
}

// ----------------------------------------------------------------
// control command
// ----------------------------------------------------------------

func cmdControl(addr, busID string, args []string) {
	var kind, text string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--kind", "-k":
			i++
			if i < len(args) {
				kind = args[i]
			}
		case "--text", "-t":
			i++
			if i < len(args) {
				text = args[i]
			}
		}
	}

	var k int32
	switch kind {
	case "agent-input":
		k = 0
	case "inference-input":
		k = 1
	case "inference-output":
		k = 2
	case "action-output":
		k = 3
	case "agent-output":
		k = 4
	default:
		fail("control requires --kind agent-input|agent-output|inference-input|inference-output|action-output")
	}

	propose(addr, busID, &pb.Payload{Type: pb.PayloadType_CONTROL, ControlKind: k, ControlText: text})
}

func propose(addr, busID string, p *pb.Payload) {
	client, closeFn, err := dial(addr)
	if err != nil {
		fail("%v", err)
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := client.Propose(ctx, &pb.ProposeRequest{AgentBusId: busID, Payload: p})
	if err != nil {
		fail("propose failed: %v", err)
	}
	fmt.Printf("ok, log position %d\n", resp.LogPosition)
}

// ----------------------------------------------------------------
// poll / tail commands
// ----------------------------------------------------------------

func cmdPoll(addr, busID string, args []string) {
	start, max := parsePollFlags(args)
	client, closeFn, err := dial(addr)
	if err != nil {
		fail("%v", err)
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := client.Poll(ctx, &pb.PollRequest{AgentBusId: busID, StartLogPosition: start, MaxEntries: int32(max)})
	if err != nil {
		fail("poll failed: %v", err)
	}
	printEntries(resp.Entries)
}

func cmdTail(addr, busID string, args []string) {
	start, max := parsePollFlags(args)
	follow := false
	for _, a := range args {
		if a == "-f" || a == "--follow" {
			follow = true
		}
	}

	client, closeFn, err := dial(addr)
	if err != nil {
		fail("%v", err)
	}
	defer closeFn()

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		resp, err := client.Poll(ctx, &pb.PollRequest{AgentBusId: busID, StartLogPosition: start, MaxEntries: int32(max)})
		cancel()
		if err != nil {
			fail("poll failed: %v", err)
		}
		printEntries(resp.Entries)
		for _, e := range resp.Entries {
			start = e.Header.LogPosition + 1
		}
		if !follow {
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func parsePollFlags(args []string) (start uint64, max int) {
	max = 100
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--start", "-s":
			i++
			if i < len(args) {
				if n, err := strconv.ParseUint(args[i], 10, 64); err == nil {
					start = n
				}
			}
		case "--max", "-m":
			i++
			if i < len(args) {
				if n, err := strconv.Atoi(args[i]); err == nil {
					max = n
				}
			}
		}
	}
	return start, max
}

func printEntries(entries []*pb.BusEntry) {
	for _, e := range entries {
		fmt.Printf("[%d] %s\n", e.Header.LogPosition, describePayload(e.Payload))
	}
}

func describePayload(p *pb.Payload) string {
	switch p.Type {
	case pb.PayloadType_INTENTION:
		return "Intention " + p.IntentionBody
	case pb.PayloadType_VOTE:
		verdict := "unsafe"
		if p.VoteType {
			verdict = "safe"
		}
		reason := ""
		if p.VoteInfo != nil {
			reason = fmt.Sprintf(" (%s: %s)", p.VoteInfo.Model, p.VoteInfo.Reason)
		}
		return fmt.Sprintf("Vote on #%d: %s%s", p.VoteIntentionId, verdict, reason)
	case pb.PayloadType_DECIDER_POLICY:
		return fmt.Sprintf("DeciderPolicy %d", p.DeciderPolicy)
	case pb.PayloadType_VOTER_POLICY:
		return "VoterPolicy override: " + p.VoterPolicyPromptOverride
	case pb.PayloadType_COMMIT:
		return fmt.Sprintf("Commit #%d: %s", p.CommitIntentionId, p.CommitReason)
	case pb.PayloadType_ABORT:
		return fmt.Sprintf("Abort #%d: %s", p.AbortIntentionId, p.AbortReason)
	case pb.PayloadType_CONTROL:
		return fmt.Sprintf("Control(%d) %s", p.ControlKind, p.ControlText)
	default:
		return fmt.Sprintf("Type(%d)", p.Type)
	}
}

// ----------------------------------------------------------------
// repl command
// ----------------------------------------------------------------

func cmdRepl(addr, busID string) {
	replMode = true
	fmt.Printf("agentbus-cli repl, bus %q (type 'help' for commands, 'quit' to exit)\n", busID)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "quit", "exit":
			return
		case "set-id":
			if len(fields) > 1 {
				busID = fields[1]
				fmt.Printf("bus id set to %q\n", busID)
			}
		case "intention":
			runRepl(func() { cmdIntention(addr, busID, fields[1:]) })
		case "decider-policy":
			runRepl(func() { cmdDeciderPolicy(addr, busID, fields[1:]) })
		case "voter-policy":
			runRepl(func() { cmdVoterPolicy(addr, busID, fields[1:]) })
		case "control":
			runRepl(func() { cmdControl(addr, busID, fields[1:]) })
		case "poll":
			runRepl(func() { cmdPoll(addr, busID, fields[1:]) })
		case "tail":
			runRepl(func() { cmdTail(addr, busID, fields[1:]) })
		case "help":
			printUsage()
		default:
			fmt.Printf("unknown command %q, try 'help'\n", fields[0])
		}
	}
}
