package heartbeat

import (
	"regexp"
	"strings"

	"github.com/zulandar/trainorder/internal/prompt"
)

// ReplyKind tags a parsed check-in reply.
type ReplyKind int

const (
	// ReplyText is a substantive reply to post to a task thread.
	ReplyText ReplyKind = iota
	// ReplyNoOp is the strict no-action sentinel (or an empty reply).
	ReplyNoOp
	// ReplyAmbiguous mixes narrative with the sentinel; treated as a no-op
	// so the agent's intended no-op never posts noise.
	ReplyAmbiguous
)

// Reply is a check-in reply parsed at the gateway boundary, so the scheduler
// never compares against string literals.
type Reply struct {
	Kind ReplyKind
	Text string
}

// NoAction reports whether the reply should produce no thread write.
func (r Reply) NoAction() bool { return r.Kind != ReplyText }

// taskRefPattern matches an explicit task id token in reply text.
var taskRefPattern = regexp.MustCompile(`\btsk-[0-9a-f]{8}\b`)

// ParseReply classifies a raw check-in reply.
func ParseReply(raw string) Reply {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == prompt.NoActionSentinel {
		return Reply{Kind: ReplyNoOp}
	}
	if strings.Contains(trimmed, prompt.NoActionSentinel) {
		return Reply{Kind: ReplyAmbiguous, Text: trimmed}
	}
	return Reply{Kind: ReplyText, Text: trimmed}
}

// TaskRef extracts an explicit task reference from reply text, if any.
func TaskRef(text string) (string, bool) {
	ref := taskRefPattern.FindString(text)
	return ref, ref != ""
}
