package localmodel

import (
	"regexp"
	"strings"
)

// literalArtifacts are chat-template control tokens stripped verbatim from
// raw local-model output.
var literalArtifacts = []string{
	"<end_of_turn>", "<start_of_turn>",
	"<|im_end|>", "<|im_start|>", "<|end|>",
	"<|assistant|>", "<|user|>", "<|system|>",
	"</s>", "<s>",
	"[INST]", "[/INST]", "<<SYS>>", "<</SYS>>",
	"<|endoftext|>", "<|pad|>",
}

var (
	thinkBlockRe        = regexp.MustCompile(`(?s)<think>.*?</think>`)
	hallucinatedTailRe  = regexp.MustCompile(`(?s)<start_of_turn>user.*$`)
	triplePlusNewlineRe = regexp.MustCompile(`\n{3,}`)
	doublePlusSpaceRe   = regexp.MustCompile(` {2,}`)
)

// StripArtifacts removes chat-template control tokens, truncates
// hallucinated continuations at the first "<start_of_turn>user", and
// collapses excess whitespace.
func StripArtifacts(content string) string {
	content = thinkBlockRe.ReplaceAllString(content, "")
	content = hallucinatedTailRe.ReplaceAllString(content, "")

	for _, artifact := range literalArtifacts {
		content = strings.ReplaceAll(content, artifact, "")
	}

	content = triplePlusNewlineRe.ReplaceAllString(content, "\n\n")
	content = doublePlusSpaceRe.ReplaceAllString(content, " ")
	return strings.TrimSpace(content)
}
