// Package localmodel implements the local-model response normalizer (C6):
// detecting whether a provider belongs to the "local" family, stripping
// chat-template artifacts, recovering embedded JSON tool calls, remapping
// tool names and arguments, and recovering raw search output. It is
// grounded directly on the original Python source's local_model_cleaner
// module; the tables below (artifacts, tool-name aliases, raw-output
// patterns, local host/port heuristics) are carried over verbatim.
package localmodel

import (
	"strconv"
	"strings"
)

// localModelPorts are the ports local model servers commonly bind to
// (LM Studio, Ollama).
var localModelPorts = []string{":1234", ":11434"}

// localIPPrefixes mark endpoints that are private/loopback addresses.
var localIPPrefixes = []string{"localhost", "127.0.0.1", "192.168."}

// localModelNameHints are substrings in a model name that mark it as local.
var localModelNameHints = []string{"local", "lm-studio", "lmstudio", "ollama", "gguf", "ggml"}

func hasPrivateCIDRPrefix(endpoint string) bool {
	if strings.Contains(endpoint, "10.") {
		return true
	}
	for n := 16; n <= 31; n++ {
		if strings.Contains(endpoint, "172."+strconv.Itoa(n)+".") {
			return true
		}
	}
	return false
}

// IsLocalFamily reports whether a provider should be treated as local,
// checked by endpoint pattern first, then by model name.
func IsLocalFamily(modelName, endpoint string) bool {
	lowerEndpoint := strings.ToLower(endpoint)
	for _, port := range localModelPorts {
		if strings.Contains(lowerEndpoint, port) {
			return true
		}
	}
	for _, prefix := range localIPPrefixes {
		if strings.Contains(lowerEndpoint, prefix) {
			return true
		}
	}
	if hasPrivateCIDRPrefix(lowerEndpoint) {
		return true
	}

	lowerModel := strings.ToLower(modelName)
	for _, hint := range localModelNameHints {
		if strings.Contains(lowerModel, hint) {
			return true
		}
	}
	return false
}
