package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// =============================================================================
// UNTRUSTED LLM OUTPUT PARSING
// Model responses are treated as untrusted payloads: parsed defensively and
// validated against the Go struct schema before any field is used.
// =============================================================================

// StripCodeFences removes markdown code fences and any conversational text
// around the first JSON value in the response.
func StripCodeFences(raw string) string {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.IndexAny(cleaned, "{[")
	if start < 0 {
		return cleaned
	}
	var end int
	if cleaned[start] == '{' {
		end = strings.LastIndex(cleaned, "}")
	} else {
		end = strings.LastIndex(cleaned, "]")
	}
	if end > start {
		cleaned = cleaned[start : end+1]
	}
	return cleaned
}

// RepairJSON attempts to fix common LLM JSON defects: single quotes, missing
// quotes around keys, trailing commas, unclosed brackets, embedded comments.
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformed)
	if err != nil {
		return "", fmt.Errorf("json repair failed: %v", err)
	}
	return repaired, nil
}

// SmartParse tries progressively more lenient strategies to decode an LLM
// response into schema:
// 1. Standard JSON after fence stripping
// 2. JSON repair
// 3. Hjson (most lenient)
// Returns the JSON string that succeeded.
func SmartParse(input string, schema interface{}) (string, error) {
	cleaned := StripCodeFences(input)

	if err := json.Unmarshal([]byte(cleaned), schema); err == nil {
		return cleaned, nil
	}

	if repaired, err := RepairJSON(cleaned); err == nil {
		if err := json.Unmarshal([]byte(repaired), schema); err == nil {
			return repaired, nil
		}
	}

	var lenient interface{}
	if err := hjson.Unmarshal([]byte(cleaned), &lenient); err == nil {
		if jsonBytes, err := json.Marshal(lenient); err == nil {
			if err := json.Unmarshal(jsonBytes, schema); err == nil {
				return string(jsonBytes), nil
			}
		}
	}

	return "", fmt.Errorf("all parsing strategies failed for model response")
}
