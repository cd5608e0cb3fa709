package agent

import (
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// A regex to robustly extract a JSON object from a markdown code block.
var jsonBlockRegex = regexp.MustCompile(fmt.Sprintf("(?s)%s(?:json)?\\s*(.*?)\\s*%s", "```", "```"))

// parseDecision extracts and decodes the model's JSON decision, handling
// markdown code fences as well as raw JSON surrounded by prose.
func parseDecision(response string) (decision, error) {
	response = strings.TrimSpace(response)
	var d decision
	var jsonStringToParse string

	matches := jsonBlockRegex.FindStringSubmatch(response)
	if len(matches) > 1 {
		jsonStringToParse = strings.TrimSpace(matches[1])
	} else {
		firstBracket := strings.Index(response, "{")
		lastBracket := strings.LastIndex(response, "}")
		if firstBracket != -1 && lastBracket > firstBracket {
			jsonStringToParse = response[firstBracket : lastBracket+1]
		}
	}

	if jsonStringToParse == "" {
		return decision{}, fmt.Errorf("could not find any JSON in the model response")
	}
	if err := json.Unmarshal([]byte(jsonStringToParse), &d); err != nil {
		return decision{}, fmt.Errorf("failed to unmarshal extracted JSON: %w", err)
	}
	if !d.Done && len(d.Actions) == 0 {
		return decision{}, fmt.Errorf("model response contains neither actions nor a done signal")
	}
	return d, nil
}
