// Package oracle turns free-text instructions plus a document enumeration
// into resolutions: a single element id, an ordered command list, or
// extracted data. The model behind it is a black box reached through
// schemas.LLMClient; this package owns the prompts and the strict parsing of
// what comes back.
package oracle

import (
	"bytes"
	encodingjson "encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/MaTriXy/stagehand/api/schemas"
)

// jsonBlockRegex extracts a JSON payload from a markdown code block.
var jsonBlockRegex = regexp.MustCompile(fmt.Sprintf("(?s)%s(?:json)?\\s*(.*?)\\s*%s", "```", "```"))

// extractJSON pulls the JSON payload out of a model response, handling
// fenced code blocks and surrounding prose. Models wrap JSON in markdown no
// matter how firmly the prompt forbids it.
func extractJSON(response string) (string, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return "", errors.New("empty response")
	}

	if matches := jsonBlockRegex.FindStringSubmatch(response); len(matches) > 1 {
		if block := strings.TrimSpace(matches[1]); block != "" {
			return block, nil
		}
	}

	objStart := strings.Index(response, "{")
	arrStart := strings.Index(response, "[")

	start, closer := objStart, "}"
	if objStart == -1 || (arrStart != -1 && arrStart < objStart) {
		start, closer = arrStart, "]"
	}
	if start == -1 {
		return "", errors.New("no JSON object or array in response")
	}

	end := strings.LastIndex(response, closer)
	if end <= start {
		return "", errors.New("unbalanced JSON in response")
	}
	return response[start : end+1], nil
}

// ParseObservation decodes an element-resolution response. The contract is
// {"element_id": N} with -1, "NOT_FOUND", or null meaning no element matches;
// that outcome is reported through the bool, not an error. Anything outside
// the contract is an ErrOracleContract violation.
func ParseObservation(response string) (int, bool, error) {
	payload, err := extractJSON(response)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", schemas.ErrOracleContract, err)
	}

	var wire struct {
		ElementID encodingjson.RawMessage `json:"element_id"`
	}
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return 0, false, fmt.Errorf("%w: decode observation response: %v", schemas.ErrOracleContract, err)
	}

	raw := bytes.TrimSpace(wire.ElementID)
	switch {
	case len(raw) == 0:
		return 0, false, fmt.Errorf("%w: observation response missing element_id", schemas.ErrOracleContract)
	case string(raw) == "null":
		return 0, false, nil
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false, fmt.Errorf("%w: decode element_id: %v", schemas.ErrOracleContract, err)
		}
		s = strings.TrimSpace(s)
		if strings.EqualFold(s, "NOT_FOUND") {
			return 0, false, nil
		}
		id, err := strconv.Atoi(s)
		if err != nil {
			return 0, false, fmt.Errorf("%w: element_id %q is neither a number nor NOT_FOUND", schemas.ErrOracleContract, s)
		}
		return checkElementID(id)
	default:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return 0, false, fmt.Errorf("%w: decode element_id: %v", schemas.ErrOracleContract, err)
		}
		id := int(n)
		if float64(id) != n {
			return 0, false, fmt.Errorf("%w: element_id %v is not an integer", schemas.ErrOracleContract, n)
		}
		return checkElementID(id)
	}
}

func checkElementID(id int) (int, bool, error) {
	switch {
	case id == -1:
		return 0, false, nil
	case id >= 1:
		return id, true, nil
	}
	return 0, false, fmt.Errorf("%w: element_id %d out of range", schemas.ErrOracleContract, id)
}

// ParseActions decodes an action-planning response into a validated command
// list. The accepted payload shapes are those of schemas.ParseCommandList; a
// response that survives extraction but fails command validation is a
// contract violation all the same.
func ParseActions(response string) ([]schemas.Command, error) {
	payload, err := extractJSON(response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schemas.ErrOracleContract, err)
	}
	cmds, err := schemas.ParseCommandList([]byte(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schemas.ErrOracleContract, err)
	}
	return cmds, nil
}

// ParseExtraction decodes a data-extraction response into raw JSON. The
// shape is the model's choice; only well-formedness is enforced.
func ParseExtraction(response string) (encodingjson.RawMessage, error) {
	payload, err := extractJSON(response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schemas.ErrOracleContract, err)
	}
	if !encodingjson.Valid([]byte(payload)) {
		return nil, fmt.Errorf("%w: extraction response is not valid JSON", schemas.ErrOracleContract)
	}
	return encodingjson.RawMessage(payload), nil
}
