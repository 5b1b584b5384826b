// Package validate turns untrusted generated text into typed candidates. A
// candidate only exists once every gate has passed.
package validate

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)(```|$)")

// extractPayload strips code fencing and narrows text to the structured
// payload: a {"triggers": [...]} wrapper, a lone object, the span from the
// first array of objects to the last ']', or from that array to the end when
// the closing bracket was cut off. body is the unfenced text from the array
// start onwards, which recovery scans.
func extractPayload(raw string) (payload, body string) {
	text := strings.TrimSpace(raw)

	if m := fencePattern.FindStringSubmatch(text); m != nil && strings.TrimSpace(m[1]) != "" {
		text = strings.TrimSpace(m[1])
	}

	if strings.HasPrefix(text, "{") {
		if hasTriggersKey(text) {
			return text, text
		}
		if json.Valid([]byte(text)) {
			wrapped := "[" + text + "]"
			return wrapped, wrapped
		}
	}

	start := arrayStart(text)
	if start < 0 {
		return text, text
	}
	end := strings.LastIndex(text, "]")
	if end < start {
		return text[start:], text[start:]
	}
	return text[start : end+1], text[start:]
}

// arrayStart returns the index of the first '[' that opens an array of
// objects, so bracketed prose like "samples [1] and [3]" is skipped. It
// falls back to the first '[' at all.
func arrayStart(text string) int {
	for i := 0; i < len(text); i++ {
		if text[i] != '[' {
			continue
		}
		if strings.HasPrefix(strings.TrimLeft(text[i+1:], " \t\r\n"), "{") {
			return i
		}
	}
	return strings.Index(text, "[")
}

func hasTriggersKey(text string) bool {
	head := text
	if len(head) > 64 {
		head = head[:64]
	}
	return strings.Contains(head, `"triggers"`)
}

// decodeObjects parses payload as an array of objects (or a triggers
// wrapper), falling back to recovery over body. recovered reports whether
// truncation recovery produced them.
func decodeObjects(payload, body string) (objects []json.RawMessage, recovered bool, ok bool) {
	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &arr); err == nil {
		return arr, false, true
	}
	// complete array followed by bracketed prose
	if err := json.NewDecoder(strings.NewReader(body)).Decode(&arr); err == nil {
		return arr, false, true
	}

	var wrapper struct {
		Triggers []json.RawMessage `json:"triggers"`
	}
	if err := json.Unmarshal([]byte(payload), &wrapper); err == nil && wrapper.Triggers != nil {
		return wrapper.Triggers, false, true
	}

	objects = recoverObjects(body)
	return objects, true, len(objects) > 0
}

// recoverObjects scans for every syntactically complete object directly
// inside the first array (or at top level when there is no array), tracking
// nesting depth and string/escape state so braces inside strings are ignored.
func recoverObjects(payload string) []json.RawMessage {
	scan := payload
	if strings.HasPrefix(strings.TrimSpace(scan), "{") && hasTriggersKey(scan) {
		if i := strings.Index(scan, "["); i >= 0 {
			scan = scan[i+1:]
		}
	} else if i := arrayStart(scan); i >= 0 {
		scan = scan[i+1:]
	}

	var (
		out      []json.RawMessage
		depth    int
		start    = -1
		inString bool
		escaped  bool
	)

	for i := 0; i < len(scan); i++ {
		c := scan[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			if depth == 0 && c == '{' {
				start = i
			}
			depth++
		case '}', ']':
			if depth == 0 {
				// closing bracket of the enclosing array
				continue
			}
			depth--
			if depth == 0 && c == '}' && start >= 0 {
				candidate := scan[start : i+1]
				if json.Valid([]byte(candidate)) {
					out = append(out, json.RawMessage(candidate))
				}
				start = -1
			}
		}
	}

	return out
}

// flexInts accepts [1, 2], ["1", "2"], "1, 2", ["sample 3"] and a bare number
type flexInts []int

var digitsPattern = regexp.MustCompile(`\d+`)

func (f *flexInts) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out []int
	var collect func(v interface{})
	collect = func(v interface{}) {
		switch t := v.(type) {
		case float64:
			out = append(out, int(t))
		case string:
			for _, d := range digitsPattern.FindAllString(t, -1) {
				if n, err := strconv.Atoi(d); err == nil {
					out = append(out, n)
				}
			}
		case []interface{}:
			for _, item := range t {
				collect(item)
			}
		}
	}
	collect(raw)

	*f = out
	return nil
}

// flexFloat accepts 0.8, "0.8" and "80%"
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case float64:
		*f = flexFloat(t)
	case string:
		s := strings.TrimSpace(t)
		pct := strings.HasSuffix(s, "%")
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			*f = 0
			return nil
		}
		if pct {
			v /= 100
		}
		*f = flexFloat(v)
	}
	return nil
}

// flexBool accepts true, "true", "yes" and 1
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case bool:
		*f = flexBool(t)
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		*f = flexBool(s == "true" || s == "yes" || s == "1")
	case float64:
		*f = flexBool(t != 0)
	}
	return nil
}

// wireCandidate is the loose shape generated output arrives in
type wireCandidate struct {
	Category                 string     `json:"category"`
	Title                    string     `json:"title"`
	Summary                  string     `json:"summary"`
	ExecutiveSummary         string     `json:"executiveSummary"`
	SampleReferences         flexInts   `json:"sampleReferences"`
	SampleReferencesSnake    flexInts   `json:"sample_references"`
	Confidence               *flexFloat `json:"confidence"`
	IsTimeSensitive          flexBool   `json:"isTimeSensitive"`
	BuyerJourneyStage        string     `json:"buyerJourneyStage"`
	BuyerProductFit          flexFloat  `json:"buyerProductFit"`
	BuyerProductFitReasoning string     `json:"buyerProductFitReasoning"`
}

func (w wireCandidate) summary() string {
	if strings.TrimSpace(w.Summary) != "" {
		return w.Summary
	}
	return w.ExecutiveSummary
}

func (w wireCandidate) references() []int {
	refs := append([]int(nil), w.SampleReferences...)
	refs = append(refs, w.SampleReferencesSnake...)

	seen := make(map[int]bool, len(refs))
	out := refs[:0]
	for _, r := range refs {
		if r <= 0 || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
