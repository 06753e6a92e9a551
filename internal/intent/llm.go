package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"medassist/internal/llm"
	"medassist/pkg"
)

// ErrUnparseable is returned when the model's answer is not a classification.
var ErrUnparseable = errors.New("unparseable classification")

const classifierPrompt = `You are a fast intent classifier for a medical appointment assistant.
Classify the user's message using the conversation context.

CONTEXT: %s
LAST ASSISTANT MESSAGE: %q

INTENTS: greeting, identify, book_appointment, cancel_appointment, check_appointment, symptoms, general_conversation

RULES:
- "yes", "sure" or "please" right after a booking offer is book_appointment
- a name or id given after the assistant asked for one is identify
- symptoms or feeling unwell is symptoms
- book or schedule is book_appointment
- cancel is cancel_appointment
- asking about the next appointment is check_appointment
- confused replies ("what?", "huh?", "???"), single letters or unclear text are general_conversation, never booking

EXTRACT when present: patient_name, patient_id, time_preference, doctor_preference, symptoms_described

Answer with JSON only: {"intent":"...","confidence":0.0-1.0,"extracted_info":{...}}`

// LLMClassifier asks a chat model to classify each utterance.
type LLMClassifier struct {
	client  llm.Client
	timeout time.Duration
	log     zerolog.Logger
}

// NewLLMClassifier wraps client.  Each call is bounded by timeout.
func NewLLMClassifier(client llm.Client, timeout time.Duration, logger zerolog.Logger) *LLMClassifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LLMClassifier{
		client:  client,
		timeout: timeout,
		log:     logger.With().Str("component", "llm_classifier").Logger(),
	}
}

func (c *LLMClassifier) Name() string { return "llm" }

// Classify never blocks longer than the configured timeout.  On any failure
// it returns pkg.Unclassified() together with the cause.
func (c *LLMClassifier) Classify(ctx context.Context, text string, s pkg.SessionSummary) (pkg.Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := []llm.Message{
		{Role: "system", Content: fmt.Sprintf(classifierPrompt, contextLine(s), s.LastAssistant)},
		{Role: "user", Content: text},
	}
	raw, err := c.client.Chat(ctx, messages)
	if err != nil {
		return pkg.Unclassified(), fmt.Errorf("classify: %w", err)
	}
	cl, err := Parse(raw)
	if err != nil {
		c.log.Debug().Str("raw", raw).Msg("model answer was not a classification")
		return pkg.Unclassified(), err
	}
	return cl, nil
}

func contextLine(s pkg.SessionSummary) string {
	var parts []string
	if s.BookingMode {
		parts = append(parts, "CURRENT_STATE: booking mode.")
	}
	if s.PatientName != "" {
		parts = append(parts, "KNOWN_PATIENT: "+s.PatientName+".")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}

type rawClassification struct {
	Intent         string         `json:"intent"`
	Confidence     *float64       `json:"confidence"`
	ExtractedInfo  map[string]any `json:"extracted_info"`
	ExtractedSlots map[string]any `json:"extractedSlots"`
}

// Parse decodes a model answer.  Markdown code fences and prose around the
// JSON object are tolerated.  A missing intent is general conversation and a
// missing confidence is 0.5.
func Parse(raw string) (pkg.Classification, error) {
	body := stripFences(raw)
	start, end := strings.Index(body, "{"), strings.LastIndex(body, "}")
	if start < 0 || end < start {
		return pkg.Unclassified(), ErrUnparseable
	}
	var rc rawClassification
	if err := json.Unmarshal([]byte(body[start:end+1]), &rc); err != nil {
		return pkg.Unclassified(), fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	cl := pkg.Classification{Intent: pkg.ParseIntent(rc.Intent), Confidence: 0.5}
	if rc.Confidence != nil {
		cl.Confidence = min(max(*rc.Confidence, 0), 1)
	}
	slots := rc.ExtractedInfo
	if slots == nil {
		slots = rc.ExtractedSlots
	}
	cl.Slots = pkg.Slots{
		PatientName:       slotString(slots["patient_name"]),
		PatientID:         slotString(slots["patient_id"]),
		TimePreference:    slotString(slots["time_preference"]),
		DoctorPreference:  slotString(slots["doctor_preference"]),
		SymptomsDescribed: slotString(slots["symptoms_described"]),
	}
	return cl, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func slotString(v any) string {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
			return ""
		}
		return s
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
