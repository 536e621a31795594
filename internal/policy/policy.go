// Package policy maps a match confidence to one of four response tiers and
// decides what the assistant does and says. High confidence executes
// silently; the lower the confidence, the more the user is involved.
//
// The four tiers partition [0, 1] completely: every confidence value lands
// in exactly one tier.
package policy

import (
	"errors"
	"fmt"
	"strings"
)

// Tier is the response behavior class for a confidence value.
type Tier string

const (
	// TierImmediate executes without speaking.
	TierImmediate Tier = "immediate"
	// TierConfirmed executes with a short spoken confirmation.
	TierConfirmed Tier = "confirmed"
	// TierAsk requires explicit user confirmation before executing.
	TierAsk Tier = "ask"
	// TierSuggest never executes; it presents alternatives.
	TierSuggest Tier = "suggest"
)

// Default tier boundaries.
const (
	DefaultImmediate = 0.90
	DefaultConfirmed = 0.70
	DefaultAsk       = 0.50
)

// Boundary clamp ranges. Adjustment outside these is refused: an immediate
// threshold under 0.5 would auto-execute coin-flip matches.
const (
	minImmediate, maxImmediate = 0.5, 1.0
	minConfirmed, maxConfirmed = 0.3, 0.9
	minAsk, maxAsk             = 0.2, 0.7
)

// Action tells the caller what to do for one resolved match.
type Action struct {
	Tier              Tier
	ShouldExecute     bool
	ShouldSpeak       bool
	Speech            string
	NeedsConfirmation bool
}

// Thresholds are the three tier boundaries. Values at or above Immediate are
// immediate, [Confirmed, Immediate) confirmed, [Ask, Confirmed) ask,
// below Ask suggest.
type Thresholds struct {
	Immediate float64 `yaml:"immediate"`
	Confirmed float64 `yaml:"confirmed"`
	Ask       float64 `yaml:"ask"`
}

// DefaultThresholds returns the standard boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Immediate: DefaultImmediate,
		Confirmed: DefaultConfirmed,
		Ask:       DefaultAsk,
	}
}

// Validate checks each boundary against its clamp range and that the three
// strictly descend, which is what guarantees the tiers partition [0, 1].
func (t Thresholds) Validate() error {
	var errs []error
	if t.Immediate < minImmediate || t.Immediate > maxImmediate {
		errs = append(errs, fmt.Errorf("immediate threshold must be in [%v, %v], got %v", minImmediate, maxImmediate, t.Immediate))
	}
	if t.Confirmed < minConfirmed || t.Confirmed > maxConfirmed {
		errs = append(errs, fmt.Errorf("confirmed threshold must be in [%v, %v], got %v", minConfirmed, maxConfirmed, t.Confirmed))
	}
	if t.Ask < minAsk || t.Ask > maxAsk {
		errs = append(errs, fmt.Errorf("ask threshold must be in [%v, %v], got %v", minAsk, maxAsk, t.Ask))
	}
	if !(t.Immediate > t.Confirmed && t.Confirmed > t.Ask) {
		errs = append(errs, errors.New("thresholds must strictly descend: immediate > confirmed > ask"))
	}
	return errors.Join(errs...)
}

// Policy resolves confidences to actions. Immutable after construction.
type Policy struct {
	thresholds Thresholds
}

// New creates a Policy with validated thresholds.
func New(t Thresholds) (*Policy, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	return &Policy{thresholds: t}, nil
}

// Thresholds returns the active boundaries.
func (p *Policy) Thresholds() Thresholds {
	return p.thresholds
}

// TierFor maps a confidence to its tier. Inputs outside [0, 1] are clamped
// first.
func (p *Policy) TierFor(confidence float64) Tier {
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	switch {
	case confidence >= p.thresholds.Immediate:
		return TierImmediate
	case confidence >= p.thresholds.Confirmed:
		return TierConfirmed
	case confidence >= p.thresholds.Ask:
		return TierAsk
	default:
		return TierSuggest
	}
}

// ActionFor builds the full response action for a matched command at the
// given confidence.
func (p *Policy) ActionFor(confidence float64, command string) Action {
	switch p.TierFor(confidence) {
	case TierImmediate:
		return Action{
			Tier:          TierImmediate,
			ShouldExecute: true,
		}
	case TierConfirmed:
		return Action{
			Tier:          TierConfirmed,
			ShouldExecute: true,
			ShouldSpeak:   true,
			Speech:        confirmationSpeech(command),
		}
	case TierAsk:
		return Action{
			Tier:              TierAsk,
			ShouldSpeak:       true,
			Speech:            fmt.Sprintf("Did you mean '%s'?", command),
			NeedsConfirmation: true,
		}
	default:
		return Action{
			Tier:              TierSuggest,
			ShouldSpeak:       true,
			Speech:            fmt.Sprintf("I'm not sure what you meant. Did you say '%s'?", command),
			NeedsConfirmation: true,
		}
	}
}

// SuggestSpeech phrases a suggestion list for the suggest tier. With no
// alternatives it falls back to the generic suggest phrasing for command.
func (p *Policy) SuggestSpeech(command string, alternatives []string) string {
	if len(alternatives) == 0 {
		return fmt.Sprintf("I'm not sure what you meant. Did you say '%s'?", command)
	}
	if len(alternatives) > 3 {
		alternatives = alternatives[:3]
	}
	return fmt.Sprintf("I couldn't understand. Did you mean: %s?", strings.Join(alternatives, ", "))
}

// confirmationSpeech builds the short spoken line for the confirmed tier.
func confirmationSpeech(command string) string {
	words := strings.Fields(strings.ToLower(command))
	if len(words) == 0 {
		return "Executing."
	}
	rest := strings.Join(words[1:], " ")
	switch words[0] {
	case "open", "launch", "start":
		return fmt.Sprintf("Opening %s.", rest)
	case "close", "exit", "quit":
		return fmt.Sprintf("Closing %s.", rest)
	case "search":
		return fmt.Sprintf("Searching for %s.", rest)
	case "type":
		return "Typing."
	case "switch", "go":
		return "Switching."
	case "minimize", "maximize", "restore":
		// "minimize" gerunds as "minimizing", not "minimizeing".
		verb := strings.TrimSuffix(words[0], "e")
		return strings.ToUpper(verb[:1]) + verb[1:] + "ing."
	default:
		return fmt.Sprintf("Executing %s.", command)
	}
}
