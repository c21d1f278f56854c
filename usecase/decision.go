package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"negotiation-backend/model"
)

// FinalPayload is the structured side channel an oracle sends after its
// narrative. Both fields are untrusted raw JSON.
type FinalPayload struct {
	Decision        json.RawMessage
	DeclaredAmounts json.RawMessage
}

var (
	decisionMarker = regexp.MustCompile(`(?i)DECISION:\s*\**\s*(ACCEPT|REJECT|CONTINUE)\b`)
	priceMarker    = regexp.MustCompile(`(?i)PRICE:\s*\**\s*\$?\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)
)

// priceKeys are the declared_amounts keys read as the proposed price, in order.
var priceKeys = []string{"price", "agreed_price", "amount", "offer"}

// ParseTurn turns one oracle turn into a Turn. It never fails: an
// unrecognised decision becomes continue and is reported through the returned
// error, which wraps ErrMalformedDecision and is meant for logging only.
//
// Precedence: the final payload's decision tag, then a "DECISION: X" marker
// in the narrative, then continue. Amounts come from the payload, falling back
// to a "PRICE: X" marker.
func ParseTurn(role model.Role, round int, narrative string, final *FinalPayload) (model.Turn, error) {
	turn := model.Turn{
		Role:      role,
		Round:     round,
		Narrative: narrative,
		Decision:  model.DecisionContinue,
	}

	var anomalies []error
	var rawDecision, rawAmounts json.RawMessage
	if final != nil {
		rawDecision, rawAmounts = final.Decision, final.DeclaredAmounts
	}

	decision, explicit, err := decodeDecision(rawDecision)
	if err != nil {
		anomalies = append(anomalies, err)
	}
	switch {
	case explicit:
		turn.Decision = decision
	case err == nil:
		if d, ok := markerDecision(narrative); ok {
			turn.Decision = d
		}
	}

	amounts, err := decodeAmounts(rawAmounts)
	if err != nil {
		anomalies = append(anomalies, err)
	}
	if amounts == nil {
		amounts = markerAmounts(narrative)
	}
	turn.Amounts = amounts

	if len(anomalies) > 0 {
		return turn, fmt.Errorf("%w: %w", ErrMalformedDecision, errors.Join(anomalies...))
	}
	return turn, nil
}

// decodeDecision reports explicit=false when no tag was sent.
func decodeDecision(raw json.RawMessage) (d model.Decision, explicit bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return model.DecisionContinue, false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return model.DecisionContinue, false, fmt.Errorf("decision %s is not a string", raw)
	}
	switch model.Decision(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return model.DecisionContinue, false, nil
	case model.DecisionAccept:
		return model.DecisionAccept, true, nil
	case model.DecisionReject:
		return model.DecisionReject, true, nil
	case model.DecisionContinue:
		return model.DecisionContinue, true, nil
	default:
		return model.DecisionContinue, false, fmt.Errorf("unknown decision %q", s)
	}
}

// markerDecision returns the last DECISION marker in the narrative.
func markerDecision(narrative string) (model.Decision, bool) {
	m := decisionMarker.FindAllStringSubmatch(narrative, -1)
	if len(m) == 0 {
		return "", false
	}
	return model.Decision(strings.ToLower(m[len(m)-1][1])), true
}

func decodeAmounts(raw json.RawMessage) (*model.DeclaredAmounts, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("declared_amounts %s is not an object", raw)
	}
	for _, key := range priceKeys {
		v, ok := fields[key]
		if !ok {
			continue
		}
		price, err := decodeAmount(v)
		if err != nil {
			return nil, fmt.Errorf("declared_amounts.%s: %w", key, err)
		}
		if price == nil {
			continue
		}
		return &model.DeclaredAmounts{Price: price}, nil
	}
	return nil, nil
}

func decodeAmount(raw json.RawMessage) (*decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, err
		}
	}
	d, err := parseMoney(text)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func markerAmounts(narrative string) *model.DeclaredAmounts {
	m := priceMarker.FindAllStringSubmatch(narrative, -1)
	if len(m) == 0 {
		return nil
	}
	d, err := parseMoney(m[len(m)-1][1])
	if err != nil {
		return nil
	}
	return &model.DeclaredAmounts{Price: &d}
}

// parseMoney accepts "14200", "$14,200.00" and similar.
func parseMoney(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	return decimal.NewFromString(strings.TrimSpace(s))
}
