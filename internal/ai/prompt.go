package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// BuildPrompt renders the optimization request as an instruction for an LLM
// backend. Both HTTP providers use the same prompt and the same strict JSON
// response contract, so they can be swapped without retraining anything.
func BuildPrompt(req OptimizeRequest) string {
	var b strings.Builder

	b.WriteString("You are a demand-forecasting expert tuning the parameters of a forecast model.\n\n")
	fmt.Fprintf(&b, "Model: %s\nSKU: %s\n", req.ModelID, req.SKU)

	if len(req.Ranges) > 0 {
		ranges, _ := json.Marshal(req.Ranges)
		fmt.Fprintf(&b, "Allowed parameter values: %s\n", ranges)
	}
	if len(req.Defaults) > 0 {
		defaults, _ := json.Marshal(req.Defaults)
		fmt.Fprintf(&b, "Default parameters: %s\n", defaults)
	}

	series, _ := json.Marshal(req.Series)
	fmt.Fprintf(&b, "Historical demand (oldest first): %s\n", series)

	if req.BusinessContext != "" {
		fmt.Fprintf(&b, "Business context: %s\n", req.BusinessContext)
	}

	b.WriteString("\nRecommend the parameter set that minimizes forecast error for this series. ")
	b.WriteString("Respond with a single JSON object and nothing else, in this exact shape:\n")
	b.WriteString(`{"parameters": {"<name>": <value>}, "mape": <number>, "rmse": <number>, "mae": <number>, "accuracy": <number>, "reasoning": "<one paragraph>"}`)
	b.WriteString("\n")

	return b.String()
}

// ParseCompletion decodes the LLM's JSON answer into an OptimizeResponse,
// enforcing the response contract. Anything the decoder cannot account for is
// ErrInvalidResponse — the runner turns that into a failed job, never a panic.
func ParseCompletion(raw string) (OptimizeResponse, error) {
	raw = strings.TrimSpace(raw)

	// Some backends wrap the JSON in markdown fences despite instructions.
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var resp OptimizeResponse
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&resp); err != nil {
		return OptimizeResponse{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if resp.Parameters == nil {
		return OptimizeResponse{}, fmt.Errorf("%w: missing parameters object", ErrInvalidResponse)
	}
	for name, v := range resp.Parameters {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return OptimizeResponse{}, fmt.Errorf("%w: parameter %q is not finite", ErrInvalidResponse, name)
		}
	}
	for name, v := range map[string]float64{
		"mape": resp.MAPE, "rmse": resp.RMSE, "mae": resp.MAE, "accuracy": resp.Accuracy,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return OptimizeResponse{}, fmt.Errorf("%w: metric %q out of range", ErrInvalidResponse, name)
		}
	}
	if resp.Accuracy > 100 {
		resp.Accuracy = 100
	}

	return resp, nil
}
