package llm

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// ErrUnknownModel indicates the model is missing from the model table.
var ErrUnknownModel = errors.New("unknown model")

// DefaultContextWindow is the conservative window assumed for models that
// are not in the table, when the caller chooses to tolerate them.
const DefaultContextWindow = 4096

// ModelInfo holds the context window and per-model pricing in USD per 1M tokens.
type ModelInfo struct {
	Name          string
	ContextWindow int
	// MaxOutputTokens is the most the model generates in one completion.
	MaxOutputTokens  int
	InputPerMillion  float64
	OutputPerMillion float64
}

// modelTable maps model identifiers to their limits and pricing.
var modelTable = map[string]ModelInfo{
	"gpt-3.5-turbo":     {ContextWindow: 16385, MaxOutputTokens: 4096, InputPerMillion: 0.50, OutputPerMillion: 1.50},
	"gpt-3.5-turbo-16k": {ContextWindow: 16385, MaxOutputTokens: 4096, InputPerMillion: 3.00, OutputPerMillion: 4.00},
	"gpt-4":             {ContextWindow: 8192, MaxOutputTokens: 8192, InputPerMillion: 30.00, OutputPerMillion: 60.00},
	"gpt-4-32k":         {ContextWindow: 32768, MaxOutputTokens: 32768, InputPerMillion: 60.00, OutputPerMillion: 120.00},
	"gpt-4-turbo":       {ContextWindow: 128000, MaxOutputTokens: 4096, InputPerMillion: 10.00, OutputPerMillion: 30.00},
	"gpt-4o":            {ContextWindow: 128000, MaxOutputTokens: 16384, InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini":       {ContextWindow: 128000, MaxOutputTokens: 16384, InputPerMillion: 0.15, OutputPerMillion: 0.60},
}

// LookupModel returns the table entry for model.
func LookupModel(model string) (ModelInfo, error) {
	info, ok := modelTable[model]
	if !ok {
		return ModelInfo{}, errors.Wrapf(ErrUnknownModel, "%q", model)
	}
	info.Name = model
	return info, nil
}

// MaxOutputTokens returns the completion cap of model. For unknown models it
// returns DefaultContextWindow together with an error matching ErrUnknownModel.
func MaxOutputTokens(model string) (int, error) {
	info, err := LookupModel(model)
	if err != nil {
		return DefaultContextWindow, err
	}
	return info.MaxOutputTokens, nil
}

// ContextWindow returns the context window of model. For unknown models it
// returns DefaultContextWindow together with an error matching ErrUnknownModel.
func ContextWindow(model string) (int, error) {
	info, err := LookupModel(model)
	if err != nil {
		return DefaultContextWindow, err
	}
	return info.ContextWindow, nil
}

// Models returns every known model ordered from cheapest to most expensive.
func Models() []ModelInfo {
	models := make([]ModelInfo, 0, len(modelTable))
	for name, info := range modelTable {
		info.Name = name
		models = append(models, info)
	}
	sort.Slice(models, func(i, j int) bool {
		pi := models[i].InputPerMillion + models[i].OutputPerMillion
		pj := models[j].InputPerMillion + models[j].OutputPerMillion
		if pi != pj {
			return pi < pj
		}
		return models[i].Name < models[j].Name
	})
	return models
}

// EstimateCost returns the estimated cost in USD for the given model and token counts.
// Returns 0 if the model is not found in the table.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	info, ok := modelTable[model]
	if !ok {
		return 0
	}

	inputCost := float64(inputTokens) / 1_000_000.0 * info.InputPerMillion
	outputCost := float64(outputTokens) / 1_000_000.0 * info.OutputPerMillion
	return inputCost + outputCost
}
