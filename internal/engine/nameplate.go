package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/masanjalab/doctor-mitambo/internal/common"
	"github.com/masanjalab/doctor-mitambo/internal/model"
	"github.com/masanjalab/doctor-mitambo/internal/provider"
)

const nameplatePrompt = `Read this machine nameplate photo and respond with ONLY a valid JSON object.
Do not include any explanatory text, markdown formatting, or commentary before or after the JSON:
{
  "brand": "manufacturer name",
  "model": "machine model",
  "serial": "serial number"
}
Use "N/A" for any field you cannot read.`

// ExtractNameplate runs a vision completion against a nameplate photo and
// parses the structured result. A provider answer that cannot be parsed is a
// distinct failure from "no provider available": the caller must be able to
// tell "answer unusable" apart from "no answer".
func (e *Engine) ExtractNameplate(ctx context.Context, image []byte) (model.Nameplate, error) {
	if len(image) == 0 {
		return model.Nameplate{}, common.ErrEmptyQuery
	}

	result, err := e.router.Route(ctx, provider.CompletionRequest{
		System:   "You are a heavy machinery identification expert.",
		UserText: nameplatePrompt,
		Image:    image,
	})
	if err != nil {
		return model.Nameplate{}, err
	}

	var plate model.Nameplate
	if err := json.Unmarshal([]byte(result.Text), &plate); err != nil {
		e.logger.Warn("nameplate response was not valid JSON",
			"error", err,
			"response_length", len(result.Text))
		return model.Nameplate{}, fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}

	// Brand, model and serial are always present as strings, never empty.
	if plate.Brand == "" {
		plate.Brand = "N/A"
	}
	if plate.Model == "" {
		plate.Model = "N/A"
	}
	if plate.Serial == "" {
		plate.Serial = "N/A"
	}

	e.logger.Info("nameplate extracted",
		"brand", plate.Brand,
		"model", plate.Model)

	return plate, nil
}

// NameplateCost returns the token cost of a nameplate extraction. Vision
// requests always hit a provider, so the flat AI rate applies.
func (e *Engine) NameplateCost() int64 {
	return e.flatRate
}
