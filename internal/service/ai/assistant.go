package ai

import (
	"context"
	"fmt"

	"soilchat/internal/soil"

	"go.uber.org/zap"
)

// ParseError reports a model reply that held no usable JSON object.
type ParseError struct {
	Response string
}

func (e *ParseError) Error() string {
	snippet := []rune(e.Response)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return fmt.Sprintf("Could not parse JSON from AI response. AI said: %s... Please ensure the lab report image is clear and contains nutrient values.", string(snippet))
}

// Assistant runs the soil specific prompts against a Gateway.
type Assistant struct {
	gateway Gateway
	rnd     *soil.Random
	logger  *zap.Logger
}

// NewAssistant returns nil when gateway is nil so callers can check
// Available without a separate flag.
func NewAssistant(gateway Gateway, rnd *soil.Random, logger *zap.Logger) *Assistant {
	if gateway == nil {
		return nil
	}
	if rnd == nil {
		rnd = soil.NewRandom(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assistant{gateway: gateway, rnd: rnd, logger: logger}
}

func (a *Assistant) Available() bool {
	return a != nil && a.gateway != nil
}

// VerifyFertility asks the model for a second opinion. Failures are folded
// into the returned object and never surface as errors.
func (a *Assistant) VerifyFertility(ctx context.Context, r soil.Record, mlPrediction string) map[string]any {
	if !a.Available() {
		return nil
	}
	text, err := a.gateway.Generate(ctx, VerificationPrompt(r, mlPrediction), nil)
	if err != nil {
		a.logger.Warn("fertility verification failed", zap.Error(err))
		return map[string]any{
			"error":             "AI verification failed: " + err.Error(),
			"ai_prediction":     "Error",
			"confidence":        "Low",
			"agreement_with_ml": "Unknown",
		}
	}
	reply := ParseReply(text)
	if !reply.OK {
		return map[string]any{
			"ai_prediction":     "Unable to parse",
			"confidence":        "Low",
			"agreement_with_ml": "Unknown",
			"raw_response":      text,
			"error":             "Could not parse structured response from AI",
		}
	}
	return reply.Object
}

// ExtractNutrients reads a lab report image into a complete record. Values
// the model could not find are filled from typical agricultural ranges.
func (a *Assistant) ExtractNutrients(ctx context.Context, img *Image, lang Language) (soil.Record, error) {
	if !a.Available() {
		return soil.Record{}, ErrUnavailable
	}
	text, err := a.gateway.Generate(ctx, ExtractionPrompt(lang), img)
	if err != nil {
		return soil.Record{}, fmt.Errorf("extract nutrients: %w", err)
	}
	reply := ParseReply(text)
	if !reply.OK {
		a.logger.Debug("unparsable extraction reply", zap.String("response", text))
		return soil.Record{}, &ParseError{Response: text}
	}
	return soil.FillMissing(soil.Defaulted(reply.Object), a.rnd), nil
}

// DescribeImage returns every piece of text the model can read in img.
func (a *Assistant) DescribeImage(ctx context.Context, img *Image) (string, error) {
	if !a.Available() {
		return "", ErrUnavailable
	}
	text, err := a.gateway.Generate(ctx, describeImagePrompt, img)
	if err != nil {
		return "", fmt.Errorf("describe image: %w", err)
	}
	return text, nil
}

// Chat renders p, sends it with the optional image and parses the reply.
func (a *Assistant) Chat(ctx context.Context, p ChatPrompt, img *Image) (Reply, error) {
	if !a.Available() {
		return Reply{}, ErrUnavailable
	}
	p.HasImage = img != nil
	text, err := a.gateway.Generate(ctx, p.Render(), img)
	if err != nil {
		return Reply{}, fmt.Errorf("chat completion: %w", err)
	}
	return ParseReply(text), nil
}
