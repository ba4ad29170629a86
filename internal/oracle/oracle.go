package oracle

import (
	"context"
	encodingjson "encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MaTriXy/stagehand/api/schemas"
	"github.com/MaTriXy/stagehand/internal/config"
)

// Oracle implements schemas.ReasoningOracle over an LLM client: one
// generation per resolution, strict parsing, no retries and no re-ranking.
type Oracle struct {
	client schemas.LLMClient
	cfg    config.OracleConfig
	logger *zap.Logger
}

var _ schemas.ReasoningOracle = (*Oracle)(nil)

// New wraps an LLM client as a reasoning oracle.
func New(client schemas.LLMClient, cfg config.OracleConfig, logger *zap.Logger) *Oracle {
	return &Oracle{
		client: client,
		cfg:    cfg,
		logger: logger.Named("oracle"),
	}
}

// Open builds the provider client and wraps it in one call.
func Open(ctx context.Context, cfg config.OracleConfig, logger *zap.Logger) (*Oracle, error) {
	client, err := NewClient(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create oracle client: %w", err)
	}
	return New(client, cfg, logger), nil
}

// ResolveLocator names the single element the instruction refers to. A
// no-match answer is a normal outcome, reported through the bool.
func (o *Oracle) ResolveLocator(ctx context.Context, instruction, domText string) (int, bool, error) {
	response, err := o.generate(ctx, "observe", observationSystemPrompt, instruction, domText)
	if err != nil {
		return 0, false, err
	}
	return ParseObservation(response)
}

// ResolveActions plans the ordered commands that carry out the instruction.
func (o *Oracle) ResolveActions(ctx context.Context, instruction, domText string) ([]schemas.Command, error) {
	response, err := o.generate(ctx, "act", actionsSystemPrompt, instruction, domText)
	if err != nil {
		return nil, err
	}
	return ParseActions(response)
}

// Extract pulls instruction-described data out of the document as raw JSON.
func (o *Oracle) Extract(ctx context.Context, instruction, domText string) (encodingjson.RawMessage, error) {
	response, err := o.generate(ctx, "extract", extractionSystemPrompt, instruction, domText)
	if err != nil {
		return nil, err
	}
	return ParseExtraction(response)
}

func (o *Oracle) generate(ctx context.Context, phase, systemPrompt, instruction, domText string) (string, error) {
	req := schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildUserPrompt(instruction, domText),
		Options: schemas.GenerationOptions{
			Temperature:     o.cfg.Temperature,
			ForceJSONFormat: true,
			MaxTokens:       o.cfg.MaxTokens,
		},
	}

	start := time.Now()
	response, err := o.client.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s resolution failed: %w", phase, err)
	}

	o.logger.Debug("resolution generated",
		zap.String("phase", phase),
		zap.Duration("duration", time.Since(start)),
		zap.Int("response_len", len(response)),
	)
	return response, nil
}

// Close releases the underlying client.
func (o *Oracle) Close() error {
	return o.client.Close()
}
