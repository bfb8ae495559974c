// Package llm provides options pattern for LLM generation parameters.
//
// This package implements functional options for runtime parameter overrides
// on top of the defaults taken from the model definition in config.yaml.
package llm

// GenerateOptions holds parameters for LLM generation.
// Zero values mean "use the model default from config.yaml".
type GenerateOptions struct {
	// Model overrides the model identifier sent to the API.
	Model string

	// Temperature controls randomness in responses (0.0 = deterministic, 1.0 = random)
	Temperature float64

	// MaxTokens limits the response length
	MaxTokens int
}

// GenerateOption is a functional option for configuring GenerateOptions.
type GenerateOption func(*GenerateOptions)

// WithModel sets the model for generation.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithTemperature sets the temperature for generation.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

// WithMaxTokens sets the maximum tokens for generation.
func WithMaxTokens(tokens int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = tokens
	}
}

// Apply folds opts over base and returns the result.
func Apply(base GenerateOptions, opts ...GenerateOption) GenerateOptions {
	for _, opt := range opts {
		if opt != nil {
			opt(&base)
		}
	}
	return base
}
