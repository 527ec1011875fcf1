package warp

// Mathematical and engine constants.
const (
	// GELU tanh-approximation constants from Hendrycks & Gimpel.
	// GELU(x) = 0.5 * x * (1 + tanh(√(2/π) * (x + 0.044715 * x³)))
	geluSqrt2OverPi = 0.7978845
	geluCoefficient = 0.044715

	// trilScale is the temperature divisor applied by the fused
	// causal-mask/exponentiate operator: kept entries become exp(x/8).
	trilScale = 8.0

	// DefaultPosStride is the dimension-major stride of the positional
	// embedding table assumed by GPT-2 checkpoints: the table reserves
	// room for this many sequence positions per dimension regardless of
	// the configured context length. EmbeddingGather takes the stride
	// explicitly so other layouts remain expressible.
	DefaultPosStride = 1024

	// OracleTol is the absolute tolerance used when validating kernel
	// output against the CPU reference implementation.
	OracleTol = 1e-2
)
