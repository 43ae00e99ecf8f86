package backend

import (
	"encoding/json"
	"math/rand"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/hayride-dev/hayride/herr"
)

// maxOptionsBytes bounds the JSON-encoded PromptOptions payload accepted
// from a component; no maximum size is mandated elsewhere, so a
// conservative 1 MiB bound is imposed here.
const maxOptionsBytes = 1 << 20

// optionsSchema constrains the shape of a PromptOptions JSON payload before
// it is unmarshaled, rejecting wrong-typed or unknown fields with a schema
// validation error rather than a generic decode failure.
const optionsSchemaJSON = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"temperature": {"type": "number"},
		"num_context": {"type": "integer"},
		"num_batch":   {"type": "integer"},
		"max_predict": {"type": "integer"},
		"top_k":       {"type": "integer"},
		"top_p":       {"type": "number"},
		"seed":        {"type": "integer", "minimum": 0}
	}
}`

var optionsSchema = compileOptionsSchema()

func compileOptionsSchema() *jsonschema.Schema {
	const url = "hayride://ai/prompt-options.schema.json"

	var schemaDoc any
	if err := json.Unmarshal([]byte(optionsSchemaJSON), &schemaDoc); err != nil {
		panic(err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, schemaDoc); err != nil {
		panic(err)
	}
	schema, err := c.Compile(url)
	if err != nil {
		panic(err)
	}
	return schema
}

// Defaults for compute/compute_stream sampling parameters.
const (
	defaultNumContext = 40960
	maxNumContext     = 128000
	defaultNumBatch   = 2048
	defaultMaxPredict = 5000
	defaultTopK       = 20
	defaultTopP       = 0.95
	defaultTemp       = 0.8
)

// PromptOptions configures one compute/compute_stream call. A zero value
// in any int/uint field means "keep default".
type PromptOptions struct {
	Temperature float32 `json:"temperature"`
	NumContext  int32   `json:"num_context"`
	NumBatch    int32   `json:"num_batch"`
	MaxPredict  int32   `json:"max_predict"`
	TopK        int32   `json:"top_k"`
	TopP        float32 `json:"top_p"`
	Seed        uint32  `json:"seed"`
}

// ParsePromptOptions decodes and validates a JSON-encoded options tensor,
// applying the documented defaults for every zero field.
func ParsePromptOptions(raw []byte) (PromptOptions, error) {
	if len(raw) > maxOptionsBytes {
		return PromptOptions{}, herr.AI(herr.KindInvalidEncoding, "", "PromptOptions exceeds maximum size")
	}

	var opts PromptOptions
	temperatureSet := false
	if len(raw) > 0 {
		var instance any
		if err := json.Unmarshal(raw, &instance); err != nil {
			return PromptOptions{}, herr.NewWithCause(herr.CapAI, herr.KindInvalidEncoding, "", "malformed PromptOptions JSON", err)
		}
		if err := optionsSchema.Validate(instance); err != nil {
			return PromptOptions{}, herr.NewWithCause(herr.CapAI, herr.KindInvalidEncoding, "", "PromptOptions failed schema validation", err)
		}
		if err := json.Unmarshal(raw, &opts); err != nil {
			return PromptOptions{}, herr.NewWithCause(herr.CapAI, herr.KindInvalidEncoding, "", "malformed PromptOptions JSON", err)
		}
		if fields, ok := instance.(map[string]any); ok {
			_, temperatureSet = fields["temperature"]
		}
	}
	if !temperatureSet {
		opts.Temperature = defaultTemp
	}

	return withDefaults(opts), nil
}

// withDefaults fills every zero-valued field except Temperature with its
// documented default, applying the num_context cap.
func withDefaults(opts PromptOptions) PromptOptions {
	if opts.NumContext == 0 {
		opts.NumContext = defaultNumContext
	}
	if opts.NumContext > maxNumContext {
		opts.NumContext = maxNumContext
	}
	if opts.NumBatch == 0 {
		opts.NumBatch = defaultNumBatch
	}
	if opts.MaxPredict == 0 {
		opts.MaxPredict = defaultMaxPredict
	}
	if opts.TopK == 0 {
		opts.TopK = defaultTopK
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}
	if opts.Temperature == 0 {
		// Temperature == 0 is meaningful (forces greedy sampling) and is
		// therefore NOT treated as "keep default" the way the other
		// numeric fields are. The default temperature is applied by
		// ParsePromptOptions only when the field is absent from the
		// payload; an explicit 0.0 is kept and selects greedy sampling.
	}
	if opts.Seed == 0 {
		// A zero seed means "keep default", and the default is random.
		opts.Seed = rand.Uint32()
	}
	return opts
}

// Greedy reports whether this option set selects greedy (seed-independent)
// sampling, replacing the entire sampler chain.
func (o PromptOptions) Greedy() bool { return o.Temperature == 0 }
