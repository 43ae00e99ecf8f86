// Command hayride is the default embedder. It reads an engine configuration
// from the environment and resolves one morph identifier to bytes, then
// runs it, passing the remaining command-line arguments straight through
// as a flat argument list rather than a subcommand tree.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/hayride-dev/hayride/ai/backend"
	"github.com/hayride-dev/hayride/ai/providers"
	"github.com/hayride-dev/hayride/capability"
	"github.com/hayride-dev/hayride/engine"
	"github.com/hayride-dev/hayride/hoststore"
	"github.com/hayride-dev/hayride/registry"
	"github.com/hayride-dev/hayride/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "hayride:", err)
		os.Exit(1)
	}
}

func run() error {
	v := viper.New()
	v.SetEnvPrefix("hayride")
	v.AutomaticEnv()
	v.SetDefault("bin", "")
	v.SetDefault("entrypoint", "")
	v.SetDefault("log_level", "info")

	entrypoint := v.GetString("entrypoint")
	if entrypoint == "" {
		return fmt.Errorf("HAYRIDE_ENTRYPOINT is required (a morph identifier or a path to a .wasm file)")
	}

	ctx := telemetry.NewContext(context.Background(), v.GetString("log_level") == "debug", telemetry.RotatingLogPath{
		Path: v.GetString("log"),
	})

	cfg := engine.Config{
		EngineConfig: hoststore.EngineConfig{
			RegistryRoot: v.GetString("registry_root"),
			ModelRoot:    v.GetString("model_root"),
			OutDir:       v.GetString("out_dir"),
			LogLevel:     v.GetString("log_level"),
			InheritStdio: true,
			Enabled: capability.Enabled{
				WASI: true,
				Core: true,
				AI:   v.GetString("anthropic_api_key") != "" || v.GetString("openai_api_key") != "",
				DB:   true,
				Silo: true,
				WAC:  true,
				MCP:  v.GetBool("mcp_enabled"),
			},
		},
		Address: v.GetString("address"),
	}

	e, err := engine.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.Close(ctx)

	if provider, err := defaultAIProvider(v); err != nil {
		return err
	} else if provider != nil {
		e.WithAIProvider(provider)
	}

	wasmBytes, err := loadMorph(e, entrypoint)
	if err != nil {
		return err
	}

	functionName := v.GetString("function")
	if functionName == "" {
		functionName = "run"
	}

	out, err := e.Run(ctx, wasmBytes, functionName, os.Args[1:])
	if err != nil {
		return err
	}
	if out != nil {
		os.Stdout.Write(out)
	}
	return nil
}

// loadMorph reads wasm bytes either from a filesystem path (entrypoint
// contains a path separator or ends in .wasm) or by resolving a morph
// identifier against the engine's registry.
func loadMorph(e *engine.Engine, entrypoint string) ([]byte, error) {
	if looksLikePath(entrypoint) {
		return os.ReadFile(entrypoint)
	}

	id, err := parseAndResolve(e, entrypoint)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(id)
}

func parseAndResolve(e *engine.Engine, entrypoint string) (string, error) {
	ident, err := registry.ParseIdentifier(entrypoint)
	if err != nil {
		return "", err
	}
	return e.Registry().Resolve(ident)
}

func looksLikePath(s string) bool {
	for _, r := range s {
		if r == '/' || r == '\\' {
			return true
		}
	}
	return len(s) > len(".wasm") && s[len(s)-len(".wasm"):] == ".wasm"
}

// defaultAIProvider wires one AI backend from whichever API key is present
// in the environment, preferring Anthropic, then OpenAI. Bedrock requires a
// full AWS config and is left to embedders that need it, not this default.
func defaultAIProvider(v *viper.Viper) (backend.Provider, error) {
	model := v.GetString("model")
	if key := v.GetString("anthropic_api_key"); key != "" {
		if model == "" {
			model = "claude-3-5-sonnet-latest"
		}
		return providers.NewAnthropicFromAPIKey(key, model)
	}
	if key := v.GetString("openai_api_key"); key != "" {
		if model == "" {
			model = "gpt-4o"
		}
		return providers.NewOpenAIFromAPIKey(key, model)
	}
	return nil, nil
}
