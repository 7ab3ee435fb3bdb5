package main

import (
	"context"

	"pokedex-pipeline/cmd/pokedex-cli/commands"
	"pokedex-pipeline/lib/osutil"
	"pokedex-pipeline/lib/telemetry"
)

func main() {
	telemetry.InitSlog(true)

	ctx := osutil.SignalContext()
	tel, err := telemetry.SetupFromEnv(ctx, "pokedex-cli")
	if err == nil {
		defer tel.Shutdown(context.Background())
		telemetry.InstrumentPerfStats(ctx)
	}

	commands.ExecuteContext(ctx)
}
