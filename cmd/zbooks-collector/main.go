package main

import (
	"context"
	"os"
	"zbooks-collector/cmd/zbooks-collector/commands"
	"zbooks-collector/lib/serviceutil"
	"zbooks-collector/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()

	err := telemetry.SetupFromEnv(ctx, "zbooks-collector")
	if err != nil && !os.IsNotExist(err) {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer telemetry.Shutdown(context.Background())

	commands.ExecuteContext(ctx)
}
