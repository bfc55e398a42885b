package main

// @title           Marketplace Payments API
// @version         1.0
// @description     Marketplace orders, payments, commissions and vendor payouts.
// @termsOfService  http://example.com/terms/

// @contact.name   API Support
// @contact.url    http://www.example.com/support
// @contact.email  support@example.com

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8888
// @BasePath  /

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/marketplace/internal/app"
)

func main() {
	os.Exit(run())
}

// run starts the app, blocks until SIGINT/SIGTERM and stops it. The fx logger
// may not exist when start fails, so failures go to a fallback logger.
func run() int {
	fallback := zap.NewExample().Sugar()
	a := fx.New(app.Module)

	startCtx, cancelStart := context.WithTimeout(context.Background(), app.DefaultStartTimeout)
	defer cancelStart()
	if err := a.Start(startCtx); err != nil {
		fallback.Errorw("failed to start marketplace api", "error", err.Error())
		return 1
	}

	sig := <-a.Wait()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
	defer cancelStop()
	if err := a.Stop(stopCtx); err != nil {
		fallback.Errorw("failed to stop marketplace api", "error", err.Error())
		return 1
	}
	return sig.ExitCode
}
