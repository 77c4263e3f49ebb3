// ABOUTME: Daemon mode: background sync timers plus the webhook receiver
// ABOUTME: Runs until SIGINT/SIGTERM with graceful shutdown
package cli

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harperreed/amc/crm"
	"github.com/harperreed/amc/models"
	"github.com/harperreed/amc/webhook"
)

// minDaemonInterval keeps misconfigured timers from hammering providers.
const minDaemonInterval = 5 * time.Second

// DaemonCommand runs the sync timers (and optionally the webhook
// receiver) until interrupted.
func DaemonCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	serveWebhooks := fs.Bool("webhooks", false, "Also serve the inbound webhook receiver")
	listen := fs.String("listen", app.Config.ListenAddr, "Webhook listen address")
	_ = fs.Parse(args)

	if app.Config.PushInterval < minDaemonInterval || app.Config.PullInterval < minDaemonInterval {
		return fmt.Errorf("sync intervals below %s are not allowed", minDaemonInterval)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var server *http.Server
	if *serveWebhooks {
		handler := webhook.NewHandler(app.Store, defaultInboundMappings(app))
		server = &http.Server{Addr: *listen, Handler: webhook.NewRouter(handler)}
		go func() {
			log.Printf("webhook receiver listening on %s", *listen)
			if err := server.ListenAndServe(); err != http.ErrServerClosed {
				log.Printf("webhook server failed: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		app.Engine.Run(ctx)
		close(done)
	}()

	sig := <-sigChan
	log.Printf("received %s, shutting down", sig)
	cancel()

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}

	<-done
	return nil
}

// defaultInboundMappings picks the mapping table inbound events are
// translated with: the primary connection's, falling back to the stock
// HubSpot table.
func defaultInboundMappings(app *App) []models.FieldMapping {
	if active := app.Config.ActiveConnections(); len(active) > 0 {
		return active[0].FieldMappings
	}
	return crm.DefaultHubSpotMappings()
}
