// Command gridtraffic runs the grid traffic simulator.
//
// Commands:
//  1. serve – HTTP server with REST API, WebSocket snapshots, an /mcp endpoint and autoplay
//  2. mcp – MCP stdio server; reuses a running API or spins up an internal one
//  3. run – headless run that prints states and diagnostics
//  4. view – terminal viewer for one simulation
//
// Every flag can also be set from the environment, and a .env file in the
// working directory is loaded first. Optional ngrok tunneling exposes the
// server for development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/gridtraffic/api"
	"github.com/wricardo/mcp-training/gridtraffic/game/citygen"
	"github.com/wricardo/mcp-training/gridtraffic/game/config"
	"github.com/wricardo/mcp-training/gridtraffic/game/engine"
	"github.com/wricardo/mcp-training/gridtraffic/game/service"
	"github.com/wricardo/mcp-training/gridtraffic/game/session"
	"github.com/wricardo/mcp-training/gridtraffic/render/terminal"
	"github.com/wricardo/mcp-training/gridtraffic/transport/mcp"
	"github.com/wricardo/mcp-training/gridtraffic/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Grid Traffic Simulator"
)

const (
	defaultSessionTTL = 24 * time.Hour
	cleanupInterval   = time.Hour
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("Error loading .env file: %v", err)
		}
	} else {
		log.Info("Loaded environment variables from .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// newApp builds the command tree. Flags on the root are inherited by every command.
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "gridtraffic",
		Usage:   "tick-driven traffic simulation on a grid city",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging", Sources: cli.EnvVars("DEBUG")},
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "directory containing simulation configurations", Sources: cli.EnvVars("CONFIG_DIR")},
			&cli.StringFlag{Name: "sessions-dir", Value: "sessions", Usage: "directory for persisted sessions", Sources: cli.EnvVars("SESSIONS_DIR")},
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				log.SetLevel(log.DebugLevel)
				log.SetReportCaller(true)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP server with REST API, WebSocket and MCP endpoint",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "autoplay", Value: true, Usage: "step every session on a ticker", Sources: cli.EnvVars("AUTOPLAY")},
					&cli.DurationFlag{Name: "tick-interval", Value: time.Duration(engine.DefaultTickMs) * time.Millisecond, Usage: "autoplay tick interval", Sources: cli.EnvVars("TICK_INTERVAL")},
					&cli.DurationFlag{Name: "session-ttl", Value: defaultSessionTTL, Usage: "drop sessions idle for longer than this", Sources: cli.EnvVars("SESSION_TTL")},
					&cli.BoolFlag{Name: "ngrok", Usage: "enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
					&cli.StringFlag{Name: "ngrok-auth", Usage: "ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
					&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
				},
				Action: serveAction,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "run an MCP stdio server",
				Action:  mcpAction,
			},
			{
				Name:  "run",
				Usage: "run a simulation headless and print diagnostics",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Usage: "config name (default config when empty)"},
					&cli.IntFlag{Name: "ticks", Value: 1000, Usage: "number of ticks to run"},
					&cli.BoolFlag{Name: "check", Usage: "verify junction consistency after every tick"},
				},
				Action: runAction,
			},
			{
				Name:  "view",
				Usage: "watch a simulation in the terminal",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Usage: "config name (default config when empty)"},
					&cli.DurationFlag{Name: "tick-interval", Usage: "tick interval (config value when unset)"},
				},
				Action: viewAction,
			},
		},
	}
}

func addr(cmd *cli.Command) string {
	return fmt.Sprintf("%s:%d", cmd.String("host"), int(cmd.Int("port")))
}

// initializeServices wires the config and session managers into the simulation service
func initializeServices(configDir, sessionsDir string) (service.SimulationService, *session.Manager, error) {
	configManager, err := config.NewManager(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	persistence, err := session.NewFilePersistence(sessionsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session persistence: %w", err)
	}
	sessionManager := session.NewManagerWithPersistence(persistence)

	if err := sessionManager.LoadPersistedSessions(); err != nil {
		log.Warnf("Failed to load persisted sessions: %v", err)
	}

	return service.NewSimulationService(sessionManager, configManager), sessionManager, nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	log.Infof("Starting %s v%s", AppName, Version)

	simService, sessionManager, err := initializeServices(cmd.String("config-dir"), cmd.String("sessions-dir"))
	if err != nil {
		return err
	}

	hub := websocket.NewHub()
	go hub.Run(ctx)

	listenAddr := addr(cmd)
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", api.NewServer(simService, hub))
	mainRouter.HandleFunc("/mcp", mcpHandler(mcp.NewClient("http://"+listenAddr)))

	httpServer := &http.Server{
		Addr:         listenAddr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Infof("HTTP server listening on %s", listenAddr)
		log.Infof("REST API: http://%s/api", listenAddr)
		log.Infof("WebSocket: ws://%s/ws?session=<session_id>", listenAddr)
		log.Infof("MCP endpoint: http://%s/mcp", listenAddr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), mainRouter)
		}()
	}

	if cmd.Bool("autoplay") {
		interval := cmd.Duration("tick-interval")
		log.Infof("Autoplay every %v", interval)
		go autoplay(ctx, simService, hub, interval)
	}
	go sessionCleanupRoutine(ctx, sessionManager, cmd.Duration("session-ttl"))

	select {
	case <-ctx.Done():
		log.Info("Shutting down...")
	case err = <-serveErr:
		log.Errorf("HTTP server failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Errorf("HTTP server shutdown error: %v", shutdownErr)
	}
	wg.Wait()

	if saveErr := sessionManager.SaveAllSessions(); saveErr != nil {
		log.Warnf("Failed to save sessions: %v", saveErr)
	}
	log.Info("Server stopped")
	return err
}

// mcpHandler answers JSON-RPC requests posted to /mcp
func mcpHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := client.GetMCPServer().HandleMessage(r.Context(), body)

		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	}
}

// runNgrok serves handler through an ngrok tunnel until ctx is cancelled
func runNgrok(ctx context.Context, authToken, domain string, handler http.Handler) {
	if authToken == "" {
		log.Warn("Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Info("Starting ngrok tunnel...")
	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.Infof("Using custom ngrok domain: %s", domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Errorf("Failed to start ngrok tunnel: %v", err)
		return
	}
	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Warnf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	url := tun.URL()
	log.WithField("url", url).Info("Ngrok tunnel established")
	log.Infof("  REST API (ngrok): %s/api", url)
	log.Infof("  WebSocket (ngrok): %s/ws?session=<session_id>", url)
	log.Infof("  MCP endpoint (ngrok): %s/mcp", url)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.Errorf("Ngrok server error: %v", err)
	}
	log.Info("Ngrok tunnel closed")
}

// autoplay advances every session by one tick per interval and pushes fresh
// snapshots to sessions that have WebSocket subscribers
func autoplay(ctx context.Context, simService service.SimulationService, hub *websocket.Hub, interval time.Duration) {
	if interval <= 0 {
		interval = time.Duration(engine.DefaultTickMs) * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			autoplayTick(ctx, simService, hub)
		}
	}
}

func autoplayTick(ctx context.Context, simService service.SimulationService, hub *websocket.Hub) {
	results, err := simService.StepAll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Warnf("Autoplay step failed: %v", err)
		}
		return
	}
	for _, result := range results {
		if result.InvariantError != "" {
			log.WithFields(log.Fields{
				"session": result.SessionID,
				"tick":    result.Tick,
			}).Error(result.InvariantError)
		}
	}

	for _, id := range hub.Subscribed() {
		snap, err := simService.GetSnapshot(ctx, id)
		if err != nil {
			continue
		}
		hub.BroadcastSnapshot(id, snap)
	}
}

// sessionCleanupRoutine periodically removes sessions that have not been accessed
// within the retention window
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(ttl); removed > 0 {
				log.Infof("Cleaned up %d expired sessions", removed)
			}
		}
	}
}

func mcpAction(ctx context.Context, cmd *cli.Command) error {
	baseURL, shutdown, err := mcpBackend(ctx, cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	mcpClient := mcp.NewClient(baseURL)
	log.Infof("MCP stdio server ready (API at %s)", baseURL)
	return server.ServeStdio(mcpClient.GetMCPServer())
}

// mcpBackend reuses a running API at host:port when one answers its health
// check; otherwise it starts an internal API on a random loopback port.
func mcpBackend(ctx context.Context, cmd *cli.Command) (string, func(), error) {
	externalURL := "http://" + addr(cmd)
	log.Infof("Checking for external API server at %s...", externalURL)

	if apiAvailable(ctx, externalURL) {
		log.Infof("External API server found at %s, using it for MCP", externalURL)
		return externalURL, func() {}, nil
	}

	log.Info("No external API server found, starting internal HTTP server")
	simService, sessionManager, err := initializeServices(cmd.String("config-dir"), cmd.String("sessions-dir"))
	if err != nil {
		return "", nil, err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("failed to get available port: %w", err)
	}
	internalURL := "http://" + listener.Addr().String()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	httpServer := &http.Server{Handler: api.NewServer(simService, hub)}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Internal HTTP server error: %v", err)
		}
	}()
	log.Infof("Internal HTTP server on %s", internalURL)

	shutdown := func() {
		httpServer.Close()
		if err := sessionManager.SaveAllSessions(); err != nil {
			log.Warnf("Failed to save sessions: %v", err)
		}
	}
	return internalURL, shutdown, nil
}

func apiAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// loadSimConfig resolves the --config flag against the config directory and
// generates a layout when the config has none
func loadSimConfig(cmd *cli.Command) (*engine.SimConfig, error) {
	configManager, err := config.NewManager(cmd.String("config-dir"))
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	simConfig := configManager.GetDefault()
	if name := cmd.String("config"); name != "" {
		if simConfig, err = configManager.LoadConfig(name); err != nil {
			return nil, err
		}
	}
	return citygen.Prepare(simConfig), nil
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	simConfig, err := loadSimConfig(cmd)
	if err != nil {
		return err
	}
	sim, err := engine.NewSimulation(simConfig)
	if err != nil {
		return err
	}
	return runHeadless(ctx, os.Stdout, sim, int(cmd.Int("ticks")), cmd.Bool("check"))
}

// runHeadless steps sim for the given number of ticks and prints a summary.
// With check set it stops at the first junction inconsistency.
func runHeadless(ctx context.Context, w io.Writer, sim *engine.Simulation, ticks int, check bool) error {
	started := time.Now()
	for i := 0; i < ticks; i++ {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		sim.Step()
		if check {
			if err := sim.CheckInvariants(); err != nil {
				return fmt.Errorf("tick %d: %w", sim.Tick(), err)
			}
		}
	}
	elapsed := time.Since(started)

	states := sim.CountStates()
	diag := sim.Network().Diagnostics()
	fmt.Fprintf(w, "Config: %s (%dx%d)\n", sim.Config().Name, sim.Network().Cols(), sim.Network().Rows())
	fmt.Fprintf(w, "Ticks: %d in %v\n", sim.Tick(), elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Cars: %d (driving %d, waiting %d, collision %d, respawned %d)\n",
		sim.AgentCount(), states[engine.Driving], states[engine.Waiting], states[engine.Collision], states[engine.Respawned])
	fmt.Fprintf(w, "Recoveries: stale evictions %d, safe releases %d, forced releases %d, override crossings %d\n",
		diag.StaleEvictions, diag.SafeReleases, diag.ForcedReleases, diag.OverrideCrossings)
	fmt.Fprintf(w, "Lifecycle: respawns %d, spawn failures %d, max waiting cycles %d\n",
		diag.Respawns, diag.SpawnFailures, diag.MaxWaitingCycles)
	if defects := diag.Defects(); defects > 0 {
		fmt.Fprintf(w, "Data defects: %d (empty-exit junctions %d, direction fallbacks %d, heading fallbacks %d)\n",
			defects, diag.EmptyExitJunctions, diag.DirectionFallbacks, diag.HeadingFallbacks)
	}
	return nil
}

func viewAction(ctx context.Context, cmd *cli.Command) error {
	simConfig, err := loadSimConfig(cmd)
	if err != nil {
		return err
	}

	// Log lines would corrupt the screen
	quiet := log.New()
	quiet.SetOutput(io.Discard)
	log.SetOutput(io.Discard)

	sim, err := engine.NewSimulation(simConfig, engine.WithLogger(quiet))
	if err != nil {
		return err
	}

	interval := cmd.Duration("tick-interval")
	if interval <= 0 && simConfig.TickIntervalMs > 0 {
		interval = time.Duration(simConfig.TickIntervalMs) * time.Millisecond
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	err = terminal.NewViewer(screen, sim, interval).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
