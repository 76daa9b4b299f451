package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ossim/ossim/sim"
	"github.com/ossim/ossim/sim/status"
	"github.com/ossim/ossim/sim/trace"
	"github.com/ossim/ossim/sim/transport"
)

var (
	// CLI flags for the scheduler server
	configPath    string        // Optional YAML config file
	logLevel      string        // Log verbosity level
	socketPath    string        // Unix socket clients connect to
	tickMs        uint32        // Simulated ms per tick
	tickInterval  time.Duration // Wall-clock pause between ticks
	statusEveryMs uint32        // Simulated ms between "Current time" log lines
	rrQuantumMs   uint32        // RR quantum
	mlfqQuantaMs  []uint        // MLFQ per-level quanta
	maxClients    int           // Live connections admitted at once
	writeTimeout  time.Duration // Bound on each ACK/DONE write
	traceLevel    string        // Decision trace level
	httpAddr      string        // Status server address (empty = disabled)
	resultsPath   string        // JSON metrics output (empty = none)
)

// rootCmd runs the scheduler server with the policy named by its argument.
var rootCmd = &cobra.Command{
	Use:   "ossim <" + strings.Join(sim.PolicyNames(), "|") + ">",
	Short: "Tick-driven CPU scheduling simulator serving clients over a Unix socket",
	Long: `ossim simulates a single CPU scheduled by FIFO, SJF, RR or MLFQ.

Client applications connect to the Unix socket and send RUN or BLOCK requests;
the scheduler answers each with an ACK and, once the simulated time has
elapsed, a DONE carrying the simulated clock.`,
	Args: validatePolicyArgs,
	RunE: runServer,
}

// validatePolicyArgs accepts at most one policy name. The name may instead come
// from the config file, which is checked in runServer.
func validatePolicyArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("expected one scheduler type, got %d arguments", len(args))
	}
	if len(args) == 1 && !sim.IsValidPolicy(args[0]) {
		return fmt.Errorf("unknown scheduler type %q; valid types: %s", args[0], strings.Join(sim.PolicyNames(), ", "))
	}
	return nil
}

// serverSettings is everything runServer needs after merging defaults, the
// config file and flags.
type serverSettings struct {
	Policy    string
	Config    sim.Config
	Transport transport.Options
	Socket    string
	LogLevel  string
	Trace     string
	HTTP      string
	Results   string
}

// resolveSettings merges defaults, then the config file, then flags the user
// explicitly set. Flag defaults never override file values.
func resolveSettings(cmd *cobra.Command, args []string, bundle *sim.ConfigBundle) (serverSettings, error) {
	s := serverSettings{
		Config:    sim.DefaultConfig(),
		Transport: transport.DefaultOptions(),
		Socket:    transport.DefaultSocketPath,
		LogLevel:  "info",
		Trace:     string(trace.TraceLevelNone),
	}

	if bundle != nil {
		if err := bundle.Validate(); err != nil {
			return s, fmt.Errorf("invalid config file: %w", err)
		}
		bundle.Apply(&s.Config)
		s.Policy = bundle.Policy
		if bundle.Log != "" {
			s.LogLevel = bundle.Log
		}
		if bundle.Trace != "" {
			s.Trace = bundle.Trace
		}
		if bundle.Server.Socket != "" {
			s.Socket = bundle.Server.Socket
		}
		if bundle.Server.WriteTimeout != nil {
			s.Transport.WriteTimeout = *bundle.Server.WriteTimeout
		}
		s.HTTP = bundle.Server.HTTP
		s.Results = bundle.Output.Results
	}

	if len(args) == 1 {
		s.Policy = args[0]
	}
	if s.Policy == "" {
		return s, fmt.Errorf("scheduler type required: one of %s", strings.Join(sim.PolicyNames(), ", "))
	}

	flags := cmd.Flags()
	if flags.Changed("log") {
		s.LogLevel = logLevel
	}
	if flags.Changed("socket") {
		s.Socket = socketPath
	}
	if flags.Changed("tick-ms") {
		s.Config.TickMs = tickMs
	}
	if flags.Changed("tick-interval") {
		s.Config.TickInterval = tickInterval
	}
	if flags.Changed("status-every-ms") {
		s.Config.StatusEveryMs = statusEveryMs
	}
	if flags.Changed("rr-quantum-ms") {
		s.Config.RRQuantumMs = rrQuantumMs
	}
	if flags.Changed("mlfq-quanta-ms") {
		s.Config.MLFQQuantaMs = make([]uint32, len(mlfqQuantaMs))
		for i, q := range mlfqQuantaMs {
			s.Config.MLFQQuantaMs[i] = uint32(q)
		}
	}
	if flags.Changed("max-clients") {
		s.Config.MaxClients = maxClients
	}
	if flags.Changed("write-timeout") {
		s.Transport.WriteTimeout = writeTimeout
	}
	if flags.Changed("trace") {
		s.Trace = traceLevel
	}
	if flags.Changed("http") {
		s.HTTP = httpAddr
	}
	if flags.Changed("results") {
		s.Results = resultsPath
	}

	if _, err := logrus.ParseLevel(s.LogLevel); err != nil {
		return s, fmt.Errorf("invalid log level %q", s.LogLevel)
	}
	if !trace.IsValidTraceLevel(s.Trace) {
		return s, fmt.Errorf("invalid trace level %q; valid levels: none, decisions", s.Trace)
	}
	if err := s.Config.Validate(); err != nil {
		return s, err
	}
	// every admitted client may be waiting in the listener at once
	s.Transport.Backlog = s.Config.MaxClients
	return s, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	var bundle *sim.ConfigBundle
	if configPath != "" {
		b, err := sim.LoadConfigBundle(configPath)
		if err != nil {
			return err
		}
		bundle = b
	}
	s, err := resolveSettings(cmd, args, bundle)
	if err != nil {
		return err
	}
	// configuration is valid from here on; runtime errors are not usage errors
	cmd.SilenceUsage = true

	level, _ := logrus.ParseLevel(s.LogLevel)
	logrus.SetLevel(level)

	policy, err := sim.NewPolicy(s.Policy, s.Config)
	if err != nil {
		return err
	}
	ln, err := transport.Listen(s.Socket, s.Transport)
	if err != nil {
		return err
	}
	defer ln.Close()

	logrus.Infof("Scheduler type: %s (tick %d ms, max clients %d)", policy.Name(), s.Config.TickMs, s.Config.MaxClients)
	coord := sim.NewCoordinator(s.Config, policy, ln, trace.TraceConfig{Level: trace.TraceLevel(s.Trace)})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if s.HTTP != "" {
		go func() {
			if err := status.Serve(ctx, s.HTTP, coord); err != nil {
				logrus.Errorf("status server: %v", err)
			}
		}()
	}

	startTime := time.Now()
	if err := coord.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logrus.Infof("Shutting down after %s of wall time", time.Since(startTime).Round(time.Millisecond))

	out := cmd.OutOrStdout()
	coord.Metrics.Print(out, coord.Clock)
	if coord.Trace != nil {
		printTraceSummary(out, trace.Summarize(coord.Trace))
	}
	if s.Results != "" {
		if err := coord.Metrics.SaveResults(policy.Name(), coord.Clock, s.Results); err != nil {
			return err
		}
		logrus.Infof("Metrics written to %s", s.Results)
	}
	return nil
}

// printTraceSummary writes decision counts by kind, then dispatches per pid.
func printTraceSummary(w io.Writer, sum *trace.TraceSummary) {
	fmt.Fprintln(w, "=== Decision Trace ===")
	fmt.Fprintf(w, "Total Decisions      : %s\n", humanize.Comma(int64(sum.TotalDecisions)))

	kinds := make([]string, 0, len(sum.ByKind))
	for k := range sum.ByKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-19s: %s\n", k, humanize.Comma(int64(sum.ByKind[trace.DecisionKind(k)])))
	}

	fmt.Fprintf(w, "Unique PIDs          : %d\n", sum.UniquePIDs)
	if sum.UniquePIDs > 0 {
		fmt.Fprintf(w, "Max Dispatches / PID : %d\n", sum.MaxDispatches)
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// registerServerFlags binds the server flags to fs.
func registerServerFlags(fs *pflag.FlagSet) {
	fs.StringVar(&configPath, "config", "", "YAML config file; explicitly set flags override its values")
	fs.StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	fs.StringVar(&socketPath, "socket", transport.DefaultSocketPath, "Unix socket path clients connect to")

	// Clock
	fs.Uint32Var(&tickMs, "tick-ms", sim.DefaultTickMs, "Simulated milliseconds per tick")
	fs.DurationVar(&tickInterval, "tick-interval", sim.DefaultTickInterval, "Wall-clock pause between ticks (0 runs flat out)")
	fs.Uint32Var(&statusEveryMs, "status-every-ms", sim.DefaultStatusEveryMs, "Simulated ms between clock log lines (0 disables)")

	// Policy parameters
	fs.Uint32Var(&rrQuantumMs, "rr-quantum-ms", sim.DefaultRRQuantumMs, "Round-robin quantum in simulated ms")
	fs.UintSliceVar(&mlfqQuantaMs, "mlfq-quanta-ms", []uint{8, 16, 1000000}, "Comma-separated MLFQ quanta, highest priority level first")

	// Server
	fs.IntVar(&maxClients, "max-clients", sim.DefaultMaxClients, "Maximum live client connections")
	fs.DurationVar(&writeTimeout, "write-timeout", transport.DefaultOptions().WriteTimeout, "Deadline for each ACK/DONE write")
	fs.StringVar(&httpAddr, "http", "", "Serve read-only status on this address (e.g. 127.0.0.1:8080)")

	// Output
	fs.StringVar(&traceLevel, "trace", string(trace.TraceLevelNone), "Decision trace level (none, decisions)")
	fs.StringVar(&resultsPath, "results", "", "Write final metrics as JSON to this file")
}

// init sets up CLI flags and subcommands
func init() {
	registerServerFlags(rootCmd.Flags())
	rootCmd.AddCommand(clientCmd)
}
