package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/datarecording"
	"github.com/sarchlab/ahbsim/monitoring"
	"github.com/sarchlab/ahbsim/sim/power"
	"github.com/sarchlab/ahbsim/sim/timing"
	"github.com/sarchlab/ahbsim/soc"
	"github.com/sarchlab/ahbsim/tracing"
)

type options struct {
	config      string
	until       uint64
	traceDB     string
	traceCSV    string
	record      string
	logEvents   bool
	monitor     bool
	monitorPort int
	openBrowser bool
}

func newRootCmd() *cobra.Command {
	opts := options{
		traceDB:     os.Getenv("AHBSIM_TRACE_DB"),
		monitorPort: envInt("AHBSIM_MONITOR_PORT"),
	}

	cmd := &cobra.Command{
		Use:   "ahbsim [script]",
		Short: "Run a traffic script on a simulated AHB-Lite bus matrix.",
		Long: `ahbsim builds the reference SoC, feeds the transfers of a YAML ` +
			`script to its masters and prints the outcome of every transfer. ` +
			`Transfers can be traced into SQLite or CSV, and power changes ` +
			`recorded next to them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(cmd.OutOrStdout(), args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.config, "config", "",
		"YAML file describing the SoC; the reference part if empty")
	f.Uint64Var(&opts.until, "until", 0,
		"stop after this cycle instead of when the bus falls asleep")
	f.StringVar(&opts.traceDB, "trace-db", opts.traceDB,
		"trace transfers into this SQLite database (without extension)")
	f.StringVar(&opts.traceCSV, "trace-csv", "",
		"trace transfers into this CSV file (without extension)")
	f.StringVar(&opts.record, "record", "",
		"record power changes, skips and transfers into this database")
	f.BoolVar(&opts.logEvents, "log-events", false,
		"log every engine event to stderr")
	f.BoolVar(&opts.monitor, "monitor", false,
		"serve the monitoring page while simulating")
	f.IntVar(&opts.monitorPort, "monitor-port", opts.monitorPort,
		"port of the monitoring page; random if 0")
	f.BoolVar(&opts.openBrowser, "open-browser", false,
		"open the monitoring page in a browser")

	return cmd
}

func envInt(name string) int {
	v, ok := os.LookupEnv(name)
	if !ok {
		return 0
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Ignoring %s=%q: %v", name, v, err)
		return 0
	}

	return n
}

func run(out io.Writer, scriptPath string, opts options) error {
	cfg := soc.DefaultConfig()
	if opts.config != "" {
		var err error
		if cfg, err = soc.LoadConfig(opts.config); err != nil {
			return err
		}
	}

	script, err := soc.LoadScript(scriptPath)
	if err != nil {
		return err
	}

	s, err := soc.MakeBuilder().WithConfig(cfg).Build("SoC")
	if err != nil {
		return err
	}

	tracker := tracing.NewTransferTracker("Transfers")
	for _, st := range s.Matrix.Stages() {
		tracker.Watch(st)
	}

	latency := tracing.NewAverageTimeTracer(tracing.AllTasks)
	tracing.CollectTrace(tracker, latency)

	busy := tracing.NewBusyTimeTracer(tracing.AllTasks)
	tracing.CollectTrace(tracker, busy)

	var tracers []*tracing.DBTracer

	if opts.traceDB != "" {
		t := tracing.NewDBTracer(
			tracing.NewSQLiteTraceWriter(opts.traceDB), tracing.AllTasks)
		tracing.CollectTrace(tracker, t)
		tracers = append(tracers, t)
	}

	if opts.traceCSV != "" {
		w := tracing.NewCSVTraceWriter(opts.traceCSV)
		defer w.Close()

		t := tracing.NewDBTracer(w, tracing.AllTasks)
		tracing.CollectTrace(tracker, t)
		tracers = append(tracers, t)
	}

	var exec *datarecording.ExecRecorder
	var recorder datarecording.DataRecorder

	if opts.record != "" {
		recorder = datarecording.New(opts.record)
		defer recorder.Close()

		exec = datarecording.NewExecRecorder(recorder)
		exec.Start()
		exec.Note("Script", scriptPath)
		exec.Note("Config", opts.config)

		s.Table().AcceptHook(power.NewRecordingHook(recorder))

		t := tracing.NewDBTracer(
			tracing.NewRecorderTraceWriter(recorder), tracing.AllTasks)
		tracing.CollectTrace(tracker, t)
		tracers = append(tracers, t)
	}

	if opts.logEvents {
		s.Engine().AcceptHook(
			timing.NewEventLogger(log.New(os.Stderr, "", 0)))
	}

	if opts.monitor {
		startMonitor(s, opts, uint64(len(script.Transfers)))
	}

	if err := script.Apply(s); err != nil {
		return err
	}

	if opts.until > 0 {
		err = s.RunThrough(opts.until)
	} else {
		err = s.Run()
	}

	if err != nil {
		return err
	}

	for _, t := range tracers {
		t.Terminate()
	}

	if exec != nil {
		exec.End()
	}

	report(out, s)
	log.Printf("%d transfers, average latency %.2f cycles",
		latency.TotalCount(), latency.AverageTime())

	busy.TerminateAllTasks(s.Scheduler().LastCycle())
	log.Printf("masters busy for %d of %d cycles",
		busy.BusyTime(), s.Scheduler().LastCycle()+1)

	return nil
}

func startMonitor(s *soc.SoC, opts options, transfers uint64) {
	m := monitoring.NewMonitor().WithPortNumber(opts.monitorPort)
	m.RegisterEngine(s.Engine())
	m.RegisterTable(s.Table())

	for _, c := range s.Components() {
		m.RegisterComponent(c)
	}

	bar := m.CreateProgressBar("Transfers", transfers)
	for _, st := range s.Matrix.Stages() {
		st.AcceptHook(monitoring.TransferCounter{Bar: bar})
	}

	m.StartServer(opts.openBrowser)
}

func report(out io.Writer, s *soc.SoC) {
	for i, m := range s.Masters {
		for _, r := range m.Results() {
			t := r.Transfer
			fmt.Fprintf(out, "%-4s %-5s %-8s %s %-5s data=%s issued=%d done=%d\n",
				soc.MasterName(bus.MasterTag(i)), t.Dir, t.Size, t.Addr,
				r.Reply.Resp, r.Reply.Data, r.Issued, r.Done)
		}
	}
}
