package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/stepdag/internal/config"
	"github.com/san-kum/stepdag/internal/expr"
	"github.com/san-kum/stepdag/internal/fn"
	"github.com/san-kum/stepdag/internal/interp"
	"github.com/san-kum/stepdag/internal/ir"
	"github.com/san-kum/stepdag/internal/kind"
	"github.com/san-kum/stepdag/internal/methods"
	"github.com/san-kum/stepdag/internal/models"
	"github.com/san-kum/stepdag/internal/store"
	"github.com/san-kum/stepdag/internal/viz"
)

var (
	dataDir    string
	configFile string
	method     string
	dt         float64
	tEnd       float64
	tolerance  float64
	maxNorm    float64
	adaptive   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stepdag",
		Short: "compile and run ODE time integration methods",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".stepdag", "data directory")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "run a method against a model and store the result",
		Args:  cobra.ExactArgs(1),
		RunE:  runModel,
	}
	addMethodFlags(runCmd)

	liveCmd := &cobra.Command{
		Use:   "live [model]",
		Short: "run with a live terminal view",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	addMethodFlags(liveCmd)

	kindsCmd := &cobra.Command{
		Use:   "kinds [model]",
		Short: "show the inferred symbol kinds of the compiled method",
		Args:  cobra.ExactArgs(1),
		RunE:  showKinds,
	}
	addMethodFlags(kindsCmd)

	dumpCmd := &cobra.Command{
		Use:   "dump [model]",
		Short: "dump the compiled instruction graph",
		Args:  cobra.ExactArgs(1),
		RunE:  dumpCode,
	}
	addMethodFlags(dumpCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	rootCmd.AddCommand(runCmd, liveCmd, kindsCmd, dumpCmd, listCmd, plotCmd, exportCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addMethodFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&method, "method", "rk4", "method tableau")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "initial timestep")
	cmd.Flags().Float64Var(&tEnd, "time", config.DefaultTEnd, "final time")
	cmd.Flags().Float64Var(&tolerance, "tol", config.DefaultTolerance, "error tolerance (adaptive)")
	cmd.Flags().Float64Var(&maxNorm, "max-norm", 0, "abort when the state norm exceeds this")
	cmd.Flags().BoolVar(&adaptive, "adaptive", false, "enable adaptive step control")
}

// loadConfig assembles the effective configuration: file values first, then
// explicitly set flags on top.
func loadConfig(cmd *cobra.Command, modelName string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.Model = modelName
	if cmd.Flags().Changed("method") || cfg.Method == "" {
		cfg.Method = method
	}
	if cmd.Flags().Changed("dt") {
		cfg.Dt = dt
	}
	if cmd.Flags().Changed("time") {
		cfg.TEnd = tEnd
	}
	if cmd.Flags().Changed("tol") {
		cfg.Tolerance = tolerance
	}
	if cmd.Flags().Changed("max-norm") {
		cfg.MaxNorm = maxNorm
	}
	if cmd.Flags().Changed("adaptive") {
		cfg.Adaptive = adaptive
	}
	return cfg, cfg.Validate()
}

// build compiles the configured method and prepares an interpreter bound to
// the model's right-hand side and initial state.
func build(cfg *config.Config) (models.Model, *ir.Code, *interp.Interpreter, error) {
	m, err := cfg.BuildModel()
	if err != nil {
		return nil, nil, nil, err
	}
	tb, ok := methods.ByName(cfg.Method)
	if !ok {
		return nil, nil, nil, fmt.Errorf("unknown method %q (have %v)", cfg.Method, methods.Names())
	}
	rk := methods.ExplicitRK{
		Tableau:   tb,
		Component: m.Component(),
		RHS:       models.FuncName(m),
		MaxNorm:   cfg.MaxNorm,
	}
	if cfg.Adaptive {
		rk.Tolerance = cfg.Tolerance
	}
	code, err := rk.Compile()
	if err != nil {
		return nil, nil, nil, err
	}

	registry := fn.NewRegistry()
	if err := registry.Register(models.Function(m)); err != nil {
		return nil, nil, nil, err
	}
	ip, err := interp.New(code, registry)
	if err != nil {
		return nil, nil, nil, err
	}

	params := make(map[string]expr.Value, len(cfg.Params))
	for k, v := range cfg.Params {
		params[k] = v
	}
	err = ip.SetUp(cfg.TStart, cfg.Dt,
		map[string]expr.Value{m.Component(): m.Initial()}, params)
	if err != nil {
		return nil, nil, nil, err
	}
	return m, code, ip, nil
}

func runModel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}
	m, _, ip, err := build(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	trace := store.NewTrace(m.Component())
	initial, err := ip.Initialize(ctx)
	if err != nil {
		return err
	}
	for _, ev := range initial {
		trace.Record(ev)
	}
	for ev, err := range ip.Run(ctx, cfg.TEnd) {
		if err != nil {
			return err
		}
		trace.Record(ev)
	}

	fmt.Println(viz.PlotTrace(trace, fmt.Sprintf("%s / %s", cfg.Model, cfg.Method)))

	st := store.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(cfg.Model, cfg.Method, cfg.Dt, cfg.TEnd, rkTolerance(cfg), trace)
	if err != nil {
		return err
	}
	fmt.Printf("saved run %s\n", runID)
	return nil
}

func rkTolerance(cfg *config.Config) float64 {
	if cfg.Adaptive {
		return cfg.Tolerance
	}
	return 0
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}
	m, _, ip, err := build(cfg)
	if err != nil {
		return err
	}
	if _, err := ip.Initialize(context.Background()); err != nil {
		return err
	}

	title := fmt.Sprintf("%s / %s", cfg.Model, cfg.Method)
	model := viz.NewModel(title, ip, m.Component(), cfg.TEnd)
	_, err = tea.NewProgram(model).Run()
	return err
}

func showKinds(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}
	_, code, ip, err := build(cfg)
	if err != nil {
		return err
	}

	table := ip.Kinds()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCOPE\tSYMBOL\tKIND")
	for _, name := range table.GlobalNames() {
		fmt.Fprintf(w, "global\t%s\t%s\n", name, kind.String(table.Global(name)))
	}
	for _, ph := range code.Phases {
		for _, name := range table.LocalNames(ph.Name) {
			fmt.Fprintf(w, "%s\t%s\t%s\n", ph.Name, name, kind.String(table.Local(ph.Name, name)))
		}
	}
	return w.Flush()
}

func dumpCode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}
	_, code, _, err := build(cfg)
	if err != nil {
		return err
	}
	fmt.Print(code.Dump())
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := store.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tMETHOD\tDT\tT_END\tOBSERVATIONS")
	for _, meta := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%g\t%.0f\n",
			meta.ID, meta.Model, meta.Method, meta.Dt, meta.TEnd, meta.Metrics["observations"])
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := store.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	states, times, err := st.LoadStates(args[0])
	if err != nil {
		return err
	}

	trace := store.NewTrace(meta.Model)
	trace.Times = times
	trace.States = states
	fmt.Println(viz.PlotTrace(trace, fmt.Sprintf("%s / %s", meta.Model, meta.Method)))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := store.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}
