package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/piwi3910/PanelCut/internal/catalog"
	"github.com/piwi3910/PanelCut/internal/config"
	"github.com/piwi3910/PanelCut/internal/engine"
	"github.com/piwi3910/PanelCut/internal/export"
	"github.com/piwi3910/PanelCut/internal/importer"
	"github.com/piwi3910/PanelCut/internal/model"
	"github.com/piwi3910/PanelCut/internal/project"
	"github.com/piwi3910/PanelCut/internal/server"
	"github.com/piwi3910/PanelCut/internal/telemetry"
)

// inputOptions selects where pieces and panels come from. Sources are combined.
type inputOptions struct {
	job       string
	pieces    []string
	panels    []string
	inventory string
}

func (o *inputOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.job, "job", "", "Job file (JSON) with pieces, panels and settings")
	fs.StringSliceVar(&o.pieces, "pieces", nil, "Piece list to import (CSV, XLSX or DXF); repeatable")
	fs.StringSliceVar(&o.panels, "panels", nil, "Panel inventory to import (CSV or XLSX); repeatable")
	fs.StringVar(&o.inventory, "inventory", "", "Add the panels of this inventory file (see 'panelcut inventory')")
}

// load assembles a job from the selected sources. Import problems are
// reported on w; only unreadable job or inventory files are errors.
func (o *inputOptions) load(w io.Writer) (project.Job, error) {
	job := project.New("")
	if o.job != "" {
		loaded, err := project.Load(o.job)
		if err != nil {
			return project.Job{}, err
		}
		job = loaded
	}

	for _, path := range o.pieces {
		res := importer.ImportFile(path, importer.KindPieces)
		reportImport(w, path, res)
		job.Pieces = append(job.Pieces, res.Pieces...)
	}
	for _, path := range o.panels {
		res := importer.ImportFile(path, importer.KindPanels)
		reportImport(w, path, res)
		job.Panels = append(job.Panels, res.Panels...)
	}
	if o.inventory != "" {
		inv, err := project.LoadInventory(o.inventory)
		if err != nil {
			return project.Job{}, err
		}
		job.Panels = append(job.Panels, inv.Panels...)
	}

	if len(job.Pieces) == 0 {
		return project.Job{}, fmt.Errorf("no pieces given: use --job or --pieces")
	}
	return job, nil
}

func reportImport(w io.Writer, path string, res importer.ImportResult) {
	for _, msg := range res.Warnings {
		klog.V(2).InfoS("Import warning", "file", path, "message", msg)
	}
	for _, msg := range res.Errors {
		fmt.Fprintf(w, "warning: %s: %s\n", path, msg)
	}
}

// runSettings resolves strategy, kerf and engine settings. A changed flag
// wins over the job file, which wins over the configuration.
func runSettings(fs *pflag.FlagSet, cfg config.Config, job project.Job) (model.Strategy, float64, model.Settings, error) {
	strategy := cfg.DefaultStrategy()
	if job.Strategy != "" && !fs.Changed(config.KeyStrategy) {
		parsed, err := model.ParseStrategy(job.Strategy)
		if err != nil {
			return "", 0, model.Settings{}, err
		}
		strategy = parsed
	}

	kerf := cfg.KerfWidth
	if job.KerfWidth != nil && !fs.Changed(config.KeyKerf) {
		kerf = *job.KerfWidth
	}

	settings := cfg.Settings()
	if job.EdgeTrim != nil && !fs.Changed(config.KeyEdgeTrim) {
		settings.EdgeTrim = *job.EdgeTrim
	}
	return strategy, kerf, settings, nil
}

// normalize validates the job's records and reports the dropped ones on w.
func normalize(w io.Writer, job project.Job) catalog.Result {
	res := catalog.Normalize(job.Pieces, job.Panels)
	for _, e := range res.Errors {
		fmt.Fprintf(w, "warning: skipped %v\n", e)
	}
	return res
}

func newOptimizeCommand() *cobra.Command {
	var (
		in        inputOptions
		out       string
		saveJob   string
		pdfPath   string
		labels    string
		dxfPath   string
		asJSON    bool
		consumeTo bool
		keepOff   bool
		buyWaste  float64
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Compute cutting plans for a piece list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			job, err := in.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			strategy, kerf, settings, err := runSettings(cmd.Flags(), cfg, job)
			if err != nil {
				return err
			}

			records := normalize(cmd.ErrOrStderr(), job)
			result, err := engine.New(settings).Optimize(ctx, engine.Request{
				Pieces:    records.Pieces,
				Panels:    records.Panels,
				Strategy:  strategy,
				KerfWidth: kerf,
				Timeout:   cfg.Timeout,
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			} else {
				printResult(cmd.OutOrStdout(), result)
				printPurchase(cmd.OutOrStdout(), result, records.Panels, buyWaste)
			}

			if out != "" {
				if err := project.SaveResult(out, result); err != nil {
					return err
				}
			}
			if saveJob != "" {
				job.Result = &result
				if err := project.Save(saveJob, job); err != nil {
					return err
				}
			}
			if err := writeExports(result, pdfPath, labels, dxfPath); err != nil {
				return err
			}
			if consumeTo || keepOff {
				return updateInventory(in.inventory, result, consumeTo, keepOff)
			}
			return nil
		},
	}

	in.addFlags(cmd.Flags())
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the result as JSON to this file")
	cmd.Flags().StringVar(&saveJob, "save-job", "", "Write the job including its result to this file")
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "Write a PDF cutting-plan report")
	cmd.Flags().StringVar(&labels, "labels", "", "Write a PDF sheet of QR piece labels")
	cmd.Flags().StringVar(&dxfPath, "dxf", "", "Write the cutting plans as a DXF drawing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON instead of a summary")
	cmd.Flags().BoolVar(&consumeTo, "consume", false, "Deduct the used panels from the --inventory file")
	cmd.Flags().BoolVar(&keepOff, "keep-offcuts", false, "Add reusable offcuts to the --inventory file")
	cmd.Flags().Float64Var(&buyWaste, "purchase-waste", 15, "Waste allowance in percent for the extra panel estimate")
	return cmd
}

func writeExports(result model.OptimizationResult, pdfPath, labels, dxfPath string) error {
	if pdfPath != "" {
		if err := export.ExportPDF(pdfPath, result); err != nil {
			return fmt.Errorf("pdf export: %w", err)
		}
	}
	if labels != "" {
		if err := export.ExportLabels(labels, result); err != nil {
			return fmt.Errorf("label export: %w", err)
		}
	}
	if dxfPath != "" {
		if err := export.ExportDXF(dxfPath, result); err != nil {
			return fmt.Errorf("dxf export: %w", err)
		}
	}
	return nil
}

func updateInventory(path string, result model.OptimizationResult, consume, keepOffcuts bool) error {
	if path == "" {
		return fmt.Errorf("--consume and --keep-offcuts need --inventory")
	}
	inv, err := project.LoadInventory(path)
	if err != nil {
		return err
	}
	if keepOffcuts {
		n := inv.AddOffcuts(result)
		klog.V(1).InfoS("Stocked offcuts", "inventory", path, "count", n)
	}
	if consume {
		inv.Consume(result.PanelsUsed)
	}
	return project.SaveInventory(path, inv)
}

func newCompareCommand() *cobra.Command {
	var in inputOptions

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare strategies and kerf widths on the same piece list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			job, err := in.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			strategy, kerf, settings, err := runSettings(cmd.Flags(), cfg, job)
			if err != nil {
				return err
			}

			records := normalize(cmd.ErrOrStderr(), job)
			results, err := engine.New(settings).CompareScenarios(cmd.Context(),
				engine.BuildDefaultScenarios(strategy, kerf), records.Pieces, records.Panels)
			if err != nil {
				return err
			}
			printComparison(cmd.OutOrStdout(), results)
			return nil
		},
	}
	in.addFlags(cmd.Flags())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the optimizer over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}

			opt := engine.New(cfg.Settings())
			if cfg.Cache.Enabled {
				opt.WithCache(engine.NewCache(cfg.Cache.Size, cfg.Cache.TTL))
			}
			opts := server.Options{
				Strategy:  cfg.DefaultStrategy(),
				KerfWidth: cfg.KerfWidth,
				Timeout:   cfg.Timeout,
			}
			if cfg.Server.Metrics {
				reg := prometheus.NewRegistry()
				reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				opt.WithRecorder(telemetry.NewMetrics(reg))
				opts.Gatherer = reg
			}

			return server.New(opt, opts).Run(cmd.Context(), cfg.Server.Addr)
		},
	}
}

func newInventoryCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "List or extend the panel inventory kept between jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := project.LoadInventory(path)
			if err != nil {
				return err
			}
			printInventory(cmd.OutOrStdout(), inv)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&path, "file", "", "Inventory file (default ~/.panelcut/inventory.json)")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if path != "" {
			return nil
		}
		var err error
		path, err = project.DefaultInventoryPath()
		return err
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add FILE...",
		Short: "Import panels from CSV or XLSX files into the inventory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := project.LoadInventory(path)
			if err != nil {
				return err
			}
			for _, file := range args {
				res := importer.ImportFile(file, importer.KindPanels)
				reportImport(cmd.ErrOrStderr(), file, res)
				added := inv.Merge(res.Panels)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: added %d of %d panels\n", file, added, len(res.Panels))
			}
			return project.SaveInventory(path, inv)
		},
	})
	return cmd
}

func printResult(w io.Writer, result model.OptimizationResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "PANEL\tSIZE\tPIECES\tCUTS\tCUT LENGTH\tEFFICIENCY\tOFFCUTS\n")
	var offcutArea float64
	for _, plan := range result.CuttingPlans {
		fmt.Fprintf(tw, "%s\t%.0fx%.0f\t%d\t%d\t%.0f mm\t%.1f%%\t%d\n",
			plan.PanelInstanceID, plan.PanelWidth, plan.PanelHeight,
			len(plan.Placements), len(plan.Cuts), plan.CuttingLength, plan.Efficiency, len(plan.Offcuts))
		offcutArea += model.TotalOffcutArea(plan.Offcuts)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nstrategy %s, kerf %.1f mm: %d panels, efficiency %.2f%%, waste %.2f%%, cost %.2f, cutting length %.0f mm\n",
		result.Strategy, result.KerfWidth, len(result.CuttingPlans), result.Efficiency,
		result.WastePercentage, result.TotalCost, result.TotalCuttingLength)
	if offcutArea > 0 {
		fmt.Fprintf(w, "reusable offcuts: %.2f m²\n", offcutArea/1e6)
	}

	if result.Complete() {
		return
	}
	fmt.Fprintf(w, "\n%d pieces not placed:\n", len(result.UnplacedPieces))
	counts := result.UnplacedByReason()
	for _, reason := range []model.Reason{
		model.ReasonPieceTooLarge,
		model.ReasonMaterialMismatch,
		model.ReasonGrainMismatch,
		model.ReasonInsufficientStock,
		model.ReasonCancelled,
	} {
		if n := counts[reason]; n > 0 {
			fmt.Fprintf(w, "  %-18s %d\n", reason, n)
		}
	}
}

// printPurchase estimates the extra panels needed for the units that ran out
// of stock, using the panel type the run relied on most.
func printPurchase(w io.Writer, result model.OptimizationResult, panels []model.Panel, wastePercent float64) {
	panel, ok := purchasePanel(result, panels)
	if !ok {
		return
	}
	est := model.EstimatePurchase(result.UnplacedPieces, panel, result.KerfWidth, wastePercent)
	if est.Units == 0 {
		return
	}
	fmt.Fprintf(w, "\nto place the %d units short of stock, buy about %d more %s (%.0fx%.0f, %.0f%% waste allowance, cost %.2f)\n",
		est.Units, est.PanelsWithWaste, panel.ID, panel.Width, panel.Height, wastePercent, est.EstimatedCost)
}

func purchasePanel(result model.OptimizationResult, panels []model.Panel) (model.Panel, bool) {
	var best model.Panel
	found := false
	for _, p := range panels {
		if !found {
			best, found = p, true
			continue
		}
		used, bestUsed := result.PanelsUsed[p.ID], result.PanelsUsed[best.ID]
		if used > bestUsed || (used == bestUsed && p.Area() > best.Area()) {
			best = p
		}
	}
	return best, found
}

func printComparison(w io.Writer, results []engine.ComparisonResult) {
	best := engine.BestScenario(results)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "\tSCENARIO\tPANELS\tCUTS\tWASTE\tCOST\tUNPLACED\n")
	for i, r := range results {
		mark := ""
		if i == best {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.1f%%\t%.2f\t%d\n",
			mark, r.Scenario.Name, r.PanelsUsed, r.TotalCuts, r.WastePercent, r.TotalCost, r.UnplacedCount)
	}
	tw.Flush()
}

func printInventory(w io.Writer, inv project.Inventory) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tLABEL\tSIZE\tMATERIAL\tSTOCK\tPRICE/M2\n")
	for _, p := range inv.Panels {
		fmt.Fprintf(tw, "%s\t%s\t%gx%g\t%s\t%d\t%.2f\n",
			p.ID, p.Label, p.Width, p.Height, strings.TrimSpace(p.Material), p.StockQuantity, p.PricePerArea)
	}
	tw.Flush()
}
