package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"birch_go/pkg/gc"
	"birch_go/pkg/heap"
	"birch_go/pkg/parser"
	"birch_go/pkg/rtconfig"
	"birch_go/pkg/rtlog"
	"birch_go/pkg/rtsignal"
)

// flags mirrors the teacher's package-level flag.* variables, moved
// into a struct since cobra binds them per-command rather than to
// globals.
type flags struct {
	evalExpr    string
	encoding    string
	keepSrcRefs bool
	verbose     bool

	profile         bool
	memReportPath   string
	memReportAppend bool
	memReportMinB   int64

	gcMemGrow      int
	gcGrowFrac     float64
	gcGrowIncrFrac float64
	gcTorture      int
	gcTortureWait  int
	gcTortureNoRel bool
	failOnError    bool
	usePipeBind    bool
	hashPrecious   bool
}

func rootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "birch [file]",
		Short: "Parse birch source into its heap expression graph",
		Long: "birch parses one or more birch-language files (or a single -e\n" +
			"expression, or stdin) and prints the resulting expression graph.\n" +
			"There is no evaluator: this is a driver for the heap/GC/parser core.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBirch(cmd, f, args)
		},
	}

	cmd.Flags().StringVarP(&f.evalExpr, "eval", "e", "", "parse an inline expression instead of a file")
	cmd.Flags().StringVar(&f.encoding, "encoding", "", "declare the input's encoding (default native/UTF-8 detection)")
	cmd.Flags().BoolVar(&f.keepSrcRefs, "keep-srcrefs", true, "attach source references to parsed expressions")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "print each expression's status alongside its value")

	cmd.Flags().BoolVar(&f.profile, "profile", false, "print memory_profile()'s counters after parsing")
	cmd.Flags().StringVar(&f.memReportPath, "mem-report", "", "write mem_report() to this file after parsing")
	cmd.Flags().BoolVar(&f.memReportAppend, "mem-report-append", false, "append to --mem-report instead of truncating")
	cmd.Flags().Int64Var(&f.memReportMinB, "mem-report-threshold-bytes", 0, "skip mem_report rows under this byte total")

	cmd.Flags().IntVar(&f.gcMemGrow, "gc-mem-grow", 0, "R_GC_MEM_GROW preset (0..3)")
	cmd.Flags().Float64Var(&f.gcGrowFrac, "gc-growfrac", 0, "R_GC_GROWFRAC override")
	cmd.Flags().Float64Var(&f.gcGrowIncrFrac, "gc-growincrfrac", 0, "R_GC_GROWINCRFRAC override")
	cmd.Flags().IntVar(&f.gcTorture, "gctorture", 0, "R_GCTORTURE: force a full GC every N allocations (0 disables)")
	cmd.Flags().IntVar(&f.gcTortureWait, "gctorture-wait", 0, "R_GCTORTURE_WAIT: allocations before torture activates")
	cmd.Flags().BoolVar(&f.gcTortureNoRel, "gctorture-inhibit-release", false, "R_GCTORTURE_INHIBIT_RELEASE")
	cmd.Flags().BoolVar(&f.failOnError, "fail-on-error", false, "_R_GC_FAIL_ON_ERROR_: abort instead of warn on a GC invariant violation")
	cmd.Flags().BoolVar(&f.usePipeBind, "use-pipebind", false, "_R_USE_PIPEBIND_: enable the => pipe-bind grammar")
	cmd.Flags().BoolVar(&f.hashPrecious, "hash-precious", true, "R_HASH_PRECIOUS: use the bucketed preserve list")

	return cmd
}

// applyFlagOverrides pushes any flag the user actually set onto the
// matching environment variable, then reloads pkg/rtconfig so the
// heap it builds sees them — flags are sugar over the same env-var
// surface a host could set directly, not a second source of truth.
func applyFlagOverrides(cmd *cobra.Command, f *flags) rtconfig.Config {
	set := cmd.Flags().Changed
	if set("gc-mem-grow") {
		os.Setenv("R_GC_MEM_GROW", strconv.Itoa(f.gcMemGrow))
	}
	if set("gc-growfrac") {
		os.Setenv("R_GC_GROWFRAC", strconv.FormatFloat(f.gcGrowFrac, 'g', -1, 64))
	}
	if set("gc-growincrfrac") {
		os.Setenv("R_GC_GROWINCRFRAC", strconv.FormatFloat(f.gcGrowIncrFrac, 'g', -1, 64))
	}
	if set("gctorture") {
		os.Setenv("R_GCTORTURE", strconv.Itoa(f.gcTorture))
	}
	if set("gctorture-wait") {
		os.Setenv("R_GCTORTURE_WAIT", strconv.Itoa(f.gcTortureWait))
	}
	if set("gctorture-inhibit-release") {
		os.Setenv("R_GCTORTURE_INHIBIT_RELEASE", strconv.FormatBool(f.gcTortureNoRel))
	}
	if set("fail-on-error") {
		os.Setenv("_R_GC_FAIL_ON_ERROR_", strconv.FormatBool(f.failOnError))
	}
	if set("use-pipebind") {
		os.Setenv("_R_USE_PIPEBIND_", strconv.FormatBool(f.usePipeBind))
	}
	if set("hash-precious") {
		os.Setenv("R_HASH_PRECIOUS", strconv.FormatBool(f.hashPrecious))
	}
	return rtconfig.Reload()
}

func runBirch(cmd *cobra.Command, f *flags, args []string) error {
	cfg := applyFlagOverrides(cmd, f)
	h := gc.New(cfg, gc.DefaultBudget)

	stop := rtsignal.Watch(func() {
		rtlog.Sugar().Info("birch: shutting down, running exit finalizers")
		h.RunExitFinalizers(logPanic)
	})
	defer stop()
	defer h.RunExitFinalizers(logPanic)

	input, filename, err := readInput(f, args)
	if err != nil {
		return err
	}

	if strings.TrimSpace(input) == "" {
		return runREPL(cmd, f, h)
	}

	out := cmd.OutOrStdout()
	opts := parser.Options{Encoding: f.encoding, KeepSrcRefs: f.keepSrcRefs}
	if err := parseAndPrint(out, h, []byte(input), filename, opts, f.verbose); err != nil {
		return err
	}

	if f.profile {
		printProfile(out, h)
	}
	if f.memReportPath != "" {
		if err := h.MemReport(f.memReportPath, f.memReportAppend, f.memReportMinB); err != nil {
			return err
		}
	}
	return nil
}

// readInput resolves -e, a single file argument, or stdin, in that
// order, mirroring the teacher's main() precedence.
func readInput(f *flags, args []string) (input, filename string, err error) {
	switch {
	case f.evalExpr != "":
		return f.evalExpr, "<expr>", nil
	case len(args) > 0:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", fmt.Errorf("reading %s: %w", args[0], err)
		}
		return string(data), args[0], nil
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), "<stdin>", nil
	}
}

// parseAndPrint runs parser.Next in a loop (rather than the one-shot
// parser.ParseMany) so the driver can flush warnings and call GCLite
// between top-level statements — the incremental-collection niche
// gc_lite exists for.
func parseAndPrint(out io.Writer, h *gc.Heap, src []byte, filename string, opts parser.Options, verbose bool) error {
	p, err := parser.New(h, src, filename, opts)
	if err != nil {
		return err
	}
	defer p.Finish()

	for {
		expr, status, err := p.Next()
		if err != nil {
			return err
		}
		switch status {
		case parser.StatusEof:
			for _, w := range p.Warnings().Flush() {
				fmt.Fprintf(out, "warning: %v\n", w)
			}
			return nil
		case parser.StatusNull:
			continue
		default:
			if verbose {
				fmt.Fprintf(out, "[%s] %s\n", status, expr.String())
			} else {
				fmt.Fprintln(out, expr.String())
			}
			h.GCLite()
		}
	}
}

func printProfile(out io.Writer, h *gc.Heap) {
	p := h.MemoryProfile()
	fmt.Fprintf(out, "non-vector: new=%d old=%d free=%d\n", p.NonVectorNew, p.NonVectorOld, p.NonVectorFree)
	fmt.Fprintf(out, "vec1: new=%d old=%d free=%d\n", p.Vec1New, p.Vec1Old, p.Vec1Free)
	fmt.Fprintf(out, "vec2: new=%d old=%d free=%d\n", p.Vec2New, p.Vec2Old, p.Vec2Free)
	fmt.Fprintf(out, "vec3: new=%d old=%d free=%d\n", p.Vec3New, p.Vec3Old, p.Vec3Free)
	fmt.Fprintf(out, "vec4: new=%d old=%d free=%d\n", p.Vec4New, p.Vec4Old, p.Vec4Free)
	fmt.Fprintf(out, "vec5: new=%d old=%d free=%d\n", p.Vec5New, p.Vec5Old, p.Vec5Free)
	fmt.Fprintf(out, "large: count=%d bytes=%d\n", p.LargeVectorCount, p.LargeVectorBytes)
	fmt.Fprintf(out, "full GCs: %d   nodes in use: %d   vector units in use: %d\n",
		p.FullGCCount, p.NodesInUseTotal, p.VectorUnitsInUse)
}

func logPanic(value *heap.Cell, recovered interface{}) {
	rtlog.Sugar().Errorw("finalizer panicked", "value", value.String(), "recovered", recovered)
}

// runREPL reads birch source line by line, accumulating a pending
// buffer across INCOMPLETE parses so a construct split over several
// lines (an open paren, an unfinished if/else) can still be completed
// interactively — there is no evaluator, so "running" a line only
// means parsing and printing it.
func runREPL(cmd *cobra.Command, f *flags, h *gc.Heap) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "birch — parser/heap driver (no evaluator)")
	fmt.Fprintln(out, "Type 'help' for commands, 'quit' to exit.")
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(os.Stdin)
	var pending strings.Builder

	for {
		if pending.Len() > 0 {
			fmt.Fprint(out, "+ ")
		} else {
			fmt.Fprint(out, "birch> ")
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if pending.Len() == 0 {
			switch strings.TrimSpace(line) {
			case "quit", "exit":
				return nil
			case "help":
				printREPLHelp(out)
				continue
			case "profile":
				printProfile(out, h)
				continue
			case "":
				continue
			}
		}
		pending.WriteString(line)
		pending.WriteString("\n")

		opts := parser.Options{Encoding: f.encoding, KeepSrcRefs: true}
		p, err := parser.New(h, []byte(pending.String()), "<stdin>", opts)
		if err != nil {
			fmt.Fprintf(out, "lex error: %v\n", err)
			pending.Reset()
			continue
		}

		incomplete := false
		for {
			expr, status, err := p.Next()
			if err != nil {
				if status == parser.StatusIncomplete {
					incomplete = true
					break
				}
				fmt.Fprintf(out, "parse error: %v\n", err)
				break
			}
			if status == parser.StatusEof {
				break
			}
			if status == parser.StatusNull {
				continue
			}
			fmt.Fprintln(out, expr.String())
		}
		p.Finish()
		for _, w := range p.Warnings().Flush() {
			fmt.Fprintf(out, "warning: %v\n", w)
		}

		if incomplete {
			continue
		}
		pending.Reset()
		h.GCLite()
	}
	return nil
}

func printREPLHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  quit, exit   leave the REPL")
	fmt.Fprintln(out, "  help         show this message")
	fmt.Fprintln(out, "  profile      print memory_profile() counters")
	fmt.Fprintln(out, "Anything else is parsed as birch source.")
}
