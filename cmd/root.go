package cmd

import (
	"context"
	"math"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"leagues_go/bnp"
	"leagues_go/dd"
	"leagues_go/lp"
	"leagues_go/model"
	"leagues_go/pricing"
)

// Input holds the command line options.
type Input struct {
	verbose         bool
	quiet           bool
	paramsPath      string
	writeParams     string
	output          string
	initialPath     string
	upperBound      int
	nThreads        int
	timeLimit       time.Duration
	cyclic          bool
	strongBranching int
	pricing         string
	populate        bool
	populateLimit   int
	warmStartWidth  int
}

// Execute is the entry point to running the CLI
func Execute(ctx context.Context, version string) {
	rootCmd := createRootCommand(ctx, &Input{}, version)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func createRootCommand(ctx context.Context, input *Input, version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "leagues",
		Short:        "Group sports teams into leagues with minimum travel",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&input.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&input.quiet, "quiet", "q", false, "only log warnings and errors")

	solveCmd := &cobra.Command{
		Use:   "solve <instance.json>",
		Short: "Solve an instance to optimality with branch-and-price",
		Args:  cobra.ExactArgs(1),
		RunE:  newSolveCommand(ctx, input),
	}
	flags := solveCmd.Flags()
	flags.StringVarP(&input.paramsPath, "params", "p", "bp.yaml", "parameters file (YAML or JSON); missing means defaults")
	flags.StringVar(&input.writeParams, "write-params", "", "write the effective parameters to this file")
	flags.StringVarP(&input.output, "output", "o", "", "solution file (default <instance>.sol.json)")
	flags.StringVarP(&input.initialPath, "initial", "i", "", "initial solution file")
	flags.IntVar(&input.upperBound, "upper-bound", 0, "known upper bound on the objective")
	flags.IntVarP(&input.nThreads, "threads", "t", 0, "number of worker threads")
	flags.DurationVar(&input.timeLimit, "time-limit", 0, "stop the search after this long")
	flags.BoolVar(&input.cyclic, "cyclic", false, "cyclic best-first node selection")
	flags.IntVar(&input.strongBranching, "strong-branching", 0, "candidate pairs solved per branching")
	flags.StringVar(&input.pricing, "pricing", "", "pricing strategy (heuristic, exact)")
	flags.BoolVar(&input.populate, "populate", false, "return several columns per exact pricing call")
	flags.IntVar(&input.populateLimit, "populate-limit", 0, "maximum columns per pricing call")
	flags.IntVar(&input.warmStartWidth, "warm-start-width", 0, "width of the decision diagram used for a first solution; 0 disables it")
	rootCmd.AddCommand(solveCmd)
	return rootCmd
}

func setupLogging(input *Input) {
	switch {
	case input.verbose:
		log.SetLevel(log.DebugLevel)
	case input.quiet:
		log.SetLevel(log.WarnLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

// loadParameters reads the parameters file and applies the flags the user
// set explicitly.
func loadParameters(input *Input, flags *pflag.FlagSet) (bnp.Parameters, error) {
	params, err := bnp.LoadParameters(input.paramsPath)
	if err != nil {
		return params, err
	}
	if flags.Changed("threads") {
		params.NThreads = input.nThreads
	}
	if flags.Changed("time-limit") {
		params.TimeLimit = input.timeLimit
	}
	if flags.Changed("cyclic") {
		params.CyclicBFS = input.cyclic
	}
	if flags.Changed("strong-branching") {
		params.StrongBranching = input.strongBranching
	}
	if flags.Changed("pricing") {
		strategy, err := pricing.ParseStrategy(input.pricing)
		if err != nil {
			return params, err
		}
		params.PricingStrategy = strategy
	}
	if flags.Changed("populate") {
		params.Populate = input.populate
	}
	if flags.Changed("populate-limit") {
		params.PopulateLimit = input.populateLimit
	}
	if flags.Changed("warm-start-width") {
		params.WarmStartWidth = input.warmStartWidth
	}
	return params, params.Validate()
}

func newSolveCommand(ctx context.Context, input *Input) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		setupLogging(input)
		params, err := loadParameters(input, cmd.Flags())
		if err != nil {
			return err
		}
		if input.writeParams != "" {
			if err := params.Write(input.writeParams); err != nil {
				return err
			}
		}

		problem, err := model.LoadProblem(args[0])
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"instance": problem.Name,
			"teams":    problem.NTeams(),
			"clubs":    len(problem.Clubs),
			"threads":  params.NThreads,
			"cyclic":   params.CyclicBFS,
			"pricing":  params.PricingStrategy,
			"strong":   params.StrongBranching,
		}).Info("executing branch-and-price")

		driver := bnp.NewDriver(problem, lp.NewGonumSolver(), params, log.StandardLogger())
		ub := math.MaxInt
		if input.upperBound > 0 {
			ub = input.upperBound
			driver.SetUpperBound(ub)
		}
		if input.initialPath != "" {
			initial, err := readSolution(problem, input.initialPath)
			if err != nil {
				return err
			}
			if err := driver.SetIncumbent(initial); err != nil {
				return err
			}
			ub = min(ub, initial.Objective)
			log.Infof("loaded initial solution with cost %d", initial.Objective)
		}
		if params.WarmStartWidth > 0 {
			sol, ok, err := dd.WarmStart(ctx, problem, params.WarmStartWidth, ub, log.StandardLogger())
			if err != nil {
				return err
			}
			if ok {
				if err := driver.SetIncumbent(sol); err != nil {
					return err
				}
				log.Infof("warm start solution with cost %d", sol.Objective)
			} else {
				log.Warn("warm start found no improving solution")
			}
		}

		res, err := driver.Solve(ctx)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"optimal":   res.Optimal,
			"lb":        res.LowerBound,
			"rootLB":    res.RootBound,
			"nodes":     res.Nodes,
			"runtime":   res.Runtime.Round(time.Millisecond),
			"objective": objective(res),
		}).Info("finished")
		if res.Solution == nil {
			return errors.Errorf("instance %s has no feasible solution", problem.Name)
		}
		if err := res.Solution.Validate(); err != nil {
			return errors.Wrap(err, "solver returned an invalid solution")
		}

		out := input.output
		if out == "" {
			out = strings.TrimSuffix(args[0], ".json") + ".sol.json"
		}
		if err := res.Solution.WriteFile(out); err != nil {
			return err
		}
		log.Infof("solution written to %s", out)
		return nil
	}
}

func readSolution(problem *model.Problem, path string) (*model.Solution, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer file.Close()
	return model.ReadSolution(problem, file)
}

func objective(res *bnp.Result) any {
	if res.Solution == nil {
		return "-"
	}
	return res.Solution.Objective
}
