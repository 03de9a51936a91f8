package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/asaidimu/go-n1ql/config"
	"github.com/asaidimu/go-n1ql/core/persistence"
	"github.com/asaidimu/go-n1ql/core/query"
	"github.com/asaidimu/go-n1ql/core/schema"
	"github.com/asaidimu/go-n1ql/couchbase"
	"github.com/asaidimu/go-n1ql/n1ql"
)

const connectionIdentity = "cli"

type flags struct {
	collection string
	namespace  string
	schemas    string
	options    string
	values     string
	remove     bool
	config     string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "n1qlc",
		Short:         "Compile query options into N1QL and run them against Couchbase",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&f.collection, "collection", "c", "", "collection (document type) to target")
	root.PersistentFlags().StringVarP(&f.schemas, "schemas", "s", "", "collection definitions file (JSON)")
	root.PersistentFlags().StringVarP(&f.options, "options", "o", "", "query options file (JSON), - for stdin")
	root.PersistentFlags().StringVar(&f.values, "values", "", "values file (JSON) for update and create")
	root.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "log compiled statements")

	compileCmd := &cobra.Command{
		Use:   "compile",
		Short: "Print the statement compiled from the options",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, f)
		},
	}
	compileCmd.Flags().StringVarP(&f.namespace, "namespace", "n", "default", "bucket the collection lives in")
	compileCmd.Flags().BoolVar(&f.remove, "delete", false, "compile a DELETE instead of a SELECT")

	execCmd := &cobra.Command{
		Use:       "exec find|create|update|destroy",
		Short:     "Run an operation through the adapter",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"find", "create", "update", "destroy"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, f, args[0])
		},
	}
	execCmd.Flags().StringVar(&f.config, "config", "", "connection config file (YAML, JSON or TOML)")

	queryCmd := &cobra.Command{
		Use:   "query STATEMENT",
		Short: "Run a raw statement and print the rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, f, args[0])
		},
	}
	queryCmd.Flags().StringVar(&f.config, "config", "", "connection config file (YAML, JSON or TOML)")

	root.AddCommand(compileCmd, execCmd, queryCmd)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func readOptions(cmd *cobra.Command, path string) (*query.Options, error) {
	if path == "" {
		return nil, nil
	}
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read options: %w", err)
	}
	return query.ParseOptions(data)
}

func readValues(path string) ([]schema.Document, error) {
	if path == "" {
		return nil, fmt.Errorf("--values is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read values: %w", err)
	}
	var many []schema.Document
	if err := json.Unmarshal(data, &many); err == nil {
		return many, nil
	}
	var one schema.Document
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("values must be a JSON object or array of objects: %w", err)
	}
	return []schema.Document{one}, nil
}

func loadRegistry(path string) (schema.Registry, error) {
	if path == "" {
		return schema.Registry{}, nil
	}
	defs, err := schema.LoadDefinitions(path)
	if err != nil {
		return nil, err
	}
	return schema.NewRegistry(defs...)
}

func runCompile(cmd *cobra.Command, f *flags) error {
	registry, err := loadRegistry(f.schemas)
	if err != nil {
		return err
	}
	var sc *schema.SchemaDefinition
	if f.schemas != "" {
		if sc, err = registry.Get(f.collection); err != nil {
			return err
		}
	}
	gen, err := n1ql.NewGenerator(f.collection, sc, f.namespace)
	if err != nil {
		return err
	}
	opts, err := readOptions(cmd, f.options)
	if err != nil {
		return err
	}

	var stmt query.Statement
	switch {
	case f.values != "":
		values, err := readValues(f.values)
		if err != nil {
			return err
		}
		if len(values) != 1 {
			return fmt.Errorf("update takes exactly one values object")
		}
		stmt, err = gen.BuildUpdate(opts, values[0])
		if err != nil {
			return err
		}
	case f.remove:
		if stmt, err = gen.BuildDelete(opts); err != nil {
			return err
		}
	default:
		if stmt, err = gen.BuildSelect(opts); err != nil {
			return err
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), stmt.Text)
	return nil
}

// connect registers a Couchbase connection built from the config file and
// the N1QL_* environment, and returns an adapter over it.
func connect(f *flags) (*persistence.Adapter, *persistence.ConnectionPool, error) {
	logger, err := newLogger(f.verbose)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(f.config, config.DefaultPrefix)
	if err != nil {
		return nil, nil, err
	}
	registry, err := loadRegistry(f.schemas)
	if err != nil {
		return nil, nil, err
	}
	store, err := couchbase.Connect(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	pool := persistence.NewConnectionPool()
	if err := pool.Register(store.Connection(connectionIdentity, cfg, registry)); err != nil {
		store.Close()
		return nil, nil, err
	}
	adapter, err := persistence.NewAdapter(pool, persistence.WithLogger(logger))
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return adapter, pool, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runExec(cmd *cobra.Command, f *flags, op string) error {
	if f.collection == "" {
		return fmt.Errorf("--collection is required")
	}
	opts, err := readOptions(cmd, f.options)
	if err != nil {
		return err
	}
	adapter, pool, err := connect(f)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var result any
	switch op {
	case "find":
		result, err = adapter.Find(ctx, connectionIdentity, f.collection, opts)
	case "destroy":
		result, err = adapter.Destroy(ctx, connectionIdentity, f.collection, opts)
	case "create":
		var values []schema.Document
		if values, err = readValues(f.values); err == nil {
			result, err = adapter.CreateEach(ctx, connectionIdentity, f.collection, values)
		}
	case "update":
		var values []schema.Document
		if values, err = readValues(f.values); err == nil {
			if len(values) != 1 {
				return fmt.Errorf("update takes exactly one values object")
			}
			result, err = adapter.Update(ctx, connectionIdentity, f.collection, opts, values[0])
		}
	default:
		return fmt.Errorf("unknown operation %q", op)
	}
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func runQuery(cmd *cobra.Command, f *flags, statement string) error {
	adapter, pool, err := connect(f)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	rows, err := adapter.Query(ctx, connectionIdentity, statement, 0)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), rows)
}
