package cmd

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dpipe/dpipe/internal/logger"
	"github.com/dpipe/dpipe/pkg/params"
	"github.com/dpipe/dpipe/pkg/pipeline"
	"github.com/dpipe/dpipe/pkg/template"
)

const (
	defaultPipelineFile = "pipeline.yml"
	defaultLogLevel     = "info"
	defaultBackend      = "concurrent"
	defaultConcurrency  = 4
	defaultReportsDir   = "dist"
)

var (
	workingDir string
	cfgFile    string
)

var rootCmd = &cobra.Command{
	Use: "dpipe",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	Short: "A declarative DAG pipeline compiler and runner",
	Long: `dpipe compiles a templated pipeline specification into a concrete,
cycle-free execution graph, then runs it honoring the data dependencies
inferred from the declared input and output paths of every node.

Run dpipe --help for more information`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	cobra.OnInitialize(initConfig, initLogLevel)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.config/.dpipe.yaml)")
	rootCmd.PersistentFlags().StringP("pipeline", "i", defaultPipelineFile,
		"Path to the pipeline specification document.")
	rootCmd.PersistentFlags().StringP("params", "p", "",
		"Path to the parameters document used to resolve $var(...) placeholders.")
	rootCmd.PersistentFlags().StringP("log-level", "l", defaultLogLevel,
		`Log level. Can be any standard log-level ("info", "debug", etc...)`)

	err := viper.BindPFlags(rootCmd.PersistentFlags())
	if err != nil {
		cobra.CheckErr(err)
	}

	rootCmd.AddCommand(versionCommand())
	rootCmd.AddCommand(compileCommand())
	rootCmd.AddCommand(runCommand())
	rootCmd.AddCommand(graphCommand())
	rootCmd.AddCommand(listCommand())
	rootCmd.AddCommand(checkCommand())
	rootCmd.AddCommand(docgenCommand())
}

func initConfig() {
	var err error

	workingDir, err = os.Getwd()
	cobra.CheckErr(err)

	viper.SetConfigType("yaml")

	if cfgFile != "" {
		// Use config file from the flag.
		setConfigFile(cfgFile)
	} else if val := os.Getenv("DPIPE_CONFIG"); val != "" {
		// Use config file from the env variable.
		setConfigFile(val)
	} else {
		// Add $HOME/.config and current directory as paths for Viper to search for the config file in.
		homeDir, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(path.Join(homeDir, ".config"))
		viper.AddConfigPath(workingDir)

		// Search config file with name ".dpipe.yaml" or ".dpipe.yml".
		viper.SetConfigName(".dpipe")
	}

	// Env vars starting with the DPIPE_ prefix can override any configuration.
	// e.g. DPIPE_LOG_LEVEL, DPIPE_REPORTS_DIR, etc...
	viper.SetEnvPrefix("dpipe")
	// Allows to override any sub-level in file config.
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// Read in environment variables that match.
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	err = viper.ReadInConfig()
	if err == nil {
		logger.Infof("Using config file: %s", viper.ConfigFileUsed())
	}
}

func initLogLevel() {
	logger.SetLevel(viper.GetString("log_level"))
}

func setConfigFile(name string) {
	_, err := os.Stat(name)
	if err != nil {
		cobra.CheckErr(fmt.Errorf("config file %q not found", name))
	}

	viper.SetConfigFile(name)
}

// hydrateOptsFromViper copies all the viper values into our config struct.
// The mapping between viper identifiers and struct field names
// is ensured by `mapstructure` struct tags.
func hydrateOptsFromViper(opts any) {
	_ = viper.Unmarshal(opts)
}

// bindPFlagsSnakeCase binds the flags with viper values. The identifier of the viper value
// is the name of the flag with dashes replaced by underscores. This is required so we can
// retrieve values from viper with the same behaviour with config coming from files
// (my_config: "value") or from flags (--my-config=value).
func bindPFlagsSnakeCase(flags *pflag.FlagSet) {
	flags.VisitAll(func(flag *pflag.Flag) {
		_ = viper.BindPFlag(strings.ReplaceAll(flag.Name, "-", "_"), flag)
	})
}

// compilePipeline loads the raw specification and parameters documents and
// resolves the former against the latter.
func compilePipeline(pipelineFile, paramsFile string) (*pipeline.Spec, error) {
	raw, err := pipeline.LoadRaw(pipelineFile)
	if err != nil {
		return nil, err
	}

	parameters := params.Empty()
	if paramsFile != "" {
		parameters, err = params.Load(paramsFile)
		if err != nil {
			return nil, err
		}
	}

	return template.Resolve(raw, parameters)
}
