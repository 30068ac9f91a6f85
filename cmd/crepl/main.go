package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/sunholo/crepl/internal/config"
	"github.com/sunholo/crepl/internal/repl"
)

var (
	// Version info - set by ldflags during build
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"

	// Color output
	red  = color.New(color.FgRed).SprintFunc()
	bold = color.New(color.Bold).SprintFunc()
)

func main() {
	var (
		versionFlag = flag.Bool("version", false, "Print version information")
		helpFlag    = flag.Bool("help", false, "Show help")
		configPath  = flag.String("config", "", "Path to a crepl.yaml config file")
		compiler    = flag.String("compiler", "", "Override the compiler binary")
		workdir     = flag.String("workdir", "", "Override the working directory")
	)

	flag.Parse()

	if *versionFlag {
		printVersion()
		return
	}

	if *helpFlag || flag.NArg() == 0 {
		printHelp()
		return
	}

	cfg, err := loadConfig(*configPath, *compiler, *workdir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		os.Exit(1)
	}

	command := flag.Arg(0)

	switch command {
	case "repl":
		runREPL(cfg)

	case "run":
		if flag.NArg() < 2 {
			fmt.Fprintf(os.Stderr, "%s: missing file argument\n", red("Error"))
			fmt.Println("Usage: crepl run <file.cpp>")
			os.Exit(1)
		}
		runFile(cfg, flag.Arg(1))

	case "version":
		printVersion()

	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command '%s'\n", red("Error"), command)
		printHelp()
		os.Exit(1)
	}
}

func loadConfig(path, compiler, workdir string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if compiler != "" {
		cfg.Compiler = compiler
	}
	if workdir != "" {
		cfg.WorkDir = workdir
	}
	return cfg, cfg.Validate()
}

func runREPL(cfg *config.Config) {
	r, err := repl.New(cfg, Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		os.Exit(1)
	}
	if err := r.Start(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		os.Exit(1)
	}
}

func runFile(cfg *config.Config, path string) {
	r, err := repl.New(cfg, Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		os.Exit(1)
	}
	defer r.Session().Close()
	if err := r.RunFile(path, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("crepl %s\n", bold(Version))
	if Commit != "unknown" {
		fmt.Printf("Commit: %s\n", Commit)
	}
	if BuildTime != "unknown" {
		fmt.Printf("Built:  %s\n", BuildTime)
	}
}

func printHelp() {
	fmt.Println(bold("crepl - an interactive compile-and-load loop for C++"))
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  crepl <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  repl              start an interactive session")
	fmt.Println("  run <file>        compile and load a script of fragments (split on '// ---')")
	fmt.Println("  version           print version information")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --config <path>   crepl.yaml config file")
	fmt.Println("  --compiler <bin>  compiler binary (default clang++)")
	fmt.Println("  --workdir <dir>   working directory (default .crepl)")
	fmt.Println()
	fmt.Println("Each fragment is parsed with libclang, rewritten into a shared")
	fmt.Println("module and loaded into this process; declarations stay visible")
	fmt.Println("to every later fragment.")
}
