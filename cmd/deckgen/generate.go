package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"deckforge/app/internal/app/bootstrap"
	"deckforge/app/internal/config"
	"deckforge/app/internal/deck"
	applog "deckforge/app/internal/log"
)

var generateCmd = &cobra.Command{
	Use:   "generate [title] [message] [output]",
	Short: "Generate a presentation and save it as JSON",
	Long: `Generate a presentation for a title and a content description. Without a title and
message the command asks for them interactively. The deck is written to OUTPUT_DIR.`,
	Args: cobra.MaximumNArgs(3),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().Duration("cleanup-debug", 0, "Remove debug files older than this duration before generating (e.g. 168h)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	verbose, _ := cmd.Flags().GetBool("verbose")
	cleanupAge, _ := cmd.Flags().GetDuration("cleanup-debug")

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "loading configuration")
	}

	title, message, outputFile, err := resolveInput(args, cmd.InOrStdin(), out)
	if err != nil {
		return err
	}
	if outputFile == "" {
		outputFile = defaultFilename(title, time.Now())
	}

	fmt.Fprintf(out, "Generating presentation: %q\n", title)
	fmt.Fprintf(out, "Description: %q\n", message)
	fmt.Fprintf(out, "Output will be saved to: %s\n\n", outputFile)

	logger := applog.Discard()
	if verbose {
		if logger, err = applog.NewLogger(cfg.LogLevel); err != nil {
			return eris.Wrap(err, "initialising logger")
		}
		logger.SetOutput(cmd.ErrOrStderr())
	}

	if cleanupAge > 0 {
		removed, err := deck.CleanupDebugFiles(cfg.DebugDir, cleanupAge, time.Now())
		if err != nil {
			logger.WithError(err).Warn("cleaning up debug files")
		} else if removed > 0 {
			fmt.Fprintf(out, "Removed %d old debug files.\n", removed)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core, err := bootstrap.BuildCore(ctx, bootstrap.Dependencies{Config: *cfg, Logger: logger})
	if err != nil {
		return eris.Wrap(err, "bootstrapping")
	}
	defer func() {
		if closeErr := core.Cleanup(); closeErr != nil {
			logger.WithError(closeErr).Error("closing database")
		}
	}()

	fmt.Fprintln(out, "Starting presentation generation...")
	fmt.Fprintln(out, "This may take several minutes depending on the complexity...")

	progress := deck.ObserverFunc(func(_ context.Context, status deck.Status) {
		fmt.Fprintf(out, "[%s] %s\n", status.Phase, status.Message)
	})

	_, result, err := core.Library.Generate(ctx, title, message, progress)
	if err != nil {
		return err
	}

	path, err := savePresentation(cfg.OutputDir, outputFile, result.Slides)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{"path": path, "slides": len(result.Slides)}).Info("presentation saved")
	printStatistics(out, path, result.Usage)
	return nil
}

// resolveInput takes title, message and output from args, prompting for the first two when
// fewer than two arguments are given.
func resolveInput(args []string, in io.Reader, out io.Writer) (string, string, string, error) {
	if len(args) >= 2 {
		output := ""
		if len(args) == 3 {
			output = args[2]
		}
		return strings.TrimSpace(args[0]), strings.TrimSpace(args[1]), output, nil
	}

	reader := bufio.NewReader(in)
	fmt.Fprintln(out, "Interactive Mode:")

	fmt.Fprint(out, "Enter presentation title: ")
	title, err := readLine(reader)
	if err != nil {
		return "", "", "", eris.Wrap(err, "reading title")
	}

	fmt.Fprint(out, "Enter presentation content description: ")
	message, err := readLine(reader)
	if err != nil {
		return "", "", "", eris.Wrap(err, "reading description")
	}

	return title, message, "", nil
}

func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil && !(eris.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func printStatistics(out io.Writer, path string, usage deck.UsageTotals) {
	fmt.Fprintln(out, "\nPresentation generation completed successfully!")
	fmt.Fprintf(out, "Saved to: %s\n", path)
	fmt.Fprintln(out, "Statistics:")
	fmt.Fprintf(out, "- Total tokens used: %d\n", usage.InputTokens+usage.OutputTokens)
	fmt.Fprintf(out, "  - Input tokens: %d\n", usage.InputTokens)
	fmt.Fprintf(out, "  - Output tokens: %d\n", usage.OutputTokens)
	fmt.Fprintf(out, "- Total cost: $%.4f\n", usage.Cost)
}

