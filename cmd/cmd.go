package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jmorganca/subword/api"
	"github.com/jmorganca/subword/envconfig"
	"github.com/jmorganca/subword/format"
	"github.com/jmorganca/subword/logutil"
	"github.com/jmorganca/subword/progress"
	"github.com/jmorganca/subword/server"
	"github.com/jmorganca/subword/tokenizer"
	"github.com/jmorganca/subword/version"
)

var errMissingText = errors.New("no text to tokenize: pass it as an argument or on stdin")

func buildOptions() tokenizer.BuildOptions {
	return tokenizer.BuildOptions{
		Sequential: envconfig.SequentialBuild(),
		Workers:    int(envconfig.BuildWorkers()),
	}
}

// loadTokenizer builds the tokenizer stored in dir and reports how long it
// took. A spinner is drawn on status while loading when it is a terminal.
func loadTokenizer(ctx context.Context, status io.Writer, dir string) (tokenizer.Tokenizer, time.Duration, error) {
	if f, ok := status.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		spinner := progress.NewSpinner(f, "loading "+dir, 100*time.Millisecond)
		defer spinner.Stop()
	}

	start := time.Now()
	tok, err := tokenizer.LoadFS(ctx, os.DirFS(dir), buildOptions())
	if err != nil {
		return nil, 0, fmt.Errorf("load %s: %w", dir, err)
	}

	elapsed := time.Since(start)
	slog.Debug("loaded tokenizer", "dir", dir, "type", tok.Type(), "vocab", tok.Vocabulary().Size(), "elapsed", elapsed)
	return tok, elapsed, nil
}

// readText returns the text argument, or stdin when no argument was given
// and stdin is not a terminal.
func readText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "", errMissingText
	}

	b, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}

	return strings.TrimSuffix(string(b), "\n"), nil
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("\t")
	if len(header) > 0 {
		table.SetHeader(header)
	}
	return table
}

func TokenizeHandler(cmd *cobra.Command, args []string) error {
	remote, _ := cmd.Flags().GetBool("remote")
	onlyIDs, _ := cmd.Flags().GetBool("ids")

	var resp api.TokenizeResponse
	if remote {
		text, err := readText(cmd, args)
		if err != nil {
			return err
		}

		client, err := api.ClientFromEnvironment()
		if err != nil {
			return err
		}

		r, err := client.Tokenize(cmd.Context(), &api.TokenizeRequest{Text: text})
		if err != nil {
			return err
		}
		resp = *r
	} else {
		if len(args) == 0 {
			return errors.New("missing tokenizer directory")
		}

		text, err := readText(cmd, args[1:])
		if err != nil {
			return err
		}

		tok, _, err := loadTokenizer(cmd.Context(), cmd.ErrOrStderr(), args[0])
		if err != nil {
			return err
		}

		resp.Tokens = tok.Tokenize(text)
		resp.IDs = make([]int32, len(resp.Tokens))
		for i, token := range resp.Tokens {
			resp.IDs[i] = tok.TokenToID(token)
		}
	}

	out := cmd.OutOrStdout()
	if onlyIDs {
		ids := make([]string, len(resp.IDs))
		for i, id := range resp.IDs {
			ids[i] = strconv.FormatInt(int64(id), 10)
		}
		_, err := fmt.Fprintln(out, strings.Join(ids, " "))
		return err
	}

	table := newTable(out, "TOKEN", "ID")
	for i, token := range resp.Tokens {
		table.Append([]string{strconv.Quote(token), strconv.FormatInt(int64(resp.IDs[i]), 10)})
	}
	table.Render()
	return nil
}

func DecodeHandler(cmd *cobra.Command, args []string) error {
	ids := make([]int32, 0, len(args)-1)
	for _, arg := range args[1:] {
		for field := range strings.FieldsFuncSeq(arg, func(r rune) bool { return r == ',' || r == ' ' }) {
			id, err := strconv.ParseInt(field, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid token id %q", field)
			}
			ids = append(ids, int32(id))
		}
	}

	tok, _, err := loadTokenizer(cmd.Context(), cmd.ErrOrStderr(), args[0])
	if err != nil {
		return err
	}

	text, err := tok.Decode(ids)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
	return err
}

func InspectHandler(cmd *cobra.Command, args []string) error {
	tok, elapsed, err := loadTokenizer(cmd.Context(), cmd.ErrOrStderr(), args[0])
	if err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("snapshot"); path != "" {
		b, err := tok.Snapshot()
		if err != nil {
			return err
		}

		if err := os.WriteFile(path, b, 0o644); err != nil {
			return err
		}
		slog.Info("wrote snapshot", "path", path, "size", format.HumanBytes(int64(len(b))))
	}

	printShowResponse(cmd.OutOrStdout(), server.Describe(tok, elapsed))
	return nil
}

func printShowResponse(out io.Writer, resp api.ShowResponse) {
	fmt.Fprintln(out, "  Tokenizer")
	table := newTable(out)
	table.AppendBulk([][]string{
		{"", "type", resp.Type},
		{"", "vocabulary", strconv.Itoa(resp.VocabSize)},
	})
	if resp.Type == tokenizer.TypeBPE {
		table.Append([]string{"", "merges", strconv.Itoa(resp.Merges)})
	}
	table.Append([]string{"", "build time", resp.LoadDuration.Round(time.Microsecond).String()})
	table.Render()

	if len(resp.SpecialTokens) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "  Special tokens")
		table := newTable(out)
		for _, kind := range slices.Sorted(maps.Keys(resp.SpecialTokens)) {
			special := resp.SpecialTokens[kind]
			table.Append([]string{"", kind, strconv.Quote(special.Content), strconv.FormatInt(int64(special.ID), 10)})
		}
		table.Render()
	}

	if len(resp.AddedTokens) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "  Added tokens")
		table := newTable(out)
		for _, added := range resp.AddedTokens {
			special := ""
			if added.Special {
				special = "special"
			}
			table.Append([]string{"", strconv.FormatInt(int64(added.ID), 10), strconv.Quote(added.Content), special})
		}
		table.Render()
	}
}

func ServeHandler(cmd *cobra.Command, args []string) error {
	host, err := envconfig.Host()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tok, elapsed, err := loadTokenizer(ctx, cmd.ErrOrStderr(), args[0])
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", host.Host)
	if err != nil {
		return err
	}

	return server.NewServer(tok, elapsed).Serve(ctx, ln)
}

func EnvHandler(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if example, _ := cmd.Flags().GetBool("example"); example {
		_, err := fmt.Fprint(out, envconfig.ExampleConfig())
		return err
	}

	vars := envconfig.AsMap()
	table := newTable(out, "NAME", "VALUE", "DESCRIPTION")
	for _, name := range slices.Sorted(maps.Keys(vars)) {
		v := vars[name]
		table.Append([]string{v.Name, fmt.Sprintf("%v", v.Value), v.Description})
	}
	table.Render()

	if path := envconfig.ConfigPath(); path != "" {
		fmt.Fprintf(out, "\nconfiguration file: %s\n", path)
	}
	return nil
}

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "subword",
		Short:   "BPE and Unigram tokenizer",
		Version: version.Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
			slog.SetDefault(logutil.NewLogger(cmd.ErrOrStderr(), envconfig.LogLevel()))
		},
	}

	cobra.EnableCommandSorting = false

	tokenizeCmd := &cobra.Command{
		Use:   "tokenize DIR [TEXT]",
		Short: "Split text into tokens",
		Long:  "Split text into tokens. Text is read from stdin when it is not given as an argument. With --remote the tokenizer of a running server is used and DIR is omitted.",
		Args:  cobra.ArbitraryArgs,
		RunE:  TokenizeHandler,
	}
	tokenizeCmd.Flags().Bool("ids", false, "Print only token ids")
	tokenizeCmd.Flags().Bool("remote", false, "Tokenize with the server at SUBWORD_HOST")

	decodeCmd := &cobra.Command{
		Use:   "decode DIR ID...",
		Short: "Convert token ids back to text",
		Args:  cobra.MinimumNArgs(1),
		RunE:  DecodeHandler,
	}

	inspectCmd := &cobra.Command{
		Use:   "inspect DIR",
		Short: "Show information about a tokenizer",
		Args:  cobra.ExactArgs(1),
		RunE:  InspectHandler,
	}
	inspectCmd.Flags().String("snapshot", "", "Write the canonical encoding of the built tokenizer to a file")

	serveCmd := &cobra.Command{
		Use:     "serve DIR",
		Aliases: []string{"start"},
		Short:   "Serve a tokenizer over HTTP",
		Args:    cobra.ExactArgs(1),
		RunE:    ServeHandler,
	}

	envCmd := &cobra.Command{
		Use:   "env",
		Short: "Show configuration",
		Args:  cobra.NoArgs,
		RunE:  EnvHandler,
	}
	envCmd.Flags().Bool("example", false, "Print an example configuration file")

	rootCmd.AddCommand(
		tokenizeCmd,
		decodeCmd,
		inspectCmd,
		serveCmd,
		envCmd,
	)

	return rootCmd
}
