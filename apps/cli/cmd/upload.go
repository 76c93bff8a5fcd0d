package cmd

import (
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/webservice/packages/webservice"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Upload files as multipart form data",
	Long: `POST one or more files as multipart form data to a path resolved
against the base address. Params are sent as form fields before the files.

Each --file is field=path, optionally followed by ;type=<media type>. The
media type defaults to the one registered for the file extension.

Examples:
  websvc upload avatars --file avatar=./me.png
  websvc upload documents --file doc=report.bin;type=application/pdf -p folder=inbox
  websvc upload documents --file doc=report.pdf --strict --progress`,
	Args: cobra.ExactArgs(1),
	RunE: uploadCommand,
}

var (
	fileFlags    []string
	strictFlag   bool
	progressFlag bool
)

func init() {
	addCallFlags(uploadCmd)
	uploadCmd.Flags().StringArrayVarP(&fileFlags, "file", "f", nil, "File part as field=path[;type=mime] (repeatable)")
	uploadCmd.Flags().BoolVar(&strictFlag, "strict", false, "Encode a standard multipart body instead of the legacy layout")
	uploadCmd.Flags().BoolVar(&progressFlag, "progress", false, "Print upload progress to stderr")
	_ = uploadCmd.MarkFlagRequired("file")
	registerCompletions(uploadCmd)
}

// parseFilePart reads the file named by a field=path[;type=mime] argument.
func parseFilePart(arg string) (webservice.MultipartPart, error) {
	field, rest, ok := strings.Cut(arg, "=")
	if !ok || field == "" || rest == "" {
		return webservice.MultipartPart{}, fmt.Errorf("invalid file %q: expected field=path", arg)
	}
	path, mimeType := rest, ""
	if p, opt, found := strings.Cut(rest, ";"); found {
		path = p
		t, ok := strings.CutPrefix(strings.TrimSpace(opt), "type=")
		if !ok || t == "" {
			return webservice.MultipartPart{}, fmt.Errorf("invalid file %q: expected ;type=<media type>", arg)
		}
		mimeType = t
	}
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(path))
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return webservice.MultipartPart{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return webservice.MultipartPart{
		Data:     data,
		Name:     field,
		FileName: filepath.Base(path),
		MimeType: mimeType,
	}, nil
}

func uploadCommand(cmd *cobra.Command, args []string) error {
	params, err := parseParams(paramFlags)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	callerHeaders, err := parseHeaders(headerFlags)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	parts := make([]webservice.MultipartPart, 0, len(fileFlags))
	for _, arg := range fileFlags {
		part, err := parseFilePart(arg)
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
		parts = append(parts, part)
	}
	schema, err := loadSchema(schemaFlag, schemaPathFlag)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	opts := sessionOptions{retryOn: retryOnFlag, logOut: cmd.ErrOrStderr()}
	if cmd.Flags().Changed("strict") {
		opts.strictMultipart = &strictFlag
	}
	s, err := newSession(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	formatter, err := newFormatter(outputFlag, cmd.OutOrStdout(), true, s.cfg.GetNoColor())
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress webservice.ProgressFunc
	if progressFlag {
		progress = func(fraction float32) {
			fmt.Fprintf(cmd.ErrOrStderr(), "\rUploading... %3.0f%%", fraction*100)
			if fraction >= 1 {
				fmt.Fprintln(cmd.ErrOrStderr())
			}
		}
	}

	mreq := &webservice.MultipartRequest{
		URL:     args[0],
		Parts:   parts,
		Params:  params,
		Headers: callerHeaders,
	}
	res := s.provider.UploadMultipart(ctx, mreq, progress).Result()

	var t tally
	e := checkResult(webservice.MethodPost, mreq.URL, res, schema)
	t.add(e)
	formatter.FormatResult(e)
	return finish(formatter, s, false, &t)
}
