package cmd

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/isometry/dirconv/internal/config"
	"github.com/isometry/dirconv/internal/format"
	"github.com/isometry/dirconv/internal/interchange"
)

func addInputFlags(f *pflag.FlagSet) {
	f.String("from", "", "Input format: ldif, dsml, dsml2 or json (default ldif)")
	f.Int("from-version", 0, "Input format version (dsml: 1 or 2)")
	f.StringP("in", "i", "", `Input file, "-" for stdin (default "-")`)

	f.StringSlice("binary", nil, "Additional attributes to treat as binary")
	f.StringSlice("exclude", nil, "Attributes to drop")
	f.StringSlice("include", nil, "Attributes to keep (all when empty)")
	f.Bool("no-default-binary", false, "Do not treat jpegPhoto, objectGUID, ... as binary by default")
}

func addOutputFlags(f *pflag.FlagSet) {
	f.String("to", "", "Output format: ldif, dsml, dsml2 or json (default ldif)")
	f.Int("to-version", 0, "Output format version (dsml: 1 or 2)")
	f.StringP("out", "o", "", `Output file, "-" for stdout (default "-")`)

	f.String("line-ending", "", "Line ending: crlf or lf (default crlf)")
	f.Int("fold-width", 0, "LDIF line fold width (default 77)")
	f.Bool("no-fold", false, "Disable LDIF line folding")
	f.Bool("include-version", false, `Write "version: 1" at the start of LDIF output`)
	f.Bool("values-to-files", false, "Spool every LDIF value to a file and reference it by URL")
	f.String("spool-dir", "", "Directory for spooled values (default \".\")")

	f.Bool("kind-aware", false, "Write DSML v2 delRequest, modifyRequest and modDNRequest elements")
	f.String("request-id", "", "DSML v2 batchRequest requestID")
	f.Bool("generate-request-id", false, "Generate a random DSML v2 requestID")
}

// resolveInput overlays input flags on the config file settings.
func (a *app) resolveInput(cmd *cobra.Command) *config.Config {
	f := NewFlagLoader(cmd, a.v)
	c := *a.cfg

	c.Input.Format = f.String("from", c.Input.Format)
	c.Input.Version = f.Int("from-version", c.Input.Version)
	c.Input.Path = f.String("in", c.Input.Path)

	c.Attributes.Binary = f.StringSlice("binary", c.Attributes.Binary)
	c.Attributes.Exclude = f.StringSlice("exclude", c.Attributes.Exclude)
	c.Attributes.Include = f.StringSlice("include", c.Attributes.Include)
	c.Attributes.NoDefaultBinary = f.Bool("no-default-binary", c.Attributes.NoDefaultBinary)
	return &c
}

// resolve overlays every conversion flag on the config file settings.
func (a *app) resolve(cmd *cobra.Command) (*config.Config, error) {
	f := NewFlagLoader(cmd, a.v)
	c := a.resolveInput(cmd)

	c.Output.Format = f.String("to", c.Output.Format)
	c.Output.Version = f.Int("to-version", c.Output.Version)
	c.Output.Path = f.String("out", c.Output.Path)

	c.LineEnding = f.String("line-ending", c.LineEnding)
	c.LDIF.FoldWidth = f.Int("fold-width", c.LDIF.FoldWidth)
	c.LDIF.NoFold = f.Bool("no-fold", c.LDIF.NoFold)
	c.LDIF.IncludeVersion = f.Bool("include-version", c.LDIF.IncludeVersion)
	c.LDIF.ValuesToFiles = f.Bool("values-to-files", c.LDIF.ValuesToFiles)
	c.LDIF.SpoolDir = f.String("spool-dir", c.LDIF.SpoolDir)

	c.DSML.KindAwareRequests = f.Bool("kind-aware", c.DSML.KindAwareRequests)
	c.DSML.RequestID = f.String("request-id", c.DSML.RequestID)
	c.DSML.GenerateRequestID = f.Bool("generate-request-id", c.DSML.GenerateRequestID)

	return c, c.Validate()
}

func openInput(cmd *cobra.Command, c *config.Config, opts *format.Options) (format.Reader, error) {
	desc, err := c.Input.Descriptor()
	if err != nil {
		return nil, err
	}
	if c.Input.Path == config.StdStream {
		return interchange.NewReader(desc, io.NopCloser(cmd.InOrStdin()), opts)
	}
	return interchange.Open(desc, c.Input.Path, opts)
}

func createOutput(cmd *cobra.Command, c *config.Config, opts *format.Options) (format.Writer, error) {
	desc, err := c.Output.Descriptor()
	if err != nil {
		return nil, err
	}
	if c.Output.Path == config.StdStream {
		// Hide Close so stdout stays open.
		return interchange.NewWriter(desc, struct{ io.Writer }{cmd.OutOrStdout()}, opts)
	}
	return interchange.Create(desc, c.Output.Path, opts)
}

func (a *app) newConvertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a directory data stream between formats",
		Long: `Convert reads records in one interchange format and writes them in another.

Example:
  dirconv convert --from ldif --in people.ldif --to dsml --to-version 2 --kind-aware`,
		Args: cobra.NoArgs,
		RunE: a.runConvert,
	}

	addInputFlags(cmd.Flags())
	addOutputFlags(cmd.Flags())
	return cmd
}

func (a *app) runConvert(cmd *cobra.Command, args []string) error {
	c, err := a.resolve(cmd)
	if err != nil {
		return err
	}

	opts := c.Options(a.ldapLogger())

	r, err := openInput(cmd, c, opts)
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := createOutput(cmd, c, opts)
	if err != nil {
		return err
	}

	a.logger.Debug().
		Str("from", c.Input.Format).
		Str("to", c.Output.Format).
		Str("in", c.Input.Path).
		Str("out", c.Output.Path).
		Msg("Starting conversion")

	_, err = interchange.Convert(cmd.Context(), r, w, interchange.WithLogger(a.ldapLogger()))
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return err
}
