package cli

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/tawqee/docstamp"
	"github.com/tawqee/docstamp/config"
	"github.com/tawqee/docstamp/listing"
	"github.com/tawqee/docstamp/store"
)

var (
	SignaturePath, CommentsPath, Departments, Signer string
	ConfigPath, FontPath                             string
	DPI                                              int
)

func SignCommand() {
	signFlags := flag.NewFlagSet("sign", flag.ExitOnError)

	signFlags.StringVar(&SignaturePath, "signature", "", "Path to the signature image")
	signFlags.StringVar(&CommentsPath, "comments", "", "Path to the comments image")
	signFlags.StringVar(&Departments, "departments", "", "Comma-separated department names")
	signFlags.StringVar(&Signer, "signer", "", "Name of the signatory")
	signFlags.StringVar(&ConfigPath, "config", "", "Path to a docstamp.conf file")
	signFlags.StringVar(&FontPath, "font", "", "Path to a TTF/OTF font for the department list")
	signFlags.IntVar(&DPI, "dpi", 0, "PDF rasterization DPI (overrides config)")

	signFlags.Usage = func() {
		fmt.Printf("Usage: %s sign [options] <input> <output>\n\n", os.Args[0])
		fmt.Println("Stamp a PDF, PNG, or JPEG file with signature artifacts")
		fmt.Println("\nOptions:")
		signFlags.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Printf("  %s sign -signature sig.png contract.pdf signed.pdf\n", os.Args[0])
		fmt.Printf("  %s sign -departments \"Finance,Legal\" scan.jpg signed.jpg\n", os.Args[0])
	}

	if err := signFlags.Parse(os.Args[2:]); err != nil {
		log.Printf("Failed to parse sign flags: %v", err)
		osExit(1)
	}

	if len(signFlags.Args()) < 2 {
		signFlags.Usage()
		osExit(1)
		return
	}

	if err := StampFile(signFlags.Arg(0), signFlags.Arg(1)); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		osExit(1)
	}
}

// StampFile runs a full signing pass against a file on disk, without a
// repository layer: the input is staged into an in-memory store, signed,
// and the stamped bytes written to the output path.
var StampFile = stampFileImpl

func stampFileImpl(input, output string) error {
	cfg := config.Default()
	if ConfigPath != "" {
		var err error
		if cfg, err = config.Load(ConfigPath); err != nil {
			return err
		}
	}
	if DPI > 0 {
		cfg.DPI = DPI
	}

	logger, err := BuildLogger(cfg.LogLevel, cfg.Env)
	if err != nil {
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	ctx := context.Background()
	st := store.NewMemoryStore()
	if err := st.WriteBlob(ctx, "input", data); err != nil {
		return err
	}
	if err := st.UpdateDocument(ctx, store.Document{ID: "doc", Status: store.StatusInReview}); err != nil {
		return err
	}
	att := store.Attachment{
		ID:           "att",
		DocumentID:   "doc",
		FileRef:      "input",
		OriginalName: filepath.Base(input),
		Version:      1,
	}
	if err := st.UpdateAttachment(ctx, att); err != nil {
		return err
	}

	opts := []docstamp.Option{
		docstamp.WithLogger(logger),
		docstamp.WithLayoutSpec(cfg.LayoutSpec()),
		docstamp.WithDPI(cfg.DPI),
	}

	fontFile := cfg.FontFile
	if FontPath != "" {
		fontFile = FontPath
	}
	if fontFile != "" {
		fontData, err := os.ReadFile(fontFile)
		if err != nil {
			return fmt.Errorf("failed to read font: %w", err)
		}
		renderer, err := listing.NewRenderer(fontData, listing.DefaultStyle())
		if err != nil {
			return err
		}
		opts = append(opts, docstamp.WithListRenderer(renderer))
	}

	engine, err := docstamp.New(st, opts...)
	if err != nil {
		return err
	}

	req := docstamp.SigningRequest{
		AttachmentID: "att",
		SignedBy:     Signer,
		Approved:     true,
	}
	if req.SignatureData, err = readArtifact(SignaturePath); err != nil {
		return err
	}
	if req.CommentsData, err = readArtifact(CommentsPath); err != nil {
		return err
	}
	if Departments != "" {
		req.Departments = strings.Split(Departments, ",")
	}

	if err := engine.Sign(ctx, req); err != nil {
		return err
	}

	signed, err := st.Attachment(ctx, "att")
	if err != nil {
		return err
	}
	out, err := st.ReadBlob(ctx, signed.FileRef)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, out, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	logger.Info("stamped file written",
		zap.String("input", input),
		zap.String("output", output),
		zap.Int("bytes", len(out)))
	return nil
}

// readArtifact loads an image file as the base64 payload the engine expects.
func readArtifact(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read artifact %s: %w", path, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
