package main

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"lifelog/internal/config"
	"lifelog/internal/ingest"
	"lifelog/internal/media"
	"lifelog/internal/models"
)

type ingestFlags struct {
	text        string
	file        string
	contentType string
	source      string
	description string
	datetime    string
	key         string
	noProcess   bool
}

func newIngestCmd(cfg *config.Config, opts *outputOptions) *cobra.Command {
	flags := &ingestFlags{}

	cmd := &cobra.Command{
		Use:   "ingest [text...]",
		Short: "Store a note, photo, or recording and run the actions it implies",
		Long: `Store a note, photo, or recording and run the actions it implies.

Text can be given as arguments, with --text, or on stdin with --file -.
Markdown files may start with YAML front matter carrying description,
datetime, and source.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.text == "" && len(args) > 0 {
				flags.text = strings.Join(args, " ")
			}
			in, err := buildIngestInput(cmd.InOrStdin(), flags, cfg.Ingest.MaxPayloadBytes)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if flags.noProcess {
				m, err := a.media.Ingest(ctx, in)
				if err != nil {
					return err
				}
				if opts.structured() {
					return writeStructured(m)
				}
				return writePlain("%s\n", formatMediaLine(m))
			}

			o, err := a.orchestrator()
			if err != nil {
				return err
			}
			report, runErr := o.Ingest(ctx, in)
			if err := a.writeMetrics(opts.metricsFile); err != nil {
				return err
			}
			return finishReport(opts, report, runErr)
		},
	}

	cmd.Flags().StringVar(&flags.text, "text", "", "note text")
	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "file to ingest (- for stdin)")
	cmd.Flags().StringVar(&flags.contentType, "content-type", "", "content type (detected when omitted)")
	cmd.Flags().StringVar(&flags.source, "source", "", "ingest source (TXT_NOTE, FILE_UPLOAD, PHOTO, VIDEO_RECORDING, AUDIO_RECORDING)")
	cmd.Flags().StringVar(&flags.description, "description", "", "description to store with the media")
	cmd.Flags().StringVar(&flags.datetime, "datetime", "", "when it happened (RFC3339 or YYYY-MM-DD, default now)")
	cmd.Flags().StringVar(&flags.key, "key", "", "media key (generated when omitted)")
	cmd.Flags().BoolVar(&flags.noProcess, "no-process", false, "store only; skip interpretation and actions")

	return cmd
}

// finishReport prints a report. Processing errors are returned after the
// partial report is shown.
func finishReport(opts *outputOptions, report ingest.Report, runErr error) error {
	if report.Media.Key == "" {
		return runErr
	}
	var writeErr error
	if opts.structured() {
		writeErr = writeStructured(report)
	} else {
		writeErr = writeReport(report)
	}
	if runErr != nil {
		return runErr
	}
	return writeErr
}

func buildIngestInput(stdin io.Reader, flags *ingestFlags, maxBytes int64) (media.IngestInput, error) {
	in := media.IngestInput{
		Key:         strings.TrimSpace(flags.key),
		ContentType: strings.TrimSpace(flags.contentType),
		Description: flags.description,
	}
	if flags.source != "" {
		source, err := models.ParseIngestSource(flags.source)
		if err != nil {
			return in, err
		}
		in.Source = source
	}
	if flags.datetime != "" {
		when, err := parseDatetime(flags.datetime)
		if err != nil {
			return in, err
		}
		in.Datetime = when
	}

	switch {
	case flags.text != "" && flags.file != "":
		return in, fmt.Errorf("--text and --file are mutually exclusive")
	case flags.text != "":
		in.Payload = []byte(flags.text)
		if in.ContentType == "" {
			in.ContentType = "text/plain; charset=utf-8"
		}
		if in.Source == "" {
			in.Source = models.SourceTextNote
		}
	case flags.file != "":
		data, err := readPayload(stdin, flags.file, maxBytes)
		if err != nil {
			return in, err
		}
		in.Payload = data
		if flags.file != "-" {
			in.Filename = filepath.Base(flags.file)
			if in.ContentType == "" {
				in.ContentType = contentTypeForFile(flags.file)
			}
		}
		if isMarkdown(flags.file, in.ContentType) {
			if err := applyNoteFrontMatter(&in); err != nil {
				return in, err
			}
		}
		if in.Source == "" {
			in.Source = sourceForContentType(in.ContentType)
		}
	default:
		return in, fmt.Errorf("nothing to ingest: pass text, --text, or --file")
	}

	if int64(len(in.Payload)) > maxBytes {
		return in, fmt.Errorf("payload is %d bytes; limit is %d (ingest.max_payload_bytes)", len(in.Payload), maxBytes)
	}
	return in, nil
}

func readPayload(stdin io.Reader, path string, maxBytes int64) ([]byte, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	// One extra byte lets the size check see an oversized payload.
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func contentTypeForFile(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".md", ".markdown":
		return "text/md"
	case ".txt":
		return "text/plain"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".webm":
		// Voice memos; video uploads are not supported.
		return "audio/webm"
	}
	return mime.TypeByExtension(ext)
}

func isMarkdown(path, contentType string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown" || strings.HasPrefix(contentType, "text/md")
}

func applyNoteFrontMatter(in *media.IngestInput) error {
	meta, body, err := parseNote(string(in.Payload))
	if err != nil {
		return err
	}
	if err := meta.apply(&in.Description, &in.Datetime, &in.Source); err != nil {
		return err
	}
	in.Payload = []byte(body)
	return nil
}

func sourceForContentType(contentType string) models.IngestSource {
	category, err := media.Classify(contentType)
	if err != nil {
		return models.SourceFileUpload
	}
	switch category {
	case models.CategoryText:
		return models.SourceTextNote
	case models.CategoryImage:
		return models.SourcePhoto
	case models.CategoryAudio:
		return models.SourceAudioRecording
	}
	return models.SourceFileUpload
}

func newProcessCmd(cfg *config.Config, opts *outputOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "process <media-key>",
		Short: "Interpret stored media again and run the actions it implies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			o, err := a.orchestrator()
			if err != nil {
				return err
			}
			report, runErr := o.ProcessKey(ctx, args[0])
			if err := a.writeMetrics(opts.metricsFile); err != nil {
				return err
			}
			return finishReport(opts, report, runErr)
		},
	}
}

