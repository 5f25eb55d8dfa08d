package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/a3tai/mcp-pdf-forms/internal/pdf/verify"
)

func main() {
	os.Exit(run(afero.NewOsFs(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(fs afero.Fs, args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("pdf_inspect_forms", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	format := flags.String("format", "text", "Output format: text, json")
	page := flags.Int("page", 0, "Only list fields on this 1-based page")
	help := flags.Bool("help", false, "Show help message")
	flags.Usage = func() { printUsage(stderr, flags) }

	if err := flags.Parse(args); err != nil {
		return 2
	}
	if *help {
		printUsage(stdout, flags)
		return 0
	}
	if flags.NArg() != 1 {
		fmt.Fprintf(stderr, "Error: exactly one PDF file path required\n\n")
		printUsage(stderr, flags)
		return 2
	}

	path, err := filepath.Abs(flags.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	report, err := verify.ReadFile(fs, path)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading form fields: %v\n", err)
		return 1
	}
	if *page > 0 {
		report.Fields = onPage(report.Fields, *page)
	}

	switch *format {
	case "json":
		err = outputJSON(stdout, path, report)
	case "text":
		outputText(stdout, path, report)
	default:
		err = fmt.Errorf("unsupported output format: %s", *format)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintln(w, "PDF Inspect Forms - list the AcroForm fields of a PDF as a viewer would see them")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  pdf_inspect_forms [OPTIONS] <pdf_file>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OPTIONS:")
	fmt.Fprint(w, flags.FlagUsages())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "  pdf_inspect_forms lease-fillable.pdf")
	fmt.Fprintln(w, "  pdf_inspect_forms --format json --page 2 intake.pdf")
}

func onPage(fields []verify.Widget, page int) []verify.Widget {
	var out []verify.Widget
	for _, f := range fields {
		if f.Page == page {
			out = append(out, f)
		}
	}
	return out
}

// inspectResult is the JSON output document.
type inspectResult struct {
	FilePath   string `json:"file_path"`
	FieldCount int    `json:"field_count"`
	*verify.Report
}

func outputJSON(w io.Writer, path string, report *verify.Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(inspectResult{FilePath: path, FieldCount: len(report.Fields), Report: report})
}

func outputText(w io.Writer, path string, report *verify.Report) {
	fmt.Fprintf(w, "File: %s\n", path)
	fmt.Fprintf(w, "Pages: %d\n", report.PageCount)
	if len(report.Fields) == 0 {
		fmt.Fprintln(w, "No form fields found")
		return
	}
	fmt.Fprintf(w, "Fields: %d\n\n", len(report.Fields))
	for i, f := range report.Fields {
		fmt.Fprintf(w, "%d. %s\n", i+1, f.Name)
		fmt.Fprintf(w, "   Type: %s (%s)\n", f.Kind(), f.FieldType)
		fmt.Fprintf(w, "   Page: %d\n", f.Page)
		fmt.Fprintf(w, "   Rect: %s\n", f.Rect)
		if f.Required() {
			fmt.Fprintln(w, "   Required: yes")
		}
		if f.Value != "" {
			fmt.Fprintf(w, "   Value: %s\n", f.Value)
		}
		if f.AppearanceState != "" {
			fmt.Fprintf(w, "   State: %s\n", f.AppearanceState)
		}
		if f.Rotation != 0 {
			fmt.Fprintf(w, "   Rotation: %d\n", f.Rotation)
		}
	}
}
