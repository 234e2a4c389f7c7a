package main

import (
	"bytes"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/recbind/binary"
	"github.com/wippyai/recbind/bind"
	"github.com/wippyai/recbind/datum"
	"github.com/wippyai/recbind/schema"
)

func main() {
	var (
		schemaFile  = flag.String("schema", "", "Path to the schema (JSON, or YAML for .yaml/.yml)")
		dataFile    = flag.String("data", "", "Binary datum to decode")
		encodeFile  = flag.String("encode", "", "JSON value to encode")
		outFile     = flag.String("out", "", "Write encoded bytes to this file instead of hex on stdout")
		describe    = flag.Bool("describe", false, "Print the schema tree and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	if *schemaFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: recbind -schema <file> -data <file>")
		fmt.Fprintln(os.Stderr, "       recbind -schema <file> -encode <value.json> [-out file]")
		fmt.Fprintln(os.Stderr, "       recbind -schema <file> -describe")
		fmt.Fprintln(os.Stderr, "       recbind -schema <file> -i  (interactive mode)")
		os.Exit(1)
	}

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		logger = l
		bind.SetLogger(l.Named("bind"))
	}
	defer func() { _ = logger.Sync() }()

	s, err := loadSchema(*schemaFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("schema loaded", zap.String("file", *schemaFile), zap.String("type", s.TypeName()))

	switch {
	case *describe:
		printTree(os.Stdout, s)
	case *interactive:
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		err = runInteractive(*schemaFile, s)
	case *encodeFile != "":
		err = encode(s, *encodeFile, *outFile, logger)
	case *dataFile != "":
		err = decode(s, *dataFile, logger)
	default:
		printTree(os.Stdout, s)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadSchema(path string) (*schema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return schema.ParseYAML(data)
	default:
		return schema.Parse(data)
	}
}

func decode(s *schema.Schema, path string, logger *zap.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read data: %w", err)
	}
	dec := binary.NewBytesDecoder(data)
	v, err := datum.ReadAny(dec, s)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if rest := len(data) - dec.Position(); rest > 0 {
		logger.Warn("trailing bytes after datum", zap.Int("bytes", rest))
	}

	out, err := json.MarshalIndent(toJSON(v), "", "  ")
	if err != nil {
		return fmt.Errorf("format: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func encode(s *schema.Schema, path, outPath string, logger *zap.Logger) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read value: %w", err)
	}
	data, err := encodeJSON(s, raw)
	if err != nil {
		return err
	}
	logger.Debug("encoded", zap.Int("bytes", len(data)))

	if outPath == "" {
		fmt.Println(hex.EncodeToString(data))
		return nil
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// encodeJSON encodes a JSON document as a datum of schema s.
func encodeJSON(s *schema.Schema, raw []byte) ([]byte, error) {
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	var v any
	if err := d.Decode(&v); err != nil {
		return nil, fmt.Errorf("parse value: %w", err)
	}
	native, err := fromJSON(v, s, nil)
	if err != nil {
		return nil, err
	}
	enc := binary.GetEncoder()
	defer binary.PutEncoder(enc)
	if err := datum.WriteAny(enc, s, native); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return append([]byte(nil), enc.Bytes()...), nil
}

func printTree(w io.Writer, s *schema.Schema) {
	printNode(w, s, "", "", make(map[*schema.Schema]bool))
}

func printNode(w io.Writer, s *schema.Schema, indent, label string, seen map[*schema.Schema]bool) {
	line := indent + label + s.TypeName()
	if s.Kind.IsNamed() && seen[s] {
		fmt.Fprintln(w, line+" (see above)")
		return
	}
	if s.Kind.IsNamed() {
		seen[s] = true
	}

	switch s.Kind {
	case schema.Record:
		fmt.Fprintln(w, line)
		for _, f := range s.Fields {
			printNode(w, f.Type, indent+"  ", f.Name+": ", seen)
		}
	case schema.Enum:
		fmt.Fprintf(w, "%s {%s}\n", line, strings.Join(s.Symbols, ", "))
	case schema.Fixed:
		fmt.Fprintf(w, "%s [%d]\n", line, s.Size)
	case schema.Array:
		fmt.Fprintln(w, indent+label+"array")
		printNode(w, s.Items, indent+"  ", "items: ", seen)
	case schema.Map:
		fmt.Fprintln(w, indent+label+"map")
		printNode(w, s.Values, indent+"  ", "values: ", seen)
	case schema.Union:
		fmt.Fprintln(w, indent+label+"union")
		for i, b := range s.Branches {
			printNode(w, b, indent+"  ", fmt.Sprintf("%d: ", i), seen)
		}
	default:
		fmt.Fprintln(w, line)
	}
}
