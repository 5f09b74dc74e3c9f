// Command-line entry point for the ASTERIX decoder.
//
// Note about input formats
// ------------------------
// Recorded ASTERIX traffic shows up in two shapes in practice:
//  1. Hex text: one frame per line, whitespace between bytes tolerated
//     (the format most radar replay tools emit).
//  2. Raw binary: concatenated Data Blocks; each block carries its own
//     length in the header, so frames are split by walking LEN fields.
//
// The decode command autodetects hex lines via -input and takes raw capture
// files via -binary. Category specifications are embedded; -specs points at
// a directory of XML files to use instead.
package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"asterix_codec/internal/codec"
	"asterix_codec/internal/ingest"
	"asterix_codec/internal/schema"
	"asterix_codec/specs"
)

type decodeOut struct {
	Frame string              `json:"frame"`
	Block *codec.DecodedBlock `json:"block"`
}

type stats struct {
	Lines         int
	Frames        int
	Records       int
	InvalidBlocks int
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "asterix_decoder - commands:")
	fmt.Fprintln(w, "  decode      - decode frames (hex lines or raw binary) and output JSON")
	fmt.Fprintln(w, "  categories  - list the categories available for decoding")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  asterix_decoder decode -input frames.txt [-output out.json] [-pretty] [-stats]")
	fmt.Fprintln(w, "  asterix_decoder decode -binary capture.ast [-output out.json]")
	fmt.Fprintln(w, "  asterix_decoder categories [-specs dir]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - Hex input is one frame per line; whitespace between bytes is fine.")
	fmt.Fprintln(w, "  - Binary input is split by the LEN field of each Data Block header.")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "decode":
		runDecode(os.Args[2:])
	case "categories":
		runCategories(os.Args[2:])
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

// loadRegistry loads category specs from dir, or the embedded set when dir
// is empty.
func loadRegistry(dir string) (*schema.Registry, error) {
	if dir == "" {
		return schema.LoadAll(specs.Files)
	}
	return schema.LoadAll(os.DirFS(dir))
}

func runDecode(args []string) {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	inPath := fs.String("input", "", "Hex frame file, one frame per line (default: stdin)")
	binPath := fs.String("binary", "", "Raw binary capture file of concatenated Data Blocks")
	outPath := fs.String("output", "", "Output JSON file (default: stdout)")
	specDir := fs.String("specs", "", "Directory of category XML specs (default: embedded)")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	showStats := fs.Bool("stats", false, "Print basic counters to stderr")
	_ = fs.Parse(args)

	reg, err := loadRegistry(*specDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load specs: %v\n", err)
		os.Exit(1)
	}
	dec := codec.New(reg)

	var frames [][]byte
	st := &stats{}

	if *binPath != "" {
		data, err := os.ReadFile(*binPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read binary input: %v\n", err)
			os.Exit(1)
		}
		frames, err = splitBlocks(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to split capture: %v\n", err)
			os.Exit(1)
		}
	} else {
		var r io.Reader = os.Stdin
		if *inPath != "" {
			f, err := os.Open(*inPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to open input: %v\n", err)
				os.Exit(1)
			}
			defer f.Close()
			r = f
		}

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			st.Lines++
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			frame, err := ingest.DecodeFrame([]byte(line))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Line %d: %v\n", st.Lines, err)
				continue
			}
			frames = append(frames, frame)
		}
		if err := scanner.Err(); err != nil {
			fmt.Fprintf(os.Stderr, "Input read error: %v\n", err)
			os.Exit(1)
		}
	}

	out := make([]decodeOut, 0, len(frames))
	for _, frame := range frames {
		block := dec.Decode(frame)
		st.Frames++
		st.Records += len(block.Records)
		if !block.Valid {
			st.InvalidBlocks++
		}
		out = append(out, decodeOut{Frame: fmt.Sprintf("%X", frame), Block: block})
	}

	var wout io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		wout = f
	}

	enc, err := marshalJSON(out, *pretty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "JSON encode error: %v\n", err)
		os.Exit(1)
	}
	_, _ = wout.Write(enc)
	if wout == os.Stdout {
		_, _ = wout.Write([]byte("\n"))
	}

	if *showStats {
		fmt.Fprintf(os.Stderr,
			"stats: lines=%d frames=%d records=%d invalid_blocks=%d\n",
			st.Lines, st.Frames, st.Records, st.InvalidBlocks,
		)
	}
}

func runCategories(args []string) {
	fs := flag.NewFlagSet("categories", flag.ExitOnError)
	specDir := fs.String("specs", "", "Directory of category XML specs (default: embedded)")
	_ = fs.Parse(args)

	reg, err := loadRegistry(*specDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load specs: %v\n", err)
		os.Exit(1)
	}

	for _, n := range reg.Categories() {
		cat, err := reg.Category(n)
		if err != nil {
			continue
		}
		fmt.Printf("CAT%03d  %-50s edition %s  (%d items, %d variations)\n",
			cat.Cat, cat.Name, cat.Edition, len(cat.Items), len(cat.Variations))
	}
}

// splitBlocks walks the LEN fields of concatenated Data Blocks.
func splitBlocks(data []byte) ([][]byte, error) {
	var frames [][]byte
	for len(data) > 0 {
		if len(data) < 3 {
			return nil, fmt.Errorf("trailing %d bytes are not a data block header", len(data))
		}
		length := int(binary.BigEndian.Uint16(data[1:3]))
		if length < 3 || length > len(data) {
			return nil, fmt.Errorf("data block LEN %d out of range (remaining %d bytes)", length, len(data))
		}
		frames = append(frames, data[:length])
		data = data[length:]
	}
	return frames, nil
}

func marshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}
