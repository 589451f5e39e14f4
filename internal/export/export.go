package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"asset-sweep/internal/catalog"
)

// entry is the serialized form of one inventory row.
type entry struct {
	Path  string `json:"path"`
	Kind  string `json:"kind"`
	Depth int    `json:"depth"`
}

// WriteCSV writes the inventory as CSV with a header row.
func WriteCSV(w io.Writer, nodes []catalog.Node) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"path", "kind", "depth"}); err != nil {
		return err
	}
	for _, n := range nodes {
		if err := cw.Write([]string{n.Path, n.Kind.String(), strconv.Itoa(n.Depth())}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the inventory as an indented JSON array.
func WriteJSON(w io.Writer, nodes []catalog.Node) error {
	entries := make([]entry, 0, len(nodes))
	for _, n := range nodes {
		entries = append(entries, entry{Path: n.Path, Kind: n.Kind.String(), Depth: n.Depth()})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

// WriteFile writes the inventory to path, picking the format from the
// file extension (.csv or .json).
func WriteFile(path string, nodes []catalog.Node) error {
	var write func(io.Writer, []catalog.Node) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		write = WriteCSV
	case ".json":
		write = WriteJSON
	default:
		return fmt.Errorf("unsupported export extension %q (want .csv or .json)", filepath.Ext(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := write(f, nodes); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
