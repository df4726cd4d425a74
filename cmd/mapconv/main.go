// mapconv runs Lua world-building scripts and writes the static maps they
// declare to a YAML map file.
package main

import (
	"fmt"
	"os"

	"github.com/geoworld/engine/internal/data"
	"github.com/geoworld/engine/internal/scripting"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: mapconv <script-dir> <output.yaml>")
		os.Exit(1)
	}
	if err := convert(os.Args[1], os.Args[2]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func convert(scriptDir, out string) error {
	eng := scripting.NewEngine(zap.NewNop())
	defer eng.Close()
	if err := eng.LoadDir(scriptDir); err != nil {
		return err
	}
	f := eng.Maps()
	// every declared map must build before anything is written
	for i, d := range f.Maps {
		if _, err := d.Build(); err != nil {
			return fmt.Errorf("map %d (%q): %w", i, d.Name, err)
		}
	}
	if err := data.SaveMapFile(out, f); err != nil {
		return err
	}
	fmt.Printf("Wrote %d static maps to %s\n", len(f.Maps), out)
	return nil
}
