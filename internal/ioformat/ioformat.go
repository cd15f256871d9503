package ioformat

import (
	"bytes"
	"os"

	"github.com/tacossynth/tacos/internal/mtl"
	"github.com/tacossynth/tacos/internal/synerr"
	"github.com/tacossynth/tacos/internal/ta"
)

// LoadPlant reads a plant file, accepting both the binary and the TOML
// encoding; the binary magic prefix is the discriminator.
func LoadPlant(path string) (*ta.Automaton, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, synerr.Wrapf(err, synerr.Configuration, "cannot read plant file %q", path)
	}
	if bytes.HasPrefix(data, plantMagic) {
		return UnmarshalPlant(data)
	}
	return parsePlantTOML(data)
}

// LoadSpec reads a specification file, accepting both encodings. The
// second result is the controller-owned action list the file declares;
// the CLI may extend it with -c flags.
func LoadSpec(path string) (*mtl.Formula, []ta.Symbol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, synerr.Wrapf(err, synerr.Configuration, "cannot read spec file %q", path)
	}
	if bytes.HasPrefix(data, specMagic) {
		return UnmarshalSpec(data)
	}
	return parseSpecTOML(data)
}

// WriteController writes the controller automaton to path in the binary
// plant format (same on-the-wire shape as the plant).
func WriteController(path string, a *ta.Automaton) error {
	data, err := MarshalPlant(a)
	if err != nil {
		return synerr.Wrap(err, synerr.Configuration, "cannot encode controller")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return synerr.Wrapf(err, synerr.Configuration, "cannot write controller file %q", path)
	}
	return nil
}
