// Package preset loads named option presets from an HCL file and layers
// them under the command line: a preset fills only the settings the user
// did not give explicitly, so "-use fast -o7" keeps the higher level.
package preset

import (
	"fmt"

	"github.com/psq/pngsquash/internal/config"
	"github.com/psq/pngsquash/internal/rangeset"
)

// Preset is one `preset "name" { ... }` block. Pointer fields distinguish
// "not mentioned" from an explicit value.
type Preset struct {
	Name      string `hcl:"name,label"`
	Level     *int   `hcl:"level,optional"`
	Interlace *int   `hcl:"interlace,optional"`
	Filters   string `hcl:"filters,optional"`
	ZLevels   string `hcl:"zlevels,optional"`

	Backup   *bool `hcl:"backup,optional"`
	Clobber  *bool `hcl:"clobber,optional"`
	Fix      *bool `hcl:"fix,optional"`
	Force    *bool `hcl:"force,optional"`
	Full     *bool `hcl:"full,optional"`
	NoBits   *bool `hcl:"nb,optional"`
	NoColor  *bool `hcl:"nc,optional"`
	NoPal    *bool `hcl:"np,optional"`
	NoRecode *bool `hcl:"nz,optional"`
	Preserve *bool `hcl:"preserve,optional"`
	Quiet    *bool `hcl:"quiet,optional"`
	Snip     *bool `hcl:"snip,optional"`
	Strip    *bool `hcl:"strip,optional"`
	Verbose  *bool `hcl:"verbose,optional"`
}

// File is the top-level structure of a preset file.
type File struct {
	Presets []*Preset `hcl:"preset,block"`
}

// Get finds a preset by name.
func (f *File) Get(name string) (*Preset, bool) {
	for _, p := range f.Presets {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Names lists the presets a file defines, in file order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Presets))
	for _, p := range f.Presets {
		names = append(names, p.Name)
	}
	return names
}

// Apply layers p under cfg. Fields the command line already set are left
// alone; everything else takes the preset's value. Value errors name the
// preset, since the mistake lives in the file, not on the command line.
func Apply(cfg *config.Config, p *Preset) error {
	if p.Level != nil {
		if *p.Level < 0 || *p.Level > 7 {
			return fmt.Errorf("preset %q: level %d out of range 0..7", p.Name, *p.Level)
		}
		if !cfg.OptLevel.IsSet() {
			cfg.OptLevel.Set(*p.Level)
		}
	}
	if p.Interlace != nil {
		if *p.Interlace < 0 || *p.Interlace > 1 {
			return fmt.Errorf("preset %q: interlace %d out of range 0..1", p.Name, *p.Interlace)
		}
		if !cfg.Interlace.IsSet() {
			cfg.Interlace.Set(*p.Interlace)
		}
	}
	if p.Filters != "" {
		s, err := rangeset.Parse(p.Filters, rangeset.FromRange(0, 5))
		if err != nil {
			return fmt.Errorf("preset %q: filters: %w", p.Name, err)
		}
		if cfg.Filters.Empty() {
			cfg.Filters = s
		}
	}
	if p.ZLevels != "" {
		s, err := rangeset.Parse(p.ZLevels, rangeset.FromRange(1, 9))
		if err != nil {
			return fmt.Errorf("preset %q: zlevels: %w", p.Name, err)
		}
		if cfg.ZLevels.Empty() {
			cfg.ZLevels = s
		}
	}

	applyBool(&cfg.Backup, p.Backup)
	applyBool(&cfg.Clobber, p.Clobber)
	applyBool(&cfg.Fix, p.Fix)
	applyBool(&cfg.Force, p.Force)
	applyBool(&cfg.Full, p.Full)
	applyBool(&cfg.NoBitDepth, p.NoBits)
	applyBool(&cfg.NoColor, p.NoColor)
	applyBool(&cfg.NoPalette, p.NoPal)
	applyBool(&cfg.NoRecoding, p.NoRecode)
	applyBool(&cfg.Preserve, p.Preserve)
	applyBool(&cfg.Quiet, p.Quiet)
	applyBool(&cfg.Snip, p.Snip)
	applyBool(&cfg.StripAll, p.Strip)
	applyBool(&cfg.Verbose, p.Verbose)
	return nil
}

// applyBool folds a preset flag into a config flag. Flags only ever turn
// features on, so a false in a preset cannot override the command line.
func applyBool(dst *bool, src *bool) {
	if src != nil && *src {
		*dst = true
	}
}
