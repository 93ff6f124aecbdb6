package boxkern

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"github.com/carvecad/carve/internal/geom"
	"github.com/carvecad/carve/internal/kernel"
)

// stepSchema versions the on-disk encoding. The box kernel stands in for
// a real STEP processor, so the file carries its own TOML payload rather
// than ISO 10303 part 21 records.
const stepSchema = "boxkern/1"

type stepDoc struct {
	Schema     string          `toml:"schema"`
	Min        []float64       `toml:"min"`
	Max        []float64       `toml:"max"`
	Treatments []stepTreatment `toml:"treatments,omitempty"`
}

type stepTreatment struct {
	Edge  int     `toml:"edge"`
	Kind  string  `toml:"kind"`
	Value float64 `toml:"value"`
}

// ExportSTEP writes the solid to path. Missing parent directories are
// created. Tags are a session concept and are not persisted.
func (k *Kernel) ExportSTEP(in kernel.Solid, path string) error {
	s, err := k.own(in)
	if err != nil {
		return fmt.Errorf("%w: %v", kernel.ErrIO, err)
	}

	doc := stepDoc{
		Schema: stepSchema,
		Min:    []float64{s.box.Min.X, s.box.Min.Y, s.box.Min.Z},
		Max:    []float64{s.box.Max.X, s.box.Max.Y, s.box.Max.Z},
	}
	for edge, t := range s.treatments {
		st := stepTreatment{Edge: edge, Value: t.value, Kind: "fillet"}
		if t.kind == treatChamfer {
			st.Kind = "chamfer"
		}
		doc.Treatments = append(doc.Treatments, st)
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", kernel.ErrIO, path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %v", kernel.ErrIO, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", kernel.ErrIO, err)
	}
	return nil
}

// ImportSTEP reads a solid previously written by ExportSTEP.
func (k *Kernel) ImportSTEP(path string) (kernel.Solid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kernel.ErrIO, err)
	}

	var doc stepDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", kernel.ErrIO, path, err)
	}
	if doc.Schema != stepSchema {
		return nil, fmt.Errorf("%w: unsupported schema %q in %s", kernel.ErrIO, doc.Schema, path)
	}
	if len(doc.Min) != 3 || len(doc.Max) != 3 {
		return nil, fmt.Errorf("%w: malformed extents in %s", kernel.ErrIO, path)
	}

	s := &solid{
		gen: k.nextGen(),
		box: geom.Box{
			Min: geom.Vec3{X: doc.Min[0], Y: doc.Min[1], Z: doc.Min[2]},
			Max: geom.Vec3{X: doc.Max[0], Y: doc.Max[1], Z: doc.Max[2]},
		},
		treatments: map[int]treatment{},
		tags:       map[uuid.UUID]kernel.Handle{},
	}
	if !s.box.IsValid() {
		return nil, fmt.Errorf("%w: degenerate extents in %s", kernel.ErrIO, path)
	}
	for _, st := range doc.Treatments {
		if st.Edge < 0 || st.Edge >= edgeCount {
			return nil, fmt.Errorf("%w: edge %d out of range in %s", kernel.ErrIO, st.Edge, path)
		}
		t := treatment{value: st.Value}
		switch st.Kind {
		case "fillet":
			t.kind = treatFillet
		case "chamfer":
			t.kind = treatChamfer
		default:
			return nil, fmt.Errorf("%w: unknown treatment %q in %s", kernel.ErrIO, st.Kind, path)
		}
		s.treatments[st.Edge] = t
	}
	s.computeMass()
	return s, nil
}
