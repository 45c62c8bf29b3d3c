// Package catalog holds the ordered species list that maps detector class ids
// to names, and the auxiliary per-species attribute table.
package catalog

import (
	"bufio"
	_ "embed"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"coral_detector/internal/detection"
)

//go:embed species.txt
var defaultSpecies string

var (
	// ErrEmptyCatalog is returned when a catalog source holds no names.
	ErrEmptyCatalog = errors.New("catalog has no species")
	// ErrDuplicateSpecies is returned when a name appears more than once.
	ErrDuplicateSpecies = errors.New("duplicate species name")
	// ErrInvalidName is returned for blank names and the reserved Unknown name.
	ErrInvalidName = errors.New("invalid species name")
)

// Catalog is an ordered, read-only list of species names indexed by class id.
// It is safe for concurrent use once constructed.
type Catalog struct {
	names     []string
	nameToIdx map[string]int
}

// New validates names and builds a Catalog. Class ids are positional, so a
// duplicated name is rejected rather than dropped: dropping it would shift
// every later index.
func New(names []string) (*Catalog, error) {
	if len(names) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		names:     make([]string, 0, len(names)),
		nameToIdx: make(map[string]int, len(names)),
	}
	seen := make(map[string]int, len(names))
	for i, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" || strings.EqualFold(name, detection.Unknown) {
			return nil, errors.Wrapf(ErrInvalidName, "entry %d: %q", i, raw)
		}
		key := strings.ToLower(name)
		if prev, ok := seen[key]; ok {
			return nil, errors.Wrapf(ErrDuplicateSpecies, "%q at entries %d and %d", name, prev, i)
		}
		seen[key] = i
		c.names = append(c.names, name)
		c.nameToIdx[name] = i
	}
	return c, nil
}

// Load reads one species name per line. Blank lines and lines starting with
// '#' are skipped and do not take up a class index.
func Load(r io.Reader) (*Catalog, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading species list")
	}
	return New(names)
}

// LoadFile reads a species list from path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Default returns the built-in coral species catalog.
func Default() *Catalog {
	c, err := Load(strings.NewReader(defaultSpecies))
	if err != nil {
		panic(errors.Wrap(err, "embedded species list"))
	}
	return c
}

// Len returns the number of species.
func (c *Catalog) Len() int {
	return len(c.names)
}

// Name returns the species for classID, or detection.Unknown when classID is
// outside the catalog.
func (c *Catalog) Name(classID int) string {
	if classID < 0 || classID >= len(c.names) {
		return detection.Unknown
	}
	return c.names[classID]
}

// Index returns the class id of name.
func (c *Catalog) Index(name string) (int, bool) {
	idx, ok := c.nameToIdx[name]
	return idx, ok
}

// Contains reports whether name is an entry of the catalog.
func (c *Catalog) Contains(name string) bool {
	_, ok := c.nameToIdx[name]
	return ok
}

// Names returns a copy of the species list in class-id order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}
