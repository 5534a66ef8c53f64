package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Air is the block id every palette starts with.
const Air = "minecraft:air"

type Catalogs struct {
	Blocks BlockCatalog
	Items  ItemCatalog
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

type BlockDef struct {
	ID    string `json:"id"`
	Solid bool   `json:"solid"`
	// Aux marks blocks that carry attached data (containers, signs).
	Aux bool `json:"aux,omitempty"`
}

type ItemCatalog struct {
	Defs   map[string]ItemDef
	Digest string
}

type ItemDef struct {
	ID   string   `json:"id"`
	Tags []string `json:"tags,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks); err != nil {
		return nil, err
	}
	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	cat, err := NewBlockCatalog(defs)
	if err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	cat.DefsDigest = sha256Hex(raw)
	*out = cat
	return nil
}

// NewBlockCatalog builds a palette from defs. Air is always palette id 0;
// the remaining ids are sorted.
func NewBlockCatalog(defs []BlockDef) (BlockCatalog, error) {
	out := BlockCatalog{Defs: map[string]BlockDef{Air: {ID: Air}}}
	for _, d := range defs {
		if d.ID == "" {
			return BlockCatalog{}, fmt.Errorf("empty id")
		}
		if !ValidResourceID(d.ID) {
			return BlockCatalog{}, fmt.Errorf("bad block id %q", d.ID)
		}
		if d.ID == Air {
			continue
		}
		out.Defs[d.ID] = d
	}
	if len(out.Defs) > 1<<16 {
		return BlockCatalog{}, fmt.Errorf("too many blocks: %d", len(out.Defs))
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		if id != Air {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	ids = append([]string{Air}, ids...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return out, nil
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		// Items only matter for power sources; a missing file means none.
		if os.IsNotExist(err) {
			out.Defs = map[string]ItemDef{}
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		for _, tag := range d.Tags {
			if !ValidResourceID(tag) {
				return fmt.Errorf("items.json: %s: bad tag %q", d.ID, tag)
			}
		}
		out.Defs[d.ID] = d
	}
	return nil
}

// HasTag reports whether item carries tag.
func (c ItemCatalog) HasTag(item, tag string) bool {
	d, ok := c.Defs[item]
	if !ok {
		return false
	}
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// TagExists reports whether any item carries tag.
func (c ItemCatalog) TagExists(tag string) bool {
	for _, d := range c.Defs {
		for _, t := range d.Tags {
			if t == tag {
				return true
			}
		}
	}
	return false
}

// ValidResourceID accepts "namespace:path" ids with lower case letters,
// digits and "_-." in both parts, plus "/" in the path.
func ValidResourceID(id string) bool {
	ns, path, ok := strings.Cut(id, ":")
	if !ok || ns == "" || path == "" {
		return false
	}
	for _, r := range ns {
		if !isResourceRune(r) {
			return false
		}
	}
	for _, r := range path {
		if r != '/' && !isResourceRune(r) {
			return false
		}
	}
	return true
}

func isResourceRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}
