package gpk

import (
	"compress/zlib"
	"encoding/binary"
	"io"
	"io/ioutil"
	"log"

	"github.com/pkg/errors"

	"github.com/velraen/gpk_browser/pack"
	"github.com/velraen/gpk_browser/status"
	"github.com/velraen/gpk_browser/utils"
)

const GPK_MAGIC = 0x314B5047 // "GPK1"
const HEADER_SIZE = 0x10
const ENTRY_SIZE = 0x10

const ENTRY_NAME_NONE = 0xFFFFFFFF

// File is a parsed instance of a package entry.
type File interface {
	Marshal(rsrc *EntryResource) (interface{}, error)
}

type EntryLoader func(rsrc *EntryResource) (File, error)

var gHandlers map[uint32]EntryLoader = make(map[uint32]EntryLoader, 0)

// SetHandler binds a parser to the leading u32 magic of
// decompressed entry data.
func SetHandler(magic uint32, ldr EntryLoader) {
	gHandlers[magic] = ldr
}

type EntryId int

type Entry struct {
	Id             EntryId
	Name           string
	Magic          uint32
	Size           uint32
	CompressedSize uint32
	DataOffset     uint32

	nameOffset uint32
}

type Gpk struct {
	Entries []Entry

	name  string
	r     *io.SectionReader
	cache map[EntryId]File
	rng   utils.RandomNameGenerator
}

// EntryResource gives a handler access to its decompressed data and
// to sibling entries (animations resolve their skeleton through it).
type EntryResource struct {
	Gpk   *Gpk
	Entry *Entry
	Data  []byte
}

func (er *EntryResource) Name() string {
	return er.Entry.Name
}

func u32(d []byte, off uint32) uint32 {
	return binary.LittleEndian.Uint32(d[off : off+4])
}

func NewFromData(name string, r *io.SectionReader) (*Gpk, error) {
	var header [HEADER_SIZE]byte
	if _, err := r.ReadAt(header[:], 0); err != nil {
		return nil, errors.Wrapf(err, "[gpk] Header ReadAt(..)")
	}

	if u32(header[:], 0) != GPK_MAGIC {
		return nil, errors.Errorf("[gpk] Invalid magic 0x%.8x", u32(header[:], 0))
	}

	p := &Gpk{
		name:    name,
		r:       r,
		Entries: make([]Entry, u32(header[:], 4)),
		cache:   make(map[EntryId]File),
	}

	namesOffset := u32(header[:], 8)
	namesSize := u32(header[:], 12)

	names := make([]byte, namesSize)
	if namesSize != 0 {
		if _, err := r.ReadAt(names, int64(namesOffset)); err != nil {
			return nil, errors.Wrapf(err, "[gpk] Names ReadAt(..)")
		}
	}

	entriesBuf := make([]byte, ENTRY_SIZE*len(p.Entries))
	if len(entriesBuf) != 0 {
		if _, err := r.ReadAt(entriesBuf, HEADER_SIZE); err != nil {
			return nil, errors.Wrapf(err, "[gpk] Entries ReadAt(..)")
		}
	}

	for i := range p.Entries {
		e := &p.Entries[i]
		raw := entriesBuf[i*ENTRY_SIZE:]

		e.Id = EntryId(i)
		e.nameOffset = u32(raw, 0)
		e.DataOffset = u32(raw, 4)
		e.CompressedSize = u32(raw, 8)
		e.Size = u32(raw, 12)

		if e.nameOffset == ENTRY_NAME_NONE {
			e.Name = p.rng.RandomName()
		} else if e.nameOffset >= namesSize {
			return nil, errors.Errorf("[gpk] Entry %d name offset 0x%x out of names blob", i, e.nameOffset)
		} else {
			e.Name = utils.BytesToString(names[e.nameOffset:])
		}

		var magicBuf [4]byte
		if e.Size >= 4 {
			if head, err := p.entryData(e, 4); err == nil {
				copy(magicBuf[:], head)
			}
		}
		e.Magic = binary.LittleEndian.Uint32(magicBuf[:])
	}

	status.Info("Opened package %q: %d entries", name, len(p.Entries))

	return p, nil
}

// entryData decompresses up to limit bytes of an entry body
// (limit 0 means whole entry).
func (p *Gpk) entryData(e *Entry, limit uint32) ([]byte, error) {
	if limit == 0 || limit > e.Size {
		limit = e.Size
	}

	raw := io.NewSectionReader(p.r, int64(e.DataOffset), int64(e.CompressedSize))
	var src io.Reader = raw
	if e.CompressedSize != e.Size {
		zr, err := zlib.NewReader(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "[gpk] zlib reader for entry %q", e.Name)
		}
		defer zr.Close()
		src = zr
	}

	data, err := ioutil.ReadAll(io.LimitReader(src, int64(limit)))
	if err != nil {
		return nil, errors.Wrapf(err, "[gpk] Reading entry %q", e.Name)
	}
	if uint32(len(data)) != limit {
		return nil, errors.Errorf("[gpk] Entry %q short body: %d != %d", e.Name, len(data), limit)
	}
	return data, nil
}

func (p *Gpk) Name() string {
	return p.name
}

func (p *Gpk) GetEntryById(id EntryId) *Entry {
	if int(id) < 0 || int(id) >= len(p.Entries) {
		return nil
	}
	return &p.Entries[id]
}

func (p *Gpk) GetEntryByName(name string) *Entry {
	for i := range p.Entries {
		if p.Entries[i].Name == name {
			return &p.Entries[i]
		}
	}
	return nil
}

// FindEntryByMagic returns the first entry with given data magic.
func (p *Gpk) FindEntryByMagic(magic uint32) *Entry {
	for i := range p.Entries {
		if p.Entries[i].Magic == magic {
			return &p.Entries[i]
		}
	}
	return nil
}

func (p *Gpk) GetEntryResource(id EntryId) (*EntryResource, error) {
	e := p.GetEntryById(id)
	if e == nil {
		return nil, errors.Errorf("[gpk] Invalid entry id %d", id)
	}
	data, err := p.entryData(e, 0)
	if err != nil {
		return nil, err
	}
	return &EntryResource{Gpk: p, Entry: e, Data: data}, nil
}

func (p *Gpk) GetInstanceFromEntry(id EntryId) (File, error) {
	if inst, ok := p.cache[id]; ok {
		return inst, nil
	}

	rsrc, err := p.GetEntryResource(id)
	if err != nil {
		return nil, err
	}

	h, ex := gHandlers[rsrc.Entry.Magic]
	if !ex {
		return nil, errors.Errorf("[gpk] Cannot find handler for magic 0x%.8x (%s)", rsrc.Entry.Magic, rsrc.Entry.Name)
	}

	inst, err := h(rsrc)
	if err != nil {
		return nil, errors.Wrapf(err, "[gpk] Handler for %q", rsrc.Entry.Name)
	}

	p.cache[id] = inst
	return inst, nil
}

func init() {
	pack.SetHandler(".GPK", func(name string, r *io.SectionReader) (interface{}, error) {
		p, err := NewFromData(name, r)
		if err != nil {
			log.Printf("[gpk] Failed to open %q: %v", name, err)
		}
		return p, err
	})
}
