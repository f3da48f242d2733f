package pack

import (
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/velraen/gpk_browser/vfs"
)

type FileLoader func(name string, r *io.SectionReader) (interface{}, error)

var gHandlers map[string]FileLoader = make(map[string]FileLoader, 0)

func SetHandler(ext string, ldr FileLoader) {
	gHandlers[strings.ToUpper(ext)] = ldr
}

func CallHandler(name string, r *io.SectionReader) (interface{}, error) {
	ext := strings.ToUpper(filepath.Ext(name))

	h, found := gHandlers[ext]
	if !found {
		return nil, errors.Errorf("[pack] Cannot find handler for '%s' extension", ext)
	}
	return h(name, r)
}

// InstanceCache keeps parsed package instances between requests,
// packages are reparsed only after the underlying file changes size.
type InstanceCache struct {
	mu        sync.Mutex
	instances map[string]cacheEntry
}

type cacheEntry struct {
	instance interface{}
	size     int64
}

func (c *InstanceCache) get(name string, size int64) interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.instances[name]; ok && e.size == size {
		return e.instance
	}
	return nil
}

func (c *InstanceCache) put(name string, size int64, instance interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.instances == nil {
		c.instances = make(map[string]cacheEntry)
	}
	c.instances[name] = cacheEntry{instance: instance, size: size}
}

var gInstanceCache InstanceCache

func GetInstanceHandler(d vfs.Directory, fileName string) (interface{}, error) {
	f, err := vfs.DirectoryGetFile(d, fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "[pack] Cannot get file '%s'", fileName)
	}

	if inst := gInstanceCache.get(fileName, f.Size()); inst != nil {
		return inst, nil
	}

	r, err := vfs.OpenFileAndGetReader(f, true)
	if err != nil {
		return nil, errors.Wrapf(err, "[pack] Cannot get instance of '%s'", fileName)
	}
	defer f.Close()

	inst, err := CallHandler(fileName, r)
	if err != nil {
		return nil, errors.Wrapf(err, "[pack] Handler error")
	}

	gInstanceCache.put(fileName, f.Size(), inst)
	return inst, nil
}
