package dag

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"

	"github.com/kbukum/mindboggle123/errors"
)

// HashMethod selects how input files contribute to a fingerprint.
type HashMethod string

const (
	// HashContent hashes the bytes of every input file.
	HashContent HashMethod = "content"
	// HashTimestamp uses size and modification time only.
	HashTimestamp HashMethod = "timestamp"
)

// ParseHashMethod validates a hash method name.
func ParseHashMethod(s string) (HashMethod, error) {
	switch HashMethod(s) {
	case HashContent, HashTimestamp:
		return HashMethod(s), nil
	}
	return "", errors.Configuration("hash_method", fmt.Sprintf("must be one of: content, timestamp (got %q)", s))
}

const fingerprintFile = "_fingerprint.json"

// CacheKey is everything that decides whether a node must run again.
type CacheKey struct {
	// Commands are the argv lists the node executes.
	Commands [][]string `json:"commands"`
	// Env holds extra KEY=VALUE pairs the commands see.
	Env []string `json:"env,omitempty"`
	// Inputs are files or directories the node reads.
	Inputs []string `json:"inputs"`
	// Outputs must all exist for a cache hit.
	Outputs []string `json:"outputs"`
}

// Cacheable is implemented by nodes whose work is fully described by a
// CacheKey. Publish writes the node's output ports without running it.
type Cacheable interface {
	Node
	CacheKey(state *State) (CacheKey, error)
	Publish(state *State) (any, error)
}

// Cached wraps the output of a node whose run was skipped on a cache hit.
type Cached struct {
	Output any
}

// Cache stores node fingerprints under Dir/<node>/_fingerprint.json. Inputs
// are hashed and outputs checked on the same filesystem.
type Cache struct {
	// Fs defaults to the OS filesystem.
	Fs     afero.Fs
	Dir    string
	Method HashMethod
}

// fingerprintRecord is the persisted form of a fingerprint.
type fingerprintRecord struct {
	Node        string     `json:"node"`
	Fingerprint string     `json:"fingerprint"`
	HashMethod  HashMethod `json:"hash_method"`
	Key         CacheKey   `json:"key"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Fingerprint hashes key with the cache's method. Every field is length
// prefixed so different keys can never collide by concatenation.
func (c *Cache) Fingerprint(key CacheKey) (string, error) {
	h := sha256.New()
	writeField(h, string(c.method()))

	writeCount(h, len(key.Commands))
	for _, argv := range key.Commands {
		writeCount(h, len(argv))
		for _, arg := range argv {
			writeField(h, arg)
		}
	}

	env := sortedCopy(key.Env)
	writeCount(h, len(env))
	for _, kv := range env {
		writeField(h, kv)
	}

	outputs := sortedCopy(key.Outputs)
	writeCount(h, len(outputs))
	for _, out := range outputs {
		writeField(h, out)
	}

	inputs := sortedCopy(key.Inputs)
	writeCount(h, len(inputs))
	for _, in := range inputs {
		writeField(h, in)
		if err := c.hashPath(h, in); err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Lookup reports whether node has a stored fingerprint equal to fp and all
// outputs still exist.
func (c *Cache) Lookup(node, fp string, outputs []string) bool {
	data, err := afero.ReadFile(c.fs(), c.recordPath(node))
	if err != nil {
		return false
	}
	var rec fingerprintRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.Fingerprint != fp {
		return false
	}
	for _, out := range outputs {
		if _, err := c.fs().Stat(out); err != nil {
			return false
		}
	}
	return true
}

// Store persists the fingerprint of a successful run.
func (c *Cache) Store(node, fp string, key CacheKey) error {
	path := c.recordPath(node)
	if err := c.fs().MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Filesystem("mkdir", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(fingerprintRecord{
		Node:        node,
		Fingerprint: fp,
		HashMethod:  c.method(),
		Key:         key,
		CreatedAt:   time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return errors.Internal(err)
	}
	if err := afero.WriteFile(c.fs(), path, data, 0o644); err != nil {
		return errors.Filesystem("write", path, err)
	}
	return nil
}

// Invalidate removes the stored fingerprint of node.
func (c *Cache) Invalidate(node string) error {
	err := c.fs().Remove(c.recordPath(node))
	if err != nil && !os.IsNotExist(err) {
		return errors.Filesystem("remove", c.recordPath(node), err)
	}
	return nil
}

func (c *Cache) recordPath(node string) string {
	return filepath.Join(c.Dir, node, fingerprintFile)
}

func (c *Cache) fs() afero.Fs {
	if c.Fs == nil {
		return afero.NewOsFs()
	}
	return c.Fs
}

func (c *Cache) method() HashMethod {
	if c.Method == "" {
		return HashContent
	}
	return c.Method
}

// hashPath folds one input into h. Missing inputs hash to a marker so they
// still change the fingerprint once they appear. Directories contribute a
// listing of relative path, size and modification time.
func (c *Cache) hashPath(h hash.Hash, path string) error {
	info, err := c.fs().Stat(path)
	if os.IsNotExist(err) {
		writeField(h, "<missing>")
		return nil
	}
	if err != nil {
		return errors.Filesystem("stat", path, err)
	}

	if info.IsDir() {
		return afero.Walk(c.fs(), path, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return errors.Filesystem("walk", p, err)
			}
			if fi.IsDir() {
				return nil
			}
			rel, _ := filepath.Rel(path, p)
			writeField(h, rel)
			writeField(h, fmt.Sprintf("%d:%d", fi.Size(), fi.ModTime().UnixNano()))
			return nil
		})
	}

	if c.method() == HashTimestamp {
		writeField(h, fmt.Sprintf("%d:%d", info.Size(), info.ModTime().UnixNano()))
		return nil
	}

	f, err := c.fs().Open(path)
	if err != nil {
		return errors.Filesystem("open", path, err)
	}
	defer f.Close()
	content := sha256.New()
	if _, err := io.Copy(content, f); err != nil {
		return errors.Filesystem("read", path, err)
	}
	writeField(h, fmt.Sprintf("%d:%x", info.Size(), content.Sum(nil)))
	return nil
}

func writeField(h hash.Hash, s string) {
	writeCount(h, len(s))
	h.Write([]byte(s))
}

func writeCount(h hash.Hash, n int) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	h.Write(buf[:])
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

// WithCache wraps a Cacheable node so that a run whose fingerprint matches
// the stored one is replaced by Publish.
func WithCache(node Cacheable, cache *Cache) Node {
	return &cachedNode{inner: node, cache: cache}
}

type cachedNode struct {
	inner Cacheable
	cache *Cache
}

func (n *cachedNode) Name() string { return n.inner.Name() }
func (n *cachedNode) Unwrap() Node { return n.inner }

func (n *cachedNode) Run(ctx context.Context, state *State) (any, error) {
	key, err := n.inner.CacheKey(state)
	if err != nil {
		return nil, err
	}
	fp, err := n.cache.Fingerprint(key)
	if err != nil {
		return nil, err
	}

	if n.cache.Lookup(n.inner.Name(), fp, key.Outputs) {
		out, err := n.inner.Publish(state)
		if err != nil {
			return nil, err
		}
		return Cached{Output: out}, nil
	}

	out, err := n.inner.Run(ctx, state)
	if err != nil {
		_ = n.cache.Invalidate(n.inner.Name())
		return nil, err
	}
	if err := n.cache.Store(n.inner.Name(), fp, key); err != nil {
		return nil, err
	}
	return out, nil
}

// Cacheables wraps every Cacheable node of g with WithCache.
func Cacheables(g *Graph, cache *Cache) {
	g.Decorate(func(n Node) Node {
		if c, ok := n.(Cacheable); ok {
			return WithCache(c, cache)
		}
		return n
	})
}
