package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Filesystem stores archive objects as files under a root directory. A
// metadata sidecar (filename + `.meta`) records content type and timestamps.
type Filesystem struct {
	root string
}

// NewFilesystem returns a filesystem-backed archive rooted at path, creating
// it if needed.
func NewFilesystem(root string) (*Filesystem, error) {
	if root == "" {
		root = "./archivedata"
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, err
	}
	return &Filesystem{root: root}, nil
}

// sanitizeKey forbids path traversal and absolute paths.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key contains '..'")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid absolute key")
	}
	clean := filepath.ToSlash(filepath.Clean(key))
	if strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid key traversal")
	}
	return clean, nil
}

func (f *Filesystem) pathFor(key string) (dataPath, metaPath string, err error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return "", "", err
	}
	dataPath = filepath.Join(f.root, k)
	metaPath = dataPath + ".meta"
	return
}

type metaFile struct {
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// Put stores a new immutable object, failing if the key exists.
func (f *Filesystem) Put(_ context.Context, key string, payload []byte, contentType string) (Info, error) {
	dataPath, metaPath, err := f.pathFor(key)
	if err != nil {
		return Info{}, err
	}
	if _, err := os.Stat(dataPath); err == nil {
		return Info{}, fmt.Errorf("archive object %s already exists", key)
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o750); err != nil {
		return Info{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".tmp-*")
	if err != nil {
		return Info{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return Info{}, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return Info{}, err
	}
	if err := tmp.Close(); err != nil {
		return Info{}, err
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return Info{}, err
	}
	now := time.Now().UTC()
	mf := metaFile{ContentType: contentType, Size: int64(len(payload)), CreatedAt: now}
	data, err := json.Marshal(mf)
	if err != nil {
		return Info{}, err
	}
	if err := os.WriteFile(metaPath, data, 0o600); err != nil {
		return Info{}, err
	}
	return Info{Key: key, ContentType: contentType, Size: mf.Size, CreatedAt: now}, nil
}

// Get returns the object metadata and payload.
func (f *Filesystem) Get(_ context.Context, key string) (Info, []byte, error) {
	dataPath, metaPath, err := f.pathFor(key)
	if err != nil {
		return Info{}, nil, err
	}
	payload, err := os.ReadFile(dataPath)
	if err != nil {
		return Info{}, nil, err
	}
	info := Info{Key: key, Size: int64(len(payload))}
	if data, err := os.ReadFile(metaPath); err == nil {
		var mf metaFile
		if err := json.Unmarshal(data, &mf); err == nil {
			info.ContentType = mf.ContentType
			info.CreatedAt = mf.CreatedAt
		}
	}
	return info, payload, nil
}

// List returns objects whose keys start with prefix, ordered by key.
func (f *Filesystem) List(_ context.Context, prefix string) ([]Info, error) {
	var out []Info
	err := filepath.WalkDir(f.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".meta") || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(f.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		info := Info{Key: key, Size: fi.Size(), CreatedAt: fi.ModTime().UTC()}
		if data, err := os.ReadFile(path + ".meta"); err == nil {
			var mf metaFile
			if err := json.Unmarshal(data, &mf); err == nil {
				info.ContentType = mf.ContentType
				info.CreatedAt = mf.CreatedAt
			}
		}
		out = append(out, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
