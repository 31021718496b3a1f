package core

import (
	"os"
	"path"
	"sort"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-vaultfs/vaultfs/internal/namecode"
	"github.com/go-vaultfs/vaultfs/internal/rawio"
)

// fakeHostFS keeps the directory tree purely in memory but still touches
// the real OS for file content, since HostFS's contract requires handing
// back a *rawio.RawFile and only rawio.Open can produce one.
type fakeHostFS struct {
	dir string // scratch directory backing actual file content

	files map[string]bool
	dirs  map[string]bool

	// failRenameFrom, when non-empty, makes Rename fail for that exact
	// source cipher path — used to exercise undoRename deterministically.
	failRenameFrom string
}

func newFakeHostFS(t *testing.T) *fakeHostFS {
	t.Helper()
	return &fakeHostFS{
		dir:   t.TempDir(),
		files: map[string]bool{},
		dirs:  map[string]bool{"/": true},
	}
}

func (f *fakeHostFS) hostPath(p string) string {
	return path.Join(f.dir, strings.ReplaceAll(p, "/", "_"))
}

func (f *fakeHostFS) OpenDir(p string) ([]DirEntry, error) {
	if !f.dirs[p] {
		return nil, os.ErrNotExist
	}
	prefix := strings.TrimSuffix(p, "/") + "/"
	if p == "/" {
		prefix = "/"
	}
	seen := map[string]bool{}
	var out []DirEntry
	for name := range f.dirs {
		if name == "/" || !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if strings.Contains(rest, "/") || seen[rest] {
			continue
		}
		seen[rest] = true
		out = append(out, DirEntry{Name: rest, IsDir: true})
	}
	for name := range f.files {
		if name == "/" || !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if strings.Contains(rest, "/") || seen[rest] {
			continue
		}
		seen[rest] = true
		out = append(out, DirEntry{Name: rest})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeHostFS) OpenFile(p string, writable, create bool) (*rawio.RawFile, error) {
	if !f.files[p] {
		if !create {
			return nil, os.ErrNotExist
		}
		f.files[p] = true
	}
	flags := os.O_RDONLY
	if writable {
		flags = os.O_RDWR
	}
	if create {
		flags |= os.O_CREATE
	}
	return rawio.Open(f.hostPath(p), flags, 0600)
}

func (f *fakeHostFS) Mkdir(p string, mode os.FileMode) error {
	if f.dirs[p] || f.files[p] {
		return os.ErrExist
	}
	f.dirs[p] = true
	return nil
}

func (f *fakeHostFS) Rmdir(p string) error {
	if !f.dirs[p] {
		return os.ErrNotExist
	}
	delete(f.dirs, p)
	return nil
}

func (f *fakeHostFS) Unlink(p string) error {
	if !f.files[p] {
		return os.ErrNotExist
	}
	delete(f.files, p)
	return os.Remove(f.hostPath(p))
}

func (f *fakeHostFS) Rename(oldPath, newPath string) error {
	if f.failRenameFrom != "" && oldPath == f.failRenameFrom {
		return os.ErrPermission
	}
	if f.files[oldPath] {
		delete(f.files, oldPath)
		f.files[newPath] = true
		return os.Rename(f.hostPath(oldPath), f.hostPath(newPath))
	}
	if f.dirs[oldPath] {
		delete(f.dirs, oldPath)
		f.dirs[newPath] = true
		// Like a real directory rename, carry the whole subtree along.
		prefix := oldPath + "/"
		for name := range f.dirs {
			if strings.HasPrefix(name, prefix) {
				delete(f.dirs, name)
				f.dirs[newPath+"/"+strings.TrimPrefix(name, prefix)] = true
			}
		}
		for name := range f.files {
			if strings.HasPrefix(name, prefix) {
				to := newPath + "/" + strings.TrimPrefix(name, prefix)
				delete(f.files, name)
				f.files[to] = true
				if err := os.Rename(f.hostPath(name), f.hostPath(to)); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return os.ErrNotExist
}

func (f *fakeHostFS) GetAttrs(p string) (rawio.Attrs, error) {
	if f.dirs[p] {
		return rawio.Attrs{IsDir: true, Mode: os.ModeDir}, nil
	}
	if !f.files[p] {
		return rawio.Attrs{}, os.ErrNotExist
	}
	fi, err := os.Stat(f.hostPath(p))
	if err != nil {
		return rawio.Attrs{}, err
	}
	return rawio.Attrs{Size: fi.Size(), Mode: fi.Mode()}, nil
}

func (f *fakeHostFS) SetTimes(p string, atime, mtime *time.Time) error { return nil }
func (f *fakeHostFS) Symlink(target, linkPath string) error {
	f.files[linkPath] = true
	return os.WriteFile(f.hostPath(linkPath)+".link", []byte(target), 0600)
}
func (f *fakeHostFS) Readlink(p string) (string, error) {
	b, err := os.ReadFile(f.hostPath(p) + ".link")
	return string(b), err
}
func (f *fakeHostFS) Link(oldPath, newPath string) error {
	f.files[newPath] = true
	return nil
}
func (f *fakeHostFS) Chmod(p string, mode os.FileMode) error  { return nil }
func (f *fakeHostFS) Chown(p string, uid, gid int) error       { return nil }
func (f *fakeHostFS) GetXattr(p, name string) ([]byte, error)  { return nil, os.ErrNotExist }
func (f *fakeHostFS) SetXattr(p, name string, data []byte) error { return nil }
func (f *fakeHostFS) ListXattr(p string) ([]string, error)       { return nil, nil }
func (f *fakeHostFS) RemoveXattr(p, name string) error            { return os.ErrNotExist }

func (f *fakeHostFS) ReadFile(p string) ([]byte, error) { return os.ReadFile(f.hostPath(p)) }
func (f *fakeHostFS) WriteFile(p string, data []byte) error {
	return os.WriteFile(f.hostPath(p), data, 0600)
}
func (f *fakeHostFS) DeleteFile(p string) error { return os.Remove(f.hostPath(p)) }

func newTestDirNode(t *testing.T) (*DirNode, *fakeHostFS) {
	t.Helper()
	cfg := testConfig(t)
	hfs := newFakeHostFS(t)
	d := NewDirNode(NewContext(), hfs, cfg, namecode.NullCoder{}, "/")
	return d, hfs
}

func TestMkdirAndOpenDir(t *testing.T) {
	d, _ := newTestDirNode(t)
	require.NoError(t, d.Mkdir("/sub", 0755))

	entries, err := d.OpenDir("/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "sub", entries[0].Name)
	require.True(t, entries[0].IsDir)
}

func TestCreateWriteReadFile(t *testing.T) {
	d, _ := newTestDirNode(t)
	node, err := d.Create("/hello.txt", true, 0644)
	require.NoError(t, err)

	require.NoError(t, node.Write(0, []byte("hi there")))
	out := make([]byte, 8)
	n, err := node.Read(0, out)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, "hi there", string(out))
}

func TestUnlinkRefusesWhileOpen(t *testing.T) {
	d, _ := newTestDirNode(t)
	_, err := d.Create("/open.txt", true, 0644)
	require.NoError(t, err)

	err = d.Unlink("/open.txt")
	require.ErrorIs(t, err, syscall.EBUSY)
}

func TestRenameFileUpdatesContext(t *testing.T) {
	d, _ := newTestDirNode(t)
	node, err := d.Create("/a.txt", true, 0644)
	require.NoError(t, err)
	require.NoError(t, node.Write(0, []byte("payload")))

	require.NoError(t, d.Rename("/a.txt", "/b.txt"))
	require.Nil(t, d.ctx.LookupNode("/a.txt"))
	require.Same(t, node, d.ctx.LookupNode("/b.txt"))

	out := make([]byte, 7)
	n, err := node.Read(0, out)
	require.NoError(t, err)
	require.Equal(t, "payload", string(out[:n]))
}
