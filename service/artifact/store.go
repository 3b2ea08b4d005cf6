package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
)

// Version identifies one immutable revision of an artifact. Revision 1 is the
// original file; later revisions live in sibling files such as
// "report.v2.xlsx".
type Version struct {
	Resource string
	Revision int
	URL      string
}

// ID returns the public identifier of the revision, e.g. "report.xlsx@v2".
func (v *Version) ID() string {
	return fmt.Sprintf("%s@v%d", v.Resource, v.Revision)
}

// Store resolves artifact resources to versioned files on any storage viant/afs
// supports. It only ever appends revisions, never rewrites existing ones.
type Store struct {
	fs      afs.Service
	baseURL string

	mu     sync.Mutex
	latest map[string]int
}

// NewStore creates a store rooted at baseURL.
func NewStore(fs afs.Service, baseURL string) *Store {
	return &Store{
		fs:      fs,
		baseURL: baseURL,
		latest:  make(map[string]int),
	}
}

// Latest returns the newest revision of the resource. A resource with no
// revision files resolves to revision 1, the original upload.
func (s *Store) Latest(ctx context.Context, resource string) (*Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestLocked(ctx, resource)
}

func (s *Store) latestLocked(ctx context.Context, resource string) (*Version, error) {
	revision, ok := s.latest[resource]
	if !ok {
		exists, err := s.fs.Exists(ctx, s.revisionURL(resource, 1))
		if err != nil {
			return nil, fmt.Errorf("failed to check artifact %s: %w", resource, err)
		}
		if !exists {
			return nil, fmt.Errorf("artifact %s does not exist", resource)
		}
		revision = 1
		for {
			exists, err := s.fs.Exists(ctx, s.revisionURL(resource, revision+1))
			if err != nil {
				return nil, fmt.Errorf("failed to scan revisions of %s: %w", resource, err)
			}
			if !exists {
				break
			}
			revision++
		}
		s.latest[resource] = revision
	}
	return &Version{Resource: resource, Revision: revision, URL: s.revisionURL(resource, revision)}, nil
}

// Read downloads the newest revision of the resource.
func (s *Store) Read(ctx context.Context, resource string) ([]byte, *Version, error) {
	version, err := s.Latest(ctx, resource)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.fs.DownloadWithURL(ctx, version.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read artifact %s: %w", version.URL, err)
	}
	return data, version, nil
}

// WriteNext persists data as the next revision of the resource and returns
// the new version. The previous revisions stay untouched.
func (s *Store) WriteNext(ctx context.Context, resource string, data []byte) (*Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.latestLocked(ctx, resource)
	if err != nil {
		return nil, err
	}
	next := current.Revision + 1
	location := s.revisionURL(resource, next)
	if err := s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to write artifact revision %s: %w", location, err)
	}
	s.latest[resource] = next
	return &Version{Resource: resource, Revision: next, URL: location}, nil
}

// Ensure uploads data as the original revision unless the resource already
// exists. Re-delivery of a message never clobbers revision history.
func (s *Store) Ensure(ctx context.Context, resource string, data []byte) error {
	exists, err := s.fs.Exists(ctx, s.revisionURL(resource, 1))
	if err != nil {
		return fmt.Errorf("failed to check artifact %s: %w", resource, err)
	}
	if exists {
		return nil
	}
	return s.Put(ctx, resource, bytes.NewReader(data))
}

// Put uploads the original (revision 1) content of a resource.
func (s *Store) Put(ctx context.Context, resource string, reader io.Reader) error {
	location := s.revisionURL(resource, 1)
	if err := s.fs.Upload(ctx, location, file.DefaultFileOsMode, reader); err != nil {
		return fmt.Errorf("failed to write artifact %s: %w", location, err)
	}
	s.mu.Lock()
	delete(s.latest, resource)
	s.mu.Unlock()
	return nil
}

// revisionURL maps (resource, revision) to a storage URL. Revision 1 keeps the
// original name, revision n>1 inserts ".vN" before the extension.
func (s *Store) revisionURL(resource string, revision int) string {
	name := resource
	if revision > 1 {
		ext := path.Ext(resource)
		stem := strings.TrimSuffix(resource, ext)
		name = fmt.Sprintf("%s.v%d%s", stem, revision, ext)
	}
	return url.Join(s.baseURL, name)
}
