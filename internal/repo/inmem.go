package repo

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tinoosan/fetchd/internal/data"
	"github.com/tinoosan/fetchd/internal/fp"
)

type InMemoryDownloadRepo struct {
	mu        sync.RWMutex
	downloads data.Downloads
	byFP      map[string]string
}

func NewInMemoryDownloadRepo() *InMemoryDownloadRepo {
	return &InMemoryDownloadRepo{
		downloads: make(data.Downloads, 0),
		byFP:      make(map[string]string),
	}
}

var _ DownloadRepo = (*InMemoryDownloadRepo)(nil)

func (r *InMemoryDownloadRepo) List(ctx context.Context) (data.Downloads, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.downloads.Clone(), nil
}

func (r *InMemoryDownloadRepo) Get(ctx context.Context, id string) (*data.Download, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dl, err := r.findByID(id)
	if err != nil {
		return nil, err
	}
	return dl.Clone(), nil
}

// Add stores d under a fresh ID. The fingerprint of its URL and target is
// indexed but not enforced.
func (r *InMemoryDownloadRepo) Add(ctx context.Context, d *data.Download) (*data.Download, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insert(d, fp.Fingerprint(d.URL, d.TargetPath)), nil
}

func (r *InMemoryDownloadRepo) AddWithFingerprint(ctx context.Context, d *data.Download, fprint string) (*data.Download, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byFP[fprint]; ok {
		if existing, err := r.findByID(id); err == nil {
			return existing.Clone(), false, nil
		}
	}
	return r.insert(d, fprint), true, nil
}

func (r *InMemoryDownloadRepo) insert(d *data.Download, fprint string) *data.Download {
	stored := d.Clone()
	stored.ID = uuid.NewString()
	r.downloads = append(r.downloads, stored)
	if _, taken := r.byFP[fprint]; !taken {
		r.byFP[fprint] = stored.ID
	}
	return stored.Clone()
}

func (r *InMemoryDownloadRepo) Update(ctx context.Context, id string, mutate func(*data.Download) error) (*data.Download, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dl, err := r.findByID(id)
	if err != nil {
		return nil, err
	}
	next := dl.Clone()
	if mutate != nil {
		if err := mutate(next); err != nil {
			return nil, err
		}
	}
	next.ID = dl.ID
	next.CreatedAt = dl.CreatedAt
	*dl = *next
	return dl.Clone(), nil
}

func (r *InMemoryDownloadRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, dl := range r.downloads {
		if dl.ID != id {
			continue
		}
		r.downloads = append(r.downloads[:i], r.downloads[i+1:]...)
		for k, v := range r.byFP {
			if v == id {
				delete(r.byFP, k)
			}
		}
		return nil
	}
	return data.ErrNotFound
}

func (r *InMemoryDownloadRepo) findByID(id string) (*data.Download, error) {
	for _, dl := range r.downloads {
		if dl.ID == id {
			return dl, nil
		}
	}
	return nil, data.ErrNotFound
}
