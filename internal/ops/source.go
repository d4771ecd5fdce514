package ops

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/hpungsan/doccov/internal/errors"
)

// MaxSpecBytes bounds the size of a retrieved spec document.
const MaxSpecBytes = 32 << 20

// SpecRef addresses a spec held by a Source.
type SpecRef struct {
	Owner string `json:"owner,omitempty"`
	Repo  string `json:"repo,omitempty"`
	Path  string `json:"path"`
}

func (r SpecRef) String() string {
	if r.Owner == "" && r.Repo == "" {
		return r.Path
	}
	return fmt.Sprintf("%s/%s:%s", r.Owner, r.Repo, r.Path)
}

// Source retrieves raw spec documents. Implementations should honor ctx;
// callers bound the wait regardless.
type Source interface {
	Retrieve(ctx context.Context, ref SpecRef) ([]byte, error)
}

// DirSource reads specs from files under Root, laid out as
// Root/<owner>/<repo>/<path> (owner and repo may be empty).
type DirSource struct {
	Root string
}

// Retrieve implements Source.
func (d DirSource) Retrieve(ctx context.Context, ref SpecRef) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Root == "" {
		return nil, errors.NewInvalidRequest("no spec root configured")
	}
	abs, err := ValidateSpecPath(d.Root, filepath.Join(ref.Owner, ref.Repo, ref.Path))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewNotFound(ref.String())
		}
		return nil, err
	}

	f, err := openFileNoFollowRead(abs)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxSpecBytes+1))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("read spec %s: %w", ref, err))
	}
	if len(data) > MaxSpecBytes {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("spec %s exceeds %d bytes", ref, MaxSpecBytes))
	}
	return data, nil
}
