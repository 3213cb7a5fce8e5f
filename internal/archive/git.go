package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"tandem/collab/internal/history"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const snapshotFile = "snapshot.json"

// GitArchive commits each snapshot into a per-session local git repository
// and tags the commit with the snapshot ID, so any archived snapshot can be
// materialized again long after history has evicted it.
type GitArchive struct {
	baseDir   string
	sessionID string
	mu        sync.Mutex
}

func NewGitArchive(baseDir, sessionID string) *GitArchive {
	return &GitArchive{baseDir: baseDir, sessionID: sessionID}
}

func (a *GitArchive) repoPath() string {
	return filepath.Join(a.baseDir, a.sessionID)
}

// Store commits the snapshot and tags it by ID. Re-archiving an already
// tagged snapshot is a no-op.
func (a *GitArchive) Store(ctx context.Context, snapshot history.Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	repo, err := a.ensureRepo()
	if err != nil {
		return err
	}

	tagRef := plumbing.NewTagReferenceName(snapshot.ID)
	if _, err := repo.Reference(tagRef, true); err == nil {
		return nil
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(a.repoPath(), snapshotFile), append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write snapshot file: %w", err)
	}
	if _, err := worktree.Add(snapshotFile); err != nil {
		return fmt.Errorf("git add snapshot: %w", err)
	}

	message := fmt.Sprintf("Snapshot %s: %s", snapshot.ID, snapshot.Description)
	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  snapshot.User.Name,
			Email: fmt.Sprintf("%s@tandem.local", sanitizeEmail(snapshot.User.Name)),
			When:  snapshot.Timestamp,
		},
	})
	if err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	_, err = repo.CreateTag(snapshot.ID, hash, &git.CreateTagOptions{
		Tagger: &object.Signature{
			Name:  "Tandem",
			Email: "tandem@localhost",
			When:  snapshot.Timestamp,
		},
		Message: snapshot.ID,
	})
	if err != nil && !errors.Is(err, git.ErrTagExists) {
		return fmt.Errorf("tag snapshot: %w", err)
	}
	return nil
}

// Load reads an archived snapshot back by its tag.
func (a *GitArchive) Load(ctx context.Context, snapshotID string) (history.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	repo, err := git.PlainOpen(a.repoPath())
	if err != nil {
		return history.Snapshot{}, fmt.Errorf("open archive repo: %w", err)
	}

	ref, err := repo.Reference(plumbing.NewTagReferenceName(snapshotID), true)
	if err != nil {
		return history.Snapshot{}, fmt.Errorf("resolve snapshot tag %s: %w", snapshotID, err)
	}

	hash := ref.Hash()
	if tagObj, tagErr := repo.TagObject(hash); tagErr == nil {
		hash = tagObj.Target
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return history.Snapshot{}, fmt.Errorf("read snapshot commit: %w", err)
	}

	file, err := commitObj.File(snapshotFile)
	if err != nil {
		return history.Snapshot{}, fmt.Errorf("load %s from commit: %w", snapshotFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return history.Snapshot{}, fmt.Errorf("open snapshot reader: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return history.Snapshot{}, fmt.Errorf("read snapshot bytes: %w", err)
	}

	var snapshot history.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return history.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, nil
}

// List returns the IDs of all archived snapshots.
func (a *GitArchive) List(ctx context.Context) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	repo, err := git.PlainOpen(a.repoPath())
	if err != nil {
		return nil, fmt.Errorf("open archive repo: %w", err)
	}

	iter, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("read tags: %w", err)
	}
	defer iter.Close()

	ids := make([]string, 0)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		ids = append(ids, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return ids, nil
}

func (a *GitArchive) ensureRepo() (*git.Repository, error) {
	path := a.repoPath()
	if _, err := os.Stat(path); err == nil {
		repo, openErr := git.PlainOpen(path)
		if openErr != nil {
			return nil, fmt.Errorf("open archive repo: %w", openErr)
		}
		return repo, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat archive path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init archive repo: %w", err)
	}
	return repo, nil
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}
