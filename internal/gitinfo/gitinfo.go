// Package gitinfo reads the commit a project is built from.
package gitinfo

import (
	stderrors "errors"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Info describes HEAD of the repository containing a project.
type Info struct {
	Commit string
	Branch string
}

// Short returns the abbreviated commit hash.
func (i Info) Short() string {
	if len(i.Commit) > 8 {
		return i.Commit[:8]
	}
	return i.Commit
}

// Lookup opens the repository containing dir, searching parent directories.
// A project outside any repository, or one without commits, yields a zero
// Info and no error.
func Lookup(dir string) (Info, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if stderrors.Is(err, git.ErrRepositoryNotExists) {
		return Info{}, nil
	}
	if err != nil {
		return Info{}, err
	}

	ref, err := repo.Head()
	if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
		return Info{}, nil
	}
	if err != nil {
		return Info{}, err
	}

	info := Info{Commit: ref.Hash().String()}
	if ref.Name().IsBranch() {
		info.Branch = ref.Name().Short()
	}
	return info, nil
}
