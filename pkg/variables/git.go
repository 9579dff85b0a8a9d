package variables

import (
	"github.com/go-git/go-git/v5"
)

// Built-in variables derived from the git repository of a working directory.
const (
	GitCommitVar      = "GIT_COMMIT"
	GitShortCommitVar = "GIT_SHORT_COMMIT"
	GitBranchVar      = "GIT_BRANCH"
)

// GitVariables describes the HEAD of the git repository containing dir, or
// the current directory when dir is empty. It returns an empty map when dir
// is not inside a repository or HEAD cannot be resolved.
func GitVariables(dir string) Map {
	vars := Map{}
	if dir == "" {
		dir = "."
	}

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return vars
	}

	head, err := repo.Head()
	if err != nil {
		return vars
	}

	commit := head.Hash().String()
	vars[GitCommitVar] = commit
	vars[GitShortCommitVar] = commit[:7]
	if head.Name().IsBranch() {
		vars[GitBranchVar] = head.Name().Short()
	}
	return vars
}
