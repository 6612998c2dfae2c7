package git

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Repository manages git repository operations
type Repository struct {
	logger       *zap.Logger
	repoURL      string
	localPath    string
	baseBranch   string
	workspaceDir string
	gitUsername  string
	gitEmail     string
}

// RepositoryConfig contains configuration for git repository
type RepositoryConfig struct {
	URL          string `json:"url"`
	BaseBranch   string `json:"base_branch"`
	WorkspaceDir string `json:"workspace_dir"`
	GitUsername  string `json:"git_username"`
	GitEmail     string `json:"git_email"`
}

func NewRepository(config RepositoryConfig, logger *zap.Logger) *Repository {
	// Extract repository name from URL
	repoName := extractRepoName(config.URL)
	localPath := filepath.Join(config.WorkspaceDir, repoName)

	return &Repository{
		logger:       logger,
		repoURL:      config.URL,
		localPath:    localPath,
		baseBranch:   config.BaseBranch,
		workspaceDir: config.WorkspaceDir,
		gitUsername:  config.GitUsername,
		gitEmail:     config.GitEmail,
	}
}

// Initialize ensures the repository is cloned and the base branch is up to
// date.
func (r *Repository) Initialize() error {
	// Create workspace directory if it doesn't exist
	if err := os.MkdirAll(r.workspaceDir, 0755); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}

	// Check if directory exists but is not a valid git repository
	if r.directoryExists() && !r.exists() {
		r.logger.Warn("Directory exists but is not a valid git repository, cleaning up",
			zap.String("path", r.localPath))
		if err := r.cleanup(); err != nil {
			return fmt.Errorf("failed to cleanup invalid repository: %w", err)
		}
	}

	if r.exists() {
		// Try to pull, if it fails, cleanup and re-clone
		if err := r.pullBase(); err != nil {
			r.logger.Warn("Failed to pull repository, cleaning up and re-cloning",
				zap.String("error", err.Error()))
			if cleanupErr := r.cleanup(); cleanupErr != nil {
				return fmt.Errorf("failed to cleanup repository after pull failure: %w", cleanupErr)
			}
			return r.clone()
		}
		return nil
	}

	r.logger.Info("Repository not found locally, cloning",
		zap.String("url", r.repoURL),
		zap.String("path", r.localPath))
	return r.clone()
}

func (r *Repository) directoryExists() bool {
	if _, err := os.Stat(r.localPath); err != nil {
		return false
	}
	return true
}

func (r *Repository) exists() bool {
	gitDir := filepath.Join(r.localPath, ".git")
	if _, err := os.Stat(gitDir); err != nil {
		return false
	}
	cmd := exec.Command("git", "status", "--porcelain")
	cmd.Dir = r.localPath
	return cmd.Run() == nil
}

func (r *Repository) cleanup() error {
	if r.directoryExists() {
		if err := os.RemoveAll(r.localPath); err != nil {
			return fmt.Errorf("failed to remove directory: %w", err)
		}
	}
	return nil
}

func (r *Repository) clone() error {
	repoName := extractRepoName(r.repoURL)
	cmd := exec.Command("git", "clone", "-b", r.baseBranch, r.repoURL, repoName)
	cmd.Dir = r.workspaceDir
	if r.isSSHURL(r.repoURL) {
		r.setupSSHEnvironment(cmd)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to clone repository: %s, output: %s", err, string(output))
	}

	r.logger.Info("Repository cloned successfully",
		zap.String("url", r.repoURL),
		zap.String("branch", r.baseBranch))
	return nil
}

func (r *Repository) pullBase() error {
	checkout := exec.Command("git", "checkout", r.baseBranch)
	checkout.Dir = r.localPath
	if output, err := checkout.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to checkout base branch: %s, output: %s", err, string(output))
	}

	cmd := exec.Command("git", "pull", "origin", r.baseBranch)
	cmd.Dir = r.localPath
	if r.isSSHURL(r.repoURL) {
		r.setupSSHEnvironment(cmd)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to pull repository: %s, output: %s", err, string(output))
	}
	return nil
}

// CheckoutWorkBranch creates or resets a work branch off the current base
// branch head. Re-running for the same slug resets the branch so the review
// artifact is updated in place rather than stacked.
func (r *Repository) CheckoutWorkBranch(branch string) error {
	cmd := exec.Command("git", "checkout", "-B", branch)
	cmd.Dir = r.localPath

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to checkout work branch: %s, output: %s", err, string(output))
	}

	r.logger.Debug("Checked out work branch", zap.String("branch", branch))
	return nil
}

// ConfigureGitUser sets up git user configuration for the repository
func (r *Repository) ConfigureGitUser() error {
	if r.gitUsername == "" || r.gitEmail == "" {
		r.logger.Warn("Git username or email not configured, skipping git user setup")
		return nil
	}

	cmd := exec.Command("git", "config", "user.name", r.gitUsername)
	cmd.Dir = r.localPath
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to set git user name: %s, output: %s", err, string(output))
	}

	cmd = exec.Command("git", "config", "user.email", r.gitEmail)
	cmd.Dir = r.localPath
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to set git user email: %s, output: %s", err, string(output))
	}

	return nil
}

// Add stages files for commit
func (r *Repository) Add(files ...string) error {
	if len(files) == 0 {
		files = []string{"."}
	}

	args := append([]string{"add"}, files...)
	cmd := exec.Command("git", args...)
	cmd.Dir = r.localPath

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to add files: %s, output: %s", err, string(output))
	}
	return nil
}

// Commit creates a commit with the given message
func (r *Repository) Commit(message string) error {
	if err := r.ConfigureGitUser(); err != nil {
		return fmt.Errorf("failed to configure git user: %w", err)
	}

	cmd := exec.Command("git", "commit", "-m", message)
	cmd.Dir = r.localPath

	output, err := cmd.CombinedOutput()
	if err != nil {
		// Check if there are no changes to commit
		if strings.Contains(string(output), "nothing to commit") {
			r.logger.Info("No changes to commit")
			return nil
		}
		return fmt.Errorf("failed to commit: %s, output: %s", err, string(output))
	}

	r.logger.Info("Committed changes", zap.String("message", message))
	return nil
}

// PushBranch force-pushes the given branch to origin. Force is required
// because work branches are reset on every rerun.
func (r *Repository) PushBranch(branch string) error {
	cmd := exec.Command("git", "push", "--force", "origin", branch)
	cmd.Dir = r.localPath
	if r.isSSHURL(r.repoURL) {
		r.setupSSHEnvironment(cmd)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to push: %s, output: %s", err, string(output))
	}

	r.logger.Info("Pushed to remote", zap.String("branch", branch))
	return nil
}

// CreateFile creates a file in the repository
func (r *Repository) CreateFile(relativePath string, content []byte) error {
	fullPath := filepath.Join(r.localPath, relativePath)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	r.logger.Debug("File created in repository", zap.String("path", relativePath))
	return nil
}

// LocalPath returns the local path of the repository
func (r *Repository) LocalPath() string {
	return r.localPath
}

// Helper function to extract repository name from URL
func extractRepoName(url string) string {
	// Remove .git suffix if present
	if strings.HasSuffix(url, ".git") {
		url = strings.TrimSuffix(url, ".git")
	}

	// Handle SSH URLs (git@github.com:user/repo)
	if strings.Contains(url, ":") && strings.Contains(url, "@") {
		parts := strings.Split(url, ":")
		if len(parts) > 1 {
			path := parts[len(parts)-1]
			pathParts := strings.Split(path, "/")
			if len(pathParts) > 0 {
				return pathParts[len(pathParts)-1]
			}
		}
	}

	// Get the last part of the URL for HTTPS URLs
	parts := strings.Split(url, "/")
	if len(parts) > 0 {
		return parts[len(parts)-1]
	}

	return "repo"
}

// isSSHURL checks if the given URL is an SSH URL
func (r *Repository) isSSHURL(url string) bool {
	return strings.HasPrefix(url, "git@") || strings.HasPrefix(url, "ssh://")
}

// setupSSHEnvironment sets up the SSH environment for git commands
func (r *Repository) setupSSHEnvironment(cmd *exec.Cmd) {
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}

	sshCommand := "ssh -o UserKnownHostsFile=/dev/null -o StrictHostKeyChecking=no"
	cmd.Env = append(cmd.Env, "GIT_SSH_COMMAND="+sshCommand)
}
