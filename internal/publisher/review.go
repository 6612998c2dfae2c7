package publisher

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fraywing/threadcast/internal/config"
	"github.com/fraywing/threadcast/internal/models"
	"github.com/fraywing/threadcast/pkg/git"
)

// BranchKey returns the stable branch name for a slug. The naming convention
// is what lets reruns find and update the existing review request.
func BranchKey(slug string) string {
	return "thread/" + slug
}

// GitHubReview is the pull-request review channel: it pushes the rendered
// preview onto a per-slug branch and creates or updates the matching PR.
type GitHubReview struct {
	cfg    config.GitHubConfig
	vcfg   config.ValidatorConfig
	api    *GitHubClient
	logger *zap.Logger
}

func NewGitHubReview(cfg config.GitHubConfig, vcfg config.ValidatorConfig, logger *zap.Logger) *GitHubReview {
	return &GitHubReview{
		cfg:    cfg,
		vcfg:   vcfg,
		api:    NewGitHubClient(cfg, logger),
		logger: logger,
	}
}

func (r *GitHubReview) Ready() bool {
	return r.cfg.Token != "" && r.cfg.Owner != "" && r.cfg.Repo != "" && r.cfg.RepoURL != ""
}

// CreateOrUpdate pushes the preview for the slug and files the review
// request. An open PR for the same branch is updated in place so repeated
// runs on an edited post never accumulate review artifacts.
func (r *GitHubReview) CreateOrUpdate(ctx context.Context, in ReviewInput) (*models.ReviewRequest, error) {
	slug := in.Item.Slug
	branch := BranchKey(slug)
	body := RenderPreview(in, r.vcfg)

	repo := git.NewRepository(git.RepositoryConfig{
		URL:          r.cfg.RepoURL,
		BaseBranch:   r.cfg.BaseBranch,
		WorkspaceDir: r.cfg.WorkspaceDir,
		GitUsername:  r.cfg.GitUsername,
		GitEmail:     r.cfg.GitEmail,
	}, r.logger)

	if err := repo.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to prepare review repository: %w", err)
	}
	if err := repo.CheckoutWorkBranch(branch); err != nil {
		return nil, err
	}

	previewPath := fmt.Sprintf("threads/%s.md", slug)
	if err := repo.CreateFile(previewPath, []byte(body)); err != nil {
		return nil, err
	}
	if err := repo.Add(previewPath); err != nil {
		return nil, err
	}
	if err := repo.Commit(fmt.Sprintf("%s: %s", r.cfg.CommitMessage, slug)); err != nil {
		return nil, err
	}
	if err := repo.PushBranch(branch); err != nil {
		return nil, err
	}

	title := fmt.Sprintf("Thread review: %s", in.Item.Title)
	if in.PartialRecord != nil {
		title = fmt.Sprintf("Thread review (partial publish): %s", in.Item.Title)
	}

	existing, err := r.api.FindPullRequest(ctx, branch)
	if err != nil {
		return nil, fmt.Errorf("failed to look up review request: %w", err)
	}

	if existing != nil {
		pr, err := r.api.UpdatePullRequest(ctx, existing.Number, title, body)
		if err != nil {
			return nil, fmt.Errorf("failed to update review request: %w", err)
		}
		if err := r.api.Comment(ctx, pr.Number, "Preview regenerated from the latest pipeline run."); err != nil {
			r.logger.Warn("Failed to comment on review request",
				zap.Int("number", pr.Number),
				zap.Error(err))
		}
		r.logger.Info("Review request updated",
			zap.String("slug", slug),
			zap.Int("number", pr.Number))
		return &models.ReviewRequest{
			Slug:      slug,
			BranchKey: branch,
			Number:    pr.Number,
			URL:       pr.HTMLURL,
			Body:      body,
			Updated:   true,
		}, nil
	}

	pr, err := r.api.CreatePullRequest(ctx, branch, r.cfg.BaseBranch, title, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create review request: %w", err)
	}

	r.logger.Info("Review request created",
		zap.String("slug", slug),
		zap.Int("number", pr.Number),
		zap.String("url", pr.HTMLURL))

	return &models.ReviewRequest{
		Slug:      slug,
		BranchKey: branch,
		Number:    pr.Number,
		URL:       pr.HTMLURL,
		Body:      body,
	}, nil
}
