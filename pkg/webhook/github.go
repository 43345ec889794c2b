package webhook

import (
	"context"

	"github.com/saraivavision/clinic-gateway/pkg/signature"
	"go.uber.org/zap"
)

// GitHubProcessor receives push events used to track site deployments. It
// validates the X-Hub-Signature-256 header and records the pushed ref.
type GitHubProcessor struct {
	cfg EndpointConfig
	log *zap.Logger
}

func NewGitHubProcessor(cfg Config, log *zap.Logger) *GitHubProcessor {
	return &GitHubProcessor{cfg: cfg.Endpoint("github"), log: log}
}

func (p *GitHubProcessor) Name() string         { return "github" }
func (p *GitHubProcessor) Kind() signature.Kind { return signature.KindHMAC }
func (p *GitHubProcessor) Secret() string       { return p.cfg.Secret }
func (p *GitHubProcessor) AllowedIPs() []string { return p.cfg.AllowedIPs }

func (p *GitHubProcessor) Process(ctx context.Context, payload map[string]any) (any, error) {
	ref, _ := payload["ref"].(string)
	repo, _ := payload["repository"].(map[string]any)
	repoName, _ := repo["full_name"].(string)

	p.log.Info("received push event",
		zap.String("repository", repoName),
		zap.String("ref", ref))

	return map[string]any{
		"processed":  true,
		"ref":        ref,
		"repository": repoName,
	}, nil
}
