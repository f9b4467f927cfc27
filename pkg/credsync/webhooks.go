package credsync

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/opst/pht-central/pkg/domain"
	xe "github.com/opst/pht-central/pkg/errors"
	"github.com/opst/pht-central/pkg/registry"
	"github.com/sourcegraph/conc/pool"
)

// projects which should have the webhook.
func (s *Syncer) webhookProjects(ctx context.Context) ([]registry.Project, error) {
	stations, err := s.stations.FindWithRegistryProject(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}

	projects := make([]registry.Project, 0, len(stations)+len(s.specials))
	for _, st := range stations {
		if st.RegistryProjectId == nil {
			continue
		}
		projects = append(projects, registry.Project{Ref: *st.RegistryProjectId})
	}
	for _, name := range s.specials {
		projects = append(projects, registry.Project{Ref: name, ByName: true})
	}
	return projects, nil
}

// ensureWebhooks attempts all projects, even when some of them fail.
//
// Failures are reported together as one xe.TransientIntegration error.
func (s *Syncer) ensureWebhooks(ctx context.Context, cred domain.Credential) error {
	projects, err := s.webhookProjects(ctx)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	failed := []string{}

	p := pool.New().WithContext(ctx)
	for _, project := range projects {
		p.Go(func(ctx context.Context) error {
			logger := s.logger.WithField("project", project.String())
			if err := s.webhook.EnsureWebhook(ctx, project, cred); err != nil {
				logger.WithError(err).Warn("failed to ensure webhook")
				mu.Lock()
				defer mu.Unlock()
				failed = append(failed, project.String())
				return err
			}
			logger.Info("webhook is ensured")
			return nil
		})
	}
	err = p.Wait()
	if err == nil {
		return nil
	}
	slices.Sort(failed)
	return xe.Classify(
		xe.TransientIntegration,
		"webhook is not ensured for project(s): "+strings.Join(failed, ", "),
		err,
	)
}
