package collect

import (
	"github.com/TobiSchelling/portfolio-necromancer/internal/config"
)

// BuildSources returns every source in registration order: mail, drive,
// chat, design, screenshots, feed, repository.
func BuildSources(cfg *config.Config) []Source {
	auth := GoogleAuth{
		CredentialsFile: cfg.Google.CredentialsFile,
		TokenFile:       cfg.Google.TokenFile,
	}
	return []Source{
		NewMailSource(cfg.Scraping.Email, auth),
		NewDriveSource(cfg.Scraping.Drive, auth),
		NewChatSource(cfg.Scraping.Slack, cfg.SlackToken()),
		NewDesignSource(cfg.Scraping.Figma, cfg.FigmaToken(), cfg.Figma.TeamID),
		NewScreenshotSource(cfg.Scraping.Screenshots),
		NewFeedSource(cfg.Scraping.Feeds),
		NewRepositorySource(cfg.Scraping.GitHub, cfg.GitHubToken()),
	}
}
