package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dastanaron/bookaimark/internal/apperr"
	"github.com/dastanaron/bookaimark/internal/logging"
	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/service"
)

// BundleVersion is the playbook bundle format written by ExportBundle.
const BundleVersion = 1

// PlaybookBundle is the portable YAML form of a playbook. Likes,
// acquisitions and the publication state stay with the original.
type PlaybookBundle struct {
	Version     int                   `yaml:"version"`
	Title       string                `yaml:"title"`
	Description string                `yaml:"description,omitempty"`
	Category    string                `yaml:"category,omitempty"`
	Tags        []string              `yaml:"tags,omitempty"`
	PriceCents  int64                 `yaml:"price_cents,omitempty"`
	Items       []models.PlaybookItem `yaml:"items"`
}

// PlaybookBundleCommand moves playbooks in and out of YAML bundles.
type PlaybookBundleCommand struct {
	svc    *service.Services
	logger *slog.Logger
}

// NewPlaybookBundleCommand creates a new playbook bundle command
func NewPlaybookBundleCommand(svc *service.Services, logger *slog.Logger) *PlaybookBundleCommand {
	return &PlaybookBundleCommand{
		svc:    svc,
		logger: logging.NewComponentLogger(logger, "playbook-bundle"),
	}
}

// ExportBundle writes the playbook as YAML. Drafts can only be exported by
// their author.
func (c *PlaybookBundleCommand) ExportBundle(ctx context.Context, userID, playbookID string, w io.Writer) error {
	p, err := c.svc.Playbooks.Get(ctx, userID, playbookID)
	if err != nil {
		return err
	}
	bundle := PlaybookBundle{
		Version:     BundleVersion,
		Title:       p.Title,
		Description: p.Description,
		Category:    p.Category,
		Tags:        p.Tags,
		PriceCents:  p.PriceCents,
		Items:       p.Items,
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(bundle); err != nil {
		return fmt.Errorf("encode playbook bundle: %w", err)
	}
	return enc.Close()
}

// ExportFile writes the bundle to filePath.
func (c *PlaybookBundleCommand) ExportFile(ctx context.Context, userID, playbookID, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("cannot create file: %w", err)
	}
	err = c.ExportBundle(ctx, userID, playbookID, file)
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	return err
}

// ImportBundle creates a new draft playbook owned by userID from a YAML bundle.
func (c *PlaybookBundleCommand) ImportBundle(ctx context.Context, userID string, r io.Reader) (*models.Playbook, error) {
	const op = "import playbook bundle"

	var bundle PlaybookBundle
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&bundle); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperr.Validation(op, "bundle is empty")
		}
		return nil, apperr.Wrap(apperr.ErrValidation, op, "invalid bundle", err)
	}
	if bundle.Version != BundleVersion {
		return nil, apperr.Validation(op, fmt.Sprintf("unsupported bundle version %d", bundle.Version))
	}
	if len(bundle.Items) == 0 {
		return nil, apperr.Validation(op, "bundle has no items")
	}

	p, err := c.svc.Playbooks.Create(ctx, userID, service.PlaybookInput{
		Title:       bundle.Title,
		Description: bundle.Description,
		Category:    bundle.Category,
		Tags:        bundle.Tags,
		PriceCents:  bundle.PriceCents,
		Items:       bundle.Items,
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("playbook bundle imported", "playbook_id", p.ID, "items", len(p.Items))
	return p, nil
}

// ImportFile reads a bundle from filePath.
func (c *PlaybookBundleCommand) ImportFile(ctx context.Context, userID, filePath string) (*models.Playbook, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("cannot open file: %w", err)
	}
	defer file.Close()
	return c.ImportBundle(ctx, userID, file)
}
