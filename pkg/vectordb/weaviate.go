package vectordb

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/mailvec/mailvec/pkg/config"
	"github.com/mailvec/mailvec/pkg/types"
)

// baseProperties is the fixed part of the collection schema. Adding a
// filter_* field is a schema change: extend filterProperties, make sure the
// parser populates Mail.ExtraFilters, and drop-and-recreate the collection
// if it already exists with a conflicting schema. There is no online
// migration.
var baseProperties = []string{
	"filter_user_id",
	"filter_year",
	"filter_month",
	"filter_day",
	"mail_id",
	"search_mail_content",
	"search_mail_header",
}

// filterProperties lists the optional filter_* fields of the schema
var filterProperties = []string{
	"filter_mailbox",
	"filter_folder",
}

// WeaviateSink implements Sink against a Weaviate server
type WeaviateSink struct {
	client     *weaviate.Client
	collection string
	provider   string
	model      string
	dimensions int

	// tenants already ensured by this sink; per-sink because sinks are
	// single-goroutine
	tenants map[string]struct{}
}

// NewWeaviateSink creates a sink with its own client connection
func NewWeaviateSink(cfg config.WeaviateConfig) (*WeaviateSink, error) {
	scheme, host := splitHost(cfg.Host)

	wcfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}

	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	return &WeaviateSink{
		client:     client,
		collection: cfg.CollectionName,
		provider:   cfg.Embedding.Provider,
		model:      cfg.Embedding.Model,
		dimensions: cfg.Embedding.VectorDimensions,
		tenants:    make(map[string]struct{}),
	}, nil
}

// splitHost separates an optional scheme prefix from the host
func splitHost(host string) (string, string) {
	if rest, ok := strings.CutPrefix(host, "https://"); ok {
		return "https", rest
	}
	if rest, ok := strings.CutPrefix(host, "http://"); ok {
		return "http", rest
	}
	return "http", host
}

// Close releases the client reference. The v4 client holds no persistent
// connection state that needs explicit teardown.
func (s *WeaviateSink) Close() error {
	s.client = nil
	return nil
}

// EnsureCollection creates the multi-tenant collection if it does not exist
func (s *WeaviateSink) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.Schema().ClassExistenceChecker().
		WithClassName(s.collection).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", s.collection, err)
	}
	if exists {
		return nil
	}

	vectorizer, moduleConfig, err := s.vectorizerConfig()
	if err != nil {
		return err
	}

	names := append(append([]string{}, baseProperties...), filterProperties...)
	props := make([]*models.Property, 0, len(names))
	for _, name := range names {
		props = append(props, &models.Property{
			Name:     name,
			DataType: []string{"text"},
		})
	}

	class := &models.Class{
		Class:              s.collection,
		Vectorizer:         vectorizer,
		ModuleConfig:       moduleConfig,
		MultiTenancyConfig: &models.MultiTenancyConfig{Enabled: true},
		Properties:         props,
	}

	if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
	}
	return nil
}

func (s *WeaviateSink) vectorizerConfig() (string, map[string]interface{}, error) {
	var vectorizer string
	switch s.provider {
	case config.ProviderOpenAI:
		vectorizer = "text2vec-openai"
	case config.ProviderOllama:
		vectorizer = "text2vec-ollama"
	default:
		return "", nil, fmt.Errorf("unsupported embedding provider %q", s.provider)
	}
	moduleConfig := map[string]interface{}{
		vectorizer: map[string]interface{}{
			"model":      s.model,
			"dimensions": s.dimensions,
		},
	}
	return vectorizer, moduleConfig, nil
}

// EnsureTenant creates the domain's tenant if this sink has not seen it yet
func (s *WeaviateSink) EnsureTenant(ctx context.Context, domain string) error {
	if domain == "" {
		return fmt.Errorf("empty tenant domain")
	}
	if _, ok := s.tenants[domain]; ok {
		return nil
	}

	err := s.client.Schema().TenantsCreator().
		WithClassName(s.collection).
		WithTenants(models.Tenant{Name: domain}).
		Do(ctx)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create tenant %s: %w", domain, err)
	}

	s.tenants[domain] = struct{}{}
	return nil
}

// ImportBatch bulk-inserts the mails into the domain's tenant
func (s *WeaviateSink) ImportBatch(ctx context.Context, domain string, mails []*types.Mail) ([]ObjectFailure, error) {
	if len(mails) == 0 {
		return nil, nil
	}

	objects := make([]*models.Object, 0, len(mails))
	byObjectID := make(map[string]string, len(mails))
	for _, m := range mails {
		id := m.ObjectID()
		byObjectID[id] = m.MailID
		objects = append(objects, &models.Object{
			Class:      s.collection,
			ID:         strfmt.UUID(id),
			Tenant:     domain,
			Properties: m.Properties(),
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().
		WithObjects(objects...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("batch import failed for tenant %s: %w", domain, err)
	}

	var failures []ObjectFailure
	for _, r := range resp {
		if r.Result == nil || r.Result.Errors == nil || len(r.Result.Errors.Error) == 0 {
			continue
		}
		mailID, ok := byObjectID[string(r.ID)]
		if !ok {
			mailID = string(r.ID)
		}
		failures = append(failures, ObjectFailure{
			MailID:  mailID,
			Message: r.Result.Errors.Error[0].Message,
		})
	}
	return failures, nil
}
