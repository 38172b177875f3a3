package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/fadedpez/ebucks/internal/logging"
	"github.com/fadedpez/ebucks/pkg/entities"
	"github.com/fadedpez/ebucks/pkg/services/wallet"
)

// IndexLayout is the month suffix of ledger indices
const IndexLayout = "2006-01"

const ledgerMapping = `{
	"mappings": {
		"properties": {
			"transaction_id": { "type": "keyword" },
			"user_id": { "type": "keyword" },
			"amount": { "type": "long" },
			"balance_after": { "type": "long" },
			"reason": { "type": "text" },
			"category": { "type": "keyword" },
			"metadata": { "type": "object", "dynamic": true },
			"timestamp": { "type": "date" }
		}
	},
	"settings": {
		"number_of_shards": 1,
		"number_of_replicas": 1
	}
}`

// Config holds configuration options for the ledger audit index
type Config struct {
	URL             string
	Username        string
	Password        string
	IndexPrefix     string
	RetentionPeriod time.Duration // how long monthly indices are kept
	RotationPeriod  time.Duration // how often the maintenance task checks the current index
	Refresh         bool          // refresh after every write, for tests and demos
	Transport       http.RoundTripper
}

// DefaultConfig returns a default configuration for the audit index
func DefaultConfig() *Config {
	return &Config{
		URL:             "http://localhost:9200",
		IndexPrefix:     "ebucks",
		RetentionPeriod: 365 * 24 * time.Hour,
		RotationPeriod:  24 * time.Hour,
	}
}

// Document is one ledger transaction as indexed
type Document struct {
	TransactionID string            `json:"transaction_id"`
	UserID        string            `json:"user_id"`
	Amount        int64             `json:"amount"`
	BalanceAfter  int64             `json:"balance_after"`
	Reason        string            `json:"reason"`
	Category      entities.Category `json:"category"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// NewDocument flattens a transaction for indexing
func NewDocument(userID string, t entities.Transaction) Document {
	return Document{
		TransactionID: t.ID,
		UserID:        userID,
		Amount:        t.Amount,
		BalanceAfter:  t.BalanceAfter,
		Reason:        t.Reason,
		Category:      t.Category,
		Metadata:      t.Metadata,
		Timestamp:     t.Timestamp,
	}
}

// ElasticsearchSink indexes committed ledger transactions into monthly indices
type ElasticsearchSink struct {
	client *elasticsearch.Client
	config *Config
	logger *logging.Logger
	now    func() time.Time

	mu      sync.Mutex
	ensured map[string]bool
}

// NewElasticsearchSink creates a sink. No request is made until the first write.
func NewElasticsearchSink(config *Config, logger *logging.Logger) (*ElasticsearchSink, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.IndexPrefix == "" {
		config.IndexPrefix = "ebucks"
	}
	if config.RetentionPeriod == 0 {
		config.RetentionPeriod = 365 * 24 * time.Hour
	}
	if config.RotationPeriod == 0 {
		config.RotationPeriod = 24 * time.Hour
	}
	if logger == nil {
		logger = logging.Nop()
	}

	cfg := elasticsearch.Config{
		Addresses: []string{config.URL},
		Transport: config.Transport,
	}
	if config.Username != "" && config.Password != "" {
		cfg.Username = config.Username
		cfg.Password = config.Password
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating Elasticsearch client: %w", err)
	}

	return &ElasticsearchSink{
		client:  client,
		config:  config,
		logger:  logger.WithComponent("audit"),
		now:     time.Now,
		ensured: make(map[string]bool),
	}, nil
}

// Config returns the sink configuration
func (s *ElasticsearchSink) Config() Config {
	return *s.config
}

// IndexName returns the ledger index holding transactions made at t
func (s *ElasticsearchSink) IndexName(t time.Time) string {
	return s.config.IndexPrefix + "_ledger_" + t.UTC().Format(IndexLayout)
}

func (s *ElasticsearchSink) pattern() string {
	return s.config.IndexPrefix + "_ledger_*"
}

// Hook returns a wallet hook indexing userID's transactions. Failures are
// logged and never reach the ledger.
func (s *ElasticsearchSink) Hook(userID string) wallet.Hook {
	return wallet.HookFunc(func(ctx context.Context, t entities.Transaction) {
		if err := s.Index(ctx, userID, t); err != nil {
			s.logger.Warn("Failed to index transaction %s for %s: %v", t.ID, userID, err)
		}
	})
}

// Index writes one transaction, using its id as the document id
func (s *ElasticsearchSink) Index(ctx context.Context, userID string, t entities.Transaction) error {
	index := s.IndexName(t.Timestamp)
	if err := s.ensureIndex(ctx, index); err != nil {
		return err
	}

	body, err := json.Marshal(NewDocument(userID, t))
	if err != nil {
		return fmt.Errorf("error marshaling transaction: %w", err)
	}

	opts := []func(*esapi.IndexRequest){
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(t.ID),
	}
	if s.config.Refresh {
		opts = append(opts, s.client.Index.WithRefresh("true"))
	}

	res, err := s.client.Index(index, bytes.NewReader(body), opts...)
	if err != nil {
		return fmt.Errorf("error indexing transaction: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing transaction: %s", res.String())
	}
	return nil
}

// RotateIndices makes sure the current month's index exists
func (s *ElasticsearchSink) RotateIndices(ctx context.Context) error {
	return s.ensureIndex(ctx, s.IndexName(s.now()))
}

// PruneOldIndices deletes monthly indices older than the retention period
func (s *ElasticsearchSink) PruneOldIndices(ctx context.Context) error {
	indices, err := s.GetIndices(ctx)
	if err != nil {
		return err
	}

	cutoff := s.now().Add(-s.config.RetentionPeriod)
	prefix := s.config.IndexPrefix + "_ledger_"
	var expired []string
	for _, name := range indices {
		month, err := time.Parse(IndexLayout, strings.TrimPrefix(name, prefix))
		if err != nil {
			s.logger.Debug("Skipping index %s: %v", name, err)
			continue
		}
		// an index is expired once its whole month is past the cutoff
		if month.AddDate(0, 1, 0).Before(cutoff) {
			expired = append(expired, name)
		}
	}
	if len(expired) == 0 {
		return nil
	}

	res, err := s.client.Indices.Delete(expired, s.client.Indices.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("error deleting indices: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error deleting indices: %s", res.String())
	}

	s.mu.Lock()
	for _, name := range expired {
		delete(s.ensured, name)
	}
	s.mu.Unlock()

	s.logger.Info("Pruned %d ledger indices older than %v", len(expired), s.config.RetentionPeriod)
	return nil
}

// GetIndices returns the ledger indices, oldest first
func (s *ElasticsearchSink) GetIndices(ctx context.Context) ([]string, error) {
	res, err := s.client.Indices.Get(
		[]string{s.pattern()},
		s.client.Indices.Get.WithContext(ctx),
		s.client.Indices.Get.WithExpandWildcards("open"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get indices: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("error getting indices: %s", res.String())
	}

	var indices map[string]json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&indices); err != nil {
		return nil, fmt.Errorf("error parsing indices response: %w", err)
	}

	names := make([]string, 0, len(indices))
	for name := range indices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *ElasticsearchSink) ensureIndex(ctx context.Context, index string) error {
	s.mu.Lock()
	done := s.ensured[index]
	s.mu.Unlock()
	if done {
		return nil
	}

	res, err := s.client.Indices.Exists([]string{index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("error checking if index exists: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		req := esapi.IndicesCreateRequest{
			Index: index,
			Body:  strings.NewReader(ledgerMapping),
		}
		res, err := req.Do(ctx, s.client)
		if err != nil {
			return fmt.Errorf("error creating index: %w", err)
		}
		defer res.Body.Close()

		// another writer may have created it first
		if res.IsError() && !strings.Contains(res.String(), "resource_already_exists_exception") {
			return fmt.Errorf("error creating index: %s", res.String())
		}
		s.logger.Info("Created ledger index %s", index)
	}

	s.mu.Lock()
	s.ensured[index] = true
	s.mu.Unlock()
	return nil
}
