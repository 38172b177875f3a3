package audit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fadedpez/ebucks/pkg/entities"
	"github.com/stretchr/testify/suite"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

// fakeTransport answers Elasticsearch requests from a handler and records them
type fakeTransport struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(method, path string) (int, string)
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body := ""
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		body = string(raw)
	}

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: req.Method, Path: req.URL.Path, Body: body})
	handler := f.handler
	f.mu.Unlock()

	status, payload := handler(req.Method, req.URL.Path)
	header := http.Header{}
	header.Set("X-Elastic-Product", "Elasticsearch")
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(payload)),
		Request:    req,
	}, nil
}

func (f *fakeTransport) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

type ElasticsearchSinkTestSuite struct {
	suite.Suite
	ctx       context.Context
	transport *fakeTransport
	sink      *ElasticsearchSink
}

func TestElasticsearchSink(t *testing.T) {
	suite.Run(t, new(ElasticsearchSinkTestSuite))
}

func (s *ElasticsearchSinkTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.transport = &fakeTransport{handler: func(method, path string) (int, string) {
		if method == http.MethodHead {
			return http.StatusNotFound, ""
		}
		return http.StatusOK, `{"acknowledged":true}`
	}}

	cfg := DefaultConfig()
	cfg.Transport = s.transport
	sink, err := NewElasticsearchSink(cfg, nil)
	s.Require().NoError(err)
	sink.now = func() time.Time { return time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC) }
	s.sink = sink
}

func transaction(id string, at time.Time) entities.Transaction {
	return entities.Transaction{
		ID:           id,
		Timestamp:    at,
		Amount:       50,
		Reason:       "Quiz Master",
		Category:     entities.CategoryChallenge,
		Metadata:     map[string]string{"challenge_id": "quiz-master"},
		BalanceAfter: 50,
	}
}

func (s *ElasticsearchSinkTestSuite) TestIndexCreatesMonthlyIndexOnce() {
	at := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	s.Require().NoError(s.sink.Index(s.ctx, "user-1", transaction("tx-1", at)))
	s.Require().NoError(s.sink.Index(s.ctx, "user-1", transaction("tx-2", at)))

	reqs := s.transport.recorded()
	s.Require().Len(reqs, 4)
	s.Equal(recordedRequest{Method: http.MethodHead, Path: "/ebucks_ledger_2024-03"}, reqs[0])
	s.Equal(http.MethodPut, reqs[1].Method)
	s.Equal("/ebucks_ledger_2024-03", reqs[1].Path)
	s.Contains(reqs[1].Body, `"transaction_id"`)
	s.Equal("/ebucks_ledger_2024-03/_doc/tx-1", reqs[2].Path)
	s.Equal("/ebucks_ledger_2024-03/_doc/tx-2", reqs[3].Path)

	var doc Document
	s.Require().NoError(json.Unmarshal([]byte(reqs[2].Body), &doc))
	s.Equal("user-1", doc.UserID)
	s.Equal(int64(50), doc.Amount)
	s.Equal(entities.CategoryChallenge, doc.Category)
	s.Equal("quiz-master", doc.Metadata["challenge_id"])
}

func (s *ElasticsearchSinkTestSuite) TestIndexReportsRejectedWrites() {
	s.transport.handler = func(method, path string) (int, string) {
		if strings.Contains(path, "/_doc/") {
			return http.StatusInternalServerError, `{"error":"boom"}`
		}
		return http.StatusOK, `{}`
	}

	err := s.sink.Index(s.ctx, "user-1", transaction("tx-1", time.Now()))
	s.Error(err)

	// the hook swallows the failure
	s.sink.Hook("user-1").OnTransaction(s.ctx, transaction("tx-2", time.Now()))
}

func (s *ElasticsearchSinkTestSuite) TestPruneDeletesExpiredMonths() {
	s.transport.handler = func(method, path string) (int, string) {
		if method == http.MethodGet {
			return http.StatusOK, `{"ebucks_ledger_2023-01":{},"ebucks_ledger_2024-03":{},"ebucks_ledger_bogus":{}}`
		}
		return http.StatusOK, `{"acknowledged":true}`
	}

	indices, err := s.sink.GetIndices(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"ebucks_ledger_2023-01", "ebucks_ledger_2024-03", "ebucks_ledger_bogus"}, indices)

	s.Require().NoError(s.sink.PruneOldIndices(s.ctx))
	reqs := s.transport.recorded()
	last := reqs[len(reqs)-1]
	s.Equal(http.MethodDelete, last.Method)
	s.Equal("/ebucks_ledger_2023-01", last.Path)
}

func (s *ElasticsearchSinkTestSuite) TestPruneWithNothingExpired() {
	s.transport.handler = func(method, path string) (int, string) {
		return http.StatusOK, `{"ebucks_ledger_2024-02":{}}`
	}

	s.Require().NoError(s.sink.PruneOldIndices(s.ctx))
	for _, r := range s.transport.recorded() {
		s.NotEqual(http.MethodDelete, r.Method)
	}
}

func (s *ElasticsearchSinkTestSuite) TestRotateUsesCurrentMonth() {
	s.Require().NoError(s.sink.RotateIndices(s.ctx))
	reqs := s.transport.recorded()
	s.Require().NotEmpty(reqs)
	s.Equal("/ebucks_ledger_2024-03", reqs[0].Path)
}
